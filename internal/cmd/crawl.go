package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jimezsa/jobparser/internal/config"
	"github.com/jimezsa/jobparser/internal/crawler"
	"github.com/jimezsa/jobparser/internal/export"
	"github.com/jimezsa/jobparser/internal/models"
	"github.com/jimezsa/jobparser/internal/network"
	"github.com/jimezsa/jobparser/internal/scraper"
	"github.com/jimezsa/jobparser/internal/seen"
	"github.com/jimezsa/jobparser/internal/ui"
)

const robotsAgent = "jobparser"

type CrawlCmd struct {
	Query      string `arg:"" optional:"" help:"Search text. Optional when --start-url or a default query is configured."`
	Site       string `help:"Job board to crawl (default from config, hhru)."`
	Area       string `help:"hh.ru area id (1 Moscow, 2 Saint Petersburg, 53 Novosibirsk)."`
	StartURL   string `name:"start-url" help:"Start from this search results URL instead of building one."`
	MaxPages   int    `help:"Maximum search result pages to follow (0 = all)."`
	Limit      int    `help:"Stop after this many listings (0 = no limit)."`
	Wait       string `help:"Pause between requests, e.g. 500ms or 2s (default from config)."`
	NoRobots   bool   `name:"no-robots" help:"Ignore robots.txt."`
	Format     string `help:"Output format: table, csv, tsv, json, jsonl, md, yaml." enum:",table,csv,tsv,json,jsonl,md,yaml" default:""`
	Links      string `help:"Table link display: short or full." enum:"short,full" default:"full"`
	Output     string `name:"output" short:"o" help:"Write output to a file."`
	Stream     bool   `help:"Write each listing as a JSON line as soon as it is extracted."`
	Proxies    string `help:"Comma-separated proxy URLs." env:"JOBPARSER_PROXIES"`
	Seen       string `help:"Path to seen listings JSON file."`
	NewOnly    bool   `help:"Output only unseen listings (requires --seen)."`
	NewOut     string `help:"Write unseen listings JSON to a file (requires --seen)."`
	SeenUpdate bool   `help:"Merge unseen listings into the --seen file after the crawl (requires --seen)."`
}

func (c *CrawlCmd) Run(ctx *Context) error {
	if err := c.validate(); err != nil {
		return err
	}

	site, err := scraper.Lookup(firstNonEmpty(c.Site, ctx.Config.DefaultSite, scraper.SiteHHRu))
	if err != nil {
		return err
	}
	params, err := c.resolveParams(ctx.Config)
	if err != nil {
		return err
	}
	opts, err := c.crawlerOptions(ctx)
	if err != nil {
		return err
	}
	timeout, err := ctx.Config.TimeoutDuration()
	if err != nil {
		return err
	}

	proxies, err := config.LoadProxies(c.Proxies)
	if err != nil {
		return err
	}
	var rotator *network.Rotator
	if len(proxies) > 0 {
		rotator, err = network.NewRotator(proxies, network.DefaultBanDuration)
		if err != nil {
			return err
		}
		ctx.Logger.Debug().Int("proxies", rotator.Len()).Msg("proxy rotation enabled")
	}
	client, err := network.NewClient(rotator, network.Options{Timeout: timeout, UserAgent: ctx.Config.UserAgent})
	if err != nil {
		return err
	}
	fetcher := scraper.NewDocumentFetcher(client, nil)
	if ctx.Config.RespectRobots && !c.NoRobots {
		opts.Robots = crawler.NewRobotsCache(fetcher.Raw, robotsAgent)
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return c.execute(runCtx, ctx, crawler.New(site, fetcher, opts), params)
}

func (c *CrawlCmd) validate() error {
	if c.NewOnly && strings.TrimSpace(c.Seen) == "" {
		return fmt.Errorf("--new-only requires --seen")
	}
	if strings.TrimSpace(c.NewOut) != "" && strings.TrimSpace(c.Seen) == "" {
		return fmt.Errorf("--new-out requires --seen")
	}
	if c.SeenUpdate && strings.TrimSpace(c.Seen) == "" {
		return fmt.Errorf("--seen-update requires --seen")
	}
	if c.Stream && c.NewOnly {
		return fmt.Errorf("--stream cannot be combined with --new-only")
	}
	if c.Stream && c.Format != "" && c.Format != string(export.FormatJSONL) {
		return fmt.Errorf("--stream always writes jsonl")
	}
	if c.MaxPages < 0 || c.Limit < 0 {
		return fmt.Errorf("--max-pages and --limit must not be negative")
	}
	if strings.TrimSpace(c.NewOut) != "" && pathsEqual(c.Output, c.NewOut) {
		return fmt.Errorf("--new-out path must differ from --output")
	}
	if strings.TrimSpace(c.Seen) != "" && pathsEqual(c.Output, c.Seen) {
		return fmt.Errorf("--output path must differ from --seen")
	}
	if strings.TrimSpace(c.NewOut) != "" && pathsEqual(c.NewOut, c.Seen) {
		return fmt.Errorf("--new-out path must differ from --seen")
	}
	return nil
}

func (c *CrawlCmd) resolveParams(cfg config.Config) (models.SearchParams, error) {
	params := models.SearchParams{
		Query:    strings.TrimSpace(firstNonEmpty(c.Query, cfg.DefaultQuery)),
		Area:     strings.TrimSpace(firstNonEmpty(c.Area, cfg.DefaultArea)),
		StartURL: strings.TrimSpace(c.StartURL),
		MaxPages: defaultInt(c.MaxPages, cfg.MaxPages),
		Limit:    defaultInt(c.Limit, cfg.Limit),
	}
	if params.Query == "" && params.StartURL == "" {
		return params, fmt.Errorf("a search query or --start-url is required")
	}
	return params, nil
}

func (c *CrawlCmd) crawlerOptions(ctx *Context) (crawler.Options, error) {
	wait, err := ctx.Config.WaitDuration()
	if err != nil {
		return crawler.Options{}, err
	}
	if strings.TrimSpace(c.Wait) != "" {
		wait, err = time.ParseDuration(strings.TrimSpace(c.Wait))
		if err != nil {
			return crawler.Options{}, fmt.Errorf("--wait: %w", err)
		}
		if wait < 0 {
			return crawler.Options{}, fmt.Errorf("--wait must not be negative")
		}
	}
	return crawler.Options{Wait: wait, Logger: ctx.Logger}, nil
}

// execute runs the crawl and handles every output concern. An interrupted
// crawl still writes what it collected.
func (c *CrawlCmd) execute(runCtx context.Context, ctx *Context, cr *crawler.Crawler, params models.SearchParams) error {
	outputPath := strings.TrimSpace(c.Output)

	var (
		listings []models.Listing
		stream   *export.Stream
		file     *os.File
		err      error
	)
	writer := ctx.Out
	if outputPath != "" {
		file, err = os.Create(outputPath)
		if err != nil {
			return err
		}
		defer file.Close()
		writer = file
	}
	if c.Stream {
		stream = export.NewStream(writer)
	}

	progress := ctx.UI.NewProgress(ctx.Err)
	sink := func(listing models.Listing) error {
		listings = append(listings, listing)
		progress.Increment()
		if stream != nil {
			return stream.Write(listing)
		}
		return nil
	}

	stats, runErr := cr.Run(runCtx, params, sink)
	progress.Finish()
	if runErr != nil {
		if !errors.Is(runErr, context.Canceled) {
			return runErr
		}
		if stream != nil {
			ctx.UI.Warnf("Interrupted; %d listings already written.", stream.Count())
		} else {
			ctx.UI.Warnf("Interrupted; keeping %d listings collected so far.", len(listings))
		}
	}

	reportCrawlFailures(ctx, stats.Failures)

	var unseenListings []models.Listing
	if strings.TrimSpace(c.Seen) != "" {
		seenListings, err := seen.ReadListingsAllowMissing(c.Seen)
		if err != nil {
			return fmt.Errorf("read --seen: %w", err)
		}
		unseenListings, _ = seen.Diff(listings, seenListings)
	}

	if strings.TrimSpace(c.NewOut) != "" {
		if err := seen.WriteListings(c.NewOut, unseenListings); err != nil {
			return fmt.Errorf("write --new-out: %w", err)
		}
	}

	if stream == nil {
		outputListings := listings
		if c.NewOnly {
			outputListings = unseenListings
		}
		format, err := resolveFormat(ctx, c.Format, outputPath)
		if err != nil {
			return err
		}
		colorEnabled := ctx.UI != nil && ctx.UI.ColorEnabled && file == nil
		hyperlinks := colorEnabled && ui.IsTTY(writer)
		linkStyle := export.LinkStyleShort
		if strings.EqualFold(c.Links, string(export.LinkStyleFull)) {
			linkStyle = export.LinkStyleFull
		}
		if err := export.WriteListings(writer, outputListings, format, export.WriteOptions{
			ColorEnabled: colorEnabled,
			Hyperlinks:   hyperlinks,
			LinkStyle:    linkStyle,
		}); err != nil {
			return err
		}
	}

	if c.SeenUpdate {
		if err := updateSeenHistory(c.Seen, unseenListings); err != nil {
			return err
		}
	}

	printCrawlSummary(ctx, stats, len(unseenListings), strings.TrimSpace(c.Seen) != "")
	return nil
}

func pathsEqual(a, b string) bool {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return false
	}
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA == nil && errB == nil {
		return absA == absB
	}
	return filepath.Clean(a) == filepath.Clean(b)
}

func updateSeenHistory(seenPath string, input []models.Listing) error {
	seenListings, err := seen.ReadListingsAllowMissing(seenPath)
	if err != nil {
		return fmt.Errorf("read --seen: %w", err)
	}

	merged, _ := seen.Merge(seenListings, input)
	if err := seen.WriteListings(seenPath, merged); err != nil {
		return fmt.Errorf("write --seen: %w", err)
	}

	return nil
}

func printCrawlSummary(ctx *Context, stats crawler.Stats, unseen int, withSeen bool) {
	if ctx == nil || ctx.Err == nil {
		return
	}
	_, _ = fmt.Fprintf(ctx.Err, "%s\n", formatCrawlSummary(stats, unseen, withSeen))
}

func formatCrawlSummary(stats crawler.Stats, unseen int, withSeen bool) string {
	parts := []string{
		fmt.Sprintf("pages=%s", humanize.Comma(int64(stats.Pages))),
		fmt.Sprintf("listings=%s", humanize.Comma(int64(stats.Emitted))),
		fmt.Sprintf("failed=%d", stats.Failed),
	}
	if stats.Blocked > 0 {
		parts = append(parts, fmt.Sprintf("blocked=%d", stats.Blocked))
	}
	if withSeen {
		parts = append(parts, fmt.Sprintf("new=%d", unseen))
	}
	return "summary: " + strings.Join(parts, " ")
}

func reportCrawlFailures(ctx *Context, failures []crawler.Failure) {
	if ctx == nil || ctx.UI == nil || len(failures) == 0 {
		return
	}
	if !ctx.Verbose {
		ctx.UI.Warnf("%d pages skipped; rerun with --verbose for details.", len(failures))
		return
	}

	ctx.UI.Warnf("\nSkipped pages:")
	for _, failure := range failures {
		ctx.UI.Warnf("  %s %s: %v", failure.Kind, failure.URL, failure.Err)
	}
}

func resolveFormat(ctx *Context, format string, outputPath string) (export.Format, error) {
	if ctx.JSONOutput {
		return export.FormatJSON, nil
	}
	if ctx.PlainText {
		return export.FormatTSV, nil
	}
	if format != "" {
		return export.ParseFormat(format)
	}
	if outputPath != "" {
		return formatFromExtension(outputPath), nil
	}
	if isTTY(ctx.Out) {
		return export.FormatTable, nil
	}
	return export.FormatCSV, nil
}

func formatFromExtension(path string) export.Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return export.FormatJSON
	case ".jsonl", ".ndjson":
		return export.FormatJSONL
	case ".tsv":
		return export.FormatTSV
	case ".md":
		return export.FormatMarkdown
	case ".yaml", ".yml":
		return export.FormatYAML
	default:
		return export.FormatCSV
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func defaultInt(value, fallback int) int {
	if value == 0 {
		return fallback
	}
	return value
}

func isTTY(out io.Writer) bool {
	return ui.IsTTY(out)
}
