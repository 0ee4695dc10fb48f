// Package crawler walks a job board: it pages through search results,
// follows every listing link, and hands one record per listing to a sink.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/jimezsa/jobparser/internal/models"
	"github.com/jimezsa/jobparser/internal/scraper"
	"github.com/rs/zerolog"
)

var ErrOffsite = errors.New("start url outside allowed domains")

// Fetcher downloads and parses one page. When the response was redirected
// the returned document's Url holds the final location.
type Fetcher interface {
	Document(ctx context.Context, target string) (*goquery.Document, error)
}

// Sink receives listings in visit order. An error from the sink stops the
// crawl.
type Sink func(listing models.Listing) error

type Options struct {
	// Wait between requests; zero disables the pause.
	Wait time.Duration
	// MaxPages bounds the number of search result pages; zero means all.
	MaxPages int
	// Limit stops the crawl after that many emitted listings; zero means
	// no limit.
	Limit  int
	Robots RobotsPolicy
	Logger zerolog.Logger
}

// Failure is a page that was skipped because it could not be fetched or
// parsed.
type Failure struct {
	URL  string
	Kind Kind
	Err  error
}

type Stats struct {
	Pages    int
	Listings int
	Emitted  int
	Failed   int
	Skipped  int
	Blocked  int
	Failures []Failure
}

type Crawler struct {
	site    scraper.Site
	fetcher Fetcher
	opts    Options
	now     func() time.Time
	last    time.Time
}

func New(site scraper.Site, fetcher Fetcher, opts Options) *Crawler {
	if opts.Robots == nil {
		opts.Robots = allowAll{}
	}
	return &Crawler{
		site:    site,
		fetcher: fetcher,
		opts:    opts,
		now:     time.Now,
	}
}

// Run crawls from the site's search URL for params. Per-page failures are
// recorded in Stats and do not stop the crawl, except for the start page.
func (c *Crawler) Run(ctx context.Context, params models.SearchParams, sink Sink) (Stats, error) {
	var stats Stats
	log := c.opts.Logger.With().Str("site", c.site.Name()).Logger()

	maxPages := params.MaxPages
	if maxPages <= 0 {
		maxPages = c.opts.MaxPages
	}
	limit := params.Limit
	if limit <= 0 {
		limit = c.opts.Limit
	}

	frontier := NewFrontier(c.site.AllowedDomains())
	start := c.site.SearchURL(params)
	if !frontier.Push(Task{URL: start, Kind: KindSearch}) {
		return stats, fmt.Errorf("crawler: %w: %s", ErrOffsite, start)
	}

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if limit > 0 && stats.Emitted >= limit {
			log.Debug().Int("limit", limit).Msg("listing limit reached")
			break
		}
		task, ok := frontier.Pop()
		if !ok {
			break
		}

		if !c.opts.Robots.Allowed(ctx, task.URL) {
			stats.Blocked++
			log.Debug().Str("url", task.URL).Stringer("kind", task.Kind).Msg("blocked by robots.txt")
			continue
		}
		if err := c.pause(ctx); err != nil {
			return stats, err
		}

		log.Debug().Str("url", task.URL).Stringer("kind", task.Kind).Int("depth", task.Depth).Msg("fetch")
		doc, err := c.fetcher.Document(ctx, task.URL)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return stats, ctxErr
			}
			if task.Kind == KindSearch && task.Depth == 0 {
				return stats, fmt.Errorf("crawler: fetch start page: %w", err)
			}
			c.fail(&stats, log, task, err)
			continue
		}

		pageURL := task.URL
		if final := finalURL(doc); final != "" && final != task.URL {
			if !frontier.Redirected(task.URL, final) {
				if task.Kind == KindSearch && task.Depth == 0 {
					return stats, fmt.Errorf("crawler: start page redirected: %w: %s", ErrOffsite, final)
				}
				stats.Skipped++
				log.Debug().Str("url", task.URL).Str("final_url", final).Msg("redirect target already visited or offsite")
				continue
			}
			pageURL = final
		}

		switch task.Kind {
		case KindSearch:
			stats.Pages++
			page := c.site.ParseSearchPage(doc, pageURL)
			for _, link := range page.Listings {
				if !frontier.Push(Task{URL: link, Kind: KindListing, Depth: task.Depth}) {
					stats.Skipped++
				}
			}
			if page.Next != "" && (maxPages <= 0 || task.Depth+1 < maxPages) {
				frontier.Push(Task{URL: page.Next, Kind: KindSearch, Depth: task.Depth + 1})
			}
			log.Debug().
				Str("url", pageURL).
				Int("listings", len(page.Listings)).
				Bool("has_next", page.Next != "").
				Msg("search page parsed")
		case KindListing:
			stats.Listings++
			listing, err := c.site.ParseListing(doc, pageURL)
			if err != nil {
				c.fail(&stats, log, task, err)
				continue
			}
			if err := sink(listing); err != nil {
				return stats, fmt.Errorf("crawler: emit %s: %w", task.URL, err)
			}
			stats.Emitted++
		}
	}

	log.Info().
		Int("pages", stats.Pages).
		Int("listings", stats.Listings).
		Int("emitted", stats.Emitted).
		Int("failed", stats.Failed).
		Int("blocked", stats.Blocked).
		Int("visited", frontier.Seen()).
		Int("queued", frontier.Len()).
		Msg("crawl finished")
	return stats, nil
}

func finalURL(doc *goquery.Document) string {
	if doc == nil || doc.Url == nil {
		return ""
	}
	return doc.Url.String()
}

func (c *Crawler) fail(stats *Stats, log zerolog.Logger, task Task, err error) {
	stats.Failed++
	stats.Failures = append(stats.Failures, Failure{URL: task.URL, Kind: task.Kind, Err: err})
	log.Warn().Err(err).Str("url", task.URL).Stringer("kind", task.Kind).Msg("page skipped")
}

func (c *Crawler) pause(ctx context.Context) error {
	if c.opts.Wait > 0 && !c.last.IsZero() {
		if remaining := c.opts.Wait - c.now().Sub(c.last); remaining > 0 {
			timer := time.NewTimer(remaining)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	c.last = c.now()
	return nil
}
