package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/jimezsa/jobparser/internal/config"
	"github.com/jimezsa/jobparser/internal/crawler"
	"github.com/jimezsa/jobparser/internal/export"
	"github.com/jimezsa/jobparser/internal/models"
	"github.com/jimezsa/jobparser/internal/scraper"
	"github.com/jimezsa/jobparser/internal/seen"
	"github.com/jimezsa/jobparser/internal/ui"
	"github.com/rs/zerolog"
)

const testStart = "https://hh.ru/search/vacancy?area=1&text=golang"

type pageFetcher map[string]string

func (p pageFetcher) Document(_ context.Context, target string) (*goquery.Document, error) {
	body, ok := p[target]
	if !ok {
		return nil, &scraper.HTTPError{URL: target, StatusCode: 404}
	}
	return goquery.NewDocumentFromReader(strings.NewReader(body))
}

func testSite() pageFetcher {
	return pageFetcher{
		testStart: `<html><body>
<span data-page-analytics-event="vacancy_search_suitable_item"><a href="https://hh.ru/vacancy/1">a</a></span>
<span data-page-analytics-event="vacancy_search_suitable_item"><a href="https://hh.ru/vacancy/2">b</a></span>
</body></html>`,
		"https://hh.ru/vacancy/1": `<html><body><h1>Go developer</h1><div data-qa="vacancy-salary">от 100 000 до 150 000 ₽</div></body></html>`,
		"https://hh.ru/vacancy/2": `<html><body><h1>SRE</h1><div data-qa="vacancy-salary">По договорённости</div></body></html>`,
	}
}

func newTestContext(out, errOut *bytes.Buffer) *Context {
	return &Context{
		Out:    out,
		Err:    errOut,
		UI:     ui.New(out, errOut, ui.ColorNever, true),
		Config: config.Config{},
		Logger: zerolog.Nop(),
	}
}

func runTestCrawl(t *testing.T, c *CrawlCmd, ctx *Context) {
	t.Helper()
	cr := crawler.New(scraper.NewHHRu(), testSite(), crawler.Options{Logger: zerolog.Nop()})
	if err := c.execute(context.Background(), ctx, cr, models.SearchParams{StartURL: testStart}); err != nil {
		t.Fatalf("execute: %v", err)
	}
}

func TestCrawlWritesJSON(t *testing.T) {
	var out, errOut bytes.Buffer
	ctx := newTestContext(&out, &errOut)
	ctx.JSONOutput = true

	runTestCrawl(t, &CrawlCmd{}, ctx)

	var rows []map[string]any
	if err := json.Unmarshal(out.Bytes(), &rows); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out.String())
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 listings, got %d", len(rows))
	}
	if rows[0]["title"] != "Go developer" {
		t.Fatalf("unexpected title %v", rows[0]["title"])
	}
	bounds, ok := rows[0]["salary"].([]any)
	if !ok || len(bounds) != 2 || bounds[0] != 100000.0 || bounds[1] != 150000.0 {
		t.Fatalf("unexpected salary %v", rows[0]["salary"])
	}
	if rows[1]["salary"] != nil {
		t.Fatalf("expected null salary, got %v", rows[1]["salary"])
	}
	if !strings.Contains(errOut.String(), "summary: pages=1 listings=2 failed=0") {
		t.Fatalf("missing summary in %q", errOut.String())
	}
}

func TestCrawlStreamWritesJSONLines(t *testing.T) {
	var out, errOut bytes.Buffer
	ctx := newTestContext(&out, &errOut)

	runTestCrawl(t, &CrawlCmd{Stream: true}, ctx)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 json lines, got %d: %q", len(lines), out.String())
	}
	for _, line := range lines {
		var row map[string]any
		if err := json.Unmarshal([]byte(line), &row); err != nil {
			t.Fatalf("line %q: %v", line, err)
		}
	}
}

func TestCrawlNewOnlyAndSeenUpdate(t *testing.T) {
	dir := t.TempDir()
	seenPath := filepath.Join(dir, "seen.json")
	newOut := filepath.Join(dir, "new.json")

	previous := []models.Listing{{Site: "hhru", Title: models.StringPtr("Go developer"), URL: "https://hh.ru/vacancy/1?from=serp"}}
	if err := seen.WriteListings(seenPath, previous); err != nil {
		t.Fatalf("seed seen: %v", err)
	}

	var out, errOut bytes.Buffer
	ctx := newTestContext(&out, &errOut)
	ctx.JSONOutput = true

	runTestCrawl(t, &CrawlCmd{Seen: seenPath, NewOnly: true, NewOut: newOut, SeenUpdate: true}, ctx)

	var rows []models.Listing
	if err := json.Unmarshal(out.Bytes(), &rows); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if len(rows) != 1 || rows[0].URL != "https://hh.ru/vacancy/2" {
		t.Fatalf("expected only vacancy 2, got %+v", rows)
	}

	unseen, err := seen.ReadListings(newOut)
	if err != nil {
		t.Fatalf("read new-out: %v", err)
	}
	if len(unseen) != 1 {
		t.Fatalf("expected 1 unseen listing, got %d", len(unseen))
	}

	merged, err := seen.ReadListings(seenPath)
	if err != nil {
		t.Fatalf("read seen: %v", err)
	}
	if len(merged) != 2 {
		t.Fatalf("expected merged history of 2, got %d", len(merged))
	}
	if !strings.Contains(errOut.String(), "new=1") {
		t.Fatalf("missing new count in %q", errOut.String())
	}
}

func TestCrawlOutputFileUsesExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "listings.csv")
	var out, errOut bytes.Buffer
	ctx := newTestContext(&out, &errOut)

	runTestCrawl(t, &CrawlCmd{Output: path}, ctx)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !strings.HasPrefix(string(data), "site,title,salary_min,salary_max") {
		t.Fatalf("expected csv header, got %q", string(data))
	}
	if out.Len() != 0 {
		t.Fatalf("stdout should be empty, got %q", out.String())
	}
}

func TestCrawlValidate(t *testing.T) {
	cases := []struct {
		name string
		cmd  CrawlCmd
		want string
	}{
		{"new-only needs seen", CrawlCmd{NewOnly: true}, "--new-only requires --seen"},
		{"new-out needs seen", CrawlCmd{NewOut: "a.json"}, "--new-out requires --seen"},
		{"seen-update needs seen", CrawlCmd{SeenUpdate: true}, "--seen-update requires --seen"},
		{"stream and new-only", CrawlCmd{Stream: true, NewOnly: true, Seen: "s.json"}, "--stream cannot be combined"},
		{"stream format", CrawlCmd{Stream: true, Format: "csv"}, "--stream always writes jsonl"},
		{"negative limit", CrawlCmd{Limit: -1}, "must not be negative"},
		{"output equals seen", CrawlCmd{Seen: "s.json", Output: "s.json"}, "--output path must differ from --seen"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cmd.validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}

	ok := CrawlCmd{Stream: true, Format: "jsonl"}
	if err := ok.validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCrawlResolveParams(t *testing.T) {
	cfg := config.Config{DefaultQuery: "golang", DefaultArea: "2", MaxPages: 3}

	params, err := (&CrawlCmd{Limit: 5}).resolveParams(cfg)
	if err != nil {
		t.Fatalf("resolveParams: %v", err)
	}
	if params.Query != "golang" || params.Area != "2" || params.MaxPages != 3 || params.Limit != 5 {
		t.Fatalf("unexpected params %+v", params)
	}

	if _, err := (&CrawlCmd{}).resolveParams(config.Config{}); err == nil {
		t.Fatal("expected error without query or start url")
	}
}

func TestResolveFormat(t *testing.T) {
	var out bytes.Buffer
	ctx := &Context{Out: &out}

	cases := []struct {
		name   string
		json   bool
		plain  bool
		format string
		output string
		want   export.Format
	}{
		{"json flag", true, false, "", "", export.FormatJSON},
		{"plain flag", false, true, "", "", export.FormatTSV},
		{"explicit", false, false, "md", "", export.FormatMarkdown},
		{"extension yaml", false, false, "", "out.yml", export.FormatYAML},
		{"extension jsonl", false, false, "", "out.ndjson", export.FormatJSONL},
		{"not a terminal", false, false, "", "", export.FormatCSV},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx.JSONOutput = tc.json
			ctx.PlainText = tc.plain
			got, err := resolveFormat(ctx, tc.format, tc.output)
			if err != nil {
				t.Fatalf("resolveFormat: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestFormatCrawlSummary(t *testing.T) {
	stats := crawler.Stats{Pages: 12, Emitted: 1200, Failed: 2, Blocked: 1}

	got := formatCrawlSummary(stats, 0, false)
	want := "summary: pages=12 listings=1,200 failed=2 blocked=1"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}

	got = formatCrawlSummary(crawler.Stats{}, 3, true)
	if !strings.HasSuffix(got, "new=3") {
		t.Fatalf("expected new count, got %q", got)
	}
}

func TestUpdateSeenHistoryCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.json")
	input := []models.Listing{{Site: "hhru", URL: fmt.Sprintf("https://hh.ru/vacancy/%d", 7)}}

	if err := updateSeenHistory(path, input); err != nil {
		t.Fatalf("updateSeenHistory: %v", err)
	}
	got, err := seen.ReadListings(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 listing, got %d", len(got))
	}
}

type cancelAfter struct {
	pages  pageFetcher
	target string
	cancel context.CancelFunc
}

func (c cancelAfter) Document(ctx context.Context, target string) (*goquery.Document, error) {
	if target == c.target {
		c.cancel()
	}
	return c.pages.Document(ctx, target)
}

func TestCrawlInterruptedStreamKeepsWrittenListings(t *testing.T) {
	var out, errOut bytes.Buffer
	ctx := newTestContext(&out, &errOut)

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fetcher := cancelAfter{pages: testSite(), target: "https://hh.ru/vacancy/1", cancel: cancel}
	cr := crawler.New(scraper.NewHHRu(), fetcher, crawler.Options{Logger: zerolog.Nop()})

	if err := (&CrawlCmd{Stream: true}).execute(runCtx, ctx, cr, models.SearchParams{StartURL: testStart}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if lines := strings.Count(out.String(), "\n"); lines != 1 {
		t.Fatalf("expected 1 streamed listing, got %d: %q", lines, out.String())
	}
	if !strings.Contains(errOut.String(), "Interrupted; 1 listings already written.") {
		t.Fatalf("missing interrupt warning in %q", errOut.String())
	}
}
