package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/url"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jimezsa/jobparser/internal/models"
	"github.com/jimezsa/jobparser/internal/salary"
	"github.com/jimezsa/jobparser/internal/ui"
	"github.com/muesli/termenv"
	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatTable    Format = "table"
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
	FormatJSONL    Format = "jsonl"
	FormatMarkdown Format = "md"
	FormatTSV      Format = "tsv"
	FormatYAML     Format = "yaml"
)

type WriteOptions struct {
	ColorEnabled bool
	Hyperlinks   bool
	LinkStyle    LinkStyle
}

type LinkStyle string

const (
	LinkStyleShort LinkStyle = "short"
	LinkStyleFull  LinkStyle = "full"
)

func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "jsonl", "ndjson":
		return FormatJSONL, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "tsv":
		return FormatTSV, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "table", "":
		return FormatTable, nil
	default:
		return "", fmt.Errorf("unknown format: %s", value)
	}
}

func WriteListings(w io.Writer, listings []models.Listing, format Format, opts WriteOptions) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, listings)
	case FormatJSONL:
		return writeJSONL(w, listings)
	case FormatCSV:
		return writeCSV(w, listings, ',')
	case FormatTSV:
		return writeCSV(w, listings, '\t')
	case FormatMarkdown:
		return writeMarkdown(w, listings)
	case FormatYAML:
		return writeYAML(w, listings)
	default:
		return writeTable(w, listings, opts)
	}
}

func writeJSON(w io.Writer, listings []models.Listing) error {
	if listings == nil {
		listings = []models.Listing{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(listings)
}

func writeJSONL(w io.Writer, listings []models.Listing) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, listing := range listings {
		if err := enc.Encode(listing); err != nil {
			return err
		}
	}
	return nil
}

func writeCSV(w io.Writer, listings []models.Listing, delim rune) error {
	writer := csv.NewWriter(w)
	writer.Comma = delim
	if err := writer.Write(csvHeader()); err != nil {
		return err
	}
	for _, listing := range listings {
		if err := writer.Write(csvRow(listing)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func writeTable(w io.Writer, listings []models.Listing, opts WriteOptions) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(tableHeader(), "\t"))
	output := termenv.NewOutput(w)
	for _, listing := range listings {
		fmt.Fprintln(tw, strings.Join(tableRow(listing, output, opts), "\t"))
	}
	return tw.Flush()
}

func writeMarkdown(w io.Writer, listings []models.Listing) error {
	if len(listings) == 0 {
		_, err := fmt.Fprintln(w, "No results.")
		return err
	}
	for _, listing := range listings {
		urlLine := "  URL: -"
		if link := safe(listing.URL); link != "" {
			urlLine = fmt.Sprintf("  URL: [Open vacancy](<%s>)", link)
		}
		lines := []string{
			fmt.Sprintf("- **%s**", orDash(safe(listing.TitleText()))),
			fmt.Sprintf("  Salary: %s", orDash(DisplaySalary(listing.Salary))),
			fmt.Sprintf("  Site: %s", safe(listing.Site)),
			urlLine,
		}
		if listing.SalaryText != "" && listing.Salary.IsAbsent() {
			lines = append(lines, fmt.Sprintf("  Salary (raw): %s", safe(listing.SalaryText)))
		}
		for _, line := range lines {
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
	}
	return nil
}

type yamlListing struct {
	Site       string    `yaml:"site"`
	Title      *string   `yaml:"title"`
	SalaryMin  *float64  `yaml:"salary_min"`
	SalaryMax  *float64  `yaml:"salary_max"`
	SalaryText string    `yaml:"salary_text,omitempty"`
	URL        string    `yaml:"url"`
	FetchedAt  time.Time `yaml:"fetched_at,omitempty"`
}

func writeYAML(w io.Writer, listings []models.Listing) error {
	rows := make([]yamlListing, 0, len(listings))
	for _, listing := range listings {
		row := yamlListing{
			Site:       listing.Site,
			Title:      listing.Title,
			SalaryText: listing.SalaryText,
			URL:        listing.URL,
			FetchedAt:  listing.FetchedAt,
		}
		if low, high, ok := listing.Salary.Bounds(); ok {
			row.SalaryMin = &low
			if listing.Salary.Kind() == salary.KindRange {
				row.SalaryMax = &high
			}
		}
		rows = append(rows, row)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(rows); err != nil {
		return err
	}
	return enc.Close()
}

func csvHeader() []string {
	return []string{
		"site",
		"title",
		"salary_min",
		"salary_max",
		"salary_text",
		"url",
		"fetched_at",
	}
}

func csvRow(listing models.Listing) []string {
	fetched := ""
	if !listing.FetchedAt.IsZero() {
		fetched = listing.FetchedAt.Format(time.RFC3339)
	}
	low, high := salaryColumns(listing.Salary)
	return []string{
		listing.Site,
		listing.TitleText(),
		low,
		high,
		listing.SalaryText,
		listing.URL,
		fetched,
	}
}

// salaryColumns splits a value into min/max cells. A single bound fills
// only the first column.
func salaryColumns(value salary.Value) (string, string) {
	low, ok := value.Min()
	if !ok {
		return "", ""
	}
	if value.Kind() == salary.KindSingle {
		return formatFloat(low), ""
	}
	high, _ := value.Max()
	return formatFloat(low), formatFloat(high)
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// DisplaySalary renders a value with Russian style digit grouping.
func DisplaySalary(value salary.Value) string {
	low, high, ok := value.Bounds()
	if !ok {
		return ""
	}
	if value.Kind() == salary.KindSingle {
		return groupDigits(low) + " " + salary.Currency
	}
	return groupDigits(low) + " – " + groupDigits(high) + " " + salary.Currency
}

func groupDigits(value float64) string {
	if value == math.Trunc(value) {
		return humanize.FormatFloat("# ###.", value)
	}
	return humanize.FormatFloat("# ###,##", value)
}

func safe(value string) string {
	return strings.TrimSpace(value)
}

func orDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}

func tableHeader() []string {
	return []string{
		"site",
		"title",
		"salary",
		"url",
	}
}

func tableRow(listing models.Listing, output *termenv.Output, opts WriteOptions) []string {
	link := safe(listing.URL)
	displayURL := "-"
	if link != "" {
		displayURL = link
		if opts.LinkStyle == LinkStyleShort && opts.Hyperlinks {
			displayURL = shortURLLabel(link)
		}
		displayURL = ui.ColorizeLink(output, opts.ColorEnabled, displayURL)
		if opts.Hyperlinks {
			displayURL = hyperlink(link, displayURL)
		}
	}
	return []string{
		safe(listing.Site),
		orDash(safe(listing.TitleText())),
		orDash(DisplaySalary(listing.Salary)),
		displayURL,
	}
}

func hyperlink(link string, text string) string {
	const esc = "\x1b"
	return esc + "]8;;" + link + esc + "\\" + text + esc + "]8;;" + esc + "\\"
}

func shortURLLabel(raw string) string {
	const maxLen = 60
	label := strings.TrimSpace(raw)
	if parsed, err := url.Parse(raw); err == nil {
		host := strings.TrimPrefix(parsed.Host, "www.")
		if host != "" {
			label = host + parsed.Path
		}
	}
	label = strings.TrimSpace(label)
	if label == "" {
		label = raw
	}
	if len(label) > maxLen {
		label = label[:maxLen-3] + "..."
	}
	return label
}
