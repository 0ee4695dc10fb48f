package seen

import (
	"net/url"
	"strings"

	"github.com/jimezsa/jobparser/internal/models"
	"golang.org/x/text/cases"
)

const titlePrefix = "title::"

// DiffStats captures stats for A-B unseen filtering.
type DiffStats struct {
	TotalNew    int
	TotalSeen   int
	InvalidNew  int
	InvalidSeen int
	Unseen      int
}

// InvalidSkipped returns the total invalid records skipped during comparison.
func (s DiffStats) InvalidSkipped() int {
	return s.InvalidNew + s.InvalidSeen
}

// MergeStats captures stats for seen history updates.
type MergeStats struct {
	TotalSeen    int
	TotalInput   int
	InvalidSeen  int
	InvalidInput int
	Added        int
	TotalOut     int
}

// InvalidSkipped returns the total invalid records skipped during merge.
func (s MergeStats) InvalidSkipped() int {
	return s.InvalidSeen + s.InvalidInput
}

// Normalize case-folds and collapses whitespace.
func Normalize(value string) string {
	fields := strings.Fields(cases.Fold().String(strings.TrimSpace(value)))
	return strings.Join(fields, " ")
}

// Key identifies a listing by its URL without query or fragment; hh.ru
// appends tracking parameters to vacancy links. Listings without a usable
// URL fall back to the folded title.
func Key(listing models.Listing) (string, bool) {
	if key := urlKey(listing.URL); key != "" {
		return key, true
	}
	title := Normalize(listing.TitleText())
	if title == "" {
		return "", false
	}
	return titlePrefix + title, true
}

func urlKey(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Host == "" {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(parsed.Host), "www.")
	path := strings.TrimRight(parsed.EscapedPath(), "/")
	return host + path
}

// Diff returns unseen listings from newListings using existing seen keys.
func Diff(newListings []models.Listing, seenListings []models.Listing) ([]models.Listing, DiffStats) {
	stats := DiffStats{
		TotalNew:  len(newListings),
		TotalSeen: len(seenListings),
	}

	seenKeys := make(map[string]struct{}, len(seenListings))
	for _, listing := range seenListings {
		key, ok := Key(listing)
		if !ok {
			stats.InvalidSeen++
			continue
		}
		seenKeys[key] = struct{}{}
	}

	newKeys := make(map[string]struct{}, len(newListings))
	unseen := make([]models.Listing, 0, len(newListings))
	for _, listing := range newListings {
		key, ok := Key(listing)
		if !ok {
			stats.InvalidNew++
			continue
		}
		if _, exists := newKeys[key]; exists {
			continue
		}
		newKeys[key] = struct{}{}
		if _, exists := seenKeys[key]; exists {
			continue
		}
		unseen = append(unseen, listing)
	}

	stats.Unseen = len(unseen)
	return unseen, stats
}

// Merge appends unique new listings into the seen history.
// Existing seen entries win collisions.
func Merge(existingSeen []models.Listing, input []models.Listing) ([]models.Listing, MergeStats) {
	stats := MergeStats{
		TotalSeen:  len(existingSeen),
		TotalInput: len(input),
	}

	keys := make(map[string]struct{}, len(existingSeen)+len(input))
	out := make([]models.Listing, 0, len(existingSeen)+len(input))

	for _, listing := range existingSeen {
		key, ok := Key(listing)
		if !ok {
			stats.InvalidSeen++
			out = append(out, listing)
			continue
		}
		if _, exists := keys[key]; exists {
			continue
		}
		keys[key] = struct{}{}
		out = append(out, listing)
	}

	for _, listing := range input {
		key, ok := Key(listing)
		if !ok {
			stats.InvalidInput++
			continue
		}
		if _, exists := keys[key]; exists {
			continue
		}
		keys[key] = struct{}{}
		out = append(out, listing)
		stats.Added++
	}

	stats.TotalOut = len(out)
	return out, stats
}
