package scraper

import (
	"errors"

	"github.com/PuerkitoBio/goquery"
	"github.com/jimezsa/jobparser/internal/models"
)

var ErrUnknownSite = errors.New("unknown site")

// SearchPage is what a result page yields: where to go next and which
// listings to visit. URLs are absolute.
type SearchPage struct {
	Next     string
	Listings []string
}

// Site knows the URLs and markup of one job board.
type Site interface {
	Name() string
	AllowedDomains() []string
	SearchURL(params models.SearchParams) string
	ParseSearchPage(doc *goquery.Document, pageURL string) SearchPage
	ParseListing(doc *goquery.Document, pageURL string) (models.Listing, error)
}
