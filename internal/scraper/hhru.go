package scraper

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/jimezsa/jobparser/internal/models"
	"github.com/jimezsa/jobparser/internal/salary"
)

const (
	hhBaseURL    = "https://hh.ru"
	hhSearchPath = "/search/vacancy"

	hhNextPageSelector = "a[data-qa='pager-next']"
	hhVacancySelector  = "span[data-page-analytics-event='vacancy_search_suitable_item']"
	hhSalarySelector   = "div[data-qa='vacancy-salary']"
)

type HHRu struct {
	now func() time.Time
}

func NewHHRu() *HHRu {
	return &HHRu{now: time.Now}
}

func (h *HHRu) Name() string {
	return SiteHHRu
}

func (h *HHRu) AllowedDomains() []string {
	return []string{"hh.ru"}
}

// SearchURL builds the vacancy search URL. An explicit start URL wins.
func (h *HHRu) SearchURL(params models.SearchParams) string {
	if start := strings.TrimSpace(params.StartURL); start != "" {
		return start
	}
	values := url.Values{}
	values.Set("text", strings.TrimSpace(params.Query))
	if area := strings.TrimSpace(params.Area); area != "" {
		values.Set("area", area)
	}
	return fmt.Sprintf("%s%s?%s", hhBaseURL, hhSearchPath, values.Encode())
}

func (h *HHRu) ParseSearchPage(doc *goquery.Document, pageURL string) SearchPage {
	var page SearchPage

	if href := doc.Find(hhNextPageSelector).First().AttrOr("href", ""); href != "" {
		page.Next = absoluteURL(pageURL, href)
	}

	seen := map[string]struct{}{}
	add := func(href string) {
		link := absoluteURL(pageURL, href)
		if link == "" {
			return
		}
		if _, ok := seen[link]; ok {
			return
		}
		seen[link] = struct{}{}
		page.Listings = append(page.Listings, link)
	}

	doc.Find(hhVacancySelector).Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			add(href)
		}
		s.Find("[href]").Each(func(_ int, a *goquery.Selection) {
			add(a.AttrOr("href", ""))
		})
	})

	return page
}

func (h *HHRu) ParseListing(doc *goquery.Document, pageURL string) (models.Listing, error) {
	fragments := textFragments(doc.Find(hhSalarySelector))
	value, err := salary.Parse(fragments)
	if err != nil {
		return models.Listing{}, fmt.Errorf("hhru: %s: %w", pageURL, err)
	}

	listing := models.Listing{
		Site:       SiteHHRu,
		Salary:     value,
		SalaryText: cleanText(salary.Normalize(fragments)),
		URL:        pageURL,
		FetchedAt:  h.now().UTC(),
	}

	title := cleanText(doc.Find("h1").First().Text())
	if title == "" {
		title = jsonLDTitle(doc)
	}
	if title != "" {
		listing.Title = models.StringPtr(title)
	}

	return listing, nil
}
