package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	fhttp "github.com/bogdanfinn/fhttp"
	"github.com/jimezsa/jobparser/internal/network"
	xhtml "golang.org/x/net/html"
)

// HTTPError reports a response the fetcher refused to parse.
type HTTPError struct {
	URL        string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.URL)
}

// DocumentFetcher downloads pages through the shared network client.
type DocumentFetcher struct {
	client  *network.Client
	headers map[string]string
}

func NewDocumentFetcher(client *network.Client, headers map[string]string) *DocumentFetcher {
	copied := make(map[string]string, len(headers))
	for key, value := range headers {
		copied[strings.ToLower(key)] = value
	}
	return &DocumentFetcher{client: client, headers: copied}
}

// Document fetches target and parses it as HTML. Redirects are followed;
// doc.Url is the final location.
func (f *DocumentFetcher) Document(ctx context.Context, target string) (*goquery.Document, error) {
	req, err := fhttp.NewRequestWithContext(ctx, fhttp.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}

	applyHeaders(req, f.headers)
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, &HTTPError{URL: target, StatusCode: resp.StatusCode}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.Request != nil && resp.Request.URL != nil {
		doc.Url = resp.Request.URL
	}
	return doc, nil
}

// Raw fetches target without interpreting the status. The caller closes
// the body.
func (f *DocumentFetcher) Raw(ctx context.Context, target string) (int, io.ReadCloser, error) {
	resp, err := f.client.Get(ctx, target)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, resp.Body, nil
}

func applyHeaders(req *fhttp.Request, headers map[string]string) {
	values := map[string]string{
		"accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"accept-language": "ru-RU,ru;q=0.9,en-US;q=0.8,en;q=0.7",
	}
	for key, value := range headers {
		values[key] = value
	}
	for key, value := range values {
		req.Header.Set(key, value)
	}
}

func cleanText(value string) string {
	value = html.UnescapeString(value)
	return strings.Join(strings.Fields(value), " ")
}

func absoluteURL(base string, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return baseURL.ResolveReference(ref).String()
}

// textFragments returns every descendant text node of sel in document
// order, whitespace included.
func textFragments(sel *goquery.Selection) []string {
	var out []string
	var walk func(*xhtml.Node)
	walk = func(n *xhtml.Node) {
		if n.Type == xhtml.TextNode {
			out = append(out, n.Data)
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	for _, node := range sel.Nodes {
		walk(node)
	}
	return out
}

// jsonLDTitle returns the title of the first JobPosting embedded as JSON-LD.
func jsonLDTitle(doc *goquery.Document) string {
	var title string
	doc.Find("script[type='application/ld+json']").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		data, err := decodeJSONLD(s.Text())
		if err != nil {
			return true
		}
		title = findJobPostingTitle(data)
		return title == ""
	})
	return title
}

func decodeJSONLD(raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "<!--")
	raw = strings.TrimSuffix(raw, "-->")
	raw = strings.TrimSpace(raw)
	raw = strings.ReplaceAll(raw, "\u2028", "")
	raw = strings.ReplaceAll(raw, "\u2029", "")
	if raw == "" {
		return nil, fmt.Errorf("empty json-ld")
	}

	var data any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, err
	}
	return data, nil
}

func findJobPostingTitle(data any) string {
	switch value := data.(type) {
	case []any:
		for _, item := range value {
			if title := findJobPostingTitle(item); title != "" {
				return title
			}
		}
	case map[string]any:
		if strings.EqualFold(stringValue(value["@type"]), "JobPosting") {
			return cleanText(stringValue(value["title"], value["name"]))
		}
		if graph, ok := value["@graph"]; ok {
			return findJobPostingTitle(graph)
		}
		if main, ok := value["mainEntity"]; ok {
			return findJobPostingTitle(main)
		}
	}
	return ""
}

func stringValue(values ...any) string {
	for _, value := range values {
		if v, ok := value.(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
