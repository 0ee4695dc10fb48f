package scraper

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func TestAbsoluteURL(t *testing.T) {
	base := "https://hh.ru/search/vacancy?text=python"
	cases := []struct {
		href string
		want string
	}{
		{"/vacancy/123", "https://hh.ru/vacancy/123"},
		{"https://novosibirsk.hh.ru/vacancy/1", "https://novosibirsk.hh.ru/vacancy/1"},
		{"//hh.ru/vacancy/2", "https://hh.ru/vacancy/2"},
		{"?text=python&page=1", "https://hh.ru/search/vacancy?text=python&page=1"},
		{"  ", ""},
	}

	for _, tc := range cases {
		got := absoluteURL(base, tc.href)
		if got != tc.want {
			t.Fatalf("absoluteURL(%q) = %q, want %q", tc.href, got, tc.want)
		}
	}
}

func TestCleanText(t *testing.T) {
	got := cleanText("  Python   &amp;\n Django  ")
	if got != "Python & Django" {
		t.Fatalf("cleanText() = %q", got)
	}
}

func TestTextFragments(t *testing.T) {
	doc := mustDoc(t, `<div id="s">от <span>100&nbsp;000</span> до <b>150&nbsp;000</b> ₽</div>`)

	got := textFragments(doc.Find("#s"))
	want := []string{"от ", "100\u00a0000", " до ", "150\u00a0000", " ₽"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("textFragments() = %#v, want %#v", got, want)
	}

	if missing := textFragments(doc.Find("#missing")); len(missing) != 0 {
		t.Fatalf("expected no fragments for missing selection, got %#v", missing)
	}
}

func TestJSONLDTitle(t *testing.T) {
	doc := mustDoc(t, `
<html><head>
<script type="application/ld+json">not json</script>
<script type="application/ld+json">
{
  "@graph": [
    {"@type": "Organization", "name": "Acme"},
    {"@type": "JobPosting", "title": "  Python   developer "}
  ]
}
</script>
</head><body></body></html>`)

	if got := jsonLDTitle(doc); got != "Python developer" {
		t.Fatalf("jsonLDTitle() = %q", got)
	}
}

func TestLookup(t *testing.T) {
	for _, name := range []string{"hhru", "HH.ru", "www.hh.ru", " headhunter "} {
		site, err := Lookup(name)
		if err != nil {
			t.Fatalf("Lookup(%q) error = %v", name, err)
		}
		if site.Name() != SiteHHRu {
			t.Fatalf("Lookup(%q) = %s", name, site.Name())
		}
	}

	if _, err := Lookup("linkedin"); !errors.Is(err, ErrUnknownSite) {
		t.Fatalf("Lookup(linkedin) error = %v, want ErrUnknownSite", err)
	}
	if _, err := Lookup(""); !errors.Is(err, ErrUnknownSite) {
		t.Fatalf("Lookup(\"\") error = %v, want ErrUnknownSite", err)
	}
}

func TestHTTPError(t *testing.T) {
	err := &HTTPError{URL: "https://hh.ru/vacancy/1", StatusCode: 404}
	if !strings.Contains(err.Error(), "404") {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("failed to parse document: %v", err)
	}
	return doc
}
