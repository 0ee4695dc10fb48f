package crawler

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/purell"
	mapset "github.com/deckarep/golang-set/v2"
)

// Kind says what a task's page is expected to contain.
type Kind int

const (
	KindSearch Kind = iota
	KindListing
)

func (k Kind) String() string {
	if k == KindListing {
		return "listing"
	}
	return "search"
}

// Task is one pending page visit. Depth counts search result pages from
// the start URL.
type Task struct {
	URL   string
	Kind  Kind
	Depth int
}

const normalizeFlags = purell.FlagsUsuallySafeGreedy | purell.FlagRemoveFragment | purell.FlagSortQuery

// Frontier is the FIFO work queue of a crawl. Every URL is accepted at most
// once and only when its host belongs to one of the allowed domains.
type Frontier struct {
	queue   []Task
	visited mapset.Set[string]
	domains []string
}

func NewFrontier(allowedDomains []string) *Frontier {
	domains := make([]string, 0, len(allowedDomains))
	for _, domain := range allowedDomains {
		domain = strings.ToLower(strings.TrimSpace(domain))
		if domain != "" {
			domains = append(domains, domain)
		}
	}
	return &Frontier{
		visited: mapset.NewThreadUnsafeSet[string](),
		domains: domains,
	}
}

// Push enqueues task unless it is off-domain, malformed, or already seen.
func (f *Frontier) Push(task Task) bool {
	key, ok := f.key(task.URL)
	if !ok {
		return false
	}
	if !f.visited.Add(key) {
		return false
	}
	f.queue = append(f.queue, task)
	return true
}

// Redirected records that a fetch of from ended at to. It reports false when
// to is off-domain or was already visited under a different URL.
func (f *Frontier) Redirected(from, to string) bool {
	toKey, ok := f.key(to)
	if !ok {
		return false
	}
	if fromKey, ok := f.key(from); ok && fromKey == toKey {
		return true
	}
	return f.visited.Add(toKey)
}

func (f *Frontier) Pop() (Task, bool) {
	if len(f.queue) == 0 {
		return Task{}, false
	}
	task := f.queue[0]
	f.queue[0] = Task{}
	f.queue = f.queue[1:]
	return task, true
}

func (f *Frontier) Len() int {
	return len(f.queue)
}

// Seen is the number of distinct URLs ever accepted.
func (f *Frontier) Seen() int {
	return f.visited.Cardinality()
}

func (f *Frontier) key(raw string) (string, bool) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Host == "" {
		return "", false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", false
	}
	if !f.allowed(parsed.Hostname()) {
		return "", false
	}
	normalized, err := purell.NormalizeURLString(parsed.String(), normalizeFlags)
	if err != nil {
		return "", false
	}
	return normalized, true
}

func (f *Frontier) allowed(host string) bool {
	if len(f.domains) == 0 {
		return true
	}
	host = strings.ToLower(host)
	for _, domain := range f.domains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}
