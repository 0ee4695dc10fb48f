package crawler

import (
	"context"
	"io"
	"sync"

	"github.com/benjaminestes/robots/v2"
)

// RobotsPolicy decides whether a URL may be fetched.
type RobotsPolicy interface {
	Allowed(ctx context.Context, target string) bool
}

// RobotsGetter fetches a robots.txt file. The caller closes body.
type RobotsGetter func(ctx context.Context, target string) (status int, body io.ReadCloser, err error)

type allowAll struct{}

func (allowAll) Allowed(context.Context, string) bool { return true }

// RobotsCache fetches robots.txt once per host and remembers the matcher.
// A robots.txt that cannot be fetched is treated as a server error, which
// disallows the whole host.
type RobotsCache struct {
	get     RobotsGetter
	agent   string
	testers map[string]func(string) bool
	mu      sync.Mutex
}

func NewRobotsCache(get RobotsGetter, agent string) *RobotsCache {
	if agent == "" {
		agent = "*"
	}
	return &RobotsCache{
		get:     get,
		agent:   agent,
		testers: map[string]func(string) bool{},
	}
}

func (r *RobotsCache) Allowed(ctx context.Context, target string) bool {
	rtxtURL, err := robots.Locate(target)
	if err != nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	test, ok := r.testers[rtxtURL]
	if !ok {
		test = r.load(ctx, rtxtURL)
		r.testers[rtxtURL] = test
	}
	return test(target)
}

func (r *RobotsCache) load(ctx context.Context, rtxtURL string) func(string) bool {
	status, body, err := r.get(ctx, rtxtURL)
	if err != nil {
		return r.unavailable()
	}
	defer body.Close()

	rtxt, err := robots.From(status, body)
	if err != nil {
		return r.unavailable()
	}
	return rtxt.Tester(r.agent)
}

func (r *RobotsCache) unavailable() func(string) bool {
	rtxt, _ := robots.From(503, nil)
	return rtxt.Tester(r.agent)
}
