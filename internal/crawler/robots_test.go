package crawler

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type robotsServer struct {
	status int
	body   string
	err    error
	calls  map[string]int
}

func (s *robotsServer) get(_ context.Context, target string) (int, io.ReadCloser, error) {
	if s.calls == nil {
		s.calls = map[string]int{}
	}
	s.calls[target]++
	if s.err != nil {
		return 0, nil, s.err
	}
	return s.status, io.NopCloser(strings.NewReader(s.body)), nil
}

func TestRobotsCacheAppliesRules(t *testing.T) {
	server := &robotsServer{status: 200, body: "User-agent: *\nDisallow: /applicant/\n"}
	cache := NewRobotsCache(server.get, "jobparser")
	ctx := context.Background()

	assert.True(t, cache.Allowed(ctx, "https://hh.ru/vacancy/1"))
	assert.False(t, cache.Allowed(ctx, "https://hh.ru/applicant/resumes"))
	assert.True(t, cache.Allowed(ctx, "https://hh.ru/search/vacancy?text=go"))

	assert.Equal(t, 1, server.calls["https://hh.ru/robots.txt"], "robots.txt is fetched once per host")
}

func TestRobotsCacheMissingFileAllowsAll(t *testing.T) {
	server := &robotsServer{status: 404}
	cache := NewRobotsCache(server.get, "")

	assert.True(t, cache.Allowed(context.Background(), "https://hh.ru/anything"))
}

func TestRobotsCacheFetchErrorDisallows(t *testing.T) {
	server := &robotsServer{err: errors.New("connection reset")}
	cache := NewRobotsCache(server.get, "jobparser")

	assert.False(t, cache.Allowed(context.Background(), "https://hh.ru/vacancy/1"))
}

func TestRobotsCacheSeparatesHosts(t *testing.T) {
	server := &robotsServer{status: 200, body: "User-agent: *\nAllow: /\n"}
	cache := NewRobotsCache(server.get, "jobparser")
	ctx := context.Background()

	cache.Allowed(ctx, "https://hh.ru/vacancy/1")
	cache.Allowed(ctx, "https://novosibirsk.hh.ru/vacancy/2")

	assert.Len(t, server.calls, 2)
}
