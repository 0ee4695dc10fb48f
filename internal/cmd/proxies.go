package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	fhttp "github.com/bogdanfinn/fhttp"
	"github.com/jimezsa/jobparser/internal/config"
	"github.com/jimezsa/jobparser/internal/network"
)

type ProxiesCmd struct {
	Check ProxyCheckCmd `cmd:"" help:"Validate proxies against a target URL."`
}

type ProxyCheckCmd struct {
	Target  string `help:"Target URL." default:"https://hh.ru/robots.txt"`
	Timeout int    `help:"Timeout in seconds." default:"15"`
	Proxies string `help:"Comma-separated proxy URLs to check instead of the configured ones." env:"JOBPARSER_PROXIES"`
}

// Proxy check states. A blocked proxy answered with a status the rotator
// bans on.
const (
	proxyOK      = "ok"
	proxyBlocked = "blocked"
	proxyFailed  = "error"
)

type ProxyCheckResult struct {
	Proxy      string `json:"proxy"`
	Status     string `json:"status"`
	StatusCode int    `json:"status_code,omitempty"`
	LatencyMS  int64  `json:"latency_ms"`
	Error      string `json:"error,omitempty"`
}

func (p *ProxyCheckCmd) Run(ctx *Context) error {
	proxies, err := config.LoadProxies(p.Proxies)
	if err != nil {
		return err
	}
	if len(proxies) == 0 {
		return network.ErrNoProxies
	}

	timeout := time.Duration(p.Timeout) * time.Second
	results := make([]ProxyCheckResult, 0, len(proxies))
	for _, proxy := range proxies {
		result := checkProxy(proxy, p.Target, timeout, ctx.Config.UserAgent)
		ctx.Logger.Debug().Str("proxy", proxy).Str("status", result.Status).Int64("latency_ms", result.LatencyMS).Msg("proxy checked")
		results = append(results, result)
	}

	return writeProxyResults(ctx, results)
}

func checkProxy(proxy, target string, timeout time.Duration, userAgent string) ProxyCheckResult {
	result := ProxyCheckResult{Proxy: proxy}
	failed := func(err error) ProxyCheckResult {
		result.Status = proxyFailed
		result.Error = err.Error()
		return result
	}

	rotator, err := network.NewRotator([]string{proxy}, network.DefaultBanDuration)
	if err != nil {
		return failed(err)
	}
	client, err := network.NewClient(rotator, network.Options{Timeout: timeout, UserAgent: userAgent})
	if err != nil {
		return failed(err)
	}

	reqCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	req, err := fhttp.NewRequestWithContext(reqCtx, fhttp.MethodGet, target, nil)
	if err != nil {
		return failed(err)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return failed(err)
	}
	_ = resp.Body.Close()

	result.LatencyMS = time.Since(start).Milliseconds()
	result.StatusCode = resp.StatusCode
	result.Status = proxyStatus(resp.StatusCode)
	return result
}

func proxyStatus(code int) string {
	switch {
	case code == http.StatusForbidden || code == http.StatusTooManyRequests:
		return proxyBlocked
	case code >= 400:
		return proxyFailed
	default:
		return proxyOK
	}
}

func writeProxyResults(ctx *Context, results []ProxyCheckResult) error {
	if ctx.JSONOutput {
		enc := json.NewEncoder(ctx.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if ctx.PlainText {
		for _, res := range results {
			line := []string{res.Proxy, res.Status, statusCode(res.StatusCode), strconv.FormatInt(res.LatencyMS, 10), res.Error}
			fmt.Fprintln(ctx.Out, strings.Join(line, "\t"))
		}
		return nil
	}

	tw := tabwriter.NewWriter(ctx.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "proxy\tstatus\tcode\tlatency_ms\terror")
	for _, res := range results {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", res.Proxy, res.Status, statusCode(res.StatusCode), res.LatencyMS, res.Error)
	}
	return tw.Flush()
}

func statusCode(code int) string {
	if code == 0 {
		return "-"
	}
	return strconv.Itoa(code)
}
