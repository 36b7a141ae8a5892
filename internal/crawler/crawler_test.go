package crawler

import (
	"context"
	"io"
	"net/http"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/spider-crawler/spider/internal/config"
	"github.com/spider-crawler/spider/internal/patterns"
	"github.com/spider-crawler/spider/internal/testkit"
)

// stubTransport serves canned responses by request path, ignoring host, so
// tests can exercise host canonicalization without needing real DNS for a
// "www."-prefixed hostname.
type stubTransport struct {
	pages map[string]string
}

func (s *stubTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	body, ok := s.pages[req.URL.Path]
	if !ok {
		return &http.Response{StatusCode: http.StatusNotFound, Body: io.NopCloser(strings.NewReader("")), Header: make(http.Header), Request: req}, nil
	}
	resp := &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
		Request:    req,
	}
	resp.Header.Set("Content-Type", "text/html; charset=utf-8")
	return resp, nil
}

func TestCrawlRespectsDepthAndScope(t *testing.T) {
	ts := testkit.NewTestServer()
	defer ts.Close()

	ts.AddPage("/", `<html><body>
		<a href="/a">a</a>
		<a href="https://evil.example/off-domain">off</a>
		<a href="mailto:x@y.com">mail</a>
	</body></html>`)
	ts.AddPage("/a", `<html><body><a href="/a/b">b</a></body></html>`)
	ts.AddPage("/a/b", `<html><body>no more links here</body></html>`)

	parsingCfg := config.Default().Parsing
	parsingCfg.PreferHTTPS = false // the test server only speaks plain HTTP
	p, err := patterns.Compile(parsingCfg)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	cfg := config.CrawlerConfig{
		IncludeSubdomains: false,
		IncludeAssets:     false,
		HTMLOnly:          true,
		MaxPages:          3,
		Concurrency:       2,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	urls := Crawl(ctx, ts.Server.Client(), ts.URL()+"/", cfg, p)
	sort.Strings(urls)

	want := []string{ts.URL() + "/", ts.URL() + "/a", ts.URL() + "/a/b"}
	sort.Strings(want)

	if len(urls) != len(want) {
		t.Fatalf("Crawl = %v, want %v", urls, want)
	}
	for i, w := range want {
		if urls[i] != w {
			t.Errorf("urls[%d] = %q, want %q", i, urls[i], w)
		}
	}
}

func TestCrawlCanonicalizesWWWBeforeScoping(t *testing.T) {
	client := &http.Client{
		Transport: &stubTransport{
			pages: map[string]string{
				"/":  `<html><body><a href="https://example.com/a">a</a></body></html>`,
				"/a": `<html><body>leaf</body></html>`,
			},
		},
	}

	p, err := patterns.Compile(config.Default().Parsing)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	cfg := config.CrawlerConfig{
		IncludeSubdomains: false,
		HTMLOnly:          true,
		MaxPages:          2,
		Concurrency:       1,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	urls := Crawl(ctx, client, "https://www.example.com/", cfg, p)
	sort.Strings(urls)

	want := []string{"https://example.com/", "https://example.com/a"}
	if len(urls) != len(want) {
		t.Fatalf("Crawl = %v, want %v (www.example.com root must match links normalized to example.com)", urls, want)
	}
	for i, w := range want {
		if urls[i] != w {
			t.Errorf("urls[%d] = %q, want %q", i, urls[i], w)
		}
	}
}

func TestCrawlAdmitsNonHTMLStartWhenHTMLOnlyDisabled(t *testing.T) {
	client := &http.Client{
		Transport: &stubTransport{
			pages: map[string]string{
				"/data.json": `{}`,
			},
		},
	}

	p, err := patterns.Compile(config.Default().Parsing)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	cfg := config.CrawlerConfig{
		HTMLOnly:    false,
		MaxPages:    1,
		Concurrency: 1,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	urls := Crawl(ctx, client, "https://example.com/data.json", cfg, p)
	if len(urls) != 1 || urls[0] != "https://example.com/data.json" {
		t.Fatalf("expected the non-HTML start URL to be admitted when html_only is disabled, got %v", urls)
	}
}

func TestCrawlStopsAtMaxPages(t *testing.T) {
	ts := testkit.NewTestServer()
	defer ts.Close()

	ts.AddPage("/", `<html><body><a href="/a">a</a></body></html>`)
	ts.AddPage("/a", `<html><body><a href="/b">b</a></body></html>`)
	ts.AddPage("/b", `<html><body><a href="/c">c</a></body></html>`)
	ts.AddPage("/c", `<html><body>leaf</body></html>`)

	parsingCfg := config.Default().Parsing
	parsingCfg.PreferHTTPS = false // the test server only speaks plain HTTP
	p, err := patterns.Compile(parsingCfg)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	cfg := config.CrawlerConfig{
		IncludeSubdomains: false,
		HTMLOnly:          true,
		MaxPages:          2,
		Concurrency:       1,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	urls := Crawl(ctx, ts.Server.Client(), ts.URL()+"/", cfg, p)
	if len(urls) > 3 {
		t.Fatalf("expected the crawl to stop near max_pages=2, got %d urls: %v", len(urls), urls)
	}
}
