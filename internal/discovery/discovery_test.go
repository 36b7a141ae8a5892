package discovery

import (
	"context"
	"testing"
	"time"

	"github.com/spider-crawler/spider/internal/config"
	"github.com/spider-crawler/spider/internal/testkit"
)

func TestDiscoverPrefersSitemapOverCrawl(t *testing.T) {
	ts := testkit.NewTestServer()
	defer ts.Close()

	ts.AddPageWithType("/robots.txt", "User-agent: *\nSitemap: "+ts.URL()+"/sitemap.xml\n", "text/plain")
	ts.AddPageWithType("/sitemap.xml", `<?xml version="1.0"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
	<url><loc>`+ts.URL()+`/en/about</loc></url>
	<url><loc>`+ts.URL()+`/fr/about</loc></url>
</urlset>`, "application/xml")
	// If the crawler ran instead, it would only ever find this page.
	ts.AddPage("/", `<html><body><a href="/only-via-crawl">x</a></body></html>`)

	cfg := config.Default()
	cfg.Sitemap.WorkerTimeout = 5 * time.Second
	cfg.Sitemap.Concurrency = 2
	cfg.Postprocess.CollapseLanguageVariants = true
	cfg.Postprocess.DefaultLanguages = []string{"en"}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	urls, err := Discover(ctx, ts.URL(), cfg)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	want := []string{ts.URL() + "/fr/about"}
	if len(urls) != len(want) {
		t.Fatalf("Discover = %v, want %v", urls, want)
	}
	for i, w := range want {
		if urls[i] != w {
			t.Errorf("urls[%d] = %q, want %q", i, urls[i], w)
		}
	}
}

func TestDiscoverFallsBackToCrawlerWhenNoSitemap(t *testing.T) {
	ts := testkit.NewTestServer()
	defer ts.Close()

	ts.SetError("/robots.txt", 404)
	ts.AddPage("/", `<html><body><a href="/a">a</a></body></html>`)
	ts.AddPage("/a", `<html><body>leaf</body></html>`)

	cfg := config.Default()
	cfg.Sitemap.Retry = 1
	cfg.Sitemap.CommonPaths = []string{"/sitemap.xml"}
	cfg.Sitemap.WorkerTimeout = 5 * time.Second
	cfg.Crawler.MaxPages = 2
	cfg.Crawler.Concurrency = 2
	cfg.Postprocess.CollapseLanguageVariants = false
	cfg.Parsing.PreferHTTPS = false // the test server only speaks plain HTTP

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	urls, err := Discover(ctx, ts.URL()+"/", cfg)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	found := make(map[string]bool)
	for _, u := range urls {
		found[u] = true
	}
	if !found[ts.URL()+"/"] || !found[ts.URL()+"/a"] {
		t.Fatalf("expected crawler fallback to surface both pages, got %v", urls)
	}
}
