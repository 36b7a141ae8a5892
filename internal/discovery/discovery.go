// Package discovery wires C8 (sitemap discovery), C9 (HTTP crawler), and C10
// (language collapser) into the top-level Discover operation.
package discovery

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/spider-crawler/spider/internal/config"
	"github.com/spider-crawler/spider/internal/patterns"
	"github.com/spider-crawler/spider/internal/postprocess"

	"github.com/spider-crawler/spider/internal/crawler"
	"github.com/spider-crawler/spider/internal/sitemap"
)

// Discover runs the sitemap engine first; if it yields nothing, it falls
// back to the HTTP crawler. The union is filtered to http(s) URLs and passed
// through the language collapser.
func Discover(ctx context.Context, baseURL string, cfg *config.Config) ([]string, error) {
	p, err := patterns.Compile(cfg.Parsing)
	if err != nil {
		return nil, err
	}

	client := &http.Client{Timeout: cfg.Sitemap.Timeout}

	urls := sitemap.Discover(ctx, client, baseURL, cfg.Sitemap)
	if len(urls) == 0 {
		slog.Info("no URLs from sitemap; falling back to HTTP crawler", "base_url", baseURL)
		urls = crawler.Crawl(ctx, client, baseURL, cfg.Crawler, p)
		slog.Info("HTTP crawler finished", "found", len(urls))
	}

	urls = filterHTTP(urls)

	if cfg.Postprocess.CollapseLanguageVariants {
		defaults := append([]string{""}, cfg.Postprocess.DefaultLanguages...)
		urls = postprocess.CollapseLanguageVariants(urls, defaults, p)
	} else {
		urls = dedupeSorted(urls)
	}

	return urls, nil
}

func filterHTTP(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
			out = append(out, u)
		}
	}
	return out
}

func dedupeSorted(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}
