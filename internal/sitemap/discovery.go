package sitemap

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/spider-crawler/spider/internal/compress"
	"github.com/spider-crawler/spider/internal/config"
	"github.com/spider-crawler/spider/internal/queue"
)

var sitemapDirective = regexp.MustCompile(`(?i)^\s*sitemap:\s*(.+)$`)

// Discover runs the C8 pipeline against baseURL: robots.txt sitemap
// directives, falling back to a common-path probe, expanded through C6/C7,
// clipped per-sitemap and globally, and returned sorted.
func Discover(ctx context.Context, client *http.Client, baseURL string, cfg config.SitemapConfig) []string {
	candidates := fromRobots(ctx, client, baseURL, cfg)
	if len(candidates) == 0 {
		candidates = probeCommonPaths(ctx, client, baseURL, cfg)
	}
	if len(candidates) == 0 {
		return nil
	}

	perSitemap := make(map[string]int)
	var mu sync.Mutex

	pool := &queue.Pool[string, string]{
		Concurrency:   cfg.Concurrency,
		WorkerTimeout: cfg.WorkerTimeout,
		Process: func(ctx context.Context, sitemapURL string) []string {
			urls := ParseSitemapURLs(client, sitemapURL)
			if len(urls) == 0 {
				return nil
			}
			mu.Lock()
			already := perSitemap[sitemapURL]
			room := cfg.MaxURLsPerSitemap - already
			mu.Unlock()
			if cfg.MaxURLsPerSitemap > 0 && room <= 0 {
				return nil
			}
			if cfg.MaxURLsPerSitemap > 0 && room < len(urls) {
				urls = urls[:room]
			}
			mu.Lock()
			perSitemap[sitemapURL] += len(urls)
			mu.Unlock()
			return urls
		},
		Expand: func(ctx context.Context, sitemapURL string) []string {
			return GetNestedSitemaps(client, sitemapURL)
		},
	}

	results := pool.Run(ctx, candidates)

	if cfg.MaxTotalURLs > 0 && len(results) > cfg.MaxTotalURLs {
		sort.Strings(results)
		results = results[:cfg.MaxTotalURLs]
	}

	sort.Strings(results)
	return results
}

// fromRobots attempts up to cfg.Retry times to fetch baseURL/robots.txt and
// scan it for Sitemap: directives, resolving relative entries against the
// (possibly redirected) robots URL.
func fromRobots(ctx context.Context, client *http.Client, baseURL string, cfg config.SitemapConfig) []string {
	robotsURL, err := url.JoinPath(strings.TrimRight(baseURL, "/"), "robots.txt")
	if err != nil {
		return nil
	}

	for attempt := 0; attempt < cfg.Retry; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
		if err != nil {
			continue
		}
		for k, v := range cfg.Headers {
			req.Header.Set(k, v)
		}

		resp, err := client.Do(req)
		if err != nil {
			slog.Warn("robots.txt fetch failed", "url", robotsURL, "attempt", attempt, "err", err)
			continue
		}

		raw, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			continue
		}
		body, err := compress.MaybeDecompress(robotsURL, raw)
		if err != nil {
			continue
		}

		finalURL := resp.Request.URL.String()

		var sitemaps []string
		scanner := bufio.NewScanner(strings.NewReader(toUTF8(body)))
		for scanner.Scan() {
			m := sitemapDirective.FindStringSubmatch(scanner.Text())
			if m == nil {
				continue
			}
			resolved := resolveAgainst(finalURL, strings.TrimSpace(m[1]))
			if resolved != "" {
				sitemaps = append(sitemaps, resolved)
			}
		}

		if len(sitemaps) > 0 {
			return sitemaps
		}
	}
	return nil
}

// probeCommonPaths issues concurrent GETs against each of cfg.CommonPaths,
// paced by a rate.Limiter so a slow or misbehaving host isn't hammered, and
// keeps every candidate whose XML root is <urlset> or <sitemapindex>.
func probeCommonPaths(ctx context.Context, client *http.Client, baseURL string, cfg config.SitemapConfig) []string {
	limiter := rate.NewLimiter(rate.Limit(cfg.Concurrency), 1)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var found []string

	for _, p := range cfg.CommonPaths {
		candidate := resolveAgainst(baseURL, p)
		if candidate == "" {
			continue
		}

		wg.Add(1)
		go func(candidate string) {
			defer wg.Done()
			if err := limiter.Wait(ctx); err != nil {
				return
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, candidate, nil)
			if err != nil {
				return
			}
			for k, v := range cfg.Headers {
				req.Header.Set(k, v)
			}
			resp, err := client.Do(req)
			if err != nil {
				return
			}
			defer resp.Body.Close()
			raw, err := io.ReadAll(resp.Body)
			if err != nil {
				return
			}
			body, err := compress.MaybeDecompress(candidate, raw)
			if err != nil {
				return
			}
			if !sniffRoot(body) {
				return
			}
			mu.Lock()
			found = append(found, candidate)
			mu.Unlock()
		}(candidate)
	}
	wg.Wait()

	sort.Strings(found)
	return found
}

func resolveAgainst(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ""
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return b.ResolveReference(r).String()
}

// toUTF8 decodes body leniently, substituting the Unicode replacement
// character for any byte sequence that isn't valid UTF-8.
func toUTF8(body []byte) string {
	return strings.ToValidUTF8(string(body), "�")
}
