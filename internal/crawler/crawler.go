// Package crawler implements the priority-frontier HTML crawler (C9): a BFS
// over same-domain pages, biased toward shallow, non-paginated URLs.
package crawler

import (
	"container/heap"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/spider-crawler/spider/internal/config"
	"github.com/spider-crawler/spider/internal/htmlparse"
	"github.com/spider-crawler/spider/internal/patterns"
	"github.com/spider-crawler/spider/internal/urlutil"
)

const idleTimeout = 10 * time.Second

// Crawl runs the priority-frontier BFS starting at start, scoped to
// root_netloc per cfg.IncludeSubdomains, and returns every URL admitted to
// "found" per the html-only filter.
func Crawl(ctx context.Context, client *http.Client, start string, cfg config.CrawlerConfig, p *patterns.ParsingPatterns) []string {
	if canonical, ok := urlutil.Normalize(start, start, p); ok {
		start = canonical
	}
	rootNetloc := urlutil.ExtractHost(start)
	allowed := func(u string) bool {
		return urlutil.SameDomain(u, rootNetloc, cfg.IncludeSubdomains)
	}

	c := &crawler{
		client:  client,
		cfg:     cfg,
		p:       p,
		allowed: allowed,
		sem:     semaphore.NewWeighted(int64(cfg.Concurrency)),
		limiter: rate.NewLimiter(rate.Limit(cfg.Concurrency), cfg.Concurrency),
		seen:    make(map[string]struct{}),
		found:   make(map[string]struct{}),
	}

	startPrio := priority(start, p)
	c.push(start, startPrio)
	if !cfg.HTMLOnly || patterns.IsProbablyHTML(start, p) {
		c.found[start] = struct{}{}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.worker(ctx)
		}()
	}

	watchdog(ctx, cancel, c, cfg.MaxPages)
	wg.Wait()

	out := make([]string, 0, len(c.found))
	for u := range c.found {
		out = append(out, u)
	}
	return out
}

type crawler struct {
	client  *http.Client
	cfg     config.CrawlerConfig
	p       *patterns.ParsingPatterns
	allowed func(string) bool
	sem     *semaphore.Weighted
	limiter *rate.Limiter

	mu        sync.Mutex
	pq        priorityQueue
	seen      map[string]struct{}
	found     map[string]struct{}
	lastBusy  time.Time
}

// priority scores u per the spec: pages at root path sort first, then
// shallower paths, with a penalty for query keys that look like pagination.
func priority(u string, p *patterns.ParsingPatterns) int {
	path := "/"
	if i := strings.Index(u, "://"); i >= 0 {
		rest := u[i+3:]
		if j := strings.IndexAny(rest, "/?#"); j >= 0 {
			path = rest[j:]
			if k := strings.IndexAny(path, "?#"); k >= 0 {
				path = path[:k]
			}
		} else {
			path = ""
		}
	}

	score := 10 + min(50, urlutil.PathSlashCount(u)*5)
	if path == "" || path == "/" {
		score = 5
	}

	for key := range urlutil.QueryKeys(u) {
		if _, ok := p.PaginationHints[key]; ok {
			score += 20
			break
		}
	}
	return score
}

func (c *crawler) push(u string, prio int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	heap.Push(&c.pq, &pqItem{url: u, prio: prio})
	c.lastBusy = time.Now()
}

// pop returns the next item, or ("", false) if the frontier is currently
// empty.
func (c *crawler) pop() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pq.Len() == 0 {
		return "", false
	}
	item := heap.Pop(&c.pq).(*pqItem)
	return item.url, true
}

func (c *crawler) markSeen(u string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.seen[u]; ok {
		return false
	}
	c.seen[u] = struct{}{}
	c.lastBusy = time.Now()
	return true
}

func (c *crawler) seenCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

func (c *crawler) addFound(u string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.found[u] = struct{}{}
}

func (c *crawler) isSeen(u string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.seen[u]
	return ok
}

func (c *crawler) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if c.seenCount() >= c.cfg.MaxPages {
			return
		}

		u, ok := c.pop()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-time.After(200 * time.Millisecond):
				continue
			}
		}

		if !c.markSeen(u) || !c.allowed(u) || !patterns.IsProbablyHTML(u, c.p) {
			continue
		}

		c.fetchAndExpand(ctx, u)
	}
}

func (c *crawler) fetchAndExpand(ctx context.Context, u string) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return
	}
	defer c.sem.Release(1)
	if err := c.limiter.Wait(ctx); err != nil {
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return
	}
	resp, err := c.client.Do(req)
	if err != nil {
		if c.cfg.Verbose {
			slog.Debug("crawler fetch failed", "url", u, "err", err)
		}
		return
	}
	defer resp.Body.Close()

	ct := resp.Header.Get("Content-Type")
	if c.p.HTMLContentType != nil && !c.p.HTMLContentType.MatchString(ct) {
		return
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return
	}

	finalURL := u
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	links := htmlparse.ExtractLinks(finalURL, string(body), c.cfg.IncludeAssets, c.cfg.HTMLOnly, c.p)

	var newLinksAdded, rejectedDomain, rejectedHTML, alreadySeen int
	for _, link := range links {
		if link == "" {
			continue
		}
		if !c.allowed(link) {
			rejectedDomain++
			continue
		}
		isHTML := patterns.IsProbablyHTML(link, c.p)
		if !c.cfg.HTMLOnly || isHTML {
			c.addFound(link)
		}
		if !c.isSeen(link) && isHTML {
			c.push(link, priority(link, c.p))
			newLinksAdded++
		} else if c.isSeen(link) {
			alreadySeen++
		} else {
			rejectedHTML++
		}
	}

	if c.cfg.Verbose {
		slog.Debug("link processing",
			"url", u,
			"new_links_added", newLinksAdded,
			"rejected_domain", rejectedDomain,
			"rejected_html", rejectedHTML,
			"already_seen", alreadySeen,
		)
	}
}

// watchdog cancels ctx once either the frontier is empty and nothing has been
// pushed or marked seen for idleTimeout, or seen reaches maxPages.
func watchdog(ctx context.Context, cancel context.CancelFunc, c *crawler, maxPages int) {
	c.mu.Lock()
	c.lastBusy = time.Now()
	c.mu.Unlock()

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.seenCount() >= maxPages {
				cancel()
				return
			}
			c.mu.Lock()
			idleFor := time.Since(c.lastBusy)
			empty := c.pq.Len() == 0
			c.mu.Unlock()
			if empty && idleFor >= idleTimeout {
				cancel()
				return
			}
		}
	}
}

// pqItem is one entry in the priority frontier; lower prio dequeues first.
type pqItem struct {
	url  string
	prio int
}

type priorityQueue []*pqItem

func (pq priorityQueue) Len() int            { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool  { return pq[i].prio < pq[j].prio }
func (pq priorityQueue) Swap(i, j int)       { pq[i], pq[j] = pq[j], pq[i] }
func (pq *priorityQueue) Push(x interface{}) { *pq = append(*pq, x.(*pqItem)) }
func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}
