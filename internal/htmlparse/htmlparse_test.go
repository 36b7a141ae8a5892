package htmlparse

import (
	"sort"
	"testing"

	"github.com/spider-crawler/spider/internal/config"
	"github.com/spider-crawler/spider/internal/patterns"
)

func compile(t *testing.T) *patterns.ParsingPatterns {
	t.Helper()
	p, err := patterns.Compile(config.Default().Parsing)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return p
}

func TestExtractLinksAnchorsOnly(t *testing.T) {
	html := `<html><body>
		<a href="/a">A</a>
		<a href="/a/b">B</a>
		<a href="https://evil.com/x">evil</a>
		<a href="mailto:x@y.com">mail</a>
		<img src="/img.png">
	</body></html>`

	links := ExtractLinks("https://a.com/", html, false, true, compile(t))
	sort.Strings(links)

	want := []string{"https://a.com/a", "https://a.com/a/b", "https://evil.com/x"}
	if len(links) != len(want) {
		t.Fatalf("ExtractLinks = %v, want %v", links, want)
	}
	for i, w := range want {
		if links[i] != w {
			t.Errorf("links[%d] = %q, want %q", i, links[i], w)
		}
	}
}

func TestExtractLinksIncludesAssetsWhenRequested(t *testing.T) {
	html := `<html><body><img src="/img.png"><a href="/a">A</a></body></html>`
	links := ExtractLinks("https://a.com/", html, true, false, compile(t))

	found := make(map[string]bool)
	for _, l := range links {
		found[l] = true
	}
	if !found["https://a.com/img.png"] {
		t.Fatalf("expected asset link to be included, got %v", links)
	}
}

func TestExtractLinksScansScriptBodyForURLs(t *testing.T) {
	html := `<html><body><script>var u = "https://a.com/deep/link";</script></body></html>`
	links := ExtractLinks("https://a.com/", html, false, true, compile(t))

	found := false
	for _, l := range links {
		if l == "https://a.com/deep/link" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected script body scan to surface %v", links)
	}
}
