// Package sitemap implements sitemap document parsing (C6) and the
// robots.txt/common-path discovery pipeline built on top of it (C8).
package sitemap

import (
	"bytes"
	"encoding/xml"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/spider-crawler/spider/internal/compress"
)

// urlset is the XML shape of a leaf sitemap document.
type urlset struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

// sitemapindex is the XML shape of a sitemap index document.
type sitemapindex struct {
	XMLName  xml.Name `xml:"sitemapindex"`
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

// fetch issues a GET against sitemapURL and returns the decompressed body.
// A transport or decompression failure is logged at warning level and
// reported via the second return value rather than an error, since every
// caller in this package treats a failed fetch as "yields nothing".
func fetch(client *http.Client, sitemapURL string) ([]byte, bool) {
	resp, err := client.Get(sitemapURL)
	if err != nil {
		slog.Warn("sitemap fetch failed", "url", sitemapURL, "err", err)
		return nil, false
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Warn("sitemap read failed", "url", sitemapURL, "err", err)
		return nil, false
	}

	body, err := compress.MaybeDecompress(sitemapURL, raw)
	if err != nil {
		slog.Warn("sitemap decompression failed", "url", sitemapURL, "err", err)
		return nil, false
	}
	return body, true
}

// ParseSitemapURLs GETs sitemapURL and, if its root element is <urlset>,
// returns every <loc> text content trimmed and stripped of its
// fragment/query and any trailing slash. Any other root, or a transport
// failure, yields an empty list.
func ParseSitemapURLs(client *http.Client, sitemapURL string) []string {
	body, ok := fetch(client, sitemapURL)
	if !ok {
		return nil
	}

	var doc urlset
	if err := xml.Unmarshal(body, &doc); err != nil || doc.XMLName.Local != "urlset" {
		return nil
	}

	out := make([]string, 0, len(doc.URLs))
	for _, u := range doc.URLs {
		if loc := cleanLoc(u.Loc); loc != "" {
			out = append(out, loc)
		}
	}
	return out
}

// GetNestedSitemaps GETs sitemapURL and, if its root element is
// <sitemapindex>, returns every <loc> text content trimmed. Any other root,
// or a transport failure, yields an empty list.
func GetNestedSitemaps(client *http.Client, sitemapURL string) []string {
	body, ok := fetch(client, sitemapURL)
	if !ok {
		return nil
	}

	var doc sitemapindex
	if err := xml.Unmarshal(body, &doc); err != nil || doc.XMLName.Local != "sitemapindex" {
		return nil
	}

	out := make([]string, 0, len(doc.Sitemaps))
	for _, s := range doc.Sitemaps {
		if loc := strings.TrimSpace(s.Loc); loc != "" {
			out = append(out, loc)
		}
	}
	return out
}

// sniffRoot reports whether body's XML root element is <urlset> or
// <sitemapindex>, used by the common-path probe to validate a candidate
// without fully parsing it.
func sniffRoot(body []byte) bool {
	dec := xml.NewDecoder(bytes.NewReader(body))
	for {
		tok, err := dec.Token()
		if err != nil {
			return false
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start.Name.Local == "urlset" || start.Name.Local == "sitemapindex"
		}
	}
}

func cleanLoc(loc string) string {
	loc = strings.TrimSpace(loc)
	if loc == "" {
		return ""
	}
	if i := strings.IndexAny(loc, "?#"); i >= 0 {
		loc = loc[:i]
	}
	loc = strings.TrimSuffix(loc, "/")
	return loc
}
