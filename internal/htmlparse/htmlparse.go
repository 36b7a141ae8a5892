// Package htmlparse extracts candidate outgoing links from an HTML document
// (C3), tolerating malformed markup the way a browser would.
package htmlparse

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/spider-crawler/spider/internal/patterns"
	"github.com/spider-crawler/spider/internal/urlutil"
)

var assetTags = map[string]string{
	"img":    "src",
	"script": "src",
	"iframe": "src",
	"source": "src",
	"video":  "src",
	"audio":  "src",
}

// ExtractLinks walks html and returns the set of canonical URLs reachable
// from it, normalized against baseURL: a[href]/link[href] (which also
// catches rel~=next and aria-label pagination hints, since those still carry
// an href), optional asset tags and srcset, then every <script> body scanned
// for patterns.URLInText matches.
func ExtractLinks(baseURL, htmlSrc string, includeAssets, htmlOnly bool, p *patterns.ParsingPatterns) []string {
	doc, err := html.Parse(strings.NewReader(htmlSrc))
	if err != nil {
		return nil
	}

	out := make(map[string]struct{})
	add := func(u string) {
		norm, ok := urlutil.Normalize(baseURL, u, p)
		if !ok {
			return
		}
		if htmlOnly && !patterns.IsProbablyHTML(norm, p) {
			return
		}
		out[norm] = struct{}{}
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "a", "link":
				if href, ok := attr(n, "href"); ok {
					add(href)
				}
			case "script":
				if src, ok := attr(n, "src"); ok && src != "" {
					if includeAssets && !htmlOnly {
						add(src)
					}
				}
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					if c.Type == html.TextNode {
						for _, m := range p.URLInText.FindAllStringSubmatch(c.Data, -1) {
							if idx := p.URLInText.SubexpIndex("u"); idx >= 0 && idx < len(m) {
								add(m[idx])
							}
						}
					}
				}
			}

			if includeAssets && !htmlOnly {
				if srcAttr, ok := assetTags[n.Data]; ok && n.Data != "script" {
					if src, ok := attr(n, srcAttr); ok {
						add(src)
					}
				}
				if srcset, ok := attr(n, "srcset"); ok {
					for _, part := range strings.Split(srcset, ",") {
						fields := strings.Fields(strings.TrimSpace(part))
						if len(fields) > 0 {
							add(fields[0])
						}
					}
				}
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	links := make([]string, 0, len(out))
	for u := range out {
		links = append(links, u)
	}
	return links
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}
