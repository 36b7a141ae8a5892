// Package urlutil implements canonical URL normalization (C2) shared by the
// sitemap engine and the HTTP crawler.
package urlutil

import (
	"net/url"
	"strings"

	"github.com/spider-crawler/spider/internal/patterns"
)

var droppedPrefixes = []string{"mailto:", "tel:", "javascript:", "data:", "about:blank", "#"}

// Normalize canonicalizes href against baseURL per the spec's 11-step
// algorithm (§4.2). It returns ("", false) when href should be dropped.
//
// Normalize is idempotent for any href that is already canonical: feeding a
// canonical URL back in with itself as the base reproduces the same string.
func Normalize(baseURL, href string, p *patterns.ParsingPatterns) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}

	lower := strings.ToLower(href)
	for _, prefix := range droppedPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return "", false
		}
	}

	href = strings.ReplaceAll(href, `\/`, "/")

	if strings.HasPrefix(href, "//") {
		scheme := "http"
		if p.PreferHTTPS {
			scheme = "https"
		} else if base, err := url.Parse(baseURL); err == nil && base.Scheme != "" {
			scheme = base.Scheme
		}
		href = scheme + ":" + href
	}

	if len(href) > p.MaxURLLength || strings.Contains(href, `\`) {
		return "", false
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	resolved := base.ResolveReference(ref)
	resolved.Fragment = ""
	resolved.RawFragment = ""

	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", false
	}

	scheme, host := canonicalNetloc(resolved.Scheme, resolved.Host, p.StripWWW, p.PreferHTTPS)

	path := resolved.Path
	if path == "" {
		path = "/"
	}
	for strings.Contains(path, "//") {
		path = strings.ReplaceAll(path, "//", "/")
	}

	query := filterQuery(resolved.RawQuery, p)

	out := &url.URL{Scheme: scheme, Host: host, Path: path, RawQuery: query}
	result := out.String()
	if len(result) > p.MaxURLLength {
		return "", false
	}
	return result, true
}

// canonicalNetloc lowercases the host, optionally strips a leading "www.",
// rewrites the scheme to https when preferred, and strips the default port
// for the resulting scheme.
func canonicalNetloc(scheme, host string, stripWWW, preferHTTPS bool) (string, string) {
	h := strings.ToLower(host)
	if stripWWW && strings.HasPrefix(h, "www.") {
		h = h[4:]
	}
	sch := scheme
	if preferHTTPS {
		sch = "https"
	}
	if sch == "http" && strings.HasSuffix(h, ":80") {
		h = strings.TrimSuffix(h, ":80")
	}
	if sch == "https" && strings.HasSuffix(h, ":443") {
		h = strings.TrimSuffix(h, ":443")
	}
	return sch, h
}

// filterQuery re-encodes the query string, preserving blank values and
// original key order, dropping any key (case-insensitively) that names an
// asset extension or a pagination hint.
func filterQuery(rawQuery string, p *patterns.ParsingPatterns) string {
	if rawQuery == "" {
		return ""
	}

	var kept []string
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		k, v, hasValue := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			key = k
		}
		if _, drop := p.AssetExtensions[strings.ToLower(key)]; drop {
			continue
		}
		if _, drop := p.PaginationHints[strings.ToLower(key)]; drop {
			continue
		}
		if !hasValue {
			kept = append(kept, url.QueryEscape(key))
			continue
		}
		value, err := url.QueryUnescape(v)
		if err != nil {
			value = v
		}
		kept = append(kept, url.QueryEscape(key)+"="+url.QueryEscape(value))
	}
	return strings.Join(kept, "&")
}

// ExtractHost returns the lowercased host:port of a URL, or "" if it fails
// to parse.
func ExtractHost(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}

// SameDomain reports whether url's host is root (or a subdomain of root when
// includeSubdomains is set), with the spec's asymmetric www. allowance: when
// root has no "www." prefix but url's host does, the stripped forms are
// compared too.
func SameDomain(rawURL, rootNetloc string, includeSubdomains bool) bool {
	host := ExtractHost(rawURL)
	root := strings.ToLower(rootNetloc)

	if !strings.HasPrefix(root, "www.") && strings.HasPrefix(host, "www.") {
		if host[4:] == root {
			return true
		}
	}

	if host == root {
		return true
	}
	return includeSubdomains && strings.HasSuffix(host, "."+root)
}

// PathSlashCount is used by the crawler's priority function; kept here since
// it operates on the same parsed-URL primitives as the rest of this package.
func PathSlashCount(rawURL string) int {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0
	}
	return strings.Count(u.Path, "/")
}

// QueryKeys returns the lowercased set of query parameter names on a URL.
func QueryKeys(rawURL string) map[string]struct{} {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	keys := make(map[string]struct{})
	for _, pair := range strings.Split(u.RawQuery, "&") {
		if pair == "" {
			continue
		}
		k, _, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			key = k
		}
		keys[strings.ToLower(key)] = struct{}{}
	}
	return keys
}
