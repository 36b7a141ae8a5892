// Package postprocess collapses language-variant URLs down to a canonical
// representative per page (C10).
package postprocess

import (
	"net/url"
	"sort"
	"strings"

	"github.com/spider-crawler/spider/internal/patterns"
)

type bucketKey struct {
	scheme string
	host   string
	rest   string
}

// CollapseLanguageVariants partitions urls into assets and pages, buckets
// pages by (scheme, host, language-stripped path), and for each bucket keeps
// only the non-default-language variants when any exist, else every variant
// in the bucket. The result is deduplicated and sorted.
func CollapseLanguageVariants(urls []string, defaultLangs []string, p *patterns.ParsingPatterns) []string {
	defaults := make(map[string]struct{}, len(defaultLangs))
	for _, l := range defaultLangs {
		defaults[strings.ToLower(l)] = struct{}{}
	}

	buckets := make(map[bucketKey]map[string]string)
	var assets []string

	for _, u := range urls {
		if isAsset(u, p) {
			assets = append(assets, u)
			continue
		}

		parsed, err := url.Parse(u)
		if err != nil {
			assets = append(assets, u)
			continue
		}
		path := parsed.Path
		if path == "" {
			path = "/"
		}

		lang, rest := splitLang(path, p)
		if rest != "/" {
			rest = strings.TrimSuffix(rest, "/")
		}

		key := bucketKey{scheme: parsed.Scheme, host: strings.ToLower(parsed.Host), rest: rest}
		if buckets[key] == nil {
			buckets[key] = make(map[string]string)
		}
		buckets[key][lang] = u
	}

	out := make(map[string]struct{})
	for _, langMap := range buckets {
		var nonDefault []string
		for lang, u := range langMap {
			if lang != "" {
				if _, isDefault := defaults[lang]; !isDefault {
					nonDefault = append(nonDefault, u)
				}
			}
		}
		if len(nonDefault) > 0 {
			for _, u := range nonDefault {
				out[u] = struct{}{}
			}
		} else {
			for _, u := range langMap {
				out[u] = struct{}{}
			}
		}
	}
	for _, a := range assets {
		out[a] = struct{}{}
	}

	result := make([]string, 0, len(out))
	for u := range out {
		result = append(result, u)
	}
	sort.Strings(result)
	return result
}

func isAsset(u string, p *patterns.ParsingPatterns) bool {
	lower := strings.ToLower(u)
	for ext := range p.AssetExtensions {
		if strings.HasSuffix(lower, "."+ext) {
			return true
		}
	}
	return false
}

// splitLang matches path against the language-segment pattern. When it
// matches, lang is the lowercased capture group and rest is path with the
// language segment removed (preserving the leading slash).
func splitLang(path string, p *patterns.ParsingPatterns) (lang, rest string) {
	if path == "" {
		return "", ""
	}
	m := p.LanguageSegment.FindStringSubmatchIndex(path)
	if m == nil {
		return "", path
	}
	groups := p.LanguageSegment.FindStringSubmatch(path)
	lang = strings.ToLower(groups[1])
	rest = path[m[1]-1:]
	return lang, rest
}
