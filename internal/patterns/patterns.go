// Package patterns compiles the discovery engine's parsing configuration into
// a reusable, immutable bundle of regexes and sets (C1), and classifies URLs
// by HTML-likeness against that bundle (C4).
package patterns

import (
	"regexp"
	"strings"

	"github.com/spider-crawler/spider/internal/config"
)

// ParsingPatterns is the immutable bundle every normalizer, parser, and
// crawler consumes by reference. Compile it once per discovery run; never
// mutate it afterward.
type ParsingPatterns struct {
	HTMLContentType  *regexp.Regexp
	SitemapCT        *regexp.Regexp
	URLInText        *regexp.Regexp
	AssetExtensions  map[string]struct{}
	NonHTMLAPI       *regexp.Regexp
	LanguageSegment  *regexp.Regexp
	PaginationHints  map[string]struct{}
	MaxURLLength     int
	PreferHTTPS      bool
	StripWWW         bool
	MaxPaginationPage int
}

// Compile builds a ParsingPatterns bundle from the raw parsing configuration.
func Compile(cfg config.ParsingConfig) (*ParsingPatterns, error) {
	htmlCT, err := compileAlternation(cfg.HTMLContentTypes)
	if err != nil {
		return nil, err
	}
	sitemapCT, err := compileAlternation(cfg.SitemapContentTypes)
	if err != nil {
		return nil, err
	}
	urlInText, err := regexp.Compile("(?i)" + cfg.URLInTextPattern)
	if err != nil {
		return nil, err
	}
	nonHTMLAPI, err := compileAlternation(cfg.NonHTMLAPIPatterns)
	if err != nil {
		return nil, err
	}
	langSeg, err := regexp.Compile("(?i)" + cfg.LanguageSegmentPattern)
	if err != nil {
		return nil, err
	}

	assetExt := make(map[string]struct{}, len(cfg.AssetExtensions))
	for _, e := range cfg.AssetExtensions {
		assetExt[strings.ToLower(strings.TrimPrefix(e, "."))] = struct{}{}
	}

	pagination := make(map[string]struct{}, len(cfg.PaginationHints)+len(cfg.TrackingParams))
	for _, p := range cfg.PaginationHints {
		pagination[strings.ToLower(p)] = struct{}{}
	}
	for _, p := range cfg.TrackingParams {
		pagination[strings.ToLower(p)] = struct{}{}
	}

	return &ParsingPatterns{
		HTMLContentType:   htmlCT,
		SitemapCT:         sitemapCT,
		URLInText:         urlInText,
		AssetExtensions:   assetExt,
		NonHTMLAPI:        nonHTMLAPI,
		LanguageSegment:   langSeg,
		PaginationHints:   pagination,
		MaxURLLength:      cfg.MaxURLLength,
		PreferHTTPS:       cfg.PreferHTTPS,
		StripWWW:          cfg.StripWWW,
		MaxPaginationPage: cfg.MaxPaginationPage,
	}, nil
}

// compileAlternation compiles values into a single case-insensitive
// alternation. An empty list compiles to a pattern that never matches,
// rather than an empty group (which would match everywhere).
func compileAlternation(values []string) (*regexp.Regexp, error) {
	if len(values) == 0 {
		return regexp.Compile(`\x00never-matches\x00`)
	}
	escaped := make([]string, len(values))
	for i, v := range values {
		escaped[i] = regexp.QuoteMeta(v)
	}
	return regexp.Compile("(?i)(" + strings.Join(escaped, "|") + ")")
}

// IsProbablyHTML decides whether a canonical URL looks like an HTML page (C4).
// False for empty URLs, URLs matching the non-HTML API pattern, and URLs
// whose lowercased form ends with ".<ext>" or contains ".<ext>?" for a known
// asset extension.
func IsProbablyHTML(u string, p *ParsingPatterns) bool {
	if u == "" {
		return false
	}
	if p.NonHTMLAPI != nil && p.NonHTMLAPI.MatchString(u) {
		return false
	}
	lower := strings.ToLower(u)
	for ext := range p.AssetExtensions {
		if strings.HasSuffix(lower, "."+ext) || strings.Contains(lower, "."+ext+"?") {
			return false
		}
	}
	return true
}
