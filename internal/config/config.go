// Package config defines the frozen configuration consumed by the discovery engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// SitemapConfig controls robots.txt discovery and sitemap-tree expansion (C8).
type SitemapConfig struct {
	Timeout           time.Duration     `yaml:"timeout"`
	Retry             int               `yaml:"retry"`
	Concurrency       int               `yaml:"concurrency"`
	CommonPaths       []string          `yaml:"common_paths"`
	Headers           map[string]string `yaml:"headers"`
	MaxURLsPerSitemap int               `yaml:"max_urls_per_sitemap"`
	MaxTotalURLs      int               `yaml:"max_total_urls"`
	WorkerTimeout     time.Duration     `yaml:"worker_timeout"`
}

// CrawlerConfig controls the priority-frontier HTML crawler (C9).
type CrawlerConfig struct {
	IncludeSubdomains bool `yaml:"include_subdomains"`
	IncludeAssets     bool `yaml:"include_assets"`
	HTMLOnly          bool `yaml:"html_only"`
	MaxPages          int  `yaml:"max_pages"`
	Concurrency       int  `yaml:"concurrency"`
	Verbose           bool `yaml:"verbose"`
}

// PostprocessConfig controls the language-variant collapser (C10).
type PostprocessConfig struct {
	CollapseLanguageVariants bool     `yaml:"collapse_language_variants"`
	DefaultLanguages         []string `yaml:"default_languages"`
}

// ParsingConfig is the raw material C1 compiles into a patterns.ParsingPatterns bundle.
type ParsingConfig struct {
	HTMLContentTypes       []string `yaml:"html_content_types"`
	SitemapContentTypes    []string `yaml:"sitemap_content_types"`
	URLInTextPattern       string   `yaml:"url_in_text_pattern"`
	AssetExtensions        []string `yaml:"asset_extensions"`
	NonHTMLAPIPatterns     []string `yaml:"non_html_api_patterns"`
	TrackingParams         []string `yaml:"tracking_params"`
	LanguageSegmentPattern string   `yaml:"language_segment_pattern"`
	PaginationHints        []string `yaml:"pagination_hints"`
	MaxURLLength           int      `yaml:"max_url_length"`
	PreferHTTPS            bool     `yaml:"prefer_https"`
	StripWWW               bool     `yaml:"strip_www"`
	MaxPaginationPage      int      `yaml:"max_pagination_page"`
}

// Config is the frozen top-level configuration for a single discovery run.
type Config struct {
	Sitemap     SitemapConfig     `yaml:"sitemap"`
	Crawler     CrawlerConfig     `yaml:"crawler"`
	Postprocess PostprocessConfig `yaml:"postprocess"`
	Parsing     ParsingConfig     `yaml:"parsing"`

	// StartURL is the default start URL used when the CLI's positional
	// start-url argument is omitted. An explicit argument always overrides it.
	StartURL string `yaml:"start_url"`

	// Include merges one additional YAML document into this one before
	// validation. Only honored at the top level of the loaded document —
	// an included file that declares its own `include:` key makes Load
	// return an error (see DESIGN.md, "YAML include cycles").
	Include string `yaml:"include"`
}

// Default returns a Config with the defaults named in the spec.
func Default() *Config {
	return &Config{
		Sitemap: SitemapConfig{
			Timeout:           15 * time.Second,
			Retry:             3,
			Concurrency:       10,
			CommonPaths:       []string{"/sitemap.xml", "/sitemap_index.xml", "/sitemap.xml.gz"},
			Headers:           map[string]string{"User-Agent": "discoverurls/1.0"},
			MaxURLsPerSitemap: 50000,
			MaxTotalURLs:      1000000,
			WorkerTimeout:     30 * time.Second,
		},
		Crawler: CrawlerConfig{
			IncludeSubdomains: true,
			IncludeAssets:     false,
			HTMLOnly:          true,
			MaxPages:          1000,
			Concurrency:       10,
			Verbose:           false,
		},
		Postprocess: PostprocessConfig{
			CollapseLanguageVariants: true,
			DefaultLanguages:         []string{"en"},
		},
		Parsing: ParsingConfig{
			HTMLContentTypes:    []string{"text/html", "application/xhtml+xml"},
			SitemapContentTypes: []string{"text/xml", "application/xml", "application/x-gzip"},
			URLInTextPattern:    `(?P<u>https?://[^\s"'<>\\]+)`,
			AssetExtensions: []string{
				"css", "js", "png", "jpg", "jpeg", "gif", "svg", "webp", "ico",
				"woff", "woff2", "ttf", "eot", "pdf", "zip", "mp4", "mp3",
			},
			NonHTMLAPIPatterns:     []string{"/api/", "/graphql", "/wp-json/", ".json"},
			TrackingParams:         []string{"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content", "gclid", "fbclid", "msclkid"},
			LanguageSegmentPattern: `^/([a-z]{2}(?:-[A-Z]{2})?)/`,
			PaginationHints:        []string{"page", "p", "offset", "start"},
			MaxURLLength:           2048,
			PreferHTTPS:            true,
			StripWWW:               true,
			MaxPaginationPage:      1000,
		},
	}
}

// Validate applies the invariants named in the spec's data model.
func (c *Config) Validate() error {
	if c.Sitemap.Concurrency < 1 {
		c.Sitemap.Concurrency = 1
	}
	if c.Crawler.Concurrency < 1 {
		c.Crawler.Concurrency = 1
	}
	if c.Sitemap.MaxURLsPerSitemap < 0 {
		return fmt.Errorf("sitemap.max_urls_per_sitemap must be >= 0")
	}
	if c.Sitemap.MaxTotalURLs < 0 {
		return fmt.Errorf("sitemap.max_total_urls must be >= 0")
	}
	if c.Sitemap.WorkerTimeout <= 0 {
		return fmt.Errorf("sitemap.worker_timeout must be > 0")
	}
	if c.Crawler.MaxPages < 1 {
		return fmt.Errorf("crawler.max_pages must be >= 1")
	}
	if c.Sitemap.Retry < 0 {
		return fmt.Errorf("sitemap.retry must be >= 0")
	}
	return nil
}

// Load reads a YAML config document from path, merges at most one level of
// `include:`, validates it, and returns the result. Defaults are applied
// first so a partial document only needs to specify overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if err := loadInto(path, cfg, true); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func loadInto(path string, cfg *Config, allowInclude bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if cfg.Include != "" {
		if !allowInclude {
			return fmt.Errorf("nested include in %s is not supported (max depth 1)", path)
		}
		includePath := cfg.Include
		if !filepath.IsAbs(includePath) {
			includePath = filepath.Join(filepath.Dir(path), includePath)
		}
		cfg.Include = ""
		if err := loadInto(includePath, cfg, false); err != nil {
			return err
		}
	}

	return nil
}
