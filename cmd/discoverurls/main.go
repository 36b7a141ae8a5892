// Package main is the entry point for the discoverurls CLI.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/spider-crawler/spider/internal/config"
	"github.com/spider-crawler/spider/internal/crawler"
	"github.com/spider-crawler/spider/internal/discovery"
	"github.com/spider-crawler/spider/internal/patterns"
	"github.com/spider-crawler/spider/internal/postprocess"
)

func main() {
	app := &cli.App{
		Name:      "discoverurls",
		Usage:     "discover the canonical set of URLs reachable from a site",
		ArgsUsage: "start-url",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "no-sitemap",
				Usage: "skip sitemap discovery and crawl directly",
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to a YAML configuration file",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	var cfg *config.Config
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}

	startURL := c.Args().First()
	if startURL == "" {
		startURL = cfg.StartURL
	}
	if startURL == "" {
		return fmt.Errorf("start-url argument is required (no default configured via start_url)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("received interrupt, stopping discovery")
		cancel()
	}()

	var urls []string
	if c.Bool("no-sitemap") {
		p, err := patterns.Compile(cfg.Parsing)
		if err != nil {
			return err
		}
		client := &http.Client{Timeout: cfg.Sitemap.Timeout}
		urls = crawler.Crawl(ctx, client, startURL, cfg.Crawler, p)
		if cfg.Postprocess.CollapseLanguageVariants {
			defaults := append([]string{""}, cfg.Postprocess.DefaultLanguages...)
			urls = postprocess.CollapseLanguageVariants(urls, defaults, p)
		} else {
			sort.Strings(urls)
		}
	} else {
		discovered, err := discovery.Discover(ctx, startURL, cfg)
		if err != nil {
			return err
		}
		urls = discovered
	}

	for _, u := range urls {
		fmt.Printf("[discoverurls] %s\n", u)
	}
	fmt.Printf("TOTAL=%d\n", len(urls))
	return nil
}
