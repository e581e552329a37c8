// Package collector runs the profile collection job: it walks the listing
// pages, scrapes every profile not yet in the table and appends the new rows.
package collector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Sumatoshi-tech/freelaudit/pkg/observability"
	"github.com/Sumatoshi-tech/freelaudit/pkg/profile"
	"github.com/Sumatoshi-tech/freelaudit/pkg/retry"
)

const stageCollect = "collect"

// Source is the marketplace the collector reads from.
type Source interface {
	LanguageListingURL(lang string, page int) string
	TechnologyListingURL(lang, tech string, page int) string
	ListingLinks(ctx context.Context, pageURL string) ([]string, error)
	Profile(ctx context.Context, profileURL string) (profile.Profile, error)
}

// Config selects what to crawl.
type Config struct {
	TablePath    string
	Languages    []string
	Technologies []string
	Pages        int
	PageDelay    time.Duration
}

// Result summarises a collection run.
type Result struct {
	Existing      int
	ListingPages  int
	LinksSeen     int
	Duplicates    int
	NewProfiles   []profile.Profile
	WithGitHub    int
	TotalAfterRun int
}

// Collector scrapes new profiles into the profile table.
type Collector struct {
	cfg     Config
	source  Source
	logger  *slog.Logger
	metrics *observability.PipelineMetrics
	sleep   func(ctx context.Context, d time.Duration) error
}

// Option customises a [Collector].
type Option func(*Collector)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(c *Collector) { c.logger = l } }

// WithMetrics sets the metrics sink.
func WithMetrics(m *observability.PipelineMetrics) Option {
	return func(c *Collector) { c.metrics = m }
}

// WithSleep replaces the politeness pause.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Collector) { c.sleep = fn }
}

// New creates a collector.
func New(cfg Config, source Source, opts ...Option) *Collector {
	c := &Collector{
		cfg:    cfg,
		source: source,
		logger: observability.Discard(),
		sleep:  retry.Sleep,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Run performs both crawl passes and appends the new profiles once the crawl
// is complete. Any page error aborts the run before anything is written.
func (c *Collector) Run(ctx context.Context) (Result, error) {
	seen, err := profile.LoadURLs(c.cfg.TablePath)
	if err != nil {
		return Result{}, fmt.Errorf("load existing profiles: %w", err)
	}

	res := Result{Existing: len(seen)}
	c.logger.InfoContext(ctx, "found existing profiles", "count", res.Existing)

	for _, lang := range c.cfg.Languages {
		c.logger.InfoContext(ctx, "scraping profiles for language", "language", lang)

		for page := 1; page <= c.cfg.Pages; page++ {
			err = c.crawlPage(ctx, c.source.LanguageListingURL(lang, page), seen, &res)
			if err != nil {
				return res, err
			}
		}
	}

	for _, tech := range c.cfg.Technologies {
		for _, lang := range c.cfg.Languages {
			c.logger.InfoContext(ctx, "scraping technology profiles", "technology", tech, "language", lang)

			for page := 1; page <= c.cfg.Pages; page++ {
				err = c.crawlPage(ctx, c.source.TechnologyListingURL(lang, tech, page), seen, &res)
				if err != nil {
					return res, err
				}
			}
		}
	}

	c.logger.InfoContext(ctx, "scraped new profiles", "count", len(res.NewProfiles))

	err = profile.AppendTable(c.cfg.TablePath, res.NewProfiles)
	if err != nil {
		return res, fmt.Errorf("append profiles: %w", err)
	}

	res.TotalAfterRun = res.Existing + len(res.NewProfiles)

	return res, nil
}

func (c *Collector) crawlPage(ctx context.Context, pageURL string, seen map[string]struct{}, res *Result) error {
	links, err := c.source.ListingLinks(ctx, pageURL)
	if err != nil {
		return fmt.Errorf("listing %s: %w", pageURL, err)
	}

	res.ListingPages++

	err = c.sleep(ctx, c.cfg.PageDelay)
	if err != nil {
		return err
	}

	for _, link := range links {
		res.LinksSeen++

		if _, dup := seen[link]; dup {
			res.Duplicates++

			continue
		}

		start := time.Now()

		p, profileErr := c.source.Profile(ctx, link)
		if profileErr != nil {
			c.metrics.RecordItem(ctx, stageCollect, observability.OutcomeFailed, time.Since(start))

			return fmt.Errorf("profile %s: %w", link, profileErr)
		}

		c.metrics.RecordItem(ctx, stageCollect, observability.OutcomeOK, time.Since(start))

		res.NewProfiles = append(res.NewProfiles, p)
		seen[link] = struct{}{}

		if p.HasGitHub() {
			res.WithGitHub++
		}

		c.logger.DebugContext(ctx, "profile scraped", "url", link, "github", p.GitHub)

		err = c.sleep(ctx, c.cfg.PageDelay)
		if err != nil {
			return err
		}
	}

	return nil
}
