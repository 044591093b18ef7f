package firecrawl

import (
	"context"
	"fmt"
	"time"

	"github.com/mendableai/firecrawl-go"

	"car-advisor/internal/config"
	"car-advisor/internal/logging"
	"car-advisor/internal/logging/types"
	"car-advisor/internal/scraper/workers"
)

// Scraper is the subset of the Firecrawl SDK the fetcher uses
type Scraper interface {
	ScrapeURL(url string, params *firecrawl.ScrapeParams) (*firecrawl.FirecrawlDocument, error)
}

// Fetcher downloads marketplace pages through the Firecrawl API, for portals
// that block plain HTTP clients
type Fetcher struct {
	app     Scraper
	limiter *workers.RateLimiter
	logger  types.Logger
}

// NewFetcher creates a Firecrawl-backed page fetcher
func NewFetcher(cfg *config.Config, limiter *workers.RateLimiter) (*Fetcher, error) {
	if cfg.Firecrawl.APIKey == "" {
		return nil, fmt.Errorf("firecrawl API key not configured - set FIRECRAWL_API_KEY environment variable")
	}

	app, err := firecrawl.NewFirecrawlApp(cfg.Firecrawl.APIKey, cfg.Firecrawl.APIURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firecrawl: %w", err)
	}

	return NewFetcherWithScraper(app, limiter), nil
}

// NewFetcherWithScraper wraps an existing Firecrawl client
func NewFetcherWithScraper(app Scraper, limiter *workers.RateLimiter) *Fetcher {
	return &Fetcher{
		app:     app,
		limiter: limiter,
		logger:  logging.GetGlobalLogger().WithField("component", "firecrawl"),
	}
}

// Name identifies the fetcher in logs
func (f *Fetcher) Name() string {
	return "firecrawl"
}

// FetchHTML scrapes url once and returns its raw HTML. The SDK call cannot be
// cancelled, so a cancelled context only stops the wait.
func (f *Fetcher) FetchHTML(ctx context.Context, url string) (string, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, url); err != nil {
			return "", err
		}
	}

	start := time.Now()
	type result struct {
		doc *firecrawl.FirecrawlDocument
		err error
	}
	done := make(chan result, 1)
	go func() {
		doc, err := f.app.ScrapeURL(url, &firecrawl.ScrapeParams{
			Formats: []string{"rawHtml", "html"},
		})
		done <- result{doc: doc, err: err}
	}()

	var res result
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res = <-done:
	}

	if res.err != nil {
		if f.limiter != nil {
			f.limiter.RecordFailure(url, res.err)
		}
		return "", fmt.Errorf("firecrawl scraping failed: %w", res.err)
	}
	if res.doc == nil {
		return "", fmt.Errorf("no result returned from Firecrawl")
	}

	content := res.doc.RawHTML
	if content == "" {
		content = res.doc.HTML
	}
	if content == "" {
		return "", fmt.Errorf("no HTML content in Firecrawl response")
	}

	if f.limiter != nil {
		f.limiter.RecordSuccess(url)
	}
	f.logger.Debug("Fetched page via Firecrawl", map[string]interface{}{
		"url":            url,
		"content_length": len(content),
		"duration_ms":    time.Since(start).Milliseconds(),
	})
	return content, nil
}
