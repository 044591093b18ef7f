package scraper

import (
	"fmt"
	"sort"

	"car-advisor/internal/config"
	"car-advisor/internal/scraper/engines/bazos"
	"car-advisor/internal/scraper/engines/firecrawl"
	"car-advisor/internal/scraper/engines/headed"
	"car-advisor/internal/scraper/engines/hybrid"
	"car-advisor/internal/scraper/engines/sauto"
	"car-advisor/internal/scraper/engines/tipcars"
	"car-advisor/internal/scraper/fetch"
	"car-advisor/internal/scraper/workers"
	"car-advisor/pkg/utils"
)

// Factory builds marketplace clients sharing one rate limiter and page fetcher
type Factory struct {
	config  *config.Config
	limiter *workers.RateLimiter
	pages   fetch.PageFetcher
	clients map[string]MarketplaceClient
}

// NewFactory creates the marketplace clients for the configured engine
func NewFactory(cfg *config.Config, limiter *workers.RateLimiter) (*Factory, error) {
	if limiter == nil {
		limiter = workers.NewRateLimiter(cfg)
	}

	pages, err := newPageFetcher(cfg, limiter)
	if err != nil {
		return nil, err
	}

	var browser sauto.CookieSource
	if cfg.Scraper.BrowserHandshake {
		browser = headed.NewCookieHandshaker(cfg)
	}

	f := &Factory{
		config:  cfg,
		limiter: limiter,
		pages:   pages,
	}
	f.clients = map[string]MarketplaceClient{}
	f.Register(sauto.NewClient(cfg, limiter, browser))
	f.Register(bazos.NewClient(cfg, limiter, pages))
	f.Register(tipcars.NewClient(cfg, pages))
	return f, nil
}

// NewFactoryWithClients creates a factory over prebuilt clients
func NewFactoryWithClients(cfg *config.Config, clients ...MarketplaceClient) *Factory {
	f := &Factory{config: cfg, clients: map[string]MarketplaceClient{}}
	for _, c := range clients {
		f.Register(c)
	}
	return f
}

func newPageFetcher(cfg *config.Config, limiter *workers.RateLimiter) (fetch.PageFetcher, error) {
	plain := func() fetch.PageFetcher {
		return fetch.NewHTTPFetcher(fetch.NewHTTPClient(cfg.Scraper.RequestTimeout), cfg.Scraper.UserAgent, limiter)
	}

	switch cfg.Scraper.Engine {
	case "", "html":
		return plain(), nil
	case "firecrawl":
		fetcher, err := firecrawl.NewFetcher(cfg, limiter)
		if err != nil {
			return nil, err
		}
		return fetcher, nil
	case "hybrid":
		fallback, err := firecrawl.NewFetcher(cfg, limiter)
		if err != nil {
			return nil, err
		}
		return hybrid.NewFetcher(plain(), fallback, utils.NewBlockedDomains(cfg.Scraper.BlockedDomainsFile)), nil
	default:
		return nil, fmt.Errorf("unsupported scraping engine: %s", cfg.Scraper.Engine)
	}
}

// Register adds or replaces the client for its marketplace
func (f *Factory) Register(c MarketplaceClient) {
	f.clients[c.Name()] = c
}

// Client returns the client for a platform name
func (f *Factory) Client(platform string) (MarketplaceClient, error) {
	c, ok := f.clients[platform]
	if !ok {
		return nil, fmt.Errorf("unsupported platform: %s", platform)
	}
	return c, nil
}

// GetSupportedPlatforms returns the registered platform names
func (f *Factory) GetSupportedPlatforms() []string {
	names := make([]string, 0, len(f.clients))
	for name := range f.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Limiter exposes the shared rate limiter, nil for factories built from clients
func (f *Factory) Limiter() *workers.RateLimiter {
	return f.limiter
}

// PageEngine names the fetcher used for HTML marketplaces
func (f *Factory) PageEngine() string {
	if f.pages == nil {
		return ""
	}
	return f.pages.Name()
}
