package bazos

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"car-advisor/internal/config"
	"car-advisor/internal/logging"
	"car-advisor/internal/logging/types"
	"car-advisor/internal/scraper/fetch"
	"car-advisor/internal/scraper/workers"
	"car-advisor/pkg/models"
	"car-advisor/pkg/utils"
)

// pageSize is the number of ads on one Bazos search page
const pageSize = 20

var (
	adIDPattern = regexp.MustCompile(`/inzerat/(\d+)`)
	// titles of wheel, tyre and part sets rather than cars
	partsPattern = regexp.MustCompile(`(?i)\b(sada|kola|pneu)`)
)

// Client scrapes the auto.bazos.cz classifieds
type Client struct {
	baseURL   string
	host      string
	maxPages  int
	userAgent string
	timeout   time.Duration
	limiter   *workers.RateLimiter
	pages     fetch.PageFetcher
	logger    types.Logger
}

// NewClient creates a Bazos client. Search pages are crawled with colly, detail
// pages are downloaded with pages (plain HTTP or Firecrawl).
func NewClient(cfg *config.Config, limiter *workers.RateLimiter, pages fetch.PageFetcher) *Client {
	base := strings.TrimRight(cfg.Marketplaces.Bazos.BaseURL, "/")
	host := workers.ExtractDomainFromURL(base)

	return &Client{
		baseURL:   base,
		host:      host,
		maxPages:  cfg.Marketplaces.Bazos.MaxPages,
		userAgent: cfg.Scraper.UserAgent,
		timeout:   cfg.Scraper.RequestTimeout,
		limiter:   limiter,
		pages:     pages,
		logger:    logging.GetGlobalLogger().WithField("marketplace", models.SourceBazos),
	}
}

// Name returns the marketplace source identifier
func (c *Client) Name() string {
	return models.SourceBazos
}

// PageSize is the fixed number of ads per search page
func (c *Client) PageSize() int {
	return pageSize
}

// searchURL builds the URL of the search page holding the ad at offset
func (c *Client) searchURL(query models.SearchQuery) string {
	params := url.Values{}
	params.Set("hledat", query.Phrase)
	params.Set("rubriky", "auto")
	if query.Filters.PriceTo > 0 {
		params.Set("cenado", strconv.Itoa(query.Filters.PriceTo))
	}

	page := query.Offset / pageSize
	if page == 0 {
		return c.baseURL + "/?" + params.Encode()
	}
	return fmt.Sprintf("%s/%d/?%s", c.baseURL, page*pageSize, params.Encode())
}

// Search scrapes one search results page for the query phrase
func (c *Client) Search(ctx context.Context, query models.SearchQuery) ([]models.ListingSummary, error) {
	if strings.TrimSpace(query.Phrase) == "" {
		return nil, fmt.Errorf("bazos search requires a phrase")
	}
	if c.maxPages > 0 && query.Offset/pageSize >= c.maxPages {
		return nil, nil
	}

	var (
		listings []models.ListingSummary
		visitErr error
	)

	collector := colly.NewCollector(
		colly.AllowedDomains(c.host),
		colly.UserAgent(c.userAgent),
		colly.MaxDepth(1),
	)
	if c.timeout > 0 {
		collector.SetRequestTimeout(c.timeout)
	}

	collector.OnRequest(func(r *colly.Request) {
		if c.limiter == nil {
			return
		}
		if err := c.limiter.Wait(ctx, r.URL.String()); err != nil {
			visitErr = err
			r.Abort()
		}
	})

	collector.OnError(func(r *colly.Response, err error) {
		visitErr = fmt.Errorf("bazos search %q: status %d: %w", query.Phrase, r.StatusCode, err)
		if c.limiter != nil && r.StatusCode != 404 {
			c.limiter.RecordFailure(r.Request.URL.String(), err)
		}
	})

	collector.OnResponse(func(r *colly.Response) {
		if c.limiter != nil {
			c.limiter.RecordSuccess(r.Request.URL.String())
		}
	})

	collector.OnHTML(".inzeraty.inzeratyflex", func(e *colly.HTMLElement) {
		if listing, ok := parseSearchItem(e); ok {
			listings = append(listings, listing)
		}
	})

	searchURL := c.searchURL(query)
	if err := collector.Visit(searchURL); err != nil && visitErr == nil {
		visitErr = fmt.Errorf("bazos search %q: %w", query.Phrase, err)
	}
	if visitErr != nil {
		return nil, visitErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.logger.Debug("Fetched search page", map[string]interface{}{
		"phrase": query.Phrase,
		"offset": query.Offset,
		"count":  len(listings),
	})
	return listings, nil
}

func parseSearchItem(e *colly.HTMLElement) (models.ListingSummary, bool) {
	href := e.ChildAttr("h2.nadpis a", "href")
	title := strings.TrimSpace(e.ChildText("h2.nadpis a"))
	if href == "" || title == "" || partsPattern.MatchString(title) {
		return models.ListingSummary{}, false
	}

	adURL := e.Request.AbsoluteURL(href)
	priceText := utils.CollapseSpaces(e.ChildText(".inzeratycena b"))

	summary := models.ListingSummary{
		Source:      models.SourceBazos,
		Title:       title,
		URL:         adURL,
		PriceText:   priceText,
		Price:       parsePrice(priceText),
		Description: strings.TrimSpace(e.ChildText(".popis")),
		Location:    utils.CollapseSpaces(e.ChildText(".inzeratylok")),
	}
	if m := adIDPattern.FindStringSubmatch(adURL); m != nil {
		summary.ID = models.ListingID(m[1])
	}
	if src := e.ChildAttr("img.obrazek", "src"); src != "" {
		summary.Thumbnail = e.Request.AbsoluteURL(src)
	}
	return summary, true
}

// parsePrice returns 0 for negotiable or missing prices
func parsePrice(text string) int {
	if strings.Contains(strings.ToLower(text), "dohodou") {
		return 0
	}
	return utils.ParseDigits(text)
}

// FetchDetail loads an ad page by id or absolute URL
func (c *Client) FetchDetail(ctx context.Context, ref string) (*models.ListingDetail, error) {
	adURL, id, err := c.resolveRef(ref)
	if err != nil {
		return nil, err
	}

	html, err := c.pages.FetchHTML(ctx, adURL)
	if err != nil {
		return nil, fmt.Errorf("bazos detail %s: %w", id, err)
	}

	detail, err := parseDetail(html, adURL)
	if err != nil {
		return nil, fmt.Errorf("bazos detail %s: %w", id, err)
	}
	detail.ID = models.ListingID(id)
	return detail, nil
}

func (c *Client) resolveRef(ref string) (string, string, error) {
	ref = strings.TrimSpace(ref)
	if m := adIDPattern.FindStringSubmatch(ref); m != nil && strings.Contains(ref, "://") {
		return ref, m[1], nil
	}
	if utils.ParseDigits(ref) > 0 && strings.Trim(ref, "0123456789") == "" {
		return fmt.Sprintf("%s/inzerat/%s/", c.baseURL, ref), ref, nil
	}
	return "", "", fmt.Errorf("bazos: invalid listing reference %q", ref)
}
