package sauto

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"car-advisor/internal/config"
	"car-advisor/internal/logging"
	"car-advisor/internal/logging/types"
	"car-advisor/internal/scraper/fetch"
	"car-advisor/internal/scraper/workers"
	"car-advisor/pkg/models"
)

// imageTransform asks the Sauto CDN for a 1024x768 watermarked JPEG
const imageTransform = "?fl=exf|crr,1.33333,0|res,1024,768,1|wrm,/watermark/sauto.png,10,10|jpg,80,,1"

var numericID = regexp.MustCompile(`^\d+$`)

// CookieSource provides session cookies when the plain handshake yields none
type CookieSource interface {
	Cookies(ctx context.Context, pageURL string) ([]*http.Cookie, error)
}

// Client talks to the Sauto.cz JSON API
type Client struct {
	baseURL          string
	categoryID       int
	defaultCondition string
	fetcher          *fetch.HTTPFetcher
	browser          CookieSource
	logger           types.Logger
}

// NewClient creates a Sauto client. browser may be nil to disable the
// headless-browser handshake fallback.
func NewClient(cfg *config.Config, limiter *workers.RateLimiter, browser CookieSource) *Client {
	base := strings.TrimRight(cfg.Marketplaces.Sauto.BaseURL, "/")

	fetcher := fetch.NewHTTPFetcher(fetch.NewHTTPClient(cfg.Scraper.RequestTimeout), cfg.Scraper.UserAgent, limiter)
	fetcher.SetHeader("Referer", base+"/")

	return &Client{
		baseURL:          base,
		categoryID:       cfg.Marketplaces.Sauto.CategoryID,
		defaultCondition: cfg.Marketplaces.Sauto.DefaultCondition,
		fetcher:          fetcher,
		browser:          browser,
		logger:           logging.GetGlobalLogger().WithField("marketplace", models.SourceSauto),
	}
}

// Name returns the marketplace source identifier
func (c *Client) Name() string {
	return models.SourceSauto
}

// StartSession loads the home page so the API accepts subsequent requests
func (c *Client) StartSession(ctx context.Context) error {
	home := c.baseURL + "/"
	if _, err := c.fetcher.FetchHTML(ctx, home); err != nil {
		c.logger.Warn("Sauto handshake request failed", map[string]interface{}{"error": err.Error()})
	}

	if c.hasCookies() {
		return nil
	}

	if c.browser == nil {
		return fmt.Errorf("sauto: failed to obtain session cookies")
	}

	c.logger.Info("Plain handshake returned no cookies, trying browser handshake")
	cookies, err := c.browser.Cookies(ctx, home)
	if err != nil {
		return fmt.Errorf("sauto: browser handshake failed: %w", err)
	}
	if len(cookies) == 0 {
		return fmt.Errorf("sauto: failed to obtain session cookies")
	}

	u, _ := url.Parse(home)
	c.fetcher.Client().Jar.SetCookies(u, cookies)
	return nil
}

func (c *Client) hasCookies() bool {
	u, err := url.Parse(c.baseURL + "/")
	if err != nil {
		return false
	}
	return len(c.fetcher.Client().Jar.Cookies(u)) > 0
}

// PageSize is the fixed API page size
func (c *Client) PageSize() int {
	return 100
}

// Search returns one API page. A query with a model searches that model, a
// query without one is a broad search over the filters only.
func (c *Client) Search(ctx context.Context, query models.SearchQuery) ([]models.ListingSummary, error) {
	searchURL := c.searchURL(query)

	var resp searchResponse
	if err := c.fetcher.GetJSON(ctx, searchURL, &resp); err != nil {
		return nil, fmt.Errorf("sauto search %s: %w", query.Label(), err)
	}

	listings := make([]models.ListingSummary, 0, len(resp.Results))
	for _, item := range resp.Results {
		if item.ID == "" {
			continue
		}
		listings = append(listings, c.toSummary(item))
	}

	c.logger.Debug("Fetched search page", map[string]interface{}{
		"query":  query.Label(),
		"offset": query.Offset,
		"count":  len(listings),
	})
	return listings, nil
}

func (c *Client) searchURL(query models.SearchQuery) string {
	limit := query.Limit
	if limit <= 0 {
		limit = c.PageSize()
	}

	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(query.Offset))
	params.Set("category_id", strconv.Itoa(c.categoryID))

	f := query.Filters
	yearFrom := f.YearFrom
	if query.Model != nil {
		params.Set("manufacturer_model_seo", query.Model.String())
		if query.Model.YearFrom > 0 {
			yearFrom = query.Model.YearFrom
		}
	}
	if yearFrom > 0 {
		params.Set("year_from", strconv.Itoa(yearFrom))
	}
	if f.PriceTo > 0 {
		params.Set("price_to", strconv.Itoa(f.PriceTo))
	}
	if f.TachometerTo > 0 {
		params.Set("tachometer_to", strconv.Itoa(f.TachometerTo))
	}
	if f.Fuel != "" {
		params.Set("fuel", f.Fuel)
	}
	if f.Gearbox != "" {
		params.Set("gearbox", f.Gearbox)
	}
	if f.BodyTypeSEO != "" {
		params.Set("body_type_seo", f.BodyTypeSEO)
	}
	condition := f.ConditionSEO
	if condition == "" {
		condition = c.defaultCondition
	}
	params.Set("condition_seo", condition)
	// newest first
	params.Set("sort", "1")

	return c.baseURL + "/api/v1/items/search?" + params.Encode()
}

// FetchDetail loads one listing by id or by its public detail URL
func (c *Client) FetchDetail(ctx context.Context, ref string) (*models.ListingDetail, error) {
	id, err := idFromRef(ref)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var resp detailResponse
	if err := c.fetcher.GetJSON(ctx, fmt.Sprintf("%s/api/v1/items/%s", c.baseURL, id), &resp); err != nil {
		return nil, fmt.Errorf("sauto detail %s: %w", id, err)
	}
	if resp.Result == nil {
		return nil, fmt.Errorf("sauto detail %s: response has no result", id)
	}
	if resp.Result.ID == "" {
		resp.Result.ID = models.ListingID(id)
	}

	c.logger.Debug("Fetched listing detail", map[string]interface{}{
		"id":          id,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return c.toDetail(resp.Result), nil
}

// ResolveImage turns a protocol-relative CDN path into a sized image URL
func (c *Client) ResolveImage(raw string) string {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return ""
	case strings.HasPrefix(raw, "//"):
		raw = "https:" + raw
	case !strings.Contains(raw, "://"):
		raw = "https://" + strings.TrimLeft(raw, "/")
	}
	if strings.Contains(raw, "?") {
		return raw
	}
	return raw + imageTransform
}

// idFromRef accepts "123", or any URL whose last path segment is the id
func idFromRef(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if numericID.MatchString(ref) {
		return ref, nil
	}
	if u, err := url.Parse(ref); err == nil && u.Host != "" {
		segments := strings.Split(strings.TrimRight(u.Path, "/"), "/")
		if last := segments[len(segments)-1]; numericID.MatchString(last) {
			return last, nil
		}
	}
	return "", fmt.Errorf("sauto: invalid listing reference %q", ref)
}
