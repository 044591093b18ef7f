package tipcars

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"car-advisor/internal/config"
	"car-advisor/internal/logging"
	"car-advisor/internal/logging/types"
	"car-advisor/internal/scraper/fetch"
	"car-advisor/pkg/models"
	"car-advisor/pkg/utils"
)

const pageSize = 20

var (
	idSuffix    = regexp.MustCompile(`(\d{4,})(\.html?)?/?$`)
	yearPattern = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	fuelNames   = []string{"Nafta", "Benzin", "Hybrid", "Elektro", "LPG", "CNG"}
)

// Client scrapes TipCars.com search and detail pages
type Client struct {
	baseURL  string
	maxPages int
	pages    fetch.PageFetcher
	logger   types.Logger

	// search results by detail URL; detail pages do not always repeat price and title
	mu   sync.RWMutex
	seen map[string]models.ListingSummary
}

// NewClient creates a TipCars client
func NewClient(cfg *config.Config, pages fetch.PageFetcher) *Client {
	return &Client{
		baseURL:  strings.TrimRight(cfg.Marketplaces.TipCars.BaseURL, "/"),
		maxPages: cfg.Marketplaces.TipCars.MaxPages,
		pages:    pages,
		logger:   logging.GetGlobalLogger().WithField("marketplace", models.SourceTipCars),
		seen:     make(map[string]models.ListingSummary),
	}
}

// Name returns the marketplace source identifier
func (c *Client) Name() string {
	return models.SourceTipCars
}

// PageSize is the fixed number of ads per search page
func (c *Client) PageSize() int {
	return pageSize
}

func (c *Client) searchURL(query models.SearchQuery) string {
	page := query.Offset/pageSize + 1
	params := url.Values{}
	params.Set("text", query.Phrase)
	if page == 1 {
		return c.baseURL + "/?" + params.Encode()
	}
	return fmt.Sprintf("%s/?str=%d-%d&%s", c.baseURL, page, pageSize, params.Encode())
}

// Search fetches one results page for the query phrase
func (c *Client) Search(ctx context.Context, query models.SearchQuery) ([]models.ListingSummary, error) {
	if strings.TrimSpace(query.Phrase) == "" {
		return nil, fmt.Errorf("tipcars search requires a phrase")
	}
	if c.maxPages > 0 && query.Offset/pageSize >= c.maxPages {
		return nil, nil
	}

	pageURL := c.searchURL(query)
	html, err := c.pages.FetchHTML(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("tipcars search %q: %w", query.Phrase, err)
	}

	listings, err := c.parseSearchPage(html)
	if err != nil {
		return nil, fmt.Errorf("tipcars search %q: %w", query.Phrase, err)
	}

	c.mu.Lock()
	for _, l := range listings {
		c.seen[l.URL] = l
	}
	c.mu.Unlock()

	c.logger.Debug("Fetched search page", map[string]interface{}{
		"phrase": query.Phrase,
		"offset": query.Offset,
		"count":  len(listings),
	})
	return listings, nil
}

func (c *Client) parseSearchPage(html string) ([]models.ListingSummary, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var listings []models.ListingSummary
	doc.Find(".advertisement").Each(func(i int, ad *goquery.Selection) {
		title := strings.TrimSpace(ad.Find(".advertisement-name__title h3").First().Text())
		priceText := utils.CollapseSpaces(ad.Find(".advertisement-name__price h3").First().Text())
		href, _ := ad.Find(".advertisement-name__title a").First().Attr("href")
		if title == "" || priceText == "" || href == "" {
			return
		}

		if subtitle := strings.TrimSpace(ad.Find(".advertisement-name__title p").First().Text()); subtitle != "" {
			title = title + " " + subtitle
		}

		summary := models.ListingSummary{
			Source:    models.SourceTipCars,
			Title:     title,
			URL:       c.absolute(href),
			PriceText: priceText,
			Price:     utils.ParseDigits(priceText),
		}
		if m := idSuffix.FindStringSubmatch(summary.URL); m != nil {
			summary.ID = models.ListingID(m[1])
		}
		if src, ok := ad.Find(".advertisement__graphics img").First().Attr("src"); ok {
			summary.Thumbnail = c.absolute(src)
		}

		ad.Find(".detail-box-S").Each(func(j int, box *goquery.Selection) {
			text := utils.CollapseSpaces(box.Text())
			switch {
			case strings.Contains(text, "km"):
				summary.Mileage = utils.ParseDigits(text)
			case strings.Contains(text, "kW"):
				// power is kept on the detail record only
			case strings.Contains(text, "/") || yearPattern.MatchString(text):
				if m := yearPattern.FindString(text); m != "" {
					summary.Year = utils.ParseDigits(m)
				}
			}
		})

		listings = append(listings, summary)
	})

	return listings, nil
}

// FetchDetail loads a detail page by absolute URL, or by id for listings
// returned by an earlier search
func (c *Client) FetchDetail(ctx context.Context, ref string) (*models.ListingDetail, error) {
	pageURL, err := c.resolveRef(ref)
	if err != nil {
		return nil, err
	}

	html, err := c.pages.FetchHTML(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("tipcars detail %s: %w", ref, err)
	}

	detail, err := parseDetail(html, pageURL)
	if err != nil {
		return nil, fmt.Errorf("tipcars detail %s: %w", ref, err)
	}

	c.mu.RLock()
	summary, known := c.seen[pageURL]
	c.mu.RUnlock()
	if known {
		mergeSummary(detail, summary)
	}
	if detail.ID == "" {
		if m := idSuffix.FindStringSubmatch(pageURL); m != nil {
			detail.ID = models.ListingID(m[1])
		}
	}
	return detail, nil
}

func (c *Client) resolveRef(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if strings.Contains(ref, "://") {
		return ref, nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	for u, s := range c.seen {
		if string(s.ID) == ref {
			return u, nil
		}
	}
	return "", fmt.Errorf("tipcars: unknown listing %q, a detail URL is required", ref)
}

func (c *Client) absolute(href string) string {
	base, err := url.Parse(c.baseURL + "/")
	if err != nil {
		return href
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func mergeSummary(d *models.ListingDetail, s models.ListingSummary) {
	if d.Title == "" {
		d.Title = s.Title
	}
	if d.Price == 0 {
		d.Price = s.Price
		d.PriceText = s.PriceText
	}
	if d.Year == 0 {
		d.Year = s.Year
	}
	if d.Mileage == 0 {
		d.Mileage = s.Mileage
	}
	if len(d.Images) == 0 && s.Thumbnail != "" {
		d.Images = []string{s.Thumbnail}
	}
	if d.ID == "" {
		d.ID = s.ID
	}
}
