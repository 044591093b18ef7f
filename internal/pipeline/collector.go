package pipeline

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"car-advisor/internal/logging"
	"car-advisor/internal/logging/types"
	"car-advisor/internal/scraper"
	"car-advisor/pkg/models"
)

// CollectorOptions bounds one collection run
type CollectorOptions struct {
	PageSize   int // used when the client has no fixed page size
	MaxRecords int // offset cap per query
	TopN       int // listings kept after sorting
}

// QueryOutcome records what one search query contributed
type QueryOutcome struct {
	Query    string `json:"query"`
	Pages    int    `json:"pages"`
	Listings int    `json:"listings"`
	Error    string `json:"error,omitempty"`
}

// CollectResult is the deduplicated, sorted and truncated search result
type CollectResult struct {
	Listings []models.ListingSummary `json:"listings"`
	Total    int                     `json:"total"` // unique listings before truncation
	Empty    bool                    `json:"empty"`
	Outcomes []QueryOutcome          `json:"outcomes"`
}

// Collector pages through marketplace searches
type Collector struct {
	opts   CollectorOptions
	logger types.Logger
}

// NewCollector creates a listing collector
func NewCollector(opts CollectorOptions) *Collector {
	if opts.PageSize <= 0 {
		opts.PageSize = 100
	}
	return &Collector{
		opts:   opts,
		logger: logging.ForStage("collector"),
	}
}

// Collect runs every query page by page until a page comes back empty, a page
// adds nothing new or the record cap is reached. Failed pages end that query
// only. The result is empty, not an error, when nothing was found.
func (c *Collector) Collect(ctx context.Context, client scraper.MarketplaceClient, queries []models.SearchQuery) (*CollectResult, error) {
	start := time.Now()

	if starter, ok := client.(scraper.SessionStarter); ok {
		if err := starter.StartSession(ctx); err != nil {
			c.logger.Error("Session handshake failed", map[string]interface{}{
				"platform": client.Name(),
				"error":    err.Error(),
			})
			return nil, eris.Wrapf(err, "collector: %s session", client.Name())
		}
	}

	pageSize := c.opts.PageSize
	if pager, ok := client.(scraper.Pager); ok && pager.PageSize() > 0 {
		pageSize = pager.PageSize()
	}

	seen := make(map[string]bool)
	var all []models.ListingSummary
	result := &CollectResult{}

	for _, query := range queries {
		outcome := QueryOutcome{Query: query.Label()}

		for offset := 0; c.opts.MaxRecords <= 0 || offset < c.opts.MaxRecords; offset += pageSize {
			if err := ctx.Err(); err != nil {
				return nil, eris.Wrap(err, "collector")
			}

			q := query
			q.Offset = offset
			q.Limit = pageSize

			page, err := client.Search(ctx, q)
			if err != nil {
				if ctx.Err() != nil {
					return nil, eris.Wrap(ctx.Err(), "collector")
				}
				outcome.Error = err.Error()
				c.logger.Warn("Search page failed", map[string]interface{}{
					"platform": client.Name(),
					"query":    outcome.Query,
					"offset":   offset,
					"error":    err.Error(),
				})
				break
			}
			outcome.Pages++
			if len(page) == 0 {
				break
			}

			added := 0
			for _, listing := range page {
				key := listing.Key()
				if seen[key] {
					continue
				}
				seen[key] = true
				all = append(all, listing)
				added++
			}
			outcome.Listings += added
			if added == 0 {
				break
			}
		}

		result.Outcomes = append(result.Outcomes, outcome)
	}

	sortByRecency(all)

	result.Total = len(all)
	result.Empty = len(all) == 0
	if c.opts.TopN > 0 && len(all) > c.opts.TopN {
		all = all[:c.opts.TopN]
	}
	result.Listings = all
	if result.Listings == nil {
		result.Listings = []models.ListingSummary{}
	}

	c.logger.Info("Collection finished", map[string]interface{}{
		"platform":    client.Name(),
		"queries":     len(queries),
		"unique":      result.Total,
		"kept":        len(result.Listings),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return result, nil
}

// sortByRecency orders listings newest first; undated listings keep their
// relative order after the dated ones
func sortByRecency(listings []models.ListingSummary) {
	sort.SliceStable(listings, func(i, j int) bool {
		a, b := listings[i].SortingDate, listings[j].SortingDate
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
}
