package pipeline

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"car-advisor/internal/logging"
	"car-advisor/internal/logging/types"
	"car-advisor/internal/scraper"
	"car-advisor/pkg/models"
)

var errNoDetail = errors.New("marketplace returned no detail")

// FetchOutcome is the result for one listing: Detail on success, Err otherwise
type FetchOutcome struct {
	Ref    string
	Detail *models.ListingDetail
	Err    error
}

// OK reports whether the detail was loaded
func (o FetchOutcome) OK() bool {
	return o.Err == nil && o.Detail != nil
}

// DetailFetcher loads listing details with bounded parallelism
type DetailFetcher struct {
	concurrency int
	logger      types.Logger
}

// NewDetailFetcher creates a fetcher; concurrency 1 fetches sequentially
func NewDetailFetcher(concurrency int) *DetailFetcher {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &DetailFetcher{
		concurrency: concurrency,
		logger:      logging.ForStage("detail_fetcher"),
	}
}

// FetchAll returns one outcome per listing, in input order. A failing listing
// never cancels the others.
func (f *DetailFetcher) FetchAll(ctx context.Context, client scraper.MarketplaceClient, listings []models.ListingSummary) []FetchOutcome {
	outcomes := make([]FetchOutcome, len(listings))

	var g errgroup.Group
	g.SetLimit(f.concurrency)
	for i, listing := range listings {
		i, listing := i, listing
		outcomes[i].Ref = listing.DetailRef()
		g.Go(func() error {
			detail, err := client.FetchDetail(ctx, outcomes[i].Ref)
			if err == nil && detail == nil {
				err = errNoDetail
			}
			if err != nil {
				outcomes[i].Err = err
				return nil
			}
			fillIdentity(detail, listing)
			outcomes[i].Detail = detail
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// Fetch returns the details that loaded, dropping failures
func (f *DetailFetcher) Fetch(ctx context.Context, client scraper.MarketplaceClient, listings []models.ListingSummary) []models.ListingDetail {
	start := time.Now()
	outcomes := f.FetchAll(ctx, client, listings)

	details := make([]models.ListingDetail, 0, len(outcomes))
	failed := 0
	for _, o := range outcomes {
		if !o.OK() {
			failed++
			f.logger.Debug("Detail fetch dropped", map[string]interface{}{
				"ref":   o.Ref,
				"error": o.Err.Error(),
			})
			continue
		}
		details = append(details, *o.Detail)
	}

	f.logger.Info("Details fetched", map[string]interface{}{
		"platform":    client.Name(),
		"requested":   len(listings),
		"fetched":     len(details),
		"failed":      failed,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return details
}

// fillIdentity makes sure every detail can be joined by id later on
func fillIdentity(d *models.ListingDetail, s models.ListingSummary) {
	if d.ID == "" {
		d.ID = s.ID
	}
	if d.URL == "" {
		d.URL = s.URL
	}
	if d.ID == "" {
		d.ID = models.ListingID(d.URL)
	}
	if d.Source == "" {
		d.Source = s.Source
	}
	if d.Title == "" {
		d.Title = s.Title
	}
}
