package scraper

import (
	"context"

	"car-advisor/internal/scraper/fetch"
	"car-advisor/pkg/models"
)

// MarketplaceClient is the access layer for one classified-ad portal
type MarketplaceClient interface {
	// Name returns the marketplace source identifier (sauto, bazos, tipcars)
	Name() string

	// Search returns one page of listings for the query. An empty page means
	// the result set is exhausted.
	Search(ctx context.Context, query models.SearchQuery) ([]models.ListingSummary, error)

	// FetchDetail loads a single listing. ref is either the listing id or its
	// absolute detail URL.
	FetchDetail(ctx context.Context, ref string) (*models.ListingDetail, error)
}

// SessionStarter is implemented by clients that need a cookie handshake
// before searching
type SessionStarter interface {
	StartSession(ctx context.Context) error
}

// Pager is implemented by clients whose page size is fixed by the portal
type Pager interface {
	PageSize() int
}

// ImageResolver turns a raw image path from a listing into a displayable URL
type ImageResolver interface {
	ResolveImage(raw string) string
}

// PageFetcher downloads the HTML of a page
type PageFetcher = fetch.PageFetcher
