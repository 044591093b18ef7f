package models

import "strings"

// Pipeline modes for the Sauto pipeline
const (
	ModeFocus = "focus"
	ModeBroad = "broad"
)

// SearchRequest is the body of the pipeline endpoints
type SearchRequest struct {
	UserQuery string         `json:"userQuery" validate:"required,max=2000"`
	Filters   *SearchFilters `json:"filters,omitempty"`
	Mode      string         `json:"mode,omitempty" validate:"omitempty,oneof=focus broad"`
}

// InterpretRequest is the body of the interpreter endpoint
type InterpretRequest struct {
	UserQuery string `json:"userQuery" validate:"required,max=2000"`
	Mode      string `json:"mode,omitempty" validate:"omitempty,oneof=focus broad phrases"`
}

// CollectRequest is the body of the collector endpoint
type CollectRequest struct {
	Platform string         `json:"platform" validate:"omitempty,platform"`
	Models   []CarModel     `json:"models,omitempty" validate:"omitempty,dive"`
	Filters  *SearchFilters `json:"filters,omitempty"`
	Phrases  []string       `json:"phrases,omitempty" validate:"omitempty,max=10,dive,required"`
	Mode     string         `json:"mode,omitempty" validate:"omitempty,oneof=focus broad"`
}

// AdURLRequest is the body of the single-ad endpoints
type AdURLRequest struct {
	AdURL string `json:"adUrl" validate:"required,url"`
}

// RankRequest is the body of the ranker endpoint
type RankRequest struct {
	UserQuery string          `json:"userQuery" validate:"required"`
	Listings  []ListingDetail `json:"listings" validate:"required"`
}

// FilterRequest is the body of the relevance filter endpoint
type FilterRequest struct {
	UserQuery string           `json:"userQuery" validate:"required"`
	Listings  []ListingSummary `json:"listings" validate:"required"`
}

// InspectRequest is the body of the inspector endpoint. Listings carry at least an id;
// full details are re-fetched from the platform.
type InspectRequest struct {
	UserQuery string           `json:"userQuery" validate:"required"`
	Platform  string           `json:"platform" validate:"omitempty,platform"`
	Listings  []ListingSummary `json:"listings" validate:"required"`
}

// MetaSearchRequest is the body of the meta-search endpoint
type MetaSearchRequest struct {
	UserQuery string   `json:"userQuery" validate:"required,max=2000"`
	Platforms []string `json:"platforms" validate:"required,min=1,dive,platform"`
}

// Normalizer is implemented by requests whose enum-like fields are matched in lower case
type Normalizer interface {
	Normalize()
}

func lower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Normalize lower-cases the mode and the filter values
func (r *SearchRequest) Normalize() {
	r.Mode = lower(r.Mode)
	r.Filters.Normalize()
}

// Normalize lower-cases the mode
func (r *InterpretRequest) Normalize() {
	r.Mode = lower(r.Mode)
}

// Normalize lower-cases the platform, mode and filter values
func (r *CollectRequest) Normalize() {
	r.Platform = lower(r.Platform)
	r.Mode = lower(r.Mode)
	r.Filters.Normalize()
}

// Normalize lower-cases the platform
func (r *InspectRequest) Normalize() {
	r.Platform = lower(r.Platform)
}

// Normalize lower-cases every platform name
func (r *MetaSearchRequest) Normalize() {
	for i, p := range r.Platforms {
		r.Platforms[i] = lower(p)
	}
}
