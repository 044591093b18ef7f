package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// SearchFilters are the marketplace search constraints extracted from a query.
// Zero values mean "not specified".
type SearchFilters struct {
	PriceTo      int    `json:"price_to,omitempty" validate:"omitempty,min=0"`
	TachometerTo int    `json:"tachometer_to,omitempty" validate:"omitempty,min=0"`
	Fuel         string `json:"fuel,omitempty" validate:"omitempty,fuel"`
	Gearbox      string `json:"gearbox,omitempty" validate:"omitempty,gearbox"`
	BodyTypeSEO  string `json:"body_type_seo,omitempty"`
	YearFrom     int    `json:"year_from,omitempty" validate:"omitempty,min=1900,max=2100"`
	ConditionSEO string `json:"condition_seo,omitempty"`
}

// Normalize lower-cases the enum-like values; a nil receiver is a no-op
func (f *SearchFilters) Normalize() {
	if f == nil {
		return
	}
	f.Fuel = strings.ToLower(strings.TrimSpace(f.Fuel))
	f.Gearbox = strings.ToLower(strings.TrimSpace(f.Gearbox))
	f.BodyTypeSEO = strings.ToLower(strings.TrimSpace(f.BodyTypeSEO))
	f.ConditionSEO = strings.ToLower(strings.TrimSpace(f.ConditionSEO))
}

// Merge returns a copy of f with every field set in override replacing the original
func (f SearchFilters) Merge(override *SearchFilters) SearchFilters {
	if override == nil {
		return f
	}
	if override.PriceTo > 0 {
		f.PriceTo = override.PriceTo
	}
	if override.TachometerTo > 0 {
		f.TachometerTo = override.TachometerTo
	}
	if override.Fuel != "" {
		f.Fuel = override.Fuel
	}
	if override.Gearbox != "" {
		f.Gearbox = override.Gearbox
	}
	if override.BodyTypeSEO != "" {
		f.BodyTypeSEO = override.BodyTypeSEO
	}
	if override.YearFrom > 0 {
		f.YearFrom = override.YearFrom
	}
	if override.ConditionSEO != "" {
		f.ConditionSEO = override.ConditionSEO
	}
	return f
}

// CarModel is one candidate make/model in marketplace SEO form
type CarModel struct {
	Make     string `json:"make" validate:"required"`
	Model    string `json:"model" validate:"required"`
	YearFrom int    `json:"year_from,omitempty"`
}

// UnmarshalJSON accepts year_from as a number or a numeric string; anything else
// leaves it unset.
func (m *CarModel) UnmarshalJSON(data []byte) error {
	var raw struct {
		Make     string          `json:"make"`
		Model    string          `json:"model"`
		YearFrom json.RawMessage `json:"year_from"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Make = raw.Make
	m.Model = raw.Model
	m.YearFrom = lenientInt(raw.YearFrom)
	return nil
}

func lenientInt(data json.RawMessage) int {
	if len(data) == 0 {
		return 0
	}
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		return int(f)
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return n
		}
	}
	return 0
}

// String returns "make:model", the form the Sauto search API expects
func (m CarModel) String() string {
	return fmt.Sprintf("%s:%s", strings.ToLower(m.Make), strings.ToLower(m.Model))
}

// StrategyResult is the Query Interpreter output for the focus pipeline
type StrategyResult struct {
	Models  []CarModel     `json:"models"`
	Filters *SearchFilters `json:"filters"`
}

// SearchQuery is a single marketplace search: one model with filters, a bare filter set
// for broad search, or a free-text phrase for HTML marketplaces.
type SearchQuery struct {
	Model   *CarModel     `json:"model,omitempty"`
	Filters SearchFilters `json:"filters"`
	Phrase  string        `json:"phrase,omitempty"`
	Offset  int           `json:"offset"`
	Limit   int           `json:"limit"`
}

// Label names the query in logs
func (q SearchQuery) Label() string {
	switch {
	case q.Model != nil:
		return q.Model.String()
	case q.Phrase != "":
		return q.Phrase
	default:
		return "broad"
	}
}
