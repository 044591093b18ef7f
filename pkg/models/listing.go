package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Marketplace source names
const (
	SourceSauto   = "sauto"
	SourceBazos   = "bazos"
	SourceTipCars = "tipcars"
)

// ListingID identifies a listing within its marketplace. Model output carries ids both
// as JSON numbers and as strings, so both forms are accepted.
type ListingID string

// UnmarshalJSON accepts a JSON string or number
func (id *ListingID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ListingID(strings.TrimSpace(s))
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("listing id must be a string or number: %w", err)
	}
	if i, err := n.Int64(); err == nil {
		*id = ListingID(strconv.FormatInt(i, 10))
		return nil
	}
	*id = ListingID(n.String())
	return nil
}

// String returns the id as a plain string
func (id ListingID) String() string {
	return string(id)
}

// ListingSummary is the lightweight record returned by a marketplace search page
type ListingSummary struct {
	ID          ListingID  `json:"id"`
	Source      string     `json:"source"`
	Title       string     `json:"title"`
	Price       int        `json:"price,omitempty"`
	PriceText   string     `json:"price_text,omitempty"`
	URL         string     `json:"url"`
	Thumbnail   string     `json:"thumbnail,omitempty"`
	Location    string     `json:"location,omitempty"`
	Description string     `json:"description,omitempty"`
	Year        int        `json:"year,omitempty"`
	Mileage     int        `json:"mileage,omitempty"`
	SortingDate *time.Time `json:"sorting_date,omitempty"`
}

// Key returns the deduplication key: the id, or the url when the source has no ids
func (s ListingSummary) Key() string {
	if s.ID != "" {
		return s.Source + ":" + string(s.ID)
	}
	return s.Source + ":" + s.URL
}

// DetailRef is what a marketplace client needs to load the detail page
func (s ListingSummary) DetailRef() string {
	if s.URL != "" {
		return s.URL
	}
	return string(s.ID)
}

// SellerInfo holds seller contact details
type SellerInfo struct {
	Name     string `json:"name"`
	Location string `json:"location,omitempty"`
	Phone    string `json:"phone,omitempty"`
	ShopName string `json:"shop_name,omitempty"`
	ShopURL  string `json:"shop_url,omitempty"`
}

// ListingDetail is the full record for one listing
type ListingDetail struct {
	ID                ListingID         `json:"id"`
	Source            string            `json:"source"`
	Title             string            `json:"title"`
	URL               string            `json:"url"`
	Price             int               `json:"price,omitempty"`
	PriceText         string            `json:"price_text,omitempty"`
	Mileage           int               `json:"mileage,omitempty"`
	Year              int               `json:"year,omitempty"`
	ManufacturingDate string            `json:"manufacturing_date,omitempty"`
	Fuel              string            `json:"fuel,omitempty"`
	Gearbox           string            `json:"gearbox,omitempty"`
	EnginePowerKW     int               `json:"engine_power_kw,omitempty"`
	Body              string            `json:"body,omitempty"`
	Color             string            `json:"color,omitempty"`
	Condition         string            `json:"condition,omitempty"`
	Origin            string            `json:"origin,omitempty"`
	VIN               string            `json:"vin,omitempty"`
	STKDate           string            `json:"stk_date,omitempty"`
	FirstOwner        bool              `json:"first_owner,omitempty"`
	CrashedInPast     bool              `json:"crashed_in_past,omitempty"`
	Equipment         []string          `json:"equipment,omitempty"`
	Description       string            `json:"description,omitempty"`
	Images            []string          `json:"images,omitempty"`
	Seller            SellerInfo        `json:"seller"`
	MakeSEO           string            `json:"make_seo,omitempty"`
	ModelSEO          string            `json:"model_seo,omitempty"`
	Attributes        map[string]string `json:"attributes,omitempty"`
}

// Key mirrors ListingSummary.Key
func (d ListingDetail) Key() string {
	if d.ID != "" {
		return d.Source + ":" + string(d.ID)
	}
	return d.Source + ":" + d.URL
}

// RankedListing is a listing detail with the score assigned by the ranker
type RankedListing struct {
	ListingDetail
	Score  int  `json:"score"`
	Scored bool `json:"scored"`
}
