package sauto

import (
	"fmt"
	"strings"
	"time"

	"car-advisor/pkg/models"
	"car-advisor/pkg/utils"
)

var sortingDateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"}

func parseSortingDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range sortingDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

func seoName(cb *codebook) string {
	if cb == nil {
		return ""
	}
	return cb.SEOName
}

func cbName(cb *codebook) string {
	if cb == nil {
		return ""
	}
	return cb.Name
}

// detailURL is the public page of a listing
func (c *Client) detailURL(makeSEO, modelSEO string, id models.ListingID) string {
	if makeSEO == "" || modelSEO == "" {
		return fmt.Sprintf("%s/osobni/detail/%s", c.baseURL, id)
	}
	return fmt.Sprintf("%s/osobni/detail/%s/%s/%s", c.baseURL, makeSEO, modelSEO, id)
}

func (c *Client) toSummary(item searchItem) models.ListingSummary {
	summary := models.ListingSummary{
		ID:          item.ID,
		Source:      models.SourceSauto,
		Title:       item.Name,
		Price:       item.Price,
		PriceText:   utils.FormatCZK(item.Price),
		URL:         c.detailURL(seoName(item.Manufacturer), seoName(item.Model), item.ID),
		Year:        utils.YearOf(item.ManufacturingDate),
		Mileage:     item.Tachometer,
		SortingDate: parseSortingDate(item.SortingDate),
	}
	if len(item.Images) > 0 {
		summary.Thumbnail = c.ResolveImage(item.Images[0].URL)
	}
	if item.Locality != nil {
		summary.Location = strings.TrimSpace(strings.Join(nonEmpty(item.Locality.Municipality, item.Locality.District), ", "))
	}
	return summary
}

func (c *Client) toDetail(item *detailItem) *models.ListingDetail {
	detail := &models.ListingDetail{
		ID:                item.ID,
		Source:            models.SourceSauto,
		Title:             item.Name,
		Price:             item.Price,
		PriceText:         utils.FormatCZK(item.Price),
		Mileage:           item.Tachometer,
		Year:              utils.YearOf(item.ManufacturingDate),
		ManufacturingDate: item.ManufacturingDate,
		Fuel:              cbName(item.Fuel),
		Gearbox:           cbName(item.Gearbox),
		EnginePowerKW:     item.EnginePower,
		Body:              cbName(item.Body),
		Color:             cbName(item.Color),
		Condition:         cbName(item.Condition),
		Origin:            cbName(item.CountryOfOrigin),
		VIN:               strings.TrimSpace(item.VIN),
		STKDate:           item.STKDate,
		FirstOwner:        item.FirstOwner,
		CrashedInPast:     item.CrashedInPast,
		Description:       item.Description,
		MakeSEO:           seoName(item.Manufacturer),
		ModelSEO:          seoName(item.Model),
	}
	detail.URL = c.detailURL(detail.MakeSEO, detail.ModelSEO, item.ID)

	for _, eq := range item.Equipment {
		if eq.Name != "" {
			detail.Equipment = append(detail.Equipment, eq.Name)
		}
	}
	for _, img := range item.Images {
		if img.URL != "" {
			detail.Images = append(detail.Images, img.URL)
		}
	}

	if s := item.SellerInfo; s != nil {
		detail.Seller.Name = s.SellerName
		if s.Location != nil {
			detail.Seller.Location = s.Location.Title
		}
		if len(s.SellerPhones) > 0 {
			detail.Seller.Phone = s.SellerPhones[0].Phone
		}
	}
	if detail.Seller.Phone == "" {
		detail.Seller.Phone = item.Phone
	}
	if item.User != nil && item.User.UserService != nil {
		detail.Seller.ShopName = item.User.UserService.ShopName
		detail.Seller.ShopURL = item.User.UserService.ShopURL
	}

	return detail
}

func nonEmpty(values ...string) []string {
	out := values[:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
