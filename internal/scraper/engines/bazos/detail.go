package bazos

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"car-advisor/internal/llm/processors"
	"car-advisor/pkg/models"
	"car-advisor/pkg/utils"
)

var metaPricePattern = regexp.MustCompile(`Cena:\s*([\d\s]+Kč)`)

// parseDetail extracts an ad detail page
func parseDetail(html, adURL string) (*models.ListingDetail, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	title := strings.TrimSpace(doc.Find("h1.nadpisdetail").First().Text())
	if title == "" {
		return nil, fmt.Errorf("page has no ad title")
	}

	detail := &models.ListingDetail{
		Source:     models.SourceBazos,
		Title:      title,
		URL:        adURL,
		Attributes: make(map[string]string),
	}

	descNode := doc.Find("div.popisdetail").First()
	descNode.Find("br").ReplaceWithHtml("\n")
	detail.Description = strings.TrimSpace(descNode.Text())

	detail.PriceText = "Cena dohodou"
	if priceNodes := doc.Find(".listadvlevo table b"); priceNodes.Length() > 0 {
		detail.PriceText = utils.CollapseSpaces(priceNodes.Last().Text())
	} else if meta, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
		if m := metaPricePattern.FindStringSubmatch(meta); m != nil {
			detail.PriceText = utils.CollapseSpaces(m[1])
		}
	}
	detail.Price = parsePrice(detail.PriceText)

	doc.Find(".listadvlevo table tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() == 0 {
			return
		}
		header := strings.TrimSpace(cells.Eq(0).Text())
		switch {
		case strings.Contains(header, "Jméno:"):
			detail.Seller.Name = strings.TrimSpace(cells.Eq(1).Text())
		case strings.Contains(header, "Lokalita:"):
			loc := cells.Eq(2)
			if loc.Length() == 0 {
				loc = cells.Eq(1)
			}
			detail.Seller.Location = utils.CollapseSpaces(loc.Text())
		case strings.Contains(header, "Vidělo:"):
			detail.Attributes["views"] = strings.TrimSpace(strings.Replace(cells.Eq(1).Text(), "lidí", "", 1))
		}
	})

	doc.Find(".carousel-cell img").Each(func(i int, img *goquery.Selection) {
		src, ok := img.Attr("data-flickity-lazyload")
		if !ok || src == "" {
			src, _ = img.Attr("src")
		}
		if src != "" {
			detail.Images = append(detail.Images, src)
		}
	})

	for key, value := range processors.KeyValueLines(detail.Description) {
		detail.Attributes[normalizeKey(key)] = value
	}
	applyStructuredData(detail)

	return detail, nil
}

// normalizeKey turns "Rok výroby" into "rok_výroby"
func normalizeKey(key string) string {
	return strings.Join(strings.Fields(strings.ToLower(key)), "_")
}

// applyStructuredData fills typed fields from "key: value" lines sellers commonly write
func applyStructuredData(d *models.ListingDetail) {
	first := func(keys ...string) string {
		for _, k := range keys {
			if v, ok := d.Attributes[k]; ok {
				return v
			}
		}
		return ""
	}

	if v := first("rok_výroby", "rok", "r.v.", "rv"); v != "" {
		if year := utils.ParseDigits(v); year >= 1950 && year <= 2100 {
			d.Year = year
		}
	}
	if v := first("najeto", "tachometr", "nájezd", "stav_tachometru"); v != "" {
		d.Mileage = utils.ParseDigits(v)
	}
	if v := first("výkon", "vykon"); v != "" {
		d.EnginePowerKW = utils.ParseDigits(v)
	}
	if v := first("palivo"); v != "" {
		d.Fuel = v
	}
	if v := first("převodovka", "prevodovka"); v != "" {
		d.Gearbox = v
	}
	if v := first("vin"); v != "" {
		d.VIN = v
	}
	if v := first("stk"); v != "" {
		d.STKDate = v
	}
}
