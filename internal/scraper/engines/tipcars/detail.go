package tipcars

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"car-advisor/pkg/models"
	"car-advisor/pkg/utils"
)

func parseDetail(html, pageURL string) (*models.ListingDetail, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	detail := &models.ListingDetail{
		Source:     models.SourceTipCars,
		URL:        pageURL,
		Title:      utils.CollapseSpaces(doc.Find("h1").First().Text()),
		Attributes: make(map[string]string),
	}

	detail.Description = utils.CollapseSpaces(doc.Find(".detail-note .detail-box__long-text").First().Text())

	if priceText := utils.CollapseSpaces(doc.Find(".detail-price h3, .advertisement-name__price h3").First().Text()); priceText != "" {
		detail.PriceText = priceText
		detail.Price = utils.ParseDigits(priceText)
	}

	doc.Find(".detail-info .detail-box-S").Each(func(i int, box *goquery.Selection) {
		keyNode := box.Find(".detail-box__info-icon").First()
		key := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(keyNode.Text()), ":"))
		if key == "" {
			return
		}
		value := utils.CollapseSpaces(box.Text())
		value = strings.TrimSpace(strings.TrimPrefix(strings.Replace(value, key, "", 1), ":"))
		detail.Attributes[key] = value
	})

	doc.Find(".detail-specs .detail-box-M").Each(func(i int, section *goquery.Selection) {
		section.Find("ul li").Each(func(j int, li *goquery.Selection) {
			if item := utils.CollapseSpaces(li.Text()); item != "" {
				detail.Equipment = append(detail.Equipment, item)
			}
		})
	})

	doc.Find(".detail-gallery img, .gallery img").Each(func(i int, img *goquery.Selection) {
		src, ok := img.Attr("data-src")
		if !ok || src == "" {
			src, _ = img.Attr("src")
		}
		if src != "" {
			detail.Images = append(detail.Images, src)
		}
	})

	applyParameters(detail)

	if detail.Title == "" && detail.Description == "" && len(detail.Attributes) == 0 {
		return nil, fmt.Errorf("page has no listing content")
	}
	return detail, nil
}

// applyParameters maps the labelled parameter boxes to typed fields
func applyParameters(d *models.ListingDetail) {
	for key, value := range d.Attributes {
		k := strings.ToLower(key)
		switch {
		case strings.Contains(k, "vyrob") || strings.Contains(k, "výrob") || strings.Contains(k, "registrace"):
			if m := yearPattern.FindString(value); m != "" {
				d.Year = utils.ParseDigits(m)
			}
			d.ManufacturingDate = value
		case strings.Contains(k, "tachometr") || strings.Contains(k, "najeto"):
			d.Mileage = utils.ParseDigits(value)
		case strings.Contains(k, "palivo"):
			d.Fuel = value
		case strings.Contains(k, "převodovka") || strings.Contains(k, "prevodovka"):
			d.Gearbox = value
		case strings.Contains(k, "výkon") || strings.Contains(k, "vykon"):
			d.EnginePowerKW = utils.ParseDigits(strings.Split(value, "kW")[0])
		case strings.Contains(k, "karoserie"):
			d.Body = value
		case strings.Contains(k, "barva"):
			d.Color = value
		case k == "vin":
			d.VIN = value
		case strings.Contains(k, "stk"):
			d.STKDate = value
		case strings.Contains(k, "země původu") || strings.Contains(k, "původ"):
			d.Origin = value
		}
	}

	if d.Fuel == "" {
		for _, fuel := range fuelNames {
			for _, value := range d.Attributes {
				if strings.EqualFold(value, fuel) {
					d.Fuel = fuel
				}
			}
		}
	}
}
