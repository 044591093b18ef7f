package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"car-advisor/internal/scraper"
	"car-advisor/pkg/models"
	"car-advisor/pkg/utils"
)

// Assembler joins inspector output back to the original listings
type Assembler struct {
	maxImages int
}

// NewAssembler creates an assembler keeping at most maxImages per car
func NewAssembler(maxImages int) *Assembler {
	if maxImages <= 0 {
		maxImages = 8
	}
	return &Assembler{maxImages: maxImages}
}

// Assemble builds the final response. Cars whose id matches no listing are
// dropped. Inputs are not modified, so repeated calls give equal output.
func (a *Assembler) Assemble(report *models.InspectionReport, listings []models.RankedListing, images scraper.ImageResolver) *models.FinalResponse {
	byID := make(map[models.ListingID]models.RankedListing, len(listings))
	for _, l := range listings {
		if _, exists := byID[l.ID]; !exists {
			byID[l.ID] = l
		}
	}

	resp := &models.FinalResponse{InspectedCars: []models.InspectedCar{}}
	if report != nil {
		resp.SummaryMessage = report.SummaryMessage
		for _, analysis := range report.InspectedCars {
			listing, ok := byID[analysis.ID]
			if !ok {
				continue
			}
			resp.InspectedCars = append(resp.InspectedCars, a.buildCar(analysis, listing, images))
		}
	}

	if len(resp.InspectedCars) == 0 {
		resp.SummaryMessage = MessageNoSuitable
		if report != nil && report.SummaryMessage == MessageNoDetails {
			resp.SummaryMessage = MessageNoDetails
		}
	}
	return resp
}

func (a *Assembler) buildCar(analysis models.AnalysisReport, listing models.RankedListing, images scraper.ImageResolver) models.InspectedCar {
	d := listing.ListingDetail

	car := models.InspectedCar{
		ID:                   d.ID,
		Source:               d.Source,
		Title:                d.Title,
		URL:                  d.URL,
		Price:                priceLabel(d),
		Images:               a.imageURLs(d.Images, images),
		SellerInfo:           sellerInfo(d.Seller),
		SummaryCZ:            analysis.SummaryCZ,
		ProsCZ:               copyStrings(analysis.ProsCZ),
		ConsCZ:               copyStrings(analysis.ConsCZ),
		QuestionsForSellerCZ: copyStrings(analysis.QuestionsForSellerCZ),
		FinalVerdictCZ:       analysis.FinalVerdictCZ,
	}
	if d.VIN != "" {
		vin := d.VIN
		car.VIN = &vin
	}
	if listing.Scored {
		score := listing.Score
		car.Score = &score
	}
	if analysis.PriceEstimate != nil {
		estimate := *analysis.PriceEstimate
		car.PriceEstimate = &estimate
	}
	return car
}

func (a *Assembler) imageURLs(raw []string, images scraper.ImageResolver) []string {
	out := make([]string, 0, a.maxImages)
	for _, path := range raw {
		if len(out) == a.maxImages {
			break
		}
		if strings.TrimSpace(path) == "" {
			continue
		}
		if images != nil {
			path = images.ResolveImage(path)
		}
		out = append(out, path)
	}
	return out
}

func sellerInfo(s models.SellerInfo) models.SellerInfo {
	if s.Name == "" {
		s.Name = firstNonEmpty(s.ShopName, defaultSellerName)
	}
	return s
}

func priceLabel(d models.ListingDetail) string {
	if d.Price > 0 {
		return utils.FormatCZK(d.Price)
	}
	return d.PriceText
}

func formatMileage(km int) string {
	return utils.FormatKM(km)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func copyStrings(s []string) []string {
	return append([]string{}, s...)
}

func marshalPayload(v interface{}) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode prompt payload: %w", err)
	}
	return string(data), nil
}
