package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"car-advisor/internal/llm"
	"car-advisor/internal/llm/processors"
	"car-advisor/internal/logging"
	"car-advisor/internal/logging/types"
	"car-advisor/pkg/models"
)

// InspectorOptions bounds the inspector input and output
type InspectorOptions struct {
	Model         string
	MaxCandidates int
	TopN          int
}

// adPayload is the listing view sent to the analysis prompts
type adPayload struct {
	ID                models.ListingID  `json:"id"`
	Title             string            `json:"title"`
	Price             string            `json:"price,omitempty"`
	Year              int               `json:"year,omitempty"`
	ManufacturingDate string            `json:"manufacturing_date,omitempty"`
	Mileage           string            `json:"mileage,omitempty"`
	Fuel              string            `json:"fuel,omitempty"`
	Gearbox           string            `json:"gearbox,omitempty"`
	EnginePowerKW     int               `json:"engine_power_kw,omitempty"`
	Body              string            `json:"body,omitempty"`
	Color             string            `json:"color,omitempty"`
	Condition         string            `json:"condition,omitempty"`
	Origin            string            `json:"country_of_origin,omitempty"`
	VIN               string            `json:"vin,omitempty"`
	STKDate           string            `json:"stk_date,omitempty"`
	FirstOwner        bool              `json:"first_owner,omitempty"`
	CrashedInPast     bool              `json:"crashed_in_past,omitempty"`
	Equipment         []string          `json:"equipment,omitempty"`
	Description       string            `json:"description,omitempty"`
	Seller            string            `json:"seller,omitempty"`
	Attributes        map[string]string `json:"attributes,omitempty"`
}

func toPayload(d models.ListingDetail, cleaner *processors.TextCleaner) adPayload {
	return adPayload{
		ID:                d.ID,
		Title:             d.Title,
		Price:             priceLabel(d),
		Year:              d.Year,
		ManufacturingDate: d.ManufacturingDate,
		Mileage:           formatMileage(d.Mileage),
		Fuel:              d.Fuel,
		Gearbox:           d.Gearbox,
		EnginePowerKW:     d.EnginePowerKW,
		Body:              d.Body,
		Color:             d.Color,
		Condition:         d.Condition,
		Origin:            d.Origin,
		VIN:               d.VIN,
		STKDate:           d.STKDate,
		FirstOwner:        d.FirstOwner,
		CrashedInPast:     d.CrashedInPast,
		Equipment:         d.Equipment,
		Description:       cleaner.Clean(d.Description),
		Seller:            firstNonEmpty(d.Seller.ShopName, d.Seller.Name),
		Attributes:        d.Attributes,
	}
}

// Inspector picks and analyzes the best finalists
type Inspector struct {
	llm     llm.Completer
	opts    InspectorOptions
	cleaner *processors.TextCleaner
	logger  types.Logger
}

// NewInspector creates an inspector
func NewInspector(completer llm.Completer, opts InspectorOptions) *Inspector {
	if opts.MaxCandidates <= 0 {
		opts.MaxCandidates = 15
	}
	if opts.TopN <= 0 {
		opts.TopN = 3
	}
	return &Inspector{
		llm:     completer,
		opts:    opts,
		cleaner: processors.NewTextCleaner(1500),
		logger:  logging.ForStage("inspector"),
	}
}

// Inspect analyzes up to MaxCandidates details and returns the model's best
// TopN, best first. Errors are not recovered.
func (i *Inspector) Inspect(ctx context.Context, query string, details []models.ListingDetail) (*models.InspectionReport, error) {
	if len(details) == 0 {
		return &models.InspectionReport{
			SummaryMessage: MessageNoDetails,
			InspectedCars:  []models.AnalysisReport{},
		}, nil
	}
	start := time.Now()

	candidates := details
	if len(candidates) > i.opts.MaxCandidates {
		candidates = candidates[:i.opts.MaxCandidates]
	}
	payload := make([]adPayload, len(candidates))
	for idx, d := range candidates {
		payload[idx] = toPayload(d, i.cleaner)
	}

	data, err := marshalPayload(payload)
	if err != nil {
		return nil, eris.Wrap(err, "inspector")
	}
	prompt := fmt.Sprintf(inspectPrompt, i.opts.TopN, sanitizeQuery(query), data)

	text, err := i.llm.Complete(ctx, llm.CompletionRequest{
		Stage:  "inspector",
		Prompt: prompt,
		Model:  i.opts.Model,
	})
	if err != nil {
		i.logger.Error("Inspector call failed", map[string]interface{}{"error": err.Error()})
		return nil, eris.Wrap(err, "inspector: request failed")
	}
	if strings.TrimSpace(text) == "" {
		return nil, eris.Wrap(ErrEmptyLLMResponse, "inspector")
	}

	var report models.InspectionReport
	if err := llm.DecodeJSON(text, &report); err != nil {
		i.logger.Error("Inspector returned invalid JSON", map[string]interface{}{"error": err.Error()})
		return nil, eris.Wrap(err, "inspector: response is not valid JSON")
	}

	for idx, car := range report.InspectedCars {
		if car.ID == "" {
			return nil, eris.Wrapf(ErrMissingListingID, "inspector: entry %d", idx)
		}
	}
	if len(report.InspectedCars) > i.opts.TopN {
		report.InspectedCars = report.InspectedCars[:i.opts.TopN]
	}
	if report.InspectedCars == nil {
		report.InspectedCars = []models.AnalysisReport{}
	}
	if strings.TrimSpace(report.SummaryMessage) == "" {
		report.SummaryMessage = MessageInspected
	}

	i.logger.Info("Inspection finished", map[string]interface{}{
		"candidates":  len(candidates),
		"inspected":   len(report.InspectedCars),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return &report, nil
}

// Analyst reviews a single ad
type Analyst struct {
	llm     llm.Completer
	model   string
	cleaner *processors.TextCleaner
	logger  types.Logger
}

// NewAnalyst creates a single-ad analyst
func NewAnalyst(completer llm.Completer, model string) *Analyst {
	return &Analyst{
		llm:     completer,
		model:   model,
		cleaner: processors.NewTextCleaner(4000),
		logger:  logging.ForStage("analyst"),
	}
}

// AnalyzeAd returns pros, cons, seller questions and a verdict for one ad
func (a *Analyst) AnalyzeAd(ctx context.Context, detail *models.ListingDetail) (*models.AdAnalysis, error) {
	data, err := marshalPayload(toPayload(*detail, a.cleaner))
	if err != nil {
		return nil, eris.Wrap(err, "analyst")
	}

	var analysis models.AdAnalysis
	if err := completeJSON(ctx, a.llm, "analyst", a.model, fmt.Sprintf(analystPrompt, data), &analysis); err != nil {
		a.logger.Error("Analyst call failed", map[string]interface{}{"error": err.Error()})
		return nil, err
	}
	if strings.TrimSpace(analysis.SummaryVerdict) == "" {
		return nil, eris.Wrap(ErrMalformedAnalysis, "analyst: summary_verdict missing")
	}
	analysis.Pros = nonNil(analysis.Pros)
	analysis.Cons = nonNil(analysis.Cons)
	analysis.QuestionsForSeller = nonNil(analysis.QuestionsForSeller)

	a.logger.Info("Ad analyzed", map[string]interface{}{"id": detail.ID, "source": detail.Source})
	return &analysis, nil
}

// Appraiser estimates the market price of a single ad
type Appraiser struct {
	llm     llm.Completer
	model   string
	cleaner *processors.TextCleaner
	logger  types.Logger
}

// NewAppraiser creates a price appraiser
func NewAppraiser(completer llm.Completer, model string) *Appraiser {
	return &Appraiser{
		llm:     completer,
		model:   model,
		cleaner: processors.NewTextCleaner(2000),
		logger:  logging.ForStage("appraiser"),
	}
}

// Appraise returns a price range with the factors behind it
func (a *Appraiser) Appraise(ctx context.Context, detail *models.ListingDetail) (*models.PriceAppraisal, error) {
	data, err := marshalPayload(toPayload(*detail, a.cleaner))
	if err != nil {
		return nil, eris.Wrap(err, "appraiser")
	}

	var appraisal models.PriceAppraisal
	if err := completeJSON(ctx, a.llm, "appraiser", a.model, fmt.Sprintf(appraisePrompt, data), &appraisal); err != nil {
		a.logger.Error("Appraiser call failed", map[string]interface{}{"error": err.Error()})
		return nil, err
	}
	if appraisal.EstimatedPriceMin <= 0 && appraisal.EstimatedPriceMax <= 0 {
		return nil, eris.Wrap(ErrMalformedAnalysis, "appraiser: price range missing")
	}
	if appraisal.EstimatedPriceMin > appraisal.EstimatedPriceMax {
		appraisal.EstimatedPriceMin, appraisal.EstimatedPriceMax = appraisal.EstimatedPriceMax, appraisal.EstimatedPriceMin
	}
	appraisal.PositiveFactorsCZ = nonNil(appraisal.PositiveFactorsCZ)
	appraisal.NegativeFactorsCZ = nonNil(appraisal.NegativeFactorsCZ)
	appraisal.NegotiationTipsCZ = nonNil(appraisal.NegotiationTipsCZ)

	a.logger.Info("Ad appraised", map[string]interface{}{
		"id":  detail.ID,
		"min": appraisal.EstimatedPriceMin,
		"max": appraisal.EstimatedPriceMax,
	})
	return &appraisal, nil
}

func completeJSON(ctx context.Context, completer llm.Completer, stage, model, prompt string, v interface{}) error {
	text, err := completer.Complete(ctx, llm.CompletionRequest{
		Stage:  stage,
		Prompt: prompt,
		Model:  model,
	})
	if err != nil {
		return eris.Wrapf(err, "%s: request failed", stage)
	}
	if strings.TrimSpace(text) == "" {
		return eris.Wrap(ErrEmptyLLMResponse, stage)
	}
	if err := llm.DecodeJSON(text, v); err != nil {
		return eris.Wrapf(err, "%s: response is not valid JSON", stage)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
