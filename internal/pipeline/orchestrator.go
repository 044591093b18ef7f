package pipeline

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"car-advisor/internal/config"
	"car-advisor/internal/llm"
	"car-advisor/internal/logging"
	"car-advisor/internal/logging/types"
	"car-advisor/internal/scraper"
	"car-advisor/pkg/models"
	"car-advisor/pkg/utils"
)

// Pipeline names reported in history and stats
const (
	PipelineFocus   = "focus"
	PipelineBroad   = "broad"
	PipelinePhrases = "phrases"
)

// ClientSource resolves marketplace clients by platform name
type ClientSource interface {
	Client(platform string) (scraper.MarketplaceClient, error)
}

// Interpretation is the interpreter endpoint result
type Interpretation struct {
	Models  []models.CarModel     `json:"models,omitempty"`
	Filters *models.SearchFilters `json:"filters,omitempty"`
	Phrases []string              `json:"phrases,omitempty"`
	Empty   bool                  `json:"empty"`
}

// Pipeline wires the stages into the end-to-end flows
type Pipeline struct {
	clients     ClientSource
	interpreter *Interpreter
	collectors  map[string]*Collector
	fetcher     *DetailFetcher
	filter      *RelevanceFilter
	ranker      *Ranker
	inspector   *Inspector
	analyst     *Analyst
	appraiser   *Appraiser
	assembler   *Assembler
	logger      types.Logger
}

// New builds every stage from the configuration
func New(cfg *config.Config, completer llm.Completer, clients ClientSource) *Pipeline {
	p := cfg.Pipeline
	collector := func(limits config.StageLimits) *Collector {
		return NewCollector(CollectorOptions{
			PageSize:   p.PageSize,
			MaxRecords: limits.MaxRecords,
			TopN:       limits.TopN,
		})
	}

	return &Pipeline{
		clients:     clients,
		interpreter: NewInterpreter(completer, cfg.LLM.Model),
		collectors: map[string]*Collector{
			PipelineFocus:   collector(p.Focus),
			PipelineBroad:   collector(p.Broad),
			PipelinePhrases: collector(p.Phrase),
		},
		fetcher: NewDetailFetcher(cfg.Scraper.DetailConcurrency),
		filter:  NewRelevanceFilter(completer, cfg.LLM.Model, p.FilterMaxListings),
		ranker: NewRanker(completer, RankerOptions{
			Model:       cfg.LLM.Model,
			BatchSize:   p.RankBatchSize,
			MinScore:    p.MinScore,
			Concurrency: cfg.Scraper.DetailConcurrency,
		}),
		inspector: NewInspector(completer, InspectorOptions{
			Model:         cfg.LLM.AnalysisModel,
			MaxCandidates: p.InspectorCandidates,
			TopN:          p.InspectorTopN,
		}),
		analyst:   NewAnalyst(completer, cfg.LLM.AnalysisModel),
		appraiser: NewAppraiser(completer, cfg.LLM.AnalysisModel),
		assembler: NewAssembler(p.MaxImages),
		logger:    logging.ForStage("orchestrator"),
	}
}

// Analyze runs the Sauto pipeline in the requested mode
func (p *Pipeline) Analyze(ctx context.Context, req models.SearchRequest) (*models.FinalResponse, error) {
	if req.Mode == models.ModeBroad {
		return p.RunBroad(ctx, req)
	}
	return p.RunFocus(ctx, req)
}

// RunFocus interprets candidate models, searches each one on Sauto and
// inspects the best listings
func (p *Pipeline) RunFocus(ctx context.Context, req models.SearchRequest) (*models.FinalResponse, error) {
	start := time.Now()

	strategy, err := p.interpreter.Strategy(ctx, req.UserQuery)
	if err != nil {
		if eris.Is(err, ErrNoModels) {
			p.logger.Info("No models interpreted, skipping scrape", map[string]interface{}{"pipeline": PipelineFocus})
			return emptyResponse(MessageNoResults), nil
		}
		return nil, err
	}

	filters := strategy.Filters.Merge(req.Filters)
	queries := make([]models.SearchQuery, len(strategy.Models))
	for i := range strategy.Models {
		model := strategy.Models[i]
		queries[i] = models.SearchQuery{Model: &model, Filters: filters}
	}

	return p.run(ctx, runSpec{
		pipeline: PipelineFocus,
		platform: models.SourceSauto,
		query:    req.UserQuery,
		queries:  queries,
		start:    start,
	})
}

// RunBroad interprets filters only and searches Sauto without a model
func (p *Pipeline) RunBroad(ctx context.Context, req models.SearchRequest) (*models.FinalResponse, error) {
	start := time.Now()

	interpreted, err := p.interpreter.Filters(ctx, req.UserQuery)
	if err != nil {
		return nil, err
	}
	filters := interpreted.Merge(req.Filters)

	return p.run(ctx, runSpec{
		pipeline: PipelineBroad,
		platform: models.SourceSauto,
		query:    req.UserQuery,
		queries:  []models.SearchQuery{{Filters: filters}},
		start:    start,
	})
}

// RunPhrases searches an HTML marketplace with interpreted free-text phrases
func (p *Pipeline) RunPhrases(ctx context.Context, platform string, req models.SearchRequest) (*models.FinalResponse, error) {
	start := time.Now()

	phrases, err := p.interpreter.SearchPhrases(ctx, req.UserQuery)
	if err != nil {
		return nil, err
	}

	var filters models.SearchFilters
	filters = filters.Merge(req.Filters)
	queries := make([]models.SearchQuery, len(phrases))
	for i, phrase := range phrases {
		queries[i] = models.SearchQuery{Phrase: phrase, Filters: filters}
	}

	return p.run(ctx, runSpec{
		pipeline:        PipelinePhrases,
		platform:        platform,
		query:           req.UserQuery,
		queries:         queries,
		relevanceFilter: true,
		requirePrice:    platform == models.SourceBazos,
		start:           start,
	})
}

// RunPlatform runs the default pipeline of a platform
func (p *Pipeline) RunPlatform(ctx context.Context, platform, query string) (*models.FinalResponse, error) {
	req := models.SearchRequest{UserQuery: query}
	if platform == models.SourceSauto {
		return p.RunFocus(ctx, req)
	}
	return p.RunPhrases(ctx, platform, req)
}

type runSpec struct {
	pipeline        string
	platform        string
	query           string
	queries         []models.SearchQuery
	relevanceFilter bool
	requirePrice    bool
	start           time.Time
}

func (p *Pipeline) run(ctx context.Context, spec runSpec) (*models.FinalResponse, error) {
	logger := p.logger.WithFields(map[string]interface{}{
		"pipeline": spec.pipeline,
		"platform": spec.platform,
	})

	client, err := p.clients.Client(spec.platform)
	if err != nil {
		return nil, utils.NewBadRequestError(err.Error())
	}

	collected, err := p.collectors[spec.pipeline].Collect(ctx, client, spec.queries)
	if err != nil {
		return nil, err
	}
	stats := &models.PipelineStats{Collected: collected.Total}
	if collected.Empty {
		logger.Info("Nothing collected")
		resp := emptyResponse(MessageNoResults)
		resp.Stats = finishStats(stats, spec.start)
		return resp, nil
	}

	summaries := collected.Listings
	if spec.relevanceFilter {
		summaries = p.filter.Filter(ctx, spec.query, summaries)
		if len(summaries) == 0 {
			resp := emptyResponse(MessageNoResults)
			resp.Stats = finishStats(stats, spec.start)
			return resp, nil
		}
	}

	details := p.fetcher.Fetch(ctx, client, summaries)
	if spec.requirePrice {
		details = withPrice(details)
	}
	stats.Fetched = len(details)
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "orchestrator")
	}

	rank := p.ranker.Rank(ctx, spec.query, details)
	stats.Ranked = len(rank.Listings)
	stats.RankerApplied = rank.Applied
	if rank.Applied && len(rank.Listings) == 0 {
		logger.Info("No listing reached the minimum score")
		resp := emptyResponse(MessageNoSuitable)
		resp.Platforms = []string{spec.platform}
		resp.Stats = finishStats(stats, spec.start)
		return resp, nil
	}

	report, err := p.inspector.Inspect(ctx, spec.query, rank.Details())
	if err != nil {
		return nil, err
	}

	resp := p.assembler.Assemble(report, rank.Listings, imageResolver(client))
	resp.Platforms = []string{spec.platform}
	stats.Inspected = len(resp.InspectedCars)
	resp.Stats = finishStats(stats, spec.start)

	logger.Info("Pipeline finished", map[string]interface{}{
		"collected": stats.Collected,
		"fetched":   stats.Fetched,
		"inspected": stats.Inspected,
		"duration":  stats.Duration,
	})
	return resp, nil
}

// Interpret runs only the interpreter; mode is focus, broad or phrases
func (p *Pipeline) Interpret(ctx context.Context, query, mode string) (*Interpretation, error) {
	switch mode {
	case models.ModeBroad:
		filters, err := p.interpreter.Filters(ctx, query)
		if err != nil {
			return nil, err
		}
		return &Interpretation{Filters: filters}, nil
	case PipelinePhrases:
		phrases, err := p.interpreter.SearchPhrases(ctx, query)
		if err != nil {
			return nil, err
		}
		return &Interpretation{Phrases: phrases}, nil
	default:
		strategy, err := p.interpreter.Strategy(ctx, query)
		if err != nil {
			if eris.Is(err, ErrNoModels) {
				return &Interpretation{Models: []models.CarModel{}, Empty: true}, nil
			}
			return nil, err
		}
		return &Interpretation{Models: strategy.Models, Filters: strategy.Filters}, nil
	}
}

// Collect runs only the collector
func (p *Pipeline) Collect(ctx context.Context, req models.CollectRequest) (*CollectResult, error) {
	platform := req.Platform
	if platform == "" {
		platform = models.SourceSauto
	}
	client, err := p.clients.Client(platform)
	if err != nil {
		return nil, utils.NewBadRequestError(err.Error())
	}

	var filters models.SearchFilters
	filters = filters.Merge(req.Filters)

	mode := PipelineFocus
	var queries []models.SearchQuery
	switch {
	case len(req.Phrases) > 0:
		mode = PipelinePhrases
		for _, phrase := range req.Phrases {
			queries = append(queries, models.SearchQuery{Phrase: strings.TrimSpace(phrase), Filters: filters})
		}
	case len(req.Models) > 0:
		for i := range req.Models {
			model := req.Models[i]
			queries = append(queries, models.SearchQuery{Model: &model, Filters: filters})
		}
	case req.Mode == models.ModeBroad:
		mode = PipelineBroad
		queries = []models.SearchQuery{{Filters: filters}}
	default:
		return nil, utils.NewValidationError("models, phrases or mode \"broad\" is required")
	}

	return p.collectors[mode].Collect(ctx, client, queries)
}

// Rank runs only the ranker
func (p *Pipeline) Rank(ctx context.Context, query string, details []models.ListingDetail) RankResult {
	return p.ranker.Rank(ctx, query, details)
}

// Filter runs only the relevance filter
func (p *Pipeline) Filter(ctx context.Context, query string, listings []models.ListingSummary) []models.ListingSummary {
	return p.filter.Filter(ctx, query, listings)
}

// Inspect fetches details for the given listings, inspects and assembles them
func (p *Pipeline) Inspect(ctx context.Context, platform, query string, listings []models.ListingSummary) (*models.FinalResponse, error) {
	if platform == "" {
		platform = models.SourceSauto
	}
	client, err := p.clients.Client(platform)
	if err != nil {
		return nil, utils.NewBadRequestError(err.Error())
	}

	details := p.fetcher.Fetch(ctx, client, listings)
	report, err := p.inspector.Inspect(ctx, query, details)
	if err != nil {
		return nil, err
	}
	resp := p.assembler.Assemble(report, unranked(details), imageResolver(client))
	resp.Platforms = []string{platform}
	return resp, nil
}

// AdDetails loads one ad from its public URL. URLs that are not a detail page
// of a supported marketplace are rejected.
func (p *Pipeline) AdDetails(ctx context.Context, adURL string) (*models.ListingDetail, scraper.MarketplaceClient, error) {
	info, err := utils.ParseAdURL(adURL)
	if err != nil {
		return nil, nil, err
	}
	client, err := p.clients.Client(info.Source)
	if err != nil {
		return nil, nil, utils.NewBadRequestError(err.Error())
	}

	detail, err := client.FetchDetail(ctx, info.PublicURL)
	if err != nil {
		p.logger.Error("Ad detail fetch failed", map[string]interface{}{
			"source": info.Source,
			"id":     info.ID,
			"error":  err.Error(),
		})
		return nil, nil, utils.NewScrapingError(err.Error())
	}
	fillIdentity(detail, models.ListingSummary{ID: models.ListingID(info.ID), Source: info.Source, URL: info.PublicURL})
	return detail, client, nil
}

// AnalyzeAd runs the single-ad analyst
func (p *Pipeline) AnalyzeAd(ctx context.Context, adURL string) (*models.AdAnalysisResponse, error) {
	detail, client, err := p.AdDetails(ctx, adURL)
	if err != nil {
		return nil, err
	}
	analysis, err := p.analyst.AnalyzeAd(ctx, detail)
	if err != nil {
		return nil, err
	}
	return &models.AdAnalysisResponse{
		VehicleDetailsWidget: VehicleDetailsWidget(detail),
		AIAnalysis:           analysis,
		OriginalAd:           p.originalAd(detail, adURL, client, 4),
	}, nil
}

// AppraiseAd runs the price appraiser
func (p *Pipeline) AppraiseAd(ctx context.Context, adURL string) (*models.AppraisalResponse, error) {
	detail, client, err := p.AdDetails(ctx, adURL)
	if err != nil {
		return nil, err
	}
	appraisal, err := p.appraiser.Appraise(ctx, detail)
	if err != nil {
		return nil, err
	}
	return &models.AppraisalResponse{
		Appraisal:  appraisal,
		OriginalAd: p.originalAd(detail, adURL, client, 3),
	}, nil
}

func (p *Pipeline) originalAd(d *models.ListingDetail, adURL string, client scraper.MarketplaceClient, images int) models.OriginalAd {
	return models.OriginalAd{
		Title:  d.Title,
		URL:    adURL,
		Price:  priceLabel(*d),
		Images: NewAssembler(images).imageURLs(d.Images, imageResolver(client)),
	}
}

// VehicleDetailsWidget formats the key facts of an ad for display
func VehicleDetailsWidget(d *models.ListingDetail) map[string]string {
	orNA := func(s string) string {
		if strings.TrimSpace(s) == "" {
			return "N/A"
		}
		return s
	}

	year := "N/A"
	if d.Year > 0 {
		year = strconv.Itoa(d.Year)
	}
	power := "N/A"
	if d.EnginePowerKW > 0 {
		power = utils.FormatCzechNumber(d.EnginePowerKW) + " kW"
	}
	stk := "Neuvedena"
	if d.STKDate != "" {
		stk = utils.FormatCzechDate(d.STKDate)
	}

	return map[string]string{
		"Model":        orNA(d.Title),
		"Cena":         orNA(priceLabel(*d)),
		"Rok výroby":   year,
		"Tachometr":    orNA(utils.FormatKM(d.Mileage)),
		"VIN":          utils.GetStringOrDefault(d.VIN, "Neuvedeno"),
		"Palivo":       orNA(d.Fuel),
		"Převodovka":   orNA(d.Gearbox),
		"Výkon":        power,
		"Původ":        orNA(d.Origin),
		"Platnost STK": stk,
	}
}

func imageResolver(client scraper.MarketplaceClient) scraper.ImageResolver {
	if r, ok := client.(scraper.ImageResolver); ok {
		return r
	}
	return nil
}

func withPrice(details []models.ListingDetail) []models.ListingDetail {
	out := details[:0:0]
	for _, d := range details {
		if d.Price > 0 {
			out = append(out, d)
		}
	}
	return out
}

func emptyResponse(message string) *models.FinalResponse {
	return &models.FinalResponse{
		SummaryMessage: message,
		InspectedCars:  []models.InspectedCar{},
	}
}

func finishStats(stats *models.PipelineStats, start time.Time) *models.PipelineStats {
	stats.Duration = utils.FormatDuration(time.Since(start))
	return stats
}
