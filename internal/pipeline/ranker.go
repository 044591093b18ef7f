package pipeline

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"car-advisor/internal/llm"
	"car-advisor/internal/logging"
	"car-advisor/internal/logging/types"
	"car-advisor/pkg/models"
)

// RankerOptions configures batch scoring
type RankerOptions struct {
	Model       string
	BatchSize   int
	MinScore    int // 0 keeps every scored listing
	Concurrency int // batches scored at once
}

// RankResult holds ranked listings. Applied is false when every batch failed
// and the input came back unscored.
type RankResult struct {
	Listings []models.RankedListing
	Applied  bool
}

// Details returns the ranked listing details in order
func (r RankResult) Details() []models.ListingDetail {
	out := make([]models.ListingDetail, len(r.Listings))
	for i, l := range r.Listings {
		out[i] = l.ListingDetail
	}
	return out
}

type rankItem struct {
	ID       int    `json:"id"`
	Title    string `json:"title"`
	Price    string `json:"price,omitempty"`
	Year     int    `json:"year,omitempty"`
	Mileage  int    `json:"mileage,omitempty"`
	FuelType string `json:"fuelType,omitempty"`
	Power    int    `json:"power,omitempty"`
}

type rankScore struct {
	ID    json.RawMessage `json:"id"`
	Score json.RawMessage `json:"score"`
}

// Ranker scores listings 0-100 against the user query
type Ranker struct {
	llm    llm.Completer
	opts   RankerOptions
	logger types.Logger
}

// NewRanker creates a batch ranker
func NewRanker(completer llm.Completer, opts RankerOptions) *Ranker {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Ranker{
		llm:    completer,
		opts:   opts,
		logger: logging.ForStage("ranker"),
	}
}

// Rank scores details in fixed-size batches and returns them best first.
// Failed batches are skipped; when all fail the input is returned unscored in
// its original order.
func (r *Ranker) Rank(ctx context.Context, query string, details []models.ListingDetail) RankResult {
	if len(details) == 0 {
		return RankResult{Listings: []models.RankedListing{}}
	}
	start := time.Now()

	var batches [][]models.ListingDetail
	for from := 0; from < len(details); from += r.opts.BatchSize {
		to := from + r.opts.BatchSize
		if to > len(details) {
			to = len(details)
		}
		batches = append(batches, details[from:to])
	}

	scored := make([][]models.RankedListing, len(batches))
	failed := make([]bool, len(batches))

	var g errgroup.Group
	g.SetLimit(r.opts.Concurrency)
	for i, batch := range batches {
		i, batch := i, batch
		g.Go(func() error {
			listings, err := r.rankBatch(ctx, query, batch)
			if err != nil {
				failed[i] = true
				r.logger.Warn("Rank batch failed, skipping", map[string]interface{}{
					"batch": i,
					"size":  len(batch),
					"error": err.Error(),
				})
				return nil
			}
			scored[i] = listings
			return nil
		})
	}
	_ = g.Wait()

	var ranked []models.RankedListing
	succeeded := 0
	for i := range batches {
		if failed[i] {
			continue
		}
		succeeded++
		ranked = append(ranked, scored[i]...)
	}

	if succeeded == 0 {
		r.logger.Warn("Ranking failed, returning input unchanged", map[string]interface{}{
			"listings": len(details),
		})
		return RankResult{Listings: unranked(details)}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	if r.opts.MinScore > 0 {
		kept := ranked[:0]
		for _, l := range ranked {
			if l.Score >= r.opts.MinScore {
				kept = append(kept, l)
			}
		}
		ranked = kept
	}
	if ranked == nil {
		ranked = []models.RankedListing{}
	}

	r.logger.Info("Listings ranked", map[string]interface{}{
		"input":          len(details),
		"ranked":         len(ranked),
		"batches":        len(batches),
		"failed_batches": len(batches) - succeeded,
		"duration_ms":    time.Since(start).Milliseconds(),
	})
	return RankResult{Listings: ranked, Applied: true}
}

func (r *Ranker) rankBatch(ctx context.Context, query string, batch []models.ListingDetail) ([]models.RankedListing, error) {
	items := make([]rankItem, len(batch))
	for i, d := range batch {
		items[i] = rankItem{
			ID:       i,
			Title:    d.Title,
			Price:    priceLabel(d),
			Year:     d.Year,
			Mileage:  d.Mileage,
			FuelType: d.Fuel,
			Power:    d.EnginePowerKW,
		}
	}

	prompt, err := buildPrompt(rankPrompt, query, items)
	if err != nil {
		return nil, err
	}
	text, err := r.llm.Complete(ctx, llm.CompletionRequest{
		Stage:  "ranker",
		Prompt: prompt,
		Model:  r.opts.Model,
	})
	if err != nil {
		return nil, err
	}

	var scores []rankScore
	if err := llm.DecodeJSON(text, &scores); err != nil {
		return nil, err
	}

	byIndex := make(map[int]int, len(scores))
	for _, s := range scores {
		idx, ok := parsePositional(s.ID)
		if !ok || idx < 0 || idx >= len(batch) {
			continue
		}
		score, ok := parseScore(s.Score)
		if !ok {
			continue
		}
		byIndex[idx] = clampScore(score)
	}

	out := make([]models.RankedListing, len(batch))
	for i, d := range batch {
		score, ok := byIndex[i]
		out[i] = models.RankedListing{ListingDetail: d, Score: score, Scored: ok}
	}
	return out, nil
}

func unranked(details []models.ListingDetail) []models.RankedListing {
	out := make([]models.RankedListing, len(details))
	for i, d := range details {
		out[i] = models.RankedListing{ListingDetail: d}
	}
	return out
}

// parseScore accepts a JSON number or a numeric string
func parseScore(data json.RawMessage) (float64, bool) {
	if len(data) == 0 {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func clampScore(v float64) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return int(v + 0.5)
	}
}
