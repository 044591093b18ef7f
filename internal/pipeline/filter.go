package pipeline

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"car-advisor/internal/llm"
	"car-advisor/internal/logging"
	"car-advisor/internal/logging/types"
	"car-advisor/pkg/models"
)

type filterItem struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	Price string `json:"price,omitempty"`
}

// RelevanceFilter drops listings that do not match the requested model
type RelevanceFilter struct {
	llm       llm.Completer
	model     string
	batchSize int
	logger    types.Logger
}

// NewRelevanceFilter creates a filter sending at most batchSize listings per call
func NewRelevanceFilter(completer llm.Completer, model string, batchSize int) *RelevanceFilter {
	if batchSize <= 0 {
		batchSize = 200
	}
	return &RelevanceFilter{
		llm:       completer,
		model:     model,
		batchSize: batchSize,
		logger:    logging.ForStage("relevance_filter"),
	}
}

// Filter keeps the listings the model considers relevant. A batch whose call
// fails or returns garbage is kept unchanged.
func (f *RelevanceFilter) Filter(ctx context.Context, query string, listings []models.ListingSummary) []models.ListingSummary {
	if len(listings) == 0 {
		return listings
	}
	start := time.Now()

	kept := make([]models.ListingSummary, 0, len(listings))
	fallbacks := 0
	for from := 0; from < len(listings); from += f.batchSize {
		to := from + f.batchSize
		if to > len(listings) {
			to = len(listings)
		}
		batch := listings[from:to]

		keep, err := f.filterBatch(ctx, query, batch)
		if err != nil {
			fallbacks++
			f.logger.Warn("Filter batch failed, keeping input", map[string]interface{}{
				"batch_start": from,
				"error":       err.Error(),
			})
			kept = append(kept, batch...)
			continue
		}
		for i, listing := range batch {
			if keep[i] {
				kept = append(kept, listing)
			}
		}
	}

	f.logger.Info("Listings filtered", map[string]interface{}{
		"input":       len(listings),
		"kept":        len(kept),
		"fallbacks":   fallbacks,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return kept
}

func (f *RelevanceFilter) filterBatch(ctx context.Context, query string, batch []models.ListingSummary) (map[int]bool, error) {
	items := make([]filterItem, len(batch))
	for i, l := range batch {
		items[i] = filterItem{ID: i, Title: l.Title, Price: l.PriceText}
	}

	prompt, err := buildPrompt(filterPrompt, query, items)
	if err != nil {
		return nil, err
	}
	text, err := f.llm.Complete(ctx, llm.CompletionRequest{
		Stage:  "relevance_filter",
		Prompt: prompt,
		Model:  f.model,
	})
	if err != nil {
		return nil, err
	}

	var raw []json.RawMessage
	if err := llm.DecodeJSON(text, &raw); err != nil {
		return nil, err
	}

	keep := make(map[int]bool)
	for _, idx := range positionalIDs(raw) {
		if idx >= 0 && idx < len(batch) {
			keep[idx] = true
		}
	}
	return keep, nil
}

// positionalIDs reads [0, 2], ["0", "2"] or [{"id": 0}, ...] into indexes
func positionalIDs(raw []json.RawMessage) []int {
	var ids []int
	for _, item := range raw {
		if idx, ok := parsePositional(item); ok {
			ids = append(ids, idx)
			continue
		}
		var obj struct {
			ID json.RawMessage `json:"id"`
		}
		if err := json.Unmarshal(item, &obj); err == nil && obj.ID != nil {
			if idx, ok := parsePositional(obj.ID); ok {
				ids = append(ids, idx)
			}
		}
	}
	return ids
}

func parsePositional(data json.RawMessage) (int, bool) {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		return n, true
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return n, true
		}
	}
	return 0, false
}
