package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"car-advisor/internal/llm"
	"car-advisor/internal/logging"
	"car-advisor/internal/logging/types"
	"car-advisor/pkg/models"
)

var (
	validFuels    = map[string]bool{"benzin": true, "nafta": true, "hybridni": true, "elektro": true, "lpg": true, "cng": true}
	validGearboxs = map[string]bool{"manualni": true, "automaticka": true}
)

// Interpreter turns a free-text request into marketplace search parameters
type Interpreter struct {
	llm    llm.Completer
	model  string
	logger types.Logger
}

// NewInterpreter creates a query interpreter. An empty model uses the provider default.
func NewInterpreter(completer llm.Completer, model string) *Interpreter {
	return &Interpreter{
		llm:    completer,
		model:  model,
		logger: logging.ForStage("interpreter"),
	}
}

type rawStrategy struct {
	Models  *[]models.CarModel    `json:"models"`
	Filters *models.SearchFilters `json:"filters"`
}

// Strategy asks for candidate models plus filters. An empty model list is
// reported as ErrNoModels.
func (i *Interpreter) Strategy(ctx context.Context, query string) (*models.StrategyResult, error) {
	var raw rawStrategy
	if err := i.complete(ctx, "strategy", fmt.Sprintf(strategyPrompt, sanitizeQuery(query)), &raw); err != nil {
		return nil, err
	}

	if raw.Models == nil || raw.Filters == nil {
		return nil, eris.Wrap(ErrMalformedStrategy, "interpreter: models or filters key missing")
	}

	var result models.StrategyResult
	for _, m := range *raw.Models {
		m.Make = strings.ToLower(strings.TrimSpace(m.Make))
		m.Model = strings.ToLower(strings.TrimSpace(m.Model))
		if m.Make == "" || m.Model == "" {
			continue
		}
		result.Models = append(result.Models, m)
	}
	if len(result.Models) == 0 {
		return nil, eris.Wrap(ErrNoModels, "interpreter")
	}

	filters := sanitizeFilters(*raw.Filters)
	result.Filters = &filters

	i.logger.Info("Strategy interpreted", map[string]interface{}{
		"models":  len(result.Models),
		"filters": filters,
	})
	return &result, nil
}

// Filters asks for a filter set only, for the broad search
func (i *Interpreter) Filters(ctx context.Context, query string) (*models.SearchFilters, error) {
	var raw rawStrategy
	if err := i.complete(ctx, "filters", fmt.Sprintf(filtersPrompt, sanitizeQuery(query)), &raw); err != nil {
		return nil, err
	}
	if raw.Filters == nil {
		return nil, eris.Wrap(ErrMalformedStrategy, "interpreter: filters key missing")
	}

	filters := sanitizeFilters(*raw.Filters)
	i.logger.Info("Filters interpreted", map[string]interface{}{"filters": filters})
	return &filters, nil
}

// SearchPhrases asks for free-text queries for HTML marketplaces. When the
// model suggests nothing the user query itself is used.
func (i *Interpreter) SearchPhrases(ctx context.Context, query string) ([]string, error) {
	var raw []json.RawMessage
	if err := i.complete(ctx, "phrases", fmt.Sprintf(phrasesPrompt, sanitizeQuery(query)), &raw); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var phrases []string
	for _, item := range raw {
		var text string
		if err := json.Unmarshal(item, &text); err != nil {
			var obj struct {
				SearchText string `json:"searchText"`
			}
			if err := json.Unmarshal(item, &obj); err != nil {
				continue
			}
			text = obj.SearchText
		}
		text = strings.TrimSpace(text)
		if text == "" || seen[strings.ToLower(text)] {
			continue
		}
		seen[strings.ToLower(text)] = true
		phrases = append(phrases, text)
		if len(phrases) == 3 {
			break
		}
	}

	if len(phrases) == 0 {
		phrases = []string{strings.TrimSpace(query)}
	}
	i.logger.Info("Search phrases interpreted", map[string]interface{}{"phrases": phrases})
	return phrases, nil
}

func (i *Interpreter) complete(ctx context.Context, kind, prompt string, v interface{}) error {
	start := time.Now()
	text, err := i.llm.Complete(ctx, llm.CompletionRequest{
		Stage:  "interpreter." + kind,
		Prompt: prompt,
		Model:  i.model,
	})
	if err != nil {
		i.logger.Error("Interpreter call failed", map[string]interface{}{"kind": kind, "error": err.Error()})
		return eris.Wrapf(err, "interpreter: %s request failed", kind)
	}
	if strings.TrimSpace(text) == "" {
		return eris.Wrapf(ErrEmptyLLMResponse, "interpreter: %s", kind)
	}
	if err := llm.DecodeJSON(text, v); err != nil {
		i.logger.Error("Interpreter returned invalid JSON", map[string]interface{}{"kind": kind, "error": err.Error()})
		return eris.Wrapf(err, "interpreter: %s response is not valid JSON", kind)
	}
	i.logger.Debug("Interpreter call finished", map[string]interface{}{"kind": kind, "duration_ms": time.Since(start).Milliseconds()})
	return nil
}

// sanitizeFilters drops values the marketplaces would reject
func sanitizeFilters(f models.SearchFilters) models.SearchFilters {
	f.Normalize()
	if !validFuels[f.Fuel] {
		f.Fuel = ""
	}
	if !validGearboxs[f.Gearbox] {
		f.Gearbox = ""
	}
	if f.PriceTo < 0 {
		f.PriceTo = 0
	}
	if f.TachometerTo < 0 {
		f.TachometerTo = 0
	}
	if f.YearFrom != 0 && (f.YearFrom < 1900 || f.YearFrom > 2100) {
		f.YearFrom = 0
	}
	return f
}
