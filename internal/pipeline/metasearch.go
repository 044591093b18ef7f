package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"car-advisor/internal/llm"
	"car-advisor/internal/logging"
	"car-advisor/internal/logging/types"
	"car-advisor/pkg/models"
)

// PlatformRunner runs the default pipeline of one platform
type PlatformRunner interface {
	RunPlatform(ctx context.Context, platform, query string) (*models.FinalResponse, error)
}

// PlatformOutcome is the settled result of one platform pipeline
type PlatformOutcome struct {
	Platform string
	Response *models.FinalResponse
	Err      error
}

type metaRankItem struct {
	ID       int    `json:"id"`
	Platform string `json:"platform"`
	Title    string `json:"title"`
	Price    string `json:"price"`
	Verdict  string `json:"verdict,omitempty"`
}

// MetaSearch fans a query out to several platforms and merges the finalists
type MetaSearch struct {
	runner PlatformRunner
	llm    llm.Completer
	model  string
	logger types.Logger
}

// NewMetaSearch creates a meta-search over runner
func NewMetaSearch(runner PlatformRunner, completer llm.Completer, model string) *MetaSearch {
	return &MetaSearch{
		runner: runner,
		llm:    completer,
		model:  model,
		logger: logging.ForStage("meta_search"),
	}
}

// RunAll runs every platform pipeline and waits for all of them. A failing
// platform does not cancel the others.
func (m *MetaSearch) RunAll(ctx context.Context, query string, platforms []string) []PlatformOutcome {
	outcomes := make([]PlatformOutcome, len(platforms))

	var g errgroup.Group
	for i, platform := range platforms {
		i, platform := i, platform
		outcomes[i].Platform = platform
		g.Go(func() error {
			resp, err := m.runner.RunPlatform(ctx, platform, query)
			outcomes[i].Response = resp
			outcomes[i].Err = err
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// Search merges the finalists of every platform and orders them with a final
// model ranking. When every platform fails the first error is returned.
func (m *MetaSearch) Search(ctx context.Context, query string, platforms []string) (*models.FinalResponse, error) {
	start := time.Now()
	platforms = uniquePlatforms(platforms)

	outcomes := m.RunAll(ctx, query, platforms)

	var cars []models.InspectedCar
	var firstErr error
	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
			if firstErr == nil {
				firstErr = eris.Wrapf(o.Err, "meta-search: %s", o.Platform)
			}
			m.logger.Error("Platform pipeline failed", map[string]interface{}{
				"platform": o.Platform,
				"error":    o.Err.Error(),
			})
			continue
		}
		if o.Response != nil {
			cars = append(cars, o.Response.InspectedCars...)
		}
	}

	if failed == len(outcomes) && firstErr != nil {
		return nil, firstErr
	}
	if len(cars) == 0 {
		resp := emptyResponse(MessageMetaEmpty)
		resp.Platforms = platforms
		return resp, nil
	}

	order, err := m.finalOrder(ctx, query, cars)
	if err != nil {
		m.logger.Warn("Final ranking failed, keeping platform order", map[string]interface{}{"error": err.Error()})
	} else {
		cars = reorder(cars, order)
	}

	m.logger.Info("Meta-search finished", map[string]interface{}{
		"platforms":   platforms,
		"failed":      failed,
		"cars":        len(cars),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return &models.FinalResponse{
		SummaryMessage: fmt.Sprintf(MessageMetaSummary, strings.Join(platforms, ", ")),
		InspectedCars:  cars,
		Platforms:      platforms,
	}, nil
}

func (m *MetaSearch) finalOrder(ctx context.Context, query string, cars []models.InspectedCar) ([]int, error) {
	if len(cars) < 2 {
		return nil, nil
	}

	items := make([]metaRankItem, len(cars))
	for i, c := range cars {
		items[i] = metaRankItem{ID: i, Platform: c.Source, Title: c.Title, Price: c.Price, Verdict: c.FinalVerdictCZ}
	}
	prompt, err := buildPrompt(metaRankPrompt, query, items)
	if err != nil {
		return nil, err
	}

	text, err := m.llm.Complete(ctx, llm.CompletionRequest{
		Stage:  "meta_search.rank",
		Prompt: prompt,
		Model:  m.model,
	})
	if err != nil {
		return nil, err
	}
	var raw []json.RawMessage
	if err := llm.DecodeJSON(text, &raw); err != nil {
		return nil, err
	}
	return positionalIDs(raw), nil
}

// reorder applies order to cars; unknown or repeated indexes are ignored and
// cars the order leaves out follow in their original order
func reorder(cars []models.InspectedCar, order []int) []models.InspectedCar {
	if len(order) == 0 {
		return cars
	}
	used := make([]bool, len(cars))
	out := make([]models.InspectedCar, 0, len(cars))
	for _, idx := range order {
		if idx < 0 || idx >= len(cars) || used[idx] {
			continue
		}
		used[idx] = true
		out = append(out, cars[idx])
	}
	for i, c := range cars {
		if !used[i] {
			out = append(out, c)
		}
	}
	return out
}

func uniquePlatforms(platforms []string) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(platforms))
	for _, p := range platforms {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
