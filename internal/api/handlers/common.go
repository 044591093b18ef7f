package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"car-advisor/internal/api/middleware"
	"car-advisor/internal/api/validation"
	"car-advisor/internal/logging"
	"car-advisor/internal/pipeline"
	"car-advisor/internal/scraper"
	"car-advisor/pkg/models"
	"car-advisor/pkg/utils"
)

var validate = validation.New()

// PipelineService runs the pipelines and their individual stages
type PipelineService interface {
	Analyze(ctx context.Context, req models.SearchRequest) (*models.FinalResponse, error)
	RunPhrases(ctx context.Context, platform string, req models.SearchRequest) (*models.FinalResponse, error)
	Interpret(ctx context.Context, query, mode string) (*pipeline.Interpretation, error)
	Collect(ctx context.Context, req models.CollectRequest) (*pipeline.CollectResult, error)
	Rank(ctx context.Context, query string, details []models.ListingDetail) pipeline.RankResult
	Filter(ctx context.Context, query string, listings []models.ListingSummary) []models.ListingSummary
	Inspect(ctx context.Context, platform, query string, listings []models.ListingSummary) (*models.FinalResponse, error)
	AdDetails(ctx context.Context, adURL string) (*models.ListingDetail, scraper.MarketplaceClient, error)
	AnalyzeAd(ctx context.Context, adURL string) (*models.AdAnalysisResponse, error)
	AppraiseAd(ctx context.Context, adURL string) (*models.AppraisalResponse, error)
}

// MetaSearcher fans a query out over several marketplaces
type MetaSearcher interface {
	Search(ctx context.Context, query string, platforms []string) (*models.FinalResponse, error)
}

// HistoryStore keeps the per-user search history
type HistoryStore interface {
	RecordSearch(ctx context.Context, userID string, entry utils.SearchHistoryEntry) error
	SearchHistory(ctx context.Context, userID string) ([]utils.SearchHistoryEntry, error)
}

// bind decodes and validates the request body
func bind(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return utils.NewRequestTooLargeError(tooLarge.Limit)
		}
		return utils.NewBadRequestError("Invalid request body: " + err.Error())
	}
	if n, ok := req.(models.Normalizer); ok {
		n.Normalize()
	}
	if err := validate.Struct(req); err != nil {
		return utils.NewValidationError(err.Error())
	}
	return nil
}

// respondError writes err as an ErrorResponse. CustomErrors keep their status code,
// anything else is a 500 with the original message.
func respondError(c echo.Context, err error) error {
	requestID := middleware.RequestID(c)
	status := http.StatusInternalServerError
	body := models.ErrorResponse{
		Error:     err.Error(),
		Message:   err.Error(),
		RequestID: requestID,
		Timestamp: time.Now(),
	}

	if ce, ok := utils.AsCustomError(err); ok {
		status = ce.Code
		body.Error = ce.Message
		body.Message = utils.GetStringOrDefault(ce.Detail, ce.Message)
	}

	fields := map[string]interface{}{
		"path":   c.Path(),
		"status": status,
		"error":  err.Error(),
	}
	if status >= http.StatusInternalServerError {
		logging.LogWithRequestID(requestID).Error("Request failed", fields)
	} else {
		logging.LogWithRequestID(requestID).Warn("Request rejected", fields)
	}

	return c.JSON(status, body)
}
