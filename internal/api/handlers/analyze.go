package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"car-advisor/internal/api/middleware"
	"car-advisor/internal/logging"
	"car-advisor/pkg/models"
	"car-advisor/pkg/utils"
)

// AnalyzeHandler runs the Sauto pipeline in focus or broad mode
func AnalyzeHandler(svc PipelineService, history HistoryStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req models.SearchRequest
		if err := bind(c, &req); err != nil {
			return respondError(c, err)
		}

		logger := logging.LogWithRequestID(middleware.RequestID(c))
		logger.Info("Analyze request received", map[string]interface{}{"mode": req.Mode})

		resp, err := svc.Analyze(c.Request().Context(), req)
		if err != nil {
			return respondError(c, err)
		}

		pipelineName := req.Mode
		if pipelineName == "" {
			pipelineName = models.ModeFocus
		}
		recordHistory(c, history, req.UserQuery, pipelineName, resp)
		return c.JSON(http.StatusOK, resp)
	}
}

// AnalyzePlatformHandler runs the phrase pipeline on one HTML marketplace
func AnalyzePlatformHandler(svc PipelineService, history HistoryStore, platform string) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req models.SearchRequest
		if err := bind(c, &req); err != nil {
			return respondError(c, err)
		}

		resp, err := svc.RunPhrases(c.Request().Context(), platform, req)
		if err != nil {
			return respondError(c, err)
		}
		recordHistory(c, history, req.UserQuery, platform, resp)
		return c.JSON(http.StatusOK, resp)
	}
}

// MetaSearchHandler searches several marketplaces at once
func MetaSearchHandler(meta MetaSearcher, history HistoryStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req models.MetaSearchRequest
		if err := bind(c, &req); err != nil {
			return respondError(c, err)
		}

		resp, err := meta.Search(c.Request().Context(), req.UserQuery, req.Platforms)
		if err != nil {
			return respondError(c, err)
		}
		recordHistory(c, history, req.UserQuery, "meta_search", resp)
		return c.JSON(http.StatusOK, resp)
	}
}

// AdAnalyzeHandler analyzes a single ad
func AdAnalyzeHandler(svc PipelineService) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req models.AdURLRequest
		if err := bind(c, &req); err != nil {
			return respondError(c, err)
		}

		resp, err := svc.AnalyzeAd(c.Request().Context(), req.AdURL)
		if err != nil {
			return respondError(c, err)
		}
		resp.RequestID = middleware.RequestID(c)
		return c.JSON(http.StatusOK, resp)
	}
}

// AdAppraiseHandler estimates the market price of a single ad
func AdAppraiseHandler(svc PipelineService) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req models.AdURLRequest
		if err := bind(c, &req); err != nil {
			return respondError(c, err)
		}

		resp, err := svc.AppraiseAd(c.Request().Context(), req.AdURL)
		if err != nil {
			return respondError(c, err)
		}
		resp.RequestID = middleware.RequestID(c)
		return c.JSON(http.StatusOK, resp)
	}
}

// recordHistory stores the run in the user's history; failures are only logged
func recordHistory(c echo.Context, history HistoryStore, query, pipelineName string, resp *models.FinalResponse) {
	requestID := middleware.RequestID(c)
	resp.RequestID = requestID

	userID := middleware.UserID(c)
	if history == nil || userID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request().Context()), 3*time.Second)
	defer cancel()
	err := history.RecordSearch(ctx, userID, utils.SearchHistoryEntry{
		ID:             requestID,
		Query:          query,
		Pipeline:       pipelineName,
		Platforms:      resp.Platforms,
		ResultCount:    len(resp.InspectedCars),
		SummaryMessage: resp.SummaryMessage,
	})
	if err != nil {
		logging.LogWithRequestID(requestID).Warn("Search history not saved", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
	}
}
