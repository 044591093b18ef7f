package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"car-advisor/internal/api/middleware"
	"car-advisor/internal/logging"
	"car-advisor/pkg/models"
)

// InterpretHandler runs the query interpreter alone
func InterpretHandler(svc PipelineService) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req models.InterpretRequest
		if err := bind(c, &req); err != nil {
			return respondError(c, err)
		}

		result, err := svc.Interpret(c.Request().Context(), req.UserQuery, req.Mode)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, result)
	}
}

// CollectHandler runs the listing collector alone
func CollectHandler(svc PipelineService) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req models.CollectRequest
		if err := bind(c, &req); err != nil {
			return respondError(c, err)
		}

		result, err := svc.Collect(c.Request().Context(), req)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, models.CollectResponse{
			Listings:  result.Listings,
			Total:     result.Total,
			Empty:     result.Empty,
			RequestID: middleware.RequestID(c),
		})
	}
}

// DetailsHandler loads one ad from its URL
func DetailsHandler(svc PipelineService) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req models.AdURLRequest
		if err := bind(c, &req); err != nil {
			return respondError(c, err)
		}

		detail, _, err := svc.AdDetails(c.Request().Context(), req.AdURL)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, models.AdDetailsResponse{
			AdDetails: detail,
			RequestID: middleware.RequestID(c),
		})
	}
}

// RankHandler scores the given listing details
func RankHandler(svc PipelineService) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req models.RankRequest
		if err := bind(c, &req); err != nil {
			return respondError(c, err)
		}

		result := svc.Rank(c.Request().Context(), req.UserQuery, req.Listings)
		if !result.Applied {
			logging.LogWithRequestID(middleware.RequestID(c)).Warn("Ranking unavailable, returning input order")
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"listings":   result.Listings,
			"applied":    result.Applied,
			"request_id": middleware.RequestID(c),
		})
	}
}

// FilterHandler drops listings unrelated to the query
func FilterHandler(svc PipelineService) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req models.FilterRequest
		if err := bind(c, &req); err != nil {
			return respondError(c, err)
		}

		kept := svc.Filter(c.Request().Context(), req.UserQuery, req.Listings)
		return c.JSON(http.StatusOK, map[string]interface{}{
			"listings":   kept,
			"removed":    len(req.Listings) - len(kept),
			"request_id": middleware.RequestID(c),
		})
	}
}

// InspectHandler fetches, inspects and assembles the given listings
func InspectHandler(svc PipelineService) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req models.InspectRequest
		if err := bind(c, &req); err != nil {
			return respondError(c, err)
		}

		resp, err := svc.Inspect(c.Request().Context(), req.Platform, req.UserQuery, req.Listings)
		if err != nil {
			return respondError(c, err)
		}
		resp.RequestID = middleware.RequestID(c)
		return c.JSON(http.StatusOK, resp)
	}
}
