package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rotisserie/eris"

	"car-advisor/internal/api/middleware"
	"car-advisor/internal/credits"
	"car-advisor/pkg/models"
	"car-advisor/pkg/utils"
)

// CreditsHandler returns the caller's credit balance
func CreditsHandler(store middleware.CreditStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		if store == nil {
			return respondError(c, &utils.CustomError{Code: http.StatusNotFound, Message: "Credits are not enabled"})
		}

		userID := middleware.UserID(c)
		balance, err := store.Balance(c.Request().Context(), userID)
		if err != nil {
			if eris.Is(err, credits.ErrProfileNotFound) {
				return respondError(c, &utils.CustomError{Code: http.StatusNotFound, Message: "Profile not found"})
			}
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, models.CreditsResponse{UserID: userID, Credits: balance})
	}
}

// HistoryHandler returns the caller's recent searches, newest first
func HistoryHandler(history HistoryStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		entries := []utils.SearchHistoryEntry{}
		if history != nil {
			var err error
			entries, err = history.SearchHistory(c.Request().Context(), middleware.UserID(c))
			if err != nil {
				return respondError(c, err)
			}
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"history":    entries,
			"request_id": middleware.RequestID(c),
		})
	}
}
