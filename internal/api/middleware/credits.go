package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rotisserie/eris"

	"car-advisor/internal/credits"
	"car-advisor/internal/logging"
	"car-advisor/pkg/models"
	"car-advisor/pkg/utils"
)

// CreditStore charges per-request credits
type CreditStore interface {
	Balance(ctx context.Context, userID string) (int, error)
	Charge(ctx context.Context, userID string, cost int) error
	Refund(ctx context.Context, userID string, amount int) error
}

// ChargeCredits takes cost credits from the authenticated user before the handler runs
// and gives them back when the request is rejected as malformed (400) or fails with a
// server error. A nil store disables charging.
func ChargeCredits(store CreditStore, cost int) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if store == nil || cost <= 0 {
			return next
		}
		return func(c echo.Context) error {
			requestID := RequestID(c)
			userID := UserID(c)
			if userID == "" {
				return unauthorized(c, "authentication required")
			}

			ctx := c.Request().Context()
			if err := store.Charge(ctx, userID, cost); err != nil {
				return creditError(c, store, userID, cost, err)
			}

			err := next(c)
			if err != nil || refundable(c.Response().Status) {
				// the request context may already be past its deadline
				refundCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
				defer cancel()
				if rerr := store.Refund(refundCtx, userID, cost); rerr != nil {
					logging.LogWithRequestID(requestID).Error("Credit refund failed", map[string]interface{}{
						"user_id": userID,
						"error":   rerr.Error(),
					})
				}
			}
			return err
		}
	}
}

func refundable(status int) bool {
	return status == http.StatusBadRequest || status >= http.StatusInternalServerError
}

func creditError(c echo.Context, store CreditStore, userID string, cost int, err error) error {
	requestID := RequestID(c)
	switch {
	case eris.Is(err, credits.ErrInsufficientCredits):
		balance, _ := store.Balance(c.Request().Context(), userID)
		ce := utils.NewInsufficientCreditsError(balance, cost)
		return c.JSON(ce.Code, models.ErrorResponse{
			Error:     ce.Message,
			Message:   ce.Detail,
			RequestID: requestID,
			Timestamp: time.Now(),
		})
	case eris.Is(err, credits.ErrProfileNotFound):
		return unauthorized(c, "no profile for user")
	default:
		logging.LogWithRequestID(requestID).Error("Credit charge failed", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:     "credits_unavailable",
			Message:   err.Error(),
			RequestID: requestID,
			Timestamp: time.Now(),
		})
	}
}
