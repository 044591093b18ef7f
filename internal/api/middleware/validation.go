package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"car-advisor/pkg/models"
	"car-advisor/pkg/utils"
)

// Context keys set by the middleware chain
const (
	RequestIDKey = "request_id"
	UserIDKey    = "user_id"
)

const maxBodyBytes = 1024 * 1024

// RequestValidation assigns a request ID and rejects oversized bodies. Bodies without
// a declared length are capped while they are read.
func RequestValidation() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			requestID := c.Request().Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = utils.GenerateRequestID()
			}
			c.Set(RequestIDKey, requestID)
			c.Response().Header().Set(echo.HeaderXRequestID, requestID)

			if c.Request().Method == http.MethodPost && c.Request().ContentLength > maxBodyBytes {
				return c.JSON(http.StatusRequestEntityTooLarge, models.ErrorResponse{
					Error:     "request_too_large",
					Message:   "Request body too large",
					RequestID: requestID,
					Timestamp: time.Now(),
				})
			}
			if c.Request().Body != nil {
				c.Request().Body = http.MaxBytesReader(c.Response(), c.Request().Body, maxBodyBytes)
			}

			return next(c)
		}
	}
}

// RequestID returns the ID assigned by RequestValidation, generating one when the
// middleware did not run
func RequestID(c echo.Context) string {
	if id, ok := c.Get(RequestIDKey).(string); ok && id != "" {
		return id
	}
	id := utils.GenerateRequestID()
	c.Set(RequestIDKey, id)
	return id
}

// UserID returns the user set by Auth, or "" for anonymous requests
func UserID(c echo.Context) string {
	id, _ := c.Get(UserIDKey).(string)
	return id
}
