package middleware

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// SelectiveTimeoutConfig bounds the request context: paths under one of longPrefixes get
// the long timeout, everything else the short one. Pipelines observe the deadline
// through the request context.
func SelectiveTimeoutConfig(short, long time.Duration, longPrefixes ...string) echo.MiddlewareFunc {
	shortTimeout := middleware.ContextTimeoutWithConfig(middleware.ContextTimeoutConfig{Timeout: short})
	longTimeout := middleware.ContextTimeoutWithConfig(middleware.ContextTimeoutConfig{Timeout: long})

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		shortHandler := shortTimeout(next)
		longHandler := longTimeout(next)
		return func(c echo.Context) error {
			path := c.Request().URL.Path
			for _, prefix := range longPrefixes {
				if strings.HasPrefix(path, prefix) {
					return longHandler(c)
				}
			}
			return shortHandler(c)
		}
	}
}
