package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"car-advisor/internal/logging"
	"car-advisor/pkg/models"
)

// AnonymousPrefix marks user IDs derived from the client address
const AnonymousPrefix = "anon:"

// Auth verifies "Authorization: Bearer <jwt>" tokens signed with the shared HS256
// secret and stores the subject as the user ID. Requests without a token pass through
// anonymously; an invalid token is rejected with 401. With no secret configured every
// request is identified by its client IP.
func Auth(secret, issuer string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if secret == "" {
			return func(c echo.Context) error {
				if ip := c.RealIP(); ip != "" {
					c.Set(UserIDKey, AnonymousPrefix+ip)
				}
				return next(c)
			}
		}
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				return next(c)
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				return unauthorized(c, "malformed authorization header")
			}

			userID, err := parseToken(strings.TrimSpace(parts[1]), secret, issuer)
			if err != nil {
				logging.LogWithRequestID(RequestID(c)).Warn("Rejected bearer token", map[string]interface{}{
					"error": err.Error(),
				})
				return unauthorized(c, "invalid token")
			}

			c.Set(UserIDKey, userID)
			return next(c)
		}
	}
}

// RequireUser rejects anonymous requests
func RequireUser() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if UserID(c) == "" {
				return unauthorized(c, "authentication required")
			}
			return next(c)
		}
	}
}

func parseToken(tokenStr, secret, issuer string) (string, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	claims := jwt.RegisteredClaims{}
	if _, err := jwt.ParseWithClaims(tokenStr, &claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, opts...); err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", jwt.ErrTokenRequiredClaimMissing
	}
	return claims.Subject, nil
}

func unauthorized(c echo.Context, message string) error {
	return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
		Error:     "Unauthorized",
		Message:   message,
		RequestID: RequestID(c),
		Timestamp: time.Now(),
	})
}
