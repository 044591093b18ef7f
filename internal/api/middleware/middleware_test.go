package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"car-advisor/internal/credits"
)

const testSecret = "test-secret"

func signedToken(t *testing.T, secret, subject, issuer string) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    issuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return token
}

func serve(e *echo.Echo, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func echoUser(c echo.Context) error {
	return c.String(http.StatusOK, UserID(c))
}

func TestAuth(t *testing.T) {
	e := echo.New()
	e.Use(RequestValidation(), Auth(testSecret, "car-advisor"))
	e.GET("/who", echoUser)
	e.GET("/private", echoUser, RequireUser())

	rec := serve(e, http.MethodGet, "/who", signedToken(t, testSecret, "user-1", "car-advisor"))
	if rec.Code != http.StatusOK || rec.Body.String() != "user-1" {
		t.Errorf("valid token: %d %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get(echo.HeaderXRequestID) == "" {
		t.Error("request id header missing")
	}

	rec = serve(e, http.MethodGet, "/who", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "" {
		t.Errorf("anonymous: %d %q", rec.Code, rec.Body.String())
	}

	for name, token := range map[string]string{
		"wrong secret": signedToken(t, "other", "user-1", "car-advisor"),
		"wrong issuer": signedToken(t, testSecret, "user-1", "someone-else"),
		"no subject":   signedToken(t, testSecret, "", "car-advisor"),
		"garbage":      "not-a-jwt",
	} {
		if rec := serve(e, http.MethodGet, "/who", token); rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: status %d, want 401", name, rec.Code)
		}
	}

	if rec := serve(e, http.MethodGet, "/private", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("private anonymous: status %d", rec.Code)
	}
}

func TestAuthWithoutSecretUsesClientIP(t *testing.T) {
	e := echo.New()
	e.Use(Auth("", ""))
	e.GET("/who", echoUser)
	e.GET("/private", echoUser, RequireUser())

	rec := serve(e, http.MethodGet, "/who", "whatever")
	if rec.Code != http.StatusOK || rec.Body.String() != AnonymousPrefix+"192.0.2.1" {
		t.Errorf("remote addr user: %d %q", rec.Code, rec.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set(echo.HeaderXRealIP, "203.0.113.7")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != AnonymousPrefix+"203.0.113.7" {
		t.Errorf("proxied user: %d %q", rec.Code, rec.Body.String())
	}
}

type fakeCredits struct {
	balance   map[string]int
	chargeErr error
	refunds   int
}

func (f *fakeCredits) Balance(ctx context.Context, userID string) (int, error) {
	b, ok := f.balance[userID]
	if !ok {
		return 0, credits.ErrProfileNotFound
	}
	return b, nil
}

func (f *fakeCredits) Charge(ctx context.Context, userID string, cost int) error {
	if f.chargeErr != nil {
		return f.chargeErr
	}
	b, ok := f.balance[userID]
	if !ok {
		return credits.ErrProfileNotFound
	}
	if b < cost {
		return credits.ErrInsufficientCredits
	}
	f.balance[userID] = b - cost
	return nil
}

func (f *fakeCredits) Refund(ctx context.Context, userID string, amount int) error {
	f.refunds++
	f.balance[userID] += amount
	return nil
}

func TestChargeCredits(t *testing.T) {
	store := &fakeCredits{balance: map[string]int{"rich": 3, "poor": 0}}

	e := echo.New()
	e.Use(RequestValidation(), Auth(testSecret, ""))
	charge := ChargeCredits(store, 1)
	e.POST("/ok", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, charge)
	e.POST("/fail", func(c echo.Context) error { return c.NoContent(http.StatusInternalServerError) }, charge)
	e.POST("/bad", func(c echo.Context) error { return c.NoContent(http.StatusBadRequest) }, charge)
	e.POST("/missing", func(c echo.Context) error { return c.NoContent(http.StatusNotFound) }, charge)

	rich := signedToken(t, testSecret, "rich", "")
	if rec := serve(e, http.MethodPost, "/ok", rich); rec.Code != http.StatusOK || store.balance["rich"] != 2 {
		t.Errorf("ok: %d, balance %d", rec.Code, store.balance["rich"])
	}
	if rec := serve(e, http.MethodPost, "/fail", rich); rec.Code != http.StatusInternalServerError || store.balance["rich"] != 2 || store.refunds != 1 {
		t.Errorf("fail: %d, balance %d, refunds %d", rec.Code, store.balance["rich"], store.refunds)
	}
	if rec := serve(e, http.MethodPost, "/bad", rich); rec.Code != http.StatusBadRequest || store.balance["rich"] != 2 || store.refunds != 2 {
		t.Errorf("rejected request should be refunded: %d, balance %d, refunds %d", rec.Code, store.balance["rich"], store.refunds)
	}
	if serve(e, http.MethodPost, "/missing", rich); store.balance["rich"] != 1 {
		t.Errorf("other client errors are charged, balance %d", store.balance["rich"])
	}

	if rec := serve(e, http.MethodPost, "/ok", signedToken(t, testSecret, "poor", "")); rec.Code != http.StatusPaymentRequired {
		t.Errorf("poor: status %d, want 402", rec.Code)
	}
	if rec := serve(e, http.MethodPost, "/ok", signedToken(t, testSecret, "ghost", "")); rec.Code != http.StatusUnauthorized {
		t.Errorf("ghost: status %d, want 401", rec.Code)
	}
	if rec := serve(e, http.MethodPost, "/ok", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous: status %d, want 401", rec.Code)
	}

	store.chargeErr = errors.New("connection refused")
	if rec := serve(e, http.MethodPost, "/ok", rich); rec.Code != http.StatusInternalServerError {
		t.Errorf("db down: status %d, want 500", rec.Code)
	}
}

func TestChargeCreditsDisabled(t *testing.T) {
	e := echo.New()
	e.POST("/ok", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, ChargeCredits(nil, 1))
	if rec := serve(e, http.MethodPost, "/ok", ""); rec.Code != http.StatusOK {
		t.Errorf("status %d, want 200", rec.Code)
	}
}

func TestSelectiveTimeout(t *testing.T) {
	e := echo.New()
	e.Use(SelectiveTimeoutConfig(20*time.Millisecond, time.Minute, "/api/v1"))
	deadline := func(c echo.Context) error {
		d, ok := c.Request().Context().Deadline()
		if !ok {
			return c.NoContent(http.StatusInternalServerError)
		}
		return c.String(http.StatusOK, time.Until(d).Round(time.Minute).String())
	}
	e.GET("/health", deadline)
	e.GET("/api/v1/analyze", deadline)

	if rec := serve(e, http.MethodGet, "/api/v1/analyze", ""); rec.Body.String() != "1m0s" {
		t.Errorf("long path deadline = %q", rec.Body.String())
	}
	if rec := serve(e, http.MethodGet, "/health", ""); rec.Body.String() != "0s" {
		t.Errorf("short path deadline = %q", rec.Body.String())
	}
}

func TestRequestValidationRejectsLargeBodies(t *testing.T) {
	e := echo.New()
	e.Use(RequestValidation())
	e.POST("/x", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/x", nil)
	req.ContentLength = maxBodyBytes + 1
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status %d, want 413", rec.Code)
	}
}

func TestRequestValidationCapsChunkedBodies(t *testing.T) {
	e := echo.New()
	e.Use(RequestValidation())
	e.POST("/x", func(c echo.Context) error {
		_, err := io.ReadAll(c.Request().Body)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return c.NoContent(http.StatusRequestEntityTooLarge)
		}
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(strings.Repeat("a", maxBodyBytes+10)))
	req.ContentLength = -1
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("chunked body: status %d, want 413", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{"userQuery":"kombi"}`))
	req.ContentLength = -1
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("small chunked body: status %d, want 200", rec.Code)
	}
}
