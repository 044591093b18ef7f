package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"car-advisor/internal/scraper/workers"
)

func TestHTTPFetcherSendsHeadersAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "test-agent" {
			t.Errorf("User-Agent = %q", r.Header.Get("User-Agent"))
		}
		if r.Header.Get("X-Custom") != "1" {
			t.Errorf("X-Custom = %q", r.Header.Get("X-Custom"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":{"id":42}}`))
	}))
	defer srv.Close()

	limiter := workers.NewRateLimiterWithOptions(workers.LimiterOptions{RequestsPerMinute: 60000, Burst: 5})
	defer limiter.Stop()

	f := NewHTTPFetcher(NewHTTPClient(5*time.Second), "test-agent", limiter)
	f.SetHeader("X-Custom", "1")

	var out struct {
		Result struct {
			ID int `json:"id"`
		} `json:"result"`
	}
	if err := f.GetJSON(context.Background(), srv.URL, &out); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if out.Result.ID != 42 {
		t.Errorf("id = %d", out.Result.ID)
	}
}

func TestHTTPFetcherStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(NewHTTPClient(5*time.Second), "ua", nil)
	_, err := f.FetchHTML(context.Background(), srv.URL)

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("err = %v, want *StatusError", err)
	}
	if statusErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d", statusErr.StatusCode)
	}
}

func TestHTTPFetcherKeepsCookies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc", Path: "/"})
			return
		}
		if c, err := r.Cookie("session"); err != nil || c.Value != "abc" {
			w.WriteHeader(http.StatusForbidden)
		}
	}))
	defer srv.Close()

	f := NewHTTPFetcher(NewHTTPClient(5*time.Second), "ua", nil)
	if _, err := f.FetchHTML(context.Background(), srv.URL+"/"); err != nil {
		t.Fatalf("handshake: %v", err)
	}
	if _, err := f.FetchHTML(context.Background(), srv.URL+"/api"); err != nil {
		t.Fatalf("cookie not replayed: %v", err)
	}
}
