package hybrid

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"car-advisor/internal/scraper/fetch"
	"car-advisor/pkg/utils"
)

type scriptedFetcher struct {
	name  string
	html  string
	err   error
	calls int
}

func (s *scriptedFetcher) Name() string { return s.name }

func (s *scriptedFetcher) FetchHTML(ctx context.Context, url string) (string, error) {
	s.calls++
	return s.html, s.err
}

func TestFallbackOnBlockStatus(t *testing.T) {
	primary := &scriptedFetcher{name: "http", err: &fetch.StatusError{URL: "u", StatusCode: http.StatusForbidden}}
	fallback := &scriptedFetcher{name: "firecrawl", html: "<html>listings</html>"}
	f := NewFetcher(primary, fallback, nil)

	html, err := f.FetchHTML(context.Background(), "https://www.tipcars.com/?text=octavia")
	if err != nil || html != "<html>listings</html>" {
		t.Fatalf("FetchHTML = %q, %v", html, err)
	}

	// the domain is remembered
	if _, err := f.FetchHTML(context.Background(), "https://www.tipcars.com/detail/1.html"); err != nil {
		t.Fatal(err)
	}
	if primary.calls != 1 || fallback.calls != 2 {
		t.Errorf("primary %d calls, fallback %d calls", primary.calls, fallback.calls)
	}
}

func TestFallbackOnChallengePage(t *testing.T) {
	primary := &scriptedFetcher{name: "http", html: `<html><title>Just a moment...</title></html>`}
	fallback := &scriptedFetcher{name: "firecrawl", html: "real"}
	if html, _ := NewFetcher(primary, fallback, utils.NewBlockedDomains("")).FetchHTML(context.Background(), "https://auto.bazos.cz/"); html != "real" {
		t.Errorf("html = %q", html)
	}
}

func TestOtherErrorsDoNotFallBack(t *testing.T) {
	primary := &scriptedFetcher{name: "http", err: &fetch.StatusError{URL: "u", StatusCode: http.StatusNotFound}}
	fallback := &scriptedFetcher{name: "firecrawl", html: "real"}
	f := NewFetcher(primary, fallback, nil)

	if _, err := f.FetchHTML(context.Background(), "https://auto.bazos.cz/inzerat/1/x.php"); err == nil {
		t.Error("expected the 404 to be returned")
	}
	primary.err = errors.New("connection reset")
	if _, err := f.FetchHTML(context.Background(), "https://auto.bazos.cz/"); err == nil {
		t.Error("expected the network error to be returned")
	}
	if fallback.calls != 0 {
		t.Errorf("fallback called %d times", fallback.calls)
	}
}

func TestFallbackErrorIsWrapped(t *testing.T) {
	primary := &scriptedFetcher{name: "http", err: &fetch.StatusError{URL: "u", StatusCode: http.StatusTooManyRequests}}
	fallback := &scriptedFetcher{name: "firecrawl", err: errors.New("quota exceeded")}
	_, err := NewFetcher(primary, fallback, nil).FetchHTML(context.Background(), "https://www.tipcars.com/")
	if err == nil || err.Error() != "firecrawl fallback: quota exceeded" {
		t.Errorf("err = %v", err)
	}
}
