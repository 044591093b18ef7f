package hybrid

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"car-advisor/internal/logging"
	"car-advisor/internal/scraper/fetch"
	"car-advisor/pkg/utils"
)

// challengeMarkers identify anti-bot interstitials served with a 200 status
var challengeMarkers = []string{
	"cf-challenge",
	"challenge-platform",
	"g-recaptcha",
	"h-captcha",
	"just a moment...",
}

// Fetcher tries the plain HTTP fetcher first and falls back to a rendering service
// when a marketplace blocks it. Blocked hosts are remembered and go straight to the
// fallback afterwards.
type Fetcher struct {
	primary  fetch.PageFetcher
	fallback fetch.PageFetcher
	blocked  *utils.BlockedDomains
	logger   logging.Logger
}

// NewFetcher creates a hybrid fetcher
func NewFetcher(primary, fallback fetch.PageFetcher, blocked *utils.BlockedDomains) *Fetcher {
	if blocked == nil {
		blocked = utils.NewBlockedDomains("")
	}
	return &Fetcher{
		primary:  primary,
		fallback: fallback,
		blocked:  blocked,
		logger:   logging.GetGlobalLogger().WithField("engine", "hybrid"),
	}
}

// Name identifies the fetcher in logs
func (f *Fetcher) Name() string {
	return "hybrid"
}

// FetchHTML downloads url, switching to the fallback on a block
func (f *Fetcher) FetchHTML(ctx context.Context, url string) (string, error) {
	if f.blocked.IsBlocked(url) {
		return f.viaFallback(ctx, url)
	}

	html, err := f.primary.FetchHTML(ctx, url)
	if err == nil && !isChallenge(html) {
		return html, nil
	}
	if err != nil && !isBlockStatus(err) {
		return "", err
	}

	reason := "challenge page"
	if err != nil {
		reason = err.Error()
	}
	f.logger.Info("Plain request blocked, switching to fallback", map[string]interface{}{
		"url":      url,
		"reason":   reason,
		"fallback": f.fallback.Name(),
	})
	if addErr := f.blocked.Add(url); addErr != nil {
		f.logger.Warn("Failed to remember blocked domain", map[string]interface{}{"url": url, "error": addErr.Error()})
	}
	return f.viaFallback(ctx, url)
}

func (f *Fetcher) viaFallback(ctx context.Context, url string) (string, error) {
	html, err := f.fallback.FetchHTML(ctx, url)
	if err != nil {
		return "", fmt.Errorf("%s fallback: %w", f.fallback.Name(), err)
	}
	return html, nil
}

func isBlockStatus(err error) bool {
	var statusErr *fetch.StatusError
	if !errors.As(err, &statusErr) {
		return false
	}
	switch statusErr.StatusCode {
	case http.StatusForbidden, http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return true
	}
	return false
}

func isChallenge(html string) bool {
	// challenge pages are small; real listing pages are not
	if len(html) > 64<<10 {
		return false
	}
	lower := strings.ToLower(html)
	for _, marker := range challengeMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
