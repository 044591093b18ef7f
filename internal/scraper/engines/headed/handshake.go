package headed

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"car-advisor/internal/config"
	"car-advisor/internal/logging"
	"car-advisor/internal/logging/types"
)

// CookieHandshaker opens a page in a stealth headless browser and returns the
// cookies the portal set. Used when the plain HTTP handshake is refused.
type CookieHandshaker struct {
	config *config.Config
	logger types.Logger
}

// NewCookieHandshaker creates a new browser handshaker
func NewCookieHandshaker(cfg *config.Config) *CookieHandshaker {
	return &CookieHandshaker{
		config: cfg,
		logger: logging.GetGlobalLogger().WithField("component", "browser_handshake"),
	}
}

// Cookies launches a browser, loads pageURL and collects its cookies
func (h *CookieHandshaker) Cookies(ctx context.Context, pageURL string) ([]*http.Cookie, error) {
	start := time.Now()

	l := h.newLauncher()
	defer l.Cleanup()

	controlURL, err := l.Context(ctx).Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}
	defer func() {
		if closeErr := browser.Close(); closeErr != nil {
			h.logger.Debug("Failed to close browser", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	page, err := stealth.Page(browser)
	if err != nil {
		return nil, fmt.Errorf("failed to create stealth page: %w", err)
	}

	if h.config.Scraper.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      h.config.Scraper.UserAgent,
			AcceptLanguage: "cs-CZ,cs;q=0.9",
		}); err != nil {
			h.logger.Warn("Failed to set user agent", map[string]interface{}{"error": err.Error()})
		}
	}

	if err := page.Navigate(pageURL); err != nil {
		return nil, fmt.Errorf("failed to navigate to %s: %w", pageURL, err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("failed to wait for page load: %w", err)
	}

	networkCookies, err := page.Cookies([]string{pageURL})
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies: %w", err)
	}

	cookies := ConvertCookies(networkCookies)
	h.logger.Info("Browser handshake completed", map[string]interface{}{
		"url":         pageURL,
		"cookies":     len(cookies),
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return cookies, nil
}

func (h *CookieHandshaker) newLauncher() *launcher.Launcher {
	l := launcher.New().
		Headless(h.config.Scraper.HeadlessMode).
		NoSandbox(true).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-gpu").
		Set("disable-dev-shm-usage")

	if chromePath := getSystemChromePath(); chromePath != "" {
		l = l.Bin(chromePath)
	}
	if h.config.Scraper.UserAgent != "" {
		l = l.Set("user-agent", h.config.Scraper.UserAgent)
	}
	return l
}

// ConvertCookies maps CDP cookies to net/http cookies
func ConvertCookies(in []*proto.NetworkCookie) []*http.Cookie {
	out := make([]*http.Cookie, 0, len(in))
	for _, c := range in {
		if c == nil || c.Name == "" {
			continue
		}
		out = append(out, &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HttpOnly: c.HTTPOnly,
		})
	}
	return out
}

// getSystemChromePath finds an installed Chrome/Chromium, preferring the
// CHROME_BIN and CHROME_PATH environment variables
func getSystemChromePath() string {
	for _, env := range []string{"CHROME_BIN", "CHROME_PATH"} {
		if p := os.Getenv(env); p != "" {
			if _, err := os.Stat(p); err == nil {
				return p
			}
		}
	}

	commonPaths := []string{
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/usr/bin/google-chrome",
		"/usr/bin/google-chrome-stable",
		"/opt/google/chrome/chrome",
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	}
	for _, path := range commonPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}
