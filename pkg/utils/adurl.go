package utils

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"car-advisor/pkg/models"
)

// AdURLInfo contains information about a parsed classified-ad detail URL
type AdURLInfo struct {
	Source    string
	ID        string
	PublicURL string
}

var (
	numericSegment  = regexp.MustCompile(`^\d+$`)
	bazosDetailPath = regexp.MustCompile(`^/inzerat/(\d+)(/|$)`)
	tipcarsIDSuffix = regexp.MustCompile(`(\d{4,})(\.html?)?$`)
)

// hostMatches reports whether host is domain or one of its subdomains
func hostMatches(host, domain string) bool {
	host = strings.ToLower(host)
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// ParseAdURL recognizes detail-page URLs of the supported marketplaces and extracts the
// listing id. Anything else, including search pages of a known marketplace, is rejected.
func ParseAdURL(rawURL string) (*AdURLInfo, error) {
	rawURL = strings.TrimSpace(rawURL)
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return nil, NewInvalidAdURLError(fmt.Sprintf("not an absolute URL: %q", rawURL))
	}

	host := parsed.Hostname()
	path := strings.TrimRight(parsed.Path, "/")

	switch {
	case hostMatches(host, "sauto.cz"):
		segments := strings.Split(path, "/")
		last := segments[len(segments)-1]
		if !strings.Contains(path, "/detail/") || !numericSegment.MatchString(last) {
			return nil, NewInvalidAdURLError(fmt.Sprintf("sauto URL has no listing id: %s", rawURL))
		}
		return &AdURLInfo{
			Source:    models.SourceSauto,
			ID:        last,
			PublicURL: "https://www.sauto.cz" + path,
		}, nil

	case hostMatches(host, "bazos.cz"):
		m := bazosDetailPath.FindStringSubmatch(parsed.Path)
		if m == nil {
			return nil, NewInvalidAdURLError(fmt.Sprintf("bazos URL is not an ad detail page: %s", rawURL))
		}
		return &AdURLInfo{
			Source:    models.SourceBazos,
			ID:        m[1],
			PublicURL: fmt.Sprintf("https://%s%s", strings.ToLower(host), parsed.Path),
		}, nil

	case hostMatches(host, "tipcars.com"):
		segments := strings.Split(path, "/")
		last := segments[len(segments)-1]
		m := tipcarsIDSuffix.FindStringSubmatch(last)
		if len(segments) < 2 || m == nil {
			return nil, NewInvalidAdURLError(fmt.Sprintf("tipcars URL is not an ad detail page: %s", rawURL))
		}
		return &AdURLInfo{
			Source:    models.SourceTipCars,
			ID:        m[1],
			PublicURL: "https://www.tipcars.com" + parsed.Path,
		}, nil
	}

	return nil, NewInvalidAdURLError(fmt.Sprintf("unsupported marketplace: %s", host))
}
