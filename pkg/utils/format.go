package utils

import (
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// FormatCzechNumber groups digits the way cs-CZ does ("389 000", non-breaking spaces)
func FormatCzechNumber(n int) string {
	return message.NewPrinter(language.Czech).Sprintf("%d", n)
}

// FormatCZK renders a price as "389 000 Kč". Unknown prices (<= 0) render as "".
func FormatCZK(price int) string {
	if price <= 0 {
		return ""
	}
	return FormatCzechNumber(price) + " Kč"
}

// FormatKM renders a mileage as "125 000 km"
func FormatKM(km int) string {
	if km <= 0 {
		return ""
	}
	return FormatCzechNumber(km) + " km"
}

// FormatCzechDate renders an ISO date string as "2. 1. 2026". Unparsable input is
// returned unchanged.
func FormatCzechDate(iso string) string {
	iso = strings.TrimSpace(iso)
	if iso == "" {
		return ""
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, iso); err == nil {
			return t.Format("2. 1. 2006")
		}
	}
	return iso
}

// YearOf extracts the year from an ISO date string, or 0
func YearOf(iso string) int {
	iso = strings.TrimSpace(iso)
	if len(iso) < 4 {
		return 0
	}
	return ParseDigits(iso[:4])
}
