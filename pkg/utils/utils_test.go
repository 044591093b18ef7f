package utils

import (
	"net/http"
	"strings"
	"testing"
)

// plainSpaces folds the locale's grouping separators into ASCII spaces
func plainSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func TestFormatCZK(t *testing.T) {
	if got := plainSpaces(FormatCZK(389000)); got != "389 000 Kč" {
		t.Errorf("FormatCZK(389000) = %q", got)
	}
	if got := plainSpaces(FormatCZK(1250000)); got != "1 250 000 Kč" {
		t.Errorf("FormatCZK(1250000) = %q", got)
	}
	if got := FormatCZK(0); got != "" {
		t.Errorf("FormatCZK(0) = %q, want empty", got)
	}
}

func TestFormatKM(t *testing.T) {
	if got := plainSpaces(FormatKM(125000)); got != "125 000 km" {
		t.Errorf("FormatKM = %q", got)
	}
}

func TestFormatCzechDate(t *testing.T) {
	cases := map[string]string{
		"2026-01-02":           "2. 1. 2026",
		"2025-11-30T10:00:00Z": "30. 11. 2025",
		"not a date":           "not a date",
		"":                     "",
	}
	for in, want := range cases {
		if got := FormatCzechDate(in); got != want {
			t.Errorf("FormatCzechDate(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseDigits(t *testing.T) {
	cases := map[string]int{
		"389 000 Kč": 389000,
		"125 000 km": 125000,
		"Dohodou":    0,
		"":           0,
	}
	for in, want := range cases {
		if got := ParseDigits(in); got != want {
			t.Errorf("ParseDigits(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestYearOf(t *testing.T) {
	if got := YearOf("2018-05-01"); got != 2018 {
		t.Errorf("YearOf = %d", got)
	}
	if got := YearOf("18"); got != 0 {
		t.Errorf("YearOf short = %d", got)
	}
}

func TestParseAdURL(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		source string
		id     string
	}{
		{"sauto detail", "https://www.sauto.cz/osobni/detail/skoda/octavia/190123456", "sauto", "190123456"},
		{"sauto trailing slash", "https://sauto.cz/osobni/detail/skoda/superb/42/", "sauto", "42"},
		{"bazos detail", "https://auto.bazos.cz/inzerat/187654321/skoda-octavia-combi.php", "bazos", "187654321"},
		{"tipcars detail", "https://www.tipcars.com/skoda-octavia/kombi-2-0-tdi-12345678.html", "tipcars", "12345678"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := ParseAdURL(tt.url)
			if err != nil {
				t.Fatalf("ParseAdURL: %v", err)
			}
			if info.Source != tt.source || info.ID != tt.id {
				t.Errorf("got %s/%s, want %s/%s", info.Source, info.ID, tt.source, tt.id)
			}
		})
	}
}

func TestParseAdURLRejectsNonDetailPages(t *testing.T) {
	bad := []string{
		"https://www.sauto.cz/inzerce/osobni/skoda",
		"https://auto.bazos.cz/?hledat=octavia",
		"https://www.tipcars.com/",
		"https://www.example.com/inzerat/123",
		"not a url",
	}

	for _, u := range bad {
		info, err := ParseAdURL(u)
		if err == nil {
			t.Errorf("ParseAdURL(%q) = %+v, want error", u, info)
			continue
		}
		ce, ok := AsCustomError(err)
		if !ok || ce.Code != http.StatusBadRequest {
			t.Errorf("ParseAdURL(%q) error = %v, want 400 CustomError", u, err)
		}
	}
}
