package bazos

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"car-advisor/internal/config"
	"car-advisor/internal/scraper/fetch"
	"car-advisor/pkg/models"
)

const searchPage = `<html><body>
<div class="inzeraty inzeratyflex">
  <h2 class="nadpis"><a href="/inzerat/111/skoda-octavia-combi.php">Škoda Octavia Combi 2.0 TDI</a></h2>
  <img class="obrazek" src="https://www.bazos.cz/img/1t/111/octavia.jpg">
  <div class="popis">Servisovaná, první majitel</div>
  <div class="inzeratycena"><b>289 000 Kč</b></div>
  <div class="inzeratylok">Praha
  110 00</div>
</div>
<div class="inzeraty inzeratyflex">
  <h2 class="nadpis"><a href="/inzerat/222/sada-kol.php">Sada kol 16" Octavia</a></h2>
  <div class="inzeratycena"><b>5 000 Kč</b></div>
</div>
<div class="inzeraty inzeratyflex">
  <h2 class="nadpis"><a href="/inzerat/333/octavia-rs.php">Octavia RS</a></h2>
  <div class="inzeratycena"><b>Dohodou</b></div>
</div>
</body></html>`

const detailPage = `<html><head><meta name="description" content="Cena: 289 000 Kč"></head><body>
<h1 class="nadpisdetail">Škoda Octavia Combi 2.0 TDI</h1>
<div class="popisdetail">Rok výroby: 2018<br>Najeto: 145 000 km<br>Výkon: 110 kW<br>Palivo: nafta<br>Pěkný stav</div>
<div class="listadvlevo"><table>
  <tr><td>Jméno:</td><td>Petr</td></tr>
  <tr><td>Lokalita:</td><td></td><td>Praha 110 00</td></tr>
  <tr><td>Vidělo:</td><td>152 lidí</td></tr>
  <tr><td>Cena:</td><td><b>289 000 Kč</b></td></tr>
</table></div>
<div class="carousel-cell"><img data-flickity-lazyload="https://www.bazos.cz/img/1/111/a.jpg"></div>
<div class="carousel-cell"><img src="https://www.bazos.cz/img/2/111/b.jpg"></div>
</body></html>`

func newTestClient(t *testing.T) (*Client, *[]string) {
	t.Helper()
	var requested []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = append(requested, r.URL.String())
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		switch {
		case strings.HasPrefix(r.URL.Path, "/inzerat/111"):
			fmt.Fprint(w, detailPage)
		case strings.HasPrefix(r.URL.Path, "/inzerat/"):
			w.WriteHeader(http.StatusNotFound)
		case r.URL.Path == "/":
			fmt.Fprint(w, searchPage)
		default:
			fmt.Fprint(w, `<html><body></body></html>`)
		}
	}))
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.Marketplaces.Bazos.BaseURL = srv.URL
	cfg.Marketplaces.Bazos.MaxPages = 2
	pages := fetch.NewHTTPFetcher(fetch.NewHTTPClient(5*time.Second), cfg.Scraper.UserAgent, nil)
	return NewClient(cfg, nil, pages), &requested
}

func TestSearchParsesListingsAndSkipsParts(t *testing.T) {
	c, requested := newTestClient(t)

	listings, err := c.Search(context.Background(), models.SearchQuery{
		Phrase:  "octavia combi",
		Filters: models.SearchFilters{PriceTo: 300000},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(listings) != 2 {
		t.Fatalf("got %d listings, want 2 (parts set skipped): %+v", len(listings), listings)
	}

	first := listings[0]
	if first.ID != "111" || first.Price != 289000 || first.PriceText != "289 000 Kč" {
		t.Errorf("first = %+v", first)
	}
	if !strings.HasSuffix(first.URL, "/inzerat/111/skoda-octavia-combi.php") || !strings.HasPrefix(first.URL, "http") {
		t.Errorf("url = %q", first.URL)
	}
	if first.Location != "Praha 110 00" {
		t.Errorf("location = %q", first.Location)
	}
	if listings[1].Price != 0 {
		t.Errorf("negotiable price parsed as %d", listings[1].Price)
	}

	q := (*requested)[0]
	if !strings.Contains(q, "hledat=octavia+combi") || !strings.Contains(q, "rubriky=auto") || !strings.Contains(q, "cenado=300000") {
		t.Errorf("search request = %q", q)
	}
}

func TestSearchPagination(t *testing.T) {
	c, requested := newTestClient(t)

	listings, err := c.Search(context.Background(), models.SearchQuery{Phrase: "octavia", Offset: 20})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(listings) != 0 {
		t.Errorf("second page should be empty in the fixture, got %d", len(listings))
	}
	if !strings.HasPrefix((*requested)[0], "/20/?") {
		t.Errorf("second page request = %q", (*requested)[0])
	}

	// beyond MaxPages no request is made
	before := len(*requested)
	if got, err := c.Search(context.Background(), models.SearchQuery{Phrase: "octavia", Offset: 40}); err != nil || got != nil {
		t.Errorf("Search beyond max pages = %v, %v", got, err)
	}
	if len(*requested) != before {
		t.Error("request issued beyond max pages")
	}
}

func TestSearchRequiresPhrase(t *testing.T) {
	c, _ := newTestClient(t)
	if _, err := c.Search(context.Background(), models.SearchQuery{}); err == nil {
		t.Error("expected error for empty phrase")
	}
}

func TestFetchDetail(t *testing.T) {
	c, _ := newTestClient(t)

	d, err := c.FetchDetail(context.Background(), "111")
	if err != nil {
		t.Fatalf("FetchDetail: %v", err)
	}
	if d.ID != "111" || d.Source != models.SourceBazos || d.Title != "Škoda Octavia Combi 2.0 TDI" {
		t.Errorf("detail = %+v", d)
	}
	if d.Price != 289000 || d.PriceText != "289 000 Kč" {
		t.Errorf("price = %d %q", d.Price, d.PriceText)
	}
	if d.Year != 2018 || d.Mileage != 145000 || d.EnginePowerKW != 110 || d.Fuel != "nafta" {
		t.Errorf("structured = year %d, km %d, kW %d, fuel %q", d.Year, d.Mileage, d.EnginePowerKW, d.Fuel)
	}
	if d.Seller.Name != "Petr" || d.Seller.Location != "Praha 110 00" || d.Attributes["views"] != "152" {
		t.Errorf("seller = %+v, views = %q", d.Seller, d.Attributes["views"])
	}
	if len(d.Images) != 2 || !strings.HasSuffix(d.Images[0], "/a.jpg") {
		t.Errorf("images = %v", d.Images)
	}
	if !strings.Contains(d.Description, "Pěkný stav") {
		t.Errorf("description = %q", d.Description)
	}
}

func TestFetchDetailErrors(t *testing.T) {
	c, _ := newTestClient(t)
	for _, ref := range []string{"999", "not-an-id", "https://auto.bazos.cz/hledat"} {
		if _, err := c.FetchDetail(context.Background(), ref); err == nil {
			t.Errorf("FetchDetail(%q): expected error", ref)
		}
	}
}

func TestParseDetailMetaPriceFallback(t *testing.T) {
	html := `<html><head><meta name="description" content="Prodám auto. Cena: 150 000 Kč, Brno"></head>
<body><h1 class="nadpisdetail">Fabia</h1></body></html>`
	d, err := parseDetail(html, "https://auto.bazos.cz/inzerat/5/")
	if err != nil {
		t.Fatalf("parseDetail: %v", err)
	}
	if d.Price != 150000 {
		t.Errorf("price = %d (%q)", d.Price, d.PriceText)
	}
}
