package pipeline

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/rotisserie/eris"

	"car-advisor/pkg/models"
)

func TestInterpreterStrategy(t *testing.T) {
	fake := newFakeLLM()
	fake.responses["interpreter.strategy"] = "```json\n" + `{"models":[{"make":"Skoda","model":"Superb","year_from":2018},{"make":"","model":"x"}],
"filters":{"price_to":400000,"fuel":"nafta","gearbox":"automaticka","body_type_seo":"kombi"}}` + "\n```"

	got, err := NewInterpreter(fake, "").Strategy(context.Background(), "rodinné kombi do 400 000 Kč, nafta, automat")
	if err != nil {
		t.Fatalf("Strategy: %v", err)
	}
	if len(got.Models) != 1 || got.Models[0].String() != "skoda:superb" || got.Models[0].YearFrom != 2018 {
		t.Errorf("models = %+v", got.Models)
	}
	want := models.SearchFilters{PriceTo: 400000, Fuel: "nafta", Gearbox: "automaticka", BodyTypeSEO: "kombi"}
	if *got.Filters != want {
		t.Errorf("filters = %+v, want %+v", *got.Filters, want)
	}
}

func TestInterpreterStrategyErrors(t *testing.T) {
	tests := []struct {
		name     string
		response string
		err      error
		want     error
	}{
		{name: "empty models", response: `{"models":[],"filters":{}}`, want: ErrNoModels},
		{name: "missing filters", response: `{"models":[{"make":"skoda","model":"fabia"}]}`, want: ErrMalformedStrategy},
		{name: "missing models", response: `{"filters":{}}`, want: ErrMalformedStrategy},
		{name: "double encoded empty", response: `"{\"models\":[],\"filters\":{}}"`, want: ErrNoModels},
		{name: "blank answer", response: "  ", want: ErrEmptyLLMResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeLLM()
			fake.responses["interpreter.strategy"] = tt.response
			_, err := NewInterpreter(fake, "").Strategy(context.Background(), "auto")
			if !eris.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	t.Run("not json", func(t *testing.T) {
		fake := newFakeLLM()
		fake.responses["interpreter.strategy"] = "Doporučuji Octavii."
		if _, err := NewInterpreter(fake, "").Strategy(context.Background(), "auto"); err == nil {
			t.Error("expected parse error")
		}
	})

	t.Run("model error propagates", func(t *testing.T) {
		fake := newFakeLLM()
		boom := errors.New("upstream 529")
		fake.errs["interpreter.strategy"] = boom
		if _, err := NewInterpreter(fake, "").Strategy(context.Background(), "auto"); err == nil || !strings.Contains(err.Error(), "upstream 529") {
			t.Errorf("err = %v, want wrapped %v", err, boom)
		}
	})
}

func TestInterpreterFiltersSanitizes(t *testing.T) {
	fake := newFakeLLM()
	fake.responses["interpreter.filters"] = `{"filters":{"price_to":300000,"fuel":"Diesel","gearbox":"AUTOMATICKA","year_from":1800}}`

	got, err := NewInterpreter(fake, "").Filters(context.Background(), "auto")
	if err != nil {
		t.Fatalf("Filters: %v", err)
	}
	want := models.SearchFilters{PriceTo: 300000, Gearbox: "automaticka"}
	if *got != want {
		t.Errorf("filters = %+v, want %+v", *got, want)
	}
}

func TestInterpreterSearchPhrases(t *testing.T) {
	fake := newFakeLLM()
	fake.responses["interpreter.phrases"] = `[{"searchText":"Skoda Superb kombi"},{"searchText":"skoda superb kombi"},"VW Passat kombi",{"other":1}]`

	got, err := NewInterpreter(fake, "").SearchPhrases(context.Background(), "kombi")
	if err != nil {
		t.Fatalf("SearchPhrases: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"Skoda Superb kombi", "VW Passat kombi"}) {
		t.Errorf("phrases = %q", got)
	}

	fake.responses["interpreter.phrases"] = `[]`
	got, err = NewInterpreter(fake, "").SearchPhrases(context.Background(), " octavia rs ")
	if err != nil || !reflect.DeepEqual(got, []string{"octavia rs"}) {
		t.Errorf("fallback phrases = %q, %v", got, err)
	}
}

func TestCollectorDedupesOverlappingPages(t *testing.T) {
	client := newFakeClient(models.SourceSauto, 3)
	superb := &models.CarModel{Make: "skoda", Model: "superb"}
	passat := &models.CarModel{Make: "volkswagen", Model: "passat"}
	client.pages["skoda:superb@0"] = []models.ListingSummary{summary("1"), summary("2"), summary("3")}
	client.pages["skoda:superb@3"] = []models.ListingSummary{summary("3"), summary("4")}
	client.pages["volkswagen:passat@0"] = []models.ListingSummary{summary("2"), summary("5")}

	c := NewCollector(CollectorOptions{MaxRecords: 100, TopN: 10})
	result, err := c.Collect(context.Background(), client, []models.SearchQuery{{Model: superb}, {Model: passat}})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}

	if got := ids(result.Listings); got != "1,2,3,4,5" {
		t.Errorf("ids = %s, want each id once", got)
	}
	if result.Total != 5 || result.Empty {
		t.Errorf("total = %d empty = %v", result.Total, result.Empty)
	}
	if result.Outcomes[0].Pages != 3 || result.Outcomes[0].Listings != 4 {
		t.Errorf("superb outcome = %+v", result.Outcomes[0])
	}
}

func TestCollectorStopsOnPageWithoutNewListings(t *testing.T) {
	client := newFakeClient(models.SourceSauto, 2)
	client.pages["broad@0"] = []models.ListingSummary{summary("1"), summary("2")}
	client.pages["broad@2"] = []models.ListingSummary{summary("1"), summary("2")}
	client.pages["broad@4"] = []models.ListingSummary{summary("9")}

	result, err := NewCollector(CollectorOptions{MaxRecords: 100, TopN: 10}).Collect(context.Background(), client, []models.SearchQuery{{}})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if got := ids(result.Listings); got != "1,2" {
		t.Errorf("ids = %s", got)
	}
	if client.searchCount() != 2 {
		t.Errorf("searches = %d, want 2", client.searchCount())
	}
}

func TestCollectorRecordCapSortAndTruncate(t *testing.T) {
	client := newFakeClient(models.SourceSauto, 2)
	day := func(d int) *time.Time {
		ts := time.Date(2026, 1, d, 0, 0, 0, 0, time.UTC)
		return &ts
	}
	page0 := []models.ListingSummary{summary("1"), summary("2")}
	page0[0].SortingDate = day(1)
	page1 := []models.ListingSummary{summary("3"), summary("4")}
	page1[0].SortingDate = day(5)
	page1[1].SortingDate = day(3)
	client.pages["broad@0"] = page0
	client.pages["broad@2"] = page1
	client.pages["broad@4"] = []models.ListingSummary{summary("5")}

	result, err := NewCollector(CollectorOptions{MaxRecords: 4, TopN: 3}).Collect(context.Background(), client, []models.SearchQuery{{}})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if client.searchCount() != 2 {
		t.Errorf("searches = %d, want record cap to stop at offset 4", client.searchCount())
	}
	if got := ids(result.Listings); got != "3,4,1" {
		t.Errorf("ids = %s, want newest first truncated to 3", got)
	}
	if result.Total != 4 {
		t.Errorf("total = %d", result.Total)
	}
}

func TestCollectorToleratesFailuresAndReportsEmpty(t *testing.T) {
	client := newFakeClient(models.SourceSauto, 2)
	client.failing["skoda:fabia@0"] = true

	result, err := NewCollector(CollectorOptions{MaxRecords: 10, TopN: 5}).Collect(context.Background(), client,
		[]models.SearchQuery{{Model: &models.CarModel{Make: "skoda", Model: "fabia"}}, {Model: &models.CarModel{Make: "skoda", Model: "rapid"}}})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if !result.Empty || len(result.Listings) != 0 {
		t.Errorf("expected empty result, got %+v", result)
	}
	if result.Outcomes[0].Error == "" {
		t.Error("failed query should record its error")
	}
	if client.searchCount() != 2 {
		t.Errorf("second query should still run, searches = %d", client.searchCount())
	}
}

func TestCollectorSessionFailure(t *testing.T) {
	client := newFakeClient(models.SourceSauto, 2)
	client.session = errors.New("no cookies")
	if _, err := NewCollector(CollectorOptions{}).Collect(context.Background(), client, []models.SearchQuery{{}}); err == nil {
		t.Fatal("expected session error")
	}
	if client.searchCount() != 0 {
		t.Error("search must not run without a session")
	}
}

func TestDetailFetcherPartialFailure(t *testing.T) {
	for _, concurrency := range []int{1, 4} {
		client := newFakeClient(models.SourceSauto, 10)
		listings := []models.ListingSummary{summary("1"), summary("2"), summary("3")}
		for _, l := range listings {
			client.details[l.URL] = detail(string(l.ID), 300000)
		}
		client.failing[listings[1].URL] = true

		f := NewDetailFetcher(concurrency)
		outcomes := f.FetchAll(context.Background(), client, listings)
		if len(outcomes) != 3 || outcomes[1].OK() || !outcomes[0].OK() || !outcomes[2].OK() {
			t.Fatalf("concurrency %d: outcomes = %+v", concurrency, outcomes)
		}

		details := f.Fetch(context.Background(), client, listings)
		if len(details) != 2 || details[0].ID != "1" || details[1].ID != "3" {
			t.Errorf("concurrency %d: details = %+v", concurrency, details)
		}
	}
}

func TestDetailFetcherFillsIdentity(t *testing.T) {
	client := newFakeClient(models.SourceTipCars, 20)
	s := models.ListingSummary{Source: models.SourceTipCars, Title: "Octavia", URL: "https://www.tipcars.com/octavia.html"}
	client.details[s.URL] = &models.ListingDetail{Price: 1}

	details := NewDetailFetcher(1).Fetch(context.Background(), client, []models.ListingSummary{s})
	if len(details) != 1 {
		t.Fatalf("details = %+v", details)
	}
	d := details[0]
	if d.ID != models.ListingID(s.URL) || d.Source != models.SourceTipCars || d.Title != "Octavia" {
		t.Errorf("identity not filled: %+v", d)
	}
}

func TestRankerScoresSortsAndFilters(t *testing.T) {
	fake := newFakeLLM()
	fake.responses["ranker"] = `[{"id":0,"score":40},{"id":"1","score":90.4},{"id":7,"score":100}]`
	details := []models.ListingDetail{*detail("a", 1), *detail("b", 1), *detail("c", 1)}

	got := NewRanker(fake, RankerOptions{BatchSize: 2}).Rank(context.Background(), "superb", details)
	if !got.Applied {
		t.Fatal("ranking should be applied")
	}
	var order []string
	for _, l := range got.Listings {
		order = append(order, string(l.ID))
	}
	if !reflect.DeepEqual(order, []string{"b", "a", "c"}) {
		t.Errorf("order = %v", order)
	}
	if got.Listings[0].Score != 90 || !got.Listings[0].Scored {
		t.Errorf("top = %+v", got.Listings[0])
	}
	if fake.callsFor("ranker") != 2 {
		t.Errorf("ranker calls = %d, want one per batch", fake.callsFor("ranker"))
	}

	filtered := NewRanker(fake, RankerOptions{BatchSize: 2, MinScore: 50}).Rank(context.Background(), "superb", details)
	if len(filtered.Listings) != 1 || filtered.Listings[0].ID != "b" {
		t.Errorf("min score result = %+v", filtered.Listings)
	}
}

func TestRankerAcceptsStringScores(t *testing.T) {
	fake := newFakeLLM()
	fake.responses["ranker"] = `[{"id":0,"score":"85"},{"id":1,"score":"40"},{"id":2,"score":"?"}]`
	details := []models.ListingDetail{*detail("a", 1), *detail("b", 1), *detail("c", 1)}

	got := NewRanker(fake, RankerOptions{BatchSize: 10}).Rank(context.Background(), "superb", details)
	if !got.Applied {
		t.Fatal("string scores should not discard the batch")
	}
	if got.Listings[0].ID != "a" || got.Listings[0].Score != 85 || !got.Listings[0].Scored {
		t.Errorf("top = %+v", got.Listings[0])
	}
	if last := got.Listings[2]; last.ID != "c" || last.Scored || last.Score != 0 {
		t.Errorf("unparsable score = %+v", last)
	}
}

func TestRankerFallsBackToInput(t *testing.T) {
	details := []models.ListingDetail{*detail("a", 1), *detail("b", 1)}

	for name, setup := range map[string]func(f *fakeLLM){
		"model error": func(f *fakeLLM) { f.errs["ranker"] = errors.New("timeout") },
		"garbage":     func(f *fakeLLM) { f.responses["ranker"] = "nevím" },
	} {
		t.Run(name, func(t *testing.T) {
			fake := newFakeLLM()
			setup(fake)
			got := NewRanker(fake, RankerOptions{BatchSize: 10}).Rank(context.Background(), "q", details)
			if got.Applied {
				t.Error("Applied should be false")
			}
			if !reflect.DeepEqual(got.Details(), details) {
				t.Errorf("details changed: %+v", got.Details())
			}
		})
	}
}

func TestRelevanceFilter(t *testing.T) {
	fake := newFakeLLM()
	fake.responses["relevance_filter"] = `[{"id":0},2,"9"]`
	listings := []models.ListingSummary{summary("1"), summary("2"), summary("3")}

	got := NewRelevanceFilter(fake, "", 200).Filter(context.Background(), "superb", listings)
	if ids(got) != "1,3" {
		t.Errorf("kept = %s", ids(got))
	}

	fake.errs["relevance_filter"] = errors.New("down")
	got = NewRelevanceFilter(fake, "", 200).Filter(context.Background(), "superb", listings)
	if ids(got) != "1,2,3" {
		t.Errorf("fallback kept = %s", ids(got))
	}
}

func TestInspector(t *testing.T) {
	details := []models.ListingDetail{*detail("1", 1), *detail("2", 1), *detail("3", 1), *detail("4", 1)}

	t.Run("truncates to top n", func(t *testing.T) {
		fake := newFakeLLM()
		fake.responses["inspector"] = `{"summary_message":"Hotovo","inspected_cars":[{"id":4,"final_verdict_cz":"a"},{"id":"2"},{"id":1},{"id":3}]}`
		report, err := NewInspector(fake, InspectorOptions{TopN: 3}).Inspect(context.Background(), "q", details)
		if err != nil {
			t.Fatalf("Inspect: %v", err)
		}
		if len(report.InspectedCars) != 3 || report.InspectedCars[0].ID != "4" || report.InspectedCars[1].ID != "2" {
			t.Errorf("cars = %+v", report.InspectedCars)
		}
	})

	t.Run("missing id", func(t *testing.T) {
		fake := newFakeLLM()
		fake.responses["inspector"] = `{"summary_message":"x","inspected_cars":[{"summary_cz":"bez id"}]}`
		_, err := NewInspector(fake, InspectorOptions{}).Inspect(context.Background(), "q", details)
		if !eris.Is(err, ErrMissingListingID) {
			t.Errorf("err = %v", err)
		}
	})

	t.Run("model error propagates", func(t *testing.T) {
		fake := newFakeLLM()
		fake.errs["inspector"] = errors.New("quota")
		if _, err := NewInspector(fake, InspectorOptions{}).Inspect(context.Background(), "q", details); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("no details", func(t *testing.T) {
		fake := newFakeLLM()
		report, err := NewInspector(fake, InspectorOptions{}).Inspect(context.Background(), "q", nil)
		if err != nil || report.SummaryMessage != MessageNoDetails || len(fake.calls) != 0 {
			t.Errorf("report = %+v err = %v calls = %d", report, err, len(fake.calls))
		}
	})
}

func TestAssemblerJoinsAndIsIdempotent(t *testing.T) {
	client := newFakeClient(models.SourceSauto, 10)
	listings := []models.RankedListing{
		{ListingDetail: *detail("1", 389000), Score: 88, Scored: true},
		{ListingDetail: *detail("2", 0)},
	}
	listings[1].VIN = ""
	listings[1].PriceText = "Cena dohodou"
	listings[1].Seller = models.SellerInfo{}

	report := &models.InspectionReport{
		SummaryMessage: "Nejlepší vozy",
		InspectedCars: []models.AnalysisReport{
			{ID: "2", ProsCZ: []string{"levné"}, FinalVerdictCZ: "ano"},
			{ID: "99", FinalVerdictCZ: "neexistuje"},
			{ID: "1", FinalVerdictCZ: "určitě", PriceEstimate: &models.PriceEstimate{Min: 1, Max: 2}},
		},
	}

	a := NewAssembler(1)
	first := a.Assemble(report, listings, client)
	second := a.Assemble(report, listings, client)
	if !reflect.DeepEqual(first, second) {
		t.Error("assembler output differs between runs")
	}

	if len(first.InspectedCars) != 2 || first.InspectedCars[0].ID != "2" || first.InspectedCars[1].ID != "1" {
		t.Fatalf("cars = %+v", first.InspectedCars)
	}
	cheap, best := first.InspectedCars[0], first.InspectedCars[1]
	if cheap.VIN != nil || cheap.Price != "Cena dohodou" || cheap.SellerInfo.Name != "Soukromý prodejce" || cheap.Score != nil {
		t.Errorf("unscored car = %+v", cheap)
	}
	if best.VIN == nil || *best.VIN != "TMBJJ7NP0K700001" || best.Score == nil || *best.Score != 88 {
		t.Errorf("scored car = %+v", best)
	}
	if best.SellerInfo.Name != "Autobazar 1" {
		t.Errorf("seller = %+v", best.SellerInfo)
	}
	if len(best.Images) != 1 || best.Images[0] != "https://img.sauto.cz/1/a.jpg?resized" {
		t.Errorf("images = %v", best.Images)
	}
	if best.Price != "389 000 Kč" {
		t.Errorf("price = %q", best.Price)
	}

	empty := a.Assemble(&models.InspectionReport{InspectedCars: []models.AnalysisReport{{ID: "77"}}}, listings, nil)
	if empty.SummaryMessage != MessageNoSuitable || empty.InspectedCars == nil || len(empty.InspectedCars) != 0 {
		t.Errorf("empty = %+v", empty)
	}
}
