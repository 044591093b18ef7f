package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"car-advisor/internal/llm"
	"car-advisor/internal/scraper"
	"car-advisor/pkg/models"
)

// fakeLLM answers by request stage
type fakeLLM struct {
	mu        sync.Mutex
	responses map[string]string
	errs      map[string]error
	calls     []llm.CompletionRequest
}

func newFakeLLM() *fakeLLM {
	return &fakeLLM{responses: map[string]string{}, errs: map[string]error{}}
}

func (f *fakeLLM) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if err, ok := f.errs[req.Stage]; ok {
		return "", err
	}
	resp, ok := f.responses[req.Stage]
	if !ok {
		return "", fmt.Errorf("no canned response for stage %s", req.Stage)
	}
	return resp, nil
}

func (f *fakeLLM) callsFor(stage string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Stage == stage {
			n++
		}
	}
	return n
}

// fakeClient serves canned pages keyed by "label@offset" and details keyed by ref
type fakeClient struct {
	name     string
	pageSize int
	pages    map[string][]models.ListingSummary
	details  map[string]*models.ListingDetail
	failing  map[string]bool
	session  error

	mu       sync.Mutex
	searches []models.SearchQuery
	fetches  []string
}

func newFakeClient(name string, pageSize int) *fakeClient {
	return &fakeClient{
		name:     name,
		pageSize: pageSize,
		pages:    map[string][]models.ListingSummary{},
		details:  map[string]*models.ListingDetail{},
		failing:  map[string]bool{},
	}
}

func (c *fakeClient) Name() string  { return c.name }
func (c *fakeClient) PageSize() int { return c.pageSize }

func (c *fakeClient) StartSession(ctx context.Context) error { return c.session }

func (c *fakeClient) Search(ctx context.Context, q models.SearchQuery) ([]models.ListingSummary, error) {
	c.mu.Lock()
	c.searches = append(c.searches, q)
	c.mu.Unlock()

	key := fmt.Sprintf("%s@%d", q.Label(), q.Offset)
	if c.failing[key] {
		return nil, errors.New("search page unavailable")
	}
	return c.pages[key], nil
}

func (c *fakeClient) FetchDetail(ctx context.Context, ref string) (*models.ListingDetail, error) {
	c.mu.Lock()
	c.fetches = append(c.fetches, ref)
	c.mu.Unlock()

	if c.failing[ref] {
		return nil, errors.New("detail unavailable")
	}
	d, ok := c.details[ref]
	if !ok {
		return nil, errors.New("not found")
	}
	cp := *d
	return &cp, nil
}

func (c *fakeClient) ResolveImage(raw string) string {
	return "https:" + raw + "?resized"
}

func (c *fakeClient) searchCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.searches)
}

type fakeClients map[string]scraper.MarketplaceClient

func (f fakeClients) Client(platform string) (scraper.MarketplaceClient, error) {
	c, ok := f[platform]
	if !ok {
		return nil, fmt.Errorf("unsupported platform: %s", platform)
	}
	return c, nil
}

func summary(id string) models.ListingSummary {
	return models.ListingSummary{
		ID:     models.ListingID(id),
		Source: models.SourceSauto,
		Title:  "Škoda Superb " + id,
		URL:    "https://www.sauto.cz/osobni/detail/skoda/superb/" + id,
	}
}

func detail(id string, price int) *models.ListingDetail {
	return &models.ListingDetail{
		ID:      models.ListingID(id),
		Source:  models.SourceSauto,
		Title:   "Škoda Superb " + id,
		URL:     "https://www.sauto.cz/osobni/detail/skoda/superb/" + id,
		Price:   price,
		Year:    2019,
		Mileage: 120000,
		Fuel:    "Nafta",
		VIN:     "TMBJJ7NP0K70000" + id,
		Images:  []string{"//img.sauto.cz/" + id + "/a.jpg", "//img.sauto.cz/" + id + "/b.jpg"},
		Seller:  models.SellerInfo{ShopName: "Autobazar " + id},
	}
}

func ids(listings []models.ListingSummary) string {
	out := make([]string, len(listings))
	for i, l := range listings {
		out[i] = string(l.ID)
	}
	return strings.Join(out, ",")
}
