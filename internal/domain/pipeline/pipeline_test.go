package pipeline

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weni-ai/catalog-sync/internal/clients/source"
	"github.com/weni-ai/catalog-sync/internal/domain/models"
	"github.com/weni-ai/catalog-sync/internal/domain/rules"
	"github.com/weni-ai/catalog-sync/internal/testutil"
)

type fakeSource struct {
	mu          sync.Mutex
	details     map[string]*source.SKUDetail
	simulations map[string]*source.CartSimulation // ключ "{sku}:{seller}"
	failSKUs    map[string]bool
	concurrent  atomic.Int32
	maxObserved atomic.Int32
}

func (f *fakeSource) GetSKUDetail(ctx context.Context, skuID string) (*source.SKUDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSKUs[skuID] {
		return nil, errors.New("upstream failure")
	}
	detail, ok := f.details[skuID]
	if !ok {
		return nil, errors.New("sku not found")
	}
	return detail, nil
}

func (f *fakeSource) SimulateCart(ctx context.Context, skuID, sellerID string) (*source.CartSimulation, error) {
	cur := f.concurrent.Add(1)
	for {
		max := f.maxObserved.Load()
		if cur <= max || f.maxObserved.CompareAndSwap(max, cur) {
			break
		}
	}
	defer f.concurrent.Add(-1)

	f.mu.Lock()
	defer f.mu.Unlock()
	sim, ok := f.simulations[skuID+":"+sellerID]
	if !ok {
		return &source.CartSimulation{}, nil
	}
	return sim, nil
}

func testDetail(name string) *source.SKUDetail {
	return &source.SKUDetail{
		Name:      name,
		BrandName: "Acme",
		ImageURL:  "https://img.example.com/1.jpg",
		DetailURL: "/p/1",
	}
}

func testApp() *models.App {
	return &models.App{
		ID: "app-1",
		Config: models.AppConfig{
			StoreDomain: "https://store.example.com",
		},
	}
}

func TestPipelineBuildsRecordsPerSellerPair(t *testing.T) {
	src := &fakeSource{
		details: map[string]*source.SKUDetail{"99": testDetail("Produto 99")},
		simulations: map[string]*source.CartSimulation{
			"99:A": {Available: true, PriceCents: 1000, ListPriceCents: 1200, Currency: "BRL"},
			"99:B": {Available: true, PriceCents: 1100, ListPriceCents: 1100, Currency: "BRL"},
		},
	}
	chain := rules.NewChain([]string{"currency_format", "seller_namespace"}, testutil.NewNopLogger())
	p := NewPipeline(4, testutil.NewNopLogger())

	records, progress := p.Run(context.Background(), []string{"99"}, []string{"A", "B"}, testApp(), src, chain)

	require.Len(t, records, 2)
	ids := []string{records[0].ID, records[1].ID}
	sort.Strings(ids)
	assert.Equal(t, []string{"99#A", "99#B"}, ids)
	assert.Equal(t, 2, progress.Valid())
	assert.Equal(t, 0, progress.Invalid())
}

func TestPipelineSkipsFailedPairs(t *testing.T) {
	src := &fakeSource{
		details: map[string]*source.SKUDetail{
			"1": testDetail("Produto 1"),
			"2": testDetail("Produto 2"),
		},
		failSKUs: map[string]bool{"2": true},
		simulations: map[string]*source.CartSimulation{
			"1:A": {Available: true, PriceCents: 500},
			"2:A": {Available: true, PriceCents: 700},
		},
	}
	chain := rules.NewChain(nil, testutil.NewNopLogger())
	p := NewPipeline(2, testutil.NewNopLogger())

	records, progress := p.Run(context.Background(), []string{"1", "2"}, []string{"A"}, testApp(), src, chain)

	// отказ одной пары не прерывает партию
	require.Len(t, records, 1)
	assert.Equal(t, "1", records[0].ID)
	assert.Equal(t, 1, progress.Valid())
	assert.Equal(t, 1, progress.Invalid())
}

func TestPipelineMapsAvailability(t *testing.T) {
	tests := []struct {
		name         string
		sim          *source.CartSimulation
		availability string
		status       string
	}{
		{"available with price", &source.CartSimulation{Available: true, PriceCents: 100}, models.AvailabilityInStock, models.StatusActive},
		{"available without price", &source.CartSimulation{Available: true, PriceCents: 0}, models.AvailabilityOutOfStock, models.StatusArchived},
		{"unavailable", &source.CartSimulation{Available: false, PriceCents: 100}, models.AvailabilityOutOfStock, models.StatusArchived},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := mapRecord("1", testDetail("Produto"), tt.sim, testApp())
			assert.Equal(t, tt.availability, record.Availability)
			assert.Equal(t, tt.status, record.Status)
		})
	}
}

func TestPipelineSanitizesText(t *testing.T) {
	detail := testDetail("  Produto <b>com</b> \"tags\", vírgulas  ")
	record := mapRecord("1", detail, &source.CartSimulation{Available: true, PriceCents: 100}, testApp())

	assert.Equal(t, "Produto com tags vírgulas", record.Title)
	assert.Equal(t, "https://store.example.com/p/1", record.Link)
}

func TestRecordValidation(t *testing.T) {
	valid := &models.ProductRecord{
		ID: "1", Title: "t", Availability: models.AvailabilityInStock,
		Status: models.StatusActive, Condition: "new", Link: "l",
		ImageLink: "i", Brand: "b", PriceAmount: 100,
	}
	assert.True(t, valid.Validate())

	zeroPrice := *valid
	zeroPrice.PriceAmount = 0
	assert.False(t, zeroPrice.Validate())

	noImage := *valid
	noImage.ImageLink = ""
	assert.False(t, noImage.Validate())
}

func TestPipelineBoundsConcurrency(t *testing.T) {
	details := make(map[string]*source.SKUDetail)
	sims := make(map[string]*source.CartSimulation)
	var skus []string
	for i := 0; i < 50; i++ {
		id := string(rune('a'+i%26)) + string(rune('0'+i/26))
		details[id] = testDetail("Produto " + id)
		sims[id+":A"] = &source.CartSimulation{Available: true, PriceCents: 100}
		skus = append(skus, id)
	}
	src := &fakeSource{details: details, simulations: sims}
	chain := rules.NewChain(nil, testutil.NewNopLogger())
	p := NewPipeline(5, testutil.NewNopLogger())

	records, _ := p.Run(context.Background(), skus, []string{"A"}, testApp(), src, chain)

	assert.Len(t, records, 50)
	assert.LessOrEqual(t, src.maxObserved.Load(), int32(5))
}
