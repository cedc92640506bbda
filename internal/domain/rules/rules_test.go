package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/weni-ai/catalog-sync/internal/domain/models"
	"github.com/weni-ai/catalog-sync/internal/testutil"
)

func TestChainShortCircuits(t *testing.T) {
	var order []string

	pass := &fakeRule{name: "pass", result: true, order: &order}
	reject := &fakeRule{name: "reject", result: false, order: &order}
	after := &fakeRule{name: "after", result: true, order: &order}

	chain := &Chain{rules: []Rule{pass, reject, after}, logger: testutil.NewNopLogger()}

	ok := chain.Apply(&models.ProductRecord{}, &Context{})

	assert.False(t, ok)
	// третье правило не должно выполняться после отказа второго
	assert.Equal(t, []string{"pass", "reject"}, order)
}

func TestChainSkipsUnknownRules(t *testing.T) {
	chain := NewChain([]string{"currency_format", "no_such_rule", "seller_namespace"}, testutil.NewNopLogger())
	assert.Len(t, chain.rules, 2)
}

func TestSellerNamespace(t *testing.T) {
	chain := NewChain([]string{"seller_namespace"}, testutil.NewNopLogger())

	for _, seller := range []string{"A", "B"} {
		product := &models.ProductRecord{ID: "99"}
		ok := chain.Apply(product, &Context{SKUID: "99", SellerID: seller})
		assert.True(t, ok)
		assert.Equal(t, "99#"+seller, product.ID)
	}
}

func TestCurrencyFormat(t *testing.T) {
	chain := NewChain([]string{"currency_format"}, testutil.NewNopLogger())

	product := &models.ProductRecord{PriceAmount: 1234, ListPriceAmount: 5000}
	ok := chain.Apply(product, &Context{Currency: "BRL"})

	assert.True(t, ok)
	assert.Equal(t, "12.34 BRL", product.Price)
	assert.Equal(t, "50.00 BRL", product.ListPrice)
}

func TestExcludeCategories(t *testing.T) {
	chain := NewChain([]string{"exclude_categories"}, testutil.NewNopLogger())
	config := &models.AppConfig{ExcludedCategories: []string{"Bebidas Alcoolicas"}}

	excluded := &models.ProductRecord{
		ExtraDetails: map[string]string{"categories": "Mercearia; Bebidas Alcoolicas"},
	}
	assert.False(t, chain.Apply(excluded, &Context{Config: config}))

	allowed := &models.ProductRecord{
		ExtraDetails: map[string]string{"categories": "Mercearia; Padaria"},
	}
	assert.True(t, chain.Apply(allowed, &Context{Config: config}))
}

type fakeRule struct {
	name   string
	result bool
	order  *[]string
}

func (r *fakeRule) Name() string { return r.name }

func (r *fakeRule) Apply(product *models.ProductRecord, rctx *Context) bool {
	*r.order = append(*r.order, r.name)
	return r.result
}
