package cart

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftline/shop-api/internal/domain/catalog"
)

type mockCatalog struct {
	products map[string]catalog.Product
	bundles  map[string]catalog.Bundle
}

func (m *mockCatalog) ListProducts(_ context.Context) ([]catalog.Product, error) {
	return nil, nil
}

func (m *mockCatalog) ProductsByIDs(_ context.Context, ids []string) (map[string]catalog.Product, error) {
	out := make(map[string]catalog.Product)
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (m *mockCatalog) BundlesByIDs(_ context.Context, ids []string) (map[string]catalog.Bundle, error) {
	out := make(map[string]catalog.Bundle)
	for _, id := range ids {
		if b, ok := m.bundles[id]; ok {
			out[id] = b
		}
	}
	return out, nil
}

func newCatalog() *mockCatalog {
	return &mockCatalog{
		products: map[string]catalog.Product{
			"widget": {ID: "widget", Name: "Widget", Price: decimal.RequireFromString("10.00"), StockQty: 5, Active: true},
			"gadget": {ID: "gadget", Name: "Gadget", Price: decimal.RequireFromString("25.00"), StockQty: 2, Active: true},
		},
		bundles: map[string]catalog.Bundle{
			"starter": {ID: "starter", Name: "Starter Kit", Price: decimal.RequireFromString("30.00"), Active: true},
		},
	}
}

func TestNormalizer_Normalize(t *testing.T) {
	n := NewNormalizer(newCatalog())

	lines, err := n.Normalize(context.Background(), []Entry{
		{Kind: KindProduct, RefID: "widget", Quantity: 2},
		{Kind: KindBundle, RefID: "starter", Quantity: 1},
	})
	require.NoError(t, err)
	require.Len(t, lines, 2)

	assert.Equal(t, "Widget", lines[0].Name)
	assert.True(t, decimal.RequireFromString("10.00").Equal(lines[0].UnitPrice))
	assert.Equal(t, 2, lines[0].Quantity)

	assert.Equal(t, "Starter Kit", lines[1].Name)
	assert.True(t, decimal.RequireFromString("30.00").Equal(lines[1].UnitPrice))

	assert.True(t, decimal.RequireFromString("50.00").Equal(Subtotal(lines)))
}

func TestNormalizer_Normalize_EmptyCart(t *testing.T) {
	n := NewNormalizer(newCatalog())

	_, err := n.Normalize(context.Background(), nil)
	require.ErrorIs(t, err, ErrEmptyCart)
}

func TestNormalizer_Normalize_UnknownProduct(t *testing.T) {
	n := NewNormalizer(newCatalog())

	_, err := n.Normalize(context.Background(), []Entry{
		{Kind: KindProduct, RefID: "vanished", Quantity: 1},
	})

	var unknown *UnknownRefError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, KindProduct, unknown.Kind)
	assert.Equal(t, "vanished", unknown.RefID)
}

func TestNormalizer_Normalize_InvalidQuantity(t *testing.T) {
	n := NewNormalizer(newCatalog())

	_, err := n.Normalize(context.Background(), []Entry{
		{Kind: KindProduct, RefID: "widget", Quantity: 0},
	})
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestBuildLines_SnapshotPrices(t *testing.T) {
	// BuildLines prices against the catalog data it is handed, so callers that
	// fetch once and price twice observe a single consistent snapshot.
	products := map[string]catalog.Product{
		"widget": {ID: "widget", Name: "Widget", Price: decimal.RequireFromString("10.00"), StockQty: 5},
	}
	entries := []Entry{{Kind: KindProduct, RefID: "widget", Quantity: 1}}

	before, err := BuildLines(entries, products, nil)
	require.NoError(t, err)

	// A later catalog price change does not leak into lines built from the
	// earlier snapshot.
	products["widget"] = catalog.Product{ID: "widget", Name: "Widget", Price: decimal.RequireFromString("99.00"), StockQty: 5}

	assert.True(t, decimal.RequireFromString("10.00").Equal(before[0].UnitPrice))
}

func TestClampToStock(t *testing.T) {
	products := map[string]catalog.Product{
		"widget": {ID: "widget", Name: "Widget", Price: decimal.NewFromInt(10), StockQty: 3},
	}

	clamped := ClampToStock(Entry{Kind: KindProduct, RefID: "widget", Quantity: 10}, products)
	assert.Equal(t, 3, clamped.Quantity)

	kept := ClampToStock(Entry{Kind: KindProduct, RefID: "widget", Quantity: 2}, products)
	assert.Equal(t, 2, kept.Quantity)

	// Bundles are not stock-bound.
	bundle := ClampToStock(Entry{Kind: KindBundle, RefID: "starter", Quantity: 10}, products)
	assert.Equal(t, 10, bundle.Quantity)
}

func TestManager_Add_ClampsToStock(t *testing.T) {
	src := NewLocalCart()
	m := NewManager(src, newCatalog())

	// Gadget has 2 in stock; adding 5 stores 2.
	err := m.Add(context.Background(), Entry{Kind: KindProduct, RefID: "gadget", Quantity: 5})
	require.NoError(t, err)

	entries, err := src.Entries(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 2, entries[0].Quantity)
}

func TestManager_Add_UnknownProduct(t *testing.T) {
	m := NewManager(NewLocalCart(), newCatalog())

	err := m.Add(context.Background(), Entry{Kind: KindProduct, RefID: "vanished", Quantity: 1})

	var unknown *UnknownRefError
	require.ErrorAs(t, err, &unknown)
}

func TestLocalCart_MergesSameLine(t *testing.T) {
	c := NewLocalCart()
	ctx := context.Background()

	require.NoError(t, c.Add(ctx, Entry{Kind: KindProduct, RefID: "widget", Quantity: 1}))
	require.NoError(t, c.Add(ctx, Entry{Kind: KindProduct, RefID: "widget", Quantity: 2}))

	// Different variant selections are a different line.
	require.NoError(t, c.Add(ctx, Entry{
		Kind: KindProduct, RefID: "widget", Quantity: 1,
		VariantSelections: map[string]string{"color": "red"},
	}))

	entries, err := c.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 3, entries[0].Quantity)
	assert.Equal(t, 1, entries[1].Quantity)
}

func TestLocalCart_Clear(t *testing.T) {
	c := NewLocalCart()
	ctx := context.Background()

	require.NoError(t, c.Add(ctx, Entry{Kind: KindProduct, RefID: "widget", Quantity: 1}))
	require.NoError(t, c.Clear(ctx))

	entries, err := c.Entries(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
