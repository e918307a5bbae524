package cart

import (
	"context"
	"fmt"

	"github.com/craftline/shop-api/internal/domain/catalog"
)

// UnknownRefError indicates a cart entry references a catalog entity that no
// longer exists (or was never valid).
type UnknownRefError struct {
	Kind  Kind
	RefID string
}

func (e *UnknownRefError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.RefID)
}

// BuildLines converts raw entries into priced line items using already-fetched
// catalog data. It is pure: callers control when the catalog snapshot is taken,
// so a checkout submission can reuse one fetch for both pricing and stock
// checks. Stored quantities are not re-clamped here; stock re-validation is
// the submitter's job.
func BuildLines(entries []Entry, products map[string]catalog.Product, bundles map[string]catalog.Bundle) ([]LineItem, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyCart
	}

	lines := make([]LineItem, 0, len(entries))
	for _, e := range entries {
		if e.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		line := LineItem{
			Kind:              e.Kind,
			RefID:             e.RefID,
			Quantity:          e.Quantity,
			VariantSelections: e.VariantSelections,
		}
		switch e.Kind {
		case KindProduct:
			p, ok := products[e.RefID]
			if !ok {
				return nil, &UnknownRefError{Kind: e.Kind, RefID: e.RefID}
			}
			line.Name = p.Name
			line.UnitPrice = p.Price
		case KindBundle:
			b, ok := bundles[e.RefID]
			if !ok {
				return nil, &UnknownRefError{Kind: e.Kind, RefID: e.RefID}
			}
			line.Name = b.Name
			line.UnitPrice = b.Price
		default:
			return nil, fmt.Errorf("unknown entry kind %q", e.Kind)
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// Normalizer resolves cart entries against the catalog.
type Normalizer struct {
	catalog catalog.Repository
}

// NewNormalizer creates a Normalizer over the given catalog.
func NewNormalizer(cat catalog.Repository) *Normalizer {
	return &Normalizer{catalog: cat}
}

// Normalize fetches the referenced products and bundles in two batch reads and
// builds priced line items from them.
func (n *Normalizer) Normalize(ctx context.Context, entries []Entry) ([]LineItem, error) {
	products, bundles, err := n.Fetch(ctx, entries)
	if err != nil {
		return nil, err
	}
	return BuildLines(entries, products, bundles)
}

// Fetch loads the catalog entities referenced by entries. Exposed separately
// so the order submitter can hold the same snapshot for stock validation.
func (n *Normalizer) Fetch(ctx context.Context, entries []Entry) (map[string]catalog.Product, map[string]catalog.Bundle, error) {
	var productIDs, bundleIDs []string
	for _, e := range entries {
		switch e.Kind {
		case KindProduct:
			productIDs = append(productIDs, e.RefID)
		case KindBundle:
			bundleIDs = append(bundleIDs, e.RefID)
		}
	}

	products := map[string]catalog.Product{}
	if len(productIDs) > 0 {
		var err error
		products, err = n.catalog.ProductsByIDs(ctx, productIDs)
		if err != nil {
			return nil, nil, fmt.Errorf("fetch products: %w", err)
		}
	}

	bundles := map[string]catalog.Bundle{}
	if len(bundleIDs) > 0 {
		var err error
		bundles, err = n.catalog.BundlesByIDs(ctx, bundleIDs)
		if err != nil {
			return nil, nil, fmt.Errorf("fetch bundles: %w", err)
		}
	}

	return products, bundles, nil
}

// ClampToStock caps the quantity of a product entry at the product's current
// stock. Used when adding to or increasing a cart line; bundles pass through
// unchanged since they are not stock-bound.
func ClampToStock(e Entry, products map[string]catalog.Product) Entry {
	if e.Kind != KindProduct {
		return e
	}
	if p, ok := products[e.RefID]; ok && e.Quantity > p.StockQty {
		e.Quantity = p.StockQty
	}
	return e
}

// Manager couples a cart source with the catalog for add-time stock clamping.
type Manager struct {
	src Source
	n   *Normalizer
}

// NewManager creates a Manager for the given source.
func NewManager(src Source, cat catalog.Repository) *Manager {
	return &Manager{src: src, n: NewNormalizer(cat)}
}

// Add clamps product quantities to current stock, then stores the entry.
func (m *Manager) Add(ctx context.Context, e Entry) error {
	if e.Kind == KindProduct {
		products, err := m.n.catalog.ProductsByIDs(ctx, []string{e.RefID})
		if err != nil {
			return fmt.Errorf("fetch product: %w", err)
		}
		if _, ok := products[e.RefID]; !ok {
			return &UnknownRefError{Kind: e.Kind, RefID: e.RefID}
		}
		e = ClampToStock(e, products)
		if e.Quantity <= 0 {
			return ErrInvalidQuantity
		}
	}
	return m.src.Add(ctx, e)
}

// Lines returns the normalized, priced view of the cart.
func (m *Manager) Lines(ctx context.Context) ([]LineItem, error) {
	entries, err := m.src.Entries(ctx)
	if err != nil {
		return nil, err
	}
	return m.n.Normalize(ctx, entries)
}

// Clear empties the underlying source.
func (m *Manager) Clear(ctx context.Context) error {
	return m.src.Clear(ctx)
}
