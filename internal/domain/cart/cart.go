package cart

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Kind discriminates what a cart entry references.
type Kind string

const (
	// KindProduct references an individual product with tracked stock.
	KindProduct Kind = "product"
	// KindBundle references a bundle priced and sold as one unit.
	KindBundle Kind = "bundle"
)

// Sentinel errors for cart operations.
var (
	ErrEmptyCart       = errors.New("cart is empty")
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
)

// Entry is one raw cart row: a reference plus quantity, before any catalog
// resolution has happened.
type Entry struct {
	Kind              Kind
	RefID             string
	Quantity          int
	VariantSelections map[string]string
}

// LineItem is a normalized, priced cart line. Name and UnitPrice are resolved
// from the catalog at normalization time; this is where price snapshotting
// happens for orders built from this cart.
type LineItem struct {
	Kind              Kind
	RefID             string
	Name              string
	UnitPrice         decimal.Decimal
	Quantity          int
	VariantSelections map[string]string
}

// Subtotal returns the sum of unit price times quantity across lines.
func Subtotal(lines []LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return sum
}

// Source abstracts where a shopper's cart lives. Authenticated shoppers get a
// store-backed cart, guests a local in-memory one; checkout code never
// branches on which it is dealing with.
type Source interface {
	Entries(ctx context.Context) ([]Entry, error)
	// Add appends an entry, merging quantity into an existing entry with the
	// same kind, reference, and variant selections.
	Add(ctx context.Context, e Entry) error
	Clear(ctx context.Context) error
}

// LocalCart is an in-memory Source for guest and "buy now" flows.
type LocalCart struct {
	mu      sync.Mutex
	entries []Entry
}

// NewLocalCart returns an empty in-memory cart.
func NewLocalCart() *LocalCart {
	return &LocalCart{}
}

// Entries returns a copy of the current entries.
func (c *LocalCart) Entries(_ context.Context) ([]Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out, nil
}

// Add merges e into the cart.
func (c *LocalCart) Add(_ context.Context, e Entry) error {
	if e.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.entries {
		if sameLine(c.entries[i], e) {
			c.entries[i].Quantity += e.Quantity
			return nil
		}
	}
	c.entries = append(c.entries, e)
	return nil
}

// Clear empties the cart.
func (c *LocalCart) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = nil
	return nil
}

func sameLine(a, b Entry) bool {
	if a.Kind != b.Kind || a.RefID != b.RefID {
		return false
	}
	if len(a.VariantSelections) != len(b.VariantSelections) {
		return false
	}
	for k, v := range a.VariantSelections {
		if b.VariantSelections[k] != v {
			return false
		}
	}
	return true
}
