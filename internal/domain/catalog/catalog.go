package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a referenced catalog entity does not exist.
var ErrNotFound = errors.New("catalog entity not found")

// Product is an individually purchasable item with tracked inventory.
type Product struct {
	ID       string
	Name     string
	Price    decimal.Decimal
	StockQty int
	Active   bool
}

// Bundle is a fixed composition of products sold as a single unit.
// Bundles are priced as a whole and carry no per-unit inventory.
type Bundle struct {
	ID     string
	Name   string
	Price  decimal.Decimal
	Active bool
}

// Repository defines read operations over the catalog. All checkout reads go
// through the batch methods so one submission observes a single snapshot.
type Repository interface {
	ListProducts(ctx context.Context) ([]Product, error)
	ProductsByIDs(ctx context.Context, ids []string) (map[string]Product, error)
	BundlesByIDs(ctx context.Context, ids []string) (map[string]Bundle, error)
}
