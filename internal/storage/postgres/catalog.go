package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/craftline/shop-api/internal/domain/catalog"
)

const (
	listProductsSQL = `SELECT id, name, price, stock_qty, active
		FROM products WHERE active ORDER BY id`

	productsByIDsSQL = `SELECT id, name, price, stock_qty, active
		FROM products WHERE id = ANY($1)`

	bundlesByIDsSQL = `SELECT id, name, price, active
		FROM bundles WHERE id = ANY($1)`
)

var _ catalog.Repository = (*CatalogRepository)(nil)

// CatalogRepository implements catalog.Repository backed by PostgreSQL.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// ListProducts returns all active products ordered by ID.
func (r *CatalogRepository) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// ProductsByIDs returns the products matching any of ids, keyed by ID.
// Missing IDs are simply absent from the map.
func (r *CatalogRepository) ProductsByIDs(ctx context.Context, ids []string) (map[string]catalog.Product, error) {
	rows, err := r.pool.Query(ctx, productsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}

	out := make(map[string]catalog.Product, len(products))
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

// BundlesByIDs returns the bundles matching any of ids, keyed by ID.
func (r *CatalogRepository) BundlesByIDs(ctx context.Context, ids []string) (map[string]catalog.Bundle, error) {
	rows, err := r.pool.Query(ctx, bundlesByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting bundles by ids: %w", err)
	}
	bundles, err := pgx.CollectRows(rows, scanBundle)
	if err != nil {
		return nil, fmt.Errorf("getting bundles by ids: %w", err)
	}

	out := make(map[string]catalog.Bundle, len(bundles))
	for _, b := range bundles {
		out[b.ID] = b
	}
	return out, nil
}

func scanProduct(row pgx.CollectableRow) (catalog.Product, error) {
	var p catalog.Product
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.StockQty, &p.Active)
	return p, err
}

func scanBundle(row pgx.CollectableRow) (catalog.Bundle, error) {
	var b catalog.Bundle
	err := row.Scan(&b.ID, &b.Name, &b.Price, &b.Active)
	return b, err
}
