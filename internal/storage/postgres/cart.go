package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/craftline/shop-api/internal/domain/cart"
)

const (
	cartEntriesSQL = `SELECT kind, ref_id, quantity, variants
		FROM cart_items WHERE user_id = $1 ORDER BY position`

	// Merges into an existing line with the same reference and variants;
	// inserts a new row otherwise.
	mergeCartEntrySQL = `UPDATE cart_items SET quantity = quantity + $4
		WHERE user_id = $1 AND kind = $2 AND ref_id = $3 AND variants = $5`

	insertCartEntrySQL = `INSERT INTO cart_items (user_id, kind, ref_id, quantity, variants)
		VALUES ($1, $2, $3, $4, $5)`
)

// RemoteCart is a store-backed cart.Source for one authenticated shopper.
type RemoteCart struct {
	pool   *pgxpool.Pool
	userID string
}

var _ cart.Source = (*RemoteCart)(nil)

// NewRemoteCart returns the persistent cart of the given user.
func NewRemoteCart(pool *pgxpool.Pool, userID string) *RemoteCart {
	return &RemoteCart{pool: pool, userID: userID}
}

// Entries returns the user's cart rows in insertion order.
func (c *RemoteCart) Entries(ctx context.Context) ([]cart.Entry, error) {
	rows, err := c.pool.Query(ctx, cartEntriesSQL, c.userID)
	if err != nil {
		return nil, fmt.Errorf("loading cart: %w", err)
	}
	defer rows.Close()

	var entries []cart.Entry
	for rows.Next() {
		var (
			kind     string
			e        cart.Entry
			variants []byte
		)
		if err := rows.Scan(&kind, &e.RefID, &e.Quantity, &variants); err != nil {
			return nil, fmt.Errorf("scanning cart entry: %w", err)
		}
		e.Kind = cart.Kind(kind)
		if len(variants) > 0 {
			if err := json.Unmarshal(variants, &e.VariantSelections); err != nil {
				return nil, fmt.Errorf("unmarshaling cart variants: %w", err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Add merges e into an existing matching line or appends a new one.
func (c *RemoteCart) Add(ctx context.Context, e cart.Entry) error {
	if e.Quantity <= 0 {
		return cart.ErrInvalidQuantity
	}
	variants, err := json.Marshal(orEmpty(e.VariantSelections))
	if err != nil {
		return fmt.Errorf("marshaling cart variants: %w", err)
	}

	tag, err := c.pool.Exec(ctx, mergeCartEntrySQL,
		c.userID, string(e.Kind), e.RefID, e.Quantity, variants)
	if err != nil {
		return fmt.Errorf("merging cart entry: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	_, err = c.pool.Exec(ctx, insertCartEntrySQL,
		c.userID, string(e.Kind), e.RefID, e.Quantity, variants)
	if err != nil {
		return fmt.Errorf("inserting cart entry: %w", err)
	}
	return nil
}

// Clear removes every row of the user's cart.
func (c *RemoteCart) Clear(ctx context.Context) error {
	if _, err := c.pool.Exec(ctx, clearCartSQL, c.userID); err != nil {
		return fmt.Errorf("clearing cart: %w", err)
	}
	return nil
}

func orEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
