package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/craftline/shop-api/internal/domain/cart"
	"github.com/craftline/shop-api/internal/domain/coupon"
	"github.com/craftline/shop-api/internal/domain/order"
	"github.com/craftline/shop-api/internal/domain/shipping"
)

const (
	insertOrderSQL = `INSERT INTO orders
		(id, user_id, status, total_amount, shipping_address, shipping_city,
		 shipping_country, region_code, delivery, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)`

	insertOrderItemSQL = `INSERT INTO order_items
		(order_id, position, kind, ref_id, name, unit_price, quantity, variants)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	clearCartSQL = `DELETE FROM cart_items WHERE user_id = $1`

	getOrderSQL = `SELECT id, user_id, status, total_amount, shipping_address,
		shipping_city, shipping_country, region_code, delivery, created_at, updated_at
		FROM orders WHERE id = $1`

	listOrdersSQL = `SELECT id, user_id, status, total_amount, shipping_address,
		shipping_city, shipping_country, region_code, delivery, created_at, updated_at
		FROM orders ORDER BY created_at DESC`

	orderItemsSQL = `SELECT order_id, kind, ref_id, name, unit_price, quantity, variants
		FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, position`

	lockStatusSQL = `SELECT status FROM orders WHERE id = $1 FOR UPDATE`

	setStatusSQL = `UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`

	deleteOrderSQL = `DELETE FROM orders WHERE id = $1`
)

var _ order.Store = (*OrderStore)(nil)

// OrderStore implements order.Store backed by PostgreSQL.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore returns an OrderStore that uses the given pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// deliveryJSON is the persisted shape of order.DeliveryDetails.
type deliveryJSON struct {
	CarrierID    string          `json:"carrier_id"`
	CarrierName  string          `json:"carrier_name"`
	Method       string          `json:"method"`
	ContactName  string          `json:"contact_name"`
	Phone        string          `json:"phone"`
	Company      string          `json:"company,omitempty"`
	ShippingCost decimal.Decimal `json:"shipping_cost"`
}

// Create persists the order, its item snapshots, the conditional coupon
// redemption, and the stored-cart clearing in a single transaction. If the
// coupon's usage limit is exhausted by the time the guarded increment runs,
// the whole transaction rolls back and a *coupon.RejectedError with
// ReasonUsageLimit is returned.
func (s *OrderStore) Create(ctx context.Context, o *order.Order, opts order.CreateOptions) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if opts.RedeemCoupon != "" {
		var usedCount int
		err := tx.QueryRow(ctx, redeemCouponSQL, opts.RedeemCoupon).Scan(&usedCount)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				// The guarded UPDATE matched no row: the limit was consumed
				// by a concurrent checkout between validation and here.
				return coupon.Rejected(opts.RedeemCoupon, coupon.ReasonUsageLimit)
			}
			return fmt.Errorf("redeeming coupon %q: %w", opts.RedeemCoupon, err)
		}
	}

	deliveryBytes, err := json.Marshal(deliveryJSON{
		CarrierID:    o.Delivery.CarrierID,
		CarrierName:  o.Delivery.CarrierName,
		Method:       string(o.Delivery.Method),
		ContactName:  o.Delivery.ContactName,
		Phone:        o.Delivery.Phone,
		Company:      o.Delivery.Company,
		ShippingCost: o.Delivery.ShippingCost,
	})
	if err != nil {
		return fmt.Errorf("marshaling delivery details: %w", err)
	}

	_, err = tx.Exec(ctx, insertOrderSQL,
		o.ID, o.UserID, string(o.Status), o.TotalAmount,
		o.ShippingAddress, o.ShippingCity, o.ShippingCountry, o.RegionCode,
		deliveryBytes, o.Delivery.LegacyNotes(), o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}

	for i, item := range o.Items {
		variants, err := json.Marshal(item.VariantSelections)
		if err != nil {
			return fmt.Errorf("marshaling variants: %w", err)
		}
		_, err = tx.Exec(ctx, insertOrderItemSQL,
			o.ID, i, string(item.Kind), item.RefID, item.Name,
			item.UnitPrice, item.Quantity, variants,
		)
		if err != nil {
			return fmt.Errorf("creating order item %d of %q: %w", i, o.ID, err)
		}
	}

	if opts.ClearCartUserID != nil {
		if _, err := tx.Exec(ctx, clearCartSQL, *opts.ClearCartUserID); err != nil {
			return fmt.Errorf("clearing cart: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing order %q: %w", o.ID, err)
	}
	return nil
}

// Get returns one order with its item snapshots.
// Returns order.ErrNotFound when the order does not exist.
func (s *OrderStore) Get(ctx context.Context, id string) (*order.Order, error) {
	rows, err := s.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	if err := s.attachItems(ctx, []*order.Order{&o}); err != nil {
		return nil, err
	}
	return &o, nil
}

// List returns all orders with their item snapshots, newest first.
func (s *OrderStore) List(ctx context.Context) ([]order.Order, error) {
	rows, err := s.pool.Query(ctx, listOrdersSQL)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}

	refs := make([]*order.Order, len(orders))
	for i := range orders {
		refs[i] = &orders[i]
	}
	if err := s.attachItems(ctx, refs); err != nil {
		return nil, err
	}
	return orders, nil
}

// UpdateStatus sets the order's status and returns the previous one. The row
// is locked first so the old status read and the write are one atomic step.
// Transitions out of terminal statuses are rejected.
func (s *OrderStore) UpdateStatus(ctx context.Context, id string, next order.Status) (order.Status, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var prev string
	if err := tx.QueryRow(ctx, lockStatusSQL, id).Scan(&prev); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", order.ErrNotFound
		}
		return "", fmt.Errorf("locking order %q: %w", id, err)
	}
	if order.Status(prev).Terminal() {
		return "", order.ErrTerminalStatus
	}

	if _, err := tx.Exec(ctx, setStatusSQL, id, string(next)); err != nil {
		return "", fmt.Errorf("updating status of %q: %w", id, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("committing status of %q: %w", id, err)
	}
	return order.Status(prev), nil
}

// Delete removes an order row; item snapshots cascade.
// Returns order.ErrNotFound when the order does not exist.
func (s *OrderStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, deleteOrderSQL, id)
	if err != nil {
		return fmt.Errorf("deleting order %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func (s *OrderStore) attachItems(ctx context.Context, orders []*order.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, len(orders))
	byID := make(map[string]*order.Order, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		byID[o.ID] = o
	}

	rows, err := s.pool.Query(ctx, orderItemsSQL, ids)
	if err != nil {
		return fmt.Errorf("loading order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID  string
			kind     string
			item     order.Item
			variants []byte
		)
		if err := rows.Scan(&orderID, &kind, &item.RefID, &item.Name,
			&item.UnitPrice, &item.Quantity, &variants); err != nil {
			return fmt.Errorf("scanning order item: %w", err)
		}
		item.Kind = cart.Kind(kind)
		if len(variants) > 0 {
			if err := json.Unmarshal(variants, &item.VariantSelections); err != nil {
				return fmt.Errorf("unmarshaling variants: %w", err)
			}
		}
		if o, ok := byID[orderID]; ok {
			o.Items = append(o.Items, item)
		}
	}
	return rows.Err()
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o        order.Order
		status   string
		delivery []byte
	)
	err := row.Scan(
		&o.ID, &o.UserID, &status, &o.TotalAmount, &o.ShippingAddress,
		&o.ShippingCity, &o.ShippingCountry, &o.RegionCode, &delivery,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return o, err
	}
	o.Status = order.Status(status)

	var d deliveryJSON
	if len(delivery) > 0 {
		if err := json.Unmarshal(delivery, &d); err != nil {
			return o, fmt.Errorf("unmarshaling delivery details: %w", err)
		}
	}
	o.Delivery = order.DeliveryDetails{
		CarrierID:    d.CarrierID,
		CarrierName:  d.CarrierName,
		Method:       shipping.Method(d.Method),
		ContactName:  d.ContactName,
		Phone:        d.Phone,
		Company:      d.Company,
		ShippingCost: d.ShippingCost,
	}
	return o, nil
}
