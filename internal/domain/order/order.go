package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/craftline/shop-api/internal/domain/cart"
)

// Status is an order's position in the fulfillment lifecycle.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// ErrUnknownStatus is returned for a status string outside the known set.
var ErrUnknownStatus = errors.New("unknown order status")

// ErrNotFound is returned when an order does not exist.
var ErrNotFound = errors.New("order not found")

// ParseStatus validates a wire-level status string.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusConfirmed, StatusProcessing,
		StatusShipped, StatusDelivered, StatusCancelled:
		return Status(s), nil
	default:
		return "", ErrUnknownStatus
	}
}

// Terminal reports whether no further transitions leave this status.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Item is an order line snapshot. Name and UnitPrice are captured at purchase
// time and never re-derived from the catalog.
type Item struct {
	Kind              cart.Kind
	RefID             string
	Name              string
	UnitPrice         decimal.Decimal
	Quantity          int
	VariantSelections map[string]string
}

// Order is a persisted checkout. TotalAmount is a fact recorded at creation;
// it is never recalculated afterwards.
type Order struct {
	ID              string
	UserID          *string
	Status          Status
	TotalAmount     decimal.Decimal
	ShippingAddress string
	ShippingCity    string
	ShippingCountry string
	RegionCode      string
	Delivery        DeliveryDetails
	Items           []Item
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CreateOptions carries the side effects that must commit atomically with the
// order row and its item snapshots.
type CreateOptions struct {
	// RedeemCoupon, when non-empty, consumes one use of the code inside the
	// same transaction. The increment is conditional on the usage limit; when
	// the limit is already exhausted the whole creation fails with a
	// *coupon.RejectedError carrying ReasonUsageLimit.
	RedeemCoupon string
	// ClearCartUserID, when set, empties that user's stored cart in the same
	// transaction.
	ClearCartUserID *string
}

// Store is the transactional persistence boundary for orders. Create is
// all-or-nothing: order, items, coupon increment, and cart clearing are one
// transaction; a partial order is never observable.
type Store interface {
	Create(ctx context.Context, o *Order, opts CreateOptions) error
	Get(ctx context.Context, id string) (*Order, error)
	List(ctx context.Context) ([]Order, error)
	// UpdateStatus sets the new status and returns the previous one.
	// Returns ErrNotFound when the order does not exist.
	UpdateStatus(ctx context.Context, id string, next Status) (Status, error)
	Delete(ctx context.Context, id string) error
}
