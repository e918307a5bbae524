package coupon

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountFixed subtracts a fixed amount, capped at the cart subtotal.
	DiscountFixed DiscountType = "fixed"
	// DiscountPercentage subtracts a percentage of the cart subtotal.
	DiscountPercentage DiscountType = "percentage"
)

// Rejection reasons form a closed, user-facing set. They are surfaced to the
// shopper verbatim and must not be collapsed into a generic failure.
const (
	ReasonNotFound       = "not found"
	ReasonInactive       = "inactive"
	ReasonExpired        = "expired"
	ReasonUsageLimit     = "usage limit reached"
	ReasonMinSpendNotMet = "minimum spend not met"
)

// ErrNotFound is the repository-level miss for an unknown code.
var ErrNotFound = errors.New("coupon not found")

// RejectedError carries the user-facing reason a coupon was refused.
type RejectedError struct {
	Code   string
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("coupon %s rejected: %s", e.Code, e.Reason)
}

// Rejected builds a RejectedError for the given code and reason.
func Rejected(code, reason string) *RejectedError {
	return &RejectedError{Code: code, Reason: reason}
}

// Coupon is a promotional code created and edited by administrators.
// UsedCount never exceeds UsageLimit when a limit is set; the increment is a
// conditional store-side mutation, never a client-side read-then-write.
type Coupon struct {
	Code          string
	DiscountType  DiscountType
	DiscountValue decimal.Decimal
	MinSpend      decimal.Decimal
	UsageLimit    *int
	UsedCount     int
	ExpiresAt     *time.Time
	Active        bool
	CreatedAt     time.Time
}

// Discount describes a successfully validated coupon's effect. The amount is
// computed later by the pricing engine against the authoritative subtotal.
type Discount struct {
	Type  DiscountType
	Value decimal.Decimal
}

// NormalizeCode upper-cases and trims a coupon code. Codes are
// case-insensitive everywhere.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Repository provides lookup and administrative mutation of coupons.
// FindByCode must match case-insensitively and return ErrNotFound on a miss.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	List(ctx context.Context) ([]Coupon, error)
	Create(ctx context.Context, c *Coupon) error
	Update(ctx context.Context, c *Coupon) error
	// Codes returns every known code, used to seed the prefilter.
	Codes(ctx context.Context) ([]string, error)
}
