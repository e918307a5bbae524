package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Validator performs the check-only coupon validation used both by the
// validation RPC and by order submission. It never mutates UsedCount;
// redemption is a separate, transactional concern (see Redeemer).
type Validator struct {
	repo      Repository
	prefilter *Prefilter
	now       func() time.Time
}

// NewValidator creates a Validator. prefilter may be nil to disable the
// bloom-filter fast path.
func NewValidator(repo Repository, prefilter *Prefilter) *Validator {
	return &Validator{repo: repo, prefilter: prefilter, now: time.Now}
}

// Validate checks code against the cart subtotal and returns the discount
// descriptor, or a *RejectedError whose Reason is one of the closed set.
// Checks run in a fixed order and the first failure wins:
// existence, activity, expiry, usage limit, minimum spend.
func (v *Validator) Validate(ctx context.Context, code string, cartSubtotal decimal.Decimal) (*Discount, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, Rejected(code, ReasonNotFound)
	}

	// Bloom fast path: a definite miss cannot be a known code. False
	// positives fall through to the authoritative lookup.
	if v.prefilter != nil && !v.prefilter.MayContain(code) {
		return nil, Rejected(code, ReasonNotFound)
	}

	c, err := v.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, Rejected(code, ReasonNotFound)
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	if !c.Active {
		return nil, Rejected(code, ReasonInactive)
	}
	if c.ExpiresAt != nil && c.ExpiresAt.Before(v.now()) {
		return nil, Rejected(code, ReasonExpired)
	}
	if c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit {
		return nil, Rejected(code, ReasonUsageLimit)
	}
	if cartSubtotal.LessThan(c.MinSpend) {
		return nil, Rejected(code, ReasonMinSpendNotMet)
	}

	return &Discount{Type: c.DiscountType, Value: c.DiscountValue}, nil
}
