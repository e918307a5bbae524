// Package pricing computes order totals. It is the single source of truth:
// the quote shown to the shopper and the total persisted on the order come
// from the same computation.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/craftline/shop-api/internal/domain/cart"
	"github.com/craftline/shop-api/internal/domain/coupon"
)

var hundred = decimal.NewFromInt(100)

// Quote is the full price breakdown for a cart.
type Quote struct {
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	ShippingCost   decimal.Decimal
	Total          decimal.Decimal
}

// ComputeTotal prices the cart. The discount may be nil.
//
//	subtotal       = Σ unitPrice × quantity
//	discountAmount = percentage ? subtotal × value / 100 : value, capped at subtotal
//	total          = max(0, subtotal − discountAmount) + shippingCost
//
// Shipping cost is never discounted.
func ComputeTotal(items []cart.LineItem, d *coupon.Discount, shippingCost decimal.Decimal) Quote {
	subtotal := cart.Subtotal(items)
	discount := DiscountAmount(d, subtotal)

	merchandise := subtotal.Sub(discount)
	if merchandise.IsNegative() {
		merchandise = decimal.Zero
	}

	return Quote{
		Subtotal:       subtotal.Round(2),
		DiscountAmount: discount.Round(2),
		ShippingCost:   shippingCost.Round(2),
		Total:          merchandise.Add(shippingCost).Round(2),
	}
}

// DiscountAmount resolves a discount descriptor against a subtotal. The
// result is clamped to [0, subtotal]: a coupon cannot make the merchandise
// total negative.
func DiscountAmount(d *coupon.Discount, subtotal decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}

	var amount decimal.Decimal
	switch d.Type {
	case coupon.DiscountPercentage:
		amount = subtotal.Mul(d.Value).Div(hundred)
	case coupon.DiscountFixed:
		amount = d.Value
	default:
		return decimal.Zero
	}

	if amount.IsNegative() {
		return decimal.Zero
	}
	return decimal.Min(amount, subtotal)
}
