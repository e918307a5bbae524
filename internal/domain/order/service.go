package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/craftline/shop-api/internal/domain/cart"
	"github.com/craftline/shop-api/internal/domain/catalog"
	"github.com/craftline/shop-api/internal/domain/coupon"
	"github.com/craftline/shop-api/internal/domain/pricing"
	"github.com/craftline/shop-api/internal/domain/shipping"
)

// Field-level validation errors. These block submission before any remote
// state is consulted.
var (
	ErrNoItems       = errors.New("no items to order")
	ErrNoDestination = errors.New("destination region is required")
	ErrNoCarrier     = errors.New("carrier is required")
	ErrNoAddress     = errors.New("shipping address is required")
)

// StockConflictError indicates an item's quantity exceeds available stock at
// submission time. The shopper must adjust the cart and retry.
type StockConflictError struct {
	RefID     string
	Name      string
	Requested int
	Available int
}

func (e *StockConflictError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", e.Name, e.Requested, e.Available)
}

// Destination is where and to whom an order ships.
type Destination struct {
	Address     string
	City        string
	Country     string
	RegionCode  string
	ContactName string
	Phone       string
	Company     string
}

// SubmitRequest is one checkout submission. Entries are the raw cart rows;
// all pricing is re-resolved from current catalog state inside Submit.
type SubmitRequest struct {
	UserID      *string
	Entries     []cart.Entry
	Destination Destination
	CarrierID   string
	Method      shipping.Method
	CouponCode  string
	// Cart, when set, is cleared after the order commits. Store-backed carts
	// for authenticated users are instead cleared inside the transaction via
	// CreateOptions.ClearCartUserID.
	Cart cart.Source
}

// Service orchestrates order submission: it re-validates stock, re-resolves
// the shipping rate, re-validates the coupon against current data, computes
// the total, and persists everything in one transaction.
type Service struct {
	normalizer *cart.Normalizer
	resolver   *shipping.Resolver
	coupons    *coupon.Validator
	carriers   shipping.Repository
	store      Store
	now        func() time.Time
	newID      func() string
}

// NewService creates a Service with the required collaborators.
func NewService(
	cat catalog.Repository,
	rates shipping.Repository,
	coupons *coupon.Validator,
	store Store,
) *Service {
	return &Service{
		normalizer: cart.NewNormalizer(cat),
		resolver:   shipping.NewResolver(rates),
		coupons:    coupons,
		carriers:   rates,
		store:      store,
		now:        time.Now,
		newID:      func() string { return uuid.New().String() },
	}
}

// Submit runs one checkout submission end to end. Every decision is made
// against catalog, rate, and coupon state fetched within this call, never
// against data the client computed earlier in the session. On any failure
// nothing is persisted: no order row, no item snapshots, no coupon increment.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*Order, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	// Fresh catalog snapshot: prices, names, and stock all come from the
	// same two batch reads.
	products, bundles, err := s.normalizer.Fetch(ctx, req.Entries)
	if err != nil {
		return nil, err
	}
	lines, err := cart.BuildLines(req.Entries, products, bundles)
	if err != nil {
		return nil, err
	}

	// Stock re-validation, products only. Bundles are not stock-bound.
	for _, e := range req.Entries {
		if e.Kind != cart.KindProduct {
			continue
		}
		p := products[e.RefID]
		if e.Quantity > p.StockQty {
			return nil, &StockConflictError{
				RefID:     e.RefID,
				Name:      p.Name,
				Requested: e.Quantity,
				Available: p.StockQty,
			}
		}
	}

	// Shipping cost from the current rate table. A missing row rejects the
	// submission; it is never defaulted to zero.
	shippingCost, err := s.resolver.CostFor(ctx, req.CarrierID, req.Destination.RegionCode, req.Method)
	if err != nil {
		return nil, err
	}
	carrierName, err := s.carrierName(ctx, req.CarrierID)
	if err != nil {
		return nil, err
	}

	// Coupon re-validation against the current subtotal. Read-only here; the
	// usage increment happens inside the creation transaction below.
	subtotal := cart.Subtotal(lines)
	var discount *coupon.Discount
	if req.CouponCode != "" {
		discount, err = s.coupons.Validate(ctx, req.CouponCode, subtotal)
		if err != nil {
			return nil, err
		}
	}

	quote := pricing.ComputeTotal(lines, discount, shippingCost)

	items := make([]Item, len(lines))
	for i, l := range lines {
		items[i] = Item{
			Kind:              l.Kind,
			RefID:             l.RefID,
			Name:              l.Name,
			UnitPrice:         l.UnitPrice,
			Quantity:          l.Quantity,
			VariantSelections: l.VariantSelections,
		}
	}

	now := s.now()
	o := &Order{
		ID:              s.newID(),
		UserID:          req.UserID,
		Status:          StatusPending,
		TotalAmount:     quote.Total,
		ShippingAddress: req.Destination.Address,
		ShippingCity:    req.Destination.City,
		ShippingCountry: req.Destination.Country,
		RegionCode:      req.Destination.RegionCode,
		Delivery: DeliveryDetails{
			CarrierID:    req.CarrierID,
			CarrierName:  carrierName,
			Method:       req.Method,
			ContactName:  req.Destination.ContactName,
			Phone:        req.Destination.Phone,
			Company:      req.Destination.Company,
			ShippingCost: quote.ShippingCost,
		},
		Items:     items,
		CreatedAt: now,
		UpdatedAt: now,
	}

	opts := CreateOptions{}
	if discount != nil {
		opts.RedeemCoupon = coupon.NormalizeCode(req.CouponCode)
	}
	if req.UserID != nil {
		opts.ClearCartUserID = req.UserID
	}

	// One transaction: order + items + conditional coupon redeem + stored
	// cart clearing. Two concurrent submissions racing a nearly exhausted
	// coupon are settled here; the loser gets ReasonUsageLimit.
	if err := s.store.Create(ctx, o, opts); err != nil {
		return nil, err
	}

	// Guest carts live client-side; clearing after commit is best effort.
	if req.Cart != nil && req.UserID == nil {
		if err := req.Cart.Clear(ctx); err != nil {
			return o, errors.Wrap(err, "clear cart")
		}
	}

	return o, nil
}

func validateRequest(req SubmitRequest) error {
	switch {
	case len(req.Entries) == 0:
		return ErrNoItems
	case req.Destination.RegionCode == "":
		return ErrNoDestination
	case req.CarrierID == "":
		return ErrNoCarrier
	case req.Destination.Address == "":
		return ErrNoAddress
	}
	_, err := shipping.ParseMethod(string(req.Method))
	return err
}

func (s *Service) carrierName(ctx context.Context, carrierID string) (string, error) {
	carriers, err := s.carriers.Carriers(ctx)
	if err != nil {
		return "", errors.Wrap(err, "list carriers")
	}
	for _, c := range carriers {
		if c.ID == carrierID {
			return c.Name, nil
		}
	}
	return carrierID, nil
}
