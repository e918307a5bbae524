package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/craftline/shop-api/internal/domain/audit"
	"github.com/craftline/shop-api/internal/domain/cart"
	"github.com/craftline/shop-api/internal/domain/coupon"
	"github.com/craftline/shop-api/internal/domain/order"
	"github.com/craftline/shop-api/internal/domain/shipping"
)

// ListProducts returns the active catalog.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ListProducts(r.Context())
	if err != nil {
		writeInternal(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, p := range products {
				e.Obj(func(e *jx.Encoder) {
					e.Field("id", func(e *jx.Encoder) { e.Str(p.ID) })
					e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
					e.Field("price", func(e *jx.Encoder) { e.Num(jx.Num(p.Price.String())) })
					e.Field("stockQty", func(e *jx.Encoder) { e.Int(p.StockQty) })
				})
			}
		})
	})
}

// CarriersForRegion returns the carriers servicing the destination region.
// Clients must reset any previously selected carrier that is absent from this
// list when the region changes.
func (h *Handler) CarriersForRegion(w http.ResponseWriter, r *http.Request) {
	region := r.PathValue("region")
	carriers, err := h.resolver.CarriersFor(r.Context(), region)
	if err != nil {
		writeInternal(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, c := range carriers {
				e.Obj(func(e *jx.Encoder) {
					e.Field("id", func(e *jx.Encoder) { e.Str(c.ID) })
					e.Field("name", func(e *jx.Encoder) { e.Str(c.Name) })
				})
			}
		})
	})
}

// RateForCarrier returns the desk and home prices a carrier quotes for a
// region, or 404 when the carrier does not service it.
func (h *Handler) RateForCarrier(w http.ResponseWriter, r *http.Request) {
	region := r.PathValue("region")
	carrier := r.PathValue("carrier")

	rate, err := h.resolver.RateFor(r.Context(), carrier, region)
	if err != nil {
		if errors.Is(err, shipping.ErrNoRate) {
			writeErr(w, r, http.StatusNotFound, "carrier does not service this region")
			return
		}
		writeInternal(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("carrierId", func(e *jx.Encoder) { e.Str(rate.CarrierID) })
			e.Field("regionCode", func(e *jx.Encoder) { e.Str(rate.RegionCode) })
			e.Field("deskPrice", func(e *jx.Encoder) { e.Num(jx.Num(rate.DeskPrice.String())) })
			e.Field("homePrice", func(e *jx.Encoder) { e.Num(jx.Num(rate.HomePrice.String())) })
		})
	})
}

type validateCouponRequest struct {
	Code      string          `json:"code"`
	CartTotal decimal.Decimal `json:"cartTotal"`
}

// ValidateCoupon is the check-only coupon RPC. It never consumes a use;
// redemption happens only inside checkout submission.
func (h *Handler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	var req validateCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, r, http.StatusBadRequest, "malformed request body")
		return
	}

	d, err := h.coupons.Validate(r.Context(), req.Code, req.CartTotal)
	if err != nil {
		var rej *coupon.RejectedError
		if errors.As(err, &rej) {
			writeJSON(w, r, http.StatusOK, func(e *jx.Encoder) {
				e.Obj(func(e *jx.Encoder) {
					e.Field("valid", func(e *jx.Encoder) { e.Bool(false) })
					e.Field("reason", func(e *jx.Encoder) { e.Str(rej.Reason) })
				})
			})
			return
		}
		writeInternal(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("valid", func(e *jx.Encoder) { e.Bool(true) })
			e.Field("discount_type", func(e *jx.Encoder) { e.Str(string(d.Type)) })
			e.Field("discount_value", func(e *jx.Encoder) { e.Num(jx.Num(d.Value.String())) })
		})
	})
}

type checkoutItem struct {
	Kind              string            `json:"kind"`
	RefID             string            `json:"refId"`
	Quantity          int               `json:"quantity"`
	VariantSelections map[string]string `json:"variantSelections,omitempty"`
}

type checkoutDestination struct {
	Address     string `json:"address"`
	City        string `json:"city"`
	Country     string `json:"country"`
	RegionCode  string `json:"regionCode"`
	ContactName string `json:"contactName"`
	Phone       string `json:"phone"`
	Company     string `json:"company,omitempty"`
}

type checkoutRequest struct {
	UserID         *string             `json:"userId,omitempty"`
	Items          []checkoutItem      `json:"items"`
	Destination    checkoutDestination `json:"destination"`
	CarrierID      string              `json:"carrierId"`
	DeliveryMethod string              `json:"deliveryMethod"`
	CouponCode     string              `json:"couponCode,omitempty"`
}

// Checkout submits an order. Stock, shipping rate, and coupon are all
// re-validated against current data inside the submission; stale-state
// conflicts come back as 409 with a human-readable reason.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, r, http.StatusBadRequest, "malformed request body")
		return
	}

	entries := make([]cart.Entry, len(req.Items))
	for i, it := range req.Items {
		entries[i] = cart.Entry{
			Kind:              cart.Kind(it.Kind),
			RefID:             it.RefID,
			Quantity:          it.Quantity,
			VariantSelections: it.VariantSelections,
		}
	}

	// A submission without inline items falls back to the user's stored cart.
	if len(entries) == 0 && req.UserID != nil && h.carts != nil {
		stored, err := h.carts(*req.UserID).Entries(r.Context())
		if err != nil {
			writeInternal(w, r, err)
			return
		}
		entries = stored
	}

	o, err := h.submitter.Submit(r.Context(), order.SubmitRequest{
		UserID: req.UserID,
		Entries: entries,
		Destination: order.Destination{
			Address:     req.Destination.Address,
			City:        req.Destination.City,
			Country:     req.Destination.Country,
			RegionCode:  req.Destination.RegionCode,
			ContactName: req.Destination.ContactName,
			Phone:       req.Destination.Phone,
			Company:     req.Destination.Company,
		},
		CarrierID:  req.CarrierID,
		Method:     shipping.Method(req.DeliveryMethod),
		CouponCode: req.CouponCode,
	})
	if err != nil {
		h.writeSubmitError(w, r, err)
		return
	}
	h.recordOrderCreation(r, o)

	writeJSON(w, r, http.StatusCreated, func(e *jx.Encoder) {
		encodeOrder(e, o)
	})
}

// recordOrderCreation appends the order_create activity entry. Recording is
// best-effort here: the order is already committed.
func (h *Handler) recordOrderCreation(r *http.Request, o *order.Order) {
	actor := "guest"
	if o.UserID != nil {
		actor = *o.UserID
	}
	err := h.audit.Record(r.Context(), audit.Entry{
		ActorUserID: actor,
		Action:      audit.ActionOrderCreate,
		TargetType:  "order",
		TargetID:    o.ID,
		Details: map[string]any{
			"status": string(o.Status),
			"total":  o.TotalAmount.String(),
		},
	})
	if err != nil {
		zctx.From(r.Context()).Error("record order creation", zap.Error(err))
	}
}

// writeSubmitError maps submission failures onto the error taxonomy:
// field-level validation 400, stale-state conflicts 409, the rest 500.
// Coupon rejection reasons are preserved verbatim.
func (h *Handler) writeSubmitError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		unknownRef *cart.UnknownRefError
		stock      *order.StockConflictError
		rejected   *coupon.RejectedError
	)
	switch {
	case errors.Is(err, order.ErrNoItems),
		errors.Is(err, order.ErrNoDestination),
		errors.Is(err, order.ErrNoCarrier),
		errors.Is(err, order.ErrNoAddress),
		errors.Is(err, cart.ErrEmptyCart),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, shipping.ErrUnknownMethod):
		writeErr(w, r, http.StatusBadRequest, err.Error())
	case errors.As(err, &unknownRef):
		writeErr(w, r, http.StatusUnprocessableEntity, unknownRef.Error())
	case errors.As(err, &stock):
		writeErr(w, r, http.StatusConflict, stock.Error())
	case errors.Is(err, shipping.ErrNoRate):
		writeErr(w, r, http.StatusConflict, "selected carrier does not service the destination region")
	case errors.As(err, &rejected):
		writeJSON(w, r, http.StatusConflict, func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("code", func(e *jx.Encoder) { e.Int(http.StatusConflict) })
				e.Field("message", func(e *jx.Encoder) { e.Str("coupon rejected") })
				e.Field("reason", func(e *jx.Encoder) { e.Str(rejected.Reason) })
			})
		})
	default:
		writeInternal(w, r, err)
	}
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Status)) })
		e.Field("totalAmount", func(e *jx.Encoder) { e.Num(jx.Num(o.TotalAmount.String())) })
		e.Field("regionCode", func(e *jx.Encoder) { e.Str(o.RegionCode) })
		e.Field("delivery", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("carrierId", func(e *jx.Encoder) { e.Str(o.Delivery.CarrierID) })
				e.Field("carrierName", func(e *jx.Encoder) { e.Str(o.Delivery.CarrierName) })
				e.Field("method", func(e *jx.Encoder) { e.Str(string(o.Delivery.Method)) })
				e.Field("shippingCost", func(e *jx.Encoder) { e.Num(jx.Num(o.Delivery.ShippingCost.String())) })
			})
		})
		e.Field("notes", func(e *jx.Encoder) { e.Str(o.Delivery.LegacyNotes()) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range o.Items {
					e.Obj(func(e *jx.Encoder) {
						e.Field("kind", func(e *jx.Encoder) { e.Str(string(it.Kind)) })
						e.Field("refId", func(e *jx.Encoder) { e.Str(it.RefID) })
						e.Field("name", func(e *jx.Encoder) { e.Str(it.Name) })
						e.Field("unitPrice", func(e *jx.Encoder) { e.Num(jx.Num(it.UnitPrice.String())) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
					})
				}
			})
		})
		e.Field("createdAt", func(e *jx.Encoder) { e.Str(o.CreatedAt.UTC().Format(time.RFC3339)) })
	})
}
