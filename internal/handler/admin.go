package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/craftline/shop-api/internal/domain/audit"
	"github.com/craftline/shop-api/internal/domain/coupon"
	"github.com/craftline/shop-api/internal/domain/order"
)

// ListOrders returns every order with its item snapshots, newest first.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.List(r.Context())
	if err != nil {
		writeInternal(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range orders {
				encodeOrder(e, &orders[i])
			}
		})
	})
}

type setStatusRequest struct {
	Status string `json:"status"`
}

// SetOrderStatus transitions one order. Every applied transition appends an
// audit entry.
func (h *Handler) SetOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req setStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, r, http.StatusBadRequest, "malformed request body")
		return
	}
	next, err := order.ParseStatus(req.Status)
	if err != nil {
		writeErr(w, r, http.StatusBadRequest, err.Error())
		return
	}

	id := r.PathValue("id")
	if err := h.lifecycle.SetStatus(r.Context(), id, next, actorFrom(r)); err != nil {
		h.writeLifecycleError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("id", func(e *jx.Encoder) { e.Str(id) })
			e.Field("status", func(e *jx.Encoder) { e.Str(string(next)) })
		})
	})
}

type bulkStatusRequest struct {
	OrderIDs []string `json:"orderIds"`
	Status   string   `json:"status"`
}

// BulkSetOrderStatus applies one status to many orders, reporting partial
// success instead of aborting the batch on the first failure.
func (h *Handler) BulkSetOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req bulkStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, r, http.StatusBadRequest, "malformed request body")
		return
	}
	next, err := order.ParseStatus(req.Status)
	if err != nil {
		writeErr(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.OrderIDs) == 0 {
		writeErr(w, r, http.StatusBadRequest, "orderIds is required")
		return
	}

	res, err := h.lifecycle.BulkSetStatus(r.Context(), req.OrderIDs, next, actorFrom(r))
	if err != nil {
		writeInternal(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("updated", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, id := range res.Updated {
						e.Str(id)
					}
				})
			})
			e.Field("failed", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, f := range res.Failed {
						e.Obj(func(e *jx.Encoder) {
							e.Field("orderId", func(e *jx.Encoder) { e.Str(f.OrderID) })
							e.Field("error", func(e *jx.Encoder) { e.Str(f.Err) })
						})
					}
				})
			})
		})
	})
}

// DeleteOrder irreversibly removes an order, audit-logging before the row
// goes away.
func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.lifecycle.Delete(r.Context(), id, actorFrom(r)); err != nil {
		h.writeLifecycleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportOrders streams the reporting CSV. With ?gz=1 or an Accept-Encoding
// that allows gzip, the stream is compressed with a parallel gzip writer.
func (h *Handler) ExportOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.List(r.Context())
	if err != nil {
		writeInternal(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="orders-`+time.Now().UTC().Format("20060102")+`.csv"`)

	if r.URL.Query().Get("gz") == "1" || strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
		w.Header().Set("Content-Encoding", "gzip")
		gz := pgzip.NewWriter(w)
		defer gz.Close()
		if err := order.WriteCSV(gz, orders); err != nil {
			zctx.From(r.Context()).Error("export orders", zap.Error(err))
		}
		return
	}

	if err := order.WriteCSV(w, orders); err != nil {
		zctx.From(r.Context()).Error("export orders", zap.Error(err))
	}
}

type couponRequest struct {
	Code          string          `json:"code"`
	DiscountType  string          `json:"discountType"`
	DiscountValue decimal.Decimal `json:"discountValue"`
	MinSpend      decimal.Decimal `json:"minSpend"`
	UsageLimit    *int            `json:"usageLimit"`
	ExpiresAt     *time.Time      `json:"expiresAt"`
	Active        *bool           `json:"active"`
}

func (req *couponRequest) toCoupon() (*coupon.Coupon, error) {
	switch coupon.DiscountType(req.DiscountType) {
	case coupon.DiscountFixed, coupon.DiscountPercentage:
	default:
		return nil, errors.Errorf("unknown discount type %q", req.DiscountType)
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	return &coupon.Coupon{
		Code:          coupon.NormalizeCode(req.Code),
		DiscountType:  coupon.DiscountType(req.DiscountType),
		DiscountValue: req.DiscountValue,
		MinSpend:      req.MinSpend,
		UsageLimit:    req.UsageLimit,
		ExpiresAt:     req.ExpiresAt,
		Active:        active,
	}, nil
}

// ListCoupons returns all coupons for the back office.
func (h *Handler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.couponDB.List(r.Context())
	if err != nil {
		writeInternal(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range coupons {
				encodeCoupon(e, &coupons[i])
			}
		})
	})
}

// CreateCoupon creates a coupon, registers it with the prefilter, and records
// the mutation in the activity log.
func (h *Handler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	var req couponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, r, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Code == "" {
		writeErr(w, r, http.StatusBadRequest, "code is required")
		return
	}
	c, err := req.toCoupon()
	if err != nil {
		writeErr(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.couponDB.Create(r.Context(), c); err != nil {
		writeInternal(w, r, err)
		return
	}
	if h.prefilter != nil {
		h.prefilter.Add(c.Code)
	}
	h.recordCouponMutation(r, audit.ActionCouponCreate, c)

	writeJSON(w, r, http.StatusCreated, func(e *jx.Encoder) { encodeCoupon(e, c) })
}

// UpdateCoupon rewrites a coupon's rule fields and records the mutation.
func (h *Handler) UpdateCoupon(w http.ResponseWriter, r *http.Request) {
	var req couponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, r, http.StatusBadRequest, "malformed request body")
		return
	}
	req.Code = r.PathValue("code")
	c, err := req.toCoupon()
	if err != nil {
		writeErr(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.couponDB.Update(r.Context(), c); err != nil {
		if errors.Is(err, coupon.ErrNotFound) {
			writeErr(w, r, http.StatusNotFound, "coupon not found")
			return
		}
		writeInternal(w, r, err)
		return
	}
	h.recordCouponMutation(r, audit.ActionCouponUpdate, c)

	writeJSON(w, r, http.StatusOK, func(e *jx.Encoder) { encodeCoupon(e, c) })
}

func (h *Handler) recordCouponMutation(r *http.Request, action audit.Action, c *coupon.Coupon) {
	err := h.audit.Record(r.Context(), audit.Entry{
		ActorUserID: actorFrom(r),
		Action:      action,
		TargetType:  "coupon",
		TargetID:    c.Code,
		Details: map[string]any{
			"discount_type":  string(c.DiscountType),
			"discount_value": c.DiscountValue.String(),
			"active":         c.Active,
		},
	})
	if err != nil {
		zctx.From(r.Context()).Error("record coupon mutation", zap.Error(err))
	}
}

func (h *Handler) writeLifecycleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, order.ErrNotFound):
		writeErr(w, r, http.StatusNotFound, "order not found")
	case errors.Is(err, order.ErrTerminalStatus):
		writeErr(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, order.ErrUnknownStatus):
		writeErr(w, r, http.StatusBadRequest, err.Error())
	default:
		writeInternal(w, r, err)
	}
}

func encodeCoupon(e *jx.Encoder, c *coupon.Coupon) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Str(c.Code) })
		e.Field("discountType", func(e *jx.Encoder) { e.Str(string(c.DiscountType)) })
		e.Field("discountValue", func(e *jx.Encoder) { e.Num(jx.Num(c.DiscountValue.String())) })
		e.Field("minSpend", func(e *jx.Encoder) { e.Num(jx.Num(c.MinSpend.String())) })
		if c.UsageLimit != nil {
			e.Field("usageLimit", func(e *jx.Encoder) { e.Int(*c.UsageLimit) })
		}
		e.Field("usedCount", func(e *jx.Encoder) { e.Int(c.UsedCount) })
		if c.ExpiresAt != nil {
			e.Field("expiresAt", func(e *jx.Encoder) { e.Str(c.ExpiresAt.UTC().Format(time.RFC3339)) })
		}
		e.Field("active", func(e *jx.Encoder) { e.Bool(c.Active) })
	})
}
