// Package handler exposes the checkout and back-office HTTP surface.
package handler

import (
	"net/http"

	"github.com/craftline/shop-api/internal/domain/audit"
	"github.com/craftline/shop-api/internal/domain/cart"
	"github.com/craftline/shop-api/internal/domain/catalog"
	"github.com/craftline/shop-api/internal/domain/coupon"
	"github.com/craftline/shop-api/internal/domain/order"
	"github.com/craftline/shop-api/internal/domain/shipping"
)

// CartFactory returns the stored cart of an authenticated shopper. Checkout
// falls back to it when a submission names a user but carries no inline items.
type CartFactory func(userID string) cart.Source

// Handler implements the HTTP endpoints, delegating business logic to the
// injected domain services.
type Handler struct {
	catalog   catalog.Repository
	resolver  *shipping.Resolver
	coupons   *coupon.Validator
	couponDB  coupon.Repository
	prefilter *coupon.Prefilter
	submitter *order.Service
	lifecycle *order.Lifecycle
	orders    order.Store
	audit     audit.Recorder
	carts     CartFactory
}

// Deps bundles the Handler's collaborators.
type Deps struct {
	Catalog   catalog.Repository
	Resolver  *shipping.Resolver
	Coupons   *coupon.Validator
	CouponDB  coupon.Repository
	Prefilter *coupon.Prefilter
	Submitter *order.Service
	Lifecycle *order.Lifecycle
	Orders    order.Store
	Audit     audit.Recorder
	Carts     CartFactory
}

// New constructs a Handler.
func New(d Deps) *Handler {
	return &Handler{
		catalog:   d.Catalog,
		resolver:  d.Resolver,
		coupons:   d.Coupons,
		couponDB:  d.CouponDB,
		prefilter: d.Prefilter,
		submitter: d.Submitter,
		lifecycle: d.Lifecycle,
		orders:    d.Orders,
		audit:     d.Audit,
		carts:     d.Carts,
	}
}

// Register mounts all routes on mux. Back-office routes are wrapped with
// adminAuth.
func (h *Handler) Register(mux *http.ServeMux, adminAuth func(http.Handler) http.Handler) {
	// Shop.
	mux.HandleFunc("GET /api/products", h.ListProducts)
	mux.HandleFunc("GET /api/shipping/{region}/carriers", h.CarriersForRegion)
	mux.HandleFunc("GET /api/shipping/{region}/carriers/{carrier}", h.RateForCarrier)
	mux.HandleFunc("POST /api/coupons/validate", h.ValidateCoupon)
	mux.HandleFunc("POST /api/checkout", h.Checkout)

	// Back office.
	admin := http.NewServeMux()
	admin.HandleFunc("GET /api/admin/orders", h.ListOrders)
	admin.HandleFunc("GET /api/admin/orders/export", h.ExportOrders)
	admin.HandleFunc("PATCH /api/admin/orders/{id}/status", h.SetOrderStatus)
	admin.HandleFunc("POST /api/admin/orders/status", h.BulkSetOrderStatus)
	admin.HandleFunc("DELETE /api/admin/orders/{id}", h.DeleteOrder)
	admin.HandleFunc("GET /api/admin/coupons", h.ListCoupons)
	admin.HandleFunc("POST /api/admin/coupons", h.CreateCoupon)
	admin.HandleFunc("PATCH /api/admin/coupons/{code}", h.UpdateCoupon)
	mux.Handle("/api/admin/", adminAuth(admin))
}
