package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/craftline/shop-api/internal/domain/coupon"
)

const (
	findCouponSQL = `SELECT code, discount_type, discount_value, min_spend,
		usage_limit, used_count, expires_at, active, created_at
		FROM coupons WHERE UPPER(code) = UPPER($1)`

	listCouponsSQL = `SELECT code, discount_type, discount_value, min_spend,
		usage_limit, used_count, expires_at, active, created_at
		FROM coupons ORDER BY created_at DESC`

	couponCodesSQL = `SELECT code FROM coupons`

	createCouponSQL = `INSERT INTO coupons
		(code, discount_type, discount_value, min_spend, usage_limit, expires_at, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	updateCouponSQL = `UPDATE coupons SET discount_type = $2, discount_value = $3,
		min_spend = $4, usage_limit = $5, expires_at = $6, active = $7
		WHERE code = $1`

	// The guarded increment: the row is only touched while the limit still
	// has headroom, so two racing redemptions of a nearly exhausted code
	// cannot both succeed.
	redeemCouponSQL = `UPDATE coupons SET used_count = used_count + 1
		WHERE code = $1 AND (usage_limit IS NULL OR used_count < usage_limit)
		RETURNING used_count`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a coupon by its code, case-insensitively.
// Returns coupon.ErrNotFound when no such coupon exists.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, findCouponSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon %q: %w", code, err)
	}
	return &c, nil
}

// List returns all coupons, newest first.
func (r *CouponRepository) List(ctx context.Context) ([]coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, listCouponsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing coupons: %w", err)
	}
	return pgx.CollectRows(rows, scanCoupon)
}

// Codes returns every known coupon code.
func (r *CouponRepository) Codes(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, couponCodesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing coupon codes: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (string, error) {
		var code string
		err := row.Scan(&code)
		return code, err
	})
}

// Create inserts a new coupon. The code is stored normalized upper-case.
func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	_, err := r.pool.Exec(ctx, createCouponSQL,
		coupon.NormalizeCode(c.Code), string(c.DiscountType), c.DiscountValue,
		c.MinSpend, c.UsageLimit, c.ExpiresAt, c.Active,
	)
	if err != nil {
		return fmt.Errorf("creating coupon %q: %w", c.Code, err)
	}
	return nil
}

// Update rewrites a coupon's rule fields. UsedCount is deliberately not
// touchable through this path.
func (r *CouponRepository) Update(ctx context.Context, c *coupon.Coupon) error {
	tag, err := r.pool.Exec(ctx, updateCouponSQL,
		coupon.NormalizeCode(c.Code), string(c.DiscountType), c.DiscountValue,
		c.MinSpend, c.UsageLimit, c.ExpiresAt, c.Active,
	)
	if err != nil {
		return fmt.Errorf("updating coupon %q: %w", c.Code, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c            coupon.Coupon
		discountType string
	)
	err := row.Scan(
		&c.Code, &discountType, &c.DiscountValue, &c.MinSpend,
		&c.UsageLimit, &c.UsedCount, &c.ExpiresAt, &c.Active, &c.CreatedAt,
	)
	c.DiscountType = coupon.DiscountType(discountType)
	return c, err
}
