package coupon

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCouponRepo struct {
	byCode  map[string]*Coupon
	findErr error

	lookups int
}

func (m *mockCouponRepo) FindByCode(_ context.Context, code string) (*Coupon, error) {
	m.lookups++
	if m.findErr != nil {
		return nil, m.findErr
	}
	c, ok := m.byCode[code]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

func (m *mockCouponRepo) List(_ context.Context) ([]Coupon, error) { return nil, nil }

func (m *mockCouponRepo) Create(_ context.Context, _ *Coupon) error { return nil }

func (m *mockCouponRepo) Update(_ context.Context, _ *Coupon) error { return nil }

func (m *mockCouponRepo) Codes(_ context.Context) ([]string, error) {
	codes := make([]string, 0, len(m.byCode))
	for code := range m.byCode {
		codes = append(codes, code)
	}
	return codes, nil
}

func newRepo(coupons ...Coupon) *mockCouponRepo {
	byCode := make(map[string]*Coupon, len(coupons))
	for i := range coupons {
		byCode[coupons[i].Code] = &coupons[i]
	}
	return &mockCouponRepo{byCode: byCode}
}

func intPtr(v int) *int { return &v }

func TestValidator_Validate(t *testing.T) {
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	pastTime := fixedNow.Add(-24 * time.Hour)
	futureTime := fixedNow.Add(24 * time.Hour)

	subtotal := decimal.RequireFromString("50.00")

	tests := []struct {
		name       string
		coupons    []Coupon
		code       string
		subtotal   decimal.Decimal
		wantType   DiscountType
		wantValue  string
		wantReason string
	}{
		{
			name: "valid percentage coupon",
			coupons: []Coupon{{
				Code: "SAVE10", DiscountType: DiscountPercentage,
				DiscountValue: decimal.NewFromInt(10), Active: true,
			}},
			code: "SAVE10", subtotal: subtotal,
			wantType: DiscountPercentage, wantValue: "10",
		},
		{
			name: "valid fixed coupon",
			coupons: []Coupon{{
				Code: "FIVER", DiscountType: DiscountFixed,
				DiscountValue: decimal.NewFromInt(5), Active: true,
			}},
			code: "FIVER", subtotal: subtotal,
			wantType: DiscountFixed, wantValue: "5",
		},
		{
			name:     "unknown code",
			code:     "BOGUS",
			subtotal: subtotal, wantReason: ReasonNotFound,
		},
		{
			name:     "empty code",
			code:     "",
			subtotal: subtotal, wantReason: ReasonNotFound,
		},
		{
			name: "inactive coupon",
			coupons: []Coupon{{
				Code: "PAUSED", DiscountType: DiscountFixed,
				DiscountValue: decimal.NewFromInt(5), Active: false,
			}},
			code: "PAUSED", subtotal: subtotal,
			wantReason: ReasonInactive,
		},
		{
			name: "expired coupon",
			coupons: []Coupon{{
				Code: "OLD", DiscountType: DiscountFixed,
				DiscountValue: decimal.NewFromInt(5), Active: true,
				ExpiresAt: &pastTime,
			}},
			code: "OLD", subtotal: subtotal,
			wantReason: ReasonExpired,
		},
		{
			name: "future expiry still valid",
			coupons: []Coupon{{
				Code: "FRESH", DiscountType: DiscountFixed,
				DiscountValue: decimal.NewFromInt(5), Active: true,
				ExpiresAt: &futureTime,
			}},
			code: "FRESH", subtotal: subtotal,
			wantType: DiscountFixed, wantValue: "5",
		},
		{
			name: "usage limit reached",
			coupons: []Coupon{{
				Code: "LIMITED", DiscountType: DiscountPercentage,
				DiscountValue: decimal.NewFromInt(10), Active: true,
				UsageLimit: intPtr(100), UsedCount: 100,
			}},
			code: "LIMITED", subtotal: subtotal,
			wantReason: ReasonUsageLimit,
		},
		{
			name: "usage under limit succeeds",
			coupons: []Coupon{{
				Code: "HASROOM", DiscountType: DiscountPercentage,
				DiscountValue: decimal.NewFromInt(10), Active: true,
				UsageLimit: intPtr(100), UsedCount: 99,
			}},
			code: "HASROOM", subtotal: subtotal,
			wantType: DiscountPercentage, wantValue: "10",
		},
		{
			name: "nil usage limit means unlimited",
			coupons: []Coupon{{
				Code: "UNLIMITED", DiscountType: DiscountFixed,
				DiscountValue: decimal.NewFromInt(5), Active: true,
				UsedCount: 9999,
			}},
			code: "UNLIMITED", subtotal: subtotal,
			wantType: DiscountFixed, wantValue: "5",
		},
		{
			name: "minimum spend not met",
			coupons: []Coupon{{
				Code: "BIGSPEND", DiscountType: DiscountFixed,
				DiscountValue: decimal.NewFromInt(20), Active: true,
				MinSpend: decimal.RequireFromString("100.00"),
			}},
			code: "BIGSPEND", subtotal: subtotal,
			wantReason: ReasonMinSpendNotMet,
		},
		{
			name: "minimum spend exactly met",
			coupons: []Coupon{{
				Code: "EXACT", DiscountType: DiscountFixed,
				DiscountValue: decimal.NewFromInt(20), Active: true,
				MinSpend: decimal.RequireFromString("50.00"),
			}},
			code: "EXACT", subtotal: subtotal,
			wantType: DiscountFixed, wantValue: "20",
		},
		{
			name: "codes match case-insensitively",
			coupons: []Coupon{{
				Code: "SAVE10", DiscountType: DiscountPercentage,
				DiscountValue: decimal.NewFromInt(10), Active: true,
			}},
			code: "  save10 ", subtotal: subtotal,
			wantType: DiscountPercentage, wantValue: "10",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewValidator(newRepo(tt.coupons...), nil)
			v.now = func() time.Time { return fixedNow }

			got, err := v.Validate(context.Background(), tt.code, tt.subtotal)

			if tt.wantReason != "" {
				var rejected *RejectedError
				require.ErrorAs(t, err, &rejected)
				assert.Equal(t, tt.wantReason, rejected.Reason)
				assert.Nil(t, got)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, tt.wantType, got.Type)
			assert.True(t, decimal.RequireFromString(tt.wantValue).Equal(got.Value),
				"value: want %s, got %s", tt.wantValue, got.Value)
		})
	}
}

func TestValidator_CheckOrder(t *testing.T) {
	// A coupon failing several checks at once reports the first failure in
	// the fixed order: inactive wins over expired, expired over usage limit,
	// usage limit over minimum spend.
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	pastTime := fixedNow.Add(-24 * time.Hour)
	subtotal := decimal.NewFromInt(1)

	base := Coupon{
		Code:          "MULTI",
		DiscountType:  DiscountFixed,
		DiscountValue: decimal.NewFromInt(5),
		Active:        false,
		ExpiresAt:     &pastTime,
		UsageLimit:    intPtr(1),
		UsedCount:     1,
		MinSpend:      decimal.NewFromInt(100),
	}

	validate := func(c Coupon) string {
		v := NewValidator(newRepo(c), nil)
		v.now = func() time.Time { return fixedNow }
		_, err := v.Validate(context.Background(), c.Code, subtotal)
		var rejected *RejectedError
		require.ErrorAs(t, err, &rejected)
		return rejected.Reason
	}

	assert.Equal(t, ReasonInactive, validate(base))

	active := base
	active.Active = true
	assert.Equal(t, ReasonExpired, validate(active))

	unexpired := active
	unexpired.ExpiresAt = nil
	assert.Equal(t, ReasonUsageLimit, validate(unexpired))

	unlimited := unexpired
	unlimited.UsageLimit = nil
	assert.Equal(t, ReasonMinSpendNotMet, validate(unlimited))
}

func TestValidator_RepoError(t *testing.T) {
	repo := &mockCouponRepo{findErr: errors.New("db down")}
	v := NewValidator(repo, nil)

	_, err := v.Validate(context.Background(), "ANY", decimal.NewFromInt(10))

	require.Error(t, err)
	var rejected *RejectedError
	assert.False(t, errors.As(err, &rejected), "infrastructure errors must not look like rejections")
}

func TestValidator_PrefilterSkipsLookup(t *testing.T) {
	repo := newRepo(Coupon{
		Code: "KNOWN", DiscountType: DiscountFixed,
		DiscountValue: decimal.NewFromInt(5), Active: true,
	})
	prefilter := NewPrefilter([]string{"KNOWN"})
	v := NewValidator(repo, prefilter)

	// Garbage code: rejected by the filter without a repo hit.
	_, err := v.Validate(context.Background(), "DEFINITELY-NOT-A-CODE", decimal.NewFromInt(10))
	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, ReasonNotFound, rejected.Reason)
	assert.Zero(t, repo.lookups)

	// Known code passes through to the authoritative lookup.
	got, err := v.Validate(context.Background(), "known", decimal.NewFromInt(10))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1, repo.lookups)
}
