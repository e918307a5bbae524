package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/craftline/shop-api/internal/domain/shipping"
)

const (
	listCarriersSQL = `SELECT id, name FROM carriers ORDER BY name`

	ratesForRegionSQL = `SELECT carrier_id, region_code, desk_price, home_price
		FROM shipping_rates WHERE region_code = $1`

	rateForSQL = `SELECT carrier_id, region_code, desk_price, home_price
		FROM shipping_rates WHERE carrier_id = $1 AND region_code = $2`

	upsertRateSQL = `INSERT INTO shipping_rates (carrier_id, region_code, desk_price, home_price)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (carrier_id, region_code)
		DO UPDATE SET desk_price = EXCLUDED.desk_price, home_price = EXCLUDED.home_price`

	upsertCarrierSQL = `INSERT INTO carriers (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`
)

var _ shipping.Repository = (*ShippingRepository)(nil)

// ShippingRepository implements shipping.Repository backed by PostgreSQL.
type ShippingRepository struct {
	pool *pgxpool.Pool
}

// NewShippingRepository returns a ShippingRepository that uses the given pool.
func NewShippingRepository(pool *pgxpool.Pool) *ShippingRepository {
	return &ShippingRepository{pool: pool}
}

// Carriers returns all known carriers ordered by name.
func (r *ShippingRepository) Carriers(ctx context.Context) ([]shipping.Carrier, error) {
	rows, err := r.pool.Query(ctx, listCarriersSQL)
	if err != nil {
		return nil, fmt.Errorf("listing carriers: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (shipping.Carrier, error) {
		var c shipping.Carrier
		err := row.Scan(&c.ID, &c.Name)
		return c, err
	})
}

// RatesFor returns all rate rows for a region keyed by carrier ID.
func (r *ShippingRepository) RatesFor(ctx context.Context, regionCode string) (map[string]shipping.Rate, error) {
	rows, err := r.pool.Query(ctx, ratesForRegionSQL, regionCode)
	if err != nil {
		return nil, fmt.Errorf("rates for region %q: %w", regionCode, err)
	}
	rates, err := pgx.CollectRows(rows, scanRate)
	if err != nil {
		return nil, fmt.Errorf("rates for region %q: %w", regionCode, err)
	}

	out := make(map[string]shipping.Rate, len(rates))
	for _, rate := range rates {
		out[rate.CarrierID] = rate
	}
	return out, nil
}

// RateFor returns the exact rate row for (carrierID, regionCode).
// Returns shipping.ErrNoRate when no row exists.
func (r *ShippingRepository) RateFor(ctx context.Context, carrierID, regionCode string) (*shipping.Rate, error) {
	rows, err := r.pool.Query(ctx, rateForSQL, carrierID, regionCode)
	if err != nil {
		return nil, fmt.Errorf("rate for %s/%s: %w", carrierID, regionCode, err)
	}

	rate, err := pgx.CollectExactlyOneRow(rows, scanRate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shipping.ErrNoRate
		}
		return nil, fmt.Errorf("rate for %s/%s: %w", carrierID, regionCode, err)
	}
	return &rate, nil
}

// UpsertCarrier inserts or renames a carrier. Used by the rate ingest tool.
func (r *ShippingRepository) UpsertCarrier(ctx context.Context, c shipping.Carrier) error {
	if _, err := r.pool.Exec(ctx, upsertCarrierSQL, c.ID, c.Name); err != nil {
		return fmt.Errorf("upserting carrier %q: %w", c.ID, err)
	}
	return nil
}

// UpsertRate inserts or replaces one rate row. Used by the rate ingest tool.
func (r *ShippingRepository) UpsertRate(ctx context.Context, rate shipping.Rate) error {
	_, err := r.pool.Exec(ctx, upsertRateSQL,
		rate.CarrierID, rate.RegionCode, rate.DeskPrice, rate.HomePrice,
	)
	if err != nil {
		return fmt.Errorf("upserting rate %s/%s: %w", rate.CarrierID, rate.RegionCode, err)
	}
	return nil
}

func scanRate(row pgx.CollectableRow) (shipping.Rate, error) {
	var rate shipping.Rate
	err := row.Scan(&rate.CarrierID, &rate.RegionCode, &rate.DeskPrice, &rate.HomePrice)
	return rate, err
}
