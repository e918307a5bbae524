package shipping

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Resolver answers the three questions checkout asks of the rate table:
// which carriers service a region, what a carrier quotes there, and what a
// concrete (carrier, region, method) choice costs.
type Resolver struct {
	repo Repository
}

// NewResolver creates a Resolver over the given rate repository.
func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

// CarriersFor returns the carriers that actually service regionCode: those
// with at least one positive-priced rate row there. Carriers with no row, or
// only zero-priced rows, are excluded.
func (r *Resolver) CarriersFor(ctx context.Context, regionCode string) ([]Carrier, error) {
	carriers, err := r.repo.Carriers(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list carriers")
	}
	rates, err := r.repo.RatesFor(ctx, regionCode)
	if err != nil {
		return nil, errors.Wrap(err, "rates for region")
	}

	out := make([]Carrier, 0, len(carriers))
	for _, c := range carriers {
		if rate, ok := rates[c.ID]; ok && rate.services() {
			out = append(out, c)
		}
	}
	return out, nil
}

// RateFor returns the exact rate row for (carrierID, regionCode), or ErrNoRate.
func (r *Resolver) RateFor(ctx context.Context, carrierID, regionCode string) (*Rate, error) {
	return r.repo.RateFor(ctx, carrierID, regionCode)
}

// CostFor resolves the cost of a concrete delivery choice. Identical inputs
// always yield identical output; a missing rate row yields ErrNoRate, never a
// zero cost.
func (r *Resolver) CostFor(ctx context.Context, carrierID, regionCode string, m Method) (decimal.Decimal, error) {
	rate, err := r.repo.RateFor(ctx, carrierID, regionCode)
	if err != nil {
		return decimal.Zero, err
	}
	return rate.Price(m)
}

// Reselect enforces the region-change contract: when the destination region
// changes, a previously chosen carrier that no longer services the new region
// must be dropped. It returns current if it is still among available, and ""
// otherwise. An order must never be created with a carrier/region pair that
// has no rate.
func Reselect(current string, available []Carrier) string {
	if current == "" {
		return ""
	}
	for _, c := range available {
		if c.ID == current {
			return current
		}
	}
	return ""
}
