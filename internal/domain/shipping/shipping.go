package shipping

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Method selects between the two delivery options a carrier prices.
type Method string

const (
	// MethodDesk is pickup at the carrier's desk / relay point.
	MethodDesk Method = "desk"
	// MethodHome is doorstep delivery.
	MethodHome Method = "home"
)

var (
	// ErrNoRate is returned when a carrier has no rate row for a region.
	// The absence of a row means the carrier does not service the region;
	// it is never defaulted to a zero cost.
	ErrNoRate = errors.New("no shipping rate for carrier in region")
	// ErrUnknownMethod is returned for a delivery method outside desk|home.
	ErrUnknownMethod = errors.New("unknown delivery method")
)

// ParseMethod validates a wire-level delivery method string.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case MethodDesk, MethodHome:
		return Method(s), nil
	default:
		return "", ErrUnknownMethod
	}
}

// Carrier is a shipping company quoting per-region prices.
type Carrier struct {
	ID   string
	Name string
}

// Rate is one row of the sparse (carrier, region) rate matrix.
type Rate struct {
	CarrierID  string
	RegionCode string
	DeskPrice  decimal.Decimal
	HomePrice  decimal.Decimal
}

// services reports whether this rate row represents actual coverage. A row
// with only zero prices is treated the same as a missing row.
func (r Rate) services() bool {
	return r.DeskPrice.IsPositive() || r.HomePrice.IsPositive()
}

// Price returns the rate for the given delivery method.
func (r Rate) Price(m Method) (decimal.Decimal, error) {
	switch m {
	case MethodDesk:
		return r.DeskPrice, nil
	case MethodHome:
		return r.HomePrice, nil
	default:
		return decimal.Zero, ErrUnknownMethod
	}
}

// Repository provides read access to carriers and the rate table.
type Repository interface {
	Carriers(ctx context.Context) ([]Carrier, error)
	// RatesFor returns all rate rows for a region keyed by carrier ID.
	RatesFor(ctx context.Context, regionCode string) (map[string]Rate, error)
	// RateFor returns the exact rate row, or ErrNoRate when absent.
	RateFor(ctx context.Context, carrierID, regionCode string) (*Rate, error)
}
