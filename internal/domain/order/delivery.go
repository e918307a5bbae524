package order

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/craftline/shop-api/internal/domain/shipping"
)

// DeliveryDetails is the structured delivery metadata stored on an order.
// The back office historically consumed this as a single pipe-joined notes
// string; that form is now generated only at the boundary by LegacyNotes and
// is never parsed back as the source of truth.
type DeliveryDetails struct {
	CarrierID    string
	CarrierName  string
	Method       shipping.Method
	ContactName  string
	Phone        string
	Company      string
	ShippingCost decimal.Decimal
}

// LegacyNotes renders the pipe-delimited notes string consumed by legacy
// back-office views: a free-form method/carrier summary segment followed by
// "Key: value" segments.
func (d DeliveryDetails) LegacyNotes() string {
	segments := []string{d.summary()}
	if d.ContactName != "" {
		segments = append(segments, "Name: "+d.ContactName)
	}
	if d.Phone != "" {
		segments = append(segments, "Phone: "+d.Phone)
	}
	if d.Company != "" {
		segments = append(segments, "Company: "+d.Company)
	}
	segments = append(segments, fmt.Sprintf("Shipping: %s (%s)", d.CarrierName, d.ShippingCost.String()))
	return strings.Join(segments, " | ")
}

func (d DeliveryDetails) summary() string {
	switch d.Method {
	case shipping.MethodDesk:
		return "Desk pickup via " + d.CarrierName
	case shipping.MethodHome:
		return "Home delivery via " + d.CarrierName
	default:
		return "Delivery via " + d.CarrierName
	}
}

// LegacyNotes is the parsed form of a legacy notes string.
type LegacyNotes struct {
	Summary string
	Fields  map[string]string
}

// ParseLegacyNotes splits a legacy notes string into its summary segment and
// keyed fields. The format is loose: missing keys are fine and no segment
// order is assumed beyond the first. Segments without a "Key: value" shape
// are folded into the summary when it is otherwise empty, and ignored after.
func ParseLegacyNotes(notes string) LegacyNotes {
	out := LegacyNotes{Fields: map[string]string{}}
	for i, seg := range strings.Split(notes, " | ") {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		if i == 0 {
			out.Summary = seg
			continue
		}
		key, value, ok := strings.Cut(seg, ": ")
		if !ok {
			if out.Summary == "" {
				out.Summary = seg
			}
			continue
		}
		out.Fields[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return out
}
