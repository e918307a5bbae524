package order

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/craftline/shop-api/internal/domain/shipping"
)

func TestDeliveryDetails_LegacyNotes(t *testing.T) {
	tests := []struct {
		name string
		d    DeliveryDetails
		want string
	}{
		{
			name: "all fields, desk pickup",
			d: DeliveryDetails{
				CarrierID:    "swift",
				CarrierName:  "Swift Express",
				Method:       shipping.MethodDesk,
				ContactName:  "Pat Doe",
				Phone:        "555-0101",
				Company:      "Acme Ltd",
				ShippingCost: decimal.RequireFromString("4.50"),
			},
			want: "Desk pickup via Swift Express | Name: Pat Doe | Phone: 555-0101 | Company: Acme Ltd | Shipping: Swift Express (4.5)",
		},
		{
			name: "home delivery without company",
			d: DeliveryDetails{
				CarrierName:  "Turtle Post",
				Method:       shipping.MethodHome,
				ContactName:  "Sam Lee",
				Phone:        "555-0202",
				ShippingCost: decimal.NewFromInt(7),
			},
			want: "Home delivery via Turtle Post | Name: Sam Lee | Phone: 555-0202 | Shipping: Turtle Post (7)",
		},
		{
			name: "minimal details",
			d: DeliveryDetails{
				CarrierName: "Turtle Post",
				Method:      shipping.MethodHome,
			},
			want: "Home delivery via Turtle Post | Shipping: Turtle Post (0)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.d.LegacyNotes())
		})
	}
}

func TestParseLegacyNotes(t *testing.T) {
	notes := "Desk pickup via Swift Express | Name: Pat Doe | Phone: 555-0101 | Shipping: Swift Express (4.5)"

	got := ParseLegacyNotes(notes)

	assert.Equal(t, "Desk pickup via Swift Express", got.Summary)
	assert.Equal(t, "Pat Doe", got.Fields["Name"])
	assert.Equal(t, "555-0101", got.Fields["Phone"])
	assert.Equal(t, "Swift Express (4.5)", got.Fields["Shipping"])
}

func TestParseLegacyNotes_Loose(t *testing.T) {
	// Hand-edited notes with missing keys and stray segments still parse.
	got := ParseLegacyNotes("Home delivery via Turtle Post |  | Phone: 555-0202 | leave at door")

	assert.Equal(t, "Home delivery via Turtle Post", got.Summary)
	assert.Equal(t, "555-0202", got.Fields["Phone"])
	assert.NotContains(t, got.Fields, "Name")

	empty := ParseLegacyNotes("")
	assert.Equal(t, "", empty.Summary)
	assert.Empty(t, empty.Fields)
}

func TestLegacyNotes_RoundTrip(t *testing.T) {
	d := DeliveryDetails{
		CarrierName:  "Swift Express",
		Method:       shipping.MethodDesk,
		ContactName:  "Pat Doe",
		Phone:        "555-0101",
		ShippingCost: decimal.RequireFromString("4.50"),
	}

	got := ParseLegacyNotes(d.LegacyNotes())

	assert.Equal(t, "Desk pickup via Swift Express", got.Summary)
	assert.Equal(t, d.ContactName, got.Fields["Name"])
	assert.Equal(t, d.Phone, got.Fields["Phone"])
}
