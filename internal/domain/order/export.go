package order

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/go-faster/errors"
)

// exportHeader is the fixed column set of the administrative CSV export.
var exportHeader = []string{"Order ID", "Date", "Customer", "Phone", "Status", "Total", "Items"}

// WriteCSV streams orders as the back-office reporting export: one row per
// order, items rendered as semicolon-joined "name (qty)" pairs. This is a
// read path; nothing here is authoritative state.
func WriteCSV(w io.Writer, orders []Order) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return errors.Wrap(err, "write header")
	}

	for _, o := range orders {
		row := []string{
			o.ID,
			o.CreatedAt.Format("2006-01-02 15:04"),
			o.Delivery.ContactName,
			o.Delivery.Phone,
			string(o.Status),
			o.TotalAmount.String(),
			itemsSummary(o.Items),
		}
		if err := cw.Write(row); err != nil {
			return errors.Wrapf(err, "write order %s", o.ID)
		}
	}

	cw.Flush()
	return cw.Error()
}

func itemsSummary(items []Item) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = fmt.Sprintf("%s (%d)", it.Name, it.Quantity)
	}
	return strings.Join(parts, "; ")
}
