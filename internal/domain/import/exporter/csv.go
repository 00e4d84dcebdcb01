// Package exporter renders persisted orders back out as flat files.
package exporter

import (
	"fmt"
	"io"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/vendalink/orderhub/internal/domain/import/repository"
)

const dateLayout = "2006-01-02"

// orderRow is the CSV projection of a stored order. Optional financials render
// as empty cells, not zeros, so downstream tooling can tell "absent" apart.
type orderRow struct {
	Marketplace     string  `csv:"marketplace"`
	PlatformOrderID string  `csv:"platform_order_id"`
	ExternalOrderID string  `csv:"external_order_id"`
	OrderDate       string  `csv:"order_date"`
	SettlementDate  string  `csv:"settlement_date"`
	SKU             string  `csv:"sku"`
	Quantity        int     `csv:"quantity"`
	OrderValue      float64 `csv:"order_value"`
	Revenue         float64 `csv:"revenue"`
	Commissions     float64 `csv:"commissions"`
	Fees            float64 `csv:"fees"`
	Refunds         float64 `csv:"refunds"`
	ProductCost     float64 `csv:"product_cost"`
	Profit          string  `csv:"profit"`
	ProfitMargin    string  `csv:"profit_margin"`
}

// WriteCSV streams the orders of one import job as CSV.
func WriteCSV(w io.Writer, orders []repository.StoredOrder) error {
	rows := make([]orderRow, 0, len(orders))
	for _, o := range orders {
		rows = append(rows, toRow(o))
	}
	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("failed to write orders CSV: %w", err)
	}
	return nil
}

func toRow(o repository.StoredOrder) orderRow {
	row := orderRow{
		Marketplace:     o.Marketplace,
		PlatformOrderID: o.PlatformOrderID,
		ExternalOrderID: o.ExternalOrderID,
		OrderDate:       o.OrderDate.Format(dateLayout),
		SettlementDate:  formatDate(o.SettlementDate),
		SKU:             o.SKU,
		Quantity:        o.Quantity,
		OrderValue:      o.OrderValue,
		Revenue:         o.Revenue,
		Commissions:     o.Commissions,
		Fees:            o.Fees,
		Refunds:         o.Refunds,
		ProductCost:     o.ProductCost,
	}
	if o.Profit != nil {
		row.Profit = fmt.Sprintf("%.2f", *o.Profit)
	}
	if o.ProfitMargin != nil {
		row.ProfitMargin = fmt.Sprintf("%.2f", *o.ProfitMargin)
	}
	return row
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}
