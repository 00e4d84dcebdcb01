// Package parser implements marketplace detection and order normalization for
// seller export spreadsheets. Given a raw grid of cells (row 0 = header) it
// identifies which marketplace produced the sheet and converts each data row
// into a NormalizedOrder with consistent financial semantics.
package parser

import (
	"strconv"
	"strings"
	"time"
)

// Marketplace is the canonical internal marketplace identifier. It is distinct
// from the human-readable platform label found in spreadsheet cells.
type Marketplace string

const (
	MarketplaceMeli   Marketplace = "meli"
	MarketplaceShopee Marketplace = "shopee"
	MarketplaceShein  Marketplace = "shein"
	MarketplaceTikTok Marketplace = "tiktok"
)

// NormalizedOrder is the canonical per-row output record. All monetary fields
// are in the sheet's native currency; no conversion is performed. Profit and
// ProfitMargin are pointers so "no computation available" stays distinct from
// "computed as zero".
type NormalizedOrder struct {
	PlatformOrderID string
	ExternalOrderID string
	PlatformName    string
	StoreName       string

	OrderDate      time.Time
	SettlementDate *time.Time

	SKU      string
	Quantity int

	OrderValue        float64
	Revenue           float64
	ProductSales      float64
	ShippingFeeBuyer  float64
	PlatformDiscount  float64
	Commissions       float64
	TransactionFee    float64
	ShippingFee       float64
	OtherPlatformFees float64
	TotalFees         float64
	Refunds           float64
	ProductCost       float64
	Fees              float64 // legacy aggregate, kept for display

	Profit       *float64
	ProfitMargin *float64 // percentage, not fraction
}

// Result is the unit of output of a successful detection.
type Result struct {
	Marketplace Marketplace
	Orders      []NormalizedOrder
}

// Parser is the capability every native marketplace parser implements.
// Recognize decides whether the header row matches this marketplace's export
// signature. Extract converts the full grid (header included at row 0) into
// normalized orders; it returns nil when its mandatory columns are missing or
// no row survives validation, which the detector treats as no-match.
type Parser interface {
	Name() Marketplace
	Recognize(header []string) bool
	Extract(rows [][]any) []NormalizedOrder
}

const defaultSKU = "N/A"

// cellString renders a grid cell for identifier/text use. Numeric order ids
// exported as floats must not come out in scientific notation.
func cellString(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(c)
	case float64:
		return strconv.FormatFloat(c, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(c), 'f', -1, 32)
	case int:
		return strconv.Itoa(c)
	case int64:
		return strconv.FormatInt(c, 10)
	case time.Time:
		return c.Format("2006-01-02")
	default:
		return ""
	}
}

// cellAt returns the raw cell at idx, or nil when the column is absent from
// the map or the row is short.
func cellAt(row []any, idx int) any {
	if idx < 0 || idx >= len(row) {
		return nil
	}
	return row[idx]
}

// NormalizeHeader lower-cases and trims every header cell once, so matchers
// and recognizers work on a stable view of row 0.
func NormalizeHeader(header []any) []string {
	out := make([]string, len(header))
	for i, cell := range header {
		out[i] = strings.ToLower(cellString(cell))
	}
	return out
}

// parseQuantity reads an integer quantity, defaulting to 1 for missing,
// unparseable or non-positive cells.
func parseQuantity(v any) int {
	switch c := v.(type) {
	case float64:
		if q := int(c); q > 0 {
			return q
		}
	case int:
		if c > 0 {
			return c
		}
	case string:
		if q, err := strconv.Atoi(strings.TrimSpace(c)); err == nil && q > 0 {
			return q
		}
	}
	return 1
}
