package parser

import (
	"strings"

	"github.com/cloudflare/ahocorasick"
	"github.com/shopspring/decimal"
)

// Shared machinery for the four native marketplace parsers. Recognition runs
// the joined header text through two Aho-Corasick automatons: one for the
// marketplace's own indicator phrases, one for phrases unique to the other
// marketplaces. The negative automaton is mandatory — export formats share
// many generic financial column names, and without exclusion rules several
// parsers would claim the same sheet.

func phraseMatcher(phrases []string) *ahocorasick.Matcher {
	return ahocorasick.NewStringMatcher(phrases)
}

func joinHeader(header []string) string {
	return strings.Join(header, " | ")
}

func matchesAny(m *ahocorasick.Matcher, joined string) bool {
	if m == nil {
		return false
	}
	return len(m.Match([]byte(joined))) > 0
}

// recognizeNative applies the indicator/reject/structural checks common to
// every native parser.
func recognizeNative(header []string, table SynonymTable, indicators, rejects *ahocorasick.Matcher) bool {
	joined := joinHeader(header)
	if matchesAny(rejects, joined) {
		return false
	}
	if !matchesAny(indicators, joined) {
		return false
	}
	return table.FindColumn(header, FieldPlatformOrderID) >= 0 &&
		table.FindColumn(header, FieldOrderDate) >= 0
}

func moneyAt(row []any, cols map[Field]int, field Field) float64 {
	idx, ok := cols[field]
	if !ok || idx < 0 {
		return 0
	}
	return ParseMoney(cellAt(row, idx))
}

func stringAt(row []any, cols map[Field]int, field Field) string {
	idx, ok := cols[field]
	if !ok || idx < 0 {
		return ""
	}
	return cellString(cellAt(row, idx))
}

// extractRows is the row loop shared by the native parsers: it builds the
// column map once from the header, validates the two mandatory fields per
// row, fills the common identity/date/financial fields, and delegates the
// marketplace-specific profit semantics to finish. Rows missing the order id,
// missing a valid date, or carrying non-positive revenue are skipped, never
// emitted. Returns nil when the mandatory columns are absent or no row
// survives, which the detector treats as no-match.
func extractRows(rows [][]any, table SynonymTable, finish func(row []any, cols map[Field]int, o *NormalizedOrder)) []NormalizedOrder {
	if len(rows) < 2 {
		return nil
	}
	header := NormalizeHeader(rows[0])
	cols := table.MapColumns(header)
	if cols[FieldPlatformOrderID] < 0 || cols[FieldOrderDate] < 0 {
		return nil
	}

	var orders []NormalizedOrder
	for _, row := range rows[1:] {
		orderID := stringAt(row, cols, FieldPlatformOrderID)
		if orderID == "" {
			continue
		}
		orderDate, ok := ParseDate(cellAt(row, cols[FieldOrderDate]))
		if !ok {
			continue
		}

		o := NormalizedOrder{
			PlatformOrderID: orderID,
			ExternalOrderID: stringAt(row, cols, FieldExternalOrderID),
			PlatformName:    stringAt(row, cols, FieldPlatformName),
			StoreName:       stringAt(row, cols, FieldStoreName),
			OrderDate:       orderDate,
			SKU:             defaultSKU,
			Quantity:        1,

			OrderValue:        moneyAt(row, cols, FieldOrderValue),
			Revenue:           moneyAt(row, cols, FieldRevenue),
			ProductSales:      moneyAt(row, cols, FieldProductSales),
			ShippingFeeBuyer:  moneyAt(row, cols, FieldShippingFeeBuyer),
			PlatformDiscount:  moneyAt(row, cols, FieldPlatformDiscount),
			Commissions:       moneyAt(row, cols, FieldCommissions),
			TransactionFee:    moneyAt(row, cols, FieldTransactionFee),
			ShippingFee:       moneyAt(row, cols, FieldShippingFee),
			OtherPlatformFees: moneyAt(row, cols, FieldOtherFees),
			TotalFees:         moneyAt(row, cols, FieldTotalFees),
			Refunds:           moneyAt(row, cols, FieldRefunds),
			ProductCost:       moneyAt(row, cols, FieldProductCost),
			Fees:              moneyAt(row, cols, FieldFees),
		}

		if sku := stringAt(row, cols, FieldSKU); sku != "" {
			o.SKU = sku
		}
		if idx := cols[FieldQuantity]; idx >= 0 {
			o.Quantity = parseQuantity(cellAt(row, idx))
		}
		if idx := cols[FieldSettlementDate]; idx >= 0 {
			if d, ok := ParseDate(cellAt(row, idx)); ok {
				o.SettlementDate = &d
			}
		}

		// A sheet with a single gross-value column fills both sides.
		if o.Revenue == 0 && o.OrderValue != 0 {
			o.Revenue = o.OrderValue
		}
		if o.OrderValue == 0 && o.Revenue != 0 {
			o.OrderValue = o.Revenue
		}
		if o.Revenue <= 0 {
			continue
		}

		finish(row, cols, &o)
		orders = append(orders, o)
	}
	return orders
}

// legacyProfit implements the meli/shein model: the sheet's revenue is gross
// and every deduction is explicit.
// profit = revenue - productCost - commissions - fees - refunds.
func legacyProfit(o *NormalizedOrder) {
	rev := decimal.NewFromFloat(o.Revenue)
	profit := rev.
		Sub(decimal.NewFromFloat(o.ProductCost)).
		Sub(decimal.NewFromFloat(o.Commissions)).
		Sub(decimal.NewFromFloat(o.Fees)).
		Sub(decimal.NewFromFloat(o.Refunds))

	p, _ := profit.Float64()
	o.Profit = &p
	if o.Revenue > 0 {
		m, _ := profit.Div(rev).Mul(decimal.NewFromInt(100)).Float64()
		o.ProfitMargin = &m
	}
}

// sheetProfit implements the shopee/tiktok model: the export already embeds a
// vendor-computed profit, and fee breakdowns are too marketplace-specific to
// re-sum reliably, so the sheet's own arithmetic is trusted. Absent columns
// leave the fields unset rather than zero.
func sheetProfit(row []any, cols map[Field]int, o *NormalizedOrder) {
	if idx := cols[FieldProfit]; idx >= 0 {
		if cell := cellAt(row, idx); cell != nil && cellString(cell) != "" {
			p := ParseMoney(cell)
			o.Profit = &p
		}
	}
	if idx := cols[FieldProfitMargin]; idx >= 0 {
		if m, ok := ParsePercentage(cellAt(row, idx)); ok {
			o.ProfitMargin = &m
		}
	}
}
