package parser

import "strings"

// Field is a canonical semantic field name resolved against header text.
type Field string

const (
	FieldPlatformOrderID  Field = "platformOrderId"
	FieldExternalOrderID  Field = "externalOrderId"
	FieldPlatformName     Field = "platformName"
	FieldStoreName        Field = "storeName"
	FieldOrderDate        Field = "orderDate"
	FieldSettlementDate   Field = "settlementDate"
	FieldSKU              Field = "sku"
	FieldQuantity         Field = "quantity"
	FieldOrderValue       Field = "orderValue"
	FieldRevenue          Field = "revenue"
	FieldProductSales     Field = "productSales"
	FieldShippingFeeBuyer Field = "shippingFeeBuyer"
	FieldPlatformDiscount Field = "platformDiscount"
	FieldCommissions      Field = "commissions"
	FieldTransactionFee   Field = "transactionFee"
	FieldShippingFee      Field = "shippingFee"
	FieldOtherFees        Field = "otherPlatformFees"
	FieldTotalFees        Field = "totalFees"
	FieldRefunds          Field = "refunds"
	FieldProductCost      Field = "productCost"
	FieldFees             Field = "fees"
	FieldProfit           Field = "profit"
	FieldProfitMargin     Field = "profitMargin"
)

// Matcher is a single synonym predicate against a lower-cased header cell.
// Equals requires an exact match; otherwise every Contains substring must be
// present and no Exclude substring may be. Exclude is the negative guard that
// disambiguates headers sharing generic words (e.g. an order-id column whose
// header also mentions "plataforma") without resorting to scoring.
type Matcher struct {
	Equals   string
	Contains []string
	Exclude  []string
}

// Match reports whether the header cell satisfies this predicate.
func (m Matcher) Match(cell string) bool {
	if m.Equals != "" {
		return cell == m.Equals
	}
	if len(m.Contains) == 0 {
		return false
	}
	for _, sub := range m.Contains {
		if !strings.Contains(cell, sub) {
			return false
		}
	}
	for _, sub := range m.Exclude {
		if strings.Contains(cell, sub) {
			return false
		}
	}
	return true
}

// SynonymTable maps canonical fields to an ordered list of matcher
// predicates. Tables are static configuration: adding a marketplace synonym
// never touches parsing logic.
type SynonymTable map[Field][]Matcher

// FindColumn resolves a canonical field to a column index over an already
// lower-cased header row. Resolution is first-match in column order — the
// first header cell satisfying any of the field's predicates wins. Returns -1
// when the field is absent, which callers treat as unknown, not an error.
func (t SynonymTable) FindColumn(header []string, field Field) int {
	matchers := t[field]
	if len(matchers) == 0 {
		return -1
	}
	for i, cell := range header {
		if cell == "" {
			continue
		}
		for _, m := range matchers {
			if m.Match(cell) {
				return i
			}
		}
	}
	return -1
}

// MapColumns resolves every field in the table at once. Built strictly from
// the header row and never mutated afterwards.
func (t SynonymTable) MapColumns(header []string) map[Field]int {
	out := make(map[Field]int, len(t))
	for field := range t {
		out[field] = t.FindColumn(header, field)
	}
	return out
}

// Synonyms returns the flat list of substring synonyms known to the table,
// used by detection diagnostics to suggest near-miss header names.
func (t SynonymTable) Synonyms() []string {
	var out []string
	for _, matchers := range t {
		for _, m := range matchers {
			if m.Equals != "" {
				out = append(out, m.Equals)
			}
			out = append(out, m.Contains...)
		}
	}
	return out
}
