package parser

import (
	"log/slog"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// aggregatorColumns maps the generic multi-marketplace hub export. The
// platform column and the platform-order-number column share the word
// "plataforma", so both sides carry negative guards: phrase-level matching,
// not mere substring.
var aggregatorColumns = SynonymTable{
	FieldPlatformName: {
		{Contains: []string{"plataforma"}, Exclude: []string{"pedido"}},
		{Equals: "platform"},
	},
	FieldPlatformOrderID: {
		{Contains: []string{"pedido", "plataforma"}},
		{Contains: []string{"platform order"}},
	},
	FieldExternalOrderID: {
		{Contains: []string{"pedido"}, Exclude: []string{"plataforma", "data"}},
		{Contains: []string{"order"}, Exclude: []string{"platform", "date"}},
	},
	// Fixed candidate-word list for the date-like column.
	FieldOrderDate: {
		{Contains: []string{"ordenado"}},
		{Contains: []string{"data"}, Exclude: []string{"liquidação", "liquidacao"}},
		{Contains: []string{"date"}},
		{Contains: []string{"time"}},
		{Contains: []string{"liquidação"}},
		{Contains: []string{"liquidacao"}},
	},
	FieldSettlementDate: {
		{Contains: []string{"liquidação"}},
		{Contains: []string{"liquidacao"}},
	},
	FieldOrderValue: {
		{Contains: []string{"valor do pedido"}},
		{Contains: []string{"valor total"}},
		{Contains: []string{"total do pedido"}},
	},
	FieldProductSales: {
		{Contains: []string{"vendas de produtos"}},
		{Contains: []string{"vendas do produto"}},
	},
	FieldRevenue: {
		{Contains: []string{"receita"}},
		{Contains: []string{"valor líquido"}},
		{Contains: []string{"valor liquido"}},
	},
	FieldCommissions: {
		{Contains: []string{"comissão"}},
		{Contains: []string{"comissao"}},
	},
	FieldFees: {
		{Contains: []string{"taxas"}},
		{Contains: []string{"tarifas"}},
	},
	FieldRefunds: {
		{Contains: []string{"reembolso"}},
		{Contains: []string{"devoluç"}},
	},
	FieldProductCost: {
		{Contains: []string{"custo"}},
	},
	FieldSKU: {
		{Contains: []string{"sku"}},
	},
	FieldQuantity: {
		{Contains: []string{"quantidade"}},
		{Equals: "qtd"},
	},
	FieldStoreName: {
		{Contains: []string{"loja"}},
	},
}

// platformRules map normalized (lower-cased, accent-stripped) platform label
// substrings to canonical marketplaces. Order matters: first hit wins.
var platformRules = []struct {
	substr      string
	marketplace Marketplace
}{
	{"mercado", MarketplaceMeli},
	{"meli", MarketplaceMeli},
	{"shopee", MarketplaceShopee},
	{"shein", MarketplaceShein},
	{"tik tok", MarketplaceTikTok},
	{"tiktok", MarketplaceTikTok},
}

// fallbackMarketplace is applied when a platform label is read but matches no
// known rule. Known heuristic weakness, preserved from the original import
// flow: unrecognized labels are silently attributed to meli. Logged at WARN.
const fallbackMarketplace = MarketplaceMeli

// AggregatorParser handles the generic multi-marketplace hub export. It is
// tried only after every native parser has declined the sheet, and infers the
// marketplace from the sampled values of the "Plataforma" column rather than
// from the header signature.
type AggregatorParser struct {
	columns SynonymTable
	logger  *slog.Logger
}

// NewAggregatorParser builds the fallback hub-format parser.
func NewAggregatorParser(logger *slog.Logger) *AggregatorParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &AggregatorParser{columns: aggregatorColumns, logger: logger}
}

// Parse validates the three-column acceptance rule, infers the marketplace
// from the platform column, and extracts normalized orders under the
// aggregator's net-revenue arithmetic. Returns nil on any acceptance or
// inference failure so the detector can surface a total-detection failure.
// hint is an optional caller-supplied marketplace label consulted only when
// the sheet itself yields no platform value.
func (p *AggregatorParser) Parse(rows [][]any, hint string) *Result {
	if len(rows) < 2 {
		return nil
	}
	header := NormalizeHeader(rows[0])
	cols := p.columns.MapColumns(header)

	// All three acceptance columns must be present; partial matches are a
	// no-match, never a partial success.
	if cols[FieldPlatformName] < 0 || cols[FieldPlatformOrderID] < 0 || cols[FieldOrderDate] < 0 {
		return nil
	}

	marketplace, ok := p.inferMarketplace(rows[1:], cols[FieldPlatformName], hint)
	if !ok {
		return nil
	}

	var orders []NormalizedOrder
	for _, row := range rows[1:] {
		o, ok := p.extractRow(row, cols)
		if !ok {
			continue
		}
		orders = append(orders, o)
	}
	if len(orders) == 0 {
		return nil
	}
	return &Result{Marketplace: marketplace, Orders: orders}
}

// inferMarketplace samples the platform column row by row until a non-empty
// value appears; blank cells are common in hub exports, so the first row is
// never trusted alone.
func (p *AggregatorParser) inferMarketplace(dataRows [][]any, platformCol int, hint string) (Marketplace, bool) {
	for _, row := range dataRows {
		label := cellString(cellAt(row, platformCol))
		if label == "" {
			continue
		}
		normalized := normalizePlatformLabel(label)
		for _, rule := range platformRules {
			if strings.Contains(normalized, rule.substr) {
				return rule.marketplace, true
			}
		}
		p.logger.Warn("unrecognized platform label, attributing to fallback marketplace",
			slog.String("label", label),
			slog.String("fallback", string(fallbackMarketplace)),
		)
		return fallbackMarketplace, true
	}

	// Sheet yielded nothing; the caller-supplied hint is the secondary signal.
	if hint != "" {
		normalized := normalizePlatformLabel(hint)
		for _, rule := range platformRules {
			if strings.Contains(normalized, rule.substr) {
				return rule.marketplace, true
			}
		}
	}
	return "", false
}

func (p *AggregatorParser) extractRow(row []any, cols map[Field]int) (NormalizedOrder, bool) {
	orderID := stringAt(row, cols, FieldPlatformOrderID)
	if orderID == "" {
		return NormalizedOrder{}, false
	}
	orderDate, ok := ParseDate(cellAt(row, cols[FieldOrderDate]))
	if !ok {
		return NormalizedOrder{}, false
	}

	// The hub's revenue/product-sales column is documented as already net of
	// marketplace fees and commissions. A non-positive value is a data
	// quality signal, not a legitimate zero-profit order.
	baseRevenue := moneyAt(row, cols, FieldRevenue)
	if baseRevenue == 0 {
		baseRevenue = moneyAt(row, cols, FieldProductSales)
	}
	if baseRevenue <= 0 {
		return NormalizedOrder{}, false
	}

	o := NormalizedOrder{
		PlatformOrderID: orderID,
		ExternalOrderID: stringAt(row, cols, FieldExternalOrderID),
		PlatformName:    stringAt(row, cols, FieldPlatformName),
		StoreName:       stringAt(row, cols, FieldStoreName),
		OrderDate:       orderDate,
		SKU:             defaultSKU,
		Quantity:        1,

		OrderValue:   moneyAt(row, cols, FieldOrderValue),
		Revenue:      baseRevenue,
		ProductSales: moneyAt(row, cols, FieldProductSales),
		Commissions:  moneyAt(row, cols, FieldCommissions),
		Refunds:      moneyAt(row, cols, FieldRefunds),
		ProductCost:  moneyAt(row, cols, FieldProductCost),
		Fees:         moneyAt(row, cols, FieldFees),
	}
	if sku := stringAt(row, cols, FieldSKU); sku != "" {
		o.SKU = sku
	}
	if idx := cols[FieldQuantity]; idx >= 0 {
		o.Quantity = parseQuantity(cellAt(row, idx))
	}
	if idx := cols[FieldSettlementDate]; idx >= 0 && idx != cols[FieldOrderDate] {
		if d, ok := ParseDate(cellAt(row, idx)); ok {
			o.SettlementDate = &d
		}
	}
	if o.OrderValue == 0 {
		o.OrderValue = baseRevenue
	}

	// Revenue is already post-fee: fees and commissions are captured for
	// display only and must not be subtracted again.
	profit := decimal.NewFromFloat(baseRevenue).
		Sub(decimal.NewFromFloat(o.ProductCost)).
		Sub(decimal.NewFromFloat(o.Refunds))
	pf, _ := profit.Float64()
	o.Profit = &pf

	// Margin over the gross order total when available keeps the figure
	// comparable with the native marketplaces' gross-revenue margins.
	denominator := o.OrderValue
	if denominator <= 0 {
		denominator = baseRevenue
	}
	if denominator > 0 {
		m, _ := profit.Div(decimal.NewFromFloat(denominator)).Mul(decimal.NewFromInt(100)).Float64()
		o.ProfitMargin = &m
	}
	return o, true
}

// normalizePlatformLabel lower-cases and strips accents so "Mercado Livre",
// "MERCADO LIVRE" and "mercado livre" all hit the same rule.
func normalizePlatformLabel(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return strings.ToLower(strings.TrimSpace(s))
	}
	return out
}
