package parser

import "github.com/cloudflare/ahocorasick"

var sheinColumns = SynonymTable{
	FieldPlatformOrderID: {
		{Contains: []string{"número do pedido"}},
		{Contains: []string{"numero do pedido"}},
		{Contains: []string{"pedido"}, Exclude: []string{"plataforma", "data"}},
	},
	FieldOrderDate: {
		{Contains: []string{"data do pedido"}},
		{Contains: []string{"data"}, Exclude: []string{"liquidação", "liquidacao"}},
	},
	FieldSettlementDate: {
		{Contains: []string{"data de liquidação"}},
		{Contains: []string{"data de liquidacao"}},
	},
	FieldRevenue: {
		{Contains: []string{"valor de liquidação"}},
		{Contains: []string{"valor de liquidacao"}},
		{Contains: []string{"receita"}},
	},
	FieldCommissions: {
		{Contains: []string{"comissão"}},
		{Contains: []string{"comissao"}},
	},
	FieldFees: {
		{Contains: []string{"taxa de serviço de envio"}},
		{Contains: []string{"taxa de servico de envio"}},
		{Contains: []string{"taxas"}},
	},
	FieldShippingFee: {
		{Contains: []string{"taxa de serviço de envio"}},
		{Contains: []string{"taxa de servico de envio"}},
	},
	FieldRefunds: {
		{Contains: []string{"reembolso"}},
		{Contains: []string{"devoluç"}},
	},
	FieldProductCost: {
		{Contains: []string{"custo do produto"}},
		{Contains: []string{"custo"}, Exclude: []string{"envio"}},
	},
	FieldSKU: {
		{Contains: []string{"sku"}},
	},
	FieldQuantity: {
		{Contains: []string{"quantidade"}},
		{Equals: "qtd"},
	},
	FieldStoreName: {
		{Contains: []string{"nome da loja"}},
		{Equals: "loja"},
	},
}

type sheinParser struct {
	columns    SynonymTable
	indicators *ahocorasick.Matcher
	rejects    *ahocorasick.Matcher
}

// NewSheinParser builds the Shein native-format parser.
func NewSheinParser() Parser {
	return &sheinParser{
		columns:    sheinColumns,
		indicators: phraseMatcher(sheinPhrases),
		rejects:    phraseMatcher(concatPhrases(meliPhrases, shopeePhrases, tiktokPhrases)),
	}
}

func (p *sheinParser) Name() Marketplace { return MarketplaceShein }

func (p *sheinParser) Recognize(header []string) bool {
	return recognizeNative(header, p.columns, p.indicators, p.rejects)
}

// Extract applies the legacy profit model, like meli: gross revenue with
// explicit deductions.
func (p *sheinParser) Extract(rows [][]any) []NormalizedOrder {
	return extractRows(rows, p.columns, func(_ []any, _ map[Field]int, o *NormalizedOrder) {
		legacyProfit(o)
	})
}
