package parser

import "github.com/cloudflare/ahocorasick"

// Indicator phrases unique to each marketplace's native export. Every native
// parser rejects a sheet outright when it carries another marketplace's
// unique phrases, regardless of how many generic terms also match.
var (
	meliPhrases   = []string{"mercado livre", "nº de venda", "n.º de venda", "tarifa de venda"}
	shopeePhrases = []string{"shopee", "taxa de transação", "taxa de transacao", "cupom shopee"}
	sheinPhrases  = []string{"shein", "valor de liquidação", "valor de liquidacao", "taxa de serviço de envio", "taxa de servico de envio"}
	tiktokPhrases = []string{"tiktok", "tik tok", "descontos sobre vendas"}
)

func concatPhrases(lists ...[]string) []string {
	var out []string
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}

var meliColumns = SynonymTable{
	FieldPlatformOrderID: {
		{Contains: []string{"n.º de venda"}},
		{Contains: []string{"nº de venda"}},
		{Contains: []string{"número de venda"}},
		{Contains: []string{"numero de venda"}},
		{Contains: []string{"venda", "nº"}},
	},
	FieldOrderDate: {
		{Contains: []string{"data da venda"}},
		{Contains: []string{"data de venda"}},
		{Contains: []string{"data"}, Exclude: []string{"liquidação", "liquidacao", "pagamento", "repasse"}},
	},
	FieldSettlementDate: {
		{Contains: []string{"data de liquidação"}},
		{Contains: []string{"data de liquidacao"}},
		{Contains: []string{"data do repasse"}},
	},
	FieldRevenue: {
		{Contains: []string{"receita por produtos"}},
		{Contains: []string{"receita de produtos"}},
		{Contains: []string{"receita"}, Exclude: []string{"envio"}},
	},
	FieldOrderValue: {
		{Contains: []string{"total da venda"}},
		{Contains: []string{"valor total"}},
	},
	FieldCommissions: {
		{Contains: []string{"tarifa de venda"}},
		{Contains: []string{"tarifas de venda"}},
		{Contains: []string{"comissão"}},
		{Contains: []string{"comissao"}},
	},
	FieldFees: {
		{Contains: []string{"tarifas de envio"}},
		{Contains: []string{"custos de envio"}},
		{Contains: []string{"tarifas"}, Exclude: []string{"venda"}},
	},
	FieldShippingFee: {
		{Contains: []string{"tarifas de envio"}},
		{Contains: []string{"frete"}},
	},
	FieldRefunds: {
		{Contains: []string{"reembolso"}},
		{Contains: []string{"devoluç"}},
		{Contains: []string{"estorno"}},
	},
	FieldProductCost: {
		{Contains: []string{"custo do produto"}},
		{Contains: []string{"custo"}, Exclude: []string{"envio"}},
	},
	FieldSKU: {
		{Equals: "sku"},
		{Contains: []string{"sku"}},
	},
	FieldQuantity: {
		{Contains: []string{"unidades"}},
		{Contains: []string{"quantidade"}},
		{Equals: "qtd"},
	},
	FieldStoreName: {
		{Contains: []string{"nome da loja"}},
		{Equals: "loja"},
	},
	FieldPlatformName: {
		{Contains: []string{"canal de venda"}},
	},
}

type meliParser struct {
	columns    SynonymTable
	indicators *ahocorasick.Matcher
	rejects    *ahocorasick.Matcher
}

// NewMeliParser builds the Mercado Livre native-format parser.
func NewMeliParser() Parser {
	return &meliParser{
		columns:    meliColumns,
		indicators: phraseMatcher(meliPhrases),
		rejects:    phraseMatcher(concatPhrases(shopeePhrases, sheinPhrases, tiktokPhrases)),
	}
}

func (p *meliParser) Name() Marketplace { return MarketplaceMeli }

func (p *meliParser) Recognize(header []string) bool {
	return recognizeNative(header, p.columns, p.indicators, p.rejects)
}

// Extract applies the legacy profit model: Mercado Livre reports gross
// revenue and itemizes every deduction.
func (p *meliParser) Extract(rows [][]any) []NormalizedOrder {
	return extractRows(rows, p.columns, func(_ []any, _ map[Field]int, o *NormalizedOrder) {
		legacyProfit(o)
	})
}
