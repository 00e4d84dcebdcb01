package parser

import "github.com/cloudflare/ahocorasick"

var tiktokColumns = SynonymTable{
	FieldPlatformOrderID: {
		{Contains: []string{"id do pedido"}},
		{Contains: []string{"order id"}},
		{Contains: []string{"pedido"}, Exclude: []string{"plataforma", "data"}},
	},
	FieldOrderDate: {
		{Contains: []string{"data de criação do pedido"}},
		{Contains: []string{"data de criacao do pedido"}},
		{Contains: []string{"created time"}},
		{Contains: []string{"data"}, Exclude: []string{"liquidação", "liquidacao"}},
	},
	FieldSettlementDate: {
		{Contains: []string{"data de liquidação"}},
		{Contains: []string{"data de liquidacao"}},
		{Contains: []string{"settled time"}},
	},
	FieldRevenue: {
		{Contains: []string{"receita total"}},
		{Contains: []string{"total revenue"}},
		{Contains: []string{"receita"}},
	},
	FieldOrderValue: {
		{Contains: []string{"valor total"}},
		{Contains: []string{"total do pedido"}},
	},
	FieldPlatformDiscount: {
		{Contains: []string{"descontos sobre vendas"}},
		{Contains: []string{"desconto da plataforma"}},
	},
	FieldCommissions: {
		{Contains: []string{"taxa de comissão"}},
		{Contains: []string{"taxa de comissao"}},
		{Contains: []string{"comissão"}},
	},
	FieldOtherFees: {
		{Contains: []string{"outras taxas"}},
	},
	FieldTotalFees: {
		{Contains: []string{"total de taxas"}},
	},
	FieldRefunds: {
		{Contains: []string{"reembolso"}},
		{Contains: []string{"devoluç"}},
	},
	FieldProductCost: {
		{Contains: []string{"custo do produto"}},
		{Contains: []string{"custo"}, Exclude: []string{"envio"}},
	},
	FieldProfit: {
		{Equals: "lucro"},
		{Contains: []string{"lucro"}, Exclude: []string{"margem"}},
	},
	FieldProfitMargin: {
		{Contains: []string{"margem de lucro"}},
		{Contains: []string{"margem"}},
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

type tiktokParser struct {
	columns    SynonymTable
	indicators *ahocorasick.Matcher
	rejects    *ahocorasick.Matcher
}

// NewTikTokParser builds the TikTok Shop native-format parser.
func NewTikTokParser() Parser {
	return &tiktokParser{
		columns:    tiktokColumns,
		indicators: phraseMatcher(tiktokPhrases),
		rejects:    phraseMatcher(concatPhrases(meliPhrases, shopeePhrases, sheinPhrases)),
	}
}

func (p *tiktokParser) Name() Marketplace { return MarketplaceTikTok }

func (p *tiktokParser) Recognize(header []string) bool {
	return recognizeNative(header, p.columns, p.indicators, p.rejects)
}

// Extract trusts the sheet-embedded profit columns, like shopee.
func (p *tiktokParser) Extract(rows [][]any) []NormalizedOrder {
	return extractRows(rows, p.columns, sheetProfit)
}
