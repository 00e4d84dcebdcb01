package parser

import "github.com/cloudflare/ahocorasick"

var shopeeColumns = SynonymTable{
	FieldPlatformOrderID: {
		{Contains: []string{"id do pedido"}},
		{Contains: []string{"pedido"}, Exclude: []string{"plataforma", "externo", "data"}},
	},
	FieldOrderDate: {
		{Contains: []string{"data de criação do pedido"}},
		{Contains: []string{"data de criacao do pedido"}},
		{Contains: []string{"data do pedido"}},
		{Contains: []string{"data"}, Exclude: []string{"liquidação", "liquidacao", "repasse"}},
	},
	FieldSettlementDate: {
		{Contains: []string{"data do repasse"}},
		{Contains: []string{"data de liquidação"}},
	},
	FieldOrderValue: {
		{Contains: []string{"valor total"}},
		{Contains: []string{"total do pedido"}},
	},
	FieldProductSales: {
		{Contains: []string{"subtotal do produto"}},
		{Contains: []string{"preço acordado"}},
		{Contains: []string{"valor do produto"}},
	},
	FieldShippingFeeBuyer: {
		{Contains: []string{"envio", "comprador"}},
		{Contains: []string{"frete pago pelo comprador"}},
	},
	FieldPlatformDiscount: {
		{Contains: []string{"cupom shopee"}},
		{Contains: []string{"desconto da plataforma"}},
	},
	FieldCommissions: {
		{Contains: []string{"taxa de comissão"}},
		{Contains: []string{"taxa de comissao"}},
		{Contains: []string{"comissão"}},
	},
	FieldTransactionFee: {
		{Contains: []string{"taxa de transação"}},
		{Contains: []string{"taxa de transacao"}},
	},
	FieldShippingFee: {
		{Contains: []string{"taxa de envio"}, Exclude: []string{"comprador"}},
	},
	FieldOtherFees: {
		{Contains: []string{"outras taxas"}},
		{Contains: []string{"taxa de serviço"}, Exclude: []string{"envio"}},
	},
	FieldTotalFees: {
		{Contains: []string{"total de taxas"}},
		{Contains: []string{"taxas totais"}},
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
		{Contains: []string{"número de referência sku"}},
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

type shopeeParser struct {
	columns    SynonymTable
	indicators *ahocorasick.Matcher
	rejects    *ahocorasick.Matcher
}

// NewShopeeParser builds the Shopee native-format parser. Shein and TikTok
// exports share several generic Shopee-looking terms, so their unique phrases
// suppress recognition entirely when present.
func NewShopeeParser() Parser {
	return &shopeeParser{
		columns:    shopeeColumns,
		indicators: phraseMatcher(shopeePhrases),
		rejects:    phraseMatcher(concatPhrases(meliPhrases, sheinPhrases, tiktokPhrases)),
	}
}

func (p *shopeeParser) Name() Marketplace { return MarketplaceShopee }

func (p *shopeeParser) Recognize(header []string) bool {
	return recognizeNative(header, p.columns, p.indicators, p.rejects)
}

// Extract trusts the sheet's own "Lucro"/"Margem de Lucro" columns instead of
// re-deriving profit from the fee breakdown.
func (p *shopeeParser) Extract(rows [][]any) []NormalizedOrder {
	return extractRows(rows, p.columns, sheetProfit)
}
