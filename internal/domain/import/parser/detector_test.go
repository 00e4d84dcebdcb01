package parser

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDetector_Detect(t *testing.T) {
	d := NewDetector(discardLogger())

	t.Run("routes each native export to its marketplace", func(t *testing.T) {
		cases := []struct {
			name string
			rows [][]any
			want Marketplace
		}{
			{
				name: "meli",
				rows: meliSheet([]any{"2000123", "15/01/2024", "100,00", "10,00", "5,00", "40,00", "0", "SKU-1", "1"}),
				want: MarketplaceMeli,
			},
			{
				name: "shopee",
				rows: shopeeSheet([]any{"BR12345", "2024-01-10", "250,00", "25,00", "5,00", "10,00", "80,00", "32%", "SKU-9", "1"}),
				want: MarketplaceShopee,
			},
			{
				name: "shein",
				rows: sheinSheet([]any{"SN-777", "10/02/2024", "20/02/2024", "200,00", "30,00", "10,00", "60,00", "0", "SKU-7"}),
				want: MarketplaceShein,
			},
			{
				name: "tiktok",
				rows: tiktokSheet([]any{"TT-1", "2024-03-01", "150,00", "5,00", "15,00", "45,00", "30%", "SKU-3", "1"}),
				want: MarketplaceTikTok,
			},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				result, err := d.Detect(tc.rows, "")
				require.NoError(t, err)
				assert.Equal(t, tc.want, result.Marketplace)
				assert.Len(t, result.Orders, 1)
			})
		}
	})

	t.Run("falls back to the aggregator for hub exports", func(t *testing.T) {
		rows := hubSheet(
			[]any{"Shopee", "HUB-1", "EXT-1", "05/01/2024", "100,00", "80,00", "3,00", "7,00", "30,00", "0", "SKU-X", "1", "Loja"},
		)
		result, err := d.Detect(rows, "")
		require.NoError(t, err)
		assert.Equal(t, MarketplaceShopee, result.Marketplace)
	})

	t.Run("recognition without extracted orders is not a match", func(t *testing.T) {
		// The header is a perfectly valid meli signature, but every row is
		// dropped; the detector must keep going and end in total failure
		// instead of returning an empty meli result.
		rows := meliSheet(
			[]any{"2000126", "15/01/2024", "0", "0", "0", "0", "0", "", ""},
		)
		result, err := d.Detect(rows, "")
		assert.Nil(t, result)
		var noMatch *NoMatchError
		require.ErrorAs(t, err, &noMatch)
	})

	t.Run("empty grid fails cleanly", func(t *testing.T) {
		result, err := d.Detect(nil, "")
		assert.Nil(t, result)
		var noMatch *NoMatchError
		require.ErrorAs(t, err, &noMatch)
		assert.Zero(t, noMatch.RowCount)
	})

	t.Run("total failure carries header diagnostics", func(t *testing.T) {
		rows := [][]any{
			{"receit", "qty", "when"},
			{"100", "1", "05/01/2024"},
		}
		result, err := d.Detect(rows, "")
		assert.Nil(t, result)

		var noMatch *NoMatchError
		require.ErrorAs(t, err, &noMatch)
		assert.Equal(t, []string{"receit", "qty", "when"}, noMatch.Header)
		assert.Equal(t, 1, noMatch.RowCount)
		assert.Contains(t, err.Error(), "no marketplace format matched")

		found := false
		for _, hint := range noMatch.Hints {
			if strings.Contains(hint, `"receit"`) && strings.Contains(hint, `"receita"`) {
				found = true
			}
		}
		assert.True(t, found, "expected a near-miss hint for %q, got %v", "receit", noMatch.Hints)
	})
}

func TestDetector_PanicIsolation(t *testing.T) {
	d := &Detector{
		parsers:    []Parser{panickyParser{}, NewMeliParser()},
		aggregator: NewAggregatorParser(discardLogger()),
		logger:     discardLogger(),
	}

	rows := meliSheet([]any{"2000123", "15/01/2024", "100,00", "0", "0", "0", "0", "", ""})
	result, err := d.Detect(rows, "")
	require.NoError(t, err)
	assert.Equal(t, MarketplaceMeli, result.Marketplace)
	require.Len(t, result.Orders, 1)
}

type panickyParser struct{}

func (panickyParser) Name() Marketplace                 { return Marketplace("broken") }
func (panickyParser) Recognize([]string) bool           { panic("boom") }
func (panickyParser) Extract([][]any) []NormalizedOrder { return nil }
