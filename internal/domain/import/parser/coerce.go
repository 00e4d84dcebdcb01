package parser

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

// Value coercion is deliberately best-effort: exports come from uncontrolled,
// human-edited spreadsheets, so a malformed cell degrades to zero/absent
// instead of failing the whole import. Callers must treat a zero monetary
// value as possibly "unparseable", not necessarily "actually zero".

// excelEpochOffset is the number of days between the Excel serial epoch
// (1899-12-30) and the Unix epoch (1970-01-01).
const excelEpochOffset = 25569

var dateLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
	"2006/01/02",
	"02-01-2006",
	"02.01.2006",
}

// ParseDate coerces a cell into a date. Native time values pass through,
// numeric cells are treated as Excel serials, and strings go through a layout
// list before falling back to a day/month/year split on "/" or "-".
// The boolean result is false on any unparseable input; it never panics.
func ParseDate(v any) (time.Time, bool) {
	switch c := v.(type) {
	case time.Time:
		if c.IsZero() {
			return time.Time{}, false
		}
		return c, true
	case float64:
		return fromExcelSerial(c)
	case float32:
		return fromExcelSerial(float64(c))
	case int:
		return fromExcelSerial(float64(c))
	case int64:
		return fromExcelSerial(float64(c))
	case string:
		return parseDateString(c)
	default:
		return time.Time{}, false
	}
}

func fromExcelSerial(serial float64) (time.Time, bool) {
	// Serial 1 is 1899-12-31; anything at or below zero is not a date cell.
	if serial <= 0 || serial > 200000 {
		return time.Time{}, false
	}
	secs := (serial - excelEpochOffset) * 86400
	return time.Unix(int64(math.Round(secs)), 0).UTC(), true
}

func parseDateString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	// Numeric string: some exporters serialize the Excel serial as text.
	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		return fromExcelSerial(serial)
	}

	// Last resort: split day/month/year on "/" or "-" and reconstruct.
	sep := "/"
	if !strings.Contains(s, "/") {
		sep = "-"
	}
	parts := strings.Split(s, sep)
	if len(parts) != 3 {
		return time.Time{}, false
	}
	day, errD := strconv.Atoi(strings.TrimSpace(parts[0]))
	month, errM := strconv.Atoi(strings.TrimSpace(parts[1]))
	yearPart := strings.TrimSpace(parts[2])
	if i := strings.IndexByte(yearPart, ' '); i > 0 {
		yearPart = yearPart[:i]
	}
	year, errY := strconv.Atoi(yearPart)
	if errD != nil || errM != nil || errY != nil {
		return time.Time{}, false
	}
	if year < 100 {
		year += 2000
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), true
}

var currencyMarkers = []string{"r$", "us$", "$", "€", "£", "brl", "usd", "eur"}

// ParseMoney coerces a cell into a monetary amount. Numbers pass through.
// Strings are stripped of currency symbols and whitespace, then the decimal
// separator is disambiguated: when both "," and "." appear, the later one is
// the decimal separator and the earlier is a thousands separator; a lone ","
// is treated as the decimal separator. Any failure yields 0, never an error.
func ParseMoney(v any) float64 {
	switch c := v.(type) {
	case float64:
		return c
	case float32:
		return float64(c)
	case int:
		return float64(c)
	case int64:
		return float64(c)
	case string:
		return parseMoneyString(c)
	default:
		return 0
	}
}

func parseMoneyString(s string) float64 {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0
	}
	for _, marker := range currencyMarkers {
		s = strings.ReplaceAll(s, marker, "")
	}
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)

	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = strings.Trim(s, "()")
	}

	comma := strings.LastIndex(s, ",")
	dot := strings.LastIndex(s, ".")
	switch {
	case comma >= 0 && dot >= 0:
		if comma > dot {
			// 1.234,56 — dot is thousands, comma is decimal
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			// 1,234.56 — comma is thousands
			s = strings.ReplaceAll(s, ",", "")
		}
	case comma >= 0:
		s = strings.Replace(s, ",", ".", 1)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	f, _ := d.Float64()
	if neg {
		return -f
	}
	return f
}

// ParsePercentage coerces a cell into a percentage value. A trailing "%" is
// stripped and a comma decimal is converted; a bare numeric with magnitude
// strictly between -1 and 1 is assumed to be a spreadsheet fraction and
// scaled by 100. The boolean result is false when the cell is not numeric.
func ParsePercentage(v any) (float64, bool) {
	switch c := v.(type) {
	case float64:
		return scaleFraction(c), true
	case float32:
		return scaleFraction(float64(c)), true
	case int:
		return float64(c), true
	case int64:
		return float64(c), true
	case string:
		s := strings.TrimSpace(c)
		if s == "" {
			return 0, false
		}
		explicit := strings.HasSuffix(s, "%")
		s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
		s = strings.Replace(s, ",", ".", 1)
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		if explicit {
			return f, true
		}
		return scaleFraction(f), true
	default:
		return 0, false
	}
}

func scaleFraction(f float64) float64 {
	if f > -1 && f < 1 {
		return f * 100
	}
	return f
}
