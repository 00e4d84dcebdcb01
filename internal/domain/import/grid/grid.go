// Package grid turns uploaded spreadsheet files into a uniform cell grid.
// Excel and CSV uploads both come out as [][]any rows so the marketplace
// detection layer never cares about the container format.
package grid

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	ErrEmptyFile         = errors.New("file is empty")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrInvalidDelimiter  = errors.New("could not detect valid delimiter")
)

// Load reads an uploaded export into a cell grid, dispatching on the file
// extension. The first returned row is the header row.
func Load(filename string, r io.Reader) ([][]any, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xls":
		return FromExcel(r)
	case ".csv", ".txt":
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read file: %w", err)
		}
		return FromCSV(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(filename))
	}
}

// preferredSheets are tried by name before falling back to the first sheet.
// Marketplace exports usually ship a single sheet, but hub tools add summary
// tabs in front of the data.
var preferredSheets = []string{
	"pedidos", "orders", "vendas", "relatório", "relatorio", "data", "sheet1",
}

// FromExcel reads the order sheet of an XLSX workbook into a cell grid.
func FromExcel(r io.Reader) ([][]any, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheetName := findOrderSheet(f)
	if sheetName == "" {
		return nil, ErrEmptyFile
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheetName, err)
	}

	grid := toGrid(rows)
	if len(grid) == 0 {
		return nil, ErrEmptyFile
	}
	return grid, nil
}

// FromCSV reads delimiter-separated data into a cell grid. The delimiter is
// detected from the header line; marketplace exports use ';', '\t' and ','
// interchangeably.
func FromCSV(data []byte) ([][]any, error) {
	data = bytes.TrimPrefix(data, []byte("\uFEFF"))
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}

	firstLine := data
	if idx := bytes.IndexByte(data, '\n'); idx >= 0 {
		firstLine = data[:idx]
	}
	delimiter := detectDelimiter(string(firstLine))
	if delimiter == 0 {
		return nil, ErrInvalidDelimiter
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse CSV: %w", err)
		}
		rows = append(rows, record)
	}

	grid := toGrid(rows)
	if len(grid) == 0 {
		return nil, ErrEmptyFile
	}
	return grid, nil
}

// findOrderSheet picks the sheet most likely to hold order rows.
func findOrderSheet(f *excelize.File) string {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return ""
	}
	for _, preferred := range preferredSheets {
		for _, sheet := range sheets {
			if strings.EqualFold(sheet, preferred) {
				return sheet
			}
		}
	}
	return sheets[0]
}

func detectDelimiter(line string) rune {
	delimiters := []rune{';', '\t', ',', '|'}
	best := rune(0)
	bestCount := 0
	for _, d := range delimiters {
		if count := strings.Count(line, string(d)); count > bestCount {
			bestCount = count
			best = d
		}
	}
	return best
}

// toGrid converts string rows into the detection layer's cell grid, dropping
// leading all-empty rows and columns. Exports saved by hand in Excel often
// carry a blank first column or a decorative empty row above the header.
func toGrid(rows [][]string) [][]any {
	start := 0
	for start < len(rows) && isEmptyRow(rows[start]) {
		start++
	}
	rows = rows[start:]
	if len(rows) == 0 {
		return nil
	}

	offset := leadingEmptyColumns(rows)

	grid := make([][]any, 0, len(rows))
	for i, row := range rows {
		if offset < len(row) {
			row = row[offset:]
		} else {
			row = nil
		}
		cells := make([]any, len(row))
		for j, cell := range row {
			if i == 0 && j == 0 {
				cell = strings.TrimPrefix(cell, "\uFEFF")
			}
			cells[j] = strings.TrimSpace(cell)
		}
		grid = append(grid, cells)
	}
	return grid
}

func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// leadingEmptyColumns counts columns that are empty in every row, stopping at
// the first column any row fills.
func leadingEmptyColumns(rows [][]string) int {
	offset := 0
	for {
		filled := false
		inRange := false
		for _, row := range rows {
			if offset >= len(row) {
				continue
			}
			inRange = true
			if strings.TrimSpace(row[offset]) != "" {
				filled = true
				break
			}
		}
		if filled || !inRange {
			return offset
		}
		offset++
	}
}
