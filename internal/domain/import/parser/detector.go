package parser

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// NoMatchError is the terminal detection failure: no native parser and the
// aggregator fallback all declined the sheet. It carries enough diagnostic
// context for an operator to adjust column naming or request a parser update.
type NoMatchError struct {
	Header   []string
	RowCount int
	Hints    []string
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("no marketplace format matched sheet (%d data rows, header: %s)",
		e.RowCount, strings.Join(e.Header, ", "))
}

// Detector runs the native parsers in a fixed, deterministic order and falls
// back to the aggregator parser. The first parser whose recognition succeeds
// AND whose extraction yields at least one order wins immediately; there is
// no cross-parser scoring.
type Detector struct {
	parsers    []Parser
	aggregator *AggregatorParser
	logger     *slog.Logger
}

// NewDetector builds the orchestrator with the standard parser order:
// meli, shopee, shein, tiktok, then the aggregator fallback.
func NewDetector(logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		parsers: []Parser{
			NewMeliParser(),
			NewShopeeParser(),
			NewSheinParser(),
			NewTikTokParser(),
		},
		aggregator: NewAggregatorParser(logger),
		logger:     logger,
	}
}

// Detect identifies the marketplace that produced the grid and extracts its
// normalized orders. hint is an optional caller-supplied marketplace label,
// consulted only by the aggregator's inference. A defect inside one parser is
// caught and treated as "does not match" so it never prevents the remaining
// parsers from being tried. On total failure the returned error is a
// *NoMatchError.
func (d *Detector) Detect(rows [][]any, hint string) (*Result, error) {
	if len(rows) == 0 {
		return nil, &NoMatchError{RowCount: 0}
	}
	header := NormalizeHeader(rows[0])

	for _, p := range d.parsers {
		if result := d.tryNative(p, header, rows); result != nil {
			return result, nil
		}
	}
	if result := d.tryAggregator(rows, hint); result != nil {
		return result, nil
	}

	return nil, &NoMatchError{
		Header:   header,
		RowCount: len(rows) - 1,
		Hints:    d.headerHints(header),
	}
}

func (d *Detector) tryNative(p Parser, header []string, rows [][]any) (result *Result) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("marketplace parser panicked, treating as no-match",
				slog.String("marketplace", string(p.Name())),
				slog.Any("panic", r),
			)
			result = nil
		}
	}()

	if !p.Recognize(header) {
		return nil
	}
	orders := p.Extract(rows)
	if len(orders) == 0 {
		// Recognition was a false positive; an empty success must not stop
		// the remaining parsers or the aggregator from being tried.
		d.logger.Debug("parser recognized sheet but extracted no orders",
			slog.String("marketplace", string(p.Name())),
		)
		return nil
	}
	return &Result{Marketplace: p.Name(), Orders: orders}
}

func (d *Detector) tryAggregator(rows [][]any, hint string) (result *Result) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("aggregator parser panicked, treating as no-match",
				slog.Any("panic", r),
			)
			result = nil
		}
	}()
	return d.aggregator.Parse(rows, hint)
}

const maxHeaderHints = 5

// headerHints suggests, for unrecognized header cells, the known synonym they
// most resemble, so a human can rename a column instead of guessing.
func (d *Detector) headerHints(header []string) []string {
	vocab := make(map[string]struct{})
	for _, table := range []SynonymTable{meliColumns, shopeeColumns, sheinColumns, tiktokColumns, aggregatorColumns} {
		for _, syn := range table.Synonyms() {
			vocab[syn] = struct{}{}
		}
	}
	known := make([]string, 0, len(vocab))
	for syn := range vocab {
		known = append(known, syn)
	}
	sort.Strings(known)

	var hints []string
	for _, cell := range header {
		if cell == "" || len(hints) >= maxHeaderHints {
			continue
		}
		if containsKnown(cell, known) {
			continue
		}
		ranks := fuzzy.RankFindFold(cell, known)
		if len(ranks) == 0 {
			continue
		}
		sort.Sort(ranks)
		best := ranks[0]
		if best.Distance <= 6 {
			hints = append(hints, fmt.Sprintf("column %q resembles known column %q", cell, best.Target))
		}
	}
	return hints
}

func containsKnown(cell string, known []string) bool {
	for _, syn := range known {
		if strings.Contains(cell, syn) {
			return true
		}
	}
	return false
}
