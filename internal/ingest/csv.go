package ingest

import (
	"encoding/csv"
	"fmt"
	"strings"
)

const utf8BOM = "\ufeff"

// Record is one data row keyed by header.
type Record map[string]string

// Get returns the trimmed value of column, or "".
func (r Record) Get(column string) string {
	return strings.TrimSpace(r[column])
}

// ParseWarning is a non-fatal issue found while parsing.
type ParseWarning struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

// ParseResult holds the rows of one tabular source.
type ParseResult struct {
	Headers  []string       `json:"headers"`
	Records  []Record       `json:"records"`
	Warnings []ParseWarning `json:"warnings,omitempty"`
}

// HeaderFunc reports whether cells is the header row.
type HeaderFunc func(cells []string) bool

// ParseCSV parses comma separated text whose first non-blank line is the header.
//
// The text is split on line breaks before fields are parsed, so a quoted field
// cannot span lines. Such lines are kept as parsed and flagged with a warning.
func ParseCSV(text string) ParseResult {
	return ParseCSVWithHeader(text, nil)
}

// ParseCSVWithHeader is ParseCSV for exports that carry a preamble: lines are
// skipped until isHeader accepts one. A nil isHeader accepts the first line.
func ParseCSVWithHeader(text string, isHeader HeaderFunc) ParseResult {
	text = strings.TrimPrefix(text, utf8BOM)

	var rows []row
	var warnings []ParseWarning
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		cells, err := ParseLine(line)
		if err != nil {
			warnings = append(warnings, ParseWarning{Line: i + 1, Message: err.Error()})
			continue
		}
		if endsInsideQuote(line) {
			warnings = append(warnings, ParseWarning{
				Line:    i + 1,
				Message: "quoted field is not closed on this line; multi-line fields are not supported",
			})
		}
		rows = append(rows, row{line: i + 1, cells: cells})
	}

	res := fromRows(rows, isHeader)
	res.Warnings = append(warnings, res.Warnings...)
	return res
}

// ParseLine splits one line into fields. A doubled quote inside a quoted field
// is a literal quote.
func ParseLine(line string) ([]string, error) {
	r := csv.NewReader(strings.NewReader(line))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	cells, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("parse line: %w", err)
	}
	return cells, nil
}

type row struct {
	line  int
	cells []string
}

func fromRows(rows []row, isHeader HeaderFunc) ParseResult {
	var res ParseResult

	start := -1
	for i, r := range rows {
		if isHeader == nil || isHeader(r.cells) {
			start = i
			break
		}
	}
	if start < 0 {
		if len(rows) > 0 {
			res.Warnings = append(res.Warnings, ParseWarning{Line: rows[0].line, Message: "no header row found"})
		}
		return res
	}

	res.Headers = headers(rows[start].cells)
	for _, r := range rows[start+1:] {
		cells := r.cells
		switch {
		case len(cells) < len(res.Headers):
			padded := make([]string, len(res.Headers))
			copy(padded, cells)
			cells = padded
		case len(cells) > len(res.Headers):
			res.Warnings = append(res.Warnings, ParseWarning{
				Line:    r.line,
				Message: fmt.Sprintf("row has %d columns, expected %d; truncating", len(cells), len(res.Headers)),
			})
			cells = cells[:len(res.Headers)]
		}
		if blank(cells) {
			continue
		}
		rec := make(Record, len(res.Headers))
		for i, h := range res.Headers {
			rec[h] = cells[i]
		}
		res.Records = append(res.Records, rec)
	}
	return res
}

// headers trims header cells and makes duplicates unique.
func headers(cells []string) []string {
	out := make([]string, len(cells))
	seen := make(map[string]int, len(cells))
	for i, c := range cells {
		h := strings.TrimSpace(strings.TrimPrefix(c, utf8BOM))
		if h == "" {
			h = fmt.Sprintf("column%d", i+1)
		}
		seen[h]++
		if n := seen[h]; n > 1 {
			h = fmt.Sprintf("%s_%d", h, n)
		}
		out[i] = h
	}
	return out
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// endsInsideQuote reports whether a quoted field opened on line is still open
// at its end.
func endsInsideQuote(line string) bool {
	inQuotes := false
	atFieldStart := true
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case inQuotes && c == '"':
			if i+1 < len(line) && line[i+1] == '"' {
				i++
				continue
			}
			inQuotes = false
		case !inQuotes && c == '"' && atFieldStart:
			inQuotes = true
		}
		atFieldStart = !inQuotes && c == ','
	}
	return inQuotes
}
