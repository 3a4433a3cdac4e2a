package core

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

var (
	// ErrEmptyInput is returned when there is no header row to read.
	ErrEmptyInput = errors.New("empty file")

	// ErrInvalidDelimiter is returned by ParseDelimiter.
	ErrInvalidDelimiter = errors.New("invalid delimiter")
)

// delimiterNames lets callers name delimiters that are awkward to type.
var delimiterNames = map[string]rune{
	"comma":     ',',
	"semicolon": ';',
	"tab":       '\t',
	"pipe":      '|',
}

// candidateDelimiters are tried, in order, when no delimiter is given.
var candidateDelimiters = []rune{',', ';', '\t', '|'}

// headerPeekSize bounds how far ahead delimiter detection looks.
const headerPeekSize = 64 * 1024

// ParseOptions controls ParseDelimited.
type ParseOptions struct {
	// Delimiter forces the field separator. Zero means auto-detect.
	Delimiter rune
}

// ParsedTable is delimited text split into a header and data rows.
type ParsedTable struct {
	Columns   []string
	Rows      []RawRow
	Delimiter rune
}

// ParseDelimited reads delimited text with a header row.
//
// Input is BOM-stripped and UTF-8 sanitized first. Quotes are parsed
// leniently, rows may have any number of fields, and blank lines are
// skipped. Header cells are trimmed; data cells are kept as-is.
func ParseDelimited(r io.Reader, opts ParseOptions) (*ParsedTable, error) {
	br := bufio.NewReaderSize(WrapForParsing(r), headerPeekSize)

	delim := opts.Delimiter
	if delim == 0 {
		delim = detectDelimiter(peekLine(br))
	}

	cr := csv.NewReader(br)
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyInput
	}
	if err != nil {
		return nil, fmt.Errorf("invalid csv: %w", err)
	}

	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(h)
	}
	if len(columns) == 1 && columns[0] == "" {
		return nil, ErrNoColumns
	}

	var rows []RawRow
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("invalid csv: %w", err)
		}
		if isEmptyRow(record) {
			continue
		}
		rows = append(rows, RawRow(record))
	}

	return &ParsedTable{Columns: columns, Rows: rows, Delimiter: delim}, nil
}

// ParseDelimiter turns a user-supplied delimiter into a rune. It accepts
// one of "comma", "semicolon", "tab" or "pipe", or any single character
// except a quote or line break. The empty string means auto-detect.
func ParseDelimiter(s string) (rune, error) {
	if s == "" {
		return 0, nil
	}
	if d, ok := delimiterNames[strings.ToLower(s)]; ok {
		return d, nil
	}
	d, size := utf8.DecodeRuneInString(s)
	if size != len(s) || d == utf8.RuneError || d == '"' || d == '\r' || d == '\n' {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDelimiter, s)
	}
	return d, nil
}

// peekLine returns the first line without consuming it.
func peekLine(br *bufio.Reader) string {
	buf, _ := br.Peek(headerPeekSize)
	if i := strings.IndexByte(string(buf), '\n'); i >= 0 {
		buf = buf[:i]
	}
	return string(buf)
}

// detectDelimiter picks the candidate that appears most often in the
// header line. Ties go to the earlier candidate; no match means comma.
func detectDelimiter(line string) rune {
	best, bestCount := ',', 0
	for _, d := range candidateDelimiters {
		if n := strings.Count(line, string(d)); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
