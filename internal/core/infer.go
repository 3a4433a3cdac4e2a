package core

import (
	"regexp"
	"strings"
)

// SampleSize is the number of leading non-empty values used to type a column.
const SampleSize = 100

// textPercentLimit is the share of TEXT samples above which a column is TEXT.
const textPercentLimit = 10

// numericRegex matches integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// dateRegex matches YYYY-MM-DD. It checks shape only, not calendar validity.
var dateRegex = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// booleanTokens are the values that classify as BOOLEAN.
var booleanTokens = map[string]bool{
	"true": true, "false": true,
	"yes": true, "no": true,
	"1": true, "0": true,
	"t": true, "f": true,
	"y": true, "n": true,
}

// isEmptyCell reports whether a cell carries no signal.
// Whitespace-only cells count as empty.
func isEmptyCell(s string) bool {
	return strings.TrimSpace(s) == ""
}

// ClassifyValue returns the narrowest column type a single value fits.
// Checks run in order: empty, boolean token, number, date, text.
func ClassifyValue(value string) ColumnType {
	v := strings.TrimSpace(value)
	if v == "" {
		return ColumnText
	}
	if booleanTokens[strings.ToLower(v)] {
		return ColumnBoolean
	}
	if numericRegex.MatchString(v) {
		if strings.Contains(v, ".") {
			return ColumnReal
		}
		return ColumnInteger
	}
	if dateRegex.MatchString(v) {
		return ColumnDate
	}
	return ColumnText
}

// DetermineColumnType votes over the first SampleSize non-empty values.
//
// The scan stops with TEXT as soon as TEXT votes exceed 10% of the sample.
// BOOLEAN needs a unanimous sample because "1" and "0" are numbers too.
// Otherwise the first of REAL, INTEGER, DATE with any votes wins.
func DetermineColumnType(values []string) ColumnType {
	sample := make([]string, 0, min(len(values), SampleSize))
	for _, v := range values {
		if len(sample) == SampleSize {
			break
		}
		if !isEmptyCell(v) {
			sample = append(sample, v)
		}
	}
	if len(sample) == 0 {
		return ColumnText
	}

	var text, boolean, decimal, integer, date int

	for _, v := range sample {
		switch ClassifyValue(v) {
		case ColumnText:
			text++
			if text*100 > textPercentLimit*len(sample) {
				return ColumnText
			}
		case ColumnBoolean:
			boolean++
		case ColumnReal:
			decimal++
		case ColumnInteger:
			integer++
		case ColumnDate:
			date++
		}
	}

	switch {
	case boolean == len(sample):
		return ColumnBoolean
	case decimal > 0:
		return ColumnReal
	case integer > 0:
		return ColumnInteger
	case date > 0:
		return ColumnDate
	default:
		return ColumnText
	}
}

// inferColumnTypes types every column from the column-wise cell values.
// Cells missing from short rows are treated as empty.
func inferColumnTypes(columnCount int, rows []RawRow) []ColumnType {
	types := make([]ColumnType, columnCount)
	values := make([]string, len(rows))
	for i := range types {
		for r, row := range rows {
			values[r] = cellAt(row, i)
		}
		types[i] = DetermineColumnType(values)
	}
	return types
}

// cellAt returns the cell at index i, or "" when the row is too short.
func cellAt(row RawRow, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
