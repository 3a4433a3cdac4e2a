package core

// convert.go turns raw cells into insert parameters for a typed column.
//
// Conversion never fails. Values that do not fit the column type become
// NULL (numbers) or false (booleans) so that one dirty cell cannot abort
// an otherwise valid import.

import (
	"math"
	"strconv"
	"strings"
)

// affirmativeTokens are the only values stored as true in a BOOLEAN column.
// Anything else non-empty, including garbage, is stored as false.
var affirmativeTokens = map[string]bool{
	"true": true,
	"yes":  true,
	"1":    true,
	"t":    true,
	"y":    true,
}

// ConvertCell converts one cell for a column of type t.
// The result is nil, int64, float64, bool, or string.
func ConvertCell(t ColumnType, cell string) any {
	if isEmptyCell(cell) {
		return nil
	}

	switch t {
	case ColumnInteger:
		if n, ok := parseInteger(cell); ok {
			return n
		}
		return nil
	case ColumnReal:
		if f, ok := parseReal(cell); ok {
			return f
		}
		return nil
	case ColumnBoolean:
		return affirmativeTokens[strings.ToLower(strings.TrimSpace(cell))]
	default:
		return cell
	}
}

// convertRow builds the positional parameters for one insert.
// Short rows are padded with NULL; extra cells are ignored.
func convertRow(types []ColumnType, row RawRow) []any {
	args := make([]any, len(types))
	for i, t := range types {
		args[i] = ConvertCell(t, cellAt(row, i))
	}
	return args
}

// parseInteger accepts base-10 integers and integral numbers in other
// notations such as "1e3" or "4.0".
func parseInteger(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	f, ok := parseReal(s)
	if !ok || f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// parseReal accepts the same numeric shapes as type inference.
func parseReal(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if !numericRegex.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}
