package core

import (
	"strconv"
	"strings"
)

// MaxIdentifierLength is PostgreSQL's identifier limit (NAMEDATALEN - 1).
// Longer names are silently truncated by the server, so we truncate first.
const MaxIdentifierLength = 63

// SanitizeIdentifier normalizes arbitrary text into a safe SQL identifier.
// Every rune outside [A-Za-z0-9_] becomes '_', the result is lowercased,
// and a leading '_' is added unless it already starts with a letter or '_'.
// The result always matches ^[a-z_][a-z0-9_]*$ and the function is idempotent.
func SanitizeIdentifier(identifier string) string {
	var b strings.Builder
	b.Grow(len(identifier) + 1)

	for _, r := range identifier {
		switch {
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	s := b.String()
	if s == "" || !isIdentStart(s[0]) {
		s = "_" + s
	}
	return s
}

func isIdentStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || c == '_'
}

// truncateIdentifier cuts a sanitized identifier to MaxIdentifierLength.
// Sanitized identifiers are ASCII, so byte slicing is safe.
func truncateIdentifier(s string) string {
	if len(s) > MaxIdentifierLength {
		return s[:MaxIdentifierLength]
	}
	return s
}

// sanitizeColumnNames sanitizes every column name and resolves collisions.
// The first occurrence keeps its name; later ones get _2, _3, ... suffixes.
// Positional correspondence with the input is preserved.
func sanitizeColumnNames(columns []string) []string {
	out := make([]string, len(columns))
	taken := make(map[string]bool, len(columns))

	for i, col := range columns {
		base := truncateIdentifier(SanitizeIdentifier(col))
		name := base
		for n := 2; taken[name]; n++ {
			suffix := "_" + strconv.Itoa(n)
			stem := base
			if len(stem)+len(suffix) > MaxIdentifierLength {
				stem = stem[:MaxIdentifierLength-len(suffix)]
			}
			name = stem + suffix
		}
		taken[name] = true
		out[i] = name
	}
	return out
}
