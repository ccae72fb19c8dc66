package core

import "strings"

// QuoteIdent quotes a single SQL identifier, doubling embedded quotes.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteQualified quotes each dot-separated part of a qualified name.
// "staging.orders" becomes `"staging"."orders"`.
func QuoteQualified(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = QuoteIdent(p)
	}
	return strings.Join(parts, ".")
}

// EscapeString escapes a SQL string literal value by doubling single quotes.
// For values inside single-quoted literals, not identifiers.
func EscapeString(value string) string {
	return strings.ReplaceAll(value, "'", "''")
}
