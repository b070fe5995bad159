package planner

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

var foldCaser = cases.Fold()

// IsEmptyToken reports whether a raw catalog or order value represents an
// absent field. Spreadsheet exports encode missing cells as "nan", "none" or
// "n/a" as often as they leave them blank, so this predicate is the single
// definition of "absent" used across the engine; no other emptiness check is
// applied anywhere else.
func IsEmptyToken(value string) bool {
	switch foldCaser.String(strings.TrimSpace(value)) {
	case "", "nan", "none", "n/a":
		return true
	}
	return false
}

// NormalizeWeight converts a raw weight value into its canonical token: the
// trimmed string with any trailing "kg" unit (in any case) removed. The same
// normalization is applied to catalog weights and to tokens parsed out of a
// split declaration, so "0.35kg" and "0.35" compare equal.
func NormalizeWeight(raw string) string {
	token := strings.TrimSpace(raw)
	if len(token) >= 2 && strings.EqualFold(token[len(token)-2:], "kg") {
		token = strings.TrimSpace(token[:len(token)-2])
	}
	return token
}

// ParseQuantity best-effort parses an order quantity. Unparsable or
// non-positive values never fail the line; they default to a quantity of one.
func ParseQuantity(raw string) int {
	token := strings.TrimSpace(raw)
	if token == "" {
		return 1
	}
	n, err := strconv.Atoi(token)
	if err != nil {
		// Extractors reading spreadsheet cells emit integral counts as
		// floats ("3.0"); accept those too.
		f, ferr := strconv.ParseFloat(token, 64)
		if ferr != nil {
			return 1
		}
		n = int(f)
	}
	if n < 1 {
		return 1
	}
	return n
}
