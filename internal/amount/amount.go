package amount

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Parse reads the leading decimal number of raw, ignoring surrounding
// whitespace and any trailing text ("12 pc" -> 12). Empty or non-numeric
// input yields zero.
func Parse(raw string) decimal.Decimal {
	prefix := numericPrefix(strings.TrimSpace(raw))
	if prefix == "" {
		return decimal.Zero
	}
	value, err := decimal.NewFromString(prefix)
	if err != nil {
		return decimal.Zero
	}
	return value
}

// IsNumeric reports whether raw starts with a parseable number.
func IsNumeric(raw string) bool {
	return numericPrefix(strings.TrimSpace(raw)) != ""
}

// Format renders a value with exactly two decimals.
func Format(value decimal.Decimal) string {
	return value.StringFixed(2)
}

func numericPrefix(s string) string {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	intStart := i
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	digits := i - intStart
	end := i
	if i < len(s) && s[i] == '.' {
		i++
		fracStart := i
		for i < len(s) && isDigit(s[i]) {
			i++
		}
		digits += i - fracStart
		if i-fracStart > 0 {
			end = i
		}
	}
	if digits == 0 {
		return ""
	}
	if end < len(s) && (s[end] == 'e' || s[end] == 'E') {
		j := end + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		expStart := j
		for j < len(s) && isDigit(s[j]) {
			j++
		}
		if j > expStart {
			end = j
		}
	}

	prefix := s[:end]
	if strings.HasPrefix(prefix, "+") {
		prefix = prefix[1:]
	}
	if strings.HasPrefix(prefix, ".") || strings.HasPrefix(prefix, "-.") {
		prefix = strings.Replace(prefix, ".", "0.", 1)
	}
	return prefix
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
