// Package formatting converts between human-readable text and values: byte
// sizes for configuration and upload limits, and JSON payloads embedded in
// model responses.
package formatting

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// units are base-1024 multiples, indexed by exponent.
var units = []string{"B", "KB", "MB", "GB", "TB", "PB", "EB"}

// FormatBytes renders n with the largest unit that keeps the value at or
// above 1. Negative precision is treated as zero.
func FormatBytes(n int64, precision int) string {
	if n == 0 {
		return "0 B"
	}
	precision = max(precision, 0)

	size := float64(n)
	i := 0
	for size >= 1024 && i < len(units)-1 {
		size /= 1024
		i++
	}

	if i == 0 {
		return strconv.FormatInt(n, 10) + " B"
	}
	return strconv.FormatFloat(size, 'f', precision, 64) + " " + units[i]
}

// ParseBytes reads sizes such as "50MB", "1.5 gb" or "1024". A bare number
// is bytes. Units are case-insensitive.
func ParseBytes(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty byte size string")
	}

	split := strings.IndexFunc(s, func(r rune) bool {
		return !unicode.IsDigit(r) && r != '.'
	})

	number, unit := s, ""
	if split >= 0 {
		number, unit = s[:split], strings.TrimSpace(s[split:])
	}
	if number == "" {
		return 0, fmt.Errorf("invalid byte size: %q", s)
	}

	value, err := strconv.ParseFloat(number, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size number: %w", err)
	}

	if unit == "" {
		return int64(value), nil
	}

	unit = strings.ToUpper(unit)
	for i, u := range units {
		if u == unit {
			return int64(value * float64(int64(1)<<(10*i))), nil
		}
	}
	return 0, fmt.Errorf("unknown byte size unit: %q", unit)
}
