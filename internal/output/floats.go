package output

import (
	"math"
	"strconv"
	"strings"
)

// DefaultPrecision is the decimal precision used when no export override is set.
const DefaultPrecision = 6

// RoundFloat rounds a float to the default precision
func RoundFloat(f float64) float64 {
	return RoundFloatTo(f, DefaultPrecision)
}

// RoundFloatTo rounds a float to the given number of decimal places
func RoundFloatTo(f float64, decimals int) float64 {
	if decimals < 0 {
		decimals = 0
	}
	multiplier := math.Pow(10, float64(decimals))
	return math.Round(f*multiplier) / multiplier
}

// FormatFloat formats a float at the default precision with no trailing zeros
func FormatFloat(f float64) string {
	return FormatFloatTo(f, DefaultPrecision)
}

// FormatFloatTo formats a float at the given precision with no trailing zeros
func FormatFloatTo(f float64, decimals int) string {
	if decimals < 0 {
		decimals = 0
	}
	str := strconv.FormatFloat(RoundFloatTo(f, decimals), 'f', decimals, 64)

	if strings.Contains(str, ".") {
		str = strings.TrimRight(str, "0")
		str = strings.TrimRight(str, ".")
	}

	return str
}

// NormalizeFloat normalizes a float for deterministic output
// Returns the rounded value suitable for JSON encoding
func NormalizeFloat(f float64) float64 {
	return RoundFloat(f)
}
