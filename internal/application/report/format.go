package report

import (
	"math"
	"strconv"
	"strings"
)

// Placeholder is printed for missing or non-finite numbers.
const Placeholder = "-"

// Fmt formats a number with the given decimal places. Missing values and
// anything that is not a finite number render as Placeholder. Strings are
// parsed as numbers first.
func Fmt(v any, digits int) string {
	f, ok := toFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return Placeholder
	}
	if digits < 0 {
		digits = 0
	}
	return strconv.FormatFloat(f, 'f', digits, 64)
}

// Num formats a number without trailing zeros, e.g. 45 or 22.5.
func Num(v any) string {
	f, ok := toFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return Placeholder
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Score formats a 0-100 score as "n/100"; missing scores read 0 as on
// the member's radar.
func Score(v *float64) string {
	f, ok := toFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		f = 0
	}
	return strconv.FormatFloat(f, 'f', -1, 64) + "/100"
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case nil:
		return 0, false
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case *float64:
		if x == nil {
			return 0, false
		}
		return *x, true
	case *int:
		if x == nil {
			return 0, false
		}
		return float64(*x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
