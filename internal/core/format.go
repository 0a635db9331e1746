package core

import (
	"math"
	"strconv"
	"strings"
)

// FormatNumber renders a table value. Missing values print as "--"; values
// smaller in magnitude than 10^-places use exponent notation; values already
// short enough print as-is; the rest are fixed to places decimals.
func FormatNumber(v *float64, places int) string {
	if v == nil || math.IsNaN(*v) {
		return "--"
	}
	n := *v
	switch {
	case n == 0:
		return "0"
	case math.Abs(n) < math.Pow(10, -float64(places)):
		return exponent(n, max(places-2, 0))
	}
	plain := strconv.FormatFloat(n, 'f', -1, 64)
	if _, frac, ok := strings.Cut(plain, "."); !ok || len(frac) <= places {
		return plain
	}
	return strconv.FormatFloat(n, 'f', places, 64)
}

// exponent formats n as d.ddde-x without the zero padding strconv adds to
// the exponent.
func exponent(n float64, digits int) string {
	s := strconv.FormatFloat(n, 'e', digits, 64)
	mant, exp, _ := strings.Cut(s, "e")
	sign := exp[:1]
	exp = strings.TrimLeft(exp[1:], "0")
	if exp == "" {
		exp = "0"
	}
	return mant + "e" + sign + exp
}

// Float returns a pointer to v, for FormatNumber call sites holding plain values.
func Float(v float64) *float64 { return &v }
