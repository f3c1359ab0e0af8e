package calculator

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// asInt32 reports whether v equals its truncation to a 32-bit integer.
// Values outside the int32 range never qualify and fall through to the
// fixed-point rendering.
func asInt32(v float64) (int32, bool) {
	if math.IsNaN(v) || v < math.MinInt32 || v > math.MaxInt32 {
		return 0, false
	}
	i := int32(v)
	return i, float64(i) == v
}

// Format renders a computed value for the main display: integral values as a
// bare integer, everything else with 8 decimal digits and trailing zeros (and
// a trailing point) stripped.
func Format(v float64) string {
	if i, ok := asInt32(v); ok {
		return strconv.FormatInt(int64(i), 10)
	}
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	}
	s := fixed(v, 8)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

// FormatMemory renders the memory indicator. It is empty exactly when the
// register holds zero.
func FormatMemory(v float64) string {
	if v == 0 {
		return ""
	}
	if i, ok := asInt32(v); ok {
		return "M: " + strconv.FormatInt(int64(i), 10)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "M: " + Format(v)
	}
	return "M: " + fixed(v, 2)
}

// fixed renders v with exactly places decimals. Rounding is half up on the
// shortest decimal form of v, so 0.125 gives 0.13 at two places.
func fixed(v float64, places int) string {
	digits := strconv.FormatFloat(math.Abs(v), 'f', -1, 64)
	whole, frac, _ := strings.Cut(digits, ".")

	if len(frac) <= places {
		frac += strings.Repeat("0", places-len(frac))
	} else {
		up := frac[places] >= '5'
		frac = frac[:places]
		if up {
			whole, frac = roundUp(whole, frac)
		}
	}

	var b strings.Builder
	if math.Signbit(v) {
		b.WriteByte('-')
	}
	b.WriteString(whole)
	if places > 0 {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}

// roundUp adds one unit in the last place of whole.frac.
func roundUp(whole, frac string) (string, string) {
	n := []byte(whole + frac)
	i := len(n) - 1
	for ; i >= 0; i-- {
		if n[i] != '9' {
			n[i]++
			break
		}
		n[i] = '0'
	}
	if i < 0 {
		n = append([]byte{'1'}, n...)
	}
	split := len(n) - len(frac)
	return string(n[:split]), string(n[split:])
}

// Parse converts operand text to a number. Text that does not parse yields 0;
// out-of-range text yields the signed infinity.
func Parse(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return v
		}
		return 0
	}
	return v
}
