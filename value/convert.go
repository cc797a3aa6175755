package value

import (
	"math"
	"unicode/utf8"
)

// ToInt32Bits applies the modular int32 conversion used by bitwise
// operators: NaN and infinities become 0, everything else is truncated and
// wrapped modulo 2^32.
func ToInt32Bits(f float64) int32 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	f = math.Trunc(f)
	f = math.Mod(f, 4294967296)
	if f < 0 {
		f += 4294967296
	}
	return int32(uint32(f))
}

// ToUint32Bits is ToInt32Bits reinterpreted as unsigned.
func ToUint32Bits(f float64) uint32 {
	return uint32(ToInt32Bits(f))
}

// StringLength returns the number of characters in s.
func StringLength(s string) int {
	return utf8.RuneCountInString(s)
}

// CharAt returns the one-character string at index i of s.
func CharAt(s string, i int) (string, bool) {
	if i < 0 {
		return "", false
	}
	n := 0
	for _, r := range s {
		if n == i {
			return string(r), true
		}
		n++
	}
	return "", false
}
