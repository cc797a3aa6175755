package interp

import (
	"math"
	"strconv"
	"strings"

	"github.com/chazu/baseline/value"
)

// toPrimitive converts an object to a primitive by calling its valueOf
// and toString methods, in the order the hint selects.
func (r *Realm) toPrimitive(v value.Value, preferString bool) (value.Value, error) {
	if !v.IsObject() {
		return v, nil
	}
	order := [2]string{"valueOf", "toString"}
	if preferString {
		order = [2]string{"toString", "valueOf"}
	}
	for _, name := range order {
		m, err := r.GetProp(v, name)
		if err != nil {
			return value.Value{}, err
		}
		if !m.IsObject() || m.ToObject().Function() == nil {
			continue
		}
		res, err := m.ToObject().Function().Invoke(v, nil)
		if err != nil {
			return value.Value{}, err
		}
		if res.IsPrimitive() {
			return res, nil
		}
	}
	return value.Value{}, newError(TypeError, "cannot convert object to primitive value")
}

// toNumber converts v to a float64.
func (r *Realm) toNumber(v value.Value) (float64, error) {
	switch v.Type() {
	case value.TypeInt32, value.TypeDouble:
		return v.ToNumber(), nil
	case value.TypeBoolean:
		if v.ToBoolean() {
			return 1, nil
		}
		return 0, nil
	case value.TypeNull:
		return 0, nil
	case value.TypeString:
		return stringToNumber(v.ToString()), nil
	case value.TypeObjectTag:
		p, err := r.toPrimitive(v, false)
		if err != nil {
			return 0, err
		}
		return r.toNumber(p)
	}
	return math.NaN(), nil
}

func (r *Realm) ToNumber(v value.Value) (value.Value, error) {
	n, err := r.toNumber(v)
	if err != nil {
		return value.Value{}, err
	}
	return value.Number(n), nil
}

func (r *Realm) ToString(v value.Value) (string, error) {
	p, err := r.toPrimitive(v, false)
	if err != nil {
		return "", err
	}
	return primitiveString(p), nil
}

func (r *Realm) ToBool(v value.Value) bool {
	switch v.Type() {
	case value.TypeBoolean:
		return v.ToBoolean()
	case value.TypeInt32:
		return v.ToInt32() != 0
	case value.TypeDouble:
		d := v.ToDouble()
		return d != 0 && !math.IsNaN(d)
	case value.TypeString:
		return v.ToString() != ""
	case value.TypeObjectTag:
		return true
	}
	return false
}

func primitiveString(v value.Value) string {
	switch v.Type() {
	case value.TypeUndefined:
		return "undefined"
	case value.TypeNull:
		return "null"
	case value.TypeBoolean:
		return strconv.FormatBool(v.ToBoolean())
	case value.TypeInt32:
		return strconv.Itoa(int(v.ToInt32()))
	case value.TypeDouble:
		return numberToString(v.ToDouble())
	case value.TypeString:
		return v.ToString()
	}
	return ""
}

func numberToString(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	case f == math.Trunc(f) && math.Abs(f) < 1e21:
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func stringToNumber(s string) float64 {
	s = strings.TrimSpace(s)
	switch s {
	case "":
		return 0
	case "Infinity", "+Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}
	if len(s) > 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		if n, err := strconv.ParseUint(s[2:], 16, 64); err == nil {
			return float64(n)
		}
		return math.NaN()
	}
	if strings.ContainsAny(s, "iInN_") {
		// ParseFloat accepts "inf", "nan" and underscores; scripts do not.
		return math.NaN()
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return n
}

// defaultString is the built-in toString of objects.
func (r *Realm) defaultString(v value.Value) string {
	if !v.IsObject() {
		return primitiveString(v)
	}
	o := v.ToObject()
	switch o.Class() {
	case value.ClassArray:
		parts := make([]string, o.DenseLength())
		for i := range parts {
			e := o.DenseElement(i)
			if e.IsHole() || e.IsNullOrUndefined() {
				continue
			}
			s, err := r.ToString(e)
			if err != nil {
				continue
			}
			parts[i] = s
		}
		return strings.Join(parts, ",")
	case value.ClassFunction:
		return "function " + o.Function().Name + "() { [native code] }"
	}
	return "[object Object]"
}

// elemIndex returns key as an element index when it is a non-negative
// integer.
func elemIndex(key value.Value) (int, bool) {
	switch key.Type() {
	case value.TypeInt32:
		if key.ToInt32() >= 0 {
			return int(key.ToInt32()), true
		}
	case value.TypeDouble:
		d := key.ToDouble()
		if d >= 0 && d <= math.MaxInt32 && d == math.Trunc(d) {
			return int(d), true
		}
	}
	return 0, false
}

// parseIndex recognizes canonical index strings such as "0" and "12".
func parseIndex(name string) (int, bool) {
	if name == "" || len(name) > 10 || (len(name) > 1 && name[0] == '0') {
		return 0, false
	}
	n, err := strconv.Atoi(name)
	if err != nil || n < 0 || n > math.MaxInt32 {
		return 0, false
	}
	return n, true
}

// propertyKey converts an element key to a property name.
func (r *Realm) propertyKey(key value.Value) (string, error) {
	p, err := r.toPrimitive(key, true)
	if err != nil {
		return "", err
	}
	return primitiveString(p), nil
}

// describe renders v for error messages.
func describe(v value.Value) string {
	if v.IsString() {
		return strconv.Quote(v.ToString())
	}
	if v.IsObject() {
		if fn := v.ToObject().Function(); fn != nil {
			return "function " + fn.Name
		}
		return "object"
	}
	return primitiveString(v)
}
