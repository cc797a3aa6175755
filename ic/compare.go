package ic

import (
	"github.com/chazu/baseline/value"
)

// Extra bits of compare stubs: the op in the low byte, flags above it.
const (
	compareLhsIsUndefined = 1 << 8
	compareWithNull       = 1 << 9
)

func compareResult(op Op, c int) bool {
	switch op {
	case OpEq, OpStrictEq:
		return c == 0
	case OpNe, OpStrictNe:
		return c != 0
	case OpLt:
		return c < 0
	case OpLe:
		return c <= 0
	case OpGt:
		return c > 0
	case OpGe:
		return c >= 0
	}
	invariantf("%s is not a comparison", op)
	return false
}

func compareInt32Body(op Op) StubFunc {
	return func(s *Stub, f *Frame) (bool, error) {
		if !f.Lhs.IsInt32() || !f.Rhs.IsInt32() {
			return false, nil
		}
		a, b := f.Lhs.ToInt32(), f.Rhs.ToInt32()
		c := 0
		if a < b {
			c = -1
		} else if a > b {
			c = 1
		}
		f.Result = value.Bool(compareResult(op, c))
		return true, nil
	}
}

func compareDoubleBody(op Op) StubFunc {
	return func(s *Stub, f *Frame) (bool, error) {
		if !f.Lhs.IsNumber() || !f.Rhs.IsNumber() {
			return false, nil
		}
		a, b := f.Lhs.ToNumber(), f.Rhs.ToNumber()
		var r bool
		switch op {
		case OpEq, OpStrictEq:
			r = a == b
		case OpNe, OpStrictNe:
			r = a != b
		case OpLt:
			r = a < b
		case OpLe:
			r = a <= b
		case OpGt:
			r = a > b
		case OpGe:
			r = a >= b
		}
		f.Result = value.Bool(r)
		return true, nil
	}
}

func compareStringBody(op Op) StubFunc {
	return func(s *Stub, f *Frame) (bool, error) {
		if !f.Lhs.IsString() || !f.Rhs.IsString() {
			return false, nil
		}
		c := 0
		if f.Lhs.ToString() != f.Rhs.ToString() {
			c = 1
		}
		f.Result = value.Bool(compareResult(op, c))
		return true, nil
	}
}

func compareBooleanBody(op Op) StubFunc {
	return func(s *Stub, f *Frame) (bool, error) {
		if !f.Lhs.IsBoolean() || !f.Rhs.IsBoolean() {
			return false, nil
		}
		c := 0
		if f.Lhs.ToBoolean() != f.Rhs.ToBoolean() {
			c = 1
		}
		f.Result = value.Bool(compareResult(op, c))
		return true, nil
	}
}

func compareObjectBody(op Op) StubFunc {
	return func(s *Stub, f *Frame) (bool, error) {
		if !f.Lhs.IsObject() || !f.Rhs.IsObject() {
			return false, nil
		}
		c := 0
		if f.Lhs.ToObject() != f.Rhs.ToObject() {
			c = 1
		}
		f.Result = value.Bool(compareResult(op, c))
		return true, nil
	}
}

// compareObjectWithUndefinedBody compares an object against undefined, or
// against null when the stub was built for null. Either way the operands
// are never equal.
func compareObjectWithUndefinedBody(op Op) StubFunc {
	return func(s *Stub, f *Frame) (bool, error) {
		undef, obj := f.Rhs, f.Lhs
		if s.extra&compareLhsIsUndefined != 0 {
			undef, obj = f.Lhs, f.Rhs
		}
		if !obj.IsObject() {
			return false, nil
		}
		if s.extra&compareWithNull != 0 {
			if !undef.IsNull() {
				return false, nil
			}
		} else if !undef.IsUndefined() {
			return false, nil
		}
		f.Result = value.Bool(compareResult(op, 1))
		return true, nil
	}
}

// compareNumberWithUndefinedBody compares a number against undefined.
// Undefined converts to NaN, so only inequality holds.
func compareNumberWithUndefinedBody(op Op) StubFunc {
	return func(s *Stub, f *Frame) (bool, error) {
		undef, num := f.Rhs, f.Lhs
		if s.extra&compareLhsIsUndefined != 0 {
			undef, num = f.Lhs, f.Rhs
		}
		if !undef.IsUndefined() || !num.IsNumber() {
			return false, nil
		}
		f.Result = value.Bool(op == OpNe || op == OpStrictNe)
		return true, nil
	}
}

// ---------------------------------------------------------------------------
// Fallback
// ---------------------------------------------------------------------------

func (e *Engine) compareFallback(fb *Stub, f *Frame) error {
	op := f.entry.inst.Op
	lhs, rhs := f.Lhs, f.Rhs
	r, err := e.rt.Compare(op, lhs, rhs)
	if err != nil {
		return err
	}
	f.Result = value.Bool(r)

	if !e.canAttach(fb) {
		return nil
	}
	kind, flags := compareStubKind(op, lhs, rhs)
	if kind == KindInvalid {
		e.unspecializable()
		return nil
	}
	extra := uint16(op) | flags
	if fb.findStub(kind, func(s *Stub) bool { return s.extra == extra }) != nil {
		return nil
	}
	if kind == CompareDouble {
		// The double stub handles int32 operands too.
		fb.UnlinkStubsWithKind(CompareInt32)
	}
	e.attach(fb, kind, extra, CodeParams{Op: op, Flags: uint8(flags >> 8)}, nil)
	return nil
}

// compareStubKind picks the specialization for a comparison of lhs and
// rhs, with the flags it needs.
func compareStubKind(op Op, lhs, rhs value.Value) (Kind, uint16) {
	switch {
	case lhs.IsInt32() && rhs.IsInt32():
		return CompareInt32, 0
	case lhs.IsNumber() && rhs.IsNumber():
		return CompareDouble, 0
	case !op.IsEquality():
		return KindInvalid, 0
	case lhs.IsString() && rhs.IsString():
		return CompareString, 0
	case lhs.IsBoolean() && rhs.IsBoolean():
		return CompareBoolean, 0
	case lhs.IsObject() && rhs.IsObject():
		return CompareObject, 0
	case lhs.IsObject() && rhs.IsNullOrUndefined():
		return CompareObjectWithUndefined, nullFlag(rhs)
	case lhs.IsNullOrUndefined() && rhs.IsObject():
		return CompareObjectWithUndefined, compareLhsIsUndefined | nullFlag(lhs)
	case lhs.IsNumber() && rhs.IsUndefined():
		return CompareNumberWithUndefined, 0
	case lhs.IsUndefined() && rhs.IsNumber():
		return CompareNumberWithUndefined, compareLhsIsUndefined
	}
	return KindInvalid, 0
}

func nullFlag(v value.Value) uint16 {
	if v.IsNull() {
		return compareWithNull
	}
	return 0
}
