package ic

import (
	"math"

	"github.com/chazu/baseline/value"
)

// Extra bits of arithmetic stubs, above the op byte.
const (
	arithAllowDouble = 1 << 8
	arithLhsIsString = 1 << 9
)

// ---------------------------------------------------------------------------
// ToBool
// ---------------------------------------------------------------------------

func toBoolInt32(s *Stub, f *Frame) (bool, error) {
	if !f.Lhs.IsInt32() {
		return false, nil
	}
	f.Result = value.Bool(f.Lhs.ToInt32() != 0)
	return true, nil
}

func toBoolString(s *Stub, f *Frame) (bool, error) {
	if !f.Lhs.IsString() {
		return false, nil
	}
	f.Result = value.Bool(f.Lhs.ToString() != "")
	return true, nil
}

func toBoolNullUndefined(s *Stub, f *Frame) (bool, error) {
	if !f.Lhs.IsNullOrUndefined() {
		return false, nil
	}
	f.Result = value.Bool(false)
	return true, nil
}

func (e *Engine) toBoolFallback(fb *Stub, f *Frame) error {
	v := f.Lhs
	f.Result = value.Bool(e.rt.ToBool(v))

	if !e.canAttach(fb) {
		return nil
	}
	var kind Kind
	switch {
	case v.IsInt32():
		kind = ToBoolInt32
	case v.IsString():
		kind = ToBoolString
	case v.IsNullOrUndefined():
		kind = ToBoolNullUndefined
	default:
		e.unspecializable()
		return nil
	}
	if fb.HasStub(kind) {
		return nil
	}
	e.attach(fb, kind, 0, CodeParams{}, nil)
	return nil
}

func (e *Engine) toNumberFallback(fb *Stub, f *Frame) error {
	r, err := e.rt.ToNumber(f.Lhs)
	if err != nil {
		return err
	}
	f.Result = r
	return nil
}

// ---------------------------------------------------------------------------
// Binary arithmetic
// ---------------------------------------------------------------------------

// int32Arith computes op on int32 operands. ok is false when the result
// is not an int32 and allowDouble is unset, or the op is not handled.
func int32Arith(op Op, a, b int32, allowDouble bool) (value.Value, bool) {
	x, y := int64(a), int64(b)
	var r int64
	switch op {
	case OpAdd:
		r = x + y
	case OpSub:
		r = x - y
	case OpMul:
		r = x * y
		if r == 0 && (a < 0 || b < 0) {
			if !allowDouble {
				return value.Value{}, false
			}
			return value.Double(math.Copysign(0, -1)), true
		}
	case OpDiv:
		if b == 0 || x%y != 0 || (a == 0 && b < 0) {
			if !allowDouble {
				return value.Value{}, false
			}
			return value.Number(float64(a) / float64(b)), true
		}
		r = x / y
	case OpMod:
		if b == 0 {
			if !allowDouble {
				return value.Value{}, false
			}
			return value.Double(math.NaN()), true
		}
		r = x % y
		if r == 0 && a < 0 {
			if !allowDouble {
				return value.Value{}, false
			}
			return value.Double(math.Copysign(0, -1)), true
		}
	case OpBitOr:
		return value.Int32(a | b), true
	case OpBitXor:
		return value.Int32(a ^ b), true
	case OpBitAnd:
		return value.Int32(a & b), true
	case OpLsh:
		return value.Int32(int32(uint32(a) << (uint32(b) & 31))), true
	case OpRsh:
		return value.Int32(a >> (uint32(b) & 31)), true
	case OpUrsh:
		u := uint32(a) >> (uint32(b) & 31)
		if u > math.MaxInt32 {
			if !allowDouble {
				return value.Value{}, false
			}
			return value.Double(float64(u)), true
		}
		return value.Int32(int32(u)), true
	default:
		return value.Value{}, false
	}
	if r < math.MinInt32 || r > math.MaxInt32 {
		if !allowDouble {
			return value.Value{}, false
		}
		return value.Double(float64(r)), true
	}
	return value.Int32(int32(r)), true
}

func binaryArithInt32Body(op Op, allowDouble bool) StubFunc {
	return func(s *Stub, f *Frame) (bool, error) {
		if !f.Lhs.IsInt32() || !f.Rhs.IsInt32() {
			return false, nil
		}
		r, ok := int32Arith(op, f.Lhs.ToInt32(), f.Rhs.ToInt32(), allowDouble)
		if !ok {
			return false, nil
		}
		f.Result = r
		return true, nil
	}
}

func doubleArith(op Op, a, b float64) value.Value {
	switch op {
	case OpAdd:
		return value.Number(a + b)
	case OpSub:
		return value.Number(a - b)
	case OpMul:
		return value.Number(a * b)
	case OpDiv:
		return value.Number(a / b)
	case OpMod:
		return value.Number(math.Mod(a, b))
	}
	invariantf("%s has no double stub", op)
	return value.Value{}
}

func binaryArithDoubleBody(op Op) StubFunc {
	return func(s *Stub, f *Frame) (bool, error) {
		if !f.Lhs.IsNumber() || !f.Rhs.IsNumber() {
			return false, nil
		}
		f.Result = doubleArith(op, f.Lhs.ToNumber(), f.Rhs.ToNumber())
		return true, nil
	}
}

func binaryArithStringConcat(s *Stub, f *Frame) (bool, error) {
	if !f.Lhs.IsString() || !f.Rhs.IsString() {
		return false, nil
	}
	f.Result = value.String(f.Lhs.ToString() + f.Rhs.ToString())
	return true, nil
}

// binaryArithStringObjectConcat concatenates a string with an object
// converted by the runtime.
func binaryArithStringObjectConcat(s *Stub, f *Frame) (bool, error) {
	lhsIsString := s.extra&arithLhsIsString != 0
	str, obj := f.Rhs, f.Lhs
	if lhsIsString {
		str, obj = f.Lhs, f.Rhs
	}
	if !str.IsString() || !obj.IsObject() {
		return false, nil
	}
	conv, err := f.engine.rt.ToString(obj)
	if err != nil {
		return true, err
	}
	if lhsIsString {
		f.Result = value.String(str.ToString() + conv)
	} else {
		f.Result = value.String(conv + str.ToString())
	}
	return true, nil
}

func isDoubleArithOp(op Op) bool {
	switch op {
	case OpAdd, OpSub, OpMul, OpDiv, OpMod:
		return true
	}
	return false
}

func (e *Engine) binaryArithFallback(fb *Stub, f *Frame) error {
	op := f.entry.inst.Op
	lhs, rhs := f.Lhs, f.Rhs
	r, err := e.rt.BinaryArith(op, lhs, rhs)
	if err != nil {
		return err
	}
	f.Result = r

	if !e.canAttach(fb) {
		return nil
	}

	switch {
	case lhs.IsInt32() && rhs.IsInt32() && (r.IsInt32() || r.IsDouble()):
		allowDouble := r.IsDouble()
		extra := uint16(op)
		if allowDouble {
			extra |= arithAllowDouble
		}
		if fb.findStub(BinaryArithInt32, func(s *Stub) bool { return s.extra == extra }) != nil {
			return nil
		}
		if allowDouble {
			// Subsumes the int32-only stub for the same op.
			e.unlinkArithInt32(fb, uint16(op))
		}
		e.attach(fb, BinaryArithInt32, extra, CodeParams{Op: op, Flags: uint8(extra >> 8)}, nil)

	case lhs.IsNumber() && rhs.IsNumber() && isDoubleArithOp(op):
		extra := uint16(op)
		if fb.findStub(BinaryArithDouble, func(s *Stub) bool { return s.extra == extra }) != nil {
			return nil
		}
		e.attach(fb, BinaryArithDouble, extra, CodeParams{Op: op}, nil)

	case op == OpAdd && lhs.IsString() && rhs.IsString():
		if fb.HasStub(BinaryArithStringConcat) {
			return nil
		}
		e.attach(fb, BinaryArithStringConcat, uint16(op), CodeParams{Op: op}, nil)

	case op == OpAdd && (lhs.IsString() && rhs.IsObject() || lhs.IsObject() && rhs.IsString()):
		extra := uint16(op)
		if lhs.IsString() {
			extra |= arithLhsIsString
		}
		if fb.findStub(BinaryArithStringObjectConcat, func(s *Stub) bool { return s.extra == extra }) != nil {
			return nil
		}
		e.attach(fb, BinaryArithStringObjectConcat, extra, CodeParams{Op: op, Flags: uint8(extra >> 8)}, nil)

	default:
		e.unspecializable()
	}
	return nil
}

func (e *Engine) unlinkArithInt32(fb *Stub, extra uint16) {
	var prev *Stub
	for cur := fb.fb.entry.firstStub; cur != fb; {
		next := cur.next
		if cur.kind == BinaryArithInt32 && cur.extra == extra {
			fb.UnlinkStub(prev, cur)
		} else {
			prev = cur
		}
		cur = next
	}
}

// ---------------------------------------------------------------------------
// Unary arithmetic
// ---------------------------------------------------------------------------

func unaryArithInt32Body(op Op) StubFunc {
	return func(s *Stub, f *Frame) (bool, error) {
		if !f.Lhs.IsInt32() {
			return false, nil
		}
		a := f.Lhs.ToInt32()
		switch op {
		case OpBitNot:
			f.Result = value.Int32(^a)
		case OpNeg:
			if a == 0 || a == math.MinInt32 {
				return false, nil
			}
			f.Result = value.Int32(-a)
		default:
			return false, nil
		}
		return true, nil
	}
}

func unaryArithDoubleBody(op Op) StubFunc {
	return func(s *Stub, f *Frame) (bool, error) {
		if !f.Lhs.IsNumber() {
			return false, nil
		}
		n := f.Lhs.ToNumber()
		switch op {
		case OpBitNot:
			f.Result = value.Int32(^value.ToInt32Bits(n))
		case OpNeg:
			f.Result = value.Number(-n)
		default:
			return false, nil
		}
		return true, nil
	}
}

func (e *Engine) unaryArithFallback(fb *Stub, f *Frame) error {
	op := f.entry.inst.Op
	v := f.Lhs
	r, err := e.rt.UnaryArith(op, v)
	if err != nil {
		return err
	}
	f.Result = r

	if !e.canAttach(fb) {
		return nil
	}
	var kind Kind
	switch {
	case v.IsInt32() && r.IsInt32():
		kind = UnaryArithInt32
	case v.IsNumber():
		kind = UnaryArithDouble
	default:
		e.unspecializable()
		return nil
	}
	if fb.HasStub(kind) {
		return nil
	}
	e.attach(fb, kind, uint16(op), CodeParams{Op: op}, nil)
	return nil
}
