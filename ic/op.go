package ic

import (
	"fmt"
)

// Op is a bytecode operation that carries an inline cache.
type Op uint8

const (
	OpNop Op = iota

	OpEq
	OpNe
	OpStrictEq
	OpStrictNe
	OpLt
	OpLe
	OpGt
	OpGe

	OpToBool
	OpToNumber

	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpBitOr
	OpBitXor
	OpBitAnd
	OpLsh
	OpRsh
	OpUrsh

	OpBitNot
	OpNeg

	OpGetElem
	OpSetElem
	OpIn
	OpGetName
	OpBindName
	OpIntrinsic
	OpGetProp
	OpSetProp

	OpCall
	OpNew

	OpTableSwitch

	OpIter
	OpMoreIter
	OpIterNext
	OpEndIter

	OpInstanceOf
	OpTypeOf
	OpThis
	OpNewArray
	OpNewObject

	OpLoopEntry
	OpStackCheck

	opLimit
)

type opInfo struct {
	name     string
	fallback Kind
}

var ops = [opLimit]opInfo{
	OpNop:         {"nop", KindInvalid},
	OpEq:          {"eq", CompareFallback},
	OpNe:          {"ne", CompareFallback},
	OpStrictEq:    {"stricteq", CompareFallback},
	OpStrictNe:    {"strictne", CompareFallback},
	OpLt:          {"lt", CompareFallback},
	OpLe:          {"le", CompareFallback},
	OpGt:          {"gt", CompareFallback},
	OpGe:          {"ge", CompareFallback},
	OpToBool:      {"tobool", ToBoolFallback},
	OpToNumber:    {"pos", ToNumberFallback},
	OpAdd:         {"add", BinaryArithFallback},
	OpSub:         {"sub", BinaryArithFallback},
	OpMul:         {"mul", BinaryArithFallback},
	OpDiv:         {"div", BinaryArithFallback},
	OpMod:         {"mod", BinaryArithFallback},
	OpBitOr:       {"bitor", BinaryArithFallback},
	OpBitXor:      {"bitxor", BinaryArithFallback},
	OpBitAnd:      {"bitand", BinaryArithFallback},
	OpLsh:         {"lsh", BinaryArithFallback},
	OpRsh:         {"rsh", BinaryArithFallback},
	OpUrsh:        {"ursh", BinaryArithFallback},
	OpBitNot:      {"bitnot", UnaryArithFallback},
	OpNeg:         {"neg", UnaryArithFallback},
	OpGetElem:     {"getelem", GetElemFallback},
	OpSetElem:     {"setelem", SetElemFallback},
	OpIn:          {"in", InFallback},
	OpGetName:     {"name", GetNameFallback},
	OpBindName:    {"bindname", BindNameFallback},
	OpIntrinsic:   {"intrinsic", GetIntrinsicFallback},
	OpGetProp:     {"getprop", GetPropFallback},
	OpSetProp:     {"setprop", SetPropFallback},
	OpCall:        {"call", CallFallback},
	OpNew:         {"new", CallFallback},
	OpTableSwitch: {"tableswitch", TableSwitch},
	OpIter:        {"iter", IteratorNewFallback},
	OpMoreIter:    {"moreiter", IteratorMoreFallback},
	OpIterNext:    {"iternext", IteratorNextFallback},
	OpEndIter:     {"enditer", IteratorCloseFallback},
	OpInstanceOf:  {"instanceof", InstanceOfFallback},
	OpTypeOf:      {"typeof", TypeOfFallback},
	OpThis:        {"this", ThisFallback},
	OpNewArray:    {"newarray", NewArrayFallback},
	OpNewObject:   {"newobject", NewObjectFallback},
	OpLoopEntry:   {"loopentry", UseCountFallback},
	OpStackCheck:  {"stackcheck", StackCheckFallback},
}

func (op Op) String() string {
	if op < opLimit {
		return ops[op].name
	}
	return fmt.Sprintf("op(%d)", op)
}

// HasIC reports whether op gets a call-site entry.
func (op Op) HasIC() bool {
	return op < opLimit && ops[op].fallback != KindInvalid
}

// FallbackKind is the fallback kind that terminates op's chain.
func (op Op) FallbackKind() Kind {
	if op >= opLimit {
		return KindInvalid
	}
	return ops[op].fallback
}

// IsEquality reports whether op is one of the (strict) equality tests.
func (op Op) IsEquality() bool {
	switch op {
	case OpEq, OpNe, OpStrictEq, OpStrictNe:
		return true
	}
	return false
}

// IsStrict reports whether op is a strict equality test.
func (op Op) IsStrict() bool {
	return op == OpStrictEq || op == OpStrictNe
}

// OpByName looks up an op by its mnemonic.
func OpByName(name string) (Op, bool) {
	for op := Op(0); op < opLimit; op++ {
		if ops[op].name == name {
			return op, true
		}
	}
	return OpNop, false
}
