package ic

import (
	"fmt"
	"reflect"
)

// ClosureGenerator is the default code generator. A stub body is a Go
// closure specialized on the op and flags of its code key; per-stub
// payloads are read from the stub at run time, so one body serves every
// stub with the same key.
type ClosureGenerator struct {
	compiled int
}

func NewClosureGenerator() *ClosureGenerator {
	return &ClosureGenerator{}
}

// Compiled counts the bodies this generator has produced.
func (g *ClosureGenerator) Compiled() int { return g.compiled }

func (g *ClosureGenerator) Compile(kind Kind, p CodeParams) (*Code, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: invalid kind %d", ErrCodeGeneration, kind)
	}
	if kind.IsMonitorKind() || kind.IsUpdateKind() {
		check := typeCheckBody(kind)
		g.compiled++
		return NewCode(kind, p, nil, check, reflect.ValueOf(check).Pointer()), nil
	}
	run := stubBody(kind, p)
	if run == nil {
		return nil, fmt.Errorf("%w: no body for %s", ErrCodeGeneration, kind)
	}
	g.compiled++
	return NewCode(kind, p, run, nil, reflect.ValueOf(run).Pointer()), nil
}

func typeCheckBody(kind Kind) TypeCheckFunc {
	switch kind {
	case TypeMonitorPrimitive, TypeUpdatePrimitive:
		return checkPrimitive
	case TypeMonitorSingleObject, TypeUpdateSingleObject:
		return checkSingleObject
	case TypeMonitorTypeObject, TypeUpdateTypeObject:
		return checkTypeObject
	}
	return checkNever
}

func stubBody(kind Kind, p CodeParams) StubFunc {
	if kind.IsFallback() {
		return runFallbackStub
	}
	flags := uint16(p.Flags) << 8
	switch kind {
	case CompareInt32:
		return compareInt32Body(p.Op)
	case CompareDouble:
		return compareDoubleBody(p.Op)
	case CompareString:
		return compareStringBody(p.Op)
	case CompareBoolean:
		return compareBooleanBody(p.Op)
	case CompareObject:
		return compareObjectBody(p.Op)
	case CompareObjectWithUndefined:
		return compareObjectWithUndefinedBody(p.Op)
	case CompareNumberWithUndefined:
		return compareNumberWithUndefinedBody(p.Op)

	case ToBoolInt32:
		return toBoolInt32
	case ToBoolString:
		return toBoolString
	case ToBoolNullUndefined:
		return toBoolNullUndefined

	case BinaryArithInt32:
		return binaryArithInt32Body(p.Op, flags&arithAllowDouble != 0)
	case BinaryArithDouble:
		return binaryArithDoubleBody(p.Op)
	case BinaryArithStringConcat:
		return binaryArithStringConcat
	case BinaryArithStringObjectConcat:
		return binaryArithStringObjectConcat

	case UnaryArithInt32:
		return unaryArithInt32Body(p.Op)
	case UnaryArithDouble:
		return unaryArithDoubleBody(p.Op)

	case CallScripted, CallNative:
		return callKnown

	case GetElemNative:
		return getElemNative
	case GetElemNativePrototype:
		return getElemNativePrototype
	case GetElemString:
		return getElemString
	case GetElemDense:
		return getElemDense
	case GetElemTypedArray:
		return getElemTypedArray

	case SetElemDense:
		return setElemDense
	case SetElemDenseAdd:
		return setElemDenseAdd
	case SetElemTypedArray:
		return setElemTypedArray

	case GetNameGlobal:
		return getNameGlobal
	case GetNameScope0, GetNameScope1, GetNameScope2, GetNameScope3, GetNameScope4:
		return getNameScope

	case GetIntrinsicConstant:
		return getIntrinsicConstant

	case GetPropArrayLength:
		return getPropArrayLength
	case GetPropTypedArrayLength:
		return getPropTypedArrayLength
	case GetPropString:
		return getPropString
	case GetPropStringLength:
		return getPropStringLength
	case GetPropNative:
		return getPropNative
	case GetPropNativePrototype:
		return getPropNativePrototype

	case SetPropNative:
		return setPropNative

	case IteratorMoreNative:
		return iteratorMoreNative
	case IteratorNextNative:
		return iteratorNextNative
	}
	return nil
}
