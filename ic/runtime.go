package ic

import (
	"github.com/chazu/baseline/value"
)

// Runtime is the generic operation executor. Each fallback calls exactly
// one of these entry points; the result is always correct, and the
// fallback then inspects the operands to decide whether to specialize.
type Runtime interface {
	Compare(op Op, lhs, rhs value.Value) (bool, error)
	ToBool(v value.Value) bool
	ToNumber(v value.Value) (value.Value, error)

	// ToString converts v the way string concatenation does: objects are
	// first converted to a primitive with no hint.
	ToString(v value.Value) (string, error)
	BinaryArith(op Op, lhs, rhs value.Value) (value.Value, error)
	UnaryArith(op Op, v value.Value) (value.Value, error)

	GetProp(obj value.Value, name string) (value.Value, error)
	SetProp(obj value.Value, name string, v value.Value) error
	GetElem(obj, key value.Value) (value.Value, error)
	SetElem(obj, key, v value.Value) error
	In(key, obj value.Value) (bool, error)

	GetName(scope *value.Object, name string) (value.Value, error)
	BindName(scope *value.Object, name string) (*value.Object, error)
	GetIntrinsic(name string) (value.Value, error)

	Call(callee, this value.Value, args []value.Value, constructing bool) (value.Value, error)

	IteratorNew(v value.Value) (value.Value, error)
	IteratorMore(iter value.Value) (bool, error)
	IteratorNext(iter value.Value) (value.Value, error)
	IteratorClose(iter value.Value) error

	InstanceOf(v, ctor value.Value) (bool, error)
	TypeOf(v value.Value) string
	NewArray(length int) (value.Value, error)
	NewObject() (value.Value, error)
	This(v value.Value) (value.Value, error)
	CheckStack(depth int) error

	// StringPrototype is the object string property lookups start from.
	StringPrototype() *value.Object
}
