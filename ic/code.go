package ic

import (
	"fmt"

	"github.com/chazu/baseline/value"
)

// StubFunc is the body of a main-chain stub. It returns false when its
// guard fails, in which case control moves to the next stub in the chain.
type StubFunc func(s *Stub, f *Frame) (bool, error)

// TypeCheckFunc is the body of a monitor or update stub: a pure type
// membership test with no access to the engine.
type TypeCheckFunc func(s *Stub, v value.Value) bool

// CodeParams are the compile-time parameters that select a variant of a
// kind's code. Stubs that agree on kind and params share code.
type CodeParams struct {
	Op    Op
	Flags uint8
}

// codeKey packs kind, op and flags into the code cache key.
func codeKey(kind Kind, p CodeParams) int32 {
	return int32(kind) | int32(p.Op)<<16 | int32(p.Flags&0x7f)<<24
}

// Code is a compiled stub body. It is owned by the engine's code cache and
// referenced, never owned, by stubs.
type Code struct {
	key    int32
	kind   Kind
	params CodeParams
	run    StubFunc
	check  TypeCheckFunc
	addr   uintptr
}

// NewCode wraps a compiled body. Exactly one of run and check is set,
// depending on whether kind belongs to a type-feedback chain.
func NewCode(kind Kind, p CodeParams, run StubFunc, check TypeCheckFunc, addr uintptr) *Code {
	return &Code{
		key:    codeKey(kind, p),
		kind:   kind,
		params: p,
		run:    run,
		check:  check,
		addr:   addr,
	}
}

func (c *Code) Key() int32         { return c.key }
func (c *Code) Kind() Kind         { return c.kind }
func (c *Code) Params() CodeParams { return c.params }

// Addr is the raw entry address of the code.
func (c *Code) Addr() uintptr { return c.addr }

// CodeGenerator produces stub code. The engine never looks inside the
// result beyond calling it.
type CodeGenerator interface {
	Compile(kind Kind, p CodeParams) (*Code, error)
}

// stubCode returns the shared code for (kind, params), compiling it on
// first use.
func (e *Engine) stubCode(kind Kind, p CodeParams) (*Code, error) {
	key := codeKey(kind, p)
	if c, ok := e.codes[key]; ok {
		return c, nil
	}
	c, err := e.gen.Compile(kind, p)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", kind, err)
	}
	if c == nil {
		return nil, fmt.Errorf("compile %s: %w", kind, ErrCodeGeneration)
	}
	assertf(c.kind == kind, "generator returned %s code for %s", c.kind, kind)
	isCheck := kind.IsMonitorKind() || kind.IsUpdateKind()
	assertf(isCheck == (c.check != nil) && isCheck == (c.run == nil), "%s code has the wrong body shape", kind)
	e.codes[key] = c
	return c, nil
}
