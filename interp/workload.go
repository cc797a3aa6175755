package interp

import (
	"fmt"

	"github.com/chazu/baseline/ic"
	"github.com/chazu/baseline/value"
)

// Program counters of the demo workload's IC sites.
const (
	pcLoop uint32 = iota
	pcStack
	pcAdd
	pcLess
	pcStrictEq
	pcGetX
	pcLength
	pcSetX
	pcGetElem
	pcSetElem
	pcName
	pcGlobalName
	pcIntrinsic
	pcCall
	pcToBool
	pcNeg
	pcIter
	pcMore
	pcNext
	pcEndIter
	pcSwitch
	pcTypeOf
	pcInstanceOf
	pcIn
	pcNewArray
	pcNewObject
	pcThis
	pcToNumber
	pcNew
	pcBindName
	pcBitAnd
)

// WorkloadSource is the script the demo workload runs. Every IC family
// has one site.
func WorkloadSource() *ic.ScriptSource {
	return &ic.ScriptSource{
		Name:  "workload",
		Nargs: 1,
		Code: []ic.Instruction{
			{Op: ic.OpLoopEntry, PC: pcLoop},
			{Op: ic.OpStackCheck, PC: pcStack},
			{Op: ic.OpAdd, PC: pcAdd},
			{Op: ic.OpLt, PC: pcLess},
			{Op: ic.OpStrictEq, PC: pcStrictEq},
			{Op: ic.OpGetProp, PC: pcGetX, Name: "x"},
			{Op: ic.OpGetProp, PC: pcLength, Name: "length"},
			{Op: ic.OpSetProp, PC: pcSetX, Name: "x"},
			{Op: ic.OpGetElem, PC: pcGetElem},
			{Op: ic.OpSetElem, PC: pcSetElem},
			{Op: ic.OpGetName, PC: pcName, Name: "counter"},
			{Op: ic.OpGetName, PC: pcGlobalName, Name: "Math"},
			{Op: ic.OpIntrinsic, PC: pcIntrinsic, Name: "PI"},
			{Op: ic.OpCall, PC: pcCall, Operand: 1},
			{Op: ic.OpToBool, PC: pcToBool},
			{Op: ic.OpNeg, PC: pcNeg},
			{Op: ic.OpIter, PC: pcIter},
			{Op: ic.OpMoreIter, PC: pcMore},
			{Op: ic.OpIterNext, PC: pcNext},
			{Op: ic.OpEndIter, PC: pcEndIter},
			{Op: ic.OpTableSwitch, PC: pcSwitch, Operand: 0, Targets: []uint32{100, 200, 300}, Default: 900},
			{Op: ic.OpTypeOf, PC: pcTypeOf},
			{Op: ic.OpInstanceOf, PC: pcInstanceOf},
			{Op: ic.OpIn, PC: pcIn},
			{Op: ic.OpNewArray, PC: pcNewArray, Operand: 3},
			{Op: ic.OpNewObject, PC: pcNewObject},
			{Op: ic.OpThis, PC: pcThis},
			{Op: ic.OpToNumber, PC: pcToNumber},
			{Op: ic.OpNew, PC: pcNew, Operand: 1},
			{Op: ic.OpBindName, PC: pcBindName, Name: "counter"},
			{Op: ic.OpBitAnd, PC: pcBitAnd},
		},
	}
}

// Workload drives a script through polymorphic operand streams so that
// every kind of chain grows.
type Workload struct {
	engine *ic.Engine
	realm  *Realm
	script *ic.Script

	points   []*value.Object
	arrays   []value.Value
	typed    *value.Object
	inner    *value.Object
	square   *value.Object
	point    *value.Object
	mathAbs  *value.Object
	checksum float64
}

// NewWorkload compiles the workload script on e.
func NewWorkload(e *ic.Engine, r *Realm) (*Workload, error) {
	s, err := e.Compile(WorkloadSource())
	if err != nil {
		return nil, err
	}
	w := &Workload{engine: e, realm: r, script: s}

	// Two shapes in one group, plus a receiver that inherits x.
	a := r.NewPlainObject()
	a.Define("x", value.Int32(1))
	a.Define("y", value.Int32(2))
	b := r.NewPlainObject()
	b.Define("y", value.Int32(3))
	b.Define("x", value.Double(4.5))
	base := r.NewPlainObject()
	base.Define("x", value.String("inherited"))
	c := r.NewObjectIn(base, r.NewGroup())
	w.points = []*value.Object{a, b, c}

	w.arrays = []value.Value{
		value.ObjectValue(r.NewArrayOf(value.Int32(1), value.Int32(2), value.Int32(3))),
		value.String("hello"),
	}
	w.typed = r.NewTypedArray(value.ElemFloat64, 8)
	w.arrays = append(w.arrays, value.ObjectValue(w.typed))

	outer := NewScopeLayout("counter").Instantiate(r.Global(), value.Int32(0))
	w.inner = NewScopeLayout("tmp").Instantiate(outer)

	w.square = r.NewScriptedFunction("square", 1, func(this value.Value, args []value.Value) (value.Value, error) {
		n, err := r.toNumber(args[0])
		if err != nil {
			return value.Value{}, err
		}
		return value.Number(n * n), nil
	})
	w.point = r.NewScriptedFunction("Point", 1, func(this value.Value, args []value.Value) (value.Value, error) {
		if len(args) > 0 {
			if err := r.SetProp(this, "x", args[0]); err != nil {
				return value.Value{}, err
			}
		}
		return value.Undefined(), nil
	})
	math, _ := r.Global().GetOwn("Math")
	abs, _ := math.ToObject().GetOwn("abs")
	w.mathAbs = abs.ToObject()
	return w, nil
}

// Script returns the compiled workload script.
func (w *Workload) Script() *ic.Script { return w.script }

// Checksum folds every numeric result seen so far.
func (w *Workload) Checksum() float64 { return w.checksum }

func (w *Workload) exec(pc uint32, f *ic.Frame) (value.Value, error) {
	if err := w.script.Exec(pc, f); err != nil {
		return value.Value{}, fmt.Errorf("pc %d: %w", pc, err)
	}
	if f.Result.IsNumber() {
		w.checksum += f.Result.ToNumber()
	}
	return f.Result, nil
}

// Run executes the workload body iterations times.
func (w *Workload) Run(iterations int) error {
	for i := 0; i < iterations; i++ {
		if err := w.step(i); err != nil {
			return err
		}
		w.engine.SafePoint()
	}
	log.Infof("workload ran %d iterations, checksum %g", iterations, w.checksum)
	return nil
}

func (w *Workload) step(i int) error {
	r := w.realm
	n := value.Int32(int32(i))
	w.script.MonitorArguments(value.Undefined(), []value.Value{n})

	steps := []struct {
		pc uint32
		f  ic.Frame
	}{
		{pcLoop, ic.Frame{}},
		{pcStack, ic.Frame{Depth: i % 10}},
		{pcAdd, ic.Frame{Lhs: w.addLhs(i), Rhs: n}},
		{pcLess, ic.Frame{Lhs: n, Rhs: w.numberOrString(i)}},
		{pcStrictEq, ic.Frame{Lhs: w.numberOrString(i), Rhs: w.numberOrString(i + 1)}},
		{pcGetX, ic.Frame{Lhs: value.ObjectValue(w.points[i%len(w.points)])}},
		{pcLength, ic.Frame{Lhs: w.arrays[i%len(w.arrays)]}},
		{pcSetX, ic.Frame{Lhs: value.ObjectValue(w.points[i%2]), Val: w.numberOrString(i)}},
		{pcGetElem, ic.Frame{Lhs: w.arrays[i%len(w.arrays)], Rhs: value.Int32(int32(i % 3))}},
		{pcSetElem, ic.Frame{Lhs: w.elemTarget(i), Rhs: value.Int32(int32(i % 8)), Val: value.Double(float64(i) / 2)}},
		{pcName, ic.Frame{Scope: w.inner}},
		{pcGlobalName, ic.Frame{Scope: r.Global()}},
		{pcIntrinsic, ic.Frame{}},
		{pcCall, ic.Frame{Lhs: w.callee(i), This: value.Undefined(), Args: []value.Value{value.Int32(int32(-i))}}},
		{pcToBool, ic.Frame{Lhs: w.numberOrString(i)}},
		{pcNeg, ic.Frame{Lhs: w.numberOrString(i)}},
		{pcSwitch, ic.Frame{Lhs: value.Int32(int32(i % 4))}},
		{pcTypeOf, ic.Frame{Lhs: w.numberOrString(i)}},
		{pcInstanceOf, ic.Frame{Lhs: value.ObjectValue(w.points[0]), Rhs: value.ObjectValue(w.point)}},
		{pcIn, ic.Frame{Lhs: value.String("x"), Rhs: value.ObjectValue(w.points[i%len(w.points)])}},
		{pcNewArray, ic.Frame{}},
		{pcNewObject, ic.Frame{}},
		{pcThis, ic.Frame{This: value.Undefined()}},
		{pcToNumber, ic.Frame{Lhs: w.numberOrString(i)}},
		{pcNew, ic.Frame{Lhs: value.ObjectValue(w.point), Args: []value.Value{n}}},
		{pcBindName, ic.Frame{Scope: w.inner}},
		{pcBitAnd, ic.Frame{Lhs: n, Rhs: value.Int32(0xff)}},
	}
	for j := range steps {
		if _, err := w.exec(steps[j].pc, &steps[j].f); err != nil {
			return err
		}
	}

	// Iterate the current array-like to the end.
	f := ic.Frame{Lhs: w.arrays[i%len(w.arrays)]}
	iter, err := w.exec(pcIter, &f)
	if err != nil {
		return err
	}
	for {
		f = ic.Frame{Lhs: iter}
		more, err := w.exec(pcMore, &f)
		if err != nil {
			return err
		}
		if !more.ToBoolean() {
			break
		}
		f = ic.Frame{Lhs: iter}
		if _, err := w.exec(pcNext, &f); err != nil {
			return err
		}
	}
	f = ic.Frame{Lhs: iter}
	_, err = w.exec(pcEndIter, &f)
	return err
}

func (w *Workload) addLhs(i int) value.Value {
	switch i % 4 {
	case 0:
		return value.Int32(int32(i))
	case 1:
		return value.Double(float64(i) + 0.5)
	case 2:
		return value.String("s")
	}
	return value.ObjectValue(w.points[0])
}

func (w *Workload) numberOrString(i int) value.Value {
	switch i % 3 {
	case 0:
		return value.Int32(int32(i))
	case 1:
		return value.Double(float64(i) * 0.25)
	}
	return value.String(fmt.Sprint(i))
}

func (w *Workload) elemTarget(i int) value.Value {
	if i%2 == 0 {
		return value.ObjectValue(w.typed)
	}
	return w.arrays[0]
}

func (w *Workload) callee(i int) value.Value {
	if i%2 == 0 {
		return value.ObjectValue(w.square)
	}
	return value.ObjectValue(w.mathAbs)
}

// RunWorkload compiles and runs the demo workload.
func RunWorkload(e *ic.Engine, r *Realm, iterations int) (*Workload, error) {
	w, err := NewWorkload(e, r)
	if err != nil {
		return nil, err
	}
	return w, w.Run(iterations)
}
