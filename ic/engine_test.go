package ic_test

import (
	"math"
	"testing"

	"github.com/chazu/baseline/ic"
	"github.com/chazu/baseline/interp"
	"github.com/chazu/baseline/value"
)

func compile(t *testing.T, e *ic.Engine, code ...ic.Instruction) *ic.Script {
	t.Helper()
	for i := range code {
		code[i].PC = uint32(i)
	}
	s, err := e.Compile(&ic.ScriptSource{Name: "test", Code: code})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	return s
}

func run(t *testing.T, s *ic.Script, pc uint32, f ic.Frame) value.Value {
	t.Helper()
	if err := s.Exec(pc, &f); err != nil {
		t.Fatalf("Exec at pc %d failed: %v", pc, err)
	}
	return f.Result
}

func kinds(en *ic.Entry) []ic.Kind {
	var out []ic.Kind
	for _, s := range en.Stubs() {
		out = append(out, s.Kind())
	}
	return out
}

func TestPolymorphicGetPropCaps(t *testing.T) {
	r := interp.NewRealm()
	e := ic.NewEngine(r, ic.Options{Caps: map[ic.Kind]int{ic.GetPropFallback: 2}})
	s := compile(t, e, ic.Instruction{Op: ic.OpGetProp, Name: "x"})
	en, _ := s.EntryForPC(0)

	a := r.NewPlainObject()
	a.Define("x", value.Int32(1))
	b := r.NewPlainObject()
	b.Define("y", value.Int32(0))
	b.Define("x", value.Int32(2))
	c := r.NewPlainObject()
	c.Define("z", value.Int32(0))
	c.Define("x", value.Int32(3))

	for i, obj := range []*value.Object{a, b, a} {
		got := run(t, s, 0, ic.Frame{Lhs: value.ObjectValue(obj)})
		expected, _ := obj.GetOwn("x")
		if !got.SameValue(expected) {
			t.Errorf("step %d: expected %v, got %v", i, expected, got)
		}
	}
	if en.Misses() != 2 || en.Hits() != 1 {
		t.Errorf("Expected 2 misses and 1 hit, got %d and %d", en.Misses(), en.Hits())
	}
	expected := []ic.Kind{ic.GetPropNative, ic.GetPropNative, ic.GetPropFallback}
	got := kinds(en)
	if len(got) != len(expected) {
		t.Fatalf("Expected chain %v, got %v", expected, got)
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("chain[%d]: expected %s, got %s", i, expected[i], got[i])
		}
	}
	if en.State() != ic.SitePolymorphic {
		t.Errorf("Expected polymorphic site, got %s", en.State())
	}

	// A third shape is served generically and freezes the chain.
	if v := run(t, s, 0, ic.Frame{Lhs: value.ObjectValue(c)}); v.ToInt32() != 3 {
		t.Errorf("Expected 3, got %v", v)
	}
	if len(en.Stubs()) != 3 {
		t.Errorf("Expected no growth past the cap, got %v", kinds(en))
	}
	if en.State() != ic.SiteCapped {
		t.Errorf("Expected capped site, got %s", en.State())
	}
	if e.Stats().SitesCapped != 1 {
		t.Errorf("Expected 1 capped site, got %d", e.Stats().SitesCapped)
	}
}

func TestAttachIsIdempotent(t *testing.T) {
	r := interp.NewRealm()
	e := ic.NewEngine(r, ic.Options{})
	s := compile(t, e, ic.Instruction{Op: ic.OpLt})
	en, _ := s.EntryForPC(0)

	for i := 0; i < 5; i++ {
		got := run(t, s, 0, ic.Frame{Lhs: value.Int32(int32(i)), Rhs: value.Int32(3)})
		if got.ToBoolean() != (i < 3) {
			t.Errorf("%d < 3: got %v", i, got)
		}
	}
	if en.NumOptimizedStubs() != 1 {
		t.Errorf("Expected one stub, got %v", kinds(en))
	}
	if en.Misses() != 1 || en.Hits() != 4 {
		t.Errorf("Expected 1 miss and 4 hits, got %d and %d", en.Misses(), en.Hits())
	}
	if e.CodeCacheSize() == 0 {
		t.Error("Expected the stub's code in the code cache")
	}
}

// Running each operation twice sends the first execution through the
// fallback and the second through the stub it attached; both must agree
// with the generic operation.
func TestStubsAgreeWithGenericOps(t *testing.T) {
	r := interp.NewRealm()
	obj := value.ObjectValue(r.NewPlainObject())
	operands := []value.Value{
		value.Int32(7),
		value.Int32(-3),
		value.Int32(math.MaxInt32),
		value.Int32(0),
		value.Double(2.5),
		value.Double(math.NaN()),
		value.Double(math.Copysign(0, -1)),
		value.String("4"),
		value.String("abc"),
		value.Bool(true),
		value.Undefined(),
		value.Null(),
		obj,
	}
	binary := []ic.Op{ic.OpAdd, ic.OpSub, ic.OpMul, ic.OpDiv, ic.OpMod, ic.OpBitOr, ic.OpBitXor, ic.OpBitAnd, ic.OpLsh, ic.OpRsh, ic.OpUrsh}
	compares := []ic.Op{ic.OpEq, ic.OpNe, ic.OpStrictEq, ic.OpStrictNe, ic.OpLt, ic.OpLe, ic.OpGt, ic.OpGe}

	for _, op := range binary {
		for _, l := range operands {
			for _, rv := range operands {
				expected, err := r.BinaryArith(op, l, rv)
				if err != nil {
					t.Fatalf("%s: generic op failed: %v", op, err)
				}
				e := ic.NewEngine(r, ic.Options{})
				s := compile(t, e, ic.Instruction{Op: op})
				for pass := 0; pass < 2; pass++ {
					got := run(t, s, 0, ic.Frame{Lhs: l, Rhs: rv})
					if !got.SameValue(expected) {
						t.Errorf("%s %v %v pass %d: expected %v, got %v", op, l, rv, pass, expected, got)
					}
				}
			}
		}
	}

	for _, op := range compares {
		for _, l := range operands {
			for _, rv := range operands {
				expected, err := r.Compare(op, l, rv)
				if err != nil {
					t.Fatalf("%s: generic op failed: %v", op, err)
				}
				e := ic.NewEngine(r, ic.Options{})
				s := compile(t, e, ic.Instruction{Op: op})
				for pass := 0; pass < 2; pass++ {
					got := run(t, s, 0, ic.Frame{Lhs: l, Rhs: rv})
					if got.ToBoolean() != expected {
						t.Errorf("%s %v %v pass %d: expected %v, got %v", op, l, rv, pass, expected, got)
					}
				}
			}
		}
	}

	for _, op := range []ic.Op{ic.OpNeg, ic.OpBitNot} {
		for _, v := range operands {
			expected, _ := r.UnaryArith(op, v)
			e := ic.NewEngine(r, ic.Options{})
			s := compile(t, e, ic.Instruction{Op: op})
			for pass := 0; pass < 2; pass++ {
				if got := run(t, s, 0, ic.Frame{Lhs: v}); !got.SameValue(expected) {
					t.Errorf("%s %v pass %d: expected %v, got %v", op, v, pass, expected, got)
				}
			}
		}
	}

	for _, v := range operands {
		expected := r.ToBool(v)
		e := ic.NewEngine(r, ic.Options{})
		s := compile(t, e, ic.Instruction{Op: ic.OpToBool})
		for pass := 0; pass < 2; pass++ {
			if got := run(t, s, 0, ic.Frame{Lhs: v}); got.ToBoolean() != expected {
				t.Errorf("tobool %v pass %d: expected %v, got %v", v, pass, expected, got)
			}
		}
	}
}

func zeroCaps() map[ic.Kind]int {
	caps := make(map[ic.Kind]int)
	for _, k := range ic.SpecializingKinds() {
		caps[k] = 0
	}
	return caps
}

// The same workload run with every cache disabled and with caching on
// must produce identical results.
func TestWorkloadMatchesGenericExecution(t *testing.T) {
	const iterations = 60

	generic := ic.NewEngine(interp.NewRealm(), ic.Options{Caps: zeroCaps()})
	gw, err := interp.RunWorkload(generic, generic.Runtime().(*interp.Realm), iterations)
	if err != nil {
		t.Fatalf("generic workload failed: %v", err)
	}
	if generic.Stats().StubsAttached != 0 {
		t.Errorf("Expected no stubs with zero caps, got %d", generic.Stats().StubsAttached)
	}

	cached := ic.NewEngine(interp.NewRealm(), ic.Options{})
	cw, err := interp.RunWorkload(cached, cached.Runtime().(*interp.Realm), iterations)
	if err != nil {
		t.Fatalf("cached workload failed: %v", err)
	}
	if cw.Checksum() != gw.Checksum() {
		t.Errorf("Expected checksum %g, got %g", gw.Checksum(), cw.Checksum())
	}

	stats := cached.CollectSiteStats()
	if stats.Polymorphic == 0 {
		t.Error("Expected polymorphic sites")
	}
	if stats.TotalHits == 0 {
		t.Error("Expected stub hits")
	}
	if stats.MonitorStubs == 0 {
		t.Error("Expected type-monitor stubs")
	}
}

func TestPurgeThenRerun(t *testing.T) {
	r := interp.NewRealm()
	e := ic.NewEngine(r, ic.Options{})
	w, err := interp.RunWorkload(e, r, 20)
	if err != nil {
		t.Fatalf("workload failed: %v", err)
	}
	e.PurgeOptimizedStubs()
	if e.OptimizedSpace().Len() != 0 {
		t.Errorf("Expected an empty optimized space, got %d live", e.OptimizedSpace().Len())
	}
	for _, en := range w.Script().OpEntries() {
		for _, st := range en.Stubs() {
			if st.Optimized() {
				t.Errorf("pc %d: %s survived the purge", en.PCOffset(), st)
			}
		}
	}
	if err := w.Run(20); err != nil {
		t.Fatalf("workload after purge failed: %v", err)
	}
	if e.Stats().Purges != 1 {
		t.Errorf("Expected 1 purge, got %d", e.Stats().Purges)
	}
}

func TestGetNameScopeStubs(t *testing.T) {
	r := interp.NewRealm()
	e := ic.NewEngine(r, ic.Options{})
	s := compile(t, e,
		ic.Instruction{Op: ic.OpGetName, Name: "a"},
		ic.Instruction{Op: ic.OpGetName, Name: "Math"},
	)
	outer := interp.NewScopeLayout("a").Instantiate(r.Global(), value.Int32(9))
	layout := interp.NewScopeLayout("b")

	for i := 0; i < 3; i++ {
		inner := layout.Instantiate(outer)
		if v := run(t, s, 0, ic.Frame{Scope: inner}); v.ToInt32() != 9 {
			t.Errorf("Expected 9, got %v", v)
		}
		run(t, s, 1, ic.Frame{Scope: r.Global()})
	}
	en, _ := s.EntryForPC(0)
	if k := en.FirstStub().Kind(); k != ic.GetNameScope1 {
		t.Errorf("Expected GetName_Scope1, got %s", k)
	}
	if en.Hits() != 2 {
		t.Errorf("Expected fresh scopes of one layout to hit, got %d hits", en.Hits())
	}
	en, _ = s.EntryForPC(1)
	if k := en.FirstStub().Kind(); k != ic.GetNameGlobal {
		t.Errorf("Expected GetName_Global, got %s", k)
	}

	if err := s.Exec(0, &ic.Frame{Scope: r.Global()}); !interp.IsError(err, interp.ReferenceError) {
		t.Errorf("Expected ReferenceError to propagate, got %v", err)
	}
}

func TestRequestedSweepRunsAtSafePoint(t *testing.T) {
	r := interp.NewRealm()
	e := ic.NewEngine(r, ic.Options{})
	w, err := interp.RunWorkload(e, r, 5)
	if err != nil {
		t.Fatalf("workload failed: %v", err)
	}
	if e.OptimizedSpace().Len() == 0 {
		t.Fatal("Expected optimized stubs after warmup")
	}

	e.RequestSweep(true)
	if !e.SweepPending() {
		t.Error("Expected a pending sweep")
	}
	if err := w.Run(1); err != nil {
		t.Fatalf("workload failed: %v", err)
	}
	if e.SweepPending() {
		t.Error("Expected the sweep to have run")
	}
	if e.Stats().Sweeps != 1 || e.Stats().Purges != 1 {
		t.Errorf("Expected 1 sweep and 1 purge, got %d and %d", e.Stats().Sweeps, e.Stats().Purges)
	}
	if !e.LastSweep().Purged {
		t.Error("Expected the last sweep to purge")
	}
	if e.OptimizedSpace().Len() != 0 {
		t.Errorf("Expected an empty optimized space, got %d", e.OptimizedSpace().Len())
	}
}

func TestClearedIntrinsicConstantFallsThrough(t *testing.T) {
	r := interp.NewRealm()
	e := ic.NewEngine(r, ic.Options{})
	proto := r.NewPlainObject()
	r.DefineIntrinsic("Proto", value.ObjectValue(proto))
	s := compile(t, e, ic.Instruction{Op: ic.OpIntrinsic, Name: "Proto"})
	en, _ := s.EntryForPC(0)

	run(t, s, 0, ic.Frame{})
	if k := en.FirstStub().Kind(); k != ic.GetIntrinsicConstant {
		t.Fatalf("Expected GetIntrinsic_Constant, got %s", k)
	}

	ct := &ic.ClearingTracer{IsLive: func(any) bool { return false }}
	e.Sweep(ct, false)
	if ct.Cleared == 0 {
		t.Error("Expected the constant to be cleared")
	}

	misses := en.Misses()
	got := run(t, s, 0, ic.Frame{})
	if !got.IsObject() || got.ToObject() != proto {
		t.Errorf("Expected the intrinsic object, got %v", got)
	}
	if en.Misses() != misses+1 {
		t.Errorf("Expected the cleared stub to fall through to the fallback")
	}

	// Primitive constants hold no reference and survive the same sweep.
	s2 := compile(t, e, ic.Instruction{Op: ic.OpIntrinsic, Name: "MAX_INT32"})
	run(t, s2, 0, ic.Frame{})
	e.Sweep(&ic.ClearingTracer{IsLive: func(any) bool { return false }}, false)
	if v := run(t, s2, 0, ic.Frame{}); v.ToInt32() != math.MaxInt32 {
		t.Errorf("Expected MAX_INT32, got %v", v)
	}
}
