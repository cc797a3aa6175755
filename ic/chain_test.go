package ic

import (
	"testing"

	"github.com/chazu/baseline/value"
)

// compileOps compiles a script with one instruction per op, at pcs 0..n-1.
func compileOps(t *testing.T, e *Engine, ops ...Op) *Script {
	t.Helper()
	src := &ScriptSource{Name: "test"}
	for i, op := range ops {
		src.Code = append(src.Code, Instruction{Op: op, PC: uint32(i)})
	}
	s, err := e.Compile(src)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	return s
}

func expectPanicInvariant(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("Expected invariant panic, got none")
		}
		if _, ok := r.(*InvariantError); !ok {
			t.Errorf("Expected *InvariantError, got %T", r)
		}
	}()
	fn()
}

func kindsOf(en *Entry) []Kind {
	var out []Kind
	for _, s := range en.Stubs() {
		out = append(out, s.Kind())
	}
	return out
}

func TestEveryChainEndsInFallback(t *testing.T) {
	e := NewEngine(nil, Options{})
	var ops []Op
	for op := OpNop + 1; op < opLimit; op++ {
		if op.HasIC() {
			ops = append(ops, op)
		}
	}
	s := compileOps(t, e, ops...)

	if len(s.OpEntries()) != len(ops) {
		t.Fatalf("Expected %d op entries, got %d", len(ops), len(s.OpEntries()))
	}
	for i, en := range s.OpEntries() {
		stubs := en.Stubs()
		last := stubs[len(stubs)-1]
		if !last.IsFallback() {
			t.Errorf("pc %d: chain ends in %s", en.PCOffset(), last)
		}
		if last.Kind() != ops[i].FallbackKind() {
			t.Errorf("pc %d: expected %s, got %s", en.PCOffset(), ops[i].FallbackKind(), last.Kind())
		}
		if last.Entry() != en {
			t.Errorf("pc %d: fallback is not bound to its entry", en.PCOffset())
		}
		if *last.LastStubLink() != last {
			t.Errorf("pc %d: insertion cursor does not point at the fallback", en.PCOffset())
		}
	}
	for _, en := range s.Entries()[:1] {
		if en.IsForOp() {
			t.Error("Expected the this-monitor entry to be synthetic")
		}
		if en.FirstStub().Kind() != TypeMonitorFallback {
			t.Errorf("Expected TypeMonitor_Fallback, got %s", en.FirstStub().Kind())
		}
	}
}

func TestEntryForPC(t *testing.T) {
	e := NewEngine(nil, Options{})
	s, err := e.Compile(&ScriptSource{
		Name:  "pcs",
		Nargs: 2,
		Code: []Instruction{
			{Op: OpAdd, PC: 0},
			{Op: OpNop, PC: 3},
			{Op: OpLt, PC: 7},
		},
	})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if s.NumEntries() != 5 {
		t.Errorf("Expected 5 entries (this, 2 args, 2 ops), got %d", s.NumEntries())
	}
	en, ok := s.EntryForPC(7)
	if !ok || en.Instruction().Op != OpLt {
		t.Fatalf("Expected entry for the compare at pc 7")
	}
	if _, ok := s.EntryForPC(3); ok {
		t.Error("Nop should have no entry")
	}
	if _, ok := s.EntryForPC(100); ok {
		t.Error("Out-of-range pc should have no entry")
	}
	first, _ := s.EntryForPC(0)
	if first.ReturnOffset() >= en.ReturnOffset() {
		t.Errorf("Expected increasing return offsets, got %d then %d", first.ReturnOffset(), en.ReturnOffset())
	}
	if s.ArgEntry(1).MonitorChain().ArgumentIndex() != 2 {
		t.Errorf("Expected argument monitor index 2, got %d", s.ArgEntry(1).MonitorChain().ArgumentIndex())
	}
}

func TestCompileRejectsUnorderedPCs(t *testing.T) {
	e := NewEngine(nil, Options{})
	_, err := e.Compile(&ScriptSource{
		Name: "bad",
		Code: []Instruction{{Op: OpAdd, PC: 4}, {Op: OpSub, PC: 2}},
	})
	if err == nil {
		t.Error("Expected an error for out-of-order pcs")
	}
}

func TestAddNewStubAppendsBeforeFallback(t *testing.T) {
	e := NewEngine(nil, Options{})
	en := compileOps(t, e, OpEq).OpEntries()[0]
	fb := en.FallbackStub()

	a := e.attach(fb, CompareInt32, uint16(OpEq), CodeParams{Op: OpEq}, nil)
	b := e.attach(fb, CompareString, uint16(OpEq), CodeParams{Op: OpEq}, nil)
	if a == nil || b == nil {
		t.Fatal("attach failed")
	}

	got := kindsOf(en)
	want := []Kind{CompareInt32, CompareString, CompareFallback}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Expected %v, got %v", want, got)
		}
	}
	if fb.LastStubLink() != &b.next {
		t.Error("Expected cursor at the last attached stub's next link")
	}
	if fb.NumOptimizedStubs() != 2 {
		t.Errorf("Expected 2 optimized stubs, got %d", fb.NumOptimizedStubs())
	}
	fb.checkCount()
}

func TestUnlinkLastStubMovesCursor(t *testing.T) {
	e := NewEngine(nil, Options{})
	en := compileOps(t, e, OpEq).OpEntries()[0]
	fb := en.FallbackStub()

	a := e.attach(fb, CompareInt32, uint16(OpEq), CodeParams{Op: OpEq}, nil)
	b := e.attach(fb, CompareString, uint16(OpEq), CodeParams{Op: OpEq}, nil)

	fb.UnlinkStub(a, b)
	if fb.LastStubLink() != &a.next {
		t.Error("Expected cursor to move back to a.next")
	}
	if a.Next() != fb {
		t.Errorf("Expected a to link to the fallback, got %v", a.Next())
	}
	if b.HasNext() {
		t.Error("Expected the unlinked stub to have no next")
	}

	c := e.attach(fb, CompareBoolean, uint16(OpEq), CodeParams{Op: OpEq}, nil)
	got := kindsOf(en)
	if len(got) != 3 || got[0] != CompareInt32 || got[1] != CompareBoolean || got[2] != CompareFallback {
		t.Errorf("Expected [Compare_Int32 Compare_Boolean Compare_Fallback], got %v", got)
	}
	if fb.LastStubLink() != &c.next {
		t.Error("Expected cursor at c.next")
	}
	fb.checkCount()
}

func TestUnlinkFirstStub(t *testing.T) {
	e := NewEngine(nil, Options{})
	en := compileOps(t, e, OpEq).OpEntries()[0]
	fb := en.FallbackStub()

	a := e.attach(fb, CompareInt32, uint16(OpEq), CodeParams{Op: OpEq}, nil)
	b := e.attach(fb, CompareString, uint16(OpEq), CodeParams{Op: OpEq}, nil)

	fb.UnlinkStub(nil, a)
	if en.FirstStub() != b {
		t.Errorf("Expected b first, got %s", en.FirstStub())
	}
	if fb.LastStubLink() != &b.next {
		t.Error("Unlinking a non-last stub must not move the cursor")
	}

	fb.UnlinkStub(nil, b)
	if en.FirstStub() != fb {
		t.Errorf("Expected only the fallback, got %s", en.FirstStub())
	}
	if fb.LastStubLink() != &en.firstStub {
		t.Error("Expected cursor back at the entry's first-stub link")
	}
	if fb.NumOptimizedStubs() != 0 {
		t.Errorf("Expected 0 optimized stubs, got %d", fb.NumOptimizedStubs())
	}
}

func TestUnlinkStubsWithKind(t *testing.T) {
	e := NewEngine(nil, Options{})
	en := compileOps(t, e, OpLt).OpEntries()[0]
	fb := en.FallbackStub()

	e.attach(fb, CompareInt32, uint16(OpLt), CodeParams{Op: OpLt}, nil)
	e.attach(fb, CompareDouble, uint16(OpLt), CodeParams{Op: OpLt}, nil)
	e.attach(fb, CompareInt32, uint16(OpLt), CodeParams{Op: OpLt}, nil)

	if n := fb.UnlinkStubsWithKind(CompareInt32); n != 2 {
		t.Errorf("Expected 2 removed, got %d", n)
	}
	if fb.HasStub(CompareInt32) {
		t.Error("Expected no Compare_Int32 stubs left")
	}
	if !fb.HasStub(CompareDouble) {
		t.Error("Expected Compare_Double to remain")
	}
	fb.checkCount()
}

func TestUnlinkDetachedStubPanics(t *testing.T) {
	e := NewEngine(nil, Options{})
	en := compileOps(t, e, OpEq).OpEntries()[0]
	fb := en.FallbackStub()
	a := e.attach(fb, CompareInt32, uint16(OpEq), CodeParams{Op: OpEq}, nil)
	fb.UnlinkStub(nil, a)

	expectPanicInvariant(t, func() { fb.UnlinkStub(nil, a) })
}

func TestAttachFallbackPanics(t *testing.T) {
	e := NewEngine(nil, Options{})
	en := compileOps(t, e, OpEq, OpLt).OpEntries()
	other := en[1].FallbackStub()
	expectPanicInvariant(t, func() { en[0].FallbackStub().AddNewStub(other) })
}

func TestCapStopsGrowth(t *testing.T) {
	e := NewEngine(nil, Options{Caps: map[Kind]int{CompareFallback: 2}})
	en := compileOps(t, e, OpEq).OpEntries()[0]
	fb := en.FallbackStub()

	kinds := []Kind{CompareInt32, CompareString, CompareBoolean, CompareObject}
	for _, k := range kinds {
		if e.canAttach(fb) {
			e.attach(fb, k, uint16(OpEq), CodeParams{Op: OpEq}, nil)
		}
	}
	if fb.NumOptimizedStubs() != 2 {
		t.Errorf("Expected 2 stubs at cap, got %d", fb.NumOptimizedStubs())
	}
	if !fb.Capped() {
		t.Error("Expected the fallback to be capped")
	}
	if en.State() != SiteCapped {
		t.Errorf("Expected capped site, got %s", en.State())
	}
	if e.Stats().SitesCapped != 1 {
		t.Errorf("Expected 1 capped site, got %d", e.Stats().SitesCapped)
	}

	// The cap survives a purge.
	e.PurgeOptimizedStubs()
	if fb.NumOptimizedStubs() != 0 {
		t.Errorf("Expected purge to empty the chain, got %d", fb.NumOptimizedStubs())
	}
	if e.canAttach(fb) {
		t.Error("Expected a capped fallback to stay frozen after a purge")
	}
}

func TestZeroCapNeverAttaches(t *testing.T) {
	e := NewEngine(nil, Options{})
	fb := compileOps(t, e, OpIn).OpEntries()[0].FallbackStub()
	if e.canAttach(fb) {
		t.Error("In_Fallback should never specialize")
	}
	if e.Stats().SitesCapped != 0 {
		t.Errorf("A zero cap should not count as a capped site, got %d", e.Stats().SitesCapped)
	}
}

func TestCodeIsSharedByKey(t *testing.T) {
	e := NewEngine(nil, Options{})
	ens := compileOps(t, e, OpLt, OpLt, OpGt).OpEntries()

	a := e.attach(ens[0].FallbackStub(), CompareInt32, uint16(OpLt), CodeParams{Op: OpLt}, nil)
	b := e.attach(ens[1].FallbackStub(), CompareInt32, uint16(OpLt), CodeParams{Op: OpLt}, nil)
	c := e.attach(ens[2].FallbackStub(), CompareInt32, uint16(OpGt), CodeParams{Op: OpGt}, nil)

	if a.Code() != b.Code() {
		t.Error("Expected stubs with the same kind and op to share code")
	}
	if a.Code() == c.Code() {
		t.Error("Expected different ops to get different code")
	}
	if a.Code().Key() != codeKey(CompareInt32, CodeParams{Op: OpLt}) {
		t.Errorf("Unexpected code key %#x", a.Code().Key())
	}
	if ens[0].FallbackStub().Code() != ens[2].FallbackStub().Code() {
		t.Error("Expected fallbacks of the same kind to share code")
	}
}

func TestCodeKeyLayout(t *testing.T) {
	k := codeKey(BinaryArithInt32, CodeParams{Op: OpMul, Flags: 1})
	if Kind(k&0xffff) != BinaryArithInt32 {
		t.Errorf("Expected kind in the low half, got %d", k&0xffff)
	}
	if Op((k>>16)&0xff) != OpMul {
		t.Errorf("Expected op in bits 16-23, got %d", (k>>16)&0xff)
	}
	if (k>>24)&0x7f != 1 {
		t.Errorf("Expected flags in bits 24-30, got %d", (k>>24)&0x7f)
	}
	if k < 0 {
		t.Error("Code keys must be non-negative")
	}
}

func TestSpaceSelection(t *testing.T) {
	e := NewEngine(nil, Options{})
	cases := []struct {
		kind  Kind
		space *StubSpace
	}{
		{CompareInt32, e.optimizedSpace},
		{TypeMonitorPrimitive, e.optimizedSpace},
		{TypeUpdateFallback, e.optimizedSpace},
		{CallScripted, e.fallbackSpace},
		{CallFallback, e.fallbackSpace},
		{UseCountFallback, e.fallbackSpace},
		{BinaryArithStringObjectConcat, e.fallbackSpace},
		{BinaryArithStringConcat, e.optimizedSpace},
		{TypeMonitorFallback, e.fallbackSpace},
		{GetPropFallback, e.fallbackSpace},
	}
	for _, c := range cases {
		if got := e.spaceFor(c.kind); got != c.space {
			t.Errorf("%s: expected %s space, got %s", c.kind, c.space.Name(), got.Name())
		}
	}
}

func TestSpaceLimitFailsSoftly(t *testing.T) {
	e := NewEngine(nil, Options{OptimizedSpaceLimit: 1})
	fb := compileOps(t, e, OpEq).OpEntries()[0].FallbackStub()

	if e.attach(fb, CompareInt32, uint16(OpEq), CodeParams{Op: OpEq}, nil) == nil {
		t.Fatal("Expected first attach to succeed")
	}
	if e.attach(fb, CompareString, uint16(OpEq), CodeParams{Op: OpEq}, nil) != nil {
		t.Error("Expected second attach to fail at the space limit")
	}
	if e.Stats().AttachFailures != 1 {
		t.Errorf("Expected 1 attach failure, got %d", e.Stats().AttachFailures)
	}
	if fb.NumOptimizedStubs() != 1 {
		t.Errorf("Expected the chain unchanged, got %d stubs", fb.NumOptimizedStubs())
	}
}

func TestDiscardReleasesFallbackSpace(t *testing.T) {
	ref := NewEngine(nil, Options{})
	compileOps(t, ref, OpGetProp, OpCall)
	n := ref.FallbackSpace().Len()

	e := NewEngine(nil, Options{FallbackSpaceLimit: n})
	for i := 0; i < 5; i++ {
		s := compileOps(t, e, OpGetProp, OpCall)
		if e.FallbackSpace().Len() != n {
			t.Fatalf("cycle %d: expected %d records, got %d", i, n, e.FallbackSpace().Len())
		}
		e.Discard(s)
		if e.FallbackSpace().Len() != 0 {
			t.Fatalf("cycle %d: expected records freed by Discard, got %d", i, e.FallbackSpace().Len())
		}
	}
	if e.FallbackSpace().TotalAllocated() != uint64(5*n) {
		t.Errorf("Expected %d allocations, got %d", 5*n, e.FallbackSpace().TotalAllocated())
	}
}

func TestStubSpaceReusesReleased(t *testing.T) {
	sp := NewStubSpace("test", 1)
	s := sp.alloc()
	s.extra = 3
	sp.release(s)
	if sp.Len() != 0 {
		t.Errorf("Expected no live records, got %d", sp.Len())
	}
	again := sp.alloc()
	if again != s || again.extra != 0 {
		t.Error("Expected the released record back, zeroed")
	}
	if sp.alloc() != nil {
		t.Error("Expected the limit to still apply")
	}
}

func TestStubSpaceChunks(t *testing.T) {
	sp := NewStubSpace("test", 0)
	first := sp.alloc()
	for i := 0; i < stubChunkSize*2; i++ {
		sp.alloc()
	}
	first.extra = 7
	if sp.Len() != stubChunkSize*2+1 {
		t.Errorf("Expected %d records, got %d", stubChunkSize*2+1, sp.Len())
	}
	if sp.chunks[0][0].extra != 7 {
		t.Error("Expected records to stay in place as the space grows")
	}
	sp.FreeAll()
	if sp.Len() != 0 {
		t.Errorf("Expected empty space after FreeAll, got %d", sp.Len())
	}
	if sp.TotalAllocated() != uint64(stubChunkSize*2+1) {
		t.Errorf("Expected total to survive FreeAll, got %d", sp.TotalAllocated())
	}
}

func TestPurgeKeepsCallStubs(t *testing.T) {
	e := NewEngine(nil, Options{})
	ens := compileOps(t, e, OpLt, OpCall).OpEntries()
	cmp, call := ens[0].FallbackStub(), ens[1].FallbackStub()

	e.attach(cmp, CompareInt32, uint16(OpLt), CodeParams{Op: OpLt}, nil)
	e.attach(cmp, CompareDouble, uint16(OpLt), CodeParams{Op: OpLt}, nil)

	fn := value.NewFunctionObject(value.EmptyShape(value.ClassFunction, nil, 0), nil, &value.Function{Name: "f"})
	cs := e.attach(call, CallNative, 0, CodeParams{}, &CallData{Callee: value.MakeWeak(fn)})
	if cs == nil {
		t.Fatal("Expected call stub to attach")
	}
	m := call.MonitorChain()
	m.Monitor(e, value.Int32(1))
	if m.NumOptimizedStubs() != 1 {
		t.Fatalf("Expected one monitor stub, got %d", m.NumOptimizedStubs())
	}

	removed := e.PurgeOptimizedStubs()
	if removed != 2 {
		t.Errorf("Expected 2 stubs purged, got %d", removed)
	}
	if ens[0].FirstStub() != cmp {
		t.Error("Expected the compare chain to hold only its fallback")
	}
	if ens[1].FirstStub() != cs {
		t.Error("Expected the call stub to survive the purge")
	}
	if m.NumOptimizedStubs() != 0 || m.First() != m.Fallback() {
		t.Error("Expected the monitor chain to be reset")
	}
	if cs.MonitorChain() != m {
		t.Error("Expected the call stub to keep its monitor chain")
	}
	if e.OptimizedSpace().Len() != 0 {
		t.Errorf("Expected optimized space released, got %d records", e.OptimizedSpace().Len())
	}
	if e.Stats().Purges != 1 {
		t.Errorf("Expected 1 purge, got %d", e.Stats().Purges)
	}
}

func TestKindTable(t *testing.T) {
	for k := KindInvalid + 1; k < kindLimit; k++ {
		if !k.FallbackKind().IsFallback() {
			t.Errorf("%s: fallback kind %s is not a fallback", k, k.FallbackKind())
		}
		got, ok := KindByName(k.String())
		if !ok || got != k {
			t.Errorf("KindByName(%q) = %v, %v", k.String(), got, ok)
		}
	}
	if MaxOptimizedStubs(GetElemDense) != 16 {
		t.Errorf("Expected GetElem cap 16, got %d", MaxOptimizedStubs(GetElemDense))
	}
	if MaxOptimizedStubs(GetIntrinsicConstant) != 1 {
		t.Errorf("Expected GetIntrinsic cap 1, got %d", MaxOptimizedStubs(GetIntrinsicConstant))
	}
	if CanMakeCalls(CompareInt32) || !CanMakeCalls(CallScripted) {
		t.Error("Unexpected CanMakeCalls result")
	}
	if KindInvalid.Valid() || kindLimit.Valid() {
		t.Error("Sentinels must not be valid kinds")
	}
	if CallScripted.DefaultTrait() != TraitMonitored || SetPropNative.DefaultTrait() != TraitUpdated {
		t.Error("Unexpected default traits")
	}
}
