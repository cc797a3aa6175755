package ic

// Entry is the call-site descriptor for one IC-bearing op, or for a
// synthetic this/argument monitor site. It owns the fallback at the end
// of its chain.
type Entry struct {
	pcOffset     uint32
	isForOp      bool
	returnOffset uint32
	firstStub    *Stub

	script *Script
	inst   *Instruction
	hits   uint64
	misses uint64
}

func (en *Entry) PCOffset() uint32     { return en.pcOffset }
func (en *Entry) IsForOp() bool        { return en.isForOp }
func (en *Entry) ReturnOffset() uint32 { return en.returnOffset }
func (en *Entry) FirstStub() *Stub     { return en.firstStub }
func (en *Entry) Script() *Script      { return en.script }
func (en *Entry) Hits() uint64         { return en.hits }
func (en *Entry) Misses() uint64       { return en.misses }

// Instruction returns the op this entry serves, or nil for a synthetic
// monitor site.
func (en *Entry) Instruction() *Instruction { return en.inst }

// FallbackStub walks to the terminator of the entry's chain.
func (en *Entry) FallbackStub() *Stub {
	return en.firstStub.ChainFallback()
}

// Stubs returns the chain in dispatch order, fallback last.
func (en *Entry) Stubs() []*Stub {
	var out []*Stub
	for s := en.firstStub; s != nil; s = s.next {
		out = append(out, s)
	}
	return out
}

// NumOptimizedStubs counts the specialized stubs ahead of the fallback.
func (en *Entry) NumOptimizedStubs() int {
	fb := en.FallbackStub()
	if fb.fb != nil {
		return fb.fb.numOptimized
	}
	return fb.mon.numOptimized
}

// MonitorChain returns the monitor chain of a synthetic entry or of an
// op whose fallback is monitored.
func (en *Entry) MonitorChain() *MonitorChain {
	return en.FallbackStub().mon
}
