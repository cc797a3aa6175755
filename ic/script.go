package ic

import (
	"fmt"

	"github.com/chazu/baseline/value"
)

// Instruction is one IC-bearing op of a script.
type Instruction struct {
	Op      Op
	PC      uint32
	Name    string   // property, variable or intrinsic name
	Operand int32    // argc for calls, length for newarray, low bound for tableswitch
	Targets []uint32 // tableswitch targets
	Default uint32   // tableswitch default target
}

// ScriptSource is the input to Engine.Compile.
type ScriptSource struct {
	Name  string
	Nargs int
	Code  []Instruction
}

// Offsets into generated code. Each IC op is a fixed-size call sequence;
// the return offset is the address just after its call into the chain.
const (
	prologueSize = 32
	icCallSize   = 12
	opStride     = 24
)

// Script is a compiled function: its instructions and the entries of its
// call sites. Entries for the this/argument monitors come first, followed
// by one entry per IC op in pc order.
type Script struct {
	name         string
	engine       *Engine
	nargs        int
	code         []Instruction
	entries      []Entry
	numSynthetic int
	pcIndex      []int32
}

func (s *Script) Name() string    { return s.name }
func (s *Script) Nargs() int      { return s.nargs }
func (s *Script) Engine() *Engine { return s.engine }

// Code returns the script's instructions.
func (s *Script) Code() []Instruction { return s.code }

// NumEntries is the size of the entry table, synthetic entries included.
func (s *Script) NumEntries() int { return len(s.entries) }

// Entry returns the entry with sequence number seq.
func (s *Script) Entry(seq int) *Entry { return &s.entries[seq] }

// Entries returns every entry of the script.
func (s *Script) Entries() []*Entry {
	out := make([]*Entry, len(s.entries))
	for i := range s.entries {
		out[i] = &s.entries[i]
	}
	return out
}

// OpEntries returns the entries of real ops, in pc order.
func (s *Script) OpEntries() []*Entry {
	return s.Entries()[s.numSynthetic:]
}

// EntryForPC finds the entry of the op at pc by table index.
func (s *Script) EntryForPC(pc uint32) (*Entry, bool) {
	if int(pc) >= len(s.pcIndex) || s.pcIndex[pc] < 0 {
		return nil, false
	}
	return &s.entries[s.pcIndex[pc]], true
}

// ThisEntry returns the synthetic monitor entry for this.
func (s *Script) ThisEntry() *Entry { return &s.entries[0] }

// ArgEntry returns the synthetic monitor entry for argument i.
func (s *Script) ArgEntry(i int) *Entry { return &s.entries[1+i] }

// Exec runs the IC of the op at pc.
func (s *Script) Exec(pc uint32, f *Frame) error {
	en, ok := s.EntryForPC(pc)
	if !ok {
		return fmt.Errorf("%s: no IC at pc %d", s.name, pc)
	}
	return en.Run(f)
}

// MonitorArguments feeds this and the actual arguments through their
// monitor chains, as a function prologue does.
func (s *Script) MonitorArguments(this value.Value, args []value.Value) {
	s.ThisEntry().MonitorChain().Monitor(s.engine, this)
	for i := 0; i < s.nargs; i++ {
		v := value.Undefined()
		if i < len(args) {
			v = args[i]
		}
		s.ArgEntry(i).MonitorChain().Monitor(s.engine, v)
	}
}

// Compile builds the IC structures of a script in two phases. Code
// generation creates a fallback for every IC op and assigns return
// offsets; once the layout is final the entry table is allocated and each
// fallback is bound to its entry.
func (e *Engine) Compile(src *ScriptSource) (*Script, error) {
	s := &Script{
		name:   src.Name,
		engine: e,
		nargs:  src.Nargs,
		code:   append([]Instruction(nil), src.Code...),
	}

	type pending struct {
		stub         *Stub
		inst         int
		returnOffset uint32
	}

	// Phase one: code generation.
	monitors := make([]*MonitorChain, 0, 1+src.Nargs)
	for i := 0; i <= src.Nargs; i++ {
		m, err := e.newMonitorChain(nil, uint32(i))
		if err != nil {
			return nil, fmt.Errorf("%s: argument monitor %d: %w", src.Name, i, err)
		}
		monitors = append(monitors, m)
	}

	var sites []pending
	var maxPC uint32
	offset := uint32(prologueSize)
	for i := range s.code {
		inst := &s.code[i]
		if i > 0 && inst.PC <= s.code[i-1].PC {
			return nil, fmt.Errorf("%s: pc %d out of order", src.Name, inst.PC)
		}
		if inst.PC > maxPC {
			maxPC = inst.PC
		}
		offset += opStride
		if !inst.Op.HasIC() {
			if inst.Op >= opLimit {
				return nil, fmt.Errorf("%s: pc %d: %w %d", src.Name, inst.PC, ErrUnknownOp, inst.Op)
			}
			continue
		}
		extra, data := fallbackPayload(inst)
		fb, err := e.newFallbackStub(inst.Op.FallbackKind(), extra, data)
		if err != nil {
			return nil, fmt.Errorf("%s: pc %d: %w", src.Name, inst.PC, err)
		}
		sites = append(sites, pending{stub: fb, inst: i, returnOffset: offset + icCallSize})
		offset += icCallSize
	}

	// Phase two: entry allocation and fixup.
	s.numSynthetic = len(monitors)
	s.entries = make([]Entry, len(monitors)+len(sites))
	s.pcIndex = make([]int32, maxPC+1)
	for i := range s.pcIndex {
		s.pcIndex[i] = -1
	}
	for i, m := range monitors {
		en := &s.entries[i]
		*en = Entry{
			pcOffset:     0,
			isForOp:      false,
			returnOffset: prologueSize,
			firstStub:    m.fallback,
			script:       s,
		}
		m.fixupEntry(en)
	}
	for i, p := range sites {
		seq := len(monitors) + i
		en := &s.entries[seq]
		inst := &s.code[p.inst]
		*en = Entry{
			pcOffset:     inst.PC,
			isForOp:      true,
			returnOffset: p.returnOffset,
			firstStub:    p.stub,
			script:       s,
			inst:         inst,
		}
		p.stub.FixupEntry(en)
		s.pcIndex[inst.PC] = int32(seq)
	}

	e.scripts = append(e.scripts, s)
	log.Debugf("compiled %s: %d entries", s.name, len(s.entries))
	return s, nil
}

// fallbackPayload returns the extra bits and payload a fallback needs from
// its instruction.
func fallbackPayload(inst *Instruction) (uint16, StubData) {
	switch inst.Op {
	case OpNew:
		return 1, nil
	case OpTableSwitch:
		return 0, &TableSwitchData{
			Low:     inst.Operand,
			Targets: append([]uint32(nil), inst.Targets...),
			Default: inst.Default,
		}
	}
	return 0, nil
}
