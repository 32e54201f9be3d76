// Package cpu implements the Y86-64 instruction interpreter: the
// six-phase Fetch/Decode/Execute/Memory/WriteBack/PCUpdate skeleton that
// every instruction runs through, the condition-code evaluator, and the
// ALU.
package cpu

import (
	"github.com/cloudingyu/Y86-PJ-Simulator/flags"
	"github.com/cloudingyu/Y86-PJ-Simulator/isa"
	"github.com/cloudingyu/Y86-PJ-Simulator/memory"
	"github.com/cloudingyu/Y86-PJ-Simulator/registers"
)

// Chip holds the complete Y86-64 architectural state: PC, the register
// file, the condition codes, the processor status, and the memory bank.
// Between calls to Step, the eleven instruction-step temporaries below
// hold no meaningful value; Step resets every one of them at the start
// of Fetch.
type Chip struct {
	PC   int64
	Reg  registers.File
	CC   flags.Code
	Stat flags.Status
	Mem  memory.Bank

	// Instruction-step temporaries. Not architectural state; never
	// emitted directly.
	icode isa.Icode
	ifun  isa.Ifun
	rA    registers.ID
	rB    registers.ID
	valC  int64
	valP  int64
	valA  int64
	valB  int64
	valE  int64
	valM  int64
	cnd   bool
}

// New returns a Chip powered on with the given memory bank, PC at 0,
// ZF set, SF and OF clear, and status AOK.
func New(mem memory.Bank) *Chip {
	c := &Chip{Mem: mem, Stat: flags.AOK}
	c.CC.ZF = true
	return c
}

// Step runs one instruction through all six phases (or just Fetch, if
// Fetch itself raises a fault) and reports whether c.Stat left AOK as a
// result — the signal sim.Run uses to decide whether to keep looping.
// Y86-64 is specified at instruction granularity, so one call to Step
// advances the whole instruction rather than a single clock cycle.
func (c *Chip) Step() (halted bool) {
	c.fetch()
	if c.Stat != flags.AOK {
		return true
	}
	c.decode()
	c.execute()
	c.memoryAccess()
	c.writeBack()
	c.pcUpdate()
	return c.Stat != flags.AOK
}

// fetch reads the icode/ifun byte, the register-specifier byte (if the
// icode needs one), and the 8-byte constant (if the icode needs one),
// advancing valP past whatever it consumed.
func (c *Chip) fetch() {
	c.icode, c.ifun, c.rA, c.rB = 0, 0, registers.NONE, registers.NONE
	c.valC, c.valP, c.valA, c.valB, c.valE, c.valM = 0, 0, 0, 0, 0, 0
	c.cnd = false

	if c.PC < 0 || c.PC >= memory.Size {
		c.Stat = flags.ADR
		return
	}
	b := c.Mem.ReadByte(c.PC)
	c.icode = isa.Icode(b >> 4)
	c.ifun = isa.Ifun(b & 0xF)

	if c.icode > isa.MaxIcode {
		c.Stat = flags.INS
		return
	}

	c.valP = c.PC + 1
	c.rA, c.rB = registers.NONE, registers.NONE

	if isa.NeedsRegByte(c.icode) {
		rb := c.Mem.ReadByte(c.valP)
		c.rA = registers.ID(rb >> 4)
		c.rB = registers.ID(rb & 0xF)
		c.valP++
	}

	if isa.NeedsValC(c.icode) {
		v, ok := c.Mem.Read8(c.valP)
		if !ok {
			c.Stat = flags.ADR
			return
		}
		c.valC = v
		c.valP += 8
	}
}

// decode resolves the srcA/srcB register operands for the current icode
// and reads their values into valA/valB.
func (c *Chip) decode() {
	srcA, srcB := registers.NONE, registers.NONE

	switch c.icode {
	case isa.Cmovxx, isa.Rmmovq, isa.Opq, isa.Pushq:
		srcA = c.rA
	case isa.Popq, isa.Ret:
		srcA = registers.RSP
	}

	switch c.icode {
	case isa.Opq, isa.Rmmovq, isa.Mrmovq:
		srcB = c.rB
	case isa.Pushq, isa.Popq, isa.Call, isa.Ret:
		srcB = registers.RSP
	}

	c.valA = c.Reg.Get(srcA)
	c.valB = c.Reg.Get(srcB)
}

// execute computes valE for every icode, updates the condition codes for
// OPQ, evaluates the branch/move condition for JXX and CMOVxx, and
// transitions status to HLT on a HALT instruction.
func (c *Chip) execute() {
	switch c.icode {
	case isa.Opq:
		c.valE = c.aluOp(c.ifun, c.valA, c.valB)
		c.setFlags(c.ifun, c.valA, c.valB, c.valE)
	case isa.Irmovq:
		c.valE = c.valC
	case isa.Cmovxx:
		c.valE = c.valA
	case isa.Rmmovq, isa.Mrmovq:
		c.valE = c.valB + c.valC
	case isa.Pushq, isa.Call:
		c.valE = c.valB - 8
	case isa.Popq, isa.Ret:
		c.valE = c.valB + 8
	}

	switch c.icode {
	case isa.Jxx, isa.Cmovxx:
		c.cnd = evalCond(c.ifun, c.CC)
	}

	if c.icode == isa.Halt {
		c.Stat = flags.HLT
	}
}

// aluOp computes valE for OPQ. All arithmetic wraps modulo 2^64; the
// signed interpretation only matters for flag computation (setFlags).
func (c *Chip) aluOp(ifun isa.Ifun, a, b int64) int64 {
	switch ifun {
	case isa.AddQ:
		return b + a
	case isa.SubQ:
		return b - a
	case isa.AndQ:
		return b & a
	case isa.XorQ:
		return b ^ a
	default:
		// An ifun above XorQ under OPQ is not a fault; produce 0 rather
		// than an arbitrary bit pattern.
		return 0
	}
}

// setFlags updates ZF/SF/OF for an OPQ result. valE = b <op> a.
func (c *Chip) setFlags(ifun isa.Ifun, a, b, valE int64) {
	c.CC.ZF = valE == 0
	c.CC.SF = valE < 0
	switch ifun {
	case isa.AddQ:
		c.CC.OF = (a > 0 && b > 0 && valE < 0) || (a < 0 && b < 0 && valE >= 0)
	case isa.SubQ:
		c.CC.OF = (b > 0 && a < 0 && valE < 0) || (b < 0 && a > 0 && valE >= 0)
	default:
		c.CC.OF = false
	}
}

// evalCond evaluates the branch/move condition named by ifun against cc.
func evalCond(ifun isa.Ifun, cc flags.Code) bool {
	switch ifun {
	case isa.CondAlways:
		return true
	case isa.CondLE:
		return (cc.SF != cc.OF) || cc.ZF
	case isa.CondL:
		return cc.SF != cc.OF
	case isa.CondE:
		return cc.ZF
	case isa.CondNE:
		return !cc.ZF
	case isa.CondGE:
		return cc.SF == cc.OF
	case isa.CondG:
		return cc.SF == cc.OF && !cc.ZF
	default:
		return false
	}
}

// memoryAccess performs the single memory read or write, if any, that
// the current icode requires.
func (c *Chip) memoryAccess() {
	switch c.icode {
	case isa.Rmmovq, isa.Pushq:
		if !c.Mem.Write8(c.valE, c.valA) {
			c.Stat = flags.ADR
		}
	case isa.Call:
		if !c.Mem.Write8(c.valE, c.valP) {
			c.Stat = flags.ADR
		}
	case isa.Mrmovq:
		v, ok := c.Mem.Read8(c.valE)
		if !ok {
			c.Stat = flags.ADR
			return
		}
		c.valM = v
	case isa.Popq, isa.Ret:
		v, ok := c.Mem.Read8(c.valA)
		if !ok {
			c.Stat = flags.ADR
			return
		}
		c.valM = v
	}
}

// writeBack stores valE and valM into their destination registers.
// Writes happen dstE-then-dstM, so for "popq %rsp" — the one case where
// both destinations target RSP — the popped memory value wins.
func (c *Chip) writeBack() {
	dstE := registers.NONE
	switch {
	case c.icode == isa.Opq || c.icode == isa.Irmovq:
		dstE = c.rB
	case c.icode == isa.Cmovxx && c.cnd:
		dstE = c.rB
	case c.icode == isa.Pushq || c.icode == isa.Popq || c.icode == isa.Call || c.icode == isa.Ret:
		dstE = registers.RSP
	}

	dstM := registers.NONE
	if c.icode == isa.Mrmovq || c.icode == isa.Popq {
		dstM = c.rA
	}

	c.Reg.Set(dstE, c.valE)
	c.Reg.Set(dstM, c.valM)
}

// pcUpdate sets PC for the next instruction. It is a no-op when Stat
// has left AOK, which is what lets the final trace record identify the
// instruction that faulted.
func (c *Chip) pcUpdate() {
	if c.Stat != flags.AOK {
		return
	}
	switch c.icode {
	case isa.Call:
		c.PC = c.valC
	case isa.Ret:
		c.PC = c.valM
	case isa.Jxx:
		if c.cnd {
			c.PC = c.valC
		} else {
			c.PC = c.valP
		}
	default:
		c.PC = c.valP
	}
}
