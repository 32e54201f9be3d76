// Package disasm implements a textual disassembler for Y86-64 machine
// code. It decodes one instruction at a time without following control
// flow: a JMP followed by data bytes disassembles as that literal byte
// sequence rather than chasing the jump target.
package disasm

import (
	"fmt"

	"github.com/cloudingyu/Y86-PJ-Simulator/isa"
	"github.com/cloudingyu/Y86-PJ-Simulator/memory"
	"github.com/cloudingyu/Y86-PJ-Simulator/registers"
)

// condSuffix names the JXX/CMOVXX mnemonic suffix for each condition ifun.
var condSuffix = [7]string{
	isa.CondAlways: "mp", isa.CondLE: "le", isa.CondL: "l", isa.CondE: "e",
	isa.CondNE: "ne", isa.CondGE: "ge", isa.CondG: "g",
}

var aluMnemonic = [4]string{
	isa.AddQ: "addq", isa.SubQ: "subq", isa.AndQ: "andq", isa.XorQ: "xorq",
}

func regName(id registers.ID) string {
	if id == registers.NONE {
		return "?"
	}
	return "%" + registers.Names[id]
}

// Step disassembles the single instruction at pc, returning its text and
// the number of bytes it occupies. It always reads past pc as needed to
// decode register and constant fields, so pc..pc+width-1 must be
// in-range memory; an out-of-range icode byte yields ".byte" width 1.
func Step(pc int64, mem memory.Bank) (string, int) {
	if pc < 0 || pc >= memory.Size {
		return ".abrt", 1
	}
	b := mem.ReadByte(pc)
	icode := isa.Icode(b >> 4)
	ifun := isa.Ifun(b & 0xF)

	if icode > isa.MaxIcode {
		return fmt.Sprintf(".byte 0x%02x", b), 1
	}

	width := 1
	rA, rB := registers.NONE, registers.NONE
	if isa.NeedsRegByte(icode) {
		rb := mem.ReadByte(pc + 1)
		rA = registers.ID(rb >> 4)
		rB = registers.ID(rb & 0xF)
		width++
	}

	var valC int64
	if isa.NeedsValC(icode) {
		v, _ := mem.Read8(pc + int64(width))
		valC = v
		width += 8
	}

	switch icode {
	case isa.Halt:
		return "halt", width
	case isa.Nop:
		return "nop", width
	case isa.Cmovxx:
		if ifun == isa.CondAlways {
			return fmt.Sprintf("rrmovq %s,%s", regName(rA), regName(rB)), width
		}
		suf := "?"
		if int(ifun) < len(condSuffix) {
			suf = condSuffix[ifun]
		}
		return fmt.Sprintf("cmov%s %s,%s", suf, regName(rA), regName(rB)), width
	case isa.Irmovq:
		return fmt.Sprintf("irmovq $%d,%s", valC, regName(rB)), width
	case isa.Rmmovq:
		return fmt.Sprintf("rmmovq %s,%d(%s)", regName(rA), valC, regName(rB)), width
	case isa.Mrmovq:
		return fmt.Sprintf("mrmovq %d(%s),%s", valC, regName(rB), regName(rA)), width
	case isa.Opq:
		m := "opq?"
		if int(ifun) < len(aluMnemonic) {
			m = aluMnemonic[ifun]
		}
		return fmt.Sprintf("%s %s,%s", m, regName(rA), regName(rB)), width
	case isa.Jxx:
		suf := "mp"
		if int(ifun) < len(condSuffix) {
			suf = condSuffix[ifun]
		}
		return fmt.Sprintf("j%s 0x%x", suf, valC), width
	case isa.Call:
		return fmt.Sprintf("call 0x%x", valC), width
	case isa.Ret:
		return "ret", width
	case isa.Pushq:
		return fmt.Sprintf("pushq %s", regName(rA)), width
	case isa.Popq:
		return fmt.Sprintf("popq %s", regName(rA)), width
	default:
		return fmt.Sprintf(".byte 0x%02x", b), width
	}
}
