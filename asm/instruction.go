package asm

import (
	"fmt"

	"github.com/cloudingyu/Y86-PJ-Simulator/isa"
	"github.com/cloudingyu/Y86-PJ-Simulator/registers"
)

// Sentinel errors the assembler wraps with line context, grounded on
// bassosimone-risc32's package-level ErrCannotEncode/ErrTooManyInstructions
// style rather than ad hoc fmt.Errorf strings.
var (
	ErrUnknownMnemonic = fmt.Errorf("asm: unknown mnemonic")
	ErrUnknownRegister = fmt.Errorf("asm: unknown register")
	ErrUnknownLabel    = fmt.Errorf("asm: unknown label")
	ErrBadImmediate    = fmt.Errorf("asm: malformed immediate")
	ErrBadOperands     = fmt.Errorf("asm: malformed operand list")
	ErrDuplicateLabel  = fmt.Errorf("asm: duplicate label")
)

// instruction is one parsed source line. size is known immediately after
// parsing (it depends only on the mnemonic), but valC may still depend on
// a label that hasn't been seen yet, so encode is deferred to the second
// pass.
type instruction struct {
	lineno int
	label  string
	addr   int64

	icode isa.Icode
	ifun  isa.Ifun

	rA, rB     registers.ID
	hasRegByte bool

	hasValC   bool
	valC      int64
	valCLabel string // unresolved reference; "" if valC is already a literal

	size int
}

func (in *instruction) encode(labels map[string]int64) ([]byte, error) {
	valC := in.valC
	if in.valCLabel != "" {
		addr, ok := labels[in.valCLabel]
		if !ok {
			return nil, fmt.Errorf("%w: %q (line %d)", ErrUnknownLabel, in.valCLabel, in.lineno)
		}
		valC = addr
	}

	out := make([]byte, 0, in.size)
	out = append(out, byte(in.icode)<<4|byte(in.ifun))
	if in.hasRegByte {
		out = append(out, byte(in.rA)<<4|byte(in.rB))
	}
	if in.hasValC {
		for i := 0; i < 8; i++ {
			out = append(out, byte(valC>>(8*uint(i))))
		}
	}
	return out, nil
}
