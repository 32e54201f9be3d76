// Package asm implements a two-pass assembler for a Y86-64 symbolic
// source dialect, producing the flat byte image that loader.Load (in
// program-image text form, via the y86asm CLI) ultimately feeds to a
// memory.Bank. The two-pass label-table structure is grounded on
// bassosimone-risc32's pkg/asm (firstPass sizes every instruction and
// records each label's address; secondPass builds the label table,
// resolves labels and encodes).
package asm

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cloudingyu/Y86-PJ-Simulator/isa"
	"github.com/cloudingyu/Y86-PJ-Simulator/registers"
)

// Assemble translates Y86-64 assembly source into a flat byte image
// anchored at address 0. Gaps opened by .pos directives are zero-filled.
func Assemble(r io.Reader) ([]byte, error) {
	ins, err := firstPass(r)
	if err != nil {
		return nil, err
	}
	return secondPass(ins)
}

func firstPass(r io.Reader) ([]*instruction, error) {
	scanner := bufio.NewScanner(r)
	var out []*instruction
	var pc int64
	var lineno int
	var pendingLabel string

	for scanner.Scan() {
		lineno++
		line := scanner.Text()
		if idx := strings.Index(line, "#"); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if idx := strings.Index(line, ":"); idx >= 0 {
			pendingLabel = strings.TrimSpace(line[:idx])
			line = strings.TrimSpace(line[idx+1:])
			if line == "" {
				continue
			}
		}

		if strings.HasPrefix(line, ".pos") {
			fields := strings.Fields(line)
			if len(fields) != 2 {
				return nil, fmt.Errorf("%w: %q (line %d)", ErrBadOperands, line, lineno)
			}
			addr, err := parseImmediate(fields[1])
			if err != nil {
				return nil, fmt.Errorf("%w: %q (line %d)", ErrBadImmediate, fields[1], lineno)
			}
			pc = addr
			continue
		}

		in, err := parseInstruction(line, lineno)
		if err != nil {
			return nil, err
		}
		in.addr = pc
		in.label = pendingLabel
		pendingLabel = ""
		pc += int64(in.size)
		out = append(out, in)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func secondPass(ins []*instruction) ([]byte, error) {
	labels := map[string]int64{}
	for _, in := range ins {
		if in.label == "" {
			continue
		}
		if _, dup := labels[in.label]; dup {
			return nil, fmt.Errorf("%w: %q (line %d)", ErrDuplicateLabel, in.label, in.lineno)
		}
		labels[in.label] = in.addr
	}

	var image []byte
	var pc int64
	for _, in := range ins {
		for pc < in.addr {
			image = append(image, 0)
			pc++
		}
		bs, err := in.encode(labels)
		if err != nil {
			return nil, err
		}
		image = append(image, bs...)
		pc += int64(len(bs))
	}
	return image, nil
}

// parseInstruction decodes one non-empty, non-directive source line into
// an instruction whose size (but not necessarily whose valC, if it names
// a forward label) is fully known.
func parseInstruction(line string, lineno int) (*instruction, error) {
	mnem, rest := splitMnemonic(line)
	in := &instruction{lineno: lineno, size: 1}

	switch mnem {
	case "halt":
		in.icode = isa.Halt
	case "nop":
		in.icode = isa.Nop
	case "ret":
		in.icode = isa.Ret
	case "rrmovq":
		in.icode, in.ifun, in.hasRegByte, in.size = isa.Cmovxx, isa.CondAlways, true, 2
		if err := parseTwoRegs(rest, in, lineno); err != nil {
			return nil, err
		}
	case "cmovle", "cmovl", "cmove", "cmovne", "cmovge", "cmovg":
		in.icode, in.hasRegByte, in.size = isa.Cmovxx, true, 2
		in.ifun = condFromSuffix(strings.TrimPrefix(mnem, "cmov"))
		if err := parseTwoRegs(rest, in, lineno); err != nil {
			return nil, err
		}
	case "irmovq":
		in.icode, in.hasRegByte, in.hasValC, in.size = isa.Irmovq, true, true, 10
		if err := parseImmovq(rest, in, lineno); err != nil {
			return nil, err
		}
	case "rmmovq":
		in.icode, in.hasRegByte, in.hasValC, in.size = isa.Rmmovq, true, true, 10
		if err := parseRegDisp(rest, in, lineno, true); err != nil {
			return nil, err
		}
	case "mrmovq":
		in.icode, in.hasRegByte, in.hasValC, in.size = isa.Mrmovq, true, true, 10
		if err := parseRegDisp(rest, in, lineno, false); err != nil {
			return nil, err
		}
	case "addq", "subq", "andq", "xorq":
		in.icode, in.hasRegByte, in.size = isa.Opq, true, 2
		in.ifun = aluFromMnemonic(mnem)
		if err := parseTwoRegs(rest, in, lineno); err != nil {
			return nil, err
		}
	case "jmp", "jle", "jl", "je", "jne", "jge", "jg":
		in.icode, in.hasValC, in.size = isa.Jxx, true, 9
		in.ifun = condFromSuffix(strings.TrimPrefix(mnem, "j"))
		if err := parseTarget(rest, in, lineno); err != nil {
			return nil, err
		}
	case "call":
		in.icode, in.hasValC, in.size = isa.Call, true, 9
		if err := parseTarget(rest, in, lineno); err != nil {
			return nil, err
		}
	case "pushq":
		in.icode, in.hasRegByte, in.size = isa.Pushq, true, 2
		in.rB = registers.NONE
		rA, err := parseRegister(strings.TrimSpace(rest))
		if err != nil {
			return nil, fmt.Errorf("%w (line %d)", err, lineno)
		}
		in.rA = rA
	case "popq":
		in.icode, in.hasRegByte, in.size = isa.Popq, true, 2
		in.rB = registers.NONE
		rA, err := parseRegister(strings.TrimSpace(rest))
		if err != nil {
			return nil, fmt.Errorf("%w (line %d)", err, lineno)
		}
		in.rA = rA
	default:
		return nil, fmt.Errorf("%w: %q (line %d)", ErrUnknownMnemonic, mnem, lineno)
	}
	return in, nil
}

func splitMnemonic(line string) (string, string) {
	fields := strings.SplitN(line, " ", 2)
	mnem := strings.ToLower(strings.TrimSpace(fields[0]))
	if len(fields) == 1 {
		return mnem, ""
	}
	return mnem, fields[1]
}

func condFromSuffix(suf string) isa.Ifun {
	switch suf {
	case "mp":
		return isa.CondAlways
	case "le":
		return isa.CondLE
	case "l":
		return isa.CondL
	case "e":
		return isa.CondE
	case "ne":
		return isa.CondNE
	case "ge":
		return isa.CondGE
	case "g":
		return isa.CondG
	default:
		return isa.CondAlways
	}
}

func aluFromMnemonic(mnem string) isa.Ifun {
	switch mnem {
	case "addq":
		return isa.AddQ
	case "subq":
		return isa.SubQ
	case "andq":
		return isa.AndQ
	case "xorq":
		return isa.XorQ
	default:
		return isa.AddQ
	}
}

func parseTwoRegs(rest string, in *instruction, lineno int) error {
	ops := strings.Split(rest, ",")
	if len(ops) != 2 {
		return fmt.Errorf("%w: %q (line %d)", ErrBadOperands, rest, lineno)
	}
	rA, err := parseRegister(strings.TrimSpace(ops[0]))
	if err != nil {
		return fmt.Errorf("%w (line %d)", err, lineno)
	}
	rB, err := parseRegister(strings.TrimSpace(ops[1]))
	if err != nil {
		return fmt.Errorf("%w (line %d)", err, lineno)
	}
	in.rA, in.rB = rA, rB
	return nil
}

// parseImmovq handles "irmovq $imm,%reg" or "irmovq $label,%reg".
func parseImmovq(rest string, in *instruction, lineno int) error {
	ops := strings.Split(rest, ",")
	if len(ops) != 2 {
		return fmt.Errorf("%w: %q (line %d)", ErrBadOperands, rest, lineno)
	}
	imm := strings.TrimSpace(ops[0])
	if !strings.HasPrefix(imm, "$") {
		return fmt.Errorf("%w: %q (line %d)", ErrBadImmediate, imm, lineno)
	}
	imm = strings.TrimPrefix(imm, "$")
	if v, err := parseImmediate(imm); err == nil {
		in.valC = v
	} else {
		in.valCLabel = imm
	}
	rB, err := parseRegister(strings.TrimSpace(ops[1]))
	if err != nil {
		return fmt.Errorf("%w (line %d)", err, lineno)
	}
	in.rA = registers.NONE
	in.rB = rB
	return nil
}

// parseRegDisp handles "rmmovq %reg,D(%base)" (srcFirst=true) and
// "mrmovq D(%base),%reg" (srcFirst=false).
func parseRegDisp(rest string, in *instruction, lineno int, srcFirst bool) error {
	ops := strings.SplitN(rest, ",", 2)
	if len(ops) != 2 {
		return fmt.Errorf("%w: %q (line %d)", ErrBadOperands, rest, lineno)
	}
	var regTok, memTok string
	if srcFirst {
		regTok, memTok = strings.TrimSpace(ops[0]), strings.TrimSpace(ops[1])
	} else {
		memTok, regTok = strings.TrimSpace(ops[0]), strings.TrimSpace(ops[1])
	}

	reg, err := parseRegister(regTok)
	if err != nil {
		return fmt.Errorf("%w (line %d)", err, lineno)
	}

	open := strings.Index(memTok, "(")
	shut := strings.Index(memTok, ")")
	if open < 0 || shut < open {
		return fmt.Errorf("%w: %q (line %d)", ErrBadOperands, memTok, lineno)
	}
	dispTok := strings.TrimSpace(memTok[:open])
	baseTok := strings.TrimSpace(memTok[open+1 : shut])

	disp := int64(0)
	if dispTok != "" {
		d, err := parseImmediate(dispTok)
		if err != nil {
			return fmt.Errorf("%w: %q (line %d)", ErrBadImmediate, dispTok, lineno)
		}
		disp = d
	}
	base, err := parseRegister(baseTok)
	if err != nil {
		return fmt.Errorf("%w (line %d)", err, lineno)
	}

	in.valC = disp
	if srcFirst { // rmmovq: rA = source, rB = base
		in.rA, in.rB = reg, base
	} else { // mrmovq: rA = destination, rB = base
		in.rA, in.rB = reg, base
	}
	return nil
}

func parseTarget(rest string, in *instruction, lineno int) error {
	target := strings.TrimSpace(rest)
	if target == "" {
		return fmt.Errorf("%w: %q (line %d)", ErrBadOperands, rest, lineno)
	}
	if v, err := parseImmediate(target); err == nil {
		in.valC = v
		return nil
	}
	in.valCLabel = target
	return nil
}

func parseRegister(tok string) (registers.ID, error) {
	tok = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(tok)), "%")
	for id, name := range registers.Names {
		if name == tok {
			return registers.ID(id), nil
		}
	}
	return registers.NONE, fmt.Errorf("%w: %q", ErrUnknownRegister, tok)
}

func parseImmediate(tok string) (int64, error) {
	tok = strings.TrimSpace(tok)
	neg := false
	if strings.HasPrefix(tok, "-") {
		neg = true
		tok = tok[1:]
	}
	v, err := strconv.ParseInt(tok, 0, 64)
	if err != nil {
		return 0, err
	}
	if neg {
		v = -v
	}
	return v, nil
}
