package cpu

import (
	"testing"

	"github.com/davecgh/go-spew/spew"

	"github.com/cloudingyu/Y86-PJ-Simulator/flags"
	"github.com/cloudingyu/Y86-PJ-Simulator/memory"
	"github.com/cloudingyu/Y86-PJ-Simulator/registers"
)

func newChip() (*Chip, *memory.ByteMemory) {
	m := memory.New()
	return New(m), m
}

// writeBytes places b at addr in mem, byte by byte.
func writeBytes(m *memory.ByteMemory, addr int64, b ...byte) {
	for i, v := range b {
		m.WriteByte(addr+int64(i), v)
	}
}

func le64(v int64) []byte {
	u := uint64(v)
	out := make([]byte, 8)
	for i := range out {
		out[i] = byte(u >> (8 * uint(i)))
	}
	return out
}

func TestFetchInitialState(t *testing.T) {
	c, _ := newChip()
	if c.Stat != flags.AOK {
		t.Fatalf("initial Stat = %v, want AOK", c.Stat)
	}
	if !c.CC.ZF {
		t.Error("initial ZF should be true")
	}
	if c.CC.SF || c.CC.OF {
		t.Error("initial SF/OF should be false")
	}
}

func TestIrmovqAddq(t *testing.T) {
	// irmovq $10,%rdx ; irmovq $3,%rax ; addq %rdx,%rax ; halt
	c, m := newChip()
	addr := int64(0)
	writeBytes(m, addr, 0x30, 0xF2) // irmovq, rA=NONE rB=rdx
	writeBytes(m, addr+2, le64(10)...)
	addr += 10
	writeBytes(m, addr, 0x30, 0xF0) // irmovq, rB=rax
	writeBytes(m, addr+2, le64(3)...)
	addr += 10
	writeBytes(m, addr, 0x60, 0x20) // addq %rdx,%rax (rA=rdx,rB=rax)
	addr += 2
	writeBytes(m, addr, 0x00) // halt

	for i := 0; i < 4; i++ {
		if halted := c.Step(); halted {
			break
		}
	}

	if got := c.Reg.Get(registers.RDX); got != 10 {
		t.Errorf("rdx = %d, want 10\nstate: %s", got, spew.Sdump(c))
	}
	if got := c.Reg.Get(registers.RAX); got != 13 {
		t.Errorf("rax = %d, want 13\nstate: %s", got, spew.Sdump(c))
	}
	if c.CC.ZF || c.CC.SF || c.CC.OF {
		t.Errorf("flags after addq 10+3 should all be false, got %+v", c.CC)
	}
	if c.Stat != flags.HLT {
		t.Errorf("Stat = %v, want HLT", c.Stat)
	}
}

func TestSubqSetsZF(t *testing.T) {
	c, m := newChip()
	writeBytes(m, 0, 0x30, 0xF0) // irmovq $5, %rax
	writeBytes(m, 2, le64(5)...)
	writeBytes(m, 10, 0x61, 0x00) // subq %rax,%rax (rA=rax,rB=rax)
	writeBytes(m, 12, 0x00)       // halt

	for i := 0; i < 3; i++ {
		c.Step()
	}

	if got := c.Reg.Get(registers.RAX); got != 0 {
		t.Errorf("rax = %d, want 0", got)
	}
	if !c.CC.ZF || c.CC.SF || c.CC.OF {
		t.Errorf("flags = %+v, want {ZF:true SF:false OF:false}", c.CC)
	}
}

func TestSignedOverflow(t *testing.T) {
	// irmovq $INT64_MIN,%rax ; irmovq $1,%rbx ; subq %rax,%rbx ; halt
	// valA = rax = INT64_MIN, valB = rbx = 1, valE = valB-valA = 1-INT64_MIN,
	// which wraps past INT64_MAX back into negative territory: a textbook
	// subtraction overflow (positive minus very-negative "should" be a very
	// large positive number that doesn't fit in 64 bits).
	c, m := newChip()
	writeBytes(m, 0, 0x30, 0xF0)
	writeBytes(m, 2, le64(-9223372036854775808)...)
	writeBytes(m, 10, 0x30, 0xF3)
	writeBytes(m, 12, le64(1)...)
	writeBytes(m, 20, 0x61, 0x03) // subq %rax,%rbx (rA=rax,rB=rbx)
	writeBytes(m, 22, 0x00)

	for i := 0; i < 4; i++ {
		c.Step()
	}

	if !c.CC.OF {
		t.Errorf("OF should be set on 1 - INT64_MIN; flags = %+v", c.CC)
	}
	if !c.CC.SF {
		t.Errorf("SF should be set; flags = %+v", c.CC)
	}
	if c.CC.ZF {
		t.Errorf("ZF should be clear; flags = %+v", c.CC)
	}
}

func TestConditionalMoveTaken(t *testing.T) {
	// irmovq $1,%rax ; irmovq $2,%rbx ; subq %rax,%rbx ; cmovg %rax,%rcx
	c, m := newChip()
	writeBytes(m, 0, 0x30, 0xF0)
	writeBytes(m, 2, le64(1)...)
	writeBytes(m, 10, 0x30, 0xF3)
	writeBytes(m, 12, le64(2)...)
	writeBytes(m, 20, 0x61, 0x03) // subq %rax,%rbx (rA=rax,rB=rbx) -> rbx=1
	writeBytes(m, 22, 0x26, 0x01) // cmovg %rax,%rcx (ifun=6 g, rA=rax,rB=rcx)

	for i := 0; i < 4; i++ {
		c.Step()
	}

	if got := c.Reg.Get(registers.RCX); got != 1 {
		t.Errorf("rcx = %d, want 1 (cmovg should have fired)\nstate: %s", got, spew.Sdump(c))
	}
}

func TestConditionalMoveNotTaken(t *testing.T) {
	// rcx starts 0; subq leaves rbx=-1 (le would fire on that negative result; ge does not)
	c, m := newChip()
	writeBytes(m, 0, 0x30, 0xF0) // irmovq $1,%rax
	writeBytes(m, 2, le64(1)...)
	writeBytes(m, 10, 0x30, 0xF3) // irmovq $0,%rbx
	writeBytes(m, 12, le64(0)...)
	writeBytes(m, 20, 0x61, 0x03) // subq %rax,%rbx -> rbx = 0-1 = -1, SF=1
	writeBytes(m, 22, 0x25, 0x01) // cmovge %rax,%rcx (ifun=5 ge) should not fire

	for i := 0; i < 4; i++ {
		c.Step()
	}
	if got := c.Reg.Get(registers.RCX); got != 0 {
		t.Errorf("rcx = %d, want 0 (cmovge should not have fired)", got)
	}
}

func TestPushqPopqRoundTrip(t *testing.T) {
	c, m := newChip()
	c.Reg.Set(registers.RSP, 0x1000)
	c.Reg.Set(registers.RAX, 0xBEEF)

	writeBytes(m, 0, 0xA0, 0x0F) // pushq %rax (rA=rax)
	writeBytes(m, 2, 0xB0, 0x3F) // popq %rbx (rA=rbx)

	c.Step()
	if got := c.Reg.Get(registers.RSP); got != 0x1000-8 {
		t.Errorf("rsp after pushq = %#x, want %#x", got, 0x1000-8)
	}
	c.Step()
	if got := c.Reg.Get(registers.RBX); got != 0xBEEF {
		t.Errorf("rbx after popq = %#x, want %#x", got, 0xBEEF)
	}
	if got := c.Reg.Get(registers.RSP); got != 0x1000 {
		t.Errorf("rsp after popq = %#x, want restored %#x", got, 0x1000)
	}
}

func TestPopRspDstMWins(t *testing.T) {
	// popq %rsp: both dstE and dstM target RSP; the memory value must win.
	c, m := newChip()
	c.Reg.Set(registers.RSP, 0x100)
	m.Write8(0x100, 0xCAFE)

	writeBytes(m, 0, 0xB0, 0x40) // popq %rsp (rA=rsp)
	c.Step()

	if got := c.Reg.Get(registers.RSP); got != 0xCAFE {
		t.Errorf("rsp after popq %%rsp = %#x, want the popped value %#x\nstate: %s", got, 0xCAFE, spew.Sdump(c))
	}
}

func TestCallRet(t *testing.T) {
	c, m := newChip()
	c.Reg.Set(registers.RSP, 0x200)

	// call 0x100
	writeBytes(m, 0, 0x80)
	writeBytes(m, 1, le64(0x100)...)
	// at 0x100: ret
	writeBytes(m, 0x100, 0x90)

	c.Step() // call
	if c.PC != 0x100 {
		t.Fatalf("PC after call = %#x, want 0x100", c.PC)
	}
	if got := c.Reg.Get(registers.RSP); got != 0x200-8 {
		t.Errorf("rsp after call = %#x, want %#x", got, 0x200-8)
	}
	retAddr, ok := m.Read8(0x200 - 8)
	if !ok || retAddr != 9 {
		t.Errorf("return address on stack = %d, want 9 (instruction length of call)", retAddr)
	}

	c.Step() // ret
	if c.PC != 9 {
		t.Errorf("PC after ret = %#x, want 9", c.PC)
	}
	if got := c.Reg.Get(registers.RSP); got != 0x200 {
		t.Errorf("rsp after ret = %#x, want restored %#x", got, 0x200)
	}
}

func TestHaltFreezesPC(t *testing.T) {
	c, m := newChip()
	writeBytes(m, 5, 0x00) // halt
	c.PC = 5
	halted := c.Step()
	if !halted {
		t.Fatal("Step() should report halted=true for a HALT instruction")
	}
	if c.Stat != flags.HLT {
		t.Errorf("Stat = %v, want HLT", c.Stat)
	}
	if c.PC != 5 {
		t.Errorf("PC = %#x after halt, want unchanged at the halt instruction's address 5", c.PC)
	}
}

func TestBadAddressFault(t *testing.T) {
	c, m := newChip()
	c.Reg.Set(registers.RAX, memory.Size) // irmovq $0x10000,%rax done manually via register set
	writeBytes(m, 0, 0x50, 0x30)          // mrmovq 0(%rax),%rbx (rA=rbx,rB=rax)
	writeBytes(m, 2, le64(0)...)          // displacement 0

	halted := c.Step()
	if !halted {
		t.Fatal("Step() should report a fault for an out-of-range mrmovq")
	}
	if c.Stat != flags.ADR {
		t.Errorf("Stat = %v, want ADR", c.Stat)
	}
	if c.PC != 0 {
		t.Errorf("PC = %#x, want unchanged at the faulting instruction's address 0", c.PC)
	}
}

func TestIllegalIcodeFault(t *testing.T) {
	c, m := newChip()
	writeBytes(m, 0, 0xF0) // icode 0xF > MaxIcode
	halted := c.Step()
	if !halted {
		t.Fatal("Step() should report a fault for an illegal icode")
	}
	if c.Stat != flags.INS {
		t.Errorf("Stat = %v, want INS", c.Stat)
	}
	if c.PC != 0 {
		t.Errorf("PC = %#x, want unchanged at the faulting address 0", c.PC)
	}
}

func TestNonOpqLeavesFlagsUnchanged(t *testing.T) {
	c, m := newChip()
	c.CC = flags.Code{ZF: false, SF: true, OF: true}
	writeBytes(m, 0, 0x30, 0xF0) // irmovq $0,%rax
	writeBytes(m, 2, le64(0)...)
	c.Step()
	want := flags.Code{ZF: false, SF: true, OF: true}
	if c.CC != want {
		t.Errorf("flags after irmovq = %+v, want unchanged %+v", c.CC, want)
	}
}
