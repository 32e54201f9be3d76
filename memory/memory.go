// Package memory implements the Y86-64 byte-addressable linear memory:
// a fixed 64KiB store with bounds-checked, little-endian 64-bit
// read/write helpers, reached only through the Bank interface so that
// transparent wrappers (see CachingMemory) can be interposed.
package memory

// Size is the total addressable memory in bytes (0x10000).
const Size = 1 << 16

// Bank is the storage interface the cpu package operates against,
// specialized to Y86-64's 64-bit little-endian word accesses plus the
// byte-level accessors the loader needs.
type Bank interface {
	// Read8 returns the signed 64-bit little-endian value at addr. ok is
	// false, and the returned value 0, when the 8-byte window
	// [addr, addr+8) is not entirely within [0, Size).
	Read8(addr int64) (value int64, ok bool)

	// Write8 stores v as 8 little-endian bytes at addr. It returns false
	// and leaves memory unchanged when the window does not fit.
	Write8(addr int64, v int64) (ok bool)

	// ReadByte and WriteByte are the byte-level accessors used by the
	// loader (ReadByte also by instruction fetch and the disassembler):
	// out-of-range
	// addresses are silently ignored (ReadByte returns 0, WriteByte is a
	// no-op), since program images in practice never exceed memory and
	// the loader has no fault channel to report through.
	ReadByte(addr int64) byte
	WriteByte(addr int64, b byte)

	// PowerOn resets the bank to its initial all-zero state.
	PowerOn()
}

// ByteMemory is the concrete, non-wrapping Bank implementation.
type ByteMemory struct {
	mem [Size]byte
}

// New returns a freshly zeroed ByteMemory.
func New() *ByteMemory {
	return &ByteMemory{}
}

func inRange8(addr int64) bool {
	return addr >= 0 && addr+8 <= Size
}

// Read8 implements Bank.
func (m *ByteMemory) Read8(addr int64) (int64, bool) {
	if !inRange8(addr) {
		return 0, false
	}
	var v uint64
	for i := int64(0); i < 8; i++ {
		v |= uint64(m.mem[addr+i]) << (8 * uint(i))
	}
	return int64(v), true
}

// Write8 implements Bank.
func (m *ByteMemory) Write8(addr int64, val int64) bool {
	if !inRange8(addr) {
		return false
	}
	u := uint64(val)
	for i := int64(0); i < 8; i++ {
		m.mem[addr+i] = byte(u >> (8 * uint(i)))
	}
	return true
}

// ReadByte implements Bank.
func (m *ByteMemory) ReadByte(addr int64) byte {
	if addr < 0 || addr >= Size {
		return 0
	}
	return m.mem[addr]
}

// WriteByte implements Bank.
func (m *ByteMemory) WriteByte(addr int64, b byte) {
	if addr < 0 || addr >= Size {
		return
	}
	m.mem[addr] = b
}

// PowerOn implements Bank.
func (m *ByteMemory) PowerOn() {
	for i := range m.mem {
		m.mem[i] = 0
	}
}

// AddrValue pairs an 8-byte-aligned address with its signed little-endian
// contents.
type AddrValue struct {
	Addr  int64
	Value int64
}

// NonZeroWords returns every 8-byte-aligned address in [0, Size) whose
// little-endian signed reading is non-zero, in ascending order, along
// with that value. It is used by the trace emitter to build the MEM
// object without dumping all 64KiB.
func (m *ByteMemory) NonZeroWords() []AddrValue {
	var out []AddrValue
	for addr := int64(0); addr < Size; addr += 8 {
		v, _ := m.Read8(addr)
		if v != 0 {
			out = append(out, AddrValue{Addr: addr, Value: v})
		}
	}
	return out
}
