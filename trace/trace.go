// Package trace serializes Y86-64 architectural state into a bracketed,
// comma-separated sequence of records: one record per executed
// instruction (or per Fetch-stage fault), each carrying PC, STAT, the
// condition codes, the full register file, and the non-zero 8-byte
// memory windows.
package trace

import (
	"fmt"
	"io"

	"github.com/cloudingyu/Y86-PJ-Simulator/cpu"
	"github.com/cloudingyu/Y86-PJ-Simulator/memory"
	"github.com/cloudingyu/Y86-PJ-Simulator/registers"
)

// CacheSub is the optional, additive verbose-mode sub-object. It is
// never present unless the caller opts into cache statistics, and its
// presence or values never alter the five core fields.
type CacheSub struct {
	Hits   int64
	Misses int64
}

// Record is one emitted step.
type Record struct {
	PC    int64
	Stat  int
	OF    int
	SF    int
	ZF    int
	Reg   map[registers.ID]int64
	Mem   []memory.AddrValue // ascending address order
	Cache *CacheSub
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// nonZeroScanner is satisfied by memory.ByteMemory and memory.CachingMemory.
type nonZeroScanner interface {
	NonZeroWords() []memory.AddrValue
}

// Snapshot builds a Record from the current state of c. mem is scanned
// for its Bank's non-zero 8-byte windows. cacheStats, if non-nil, is
// attached as the verbose CACHE sub-object.
func Snapshot(c *cpu.Chip, mem memory.Bank, cacheStats *CacheSub) Record {
	regs := make(map[registers.ID]int64, len(registers.Names))
	for id := range registers.Names {
		regs[registers.ID(id)] = c.Reg.Get(registers.ID(id))
	}

	rec := Record{
		PC:    c.PC,
		Stat:  int(c.Stat),
		OF:    boolInt(c.CC.OF),
		SF:    boolInt(c.CC.SF),
		ZF:    boolInt(c.CC.ZF),
		Reg:   regs,
		Cache: cacheStats,
	}
	if scanner, ok := mem.(nonZeroScanner); ok {
		rec.Mem = scanner.NonZeroWords()
	}
	return rec
}

// writeTo hand-writes rec's JSON-shaped text directly to w, with MEM
// keys in ascending address order. Building the text incrementally
// (rather than via a generic json.Marshal of a map, whose key order is
// alphabetic on the stringified address) keeps the wire format legible
// and deterministic for golden-file comparisons.
func (rec Record) writeTo(w io.Writer) error {
	if _, err := fmt.Fprintf(w, `{"PC":%d,"STAT":%d,"CC":{"OF":%d,"SF":%d,"ZF":%d},"REG":{`,
		rec.PC, rec.Stat, rec.OF, rec.SF, rec.ZF); err != nil {
		return err
	}
	for i, name := range registers.Names {
		if i > 0 {
			if _, err := io.WriteString(w, ","); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "%q:%d", name, rec.Reg[registers.ID(i)]); err != nil {
			return err
		}
	}
	if _, err := io.WriteString(w, `},"MEM":{`); err != nil {
		return err
	}
	for i, av := range rec.Mem {
		if i > 0 {
			if _, err := io.WriteString(w, ","); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, `"%d":%d`, av.Addr, av.Value); err != nil {
			return err
		}
	}
	if _, err := io.WriteString(w, "}"); err != nil {
		return err
	}
	if rec.Cache != nil {
		if _, err := fmt.Fprintf(w, `,"CACHE":{"Hits":%d,"Misses":%d}`, rec.Cache.Hits, rec.Cache.Misses); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "}")
	return err
}

// Emitter streams a bracketed sequence of records to an underlying
// io.Writer, writing each record as soon as it is produced rather than
// buffering the whole run, so record N always reaches w before record
// N+1 is even computed.
type Emitter struct {
	w       io.Writer
	started bool
	err     error
}

// NewEmitter wraps w. The caller must call Close to write the closing
// bracket.
func NewEmitter(w io.Writer) *Emitter {
	return &Emitter{w: w}
}

// Emit writes one record, preceded by "[" on the first call and by ","
// on every subsequent call.
func (e *Emitter) Emit(rec Record) error {
	if e.err != nil {
		return e.err
	}
	prefix := ","
	if !e.started {
		prefix = "["
		e.started = true
	}
	if _, err := io.WriteString(e.w, prefix); err != nil {
		e.err = err
		return err
	}
	if err := rec.writeTo(e.w); err != nil {
		e.err = err
		return err
	}
	return nil
}

// Close writes the closing bracket, opening one first (producing "[]")
// if Emit was never called.
func (e *Emitter) Close() error {
	if e.err != nil {
		return e.err
	}
	if !e.started {
		if _, err := io.WriteString(e.w, "["); err != nil {
			return err
		}
	}
	_, err := io.WriteString(e.w, "]")
	return err
}
