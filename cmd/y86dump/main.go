// y86dump loads a Y86-64 program image and prints a linear disassembly,
// one instruction per line, over the loaded address range.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/cloudingyu/Y86-PJ-Simulator/disasm"
	"github.com/cloudingyu/Y86-PJ-Simulator/loader"
	"github.com/cloudingyu/Y86-PJ-Simulator/memory"
)

var (
	start = flag.Int64("start", 0, "address to begin disassembling from")
	end   = flag.Int64("end", -1, "address to stop at (exclusive); -1 disassembles through the highest non-zero 8-byte word")
)

func main() {
	flag.Parse()
	if len(flag.Args()) != 1 {
		log.Fatalf("Invalid command: %s [-start ADDR] [-end ADDR] <image-file>", os.Args[0])
	}
	fn := flag.Args()[0]

	f, err := os.Open(fn)
	if err != nil {
		log.Fatalf("Can't open %q - %v", fn, err)
	}
	defer f.Close()

	mem := memory.New()
	if err := loader.Load(f, mem); err != nil {
		log.Fatalf("Can't parse image %q - %v", fn, err)
	}

	stop := *end
	if stop < 0 {
		stop = highestLoadedAddr(mem) + 1
	}

	pc := *start
	for pc < stop {
		text, width := disasm.Step(pc, mem)
		fmt.Printf("0x%03x: %s\n", pc, text)
		pc += int64(width)
	}
}

func highestLoadedAddr(mem *memory.ByteMemory) int64 {
	var high int64
	for _, av := range mem.NonZeroWords() {
		if av.Addr > high {
			high = av.Addr
		}
	}
	return high + 7 // NonZeroWords reports 8-byte-aligned words; include the whole word
}
