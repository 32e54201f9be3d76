// y86asm assembles a Y86-64 symbolic source file into the program-image
// text format loader.Load understands: one "0xADDR: hexbytes" line per
// 16-byte row.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/cloudingyu/Y86-PJ-Simulator/asm"
)

const bytesPerLine = 16

func main() {
	flag.Parse()
	if len(flag.Args()) != 2 {
		log.Fatalf("Invalid command: %s <source-file> <image-file>", os.Args[0])
	}
	src, out := flag.Args()[0], flag.Args()[1]

	in, err := os.Open(src)
	if err != nil {
		log.Fatalf("Can't open %q - %v", src, err)
	}
	defer in.Close()

	code, err := asm.Assemble(in)
	if err != nil {
		log.Fatalf("Assembly of %q failed - %v", src, err)
	}

	of, err := os.Create(out)
	if err != nil {
		log.Fatalf("Can't open output %q - %v", out, err)
	}
	w := bufio.NewWriter(of)
	for addr := 0; addr < len(code); addr += bytesPerLine {
		end := addr + bytesPerLine
		if end > len(code) {
			end = len(code)
		}
		fmt.Fprintf(w, "0x%03x:", addr)
		for _, b := range code[addr:end] {
			fmt.Fprintf(w, " %02x", b)
		}
		fmt.Fprintln(w)
	}
	if err := w.Flush(); err != nil {
		log.Fatalf("Error writing to %q - %v", out, err)
	}
	if err := of.Close(); err != nil {
		log.Fatalf("Error closing %q - %v", out, err)
	}
}
