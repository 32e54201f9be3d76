// Package loader parses a Y86-64 program image — free-form text
// produced by an assembler or written by hand — into a memory.Bank,
// by scanning it line by line. Malformed input never makes it fail:
// malformed or out-of-range lines are tolerated and their offending
// bytes simply discarded. Only an error from reading the input itself
// is returned.
package loader

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/cloudingyu/Y86-PJ-Simulator/memory"
)

// Load scans r line by line and writes every data line's payload bytes
// into mem starting at that line's address. A line is a data line only
// if it contains both "0x" and ":"; everything else (blank lines,
// comments, assembler directives outside that shape) is ignored.
func Load(r io.Reader, mem memory.Bank) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		loadLine(scanner.Text(), mem)
	}
	return scanner.Err()
}

func loadLine(line string, mem memory.Bank) {
	hexIdx := strings.Index(line, "0x")
	if hexIdx < 0 {
		return
	}
	colonIdx := strings.Index(line[hexIdx:], ":")
	if colonIdx < 0 {
		return
	}
	colonIdx += hexIdx

	addrText := line[hexIdx+2 : colonIdx]
	addr, err := strconv.ParseInt(addrText, 16, 64)
	if err != nil {
		return
	}

	payload := line[colonIdx+1:]
	if barIdx := strings.Index(payload, "|"); barIdx >= 0 {
		payload = payload[:barIdx]
	}
	payload = stripWhitespace(payload)
	if len(payload)%2 != 0 {
		payload = payload[:len(payload)-1]
	}

	for i := 0; i+2 <= len(payload); i += 2 {
		b, err := strconv.ParseUint(payload[i:i+2], 16, 8)
		if err != nil {
			return
		}
		mem.WriteByte(addr, byte(b))
		addr++
	}
}

func stripWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\r' || r == '\n' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
