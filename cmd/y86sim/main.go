// y86sim loads a Y86-64 program image and runs it to completion (or
// until -max-steps is exhausted), writing one JSON-shaped trace record
// per instruction to stdout.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/cloudingyu/Y86-PJ-Simulator/sim"
)

var (
	cache    = flag.Bool("cache", false, "interpose a direct-mapped cache between the CPU and memory")
	verbose  = flag.Bool("verbose", false, "attach a CACHE hit/miss sub-object to every trace record (requires -cache)")
	maxSteps = flag.Int("max-steps", 0, "stop after this many instructions even if the program hasn't halted; 0 means unbounded")
)

func main() {
	flag.Parse()
	if len(flag.Args()) != 1 {
		log.Fatalf("Invalid command: %s [-cache] [-verbose] [-max-steps N] <image-file>", os.Args[0])
	}
	fn := flag.Args()[0]

	f, err := os.Open(fn)
	if err != nil {
		log.Fatalf("Can't open %q - %v", fn, err)
	}
	defer f.Close()

	opts := sim.Options{Cache: *cache, Verbose: *verbose, MaxSteps: *maxSteps}
	if _, err := sim.Run(context.Background(), f, os.Stdout, opts); err != nil {
		log.Fatalf("Run failed for %q - %v", fn, err)
	}
}
