// Package sim implements the Y86-64 run loop: load a program image,
// step the interpreter until status leaves AOK, and emit one trace
// record per step.
package sim

import (
	"context"
	"io"

	"github.com/cloudingyu/Y86-PJ-Simulator/cpu"
	"github.com/cloudingyu/Y86-PJ-Simulator/loader"
	"github.com/cloudingyu/Y86-PJ-Simulator/memory"
	"github.com/cloudingyu/Y86-PJ-Simulator/trace"
)

// Options configures a run. The zero value runs the plain core
// simulator with no cache and no step bound.
type Options struct {
	// Cache interposes a memory.CachingMemory between the interpreter
	// and backing memory.
	Cache bool
	// Verbose attaches the CACHE statistics sub-object to every emitted
	// record. Meaningless (and ignored) unless Cache is also set.
	Verbose bool
	// MaxSteps bounds the number of instructions executed, guarding CLI
	// callers against runaway or malformed programs. Zero means
	// unbounded.
	MaxSteps int
}

// Run loads the program image read from image, executes it, and writes
// the trace to out. It returns the final flags.Status the run stopped
// at and any I/O error encountered along the way (loader/emitter
// failures only — architectural faults are status codes, not errors).
func Run(ctx context.Context, image io.Reader, out io.Writer, opts Options) (int, error) {
	var bank memory.Bank = memory.New()

	var cache *memory.CachingMemory
	if opts.Cache {
		cache = memory.NewCachingMemory(bank)
		bank = cache
	}

	if err := loader.Load(image, bank); err != nil {
		return 0, err
	}

	chip := cpu.New(bank)
	emitter := trace.NewEmitter(out)

	steps := 0
	for {
		if err := ctx.Err(); err != nil {
			emitter.Close()
			return int(chip.Stat), err
		}

		halted := chip.Step()

		var cacheStats *trace.CacheSub
		if opts.Cache && opts.Verbose {
			stats := cache.Stats()
			cacheStats = &trace.CacheSub{Hits: stats.Hits, Misses: stats.Misses}
		}

		if err := emitter.Emit(trace.Snapshot(chip, bank, cacheStats)); err != nil {
			return int(chip.Stat), err
		}

		if halted {
			break
		}

		steps++
		if opts.MaxSteps > 0 && steps >= opts.MaxSteps {
			break
		}

		if chip.PC < 0 || chip.PC >= memory.Size {
			break
		}
	}

	if err := emitter.Close(); err != nil {
		return int(chip.Stat), err
	}
	return int(chip.Stat), nil
}
