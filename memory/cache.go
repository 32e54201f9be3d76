package memory

// lineSize is the cache line size in bytes. 64 bytes is the conventional
// choice for a byte-granularity direct-mapped simulator cache and keeps
// the line count manageable for an 8-byte-word-oriented ISA.
const lineSize = 64

// cacheLines is the number of direct-mapped sets.
const cacheLines = Size / lineSize

// CacheStats reports hit/miss counters accumulated by a CachingMemory.
// It exists purely for the verbose trace's cache sub-object and never
// influences architectural state.
type CacheStats struct {
	Hits   int64
	Misses int64
}

// CachingMemory interposes a direct-mapped, byte-granularity cache in
// front of a Bank purely for telemetry. Every read or write is still
// forwarded to the wrapped Bank and the wrapped Bank remains the sole
// source of truth, so architectural state observed through CachingMemory
// is bit-for-bit identical to observing the wrapped Bank directly; only
// Stats() differs.
type CachingMemory struct {
	inner Bank
	valid [cacheLines]bool
	tag   [cacheLines]int64
	stats CacheStats
}

// NewCachingMemory wraps inner with a transparent cache.
func NewCachingMemory(inner Bank) *CachingMemory {
	return &CachingMemory{inner: inner}
}

func (c *CachingMemory) touch(addr int64) {
	if addr < 0 || addr >= Size {
		// Out-of-range accesses are counted as misses and fill no line.
		c.stats.Misses++
		return
	}
	line := (addr / lineSize) % cacheLines
	tag := addr / lineSize
	if c.valid[line] && c.tag[line] == tag {
		c.stats.Hits++
		return
	}
	c.stats.Misses++
	c.valid[line] = true
	c.tag[line] = tag
}

// Read8 implements Bank, recording a cache probe before delegating.
func (c *CachingMemory) Read8(addr int64) (int64, bool) {
	c.touch(addr)
	return c.inner.Read8(addr)
}

// Write8 implements Bank, recording a cache probe before delegating.
func (c *CachingMemory) Write8(addr int64, v int64) bool {
	c.touch(addr)
	return c.inner.Write8(addr, v)
}

// ReadByte implements Bank by delegating without touching the cache; the
// loader's byte-at-a-time image population is not an architectural
// access and should not be reflected in run-time cache statistics.
// Instruction-byte reads that Fetch makes through ReadByte are likewise
// not counted.
func (c *CachingMemory) ReadByte(addr int64) byte {
	return c.inner.ReadByte(addr)
}

// WriteByte implements Bank by delegating without touching the cache.
func (c *CachingMemory) WriteByte(addr int64, b byte) {
	c.inner.WriteByte(addr, b)
}

// PowerOn implements Bank, resetting both the wrapped memory and the
// cache's own tag state.
func (c *CachingMemory) PowerOn() {
	c.inner.PowerOn()
	c.valid = [cacheLines]bool{}
	c.tag = [cacheLines]int64{}
	c.stats = CacheStats{}
}

// Stats returns the accumulated hit/miss counters.
func (c *CachingMemory) Stats() CacheStats {
	return c.stats
}

// NonZeroWords delegates to the wrapped Bank when it exposes the method,
// so the trace emitter can snapshot memory regardless of whether a cache
// is interposed.
func (c *CachingMemory) NonZeroWords() []AddrValue {
	if scanner, ok := c.inner.(interface{ NonZeroWords() []AddrValue }); ok {
		return scanner.NonZeroWords()
	}
	return nil
}
