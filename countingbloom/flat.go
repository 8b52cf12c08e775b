// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package countingbloom

import (
	"math/bits"

	"github.com/greatroar/amqfilter/hash"
)

// A SuccinctCountingBloom is a Bloom filter over the whole of its bit
// array (as opposed to SuccinctCountingBlockedBloom's cache-line
// shards) that supports Add and Remove by keeping one succinct counter
// per data bit.
type SuccinctCountingBloom struct {
	data   []uint64
	counts []uint64
	arena  arena
	m      uint32 // number of data bits, a multiple of 64
	k      int
	n      uint64
	dbg    *verifier
}

// New constructs a SuccinctCountingBloom with room for m bits (rounded
// up to a multiple of 64) and k hash functions per key. Use Optimize or
// NewOptimized to derive m and k from a target false positive rate.
func New(m uint32, k int) *SuccinctCountingBloom {
	if m < 64 {
		m = 64
	}
	if m%64 != 0 {
		m += 64 - m%64
	}
	if k < 1 {
		k = 1
	}

	nwords := m / 64
	f := &SuccinctCountingBloom{
		data:   make([]uint64, nwords),
		counts: make([]uint64, nwords),
		m:      m,
		k:      k,
	}
	f.dbg = newVerifier(f)
	return f
}

// doublehash derives the next pair of probe seeds using enhanced double
// hashing (Dillinger and Manolios), the same recurrence blobloom uses
// for its within-block probes, generalized here to span the whole
// filter rather than a single cache line.
func doublehash(h1, h2 uint32, i int) (uint32, uint32) {
	h1 = h1 + h2
	h2 = h2 + uint32(i)
	return h1, h2
}

func (f *SuccinctCountingBloom) positions(h uint64) []uint32 {
	h1, h2 := uint32(h>>32), uint32(h)
	pos := make([]uint32, f.k)
	for i := 0; i < f.k; i++ {
		pos[i] = hash.Reduce(h1, f.m)
		h1, h2 = doublehash(h1, h2, i)
	}
	return pos
}

func (f *SuccinctCountingBloom) readCountAt(pos uint32) uint32 {
	w := pos / 64
	slot := int(pos % 64)
	return readCount(f.data[w], f.counts[w], &f.arena, slot)
}

func (f *SuccinctCountingBloom) incrementAt(pos uint32) {
	w := pos / 64
	slot := int(pos % 64)
	f.data[w], f.counts[w] = increment(f.data[w], f.counts[w], &f.arena, slot)
	if f.dbg != nil {
		f.dbg.increment(pos)
	}
}

func (f *SuccinctCountingBloom) decrementAt(pos uint32) {
	w := pos / 64
	slot := int(pos % 64)
	f.data[w], f.counts[w] = decrement(f.data[w], f.counts[w], &f.arena, slot)
	if f.dbg != nil {
		f.dbg.decrement(pos)
	}
}

// Add inserts a key with hash value h into f.
func (f *SuccinctCountingBloom) Add(h uint64) {
	for _, pos := range f.positions(h) {
		f.incrementAt(pos)
	}
	f.n++
	if f.dbg != nil {
		f.dbg.verify(f)
	}
}

// Remove deletes a key with hash value h from f. It decrements every
// non-zero counter among h's probed positions and decrements
// f.Cardinality, whether or not h was added; removing a key that was
// never added therefore also lowers counters that other keys share.
func (f *SuccinctCountingBloom) Remove(h uint64) {
	for _, pos := range f.positions(h) {
		f.decrementAt(pos)
	}
	f.n--
	if f.dbg != nil {
		f.dbg.verify(f)
	}
}

// Has reports whether a key with hash value h may have been added.
func (f *SuccinctCountingBloom) Has(h uint64) bool {
	for _, pos := range f.positions(h) {
		if f.readCountAt(pos) == 0 {
			return false
		}
	}
	return true
}

// MayContain is Has under the uniform filter interface name.
func (f *SuccinctCountingBloom) MayContain(h uint64) bool { return f.Has(h) }

// ProbeCounts returns the succinct counter at each of h's k probed
// positions, in probe order. It exists to let tests and callers observe
// per-slot counts directly.
func (f *SuccinctCountingBloom) ProbeCounts(h uint64) []uint32 {
	pos := f.positions(h)
	out := make([]uint32, len(pos))
	for i, p := range pos {
		out[i] = f.readCountAt(p)
	}
	return out
}

// NumBits returns the number of data bits in f (not counting the
// parallel counts words or overflow arena).
func (f *SuccinctCountingBloom) NumBits() uint64 { return uint64(f.m) }

// BitCount returns the total storage footprint of f: one data bit and
// one counts bit per slot, plus the current overflow arena.
func (f *SuccinctCountingBloom) BitCount() uint64 {
	return uint64(f.m) + uint64(f.m) + f.arena.liveBits()
}

// Cardinality returns the number of keys added to f, net of removals.
func (f *SuccinctCountingBloom) Cardinality() uint64 { return f.n }

// TotalCount returns the population count of the data words of inline
// blocks plus the sum of the byte counters of overflow blocks. For an
// inline block this is the number of non-zero counters, not their sum.
func (f *SuccinctCountingBloom) TotalCount() uint64 {
	var total uint64
	for w := range f.data {
		if isOverflow(f.counts[w]) {
			ptr := overflowPtr(f.counts[w])
			for _, b := range f.arena.block(ptr) {
				total += uint64(b)
			}
			continue
		}
		total += uint64(bits.OnesCount64(f.data[w]))
	}
	return total
}

// SupportsAdd always returns true.
func (f *SuccinctCountingBloom) SupportsAdd() bool { return true }

// SupportsRemove always returns true.
func (f *SuccinctCountingBloom) SupportsRemove() bool { return true }
