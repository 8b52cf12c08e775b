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

	"golang.org/x/sys/cpu"

	"github.com/greatroar/amqfilter/hash"
)

// blockWords is the number of 64-bit words in one 512-bit cache line,
// matching blobloom.BlockBits.
const blockWords = 8

// countingBlock holds one cache-line's worth of data bits and their
// 1-to-1 paired counts words, plus padding so consecutive blocks don't
// share a cache line under false sharing. cpu.CacheLinePad is the same
// alignment primitive dgraph-io-ristretto uses for its sharded counters.
type countingBlock struct {
	data   [blockWords]uint64
	counts [blockWords]uint64
	_      cpu.CacheLinePad
}

// A SuccinctCountingBlockedBloom is the cache-line-sharded counterpart
// of SuccinctCountingBloom: a key's k probes all land in one 512-bit
// block, trading a small FPP penalty for avoiding cross-line traffic on
// every lookup.
type SuccinctCountingBlockedBloom struct {
	blocks []countingBlock
	arena  arena
	k      int
	n      uint64
	dbg    *verifier
}

// NewBlocked constructs a SuccinctCountingBlockedBloom with nblocks
// cache-line blocks (512 bits each) and k hash functions per key.
func NewBlocked(nblocks uint32, k int) *SuccinctCountingBlockedBloom {
	if nblocks < 1 {
		nblocks = 1
	}
	if k < 1 {
		k = 1
	}
	f := &SuccinctCountingBlockedBloom{
		blocks: make([]countingBlock, nblocks),
		k:      k,
	}
	f.dbg = newVerifier(f)
	return f
}

// NewBlockedOptimized derives a block count and hash count from cfg (in
// units of bits the way blobloom.Optimize does) and constructs a filter.
func NewBlockedOptimized(cfg Config) *SuccinctCountingBlockedBloom {
	nbits, k := Optimize(cfg)
	nblocks := uint32(nbits) / (blockWords * 64)
	if nblocks < 1 {
		nblocks = 1
	}
	return NewBlocked(nblocks, k)
}

// blockAndBit maps a key's hash to its block and the k within-block bit
// positions it sets, via the same a+i*b recurrence blobloom's plain
// (non-counting) blocked filter uses for its within-block probes.
func (f *SuccinctCountingBlockedBloom) blockAndBit(h uint64) (block int, pos []uint32) {
	h1, h2 := uint32(h>>32), uint32(h)
	idx := hash.Reduce(h2, uint32(len(f.blocks)))

	pos = make([]uint32, f.k)
	for i := 0; i < f.k; i++ {
		h1, h2 = doublehash(h1, h2, i)
		pos[i] = h1 % (blockWords * 64)
	}
	return int(idx), pos
}

func (f *SuccinctCountingBlockedBloom) readCountAt(globalPos uint32) uint32 {
	blk, word, slot := f.locate(globalPos)
	b := &f.blocks[blk]
	return readCount(b.data[word], b.counts[word], &f.arena, slot)
}

func (f *SuccinctCountingBlockedBloom) locate(globalPos uint32) (block, word, slot int) {
	const bitsPerBlock = blockWords * 64
	block = int(globalPos / bitsPerBlock)
	within := int(globalPos % bitsPerBlock)
	return block, within / 64, within % 64
}

func (f *SuccinctCountingBlockedBloom) globalPos(block int, within uint32) uint32 {
	return uint32(block)*blockWords*64 + within
}

func (f *SuccinctCountingBlockedBloom) incrementAt(block int, within uint32) {
	word, slot := int(within/64), int(within%64)
	b := &f.blocks[block]
	b.data[word], b.counts[word] = increment(b.data[word], b.counts[word], &f.arena, slot)
	if f.dbg != nil {
		f.dbg.increment(f.globalPos(block, within))
	}
}

func (f *SuccinctCountingBlockedBloom) decrementAt(block int, within uint32) {
	word, slot := int(within/64), int(within%64)
	b := &f.blocks[block]
	b.data[word], b.counts[word] = decrement(b.data[word], b.counts[word], &f.arena, slot)
	if f.dbg != nil {
		f.dbg.decrement(f.globalPos(block, within))
	}
}

// Add inserts a key with hash value h into f.
func (f *SuccinctCountingBlockedBloom) Add(h uint64) {
	block, positions := f.blockAndBit(h)
	for _, within := range positions {
		f.incrementAt(block, within)
	}
	f.n++
	if f.dbg != nil {
		f.dbg.verify(f)
	}
}

// Remove deletes a key with hash value h from f.
func (f *SuccinctCountingBlockedBloom) Remove(h uint64) {
	block, positions := f.blockAndBit(h)
	for _, within := range positions {
		f.decrementAt(block, within)
	}
	f.n--
	if f.dbg != nil {
		f.dbg.verify(f)
	}
}

// Has reports whether a key with hash value h may have been added.
func (f *SuccinctCountingBlockedBloom) Has(h uint64) bool {
	block, positions := f.blockAndBit(h)
	b := &f.blocks[block]
	for _, within := range positions {
		word, slot := int(within/64), int(within%64)
		if readCount(b.data[word], b.counts[word], &f.arena, slot) == 0 {
			return false
		}
	}
	return true
}

// MayContain is Has under the uniform filter interface name.
func (f *SuccinctCountingBlockedBloom) MayContain(h uint64) bool { return f.Has(h) }

// ProbeCounts returns the succinct counter at each of h's k within-block
// probes, in probe order.
func (f *SuccinctCountingBlockedBloom) ProbeCounts(h uint64) []uint32 {
	block, positions := f.blockAndBit(h)
	b := &f.blocks[block]
	out := make([]uint32, len(positions))
	for i, within := range positions {
		word, slot := int(within/64), int(within%64)
		out[i] = readCount(b.data[word], b.counts[word], &f.arena, slot)
	}
	return out
}

// NumBits returns the number of data bits in f.
func (f *SuccinctCountingBlockedBloom) NumBits() uint64 {
	return uint64(len(f.blocks)) * blockWords * 64
}

// BitCount returns the total storage footprint of f.
func (f *SuccinctCountingBlockedBloom) BitCount() uint64 {
	return 2*f.NumBits() + f.arena.liveBits()
}

// Cardinality returns the number of keys added to f, net of removals.
func (f *SuccinctCountingBlockedBloom) Cardinality() uint64 { return f.n }

// TotalCount returns the population count of the data words of inline
// blocks plus the sum of the byte counters of overflow blocks. For an
// inline block this is the number of non-zero counters, not their sum.
func (f *SuccinctCountingBlockedBloom) TotalCount() uint64 {
	var total uint64
	for bi := range f.blocks {
		b := &f.blocks[bi]
		for w := 0; w < blockWords; w++ {
			if isOverflow(b.counts[w]) {
				ptr := overflowPtr(b.counts[w])
				for _, by := range f.arena.block(ptr) {
					total += uint64(by)
				}
				continue
			}
			total += uint64(bits.OnesCount64(b.data[w]))
		}
	}
	return total
}

// SupportsAdd always returns true.
func (f *SuccinctCountingBlockedBloom) SupportsAdd() bool { return true }

// SupportsRemove always returns true.
func (f *SuccinctCountingBlockedBloom) SupportsRemove() bool { return true }
