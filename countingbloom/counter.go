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

// Package countingbloom implements the succinct counting Bloom filter
// family: a flat variant (SuccinctCountingBloom) and a
// cache-line-blocked variant (SuccinctCountingBlockedBloom). Both store
// one data bit plus one counts word per 64 logical counters, falling
// back to a shared overflow byte arena when a block's counts can no
// longer be packed into a single 64-bit word.
package countingbloom

import (
	"math/bits"

	"github.com/greatroar/amqfilter/bitset"
)

// Each block holds up to 64 counters, one per data bit. The counts word
// encodes them as a run-length unary code (see runStart/totalInlineBits)
// as long as their sum stays below inlineCapacity; once a block's total
// count would reach inlineCapacity, it promotes to an overflow block of
// one byte per counter, addressed through an arena (see arena.go).
//
// The classical form of this encoding appends a sentinel one after the
// last run to bound a select scan. This implementation always knows the
// number of live runs (popcount(data)) up front, so it indexes run
// boundaries directly by rank and never needs the sentinel; the
// capacity arithmetic comes out to the same threshold regardless.
const (
	overflowBit      = uint64(1) << 63
	overflowPopBits  = 31
	overflowPtrBits  = 28
	overflowPopShift = overflowPtrBits
	overflowPopMask  = (uint64(1)<<overflowPopBits - 1) << overflowPopShift
	overflowPtrMask  = uint64(1)<<overflowPtrBits - 1

	// inlineCapacity is the sum-of-counters threshold at or above which
	// a block's counts no longer fit the 63 usable bits of an inline
	// counts word (bit 63 is permanently reserved as the mode flag).
	inlineCapacity = 64
)

func isOverflow(counts uint64) bool { return counts&overflowBit != 0 }

func overflowPtr(counts uint64) uint32 { return uint32(counts & overflowPtrMask) }

func overflowPop(counts uint64) uint32 { return uint32((counts & overflowPopMask) >> overflowPopShift) }

func makeOverflow(ptr, pop uint32) uint64 {
	return overflowBit | (uint64(pop) << overflowPopShift) | uint64(ptr)
}

func maskBelow(slot int) uint64 {
	if slot <= 0 {
		return 0
	}
	return uint64(1)<<uint(slot) - 1
}

// runIndex returns the 0-based rank of slot among the blocks's set data
// bits strictly below it, i.e. which run (if any) slot occupies or would
// occupy if newly inserted.
func runIndex(data uint64, slot int) int {
	return bits.OnesCount64(data & maskBelow(slot))
}

// zeroSelect returns the position of the (rank+1)-th zero bit of counts.
// Every run's unary code ends in exactly one zero terminator, so
// selecting over the complement gives a stable, rank-addressable
// landmark per run regardless of how many ones precede it.
func zeroSelect(counts uint64, rank int) int {
	return bitset.SelectInLong(^counts, rank)
}

// runStart returns the bit position where the r-th run (0-based) begins.
func runStart(counts uint64, r int) int {
	if r == 0 {
		return 0
	}
	return zeroSelect(counts, r-1) + 1
}

// totalInlineBits returns the number of counts bits currently in use by
// the block's run encoding.
func totalInlineBits(data, counts uint64) int {
	r := bits.OnesCount64(data)
	if r == 0 {
		return 0
	}
	return zeroSelect(counts, r-1) + 1
}

func insertBit(word uint64, pos int, bit uint64) uint64 {
	low := word & (uint64(1)<<uint(pos) - 1)
	high := word >> uint(pos)
	return low | (((high << 1) | bit) << uint(pos))
}

func removeBit(word uint64, pos int) uint64 {
	low := word & (uint64(1)<<uint(pos) - 1)
	high := word >> uint(pos+1)
	return low | (high << uint(pos))
}

// readCount returns the counter value at slot (0-63) of a block with
// the given data/counts words, consulting a for the overflow case.
func readCount(data, counts uint64, a *arena, slot int) uint32 {
	if data&(uint64(1)<<uint(slot)) == 0 {
		return 0
	}
	if isOverflow(counts) {
		return uint32(a.block(overflowPtr(counts))[slot])
	}

	r := runIndex(data, slot)
	start := runStart(counts, r)
	return uint32(bitset.LeadingOnes(counts, start)) + 1
}

// increment raises the counter at slot by one, promoting the block to
// overflow encoding first if its inline budget is exhausted.
func increment(data, counts uint64, a *arena, slot int) (uint64, uint64) {
	if isOverflow(counts) {
		ptr := overflowPtr(counts)
		blk := a.block(ptr)
		if blk[slot] == 0 {
			data |= uint64(1) << uint(slot)
		}
		blk[slot]++
		return data, makeOverflow(ptr, overflowPop(counts)+1)
	}

	present := data&(uint64(1)<<uint(slot)) != 0
	total := totalInlineBits(data, counts)
	if total+1 >= inlineCapacity {
		data, counts = promote(data, counts, a)
		return increment(data, counts, a, slot)
	}

	r := runIndex(data, slot)
	start := runStart(counts, r)

	var bit uint64
	if present {
		bit = 1 // extend the existing run by one more leading one.
	} else {
		data |= uint64(1) << uint(slot) // brand new run: lone terminator zero.
	}
	return data, insertBit(counts, start, bit)
}

// decrement lowers the counter at slot by one, demoting the block back
// to inline encoding if its overflow population falls low enough. It is
// a no-op if the counter is already zero.
func decrement(data, counts uint64, a *arena, slot int) (uint64, uint64) {
	if data&(uint64(1)<<uint(slot)) == 0 {
		return data, counts
	}

	if isOverflow(counts) {
		ptr := overflowPtr(counts)
		blk := a.block(ptr)
		blk[slot]--
		if blk[slot] == 0 {
			data &^= uint64(1) << uint(slot)
		}
		pop := overflowPop(counts) - 1
		if pop < inlineCapacity {
			return demote(data, blk, a, ptr)
		}
		return data, makeOverflow(ptr, pop)
	}

	r := runIndex(data, slot)
	start := runStart(counts, r)
	run := bitset.LeadingOnes(counts, start)
	if run == 0 {
		data &^= uint64(1) << uint(slot)
	}
	return data, removeBit(counts, start)
}

// promote materializes a block's inline run encoding into a freshly
// allocated overflow block of byte counters.
func promote(data, counts uint64, a *arena) (uint64, uint64) {
	ptr := a.alloc()
	blk := a.block(ptr)

	var pop uint32
	for slot := 0; slot < 64; slot++ {
		if data&(uint64(1)<<uint(slot)) == 0 {
			continue
		}
		r := runIndex(data, slot)
		start := runStart(counts, r)
		c := uint32(bitset.LeadingOnes(counts, start)) + 1
		blk[slot] = uint8(c)
		pop += c
	}
	return data, makeOverflow(ptr, pop)
}

// demote reconstructs an inline counts word from an overflow block's
// byte counters and returns the block to the arena's free list.
func demote(data uint64, blk []byte, a *arena, ptr uint32) (uint64, uint64) {
	var counts uint64
	var pos int
	for slot := 0; slot < 64; slot++ {
		c := blk[slot]
		if c == 0 {
			continue
		}
		for i := 0; i < int(c)-1; i++ {
			counts |= uint64(1) << uint(pos)
			pos++
		}
		pos++ // terminator zero, already 0 in counts.
	}
	a.free(ptr)
	return data, counts
}
