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

// Package fuse implements the Binary Fuse-8 filter: a segmented,
// partitioned peeling construction in the style of xor, but with 9-9.1
// bits per key instead of XOR-8's 9.84, thanks to cache-friendly
// segmentation.
package fuse

import (
	"math"
	"math/bits"
	"slices"

	"github.com/greatroar/amqfilter/amqerr"
	"github.com/greatroar/amqfilter/hash"
)

// maxAttempts bounds the total number of reseeded construction attempts.
const maxAttempts = 100

// dedupAfter is the attempt count after which, if construction has not
// yet converged, the key slice is sorted and deduplicated once before
// continuing to retry.
const dedupAfter = 10

const maxSegmentLength = 1 << 18

// Filter8 is an immutable Binary Fuse-8 filter.
type Filter8 struct {
	seed               uint64
	segmentLength      uint32
	segmentLengthMask  uint32
	segmentCount       uint32
	segmentCountLength uint32
	n                  uint32

	fingerprints []uint8
}

func segmentLengthFor(size uint32) uint32 {
	if size <= 1 {
		return 1 << 2
	}
	l := uint32(2) << uint(math.Round(0.831*math.Log(float64(size))+0.75+0.5))
	if l > maxSegmentLength {
		l = maxSegmentLength
	}
	return l
}

func sizeFactorFor(size uint32) float64 {
	return math.Max(1.125, 0.4+9.3/math.Log(float64(size)))
}

func initializeParameters(size uint32) (segmentLength, segmentCount, segmentCountLength, arrayLength uint32) {
	const arity = 3

	segmentLength = segmentLengthFor(size)
	// log(n) below needs n > 1; smaller inputs still produce a valid
	// (if oversized relative to n) table.
	sizeFactor := sizeFactorFor(uint32max(size, 2))
	capacity := uint32(math.Round(float64(size) * sizeFactor))
	initSegmentCount := (capacity+segmentLength-1)/segmentLength - (arity - 1)
	arrayLength = (initSegmentCount + arity - 1) * segmentLength
	segmentCount = (arrayLength + segmentLength - 1) / segmentLength
	if segmentCount <= arity-1 {
		segmentCount = 1
	} else {
		segmentCount -= arity - 1
	}
	arrayLength = (segmentCount + arity - 1) * segmentLength
	segmentCountLength = segmentCount * segmentLength
	return
}

func getHashFromHash(h uint64, segmentLength, segmentLengthMask, segmentCountLength uint32) (h0, h1, h2 uint32) {
	hi, _ := bits.Mul64(h, uint64(segmentCountLength))
	h0 = uint32(hi)
	h1 = h0 + segmentLength
	h2 = h1 + segmentLength
	h1 ^= uint32(h>>18) & segmentLengthMask
	h2 ^= uint32(h) & segmentLengthMask
	return
}

func uint32max(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}

func mod3(x uint8) uint8 {
	if x > 2 {
		x -= 3
	}
	return x
}

// New8 constructs a Filter8 over the given distinct keys. If peeling has
// not converged after dedupAfter attempts, the keys are sorted and
// deduplicated once, since that failure pattern is the signature of a
// key slice with duplicates. If the filter still hasn't converged after maxAttempts
// total attempts, construction fails with ErrConstructionFailed.
//
// keys is not mutated; New8 works on (and may sort/dedup) a private
// copy.
func New8(keys []uint64) (*Filter8, error) {
	if len(keys) == 0 {
		return nil, amqerr.Wrapf(amqerr.ErrInvalidArgument, "fuse: construct requires at least one key")
	}

	work := make([]uint64, len(keys))
	copy(work, keys)

	deduped := false
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		f, ok := tryPopulate8(work, attempt)
		if ok {
			return f, nil
		}

		if attempt == dedupAfter && !deduped {
			work = sortDedup(work)
			deduped = true
		}
	}

	return nil, amqerr.Wrapf(amqerr.ErrConstructionFailed, "fuse: peeling did not converge after %d attempts", maxAttempts)
}

func sortDedup(keys []uint64) []uint64 {
	slices.Sort(keys)
	return slices.Compact(keys)
}

// tryPopulate8 makes a single peeling attempt with a fresh seed. The
// second return value is false when peeling didn't converge, or when a
// position's counter byte overflowed (the signature of duplicate keys);
// either way the pass is discarded and the caller retries with a fresh
// seed.
func tryPopulate8(keys []uint64, attempt int) (*Filter8, bool) {
	size := uint32(len(keys))
	segmentLength, segmentCount, segmentCountLength, arrayLength := initializeParameters(size)
	segmentLengthMask := segmentLength - 1

	seed := hash.SplitMix64(uint64(attempt)<<32 | hash.RandomSeed())

	capacity := arrayLength
	alone := make([]uint32, capacity)
	t2count := make([]uint8, capacity)
	t2hash := make([]uint64, capacity)
	reverseOrder := make([]uint64, size+1)
	reverseOrder[size] = 1
	reverseH := make([]uint8, size)

	blockBits := 1
	for (uint32(1) << uint(blockBits)) < segmentCount {
		blockBits++
	}
	startPos := make([]uint32, 1<<uint(blockBits))
	for i := range startPos {
		startPos[i] = uint32((uint64(i) * uint64(size)) >> uint(blockBits))
	}

	for _, key := range keys {
		h := hash.Mix(key, seed)
		segmentIndex := h >> uint(64-blockBits)
		for reverseOrder[startPos[segmentIndex]] != 0 {
			segmentIndex++
			segmentIndex &= (uint64(1) << uint(blockBits)) - 1
		}
		reverseOrder[startPos[segmentIndex]] = h
		startPos[segmentIndex]++
	}

	// The low 2 bits of t2count hold the index (0, 1, or 2) of the hash
	// that put a key here; the count lives in the upper 6 bits. A count
	// wrapping below 4 means a position collected far too many keys,
	// almost surely duplicates; the pass is abandoned and the next
	// attempt (possibly after dedup) retries with a fresh seed.
	var h012 [6]uint32
	for i := uint32(0); i < size; i++ {
		h := reverseOrder[i]
		i1, i2, i3 := getHashFromHash(h, segmentLength, segmentLengthMask, segmentCountLength)
		t2count[i1] += 4
		t2hash[i1] ^= h
		t2count[i2] += 4
		t2count[i2] ^= 1
		t2hash[i2] ^= h
		t2count[i3] += 4
		t2count[i3] ^= 2
		t2hash[i3] ^= h
		if t2count[i1] < 4 || t2count[i2] < 4 || t2count[i3] < 4 {
			return nil, false
		}
	}

	qsize := uint32(0)
	for i := uint32(0); i < capacity; i++ {
		alone[qsize] = i
		if (t2count[i] >> 2) == 1 {
			qsize++
		}
	}

	stacksize := uint32(0)
	for qsize > 0 {
		qsize--
		index := alone[qsize]
		if (t2count[index] >> 2) != 1 {
			continue
		}
		h := t2hash[index]
		found := t2count[index] & 3
		reverseH[stacksize] = found
		reverseOrder[stacksize] = h
		stacksize++

		i1, i2, i3 := getHashFromHash(h, segmentLength, segmentLengthMask, segmentCountLength)
		h012[1] = i2
		h012[2] = i3
		h012[3] = i1
		h012[4] = h012[1]

		other1 := h012[found+1]
		alone[qsize] = other1
		if (t2count[other1] >> 2) == 2 {
			qsize++
		}
		t2count[other1] -= 4
		t2count[other1] ^= mod3(found + 1)
		t2hash[other1] ^= h

		other2 := h012[found+2]
		alone[qsize] = other2
		if (t2count[other2] >> 2) == 2 {
			qsize++
		}
		t2count[other2] -= 4
		t2count[other2] ^= mod3(found + 2)
		t2hash[other2] ^= h
	}

	if stacksize != size {
		return nil, false
	}

	fp := make([]uint8, arrayLength)
	for i := int(size - 1); i >= 0; i-- {
		h := reverseOrder[i]
		xor2 := uint8(fingerprint8(h))
		i1, i2, i3 := getHashFromHash(h, segmentLength, segmentLengthMask, segmentCountLength)
		found := reverseH[i]
		h012[0] = i1
		h012[1] = i2
		h012[2] = i3
		h012[3] = h012[0]
		h012[4] = h012[1]
		fp[h012[found]] = xor2 ^ fp[h012[found+1]] ^ fp[h012[found+2]]
	}

	return &Filter8{
		seed:               seed,
		segmentLength:      segmentLength,
		segmentLengthMask:  segmentLengthMask,
		segmentCount:       segmentCount,
		segmentCountLength: segmentCountLength,
		n:                  size,
		fingerprints:       fp,
	}, true
}

func fingerprint8(h uint64) uint64 {
	return h & 0xff
}

// MayContain reports whether key may have been inserted.
func (f *Filter8) MayContain(key uint64) bool {
	h := hash.Mix(key, f.seed)
	h0, h1, h2 := getHashFromHash(h, f.segmentLength, f.segmentLengthMask, f.segmentCountLength)
	want := uint8(fingerprint8(h))
	got := f.fingerprints[h0] ^ f.fingerprints[h1] ^ f.fingerprints[h2]
	return want == got
}

// BitCount returns the number of storage bits occupied by f.
func (f *Filter8) BitCount() uint64 {
	return uint64(len(f.fingerprints)) * 8
}

// Cardinality returns the number of keys f was constructed from (after
// any deduplication performed during construction).
func (f *Filter8) Cardinality() uint64 { return uint64(f.n) }

// SupportsAdd always returns false: Binary Fuse filters are immutable.
func (f *Filter8) SupportsAdd() bool { return false }

// SupportsRemove always returns false.
func (f *Filter8) SupportsRemove() bool { return false }
