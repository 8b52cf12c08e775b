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

// Package xor implements the XOR-8, XOR-16 and XOR+8 approximate
// membership filters: three-block fingerprint tables built by peeling a
// 3-uniform hypergraph of keys down to an assignment order.
package xor

import (
	"math"
	"math/bits"

	"github.com/greatroar/amqfilter/amqerr"
	"github.com/greatroar/amqfilter/hash"
)

// maxRetries bounds how many times construction reseeds and retries
// peeling before giving up.
const maxRetries = 100

// abuseThreshold is the per-position degree above which construction
// assumes the input hashes to very few positions, typically because of
// duplicate keys or a broken hash.
const abuseThreshold = 120

// geti computes the three candidate table positions for a mixed hash
// value, given the length of one of the filter's three equal blocks.
func geti(h uint64, blockLength uint32) (h0, h1, h2 uint32) {
	h0 = hash.Reduce(uint32(h), blockLength)
	h1 = blockLength + hash.Reduce(uint32(bits.RotateLeft64(h, 21)), blockLength)
	h2 = 2*blockLength + hash.Reduce(uint32(bits.RotateLeft64(h, 42)), blockLength)
	return
}

// tableLength returns (m, blockLength) for n keys: m = 3*floor(ceil(1.23n+32)/3).
func tableLength(n uint32) (m, blockLength uint32) {
	capacity := uint32(math.Ceil(1.23*float64(n) + 32))
	blockLength = capacity / 3
	return blockLength * 3, blockLength
}

// peelResult is the shared output of peeling: for each key (in the order
// it was popped off the degree-1 stack, i.e. reverse assignment order),
// the mixed hash value and which of its three candidate positions (0, 1,
// or 2) the key is ultimately assigned through.
type peelResult struct {
	seed        uint64
	blockLength uint32
	order       []uint64
	which       []uint8
}

// peel runs the peeling construction: insert every key into all three
// of its candidate positions, repeatedly strip off degree-1 positions,
// and require that every key eventually peels.
// On failure after maxRetries reseeded attempts, or on a clear sign of
// abusive input, it returns an error instead of a broken filter.
func peel(keys []uint64) (*peelResult, error) {
	return peelOrdered(keys, false)
}

// peelOrdered is peel with an optional queue-ordering bias. When
// biasThirdBlockEmpty is set (used by XOR+8), degree-1 positions in the
// first two blocks are always popped and assigned before any degree-1
// position in the third block, for as long as any exist. Since a key's assignment position is
// the position it fills (the other two are only read), consistently
// preferring blocks 0/1 as assignment targets leaves more of block 2's
// cells never written, i.e. at their default zero value, which is what
// XOR+8's rank-compressed third block elides.
func peelOrdered(keys []uint64, biasThirdBlockEmpty bool) (*peelResult, error) {
	size := uint32(len(keys))
	if size == 0 {
		return nil, amqerr.Wrapf(amqerr.ErrInvalidArgument, "xor: construct requires at least one key")
	}

	m, blockLength := tableLength(size)

	xormask := make([]uint64, m)
	count := make([]uint32, m)
	alone := make([]uint32, m)      // positions in blocks 0/1
	aloneThird := make([]uint32, m) // positions in block 2, used only when biased
	order := make([]uint64, size)
	which := make([]uint8, size)

	seed := hash.RandomSeed()

	for attempt := 0; attempt < maxRetries; attempt++ {
		for i := range xormask {
			xormask[i] = 0
			count[i] = 0
		}

		abuse := false
		for _, key := range keys {
			h := hash.Mix(key, seed)
			h0, h1, h2 := geti(h, blockLength)
			xormask[h0] ^= h
			count[h0]++
			xormask[h1] ^= h
			count[h1]++
			xormask[h2] ^= h
			count[h2]++
			if count[h0] > abuseThreshold || count[h1] > abuseThreshold || count[h2] > abuseThreshold {
				abuse = true
				break
			}
		}
		if abuse {
			return nil, amqerr.Wrapf(amqerr.ErrInputLikelyBroken,
				"xor: a table position received more than %d keys; input likely has duplicates", abuseThreshold)
		}

		thirdStart := 2 * blockLength
		qsize, qthird := uint32(0), uint32(0)
		for i := uint32(0); i < m; i++ {
			if count[i] == 1 {
				if biasThirdBlockEmpty && i >= thirdStart {
					aloneThird[qthird] = i
					qthird++
				} else {
					alone[qsize] = i
					qsize++
				}
			}
		}

		stacksize := uint32(0)
		for qsize > 0 || qthird > 0 {
			var idx uint32
			if qsize > 0 {
				qsize--
				idx = alone[qsize]
			} else {
				qthird--
				idx = aloneThird[qthird]
			}
			if count[idx] != 1 {
				continue
			}
			hv := xormask[idx]
			h0, h1, h2 := geti(hv, blockLength)

			var p uint8
			switch idx {
			case h0:
				p = 0
			case h1:
				p = 1
			default:
				p = 2
			}
			order[stacksize] = hv
			which[stacksize] = p
			stacksize++
			count[idx] = 0

			for _, pos := range [3]uint32{h0, h1, h2} {
				if pos == idx {
					continue
				}
				count[pos]--
				xormask[pos] ^= hv
				if count[pos] == 1 {
					if biasThirdBlockEmpty && pos >= thirdStart {
						aloneThird[qthird] = pos
						qthird++
					} else {
						alone[qsize] = pos
						qsize++
					}
				}
			}
		}

		if stacksize == size {
			return &peelResult{seed: seed, blockLength: blockLength, order: order, which: which}, nil
		}

		seed = hash.SplitMix64(seed)
	}

	return nil, amqerr.Wrapf(amqerr.ErrConstructionFailed, "xor: peeling did not converge after %d attempts", maxRetries)
}
