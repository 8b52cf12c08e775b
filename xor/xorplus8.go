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

package xor

import (
	"math/bits"

	"github.com/greatroar/amqfilter/bitset"
	"github.com/greatroar/amqfilter/hash"
)

// Filter8Plus is the XOR+8 variant: the same 8-bit peeling construction
// as Filter8, but with its third block compressed. All-zero cells of the
// third block are elided and a rank index reconstructs the compacted
// position in O(1). The peeling order is biased so that more of the
// third block's cells end up zero (and therefore compressible) than the
// unbiased stack-order peel of Filter8 would produce.
type Filter8Plus struct {
	seed        uint64
	blockLength uint32
	n           uint32

	block0, block1 []uint8

	thirdPresent *bitset.BitField // one bit per third-block cell
	thirdRank    []uint32         // cumulative popcount at each 64-bit word boundary
	thirdValues  []uint8          // compacted nonzero third-block cells, in position order
}

// New8Plus constructs a Filter8Plus over the given distinct keys.
func New8Plus(keys []uint64) (*Filter8Plus, error) {
	pr, err := peelOrdered(keys, true)
	if err != nil {
		return nil, err
	}

	bl := pr.blockLength
	full := make([]uint8, 3*bl)
	for i := len(pr.order) - 1; i >= 0; i-- {
		hv := pr.order[i]
		h0, h1, h2 := geti(hv, bl)
		target, o1, o2 := assignmentTargets(pr.which[i], h0, h1, h2)
		full[target] = uint8(hv) ^ full[o1] ^ full[o2]
	}

	block0 := full[:bl]
	block1 := full[bl : 2*bl]
	third := full[2*bl : 3*bl]

	present := bitset.New(int(bl))
	var values []uint8
	for i, v := range third {
		if v != 0 {
			present.Set(i)
			values = append(values, v)
		}
	}

	nwords := (int(bl) + 63) / 64
	rank := make([]uint32, nwords)
	var cum uint32
	for w := 0; w < nwords; w++ {
		rank[w] = cum
		cum += uint32(bits.OnesCount64(present.GetLong(w)))
	}

	return &Filter8Plus{
		seed:         pr.seed,
		blockLength:  bl,
		n:            uint32(len(keys)),
		block0:       block0,
		block1:       block1,
		thirdPresent: present,
		thirdRank:    rank,
		thirdValues:  values,
	}, nil
}

// thirdAt returns the (decompressed) value of the third block at
// position i in O(1): a zero bit in thirdPresent means the stored value
// was zero, otherwise the value is looked up at its rank among set bits.
func (f *Filter8Plus) thirdAt(i uint32) uint8 {
	if !f.thirdPresent.Get(int(i)) {
		return 0
	}
	word := int(i) >> 6
	mask := uint64(1)<<uint(i&63) - 1
	r := f.thirdRank[word] + uint32(bits.OnesCount64(f.thirdPresent.GetLong(word)&mask))
	return f.thirdValues[r]
}

// MayContain reports whether key may have been inserted.
func (f *Filter8Plus) MayContain(key uint64) bool {
	h := hash.Mix(key, f.seed)
	h0, h1, h2 := geti(h, f.blockLength)
	want := uint8(h)
	got := f.block0[h0] ^ f.block1[h1-f.blockLength] ^ f.thirdAt(h2-2*f.blockLength)
	return want == got
}

// BitCount returns the number of storage bits occupied by f: two full
// 8-bit blocks, a presence bit per third-block cell, the rank cache, and
// 8 bits per surviving (nonzero) third-block cell.
func (f *Filter8Plus) BitCount() uint64 {
	bitsField := uint64(f.thirdPresent.Len())
	bitsRank := uint64(len(f.thirdRank)) * 32
	bitsValues := uint64(len(f.thirdValues)) * 8
	return uint64(len(f.block0))*8 + uint64(len(f.block1))*8 + bitsField + bitsRank + bitsValues
}

// Cardinality returns the number of keys f was constructed from.
func (f *Filter8Plus) Cardinality() uint64 { return uint64(f.n) }

// SupportsAdd always returns false: XOR filters are immutable.
func (f *Filter8Plus) SupportsAdd() bool { return false }

// SupportsRemove always returns false.
func (f *Filter8Plus) SupportsRemove() bool { return false }
