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

import "encoding/binary"

// overflowUnitBytes is the size of one overflow block: eight 64-bit
// words holding 64 one-byte counters.
const overflowUnitBytes = 64

// arena is a free-list-managed pool of overflow blocks shared by every
// counts word in a filter that has been promoted out of inline encoding.
// Free blocks chain through their own first word, which holds the
// 1-based index of the next free block (0 terminates the chain).
type arena struct {
	bytes    []byte
	freeHead uint32
}

// alloc returns the index of a zeroed overflow block.
func (a *arena) alloc() uint32 {
	if a.freeHead != 0 {
		idx := a.freeHead - 1
		blk := a.block(idx)
		a.freeHead = uint32(binary.LittleEndian.Uint64(blk))
		for i := range blk {
			blk[i] = 0
		}
		return idx
	}

	idx := uint32(len(a.bytes) / overflowUnitBytes)
	a.bytes = append(a.bytes, make([]byte, overflowUnitBytes)...)
	return idx
}

// free returns the block at idx to the free list.
func (a *arena) free(idx uint32) {
	blk := a.block(idx)
	binary.LittleEndian.PutUint64(blk, uint64(a.freeHead))
	a.freeHead = idx + 1
}

// block returns the overflowUnitBytes-byte slice at idx.
func (a *arena) block(idx uint32) []byte {
	start := int(idx) * overflowUnitBytes
	return a.bytes[start : start+overflowUnitBytes]
}

// liveBits returns the total number of bits the arena currently holds,
// allocated or free, for BitCount reporting.
func (a *arena) liveBits() uint64 {
	return uint64(len(a.bytes)) * 8
}
