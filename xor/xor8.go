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

import "github.com/greatroar/amqfilter/hash"

// Filter8 is an immutable XOR filter with 8-bit fingerprints. Space is
// about 1.23 bytes (9.84 bits) per inserted key, for a false positive
// rate near 2^-8 (≈0.39%).
type Filter8 struct {
	seed         uint64
	blockLength  uint32
	n            uint32
	fingerprints []uint8
}

// New8 constructs a Filter8 over the given distinct keys. Construction
// fails (ErrConstructionFailed) if peeling does not converge within the
// retry budget, and fails (ErrInputLikelyBroken) if a table position
// receives an implausible number of keys.
func New8(keys []uint64) (*Filter8, error) {
	pr, err := peel(keys)
	if err != nil {
		return nil, err
	}

	m := 3 * pr.blockLength
	fp := make([]uint8, m)
	for i := len(pr.order) - 1; i >= 0; i-- {
		hv := pr.order[i]
		h0, h1, h2 := geti(hv, pr.blockLength)
		target, o1, o2 := assignmentTargets(pr.which[i], h0, h1, h2)
		fp[target] = uint8(hv) ^ fp[o1] ^ fp[o2]
	}

	return &Filter8{
		seed:         pr.seed,
		blockLength:  pr.blockLength,
		n:            uint32(len(keys)),
		fingerprints: fp,
	}, nil
}

// assignmentTargets picks out (target, other1, other2) from the three
// candidate positions, given which of them (0, 1, or 2) the key was
// peeled through.
func assignmentTargets(which uint8, h0, h1, h2 uint32) (target, o1, o2 uint32) {
	switch which {
	case 0:
		return h0, h1, h2
	case 1:
		return h1, h0, h2
	default:
		return h2, h0, h1
	}
}

// MayContain reports whether key may have been inserted. It never
// returns false for a key that was actually inserted.
func (f *Filter8) MayContain(key uint64) bool {
	h := hash.Mix(key, f.seed)
	h0, h1, h2 := geti(h, f.blockLength)
	want := uint8(h)
	got := f.fingerprints[h0] ^ f.fingerprints[h1] ^ f.fingerprints[h2]
	return want == got
}

// BitCount returns the number of storage bits occupied by f.
func (f *Filter8) BitCount() uint64 {
	return uint64(len(f.fingerprints)) * 8
}

// Cardinality returns the number of keys f was constructed from.
func (f *Filter8) Cardinality() uint64 {
	return uint64(f.n)
}

// SupportsAdd reports whether f supports Add. XOR filters are built once
// and are immutable; it always returns false.
func (f *Filter8) SupportsAdd() bool { return false }

// SupportsRemove reports whether f supports Remove. It always returns
// false.
func (f *Filter8) SupportsRemove() bool { return false }
