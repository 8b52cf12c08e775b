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

// Package cuckoo implements the Cuckoo-8, Cuckoo-16, Cuckoo+8 and
// Cuckoo+16 approximate membership filters: 4-slot bucket arrays with
// random-walk eviction on insert.
//
// Unlike the XOR and Fuse families, Cuckoo filters support Add and
// Remove after construction (single-threaded use only).
package cuckoo

import (
	"math"
	"math/bits"
	"math/rand"

	"github.com/greatroar/amqfilter/amqerr"
	"github.com/greatroar/amqfilter/hash"
)

const slotsPerBucket = 4

// maxKicks bounds the random-walk eviction chain before an insert gives
// up and reports capacity exhaustion.
const maxKicks = 500

// fingerprint is the set of integer widths a Filter may use for
// fingerprints: 8 bits (Cuckoo-8/+8) or 16 bits (Cuckoo-16/+16).
type fingerprint interface {
	~uint8 | ~uint16
}

type bucket[T fingerprint] [slotsPerBucket]T

func (b *bucket[T]) add(f T) bool {
	for i, v := range b {
		if v == 0 {
			b[i] = f
			return true
		}
	}
	return false
}

func (b *bucket[T]) contains(f T) bool {
	for _, v := range b {
		if v == f {
			return true
		}
	}
	return false
}

func (b *bucket[T]) remove(f T) bool {
	for i, v := range b {
		if v == f {
			b[i] = 0
			return true
		}
	}
	return false
}

// A Filter is a Cuckoo filter over fingerprints of width T (uint8 or
// uint16). Use New8/New16 for the power-of-two plain variants, and
// New8Plus/New16Plus for the "+" variants, which relax the bucket count
// to an arbitrary value to save space. Filter8 and Filter16 are the
// exported names for Filter[uint8] and Filter[uint16]; the "+" variants
// share the same underlying type, distinguished only by how their
// alternate bucket index is computed (see altIndex).
type Filter[T fingerprint] struct {
	seed       uint64
	buckets    []bucket[T]
	numBuckets uint32
	plus       bool
	widthBits  uint64
	n          uint32
}

// Filter8 is a Cuckoo filter with 8-bit fingerprints.
type Filter8 = Filter[uint8]

// Filter16 is a Cuckoo filter with 16-bit fingerprints.
type Filter16 = Filter[uint16]

// New8 constructs a Cuckoo-8 filter (power-of-two bucket count) over the
// given distinct keys.
func New8(keys []uint64) (*Filter8, error) { return construct[uint8](keys, false, 8) }

// New8Plus constructs a Cuckoo+8 filter (non-power-of-two bucket count)
// over the given distinct keys.
func New8Plus(keys []uint64) (*Filter8, error) { return construct[uint8](keys, true, 8) }

// New16 constructs a Cuckoo-16 filter over the given distinct keys.
func New16(keys []uint64) (*Filter16, error) { return construct[uint16](keys, false, 16) }

// New16Plus constructs a Cuckoo+16 filter over the given distinct keys.
func New16Plus(keys []uint64) (*Filter16, error) { return construct[uint16](keys, true, 16) }

func computeNumBuckets(n uint32, plus bool) uint32 {
	const loadFactor = 0.95

	need := uint32(math.Ceil(float64(n) / (slotsPerBucket * loadFactor)))
	if need < 1 {
		need = 1
	}
	if plus {
		return need
	}
	return nextPow2(need)
}

func nextPow2(x uint32) uint32 {
	if x <= 1 {
		return 1
	}
	return uint32(1) << uint(bits.Len32(x-1))
}

func construct[T fingerprint](keys []uint64, plus bool, widthBits uint64) (*Filter[T], error) {
	if len(keys) == 0 {
		return nil, amqerr.Wrapf(amqerr.ErrInvalidArgument, "cuckoo: construct requires at least one key")
	}

	numBuckets := computeNumBuckets(uint32(len(keys)), plus)
	f := &Filter[T]{
		seed:       hash.RandomSeed(),
		buckets:    make([]bucket[T], numBuckets),
		numBuckets: numBuckets,
		plus:       plus,
		widthBits:  widthBits,
	}

	for _, key := range keys {
		if err := f.insert(key); err != nil {
			return nil, err
		}
	}
	f.n = uint32(len(keys))
	return f, nil
}

// coerce truncates h to width T, remapping a zero result to 1 so the
// empty-slot sentinel stays distinguishable.
func coerce[T fingerprint](h uint64) T {
	v := T(h)
	if v == 0 {
		v = 1
	}
	return v
}

// fpHash derives a 32-bit hash of a fingerprint, used to compute a key's
// alternate bucket from only its fingerprint (so eviction chains don't
// need the original key).
func (f *Filter[T]) fpHash(fp T) uint32 {
	return uint32(hash.Mix(uint64(fp), f.seed^0x5bd1e9955bd1e995))
}

// altIndex returns the other candidate bucket for a key currently at
// bucket i with fingerprint hash fpHash. For the plain (power-of-two)
// variants this is the classical XOR trick: since offset < numBuckets
// (a power of two) and so is i, the XOR cannot leave [0, numBuckets),
// and it is its own inverse.
//
// For the "+" variants, numBuckets is not a power of two, so XOR can't
// be trusted to stay in range. Instead altIndex uses a modular
// reflection i2 = (k - i) mod numBuckets for a per-fingerprint constant
// k = (numBuckets - 1 + offset) mod numBuckets. This is an involution
// for *any* modulus (applying it twice returns the original index
// exactly, via modular arithmetic, with no range restriction) and
// reduces to the same FPP/load-factor behavior as the XOR trick.
func (f *Filter[T]) altIndex(i uint32, fpHash32 uint32) uint32 {
	offset := hash.Reduce(fpHash32, f.numBuckets)
	if !f.plus {
		return i ^ offset
	}

	k := (f.numBuckets - 1 + offset) % f.numBuckets
	d := int64(k) - int64(i)
	d %= int64(f.numBuckets)
	if d < 0 {
		d += int64(f.numBuckets)
	}
	return uint32(d)
}

func (f *Filter[T]) candidates(key uint64) (i1, i2 uint32, fpv T) {
	h := hash.Mix(key, f.seed)
	fpv = coerce[T](h)
	i1 = hash.Reduce(uint32(h>>32), f.numBuckets)
	i2 = f.altIndex(i1, f.fpHash(fpv))
	return
}

func (f *Filter[T]) insert(key uint64) error {
	i1, i2, fpv := f.candidates(key)

	if f.buckets[i1].add(fpv) {
		return nil
	}
	if f.buckets[i2].add(fpv) {
		return nil
	}

	idx := i1
	if rand.Intn(2) == 1 {
		idx = i2
	}
	for kick := 0; kick < maxKicks; kick++ {
		slot := rand.Intn(slotsPerBucket)
		b := &f.buckets[idx]
		fpv, b[slot] = b[slot], fpv
		idx = f.altIndex(idx, f.fpHash(fpv))
		if f.buckets[idx].add(fpv) {
			return nil
		}
	}
	return amqerr.Wrapf(amqerr.ErrCapacityExhausted, "cuckoo: no vacancy found after %d kicks", maxKicks)
}

// MayContain reports whether key may have been inserted.
func (f *Filter[T]) MayContain(key uint64) bool {
	i1, i2, fpv := f.candidates(key)
	return f.buckets[i1].contains(fpv) || f.buckets[i2].contains(fpv)
}

// Add inserts key into f, evicting existing fingerprints along a bounded
// random walk if both of its candidate buckets are full. It fails with
// ErrCapacityExhausted if no vacancy is found; the caller should treat
// this as a signal to rebuild at a larger size.
func (f *Filter[T]) Add(key uint64) error {
	if err := f.insert(key); err != nil {
		return err
	}
	f.n++
	return nil
}

// Remove deletes key from f. Removing a key that was never inserted is
// semantically undefined; this implementation reports
// ErrInvalidArgument rather than silently doing nothing.
func (f *Filter[T]) Remove(key uint64) error {
	i1, i2, fpv := f.candidates(key)
	if f.buckets[i1].remove(fpv) || f.buckets[i2].remove(fpv) {
		f.n--
		return nil
	}
	return amqerr.Wrapf(amqerr.ErrInvalidArgument, "cuckoo: key was not present")
}

// BitCount returns the number of storage bits occupied by f.
func (f *Filter[T]) BitCount() uint64 {
	return uint64(f.numBuckets) * slotsPerBucket * f.widthBits
}

// Cardinality returns the number of keys currently held by f.
func (f *Filter[T]) Cardinality() uint64 { return uint64(f.n) }

// SupportsAdd always returns true: Cuckoo filters support post-construction insertion.
func (f *Filter[T]) SupportsAdd() bool { return true }

// SupportsRemove always returns true: Cuckoo filters support removal.
func (f *Filter[T]) SupportsRemove() bool { return true }
