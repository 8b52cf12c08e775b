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

// Package hash carries the two primitives every filter family in this
// module builds on: a key-mixing function and a fast range reducer. The
// xor, fuse, cuckoo and countingbloom packages import this one and never
// each other; blobloom keeps its own copy of the range reducer.
package hash

import (
	"crypto/rand"
	"encoding/binary"
	"sync/atomic"
)

// Mix finalizes (key, seed) into a well-distributed 64-bit value. It is
// the splitmix/murmur64 finalizer cascade used throughout the XOR and
// binary fuse filter literature: deterministic, avalanching, and free of
// fixed points for the zero key.
func Mix(key, seed uint64) uint64 {
	h := key + seed + 0x9E3779B97F4A7C15
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	h *= 0xc4ceb9fe1a85ec53
	h ^= h >> 33
	return h
}

// SplitMix64 advances a 64-bit state value, in the style of the
// splitmix64 generator. It is used to derive a fresh construction seed
// on each peeling retry from the previous one, without needing a fresh
// read of process entropy per attempt.
func SplitMix64(x uint64) uint64 {
	z := x + 0x9E3779B97F4A7C15
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

// Reduce maps x to a value in [0, n) without the bias or division cost of
// a modulo reduction. See Lemire,
// https://lemire.me/blog/2016/06/27/a-fast-alternative-to-the-modulo-reduction/.
func Reduce(x, n uint32) uint32 {
	return uint32((uint64(x) * uint64(n)) >> 32)
}

// A SeedSource is a process-wide source of fresh 64-bit construction
// seeds. The zero value is not usable; use NewSeedSource.
//
// SeedSource is safe to use concurrently: Next is implemented with a
// single atomic add, so filters constructed concurrently from the same
// source never collide on a seed.
type SeedSource struct {
	counter uint64
}

// NewSeedSource creates a SeedSource whose initial state is read from the
// system entropy source, so that SeedSources created in quick succession
// (e.g. by concurrent tests) do not produce identical seed sequences.
func NewSeedSource() *SeedSource {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand is documented to never fail on any platform Go
		// supports; fall back to a fixed, merely-deterministic seed
		// rather than panicking.
		return &SeedSource{counter: 0x9E3779B97F4A7C15}
	}
	return &SeedSource{counter: binary.LittleEndian.Uint64(buf[:])}
}

// Next returns a fresh 64-bit seed.
func (s *SeedSource) Next() uint64 {
	c := atomic.AddUint64(&s.counter, 0x9E3779B97F4A7C15)
	return SplitMix64(c)
}

var global = NewSeedSource()

// RandomSeed yields a fresh 64-bit seed from the process-wide entropy
// source. Construction retries must call this (or advance via SplitMix64)
// on every attempt so that failed attempts don't all retry with the same
// doomed seed.
func RandomSeed() uint64 {
	return global.Next()
}
