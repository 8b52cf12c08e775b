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

package hash

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMixDeterministic(t *testing.T) {
	t.Parallel()

	const key, seed = 0xdeadbeef, 0xc0ffee
	assert.Equal(t, Mix(key, seed), Mix(key, seed))
}

func TestMixAvalanche(t *testing.T) {
	t.Parallel()

	// Flipping a single input bit should flip roughly half the output
	// bits, on average, over many keys.
	r := rand.New(rand.NewSource(1))
	var total int
	const trials = 1000
	for i := 0; i < trials; i++ {
		key := r.Uint64()
		seed := r.Uint64()
		h1 := Mix(key, seed)
		h2 := Mix(key^1, seed)
		total += popcount(h1 ^ h2)
	}
	avg := float64(total) / trials
	assert.InDelta(t, 32, avg, 6)
}

func TestMixZeroKeyNotFixed(t *testing.T) {
	t.Parallel()

	assert.NotEqual(t, uint64(0), Mix(0, 0))
}

func TestReduceRange(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewSource(2))
	for i := 0; i < 10000; i++ {
		n := uint32(1 + r.Intn(1<<20))
		x := r.Uint32()
		got := Reduce(x, n)
		assert.Less(t, got, n)
	}
}

func TestReduceZero(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint32(0), Reduce(0, 100))
}

func TestSeedSourceDistinct(t *testing.T) {
	t.Parallel()

	s := NewSeedSource()
	seen := make(map[uint64]bool)
	for i := 0; i < 1000; i++ {
		seed := s.Next()
		assert.False(t, seen[seed], "seed repeated at iteration %d", i)
		seen[seed] = true
	}
}

func TestRandomSeedFresh(t *testing.T) {
	t.Parallel()

	a := RandomSeed()
	b := RandomSeed()
	assert.NotEqual(t, a, b)
}

func popcount(x uint64) int {
	n := 0
	for x != 0 {
		x &= x - 1
		n++
	}
	return n
}
