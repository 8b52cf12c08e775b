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
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func distinctHashes(r *rand.Rand, n int) []uint64 {
	seen := make(map[uint64]bool, n)
	out := make([]uint64, 0, n)
	for len(out) < n {
		h := r.Uint64()
		if !seen[h] {
			seen[h] = true
			out = append(out, h)
		}
	}
	return out
}

func TestFlatNoFalseNegatives(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewSource(1))
	keys := distinctHashes(r, 5000)
	f := NewOptimized(Config{FPRate: 0.01, NKeys: len(keys)})
	for _, k := range keys {
		f.Add(k)
	}
	for _, k := range keys {
		assert.True(t, f.Has(k))
		assert.True(t, f.MayContain(k))
	}
	assert.EqualValues(t, len(keys), f.Cardinality())
}

// Add a key ten times, observe a probe slot reach 10, remove it ten
// times, observe the counters return to their pre-add values.
func TestCountingIdempotence(t *testing.T) {
	t.Parallel()

	f := New(4096, 5)
	const key = uint64(0xC0FFEE)

	before := f.ProbeCounts(key)
	for i := 0; i < 10; i++ {
		f.Add(key)
	}
	after := f.ProbeCounts(key)

	maxCount := uint32(0)
	for _, c := range after {
		if c > maxCount {
			maxCount = c
		}
	}
	assert.GreaterOrEqual(t, maxCount, uint32(10))

	for i := 0; i < 10; i++ {
		f.Remove(key)
	}
	restored := f.ProbeCounts(key)
	assert.Equal(t, before, restored)
}

func TestFlatRemoveClearsUnsharedBits(t *testing.T) {
	t.Parallel()

	f := New(4096, 4)
	const key = uint64(123456789)

	f.Add(key)
	assert.True(t, f.Has(key))
	f.Remove(key)
	assert.False(t, f.Has(key))
}

func TestFlatBitCountIncludesOverflowArena(t *testing.T) {
	t.Parallel()

	f := New(64, 3)
	base := f.BitCount()

	const key = uint64(0x9E3779B97F4A7C15)
	for i := 0; i < 100; i++ {
		f.Add(key)
	}
	assert.Greater(t, f.BitCount(), base)
}

func TestTotalCountMatchesAdds(t *testing.T) {
	t.Parallel()

	f := New(8192, 4)
	r := rand.New(rand.NewSource(2))
	keys := distinctHashes(r, 200)
	for _, k := range keys {
		f.Add(k)
	}
	// No word gets anywhere near overflow here, so TotalCount is the
	// number of distinct slots the keys' probes set.
	slots := make(map[uint32]bool)
	for _, k := range keys {
		for _, p := range f.positions(k) {
			slots[p] = true
		}
	}
	assert.EqualValues(t, len(slots), f.TotalCount())
}

func TestOptimizeProducesUsableFilter(t *testing.T) {
	t.Parallel()

	nbits, k := Optimize(Config{FPRate: 0.01, NKeys: 10000})
	require.Greater(t, int(nbits), 0)
	require.Greater(t, k, 0)

	f := New(nbits, k)
	assert.GreaterOrEqual(t, f.NumBits(), uint64(nbits))
}
