// Copyright 2020 the Blobloom authors
//
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

package blobloom

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomHashes(r *rand.Rand, n int) []uint64 {
	hs := make([]uint64, n)
	for i := range hs {
		hs[i] = r.Uint64()
	}
	return hs
}

func TestLifecycle(t *testing.T) {
	t.Parallel()

	hashes := randomHashes(rand.New(rand.NewSource(0x758e326)), 10000)

	for _, size := range []struct {
		nbits   uint64
		nhashes int
	}{
		{1, 2},
		{100, 3},
		{1024, 4},
		{10000, 7},
		{1000000, 14},
	} {
		f := New(size.nbits, size.nhashes)

		// Sizes are rounded up to whole blocks, never down.
		assert.GreaterOrEqual(t, f.NumBits(), size.nbits)
		assert.LessOrEqual(t, f.NumBits(), size.nbits+BlockBits)

		assert.True(t, f.Empty())
		for _, h := range hashes {
			assert.False(t, f.Has(h))
		}

		for _, h := range hashes {
			f.Add(h)
		}
		assert.False(t, f.Empty())
		for _, h := range hashes {
			assert.True(t, f.Has(h))
		}

		f.Clear()
		assert.True(t, f.Empty())
		for _, h := range hashes {
			assert.False(t, f.Has(h))
		}

		f.Fill()
		assert.False(t, f.Empty())
		for _, h := range hashes {
			assert.True(t, f.Has(h))
		}
	}
}

func TestFalsePositiveRateEmpirical(t *testing.T) {
	t.Parallel()

	const nkeys = 100000

	// For FPRate = .01 and 100000 keys, a standard Bloom filter already
	// needs 958506 bits; the blocked layout can only need more.
	f := NewOptimized(Config{Capacity: nkeys, FPRate: .01})
	require.GreaterOrEqual(t, f.NumBits(), uint64(958506))

	r := rand.New(rand.NewSource(0xb1007))
	member := randomHashes(r, nkeys)
	for _, h := range member {
		f.Add(h)
	}
	for _, h := range member {
		require.True(t, f.Has(h))
	}

	// Fresh hashes stand in for keys that were never added.
	const trials = 10000
	fp := 0
	for i := 0; i < trials; i++ {
		if f.Has(r.Uint64()) {
			fp++
		}
	}
	rate := float64(fp) / trials
	assert.Less(t, rate, .02)
	t.Logf("measured FPR = %.5f", rate)
}

// Callers sometimes only have a 32-bit hash, leaving the upper half of
// the key zero. The derived probe sequence must still spread well.
func TestNarrowHashes(t *testing.T) {
	t.Parallel()

	const nkeys = 400
	f := NewOptimized(Config{Capacity: nkeys, FPRate: .01})

	r := rand.New(rand.NewSource(32))
	for i := 0; i < nkeys; i++ {
		f.Add(uint64(r.Uint32()))
	}

	const trials = 7 * nkeys
	fp := 0
	for i := 0; i < trials; i++ {
		if f.Has(uint64(r.Uint32())) {
			fp++
		}
	}
	rate := float64(fp) / trials
	t.Logf("measured FPR = %.2f%%", 100*rate)
	assert.LessOrEqual(t, rate, .1)
}

func TestDoublehashAdvances(t *testing.T) {
	t.Parallel()

	h1, h2 := uint32(17), uint32(29)
	seen := make(map[uint32]bool)
	for i := 0; i < 20; i++ {
		h1, h2 = doublehash(h1, h2, i)
		seen[h1] = true
	}
	// The recurrence must not get stuck on a small cycle of probes.
	assert.Greater(t, len(seen), 15)
}

func TestReducerangeBounds(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewSource(0x1e817e))
	for i := 0; i < 40000; i++ {
		n := r.Uint32()
		j := reducerange(r.Uint32(), n)
		if n == 0 {
			assert.Equal(t, uint32(0), j)
		} else {
			assert.Less(t, j, n)
		}
	}
}

func TestCardinalityTracksAdds(t *testing.T) {
	t.Parallel()

	const capacity = 1e4
	f := NewOptimized(Config{Capacity: capacity, FPRate: .0015})
	assert.EqualValues(t, 0, f.Cardinality())

	r := rand.New(rand.NewSource(0x81feae2b))

	// The estimate should stay within a few percent of the true count
	// all the way to 5x the configured capacity, and much closer on
	// average.
	var sumTrue, sumEst float64
	for n := 1.0; n <= 5*capacity; n++ {
		f.Add(r.Uint64())

		est := f.Cardinality()
		assert.InDelta(t, 1, est/n, 0.09)

		sumTrue += n
		sumEst += est
		if int(n)%capacity == 0 {
			assert.InDelta(t, 1, sumEst/sumTrue, 0.008)
		}
	}
}

func TestCardinalitySaturatedBlock(t *testing.T) {
	t.Parallel()

	// A completely filled block has no information left; the estimate
	// diverges by design, and Describe reports the key count as unknown.
	f := New(BlockBits, 2)
	f.Fill()

	assert.Equal(t, math.Inf(+1), f.Cardinality())
	assert.Zero(t, f.Describe().Keys)
}

func TestIntersect(t *testing.T) {
	t.Parallel()

	const n uint64 = 1e4
	hashes := randomHashes(rand.New(rand.NewSource(0x5544332211)), int(n))

	f := NewOptimized(Config{Capacity: n, FPRate: 1e-3})
	g := NewOptimized(Config{Capacity: n, FPRate: 1e-3})
	both := NewOptimized(Config{Capacity: n, FPRate: 1e-3})

	for _, h := range hashes[:n/3] {
		f.Add(h)
	}
	for _, h := range hashes[n/3 : 2*n/3] {
		f.Add(h)
		g.Add(h)
		both.Add(h)
	}
	for _, h := range hashes[n/3:] {
		g.Add(h)
	}

	expectFPR := math.Min(f.FPRate(n), g.FPRate(n))

	f.Intersect(g)

	// The shared middle third must survive the intersection.
	for _, h := range hashes[n/3 : 2*n/3] {
		assert.True(t, f.Has(h))
	}

	// Extra positives relative to a filter that only ever saw the
	// intersection stay within the FPR the operands were built for.
	var extra uint64
	for _, h := range hashes {
		if f.Has(h) && !both.Has(h) {
			extra++
		}
	}
	actualFPR := float64(extra) / float64(n)
	assert.Less(t, actualFPR, 2*expectFPR)
	t.Logf("FPR after intersect = %f", actualFPR)

	assert.Panics(t, func() { f.Intersect(New(f.NumBits(), 9)) })
	assert.Panics(t, func() { f.Union(New(n+BlockBits, f.K())) })
}

func TestUnion(t *testing.T) {
	t.Parallel()

	const n = 1e5
	hashes := randomHashes(rand.New(rand.NewSource(0xa6e98fb)), n)

	f := New(n, 5)
	g := New(n, 5)
	want := New(n, 5)

	for _, h := range hashes[:n/2] {
		f.Add(h)
		want.Add(h)
	}
	for _, h := range hashes[n/2:] {
		g.Add(h)
		want.Add(h)
	}

	require.False(t, f.Equals(g))

	f.Union(g)
	assert.True(t, want.Equals(f))
	assert.False(t, want.Equals(g))

	g.Union(f)
	assert.True(t, want.Equals(g))

	assert.Panics(t, func() { f.Union(New(n, 4)) })
	assert.Panics(t, func() { f.Union(New(n+BlockBits, 5)) })
}

func TestUnionSingleBlock(t *testing.T) {
	t.Parallel()

	f := New(BlockBits, 2)
	g := New(BlockBits, 2)

	g.Add(42)

	f.Union(g)
	assert.True(t, f.Has(42))
}

// The binary dump, the JSON form and any future serialization all lean
// on a block being sixteen little-endian uint32 words. Pin that layout
// with a digest so a refactor of the block type cannot silently change
// the wire image.
func TestBlockWireLayout(t *testing.T) {
	t.Parallel()

	var b block
	b.setbit(0)
	b.setbit(1)
	b.setbit(111)
	b.setbit(499)

	assert.Equal(t, BlockBits, 8*binary.Size(b))

	h := sha256.New()
	binary.Write(h, binary.LittleEndian, b)
	expect := "aa7f8c411600fa387f0c10641eab428a7ed2f27a86171ac69f0e2087b2aa9140"
	assert.Equal(t, expect, hex.EncodeToString(h.Sum(nil)))
}

func TestLocationsMatchHas(t *testing.T) {
	t.Parallel()

	f := NewOptimized(Config{Capacity: 100000, FPRate: .01})

	r := rand.New(rand.NewSource(0xb1007))
	hashes := randomHashes(r, 100000)
	for _, h := range hashes {
		f.Add(h)
	}

	// Members and non-members alike: a precomputed probe sequence must
	// answer exactly as a direct lookup does.
	for _, h := range hashes[:1000] {
		assert.True(t, f.TestLocations(Locations(h, f.K())))
	}
	for i := 0; i < 10000; i++ {
		h := r.Uint64()
		assert.Equal(t, f.Has(h), f.TestLocations(Locations(h, f.K())))
	}
}

func TestJSONRoundTrip(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewSource(0x15ca1e))
	hashes := randomHashes(r, 5000)

	f := NewOptimized(Config{Capacity: 5000, FPRate: .01})
	for _, h := range hashes {
		f.Add(h)
	}

	data, err := f.MarshalJSON()
	require.NoError(t, err)

	g := &Filter{}
	require.NoError(t, g.UnmarshalJSON(data))

	assert.True(t, f.Equals(g))
	for _, h := range hashes {
		assert.True(t, g.Has(h))
	}
}

func TestUnmarshalJSONRejectsGarbage(t *testing.T) {
	t.Parallel()

	var f Filter
	assert.Error(t, f.UnmarshalJSON([]byte(`{"nblocks":2,"nhashes":4,"bits":"AAAA"}`)))
	assert.Error(t, f.UnmarshalJSON([]byte(`{"nblocks":0,"nhashes":4,"bits":""}`)))
	assert.Error(t, f.UnmarshalJSON([]byte(`not json`)))
}

// The uniform surface every filter family in this module exposes.
func TestFilterContract(t *testing.T) {
	t.Parallel()

	f := New(10000, 5)
	for _, h := range randomHashes(rand.New(rand.NewSource(500)), 500) {
		f.Add(h)
	}

	assert.Equal(t, f.Has(123), f.MayContain(123))
	assert.Equal(t, f.NumBits(), f.BitCount())
	assert.True(t, f.SupportsAdd())
	assert.False(t, f.SupportsRemove())

	stats := f.Describe()
	assert.Equal(t, "blockedbloom", stats.Variant)
	assert.Equal(t, f.NumBits(), stats.Bits)
	// The key count is an estimate; it just has to be in the right
	// ballpark for 500 distinct keys.
	assert.InDelta(t, 500, float64(stats.Keys), 100)
}
