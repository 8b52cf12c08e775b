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
)

// realCounters mirrors a single block's 64 slots as plain integers, for
// comparison against the succinct encoding.
type realCounters [64]uint32

func TestIncrementDecrementSingleSlot(t *testing.T) {
	t.Parallel()

	var data, counts uint64
	var a arena

	for i := 0; i < 10; i++ {
		data, counts = increment(data, counts, &a, 5)
	}
	assert.EqualValues(t, 10, readCount(data, counts, &a, 5))

	for i := 0; i < 10; i++ {
		data, counts = decrement(data, counts, &a, 5)
	}
	assert.EqualValues(t, 0, readCount(data, counts, &a, 5))
	assert.Equal(t, uint64(0), data)
}

func TestIncrementManySlotsStayInline(t *testing.T) {
	t.Parallel()

	var data, counts uint64
	var a arena
	var want realCounters

	r := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		slot := r.Intn(64)
		// Keep well clear of the inline capacity so this case never
		// promotes; TestPromoteToOverflow below exercises that path.
		if want[slot] >= 1 {
			continue
		}
		data, counts = increment(data, counts, &a, slot)
		want[slot]++
	}

	assert.False(t, isOverflow(counts))
	for slot, c := range want {
		assert.EqualValues(t, c, readCount(data, counts, &a, slot), "slot %d", slot)
	}
}

func TestPromoteToOverflow(t *testing.T) {
	t.Parallel()

	var data, counts uint64
	var a arena

	// Push a single slot's count past inlineCapacity to force promotion.
	for i := 0; i < 70; i++ {
		data, counts = increment(data, counts, &a, 3)
	}
	assert.True(t, isOverflow(counts))
	assert.EqualValues(t, 70, readCount(data, counts, &a, 3))
}

func TestOverflowRoundTrip(t *testing.T) {
	t.Parallel()

	var data, counts uint64
	var a arena

	// Populate several slots heavily enough to force overflow, then
	// verify every slot's count via the encoding before decrementing
	// everything back to zero.
	counts65 := map[int]int{2: 40, 9: 30, 40: 5}
	for slot, n := range counts65 {
		for i := 0; i < n; i++ {
			data, counts = increment(data, counts, &a, slot)
		}
	}
	require := assert.New(t)
	require.True(isOverflow(counts))
	for slot, n := range counts65 {
		require.EqualValues(n, readCount(data, counts, &a, slot))
	}

	for slot, n := range counts65 {
		for i := 0; i < n; i++ {
			data, counts = decrement(data, counts, &a, slot)
		}
	}

	require.False(isOverflow(counts), "block should have demoted back to inline")
	require.Equal(uint64(0), data)
	for slot := range counts65 {
		require.EqualValues(0, readCount(data, counts, &a, slot))
	}
}

func TestDecrementAbsentSlotIsNoop(t *testing.T) {
	t.Parallel()

	var data, counts uint64
	var a arena
	data2, counts2 := decrement(data, counts, &a, 10)
	assert.Equal(t, data, data2)
	assert.Equal(t, counts, counts2)
}

func TestRunIndexAndSelect(t *testing.T) {
	t.Parallel()

	var data, counts uint64
	var a arena

	data, counts = increment(data, counts, &a, 0)
	data, counts = increment(data, counts, &a, 1)
	data, counts = increment(data, counts, &a, 1)
	data, counts = increment(data, counts, &a, 40)

	assert.EqualValues(t, 1, readCount(data, counts, &a, 0))
	assert.EqualValues(t, 2, readCount(data, counts, &a, 1))
	assert.EqualValues(t, 1, readCount(data, counts, &a, 40))
	assert.EqualValues(t, 0, readCount(data, counts, &a, 20))
}
