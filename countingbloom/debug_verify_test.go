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

//go:build countingbloom_debug

package countingbloom

import (
	"math/rand"
	"testing"
)

// Run with `go test -tags countingbloom_debug ./countingbloom/...` to
// exercise the parallel-byte-array verification. Every
// Add/Remove below panics internally if the encoded count ever
// disagrees with the real counter it mirrors, so a clean pass is the
// assertion.
func TestDebugVerifyAgainstRandomTraffic(t *testing.T) {
	t.Parallel()

	f := New(2048, 4)
	r := rand.New(rand.NewSource(5))
	keys := distinctHashes(r, 500)

	live := map[uint64]int{}
	for i := 0; i < 20000; i++ {
		k := keys[r.Intn(len(keys))]
		if live[k] > 0 && r.Intn(3) == 0 {
			f.Remove(k)
			live[k]--
		} else {
			f.Add(k)
			live[k]++
		}
	}
}

func TestDebugVerifyBlocked(t *testing.T) {
	t.Parallel()

	f := NewBlocked(32, 5)
	r := rand.New(rand.NewSource(6))

	live := map[uint64]int{}
	for i := 0; i < 20000; i++ {
		k := uint64(r.Intn(300))
		if live[k] > 0 && r.Intn(3) == 0 {
			f.Remove(k)
			live[k]--
		} else {
			f.Add(k)
			live[k]++
		}
	}
}
