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

import "fmt"

// countingFilter is the minimal surface verify needs from either flat
// or blocked filter: its address-space size and a way to read back the
// encoded counter at a given global slot.
type countingFilter interface {
	NumBits() uint64
	readCountAt(pos uint32) uint32
}

// verifier mirrors every counter in a parallel plain array so each
// mutation can be checked against ground truth. It is only compiled in
// when the countingbloom_debug build tag is set; production builds link
// verify_off.go instead, whose methods are no-ops.
type verifier struct {
	real []uint32
}

func newVerifier(f countingFilter) *verifier {
	return &verifier{real: make([]uint32, f.NumBits())}
}

func (v *verifier) increment(pos uint32) { v.real[pos]++ }

func (v *verifier) decrement(pos uint32) {
	if v.real[pos] > 0 {
		v.real[pos]--
	}
}

// verify panics if the encoded counter at any touched slot disagrees
// with the parallel real count. It is meant to run under `go test -tags
// countingbloom_debug`, not in production.
func (v *verifier) verify(f countingFilter) {
	for pos, want := range v.real {
		if got := f.readCountAt(uint32(pos)); got != want {
			panic(fmt.Sprintf("countingbloom: slot %d encodes count %d, want %d", pos, got, want))
		}
	}
}
