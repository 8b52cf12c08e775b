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

//go:build !countingbloom_debug

package countingbloom

// countingFilter is the minimal surface verify needs from either flat
// or blocked filter: its address-space size and a way to read back the
// encoded counter at a given global slot.
type countingFilter interface {
	NumBits() uint64
	readCountAt(pos uint32) uint32
}

// verifier is compiled out entirely in production builds; newVerifier
// always returns nil here, so the per-mutation verify hook costs
// nothing outside countingbloom_debug builds.
type verifier struct{}

func newVerifier(countingFilter) *verifier { return nil }

func (v *verifier) increment(uint32) {}

func (v *verifier) decrement(uint32) {}

func (v *verifier) verify(countingFilter) {}
