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
	"math"

	"github.com/greatroar/amqfilter"
)

// MayContain is Has under the uniform filter interface name.
func (f *Filter) MayContain(h uint64) bool { return f.Has(h) }

// BitCount returns the number of storage bits occupied by f.
func (f *Filter) BitCount() uint64 { return f.NumBits() }

// SupportsAdd always returns true: keys can be added after construction.
func (f *Filter) SupportsAdd() bool { return true }

// SupportsRemove always returns false: a plain Bloom filter cannot
// remove keys. Use countingbloom for removal.
func (f *Filter) SupportsRemove() bool { return false }

// Describe returns size statistics for f. The key count is the
// Cardinality estimate, rounded; zero if the estimate diverges.
func (f *Filter) Describe() amqfilter.Stats {
	var keys uint64
	if est := f.Cardinality(); !math.IsInf(est, 0) {
		keys = uint64(math.Round(est))
	}
	return amqfilter.Stats{Variant: "blockedbloom", Keys: keys, Bits: f.NumBits()}
}
