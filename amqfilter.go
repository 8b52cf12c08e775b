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

// Package amqfilter is an umbrella for a family of approximate membership
// query (AMQ) filters: probabilistic set structures that never return a
// false negative and trade a tunable, small false-positive probability
// for space far below what storing the set exactly would take.
//
// There is no shared Go type across variants; each sub-package is a
// self-contained filter family built on the two shared services in
// hash and bitset:
//
//   - xor: XOR-8, XOR-16 and XOR+8, built by peeling a 3-uniform
//     hypergraph of keys.
//   - fuse: Binary Fuse-8, a segmented variant of the same peeling
//     construction with better cache locality and smaller fingerprint
//     tables.
//   - cuckoo: Cuckoo-8, Cuckoo-16, Cuckoo+8 and Cuckoo+16, 4-slot
//     bucket arrays with random-walk eviction; they support Add and
//     Remove after construction.
//   - blobloom: a blocked Bloom filter, one cache line per key.
//   - countingbloom: a succinct counting Bloom filter (flat and
//     blocked), supporting Add/Remove at roughly the space of a
//     non-counting Bloom filter via an inline/overflow counter
//     encoding.
//
// Pick xor or fuse for the smallest static filters, cuckoo when the set
// changes after construction, and blobloom/countingbloom when cache
// locality matters more than absolute space. See amqerr for the error
// kinds constructors and mutators can return.
package amqfilter

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// Stats summarizes a constructed filter for logs and capacity reports.
// Every filter family returns one from its Describe method.
type Stats struct {
	// Variant names the filter family and width, e.g. "xor8" or
	// "cuckoo16+".
	Variant string

	// Keys is the number of keys the filter holds. For a blocked Bloom
	// filter it is the rounded cardinality estimate; it is zero for a
	// deserialized fuse filter, which does not store it.
	Keys uint64

	// Bits is the total storage footprint in bits, including auxiliary
	// structures such as rank caches and overflow arenas.
	Bits uint64
}

// BitsPerKey returns the measured space cost per key, or 0 when the key
// count is unknown.
func (s Stats) BitsPerKey() float64 {
	if s.Keys == 0 {
		return 0
	}
	return float64(s.Bits) / float64(s.Keys)
}

func (s Stats) String() string {
	if s.Keys == 0 {
		return fmt.Sprintf("%s: %s", s.Variant, humanize.IBytes(s.Bits/8))
	}
	return fmt.Sprintf("%s: %s keys in %s (%.2f bits/key)",
		s.Variant, humanize.Comma(int64(s.Keys)), humanize.IBytes(s.Bits/8), s.BitsPerKey())
}
