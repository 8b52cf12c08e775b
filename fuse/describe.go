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

package fuse

import "github.com/greatroar/amqfilter"

// Describe returns size statistics for f. For a deserialized filter the
// key count is zero: the wire format does not carry it.
func (f *Filter8) Describe() amqfilter.Stats {
	return amqfilter.Stats{Variant: "fuse8", Keys: f.Cardinality(), Bits: f.BitCount()}
}
