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

// Set operations over equally-sized block slices, with the per-block loop
// unrolled. The compiler keeps a block's sixteen words in registers, so
// these run close to memory bandwidth without resorting to assembly.

func intersect(a, b []block) {
	for i := range a {
		p, q := &a[i], &b[i]
		p[0] &= q[0]
		p[1] &= q[1]
		p[2] &= q[2]
		p[3] &= q[3]
		p[4] &= q[4]
		p[5] &= q[5]
		p[6] &= q[6]
		p[7] &= q[7]
		p[8] &= q[8]
		p[9] &= q[9]
		p[10] &= q[10]
		p[11] &= q[11]
		p[12] &= q[12]
		p[13] &= q[13]
		p[14] &= q[14]
		p[15] &= q[15]
	}
}

func union(a, b []block) {
	for i := range a {
		p, q := &a[i], &b[i]
		p[0] |= q[0]
		p[1] |= q[1]
		p[2] |= q[2]
		p[3] |= q[3]
		p[4] |= q[4]
		p[5] |= q[5]
		p[6] |= q[6]
		p[7] |= q[7]
		p[8] |= q[8]
		p[9] |= q[9]
		p[10] |= q[10]
		p[11] |= q[11]
		p[12] |= q[12]
		p[13] |= q[13]
		p[14] |= q[14]
		p[15] |= q[15]
	}
}
