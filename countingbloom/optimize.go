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

import "math"

// A Config holds parameters for Optimize or NewOptimized, mirroring
// blobloom.Config.
type Config struct {
	// Desired false positive rate once NKeys distinct keys have been added.
	FPRate float64

	// Expected number of distinct keys.
	NKeys int

	_ struct{}
}

// NewOptimized is shorthand for New(Optimize(cfg)).
func NewOptimized(cfg Config) *SuccinctCountingBloom {
	nbits, k := Optimize(cfg)
	return New(nbits, k)
}

// Optimize returns a number of data bits and hash functions that
// achieve cfg's desired false positive rate.
//
// This is the classic (unpartitioned) Bloom filter optimum: m =
// ceil(n * -ln(p) / ln(2)^2), k = round(m/n * ln 2). It is the same
// starting formula blobloom.Optimize computes before applying its
// blocked-filter correction table; SuccinctCountingBloom has no block
// partitioning (SuccinctCountingBlockedBloom does, but its FPR is
// dominated by the per-block k and capacity a caller chooses directly
// via NewBlocked, not by this helper), so the correction table does
// not apply here.
func Optimize(cfg Config) (nbits uint32, k int) {
	n := float64(cfg.NKeys)
	p := cfg.FPRate
	if p <= 0 || p > 1 {
		panic("false positive rate for a counting Bloom filter must be > 0, <= 1")
	}
	if n == 0 {
		n = 1
	}

	m := math.Ceil(n * -math.Log(p) / (math.Ln2 * math.Ln2))
	nbits = uint32(m)

	k = int(math.Round(m / n * math.Ln2))
	if k < 1 {
		k = 1
	}
	return nbits, k
}

// FPRate estimates the false positive rate of a SuccinctCountingBloom
// with nbits data bits and k hash functions after nkeys insertions.
func FPRate(nkeys int, nbits uint32, k int) float64 {
	n, m, kk := float64(nkeys), float64(nbits), float64(k)
	return math.Pow(1-math.Exp(-kk*n/m), kk)
}

// FPRate estimates f's false positive rate after nkeys insertions.
func (f *SuccinctCountingBloom) FPRate(nkeys int) float64 {
	return FPRate(nkeys, f.m, f.k)
}
