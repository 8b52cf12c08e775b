// Copyright 2023 the Blobloom authors
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
	"encoding/binary"
	"encoding/json"
	"errors"
)

// filterJSON is the JSON representation of a Filter. The bits are the
// little-endian block serialization (the same as Dump's body), which
// encoding/json renders as base64.
type filterJSON struct {
	NBlocks uint32 `json:"nblocks"`
	NHashes int    `json:"nhashes"`
	Bits    []byte `json:"bits"`
}

// MarshalJSON implements json.Marshaler.
func (f *Filter) MarshalJSON() ([]byte, error) {
	bits := make([]byte, len(f.b)*BlockBits/8)
	for i := range f.b {
		for j, word := range f.b[i] {
			binary.LittleEndian.PutUint32(bits[64*i+4*j:], word)
		}
	}
	return json.Marshal(filterJSON{
		NBlocks: uint32(len(f.b)),
		NHashes: f.k,
		Bits:    bits,
	})
}

// UnmarshalJSON implements json.Unmarshaler, replacing f's contents.
func (f *Filter) UnmarshalJSON(data []byte) error {
	var fj filterJSON
	if err := json.Unmarshal(data, &fj); err != nil {
		return err
	}
	if fj.NBlocks == 0 || fj.NHashes < 2 {
		return errors.New("blobloom: JSON filter has no blocks or too few hashes")
	}
	if len(fj.Bits) != int(fj.NBlocks)*BlockBits/8 {
		return errors.New("blobloom: JSON filter bits do not match block count")
	}

	f.b = make([]block, fj.NBlocks)
	f.k = fj.NHashes
	for i := range f.b {
		for j := range f.b[i] {
			f.b[i][j] = binary.LittleEndian.Uint32(fj.Bits[64*i+4*j:])
		}
	}
	return nil
}
