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

package xor

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/greatroar/amqfilter/amqerr"
)

// Serialize writes f to w in the canonical XOR-8 wire format:
// big-endian n (uint32) | seed (uint64) | fingerprints ([m]byte),
// with m = 3*floor(ceil(1.23*n + 32)/3), as computed by tableLength.
func (f *Filter8) Serialize(w io.Writer) error {
	var header [12]byte
	binary.BigEndian.PutUint32(header[0:4], f.n)
	binary.BigEndian.PutUint64(header[4:12], f.seed)

	if _, err := w.Write(header[:]); err != nil {
		return errors.Wrap(err, "xor: writing header")
	}
	if _, err := w.Write(f.fingerprints); err != nil {
		return errors.Wrap(err, "xor: writing fingerprints")
	}
	return nil
}

// Deserialize8 reads a Filter8 previously written by Serialize.
func Deserialize8(r io.Reader) (*Filter8, error) {
	var header [12]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, amqerr.Wrapf(amqerr.ErrMalformedInput, "xor: short header: %v", err)
	}

	n := binary.BigEndian.Uint32(header[0:4])
	seed := binary.BigEndian.Uint64(header[4:12])

	_, blockLength := tableLength(n)
	m := 3 * blockLength

	fp := make([]uint8, m)
	if _, err := io.ReadFull(r, fp); err != nil {
		return nil, amqerr.Wrapf(amqerr.ErrMalformedInput, "xor: short fingerprints: %v", err)
	}

	return &Filter8{
		seed:         seed,
		blockLength:  blockLength,
		n:            n,
		fingerprints: fp,
	}, nil
}
