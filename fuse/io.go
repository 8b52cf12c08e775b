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

import (
	"encoding/binary"
	"io"
	"math/bits"

	"github.com/pkg/errors"

	"github.com/greatroar/amqfilter/amqerr"
)

// Serialize writes f to w in the canonical Binary Fuse-8 wire format:
// a big-endian, DataOutput-style byte stream of
//
//	segment_length       uint32
//	segment_count_length uint32
//	seed                 uint64
//	fingerprints_len     uint32
//	fingerprints         [fingerprints_len]byte
func (f *Filter8) Serialize(w io.Writer) error {
	var header [20]byte
	binary.BigEndian.PutUint32(header[0:4], f.segmentLength)
	binary.BigEndian.PutUint32(header[4:8], f.segmentCountLength)
	binary.BigEndian.PutUint64(header[8:16], f.seed)
	binary.BigEndian.PutUint32(header[16:20], uint32(len(f.fingerprints)))

	if _, err := w.Write(header[:]); err != nil {
		return errors.Wrap(err, "fuse: writing header")
	}
	if _, err := w.Write(f.fingerprints); err != nil {
		return errors.Wrap(err, "fuse: writing fingerprints")
	}
	return nil
}

// headerSize is the byte length of the fixed-size portion of the wire
// format: two uint32s, one uint64, one uint32.
const headerSize = 4 + 4 + 8 + 4

// Deserialize reads a Filter8 previously written by Serialize. It
// rejects truncated input, a segment length that isn't a power of two or
// exceeds 2^18, and a fingerprints length inconsistent with
// segment_count_length and segment_length, all with ErrMalformedInput.
func Deserialize(r io.Reader) (*Filter8, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, amqerr.Wrapf(amqerr.ErrMalformedInput, "fuse: short header: %v", err)
	}

	segmentLength := binary.BigEndian.Uint32(header[0:4])
	segmentCountLength := binary.BigEndian.Uint32(header[4:8])
	seed := binary.BigEndian.Uint64(header[8:16])
	fingerprintsLen := binary.BigEndian.Uint32(header[16:20])

	if segmentLength == 0 || bits.OnesCount32(segmentLength) != 1 {
		return nil, amqerr.Wrapf(amqerr.ErrMalformedInput, "fuse: segment length %d is not a power of two", segmentLength)
	}
	if segmentLength > maxSegmentLength {
		return nil, amqerr.Wrapf(amqerr.ErrMalformedInput, "fuse: segment length %d exceeds 2^18", segmentLength)
	}
	if segmentCountLength%segmentLength != 0 {
		return nil, amqerr.Wrapf(amqerr.ErrMalformedInput, "fuse: segment count length %d not a multiple of segment length %d", segmentCountLength, segmentLength)
	}
	wantLen := (segmentCountLength/segmentLength + 2) * segmentLength
	if fingerprintsLen != wantLen {
		return nil, amqerr.Wrapf(amqerr.ErrMalformedInput,
			"fuse: fingerprints length %d does not match expected %d", fingerprintsLen, wantLen)
	}

	fp := make([]uint8, fingerprintsLen)
	if _, err := io.ReadFull(r, fp); err != nil {
		return nil, amqerr.Wrapf(amqerr.ErrMalformedInput, "fuse: short fingerprints: %v", err)
	}

	segmentCount := segmentCountLength / segmentLength
	return &Filter8{
		seed:               seed,
		segmentLength:      segmentLength,
		segmentLengthMask:  segmentLength - 1,
		segmentCount:       segmentCount,
		segmentCountLength: segmentCountLength,
		n:                  0, // cardinality is not recoverable from the wire format
		fingerprints:       fp,
	}, nil
}
