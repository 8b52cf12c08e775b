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
	"bytes"
	"io"

	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
)

// DumpCompressed writes f to w wrapped in an lz4 frame around the
// canonical wire format of Serialize. This is a non-canonical envelope
// for callers shipping filters over constrained links, such as a
// password-breach build tool distributing its output; it is never
// required for interoperating with Serialize/Deserialize.
func DumpCompressed(w io.Writer, f *Filter8) error {
	zw := lz4.NewWriter(w)
	if err := f.Serialize(zw); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return errors.Wrap(err, "fuse: closing lz4 frame")
	}
	return nil
}

// LoadCompressed reads a Filter8 written by DumpCompressed.
func LoadCompressed(r io.Reader) (*Filter8, error) {
	return Deserialize(lz4.NewReader(r))
}

// DumpCompressedBytes is a convenience wrapper returning the compressed
// envelope as a byte slice.
func DumpCompressedBytes(f *Filter8) ([]byte, error) {
	var buf bytes.Buffer
	if err := DumpCompressed(&buf, f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
