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
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"strings"
	"unicode/utf8"
)

// The dump format is a 64-byte header followed by the blocks:
//
//	offset  length  content
//	0        8      magic string "blobloom"
//	8        4      version number, big-endian (currently zero)
//	12       4      number of 512-bit blocks, big-endian
//	16       4      number of hash functions, big-endian
//	20      44      comment, zero-padded UTF-8
//
// Each block is stored as sixteen little-endian uint32 words, so a dump
// is 64*(1+nblocks) bytes long.
const (
	dumpMagic      = "blobloom"
	dumpHeaderSize = 64
	maxCommentLen  = dumpHeaderSize - 20
)

// Dump writes f to w in a portable binary format, with comment included
// in the header. It returns the number of bytes written.
//
// The comment must be valid UTF-8, contain no zero bytes and fit in 44
// bytes.
func Dump(w io.Writer, f *Filter, comment string) (int64, error) {
	return dump(w, f.b, f.k, comment)
}

// Write writes f to w in the format of Dump, with an empty comment.
//
// Write does not synchronize with concurrent writers; the filter must be
// quiescent for the dump to be consistent.
func (f *SyncFilter) Write(w io.Writer) error {
	_, err := dump(w, f.b, f.k, "")
	return err
}

func dump(w io.Writer, b []block, nhashes int, comment string) (int64, error) {
	switch {
	case len(comment) > maxCommentLen:
		return 0, errors.New("blobloom: comment too long for dump header")
	case strings.IndexByte(comment, 0) != -1:
		return 0, errors.New("blobloom: comment contains zero byte")
	case !utf8.ValidString(comment):
		return 0, errors.New("blobloom: comment is not valid UTF-8")
	}

	var hdr [dumpHeaderSize]byte
	copy(hdr[:8], dumpMagic)
	binary.BigEndian.PutUint32(hdr[12:], uint32(len(b)))
	binary.BigEndian.PutUint32(hdr[16:], uint32(nhashes))
	copy(hdr[20:], comment)

	n, err := w.Write(hdr[:])
	written := int64(n)
	if err != nil {
		return written, err
	}

	buf := make([]byte, BlockBits/8)
	for i := range b {
		for j, word := range b[i] {
			binary.LittleEndian.PutUint32(buf[4*j:], word)
		}
		n, err = w.Write(buf)
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// A Loader reads a filter dump produced by Dump. NewLoader parses the
// header; Load reads the blocks.
type Loader struct {
	// Comment from the dump's header, with padding removed.
	Comment string

	r       io.Reader
	nblocks uint32
	nhashes uint32
}

// NewLoader reads and validates a dump header from r. The blocks are not
// consumed until Load is called.
func NewLoader(r io.Reader) (*Loader, error) {
	var hdr [dumpHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, eofIsUnexpected(err)
	}

	if string(hdr[:8]) != dumpMagic {
		return nil, errors.New("blobloom: not a filter dump (bad magic)")
	}
	if version := binary.BigEndian.Uint32(hdr[8:]); version != 0 {
		return nil, errors.New("blobloom: unsupported dump version")
	}

	nblocks := binary.BigEndian.Uint32(hdr[12:])
	nhashes := binary.BigEndian.Uint32(hdr[16:])
	if nblocks == 0 {
		return nil, errors.New("blobloom: dump has zero blocks")
	}
	if nhashes == 0 {
		return nil, errors.New("blobloom: dump has zero hash functions")
	}

	comment := hdr[20:]
	if i := bytes.IndexByte(comment, 0); i != -1 {
		for _, c := range comment[i:] {
			if c != 0 {
				return nil, errors.New("blobloom: zero byte inside comment")
			}
		}
		comment = comment[:i]
	}
	if !utf8.Valid(comment) {
		return nil, errors.New("blobloom: comment is not valid UTF-8")
	}

	return &Loader{
		Comment: string(comment),
		r:       r,
		nblocks: nblocks,
		nhashes: nhashes,
	}, nil
}

// Load reads the blocks of the dump into f and returns f. If f is nil, a
// new Filter of the dump's size is allocated; otherwise f's number of bits
// and hashes must match the dump's.
func (l *Loader) Load(f *Filter) (*Filter, error) {
	if f == nil {
		f = &Filter{
			b: make([]block, l.nblocks),
			k: int(l.nhashes),
		}
	} else if uint32(len(f.b)) != l.nblocks || f.k != int(l.nhashes) {
		return nil, errors.New("blobloom: dump size does not match filter")
	}

	buf := make([]byte, BlockBits/8)
	for i := range f.b {
		if _, err := io.ReadFull(l.r, buf); err != nil {
			return nil, eofIsUnexpected(err)
		}
		for j := range f.b[i] {
			f.b[i][j] = binary.LittleEndian.Uint32(buf[4*j:])
		}
	}
	return f, nil
}

// ReadSync reads a dump written by Dump or SyncFilter.Write into a new
// SyncFilter, discarding the comment.
func ReadSync(r io.Reader) (*SyncFilter, error) {
	l, err := NewLoader(r)
	if err != nil {
		return nil, err
	}
	f, err := l.Load(nil)
	if err != nil {
		return nil, err
	}
	return (*SyncFilter)(f), nil
}

// eofIsUnexpected turns io.EOF into io.ErrUnexpectedEOF: a caller that
// got as far as asking for more of a dump was promised the bytes by the
// header.
func eofIsUnexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
