// Copyright 2024 Chromtools. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package unicorn

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// Errors
var (
	// ErrUnsupportedFormat is returned when the input is not a result file
	// of a supported container version: magic or version string mismatch,
	// declared size mismatch, or a bundle without a chromatogram.
	ErrUnsupportedFormat = errors.New("unsupported result file format")

	// ErrTruncatedInput is returned when a fixed-width read extends past
	// the end of the buffer or past declared block bounds.
	ErrTruncatedInput = errors.New("read extends past end of input")

	// ErrMalformedBlock is returned when a data block violates its record
	// geometry: a text block without a newline, a sensor block whose length
	// is not a multiple of 8, an annotation block whose length is not a
	// multiple of 180.
	ErrMalformedBlock = errors.New("malformed data block")

	// ErrDecode is returned when code-page decoding fails. The instrument
	// code page is total over 0x00-0xFF, so this is a robustness reserve.
	ErrDecode = errors.New("text decoding failed")

	// ErrBadOption is returned at construction time for out-of-domain
	// option values.
	ErrBadOption = errors.New("invalid option")
)

// codePage is the legacy Western single-byte code page the instrument
// software stores every text field in.
var codePage = charmap.ISO8859_1

// ReadInt32 reads a little-endian int32 from the buffer.
func (f *File) ReadInt32(offset uint32) (int32, error) {
	if f.size < 4 || offset > f.size-4 {
		return 0, ErrTruncatedInput
	}

	return int32(binary.LittleEndian.Uint32(f.data[offset:])), nil
}

// ReadUint32 reads a little-endian uint32 from the buffer.
func (f *File) ReadUint32(offset uint32) (uint32, error) {
	if f.size < 4 || offset > f.size-4 {
		return 0, ErrTruncatedInput
	}

	return binary.LittleEndian.Uint32(f.data[offset:]), nil
}

// ReadFloat64 reads a little-endian IEEE-754 double from the buffer.
func (f *File) ReadFloat64(offset uint32) (float64, error) {
	if f.size < 8 || offset > f.size-8 {
		return 0, ErrTruncatedInput
	}

	return math.Float64frombits(binary.LittleEndian.Uint64(f.data[offset:])), nil
}

// ReadFloat32 reads a little-endian IEEE-754 single from the buffer.
func (f *File) ReadFloat32(offset uint32) (float32, error) {
	if f.size < 4 || offset > f.size-4 {
		return 0, ErrTruncatedInput
	}

	return math.Float32frombits(binary.LittleEndian.Uint32(f.data[offset:])), nil
}

// ReadBytesAtOffset returns a fixed-length byte field from the buffer. The
// returned slice aliases the underlying buffer.
func (f *File) ReadBytesAtOffset(offset, size uint32) ([]byte, error) {
	// Boundary check
	totalSize := offset + size

	// Integer overflow
	if (totalSize > offset) != (size > 0) {
		return nil, ErrTruncatedInput
	}

	if offset >= f.size || totalSize > f.size {
		return nil, ErrTruncatedInput
	}

	return f.data[offset : offset+size], nil
}

// decodeString decodes a fixed-length byte field with the instrument code
// page, keeping any NUL padding.
func decodeString(b []byte) (string, error) {
	s, err := codePage.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return string(s), nil
}

// decodeText decodes a fixed-length byte field with the instrument code page
// and strips the trailing NUL padding.
func decodeText(b []byte) (string, error) {
	s, err := decodeString(b)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(s, "\x00"), nil
}

// round4 rounds half to even at four decimal places, matching the volume
// arithmetic of the instrument software.
func round4(v float64) float64 {
	return math.RoundToEven(v*1e4) / 1e4
}
