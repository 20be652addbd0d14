// Copyright 2024 Chromtools. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package unicorn

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/klauspost/compress/zip"
)

var (
	// zipMagic opens every RESv6 bundle (and any other zip archive).
	zipMagic = []byte{0x50, 0x4B, 0x03, 0x04}

	// innerZipMagic is the 9-byte local-file-header prefix of the
	// malformed inner archives the bundle nests.
	innerZipMagic = []byte{0x50, 0x4B, 0x03, 0x04, 0x2D, 0x00, 0x00, 0x00, 0x08}

	// eocdMagic is the end-of-central-directory marker; the full EOCD
	// record is eocdSize bytes including the marker.
	eocdMagic = []byte{0x50, 0x4B, 0x05, 0x06, 0x00, 0x00, 0x00, 0x00}
)

const eocdSize = 22

// bundleEntry is one entry of the outer archive. Inner archives carry their
// decoded sample streams and descriptors; everything else stays opaque.
type bundleEntry struct {
	name string
	raw  []byte

	// Set for repaired inner archives only.
	streams map[string][]float64
	texts   map[string]string
}

// bundle holds the outer archive's entries in directory order.
type bundle struct {
	names   []string
	entries map[string]*bundleEntry
}

func (b *bundle) entry(name string) (*bundleEntry, bool) {
	e, ok := b.entries[name]
	return e, ok
}

func (b *bundle) remove(name string) {
	if _, ok := b.entries[name]; !ok {
		return
	}
	delete(b.entries, name)
	for i, n := range b.names {
		if n == name {
			b.names = append(b.names[:i], b.names[i+1:]...)
			break
		}
	}
}

// loadBundle opens the outer RESv6 archive, repairs and opens the nested
// archives, and eagerly decodes the sample streams of those whose name
// contains "Chrom" but not "Xml". Other nested archives are opened but not
// decoded and stay opaque.
func (f *File) loadBundle() (*bundle, error) {
	zr, err := zip.NewReader(bytes.NewReader(f.data), int64(len(f.data)))
	if err != nil {
		return nil, fmt.Errorf("%w: not a result bundle: %v",
			ErrUnsupportedFormat, err)
	}

	b := &bundle{entries: make(map[string]*bundleEntry)}
	for _, zf := range zr.File {
		raw, err := readZipEntry(zf)
		if err != nil {
			return nil, fmt.Errorf("bundle entry %s: %w", zf.Name, err)
		}
		b.names = append(b.names, zf.Name)
		b.entries[zf.Name] = &bundleEntry{name: zf.Name, raw: raw}
	}

	for _, name := range b.names {
		ent := b.entries[name]
		if !bytes.HasPrefix(ent.raw, innerZipMagic) {
			continue
		}

		inner, err := openInnerArchive(ent.raw)
		if err != nil {
			// Retained as opaque binary.
			f.logger.Info("skipping unreadable nested archive",
				"entry", name, "reason", err)
			continue
		}

		if !strings.Contains(name, "Chrom") || strings.Contains(name, "Xml") {
			continue
		}
		if err := decodeInnerArchive(ent, inner); err != nil {
			return nil, fmt.Errorf("bundle entry %s: %w", name, err)
		}
	}
	return b, nil
}

// openInnerArchive repairs a nested archive and opens it. The bundles pad
// the nested archives with NUL bytes after the end-of-central-directory
// record, which stock zip readers reject; the blob is truncated to end
// right after the EOCD record before reading.
func openInnerArchive(raw []byte) (*zip.Reader, error) {
	end := bytes.LastIndex(raw, eocdMagic)
	if end < 0 {
		return nil, fmt.Errorf("%w: no end-of-central-directory record",
			ErrMalformedBlock)
	}
	repaired := raw[:end+eocdSize]

	zr, err := zip.NewReader(bytes.NewReader(repaired), int64(len(repaired)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBlock, err)
	}
	return zr, nil
}

// decodeInnerArchive materializes a nested archive's contents: DataType
// descriptors are plain ASCII, everything else is a float sample stream.
func decodeInnerArchive(ent *bundleEntry, zr *zip.Reader) error {
	ent.streams = make(map[string][]float64)
	ent.texts = make(map[string]string)

	for _, zf := range zr.File {
		data, err := readZipEntry(zf)
		if err != nil {
			return fmt.Errorf("%s: %w", zf.Name, err)
		}

		if strings.Contains(zf.Name, "DataType") {
			ent.texts[zf.Name] = strings.Trim(string(data), "\r\n")
			continue
		}
		ent.streams[zf.Name] = unpackFloats(data)
	}
	return nil
}

// unpackFloats decodes a binary sample stream: 47 header bytes, then
// little-endian float32s in 4-byte strides, stopping 48 bytes short of the
// end of the blob (format padding).
func unpackFloats(data []byte) []float64 {
	end := len(data) - 48
	if end <= 47 {
		return nil
	}

	values := make([]float64, 0, (end-47+3)/4)
	for off := 47; off < end; off += 4 {
		bits := binary.LittleEndian.Uint32(data[off : off+4])
		values = append(values, float64(math.Float32frombits(bits)))
	}
	return values
}

func readZipEntry(zf *zip.File) ([]byte, error) {
	rc, err := zf.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
