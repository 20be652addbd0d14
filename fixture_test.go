// Copyright 2024 Chromtools. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package unicorn

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"
)

// res3Block describes one directory entry and its data block for a
// synthesized RESv3 fixture.
type res3Block struct {
	magic   []byte
	label   string
	offData uint32 // offset of the data within the block
	header  []byte // block bytes before the data, padded to offData
	payload []byte
}

// buildRes3 assembles a RESv3 buffer: file header, block directory with a
// trailing sentinel entry, then the data blocks. The declared file size at
// offset 16 is patched last.
func buildRes3(t *testing.T, user string, blocks []res3Block) []byte {
	t.Helper()

	dirStart := headerDirStart
	dirSize := (len(blocks) + 1) * headerEntrySize
	dataStart := dirStart + dirSize

	// Lay out the data region first so entry addresses are known.
	var data bytes.Buffer
	addrs := make([]uint32, len(blocks))
	sizes := make([]uint32, len(blocks))
	for i, b := range blocks {
		require.LessOrEqual(t, len(b.header), int(b.offData))
		addrs[i] = uint32(dataStart + data.Len())
		sizes[i] = b.offData + uint32(len(b.payload))

		data.Write(b.header)
		data.Write(make([]byte, int(b.offData)-len(b.header)))
		data.Write(b.payload)
	}

	buf := make([]byte, dataStart+data.Len())
	copy(buf, resMagic)
	copy(buf[24:], versionString)
	copy(buf[userNameOffset:], user)
	copy(buf[dataStart:], data.Bytes())

	writeEntry := func(off int, magic []byte, label string, size, addr, offData uint32) {
		copy(buf[off:off+8], magic)
		copy(buf[off+8:off+304], label)
		binary.LittleEndian.PutUint32(buf[off+304:], size)
		binary.LittleEndian.PutUint32(buf[off+308:], headerEntrySize)
		binary.LittleEndian.PutUint32(buf[off+312:], addr)
		binary.LittleEndian.PutUint32(buf[off+316:], offData)
	}

	for i, b := range blocks {
		writeEntry(dirStart+i*headerEntrySize, b.magic, b.label,
			sizes[i], addrs[i], b.offData)
	}
	writeEntry(dirStart+len(blocks)*headerEntrySize,
		logbookSentinelID, "LogBook", 0, 0, 0)

	binary.LittleEndian.PutUint32(buf[16:], uint32(len(buf)))
	return buf
}

// patchDeclaredSize rewrites the declared file size so the support check
// matches a hand-mangled buffer.
func patchDeclaredSize(buf []byte) {
	binary.LittleEndian.PutUint32(buf[16:], uint32(len(buf)))
}

// annotationPayload encodes 180-byte annotation records from raw volumes.
func annotationPayload(t *testing.T, events []Event) []byte {
	t.Helper()

	var buf bytes.Buffer
	for _, e := range events {
		rec := make([]byte, annotationStride)
		binary.LittleEndian.PutUint64(rec[0:], math.Float64bits(0)) // acc time
		binary.LittleEndian.PutUint64(rec[8:], math.Float64bits(e.Volume))
		copy(rec[16:annotationUsed], e.Label)
		buf.Write(rec)
	}
	return buf.Bytes()
}

// sensorHeader builds the block header of a sensor block with the unit
// field in place.
func sensorHeader(unit string) []byte {
	h := make([]byte, sensorUnitOffset+sensorUnitSize)
	copy(h[sensorUnitOffset:], unit)
	return h
}

// sensorOffData is the data offset used by sensor fixtures, leaving room
// for the unit field.
const sensorOffData = 224

// sensorPayload encodes raw (volume, amplitude) int32 pairs.
func sensorPayload(t *testing.T, pairs [][2]int32) []byte {
	t.Helper()

	var buf bytes.Buffer
	for _, p := range pairs {
		var rec [sensorStride]byte
		binary.LittleEndian.PutUint32(rec[0:], uint32(p[0]))
		binary.LittleEndian.PutUint32(rec[4:], uint32(p[1]))
		buf.Write(rec[:])
	}
	return buf.Bytes()
}

// zipEntry is one named blob of a synthesized archive.
type zipEntry struct {
	name string
	data []byte
}

// buildZip assembles a plain zip archive in memory.
func buildZip(t *testing.T, entries []zipEntry) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, e := range entries {
		fw, err := w.Create(e.name)
		require.NoError(t, err)
		_, err = fw.Write(e.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

// buildInnerArchive assembles a nested archive the way the instrument
// writes them: the 9-byte local-header prefix the loader detects, and NUL
// padding after the end-of-central-directory record.
func buildInnerArchive(t *testing.T, entries []zipEntry, padding int) []byte {
	t.Helper()

	raw := buildZip(t, entries)
	copy(raw[4:9], innerZipMagic[4:9])
	return append(raw, make([]byte, padding)...)
}

// floatStream encodes a binary sample stream: 47 header bytes, the values
// as little-endian float32s, then 48 bytes of trailing padding.
func floatStream(t *testing.T, values []float32) []byte {
	t.Helper()

	buf := make([]byte, 47+4*len(values)+48)
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[47+4*i:], math.Float32bits(v))
	}
	return buf
}
