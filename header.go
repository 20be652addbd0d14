// Copyright 2024 Chromtools. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package unicorn

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
)

// RESv3 block-type magics. These values are load-bearing: the directory walk
// and the block-kind dispatch compare against them byte for byte.
var (
	// resMagic opens every RESv3 file.
	resMagic = []byte{
		0x11, 0x47, 0x11, 0x47, 0x18, 0x00, 0x00, 0x00,
		0xB0, 0x02, 0x00, 0x00, 0x20, 0x6C, 0x03, 0x00,
	}

	cnotesID    = []byte{0x00, 0x00, 0x01, 0x00, 0x02, 0x00, 0x03, 0x22}
	methodsID   = []byte{0x00, 0x00, 0x01, 0x00, 0x02, 0x00, 0x01, 0x02}
	logbookAID  = []byte{0x00, 0x00, 0x01, 0x00, 0x04, 0x00, 0x48, 0x04}
	logbookBID  = []byte{0x00, 0x00, 0x01, 0x00, 0x04, 0x00, 0x49, 0x04}
	sensDataAID = []byte{0x00, 0x00, 0x01, 0x00, 0x04, 0x00, 0x01, 0x14}
	sensDataBID = []byte{0x00, 0x00, 0x01, 0x00, 0x04, 0x00, 0x02, 0x14}
	fractionAID = []byte{0x00, 0x00, 0x01, 0x00, 0x04, 0x00, 0x44, 0x04}
	fractionBID = []byte{0x00, 0x00, 0x01, 0x00, 0x04, 0x00, 0x45, 0x04}
	injectAID   = []byte{0x00, 0x00, 0x01, 0x00, 0x04, 0x00, 0x46, 0x04}
	injectBID   = []byte{0x00, 0x00, 0x01, 0x00, 0x04, 0x00, 0x47, 0x04}

	// logbookSentinelID terminates the directory; it is never decoded.
	// Note the capital B in the vendor's name for it, "LogBook".
	logbookSentinelID = []byte{0x00, 0x00, 0x01, 0x00, 0x02, 0x00, 0x01, 0x13}
)

const (
	// versionString sits at offset 24 of every supported RESv3 file.
	versionString = "UNICORN 3.10"

	// headerDirStart is the fixed file offset of the block directory.
	headerDirStart = 686

	// headerEntrySize is the stride between directory entries; only the
	// first headerEntryStructured bytes of each entry are structured.
	headerEntrySize       = 344
	headerEntryStructured = 320

	// headerSentinelSlack is how far past the sentinel magic the
	// directory extends.
	headerSentinelSlack = 342

	// Stored operator name field in the file header.
	userNameOffset = 118
	userNameSize   = 40
)

// isAnnotationID reports whether the magic tags a (volume, label) series:
// logbook lines, fraction marks, or injection marks.
func isAnnotationID(magic []byte) bool {
	return bytes.Equal(magic, logbookAID) || bytes.Equal(magic, logbookBID) ||
		bytes.Equal(magic, injectAID) || bytes.Equal(magic, injectBID) ||
		bytes.Equal(magic, fractionAID) || bytes.Equal(magic, fractionBID)
}

// isNotesID reports whether the magic tags a text blob block.
func isNotesID(magic []byte) bool {
	return bytes.Equal(magic, cnotesID) || bytes.Equal(magic, methodsID)
}

// isSensorID reports whether the magic tags a sensor curve block.
func isSensorID(magic []byte) bool {
	return bytes.Equal(magic, sensDataAID) || bytes.Equal(magic, sensDataBID)
}

// isInjectID reports whether the magic tags an injection-marker block.
func isInjectID(magic []byte) bool {
	return bytes.Equal(magic, injectAID) || bytes.Equal(magic, injectBID)
}

// InputCheck verifies that the buffer looks like a supported RESv3 file:
// the RES magic at offset 0, the version string at offset 24, and a declared
// file size matching the actual size. It is informational: findings go to
// the logger and the check never aborts anything.
func (f *File) InputCheck() bool {
	magicOK := f.size >= 16 && bytes.Equal(f.data[:16], resMagic)

	versionOK := false
	if f.size >= 36 {
		versionOK = bytes.Index(f.data[16:36], []byte(versionString)) == 8
	}

	if magicOK && versionOK {
		f.logger.Info("input is a UNICORN 3.10 file", "file", f.FileName)
	} else {
		f.logger.Info("input is not a UNICORN 3.10 file", "file", f.FileName)
	}

	sizeOK := false
	if declared, err := f.ReadInt32(16); err == nil {
		sizeOK = declared == int32(f.size)
	}
	if sizeOK {
		f.logger.Info("file size check ok", "size", f.size)
	} else {
		f.logger.Info("file size mismatch, file corrupted?", "size", f.size)
	}

	return magicOK && versionOK && sizeOK
}

// parseHeader walks the RESv3 block directory and records one channel per
// display name. Later duplicate names update the earlier record in place.
func (f *File) parseHeader() error {
	if f.state >= stateHeaderParsed {
		return nil
	}

	if !f.InputCheck() {
		return fmt.Errorf("%w: %s is not a UNICORN 3.10 result file",
			ErrUnsupportedFormat, f.FileName)
	}

	sentinel := bytes.Index(f.data, logbookSentinelID)
	if sentinel < 0 {
		return fmt.Errorf("%w: directory sentinel not found",
			ErrUnsupportedFormat)
	}
	headerEnd := sentinel + headerSentinelSlack

	for off := headerDirStart; off < headerEnd; off += headerEntrySize {
		ent, err := f.ReadBytesAtOffset(uint32(off), headerEntryStructured)
		if err != nil {
			return err
		}

		label, err := decodeText(ent[8:304])
		if err != nil {
			return err
		}
		runName, dataName := splitLabel(label)

		f.upsertChannel(&Channel{
			RunName:   runName,
			DataName:  dataName,
			MagicID:   append([]byte(nil), ent[:8]...),
			BlockSize: binary.LittleEndian.Uint32(ent[304:308]),
			OffNext:   binary.LittleEndian.Uint32(ent[308:312]),
			Address:   binary.LittleEndian.Uint32(ent[312:316]),
			OffData:   binary.LittleEndian.Uint32(ent[316:320]),
		})
	}

	f.state = stateHeaderParsed
	return nil
}

// splitLabel separates a directory label into run name and display name.
// Labels with a colon carry the run name before it and the display name
// after the first underscore; everything else is display name only.
func splitLabel(label string) (runName, dataName string) {
	colon := strings.Index(label, ":")
	if colon == -1 {
		return "", label
	}
	return label[:colon], label[strings.Index(label, "_")+1:]
}

// readStoredUser extracts the operator name stored in the file header.
func (f *File) readStoredUser() (string, error) {
	field, err := f.ReadBytesAtOffset(userNameOffset, userNameSize)
	if err != nil {
		return "", err
	}
	return decodeText(field)
}
