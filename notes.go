// Copyright 2024 Chromtools. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package unicorn

import (
	"bytes"
	"fmt"
	"strings"
)

// readNotes decodes a text block: the method/program of the run or the
// stored notes. The block size declared in the header is habitually off by
// a few bytes, so the effective size is redetermined as the position of the
// last newline inside the declared range. Text stored without carriage
// returns gets the instrument's CRLF line endings restored.
func (f *File) readNotes(c *Channel) (string, error) {
	declared, err := f.ReadBytesAtOffset(c.dataStart(), c.BlockSize)
	if err != nil {
		return "", err
	}

	size := bytes.LastIndexByte(declared, '\n')
	if size < 0 {
		return "", fmt.Errorf("%w: text block %q contains no newline",
			ErrMalformedBlock, c.DataName)
	}

	text, err := decodeString(declared[:size])
	if err != nil {
		return "", err
	}

	if !strings.Contains(text, "\r") {
		text = strings.ReplaceAll(text, "\n", "\r\n")
	}
	return text, nil
}
