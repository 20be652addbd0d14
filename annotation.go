// Copyright 2024 Chromtools. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package unicorn

import (
	"fmt"
)

const (
	// annotationStride is the record stride of an annotation block.
	annotationStride = 180

	// annotationUsed is the structured prefix of each record: two doubles
	// (accumulated time, volume) and a 158-byte label.
	annotationUsed = 174
)

// readAnnotations decodes a logbook, fraction or injection-mark block into
// an event series. Volumes are rebased by injectVol and rounded to four
// decimals; the accumulated-time field of each record is not surfaced.
func (f *File) readAnnotations(c *Channel, injectVol float64) ([]Event, error) {
	start, end := c.dataStart(), c.dataEnd()
	if end < start || (end-start)%annotationStride != 0 {
		return nil, fmt.Errorf(
			"%w: annotation block %q spans %d bytes, not a multiple of %d",
			ErrMalformedBlock, c.DataName, end-start, annotationStride)
	}

	events := make([]Event, 0, (end-start)/annotationStride)
	for off := start; off < end; off += annotationStride {
		rec, err := f.ReadBytesAtOffset(off, annotationUsed)
		if err != nil {
			return nil, err
		}

		volume, err := f.ReadFloat64(off + 8)
		if err != nil {
			return nil, err
		}
		label, err := decodeText(rec[16:annotationUsed])
		if err != nil {
			return nil, err
		}

		events = append(events, Event{
			Volume: round4(volume - injectVol),
			Label:  label,
		})
	}
	return events, nil
}
