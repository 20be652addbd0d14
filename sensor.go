// Copyright 2024 Chromtools. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package unicorn

import (
	"fmt"
	"strings"
)

const (
	// sensorStride is the record stride of a sensor block: two
	// little-endian int32s, raw volume then raw amplitude.
	sensorStride = 8

	// The physical unit is a fixed 15-byte field inside the block header.
	sensorUnitOffset = 207
	sensorUnitSize   = 15

	// Raw volumes are stored in hundredths of a millilitre.
	volumeScale = 100.0
)

// sensorDivisor returns the amplitude divisor for a sensor channel. The
// instrument scales integer readings per channel kind.
func sensorDivisor(name string) float64 {
	switch {
	case strings.Contains(name, "UV"), name == "Cond", name == "Flow":
		return 1000.0
	case strings.Contains(name, "Pressure"):
		return 100.0
	default:
		return 10.0
	}
}

// readSensor decodes a sensor curve block: the unit field, then the sample
// stream with volume rebasing, amplitude scaling and decimation by reduce.
// Some files store the temperature unit as a bare "C"; it is normalized to
// "°C".
func (f *File) readSensor(c *Channel, injectVol float64, reduce int) ([]Sample, string, error) {
	rawUnit, err := f.ReadBytesAtOffset(c.Address+sensorUnitOffset, sensorUnitSize)
	if err != nil {
		return nil, "", err
	}
	unit, err := decodeText(rawUnit)
	if err != nil {
		return nil, "", err
	}
	if unit == "C" {
		unit = "°C"
	}

	start, end := c.dataStart(), c.dataEnd()
	if end < start || (end-start)%sensorStride != 0 {
		return nil, "", fmt.Errorf(
			"%w: sensor block %q spans %d bytes, not a multiple of %d",
			ErrMalformedBlock, c.DataName, end-start, sensorStride)
	}

	div := sensorDivisor(c.DataName)
	total := (end - start) / sensorStride
	samples := make([]Sample, 0, (int(total)+reduce-1)/reduce)

	idx := 0
	for off := start; off < end; off += sensorStride {
		if idx%reduce != 0 {
			idx++
			continue
		}
		idx++

		vRaw, err := f.ReadInt32(off)
		if err != nil {
			return nil, "", err
		}
		aRaw, err := f.ReadInt32(off + 4)
		if err != nil {
			return nil, "", err
		}

		samples = append(samples, Sample{
			Volume:    round4(float64(vRaw)/volumeScale - injectVol),
			Amplitude: float64(aRaw) / div,
		})
	}
	return samples, unit, nil
}
