// Copyright 2024 Chromtools. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package unicorn

import (
	"fmt"
)

// resolveInjections discovers the injection points of the run and fixes the
// volume origin for every subsequent decode. Marker blocks are read with a
// zero rebase offset: discovery always sees raw volumes, regardless of the
// selection made afterwards.
func (f *File) resolveInjections() error {
	if f.state >= stateInjectionsResolved {
		return nil
	}

	f.InjectionPoints = []float64{0.0}
	for _, c := range f.channels {
		if !isInjectID(c.MagicID) || c.BlockSize == 0 {
			continue
		}

		events, err := f.readAnnotations(c, 0)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			continue
		}
		if v := events[0].Volume; v != 0 {
			f.InjectionPoints = append(f.InjectionPoints, v)
		}
	}

	f.selectInjection()
	f.state = stateInjectionsResolved
	return nil
}

// selectInjection resolves the requested injection index against the
// discovered points. Negative indices count from the end; an index outside
// the known points falls back to the last one and surfaces a warning.
func (f *File) selectInjection() {
	requested := f.opts.injSel
	n := len(f.InjectionPoints)

	idx := requested
	if idx < 0 {
		idx += n
	}
	if idx < 0 || idx >= n {
		warning := fmt.Sprintf(
			"injection point %d does not exist, selected the last one", requested)
		f.Warnings = append(f.Warnings, warning)
		f.logger.Info("injection selection out of range",
			"requested", requested, "points", n)
		idx = n - 1
	}

	f.InjSel = idx
	f.InjectVol = f.InjectionPoints[idx]
}
