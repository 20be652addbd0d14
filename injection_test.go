// Copyright 2024 Chromtools. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package unicorn

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// injectionRes3 builds a run with two injections (5.0 and 20.0 ml) and one
// curve whose first raw volume is 5.00 ml.
func injectionRes3(t *testing.T) []byte {
	t.Helper()

	return buildRes3(t, "", []res3Block{
		{
			magic:   injectAID,
			label:   "Run:1_Injection",
			payload: annotationPayload(t, []Event{{Volume: 5.0, Label: ""}}),
		},
		{
			magic:   injectBID,
			label:   "Run:1_Reinjection",
			payload: annotationPayload(t, []Event{{Volume: 20.0, Label: ""}}),
		},
		{
			magic:   sensDataAID,
			label:   "Run:1_UV",
			offData: sensorOffData,
			header:  sensorHeader("mAU"),
			payload: sensorPayload(t, [][2]int32{{500, 1000}, {600, 2000}}),
		},
	})
}

func TestInjectionDiscovery(t *testing.T) {
	file, err := NewBytes(injectionRes3(t))
	require.NoError(t, err)
	require.NoError(t, file.Parse())

	// Discovery reads raw volumes, before any rebasing.
	require.Equal(t, []float64{0.0, 5.0, 20.0}, file.InjectionPoints)
	require.Equal(t, 0.0, file.InjectionPoints[0])
	for _, p := range file.InjectionPoints[1:] {
		require.Positive(t, p)
	}
}

// With the first injection selected, the curve starts at zero volume.
func TestInjectionRebasing(t *testing.T) {
	file, err := NewBytes(injectionRes3(t), WithInjection(1))
	require.NoError(t, err)
	require.NoError(t, file.Parse())

	require.Equal(t, 1, file.InjSel)
	require.Equal(t, 5.0, file.InjectVol)

	uv, ok := file.Channel("UV")
	require.True(t, ok)
	require.Equal(t, 0.0, uv.Samples[0].Volume)
	require.Empty(t, file.Warnings)
}

// Rebasing law: selecting injection k shifts every volume by
// InjectionPoints[k] relative to selecting the origin.
func TestInjectionRebasingLaw(t *testing.T) {
	origin, err := NewBytes(injectionRes3(t), WithInjection(0))
	require.NoError(t, err)
	require.NoError(t, origin.Parse())

	for k := 0; k < len(origin.InjectionPoints); k++ {
		file, err := NewBytes(injectionRes3(t), WithInjection(k))
		require.NoError(t, err)
		require.NoError(t, file.Parse())

		base, _ := origin.Channel("UV")
		uv, _ := file.Channel("UV")
		want := round4(base.Samples[0].Volume - origin.InjectionPoints[k])
		require.Equal(t, want, uv.Samples[0].Volume, "inj_sel=%d", k)
	}
}

func TestInjectionNegativeIndex(t *testing.T) {
	file, err := NewBytes(injectionRes3(t), WithInjection(-1))
	require.NoError(t, err)
	require.NoError(t, file.Parse())
	require.Equal(t, 2, file.InjSel)
	require.Equal(t, 20.0, file.InjectVol)

	file, err = NewBytes(injectionRes3(t), WithInjection(-3))
	require.NoError(t, err)
	require.NoError(t, file.Parse())
	require.Equal(t, 0, file.InjSel)
	require.Equal(t, 0.0, file.InjectVol)
}

// An out-of-range selection falls back to the last injection point and
// surfaces a warning instead of failing the parse.
func TestInjectionOutOfRange(t *testing.T) {
	tests := []int{7, -4}

	for _, sel := range tests {
		file, err := NewBytes(injectionRes3(t), WithInjection(sel))
		require.NoError(t, err)
		require.NoError(t, file.Parse())

		require.Equal(t, 2, file.InjSel)
		require.Equal(t, 20.0, file.InjectVol)
		require.Len(t, file.Warnings, 1)
		require.Contains(t, file.Warnings[0], "does not exist")
	}
}

// A run without injection markers keeps raw volumes.
func TestNoInjectionMarkers(t *testing.T) {
	buf := buildRes3(t, "", []res3Block{
		{
			magic:   sensDataAID,
			label:   "Run:1_UV",
			offData: sensorOffData,
			header:  sensorHeader("mAU"),
			payload: sensorPayload(t, [][2]int32{{500, 1000}}),
		},
	})

	file, err := NewBytes(buf)
	require.NoError(t, err)
	require.NoError(t, file.Parse())

	require.Equal(t, []float64{0.0}, file.InjectionPoints)
	require.Equal(t, 0, file.InjSel)
	require.Equal(t, 0.0, file.InjectVol)

	uv, _ := file.Channel("UV")
	require.Equal(t, 5.0, uv.Samples[0].Volume)
}

// Zero-volume injection markers do not create injection points.
func TestZeroInjectionMarkerIgnored(t *testing.T) {
	buf := buildRes3(t, "", []res3Block{
		{
			magic:   injectAID,
			label:   "Run:1_Injection",
			payload: annotationPayload(t, []Event{{Volume: 0.0, Label: ""}}),
		},
	})

	file, err := NewBytes(buf)
	require.NoError(t, err)
	require.NoError(t, file.Parse())
	require.Equal(t, []float64{0.0}, file.InjectionPoints)
}
