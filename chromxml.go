// Copyright 2024 Chromtools. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package unicorn

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
)

const (
	chromDescriptor = "Chrom.1.Xml"
	manifestName    = "Manifest.xml"

	volumesStream    = "CoordinateData.Volumes"
	amplitudesStream = "CoordinateData.Amplitudes"
)

// xmlNode is a tag-agnostic element used where the run description is
// traversed positionally rather than by name.
type xmlNode struct {
	XMLName xml.Name
	Text    string    `xml:",chardata"`
	Nodes   []xmlNode `xml:",any"`
}

// chromXML mirrors the parts of the run-description document the linker
// consumes. The root element name varies between exports and is not matched.
type chromXML struct {
	Curves      []curveXML      `xml:"Curves>Curve"`
	EventCurves []eventCurveXML `xml:"EventCurves>EventCurve"`
}

type curveXML struct {
	CurveDataType string `xml:"CurveDataType,attr"`
	Name          string `xml:"Name"`
	AmplitudeUnit string `xml:"AmplitudeUnit"`
	CurvePoints   struct {
		Sets []xmlNode `xml:",any"`
	} `xml:"CurvePoints"`
}

// streamName returns the internal filename of the inner archive holding the
// curve's samples: the second child of the first point set.
func (c *curveXML) streamName() string {
	if len(c.CurvePoints.Sets) == 0 || len(c.CurvePoints.Sets[0].Nodes) < 2 {
		return ""
	}
	return strings.TrimSpace(c.CurvePoints.Sets[0].Nodes[1].Text)
}

type eventCurveXML struct {
	EventCurveType string     `xml:"EventCurveType,attr"`
	Name           string     `xml:"Name"`
	IsOriginalData string     `xml:"IsOriginalData"`
	Events         []eventXML `xml:"Events>Event"`
}

type eventXML struct {
	EventVolume string `xml:"EventVolume"`
	EventText   string `xml:"EventText"`
}

// manifestXML lists the bundle's files; each child's first element is the
// file name.
type manifestXML struct {
	Nodes []xmlNode `xml:",any"`
}

// linkChromatogram parses the run-description XML and binds curve and event
// names to the decoded sample streams, producing the unified channel model.
// Event curves land before curves, each group in document order.
func (f *File) linkChromatogram(b *bundle) error {
	desc, ok := b.entry(chromDescriptor)
	if !ok {
		return fmt.Errorf("%w: bundle has no %s",
			ErrUnsupportedFormat, chromDescriptor)
	}

	var doc chromXML
	if err := xml.Unmarshal(desc.raw, &doc); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedBlock, chromDescriptor, err)
	}

	for _, ec := range doc.EventCurves {
		if ec.IsOriginalData != "true" {
			f.logger.V(1).Info("skipping event curve without original data",
				"name", ec.Name, "type", ec.EventCurveType)
			continue
		}

		name := ec.Name
		if name == "Fraction" {
			// Stored under the monolithic format's name so consumers
			// find fraction marks in either container version.
			name = "Fractions"
		}

		events := make([]Event, 0, len(ec.Events))
		for _, e := range ec.Events {
			volume, err := strconv.ParseFloat(strings.TrimSpace(e.EventVolume), 64)
			if err != nil {
				return fmt.Errorf("%w: event curve %q volume %q",
					ErrMalformedBlock, ec.Name, e.EventVolume)
			}
			events = append(events, Event{Volume: volume, Label: e.EventText})
		}

		f.upsertChannel(&Channel{
			RunName:  "Blank",
			DataName: name,
			DataType: TypeAnnotation,
			Events:   events,
		})
	}

	for _, cv := range doc.Curves {
		stream := cv.streamName()
		ent, ok := b.entry(stream)
		if !ok || ent.streams == nil {
			f.logger.V(1).Info("curve without sample streams",
				"name", cv.Name, "stream", stream)
			continue
		}
		x, okX := ent.streams[volumesStream]
		y, okY := ent.streams[amplitudesStream]
		if !okX || !okY {
			// Edited traces carry amplitudes with no volume axis;
			// they are not materialized.
			f.logger.V(1).Info("curve with incomplete coordinate data",
				"name", cv.Name, "stream", stream)
			continue
		}

		name := cv.Name
		if name == "UV cell path length" {
			// Renamed so channel globs for "UV" do not pick up the
			// cell geometry trace.
			name = "xUV cell path length"
		}

		n := len(x)
		if len(y) < n {
			n = len(y)
		}
		samples := make([]Sample, n)
		for i := 0; i < n; i++ {
			samples[i] = Sample{Volume: x[i], Amplitude: y[i]}
		}

		f.upsertChannel(&Channel{
			RunName:  "Blank",
			DataName: name,
			DataType: TypeCurve,
			Unit:     cv.AmplitudeUnit,
			Samples:  samples,
		})
	}

	return f.cleanupBundle(b)
}

// cleanupBundle drops every bundle entry the manifest enumerates, plus the
// manifest itself, leaving only the materialized channels behind.
func (f *File) cleanupBundle(b *bundle) error {
	ent, ok := b.entry(manifestName)
	if !ok {
		return fmt.Errorf("%w: bundle has no %s",
			ErrUnsupportedFormat, manifestName)
	}

	var manifest manifestXML
	if err := xml.Unmarshal(ent.raw, &manifest); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedBlock, manifestName, err)
	}

	for _, file := range manifest.Nodes {
		if len(file.Nodes) == 0 {
			continue
		}
		b.remove(strings.TrimSpace(file.Nodes[0].Text))
	}
	b.remove(manifestName)

	for _, name := range b.names {
		f.logger.V(1).Info("bundle entry not consumed", "entry", name)
	}
	return nil
}
