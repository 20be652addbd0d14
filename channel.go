// Copyright 2024 Chromtools. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package unicorn

// DataType identifies the payload variant held by a Channel.
type DataType int

const (
	// TypeUnknown marks a directory entry whose block kind has not been
	// decoded (yet). Channels of this type never survive a full Parse.
	TypeUnknown DataType = iota

	// TypeMeta is a text blob: the run's method/program or stored notes.
	TypeMeta

	// TypeAnnotation is a sparse series of (volume, label) events:
	// logbook lines, fraction marks, injection marks.
	TypeAnnotation

	// TypeCurve is a sensor trace: (volume, amplitude) samples with a
	// physical unit.
	TypeCurve
)

// String stringifies the channel data type.
func (dt DataType) String() string {
	switch dt {
	case TypeMeta:
		return "meta"
	case TypeAnnotation:
		return "annotation"
	case TypeCurve:
		return "curve"
	}
	return "unknown"
}

// Sample is one decoded sensor reading against elution volume.
type Sample struct {
	// Volume in millilitres, rebased against the selected injection point.
	Volume float64 `json:"volume"`

	// Amplitude in the channel's physical unit.
	Amplitude float64 `json:"amplitude"`
}

// Event is one entry of an annotation series.
type Event struct {
	// Volume in millilitres, rebased against the selected injection point.
	Volume float64 `json:"volume"`

	// Label is the event text as stored by the instrument.
	Label string `json:"label"`
}

// Channel is one named data stream recovered from a result file. Exactly one
// of the payload fields is populated, according to DataType.
type Channel struct {
	// RunName is the run the channel belongs to. May be empty.
	RunName string `json:"run_name,omitempty"`

	// DataName is the display name the channel is looked up by.
	DataName string `json:"data_name"`

	// DataType selects the payload variant.
	DataType DataType `json:"data_type"`

	// Raw RESv3 directory fields, retained for debugging and re-reads.
	// Zero for channels recovered from a RESv6 bundle.
	MagicID   []byte `json:"magic_id,omitempty"`
	BlockSize uint32 `json:"block_size,omitempty"`
	OffNext   uint32 `json:"off_next,omitempty"`
	Address   uint32 `json:"address,omitempty"`
	OffData   uint32 `json:"off_data,omitempty"`

	// Text is the payload of a meta channel.
	Text string `json:"text,omitempty"`

	// Unit is the physical unit of a curve channel.
	Unit string `json:"unit,omitempty"`

	// Events is the payload of an annotation channel, ordered by volume.
	Events []Event `json:"events,omitempty"`

	// Samples is the payload of a curve channel, ordered by volume.
	Samples []Sample `json:"samples,omitempty"`
}

// dataStart returns the absolute file offset of the channel's block data.
func (c *Channel) dataStart() uint32 {
	return c.Address + c.OffData
}

// dataEnd returns the absolute file offset one past the channel's block data.
func (c *Channel) dataEnd() uint32 {
	return c.Address + c.BlockSize
}

// upsertChannel inserts a channel, or, when a channel with the same display
// name already exists, overwrites its directory fields in place. The channel
// order is fixed by the first occurrence of each name.
func (f *File) upsertChannel(c *Channel) {
	if prev, ok := f.byName[c.DataName]; ok {
		prev.RunName = c.RunName
		prev.MagicID = c.MagicID
		prev.BlockSize = c.BlockSize
		prev.OffNext = c.OffNext
		prev.Address = c.Address
		prev.OffData = c.OffData
		return
	}
	f.channels = append(f.channels, c)
	f.byName[c.DataName] = c
}

// removeChannel drops a channel by display name, preserving the order of the
// remaining channels. Unknown names are ignored.
func (f *File) removeChannel(name string) {
	if _, ok := f.byName[name]; !ok {
		return
	}
	delete(f.byName, name)
	for i, c := range f.channels {
		if c.DataName == name {
			f.channels = append(f.channels[:i], f.channels[i+1:]...)
			break
		}
	}
}

// Channels returns every channel in discovery order. The returned slice is
// shared with the File and must not be modified.
func (f *File) Channels() []*Channel {
	return f.channels
}

// Channel looks up a channel by display name. Lookup is case sensitive; a
// missing channel is reported through the boolean, never as an error.
func (f *File) Channel(name string) (*Channel, bool) {
	c, ok := f.byName[name]
	return c, ok
}
