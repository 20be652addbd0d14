// Copyright 2024 Chromtools. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package unicorn

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
	mmap "github.com/edsrzf/mmap-go"
	"github.com/go-logr/logr"
)

// Format identifies the container version of a result file.
type Format int

const (
	// FormatUnknown marks an input that matched neither container.
	FormatUnknown Format = iota

	// FormatRes3 is the monolithic RESv3 binary with a fixed-offset block
	// directory.
	FormatRes3

	// FormatRes6 is the RESv6 bundle: a zip archive of zip archives plus
	// XML metadata.
	FormatRes6
)

// String stringifies the container format.
func (fm Format) String() string {
	switch fm {
	case FormatRes3:
		return "RESv3"
	case FormatRes6:
		return "RESv6"
	}
	return "unknown"
}

// parseState tracks how far a File has progressed through Parse. A failed
// transition leaves the previous state intact.
type parseState int

const (
	stateUnloaded parseState = iota
	stateHeaderParsed
	stateInjectionsResolved
	stateLoaded
)

// options holds the construction parameters of a File.
type options struct {
	reduce int
	injSel int
	logger logr.Logger
}

// Option configures a File at construction time.
type Option func(*options)

// WithReduce keeps only every n-th curve sample. n must be positive;
// 1 (the default) keeps everything.
func WithReduce(n int) Option {
	return func(o *options) {
		o.reduce = n
	}
}

// WithInjection selects the injection point used as the volume origin.
// Negative values count from the end of the discovered injection points;
// the default -1 selects the last one. An out-of-range index falls back to
// the last injection point with a warning.
func WithInjection(k int) Option {
	return func(o *options) {
		o.injSel = k
	}
}

// WithLogger sets the logger used for parse diagnostics. The default
// discards everything.
func WithLogger(logger logr.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// A File represents an open chromatography result file. Its exported fields
// are populated by Parse and are read-only afterwards; a parsed File may be
// shared across goroutines without synchronization.
type File struct {
	// FileName is the source path. Empty for in-memory buffers.
	FileName string `json:"file_name"`

	// Format is the detected container version.
	Format Format `json:"format"`

	// RunName is the canonical run name, taken from the logbook channel
	// when one exists.
	RunName string `json:"run_name"`

	// User is the operator name stored in the RESv3 file header.
	User string `json:"user,omitempty"`

	// InjectionPoints are the raw volumes (ml) at which injections
	// occurred. Element 0 is always 0.0.
	InjectionPoints []float64 `json:"injection_points"`

	// InjSel is the resolved index into InjectionPoints.
	InjSel int `json:"inj_sel"`

	// InjectVol is the volume subtracted from every reported volume.
	InjectVol float64 `json:"inject_vol"`

	// Reduce is the sample-decimation factor applied to curves.
	Reduce int `json:"reduce"`

	// Warnings collects non-fatal findings, such as an out-of-range
	// injection selection.
	Warnings []string `json:"warnings,omitempty"`

	channels []*Channel
	byName   map[string]*Channel

	data     []byte
	mapped   mmap.MMap
	size     uint32
	checksum uint64
	f        *os.File
	opts     options
	logger   logr.Logger
	state    parseState
}

// New instantiates a File given a path to a .res or .zip result file. The
// file is memory mapped; call Close when done.
func New(name string, opts ...Option) (*File, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}

	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, err
	}

	file, err := newFile(name, data, opts)
	if err != nil {
		data.Unmap()
		f.Close()
		return nil, err
	}
	file.mapped = data
	file.f = f
	return file, nil
}

// NewBytes instantiates a File over an in-memory buffer. Format detection
// falls back to magic bytes alone since there is no file extension.
func NewBytes(data []byte, opts ...Option) (*File, error) {
	return newFile("", data, opts)
}

func newFile(name string, data []byte, opts []Option) (*File, error) {
	o := options{
		reduce: 1,
		injSel: -1,
		logger: logr.Discard(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.reduce < 1 {
		return nil, fmt.Errorf("%w: reduce must be positive, got %d",
			ErrBadOption, o.reduce)
	}

	return &File{
		FileName: name,
		Format:   detectFormat(name, data),
		Reduce:   o.reduce,
		byName:   make(map[string]*Channel),
		data:     data,
		size:     uint32(len(data)),
		checksum: xxhash.Sum64(data),
		opts:     o,
		logger:   o.logger,
	}, nil
}

// Close releases the File's memory mapping.
func (f *File) Close() error {
	if f.mapped != nil {
		_ = f.mapped.Unmap()
		f.mapped = nil
	}

	if f.f != nil {
		return f.f.Close()
	}
	return nil
}

// Checksum returns a 64-bit digest of the raw source bytes, computed at
// construction time.
func (f *File) Checksum() uint64 {
	return f.checksum
}

// detectFormat decides the container version by extension, validated against
// the leading magic bytes. Extensionless inputs fall back to the magic alone.
func detectFormat(name string, data []byte) Format {
	byMagic := FormatUnknown
	switch {
	case bytes.HasPrefix(data, resMagic):
		byMagic = FormatRes3
	case bytes.HasPrefix(data, zipMagic):
		byMagic = FormatRes6
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".res":
		if byMagic != FormatRes3 {
			return FormatUnknown
		}
	case ".zip":
		if byMagic != FormatRes6 {
			return FormatUnknown
		}
	}
	return byMagic
}

// Parse decodes the result file into the channel model. Parsing a loaded
// File is a no-op; a failed Parse leaves the File in its last successful
// lifecycle state and may be retried.
func (f *File) Parse() error {
	if f.state == stateLoaded {
		return nil
	}

	switch f.Format {
	case FormatRes3:
		return f.parseRes3()
	case FormatRes6:
		return f.parseRes6()
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedFormat, f.FileName)
}

func (f *File) parseRes3() error {
	if err := f.parseHeader(); err != nil {
		return err
	}

	if lb, ok := f.Channel("Logbook"); ok {
		f.RunName = lb.RunName
	}

	if user, err := f.readStoredUser(); err == nil {
		f.User = user
	}

	if err := f.resolveInjections(); err != nil {
		return err
	}

	if err := f.decodeBlocks(); err != nil {
		return err
	}

	f.state = stateLoaded
	return nil
}

func (f *File) parseRes6() error {
	b, err := f.loadBundle()
	if err != nil {
		return err
	}
	f.state = stateHeaderParsed

	// The v6 XML carries volumes already rebased by the instrument, so the
	// resolver pass reduces to selecting within the bare origin.
	f.InjectionPoints = []float64{0.0}
	f.selectInjection()
	f.state = stateInjectionsResolved

	if err := f.linkChromatogram(b); err != nil {
		return err
	}

	if lb, ok := f.Channel("Logbook"); ok {
		f.RunName = lb.RunName
	}

	f.state = stateLoaded
	return nil
}

// decodeBlocks runs the per-kind block decoders over every directory entry,
// dropping entries that carry no decodable payload.
// TODO: consider keeping undecoded directory entries for diagnostics.
func (f *File) decodeBlocks() error {
	var drop []string
	for _, c := range f.channels {
		if c.BlockSize == 0 {
			drop = append(drop, c.DataName)
			continue
		}

		switch {
		case isAnnotationID(c.MagicID):
			events, err := f.readAnnotations(c, f.InjectVol)
			if err != nil {
				return err
			}
			c.DataType = TypeAnnotation
			c.Events = events

		case isNotesID(c.MagicID):
			text, err := f.readNotes(c)
			if err != nil {
				return err
			}
			c.DataType = TypeMeta
			c.Text = text

		case isSensorID(c.MagicID):
			samples, unit, err := f.readSensor(c, f.InjectVol, f.Reduce)
			if err != nil {
				return err
			}
			c.DataType = TypeCurve
			c.Samples = samples
			c.Unit = unit

		default:
			drop = append(drop, c.DataName)
		}
	}

	for _, name := range drop {
		f.logger.V(1).Info("dropping directory entry without payload",
			"name", name)
		f.removeChannel(name)
	}
	return nil
}
