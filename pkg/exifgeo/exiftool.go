package exifgeo

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"

	"github.com/barasher/go-exiftool"
	"k8s.io/klog/v2"
)

// Exiftool writes metadata through a long-running exiftool process.
type Exiftool struct {
	et *exiftool.Exiftool
}

// NewExiftool starts exiftool. It fails when the binary is not installed.
func NewExiftool(opts ...func(*exiftool.Exiftool) error) (*Exiftool, error) {
	et, err := exiftool.NewExiftool(opts...)
	if err != nil {
		return nil, fmt.Errorf("exiftool: %w", err)
	}
	return &Exiftool{et: et}, nil
}

// Apply embeds g into the JPEG at path.
func (e *Exiftool) Apply(path string, g GeoTag) error {
	enc, err := g.encode()
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	if _, _, err := sniff(path); err != nil {
		return err
	}

	fm := exiftool.FileMetadata{File: path, Fields: map[string]interface{}{}}
	fm.SetString("GPSVersionID", "2.0.0.0")
	fm.SetString("GPSAltitudeRef", "Above Sea Level")
	fm.SetFloat("GPSAltitude", enc.altM)
	fm.SetString("GPSLatitudeRef", enc.latRef)
	fm.SetFloat("GPSLatitude", math.Abs(enc.latDMS.Decimal()))
	fm.SetString("GPSLongitudeRef", enc.lonRef)
	fm.SetFloat("GPSLongitude", math.Abs(enc.lonDMS.Decimal()))

	// exiftool names IFD0 DateTime "ModifyDate" and DateTimeDigitized "CreateDate".
	fm.SetString("ModifyDate", g.Timestamp)
	fm.SetString("DateTimeOriginal", g.Timestamp)
	fm.SetString("CreateDate", g.Timestamp)

	fms := []exiftool.FileMetadata{fm}
	e.et.WriteMetadata(fms)
	if err := fms[0].Err; err != nil {
		return fmt.Errorf("%w: exiftool write %s: %w", exiftoolClass(err), path, err)
	}

	klog.V(1).Infof("exiftool wrote %s: %+v", path, fm.Fields)
	return nil
}

// exiftoolClass tells failures to reach the file or the exiftool process
// apart from exiftool rejecting the file's contents.
func exiftoolClass(err error) error {
	var pe *fs.PathError
	switch {
	case errors.Is(err, exiftool.ErrNotExist),
		errors.Is(err, exiftool.ErrNotFile),
		errors.Is(err, exiftool.ErrBufferTooSmall),
		errors.Is(err, fs.ErrNotExist),
		errors.Is(err, fs.ErrPermission),
		errors.Is(err, fs.ErrClosed),
		errors.Is(err, io.ErrClosedPipe),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.As(err, &pe):
		return ErrIO
	}
	return ErrCorruptMetadata
}

// Close stops the exiftool process.
func (e *Exiftool) Close() error {
	return e.et.Close()
}
