// Package exifgeo embeds GPS position and capture time into JPEG EXIF metadata.
package exifgeo

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/tstromberg/trajtag/pkg/rational"
)

// MinAltitude replaces non-positive altitudes: the altitude reference written is always "above sea level".
const MinAltitude = 1.0

var (
	// ErrUnsupportedFormat is returned for files that are not JPEG images.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrCorruptMetadata is returned when the EXIF container cannot be decoded or rebuilt.
	ErrCorruptMetadata = errors.New("corrupt metadata")
	// ErrIO is returned when a photo cannot be read or written.
	ErrIO = errors.New("i/o failure")
)

var jpegMagic = []byte{0xFF, 0xD8, 0xFF}

// GeoTag is the position and time to embed into a photo.
type GeoTag struct {
	Latitude  float64
	Longitude float64
	Altitude  float64

	// Timestamp is an EXIF formatted UTC time, "2006:01:02 15:04:05".
	Timestamp string
}

// Writer applies a GeoTag to a photo in place.
type Writer interface {
	Apply(path string, g GeoTag) error
	Close() error
}

// encoded holds the EXIF-ready representation of a GeoTag.
type encoded struct {
	latRef string
	lat    [3]rational.Rational
	lonRef string
	lon    [3]rational.Rational
	alt    rational.Rational

	latDMS rational.DMS
	lonDMS rational.DMS
	altM   float64
}

// StoredAltitude returns the altitude as it will be written.
func (g GeoTag) StoredAltitude() float64 {
	if g.Altitude <= 0 || math.IsNaN(g.Altitude) {
		return MinAltitude
	}
	return rational.Round(g.Altitude, 2)
}

func (g GeoTag) encode() (encoded, error) {
	e := encoded{}
	if math.Abs(g.Latitude) > 90 || math.Abs(g.Longitude) > 180 {
		return e, fmt.Errorf("position out of range: %v, %v", g.Latitude, g.Longitude)
	}

	e.latDMS = rational.DegreesToDMS(g.Latitude, "S", "N")
	e.lonDMS = rational.DegreesToDMS(g.Longitude, "W", "E")
	e.latRef = e.latDMS.Ref
	e.lonRef = e.lonDMS.Ref

	var err error
	if e.lat, err = e.latDMS.Rationals(); err != nil {
		return e, fmt.Errorf("latitude: %w", err)
	}
	if e.lon, err = e.lonDMS.Rationals(); err != nil {
		return e, fmt.Errorf("longitude: %w", err)
	}

	e.altM = g.StoredAltitude()
	if e.alt, err = rational.ToRational(e.altM); err != nil {
		return e, fmt.Errorf("altitude: %w", err)
	}
	return e, nil
}

// sniff verifies that path is a readable JPEG and returns its contents.
func sniff(path string) ([]byte, os.FileMode, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: stat %s: %w", ErrIO, path, err)
	}
	if !fi.Mode().IsRegular() {
		return nil, 0, fmt.Errorf("%w: %s is not a regular file", ErrUnsupportedFormat, path)
	}

	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: read %s: %w", ErrIO, path, err)
	}
	if !bytes.HasPrefix(bs, jpegMagic) {
		return nil, 0, fmt.Errorf("%w: %s is not a JPEG", ErrUnsupportedFormat, path)
	}
	return bs, fi.Mode().Perm(), nil
}

// replaceFile writes data next to path and renames it over path.
func replaceFile(path string, data []byte, mode os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("%w: create temp: %w", ErrIO, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write %s: %w", ErrIO, tmp.Name(), err)
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: chmod: %w", ErrIO, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close: %w", ErrIO, err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: rename: %w", ErrIO, err)
	}
	return nil
}

// Classify returns the failure class of err: ErrUnsupportedFormat,
// ErrCorruptMetadata, ErrIO, or nil for errors outside the metadata taxonomy.
func Classify(err error) error {
	for _, c := range []error{ErrUnsupportedFormat, ErrCorruptMetadata, ErrIO} {
		if errors.Is(err, c) {
			return c
		}
	}
	return nil
}
