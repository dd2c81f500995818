package exifgeo

import (
	"fmt"
	"os"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
)

// Embedded is what ReadGeoTag finds in a photo.
type Embedded struct {
	GeoTag
	DateTimeOriginal  string
	DateTimeDigitized string
}

// ReadGeoTag decodes the GPS position and the three date fields from path.
func ReadGeoTag(path string) (Embedded, error) {
	f, err := os.Open(path)
	if err != nil {
		return Embedded{}, fmt.Errorf("%w: open: %w", ErrIO, err)
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return Embedded{}, fmt.Errorf("%w: decode %s: %w", ErrCorruptMetadata, path, err)
	}

	e := Embedded{}
	e.Latitude, e.Longitude, err = x.LatLong()
	if err != nil {
		return e, fmt.Errorf("lat/long: %w", err)
	}

	tag, err := x.Get(exif.GPSAltitude)
	if err != nil {
		return e, fmt.Errorf("altitude: %w", err)
	}
	r, err := tag.Rat(0)
	if err != nil {
		return e, fmt.Errorf("altitude: %w", err)
	}
	e.Altitude, _ = r.Float64()

	for _, f := range []struct {
		name exif.FieldName
		dst  *string
	}{
		{exif.DateTime, &e.Timestamp},
		{exif.DateTimeOriginal, &e.DateTimeOriginal},
		{exif.DateTimeDigitized, &e.DateTimeDigitized},
	} {
		tag, err := x.Get(f.name)
		if err != nil {
			return e, fmt.Errorf("%s: %w", f.name, err)
		}
		s, err := tag.StringVal()
		if err != nil {
			return e, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = strings.TrimRight(s, "\x00")
	}

	return e, nil
}
