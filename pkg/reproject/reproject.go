// Package reproject transforms projected coordinates between coordinate reference systems.
package reproject

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/wroge/wgs84"
)

// WGS84 is the geographic output system (longitude, latitude).
const WGS84 = "EPSG:4326"

var (
	// ErrUnsupportedCRS is returned for malformed or unknown CRS identifiers.
	ErrUnsupportedCRS = errors.New("unsupported crs")
	// ErrOutOfDomain is returned when a transform yields no usable coordinate.
	ErrOutOfDomain = errors.New("coordinate out of domain")
)

var epsg = registry()

// Point is a geographic position, longitude first.
type Point struct {
	Lon float64
	Lat float64
}

// ParseEPSG extracts the numeric code from identifiers such as "EPSG:32633",
// "epsg:32633", "32633" or "WGS84".
func ParseEPSG(id string) (int, error) {
	s := strings.TrimSpace(id)
	switch strings.ToUpper(s) {
	case "WGS84", "WGS 84", "CRS84":
		return 4326, nil
	}

	if i := strings.IndexByte(s, ':'); i >= 0 {
		if !strings.EqualFold(s[:i], "epsg") {
			return 0, fmt.Errorf("%w: %q", ErrUnsupportedCRS, id)
		}
		s = s[i+1:]
	}

	code, err := strconv.Atoi(s)
	if err != nil || code <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedCRS, id)
	}
	return code, nil
}

// IsGeographic reports whether id names WGS84 geographic coordinates.
func IsGeographic(id string) bool {
	code, err := ParseEPSG(id)
	return err == nil && code == 4326
}

// Reproject transforms (x, y) given in from into to, which defaults to WGS84.
// Input follows the source axis order as easting/northing; the result is
// always longitude then latitude. On failure the zero Point is returned along
// with an error and must not be used.
func Reproject(x, y float64, from, to string) (p Point, err error) {
	if to == "" {
		to = WGS84
	}

	src, err := ParseEPSG(from)
	if err != nil {
		return Point{}, err
	}
	dst, err := ParseEPSG(to)
	if err != nil {
		return Point{}, err
	}

	if !finite(x) || !finite(y) {
		return Point{}, fmt.Errorf("%w: (%v, %v)", ErrOutOfDomain, x, y)
	}

	if src == dst {
		return Point{Lon: x, Lat: y}, nil
	}

	srcCRS, dstCRS := epsg.Code(src), epsg.Code(dst)
	if srcCRS == nil {
		return Point{}, fmt.Errorf("%w: EPSG:%d is not known", ErrUnsupportedCRS, src)
	}
	if dstCRS == nil {
		return Point{}, fmt.Errorf("%w: EPSG:%d is not known", ErrUnsupportedCRS, dst)
	}

	defer func() {
		if rec := recover(); rec != nil {
			p = Point{}
			err = fmt.Errorf("%w: panic transforming (%v, %v): %v", ErrOutOfDomain, x, y, rec)
		}
	}()

	lon, lat, _, err := wgs84.SafeTransform(srcCRS, dstCRS)(x, y, 0)
	switch {
	case errors.Is(err, wgs84.ErrOutOfBounds):
		return Point{}, fmt.Errorf("%w: (%v, %v) outside EPSG:%d -> EPSG:%d", ErrOutOfDomain, x, y, src, dst)
	case err != nil:
		return Point{}, fmt.Errorf("%w: EPSG:%d -> EPSG:%d: %v", ErrUnsupportedCRS, src, dst, err)
	}
	if !finite(lon) || !finite(lat) {
		return Point{}, fmt.Errorf("%w: (%v, %v) in EPSG:%d", ErrOutOfDomain, x, y, src)
	}
	if dst == 4326 && (math.Abs(lat) > 90 || math.Abs(lon) > 180) {
		return Point{}, fmt.Errorf("%w: (%v, %v) -> (%v, %v)", ErrOutOfDomain, x, y, lon, lat)
	}

	return Point{Lon: lon, Lat: lat}, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
