package exifgeo

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	exif "github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
	jpegstructure "github.com/dsoprea/go-jpeg-image-structure/v2"
	"k8s.io/klog/v2"

	"github.com/tstromberg/trajtag/pkg/rational"
)

// Native rewrites the EXIF segment of JPEG files in pure Go. Tags outside
// the GPS IFD and the three date fields are carried over unchanged.
type Native struct{}

// NewNative returns a Native writer.
func NewNative() *Native {
	return &Native{}
}

// Apply embeds g into the JPEG at path.
func (n *Native) Apply(path string, g GeoTag) error {
	e, err := g.encode()
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	data, mode, err := sniff(path)
	if err != nil {
		return err
	}

	out, err := rewrite(data, e, g.Timestamp)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	if err := replaceFile(path, out, mode); err != nil {
		return err
	}

	klog.V(1).Infof("wrote %s: lat=%s%v lon=%s%v alt=%v time=%s", path, e.latRef, e.lat, e.lonRef, e.lon, e.alt, g.Timestamp)
	return nil
}

// Close is a no-op.
func (n *Native) Close() error {
	return nil
}

func rewrite(data []byte, e encoded, ts string) (out []byte, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			out = nil
			err = fmt.Errorf("%w: panic while rewriting: %v", ErrCorruptMetadata, rec)
		}
	}()

	jmp := jpegstructure.NewJpegMediaParser()
	mc, err := jmp.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%w: parse jpeg: %w", ErrCorruptMetadata, err)
	}

	sl, ok := mc.(*jpegstructure.SegmentList)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected media context %T", ErrUnsupportedFormat, mc)
	}

	rootIb, err := rootBuilder(sl)
	if err != nil {
		return nil, err
	}

	if err := setGPS(rootIb, e); err != nil {
		return nil, fmt.Errorf("%w: gps ifd: %w", ErrCorruptMetadata, err)
	}
	if err := setDates(rootIb, ts); err != nil {
		return nil, fmt.Errorf("%w: dates: %w", ErrCorruptMetadata, err)
	}

	if err := sl.SetExif(rootIb); err != nil {
		return nil, fmt.Errorf("%w: set exif: %w", ErrCorruptMetadata, err)
	}

	b := new(bytes.Buffer)
	if err := sl.Write(b); err != nil {
		return nil, fmt.Errorf("%w: encode jpeg: %w", ErrCorruptMetadata, err)
	}
	return b.Bytes(), nil
}

// rootBuilder returns a builder over the existing EXIF data, or an empty one
// when the JPEG carries no EXIF segment yet.
func rootBuilder(sl *jpegstructure.SegmentList) (*exif.IfdBuilder, error) {
	_, _, err := sl.FindExif()
	if errors.Is(err, exif.ErrNoExif) {
		im, err := exifcommon.NewIfdMappingWithStandard()
		if err != nil {
			return nil, fmt.Errorf("ifd mapping: %w", err)
		}
		ti := exif.NewTagIndex()
		return exif.NewIfdBuilder(im, ti, exifcommon.IfdStandardIfdIdentity, exifcommon.EncodeDefaultByteOrder), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: find exif: %w", ErrCorruptMetadata, err)
	}

	rootIb, err := sl.ConstructExifBuilder()
	if err != nil {
		return nil, fmt.Errorf("%w: decode exif: %w", ErrCorruptMetadata, err)
	}
	return rootIb, nil
}

func setGPS(rootIb *exif.IfdBuilder, e encoded) error {
	ib, err := exif.GetOrCreateIbFromRootIb(rootIb, "IFD/GPSInfo")
	if err != nil {
		return err
	}

	lat, err := toExif(e.lat[:])
	if err != nil {
		return fmt.Errorf("latitude: %w", err)
	}
	lon, err := toExif(e.lon[:])
	if err != nil {
		return fmt.Errorf("longitude: %w", err)
	}
	alt, err := toExif([]rational.Rational{e.alt})
	if err != nil {
		return fmt.Errorf("altitude: %w", err)
	}

	tags := []struct {
		name  string
		value interface{}
	}{
		{"GPSVersionID", []byte{2, 0, 0, 0}},
		{"GPSAltitudeRef", []byte{0}},
		{"GPSAltitude", alt},
		{"GPSLatitudeRef", e.latRef},
		{"GPSLatitude", lat},
		{"GPSLongitudeRef", e.lonRef},
		{"GPSLongitude", lon},
	}
	for _, t := range tags {
		if err := ib.SetStandardWithName(t.name, t.value); err != nil {
			return fmt.Errorf("set %s: %w", t.name, err)
		}
	}
	return nil
}

func setDates(rootIb *exif.IfdBuilder, ts string) error {
	if err := rootIb.SetStandardWithName("DateTime", ts); err != nil {
		return fmt.Errorf("set DateTime: %w", err)
	}

	exifIb, err := exif.GetOrCreateIbFromRootIb(rootIb, "IFD/Exif")
	if err != nil {
		return err
	}
	for _, name := range []string{"DateTimeOriginal", "DateTimeDigitized"} {
		if err := exifIb.SetStandardWithName(name, ts); err != nil {
			return fmt.Errorf("set %s: %w", name, err)
		}
	}
	return nil
}

func toExif(rs []rational.Rational) ([]exifcommon.Rational, error) {
	out := make([]exifcommon.Rational, 0, len(rs))
	for _, r := range rs {
		if r.Num < 0 || r.Den <= 0 || r.Num > math.MaxUint32 || r.Den > math.MaxUint32 {
			return nil, fmt.Errorf("%s does not fit an unsigned rational", r)
		}
		out = append(out, exifcommon.Rational{Numerator: uint32(r.Num), Denominator: uint32(r.Den)})
	}
	return out, nil
}
