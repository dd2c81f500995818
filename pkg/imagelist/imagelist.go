// Package imagelist reads processed image-list CSV files, where every row names its photo
// together with a GPS time and a projected position.
package imagelist

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"k8s.io/klog/v2"
)

// cameraPrefix is stripped from photo names before they are joined with the photo directory.
const cameraPrefix = "camera/"

// ErrNoRows is returned for image lists without data rows.
var ErrNoRows = errors.New("image list has no rows")

// Record is one image-list row.
type Record struct {
	Photo    string
	Week     int
	Second   float64
	CRS      string
	Easting  float64
	Northing float64
	Height   float64

	// Line is the 1-based CSV line number.
	Line int

	// Err is set when the row names a photo but its other values could not be
	// decoded. Such a record carries no usable position.
	Err error
}

// List is a parsed image list with the layout it was read with.
type List struct {
	Layout  Layout
	Records []Record
}

// Read parses a comma-separated image list. The header row is consumed and
// used to resolve layoutName against ls once, before any row is decoded.
// Rows that cannot be tied to a photo are logged and dropped; rows that name
// a photo but hold bad values are kept with Err set.
func Read(r io.Reader, layoutName string, ls map[string]Layout) (*List, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}

	if ls == nil {
		ls = Presets()
	}
	l, err := ResolveLayout(layoutName, header, ls)
	if err != nil {
		return nil, err
	}
	klog.V(1).Infof("image list layout: %+v", l)

	list := &List{Layout: l}
	line := 1
	for {
		fs, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			klog.Warningf("image list line %d: %v", line, err)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(fs) == 1 && strings.TrimSpace(fs[0]) == "" {
			continue
		}

		rec, err := parseRecord(fs, l)
		rec.Line = line
		if err != nil {
			if rec.Photo == "" {
				klog.Warningf("image list line %d: %v", line, err)
				continue
			}
			klog.Warningf("image list line %d (%s): %v", line, rec.Photo, err)
			rec.Err = err
		}
		list.Records = append(list.Records, rec)
	}

	if len(list.Records) == 0 {
		return nil, ErrNoRows
	}
	return list, nil
}

// Load reads an image list from disk.
func Load(path string, layoutName string, ls map[string]Layout) (*List, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	list, err := Read(f, layoutName, ls)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	klog.Infof("loaded %d image list rows from %s using layout %q", len(list.Records), path, list.Layout.Name)
	return list, nil
}

func parseRecord(fs []string, l Layout) (Record, error) {
	if len(fs) <= l.maxColumn() {
		return Record{}, fmt.Errorf("want at least %d columns, got %d", l.maxColumn()+1, len(fs))
	}

	rec := Record{
		Photo: strings.ReplaceAll(strings.TrimSpace(fs[l.Photo]), cameraPrefix, ""),
	}
	if rec.Photo == "" {
		return rec, fmt.Errorf("empty photo name in column %d", l.Photo)
	}

	week, err := strconv.ParseFloat(strings.TrimSpace(fs[l.Week]), 64)
	if err != nil {
		return rec, fmt.Errorf("week: %w", err)
	}
	rec.Week = int(week)

	epsg := strings.TrimSpace(fs[l.EPSG])
	if _, err := strconv.Atoi(epsg); err == nil {
		epsg = "EPSG:" + epsg
	}
	rec.CRS = epsg

	fields := []struct {
		name string
		col  int
		dst  *float64
	}{
		{"second", l.Second, &rec.Second},
		{"easting", l.Easting, &rec.Easting},
		{"northing", l.Northing, &rec.Northing},
		{"height", l.Height, &rec.Height},
	}
	for _, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(fs[f.col]), 64)
		if err != nil {
			return rec, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = v
	}

	return rec, nil
}

// ByPhoto indexes records by photo name. Later rows win.
func (l *List) ByPhoto() map[string]Record {
	m := make(map[string]Record, len(l.Records))
	for _, r := range l.Records {
		m[r.Photo] = r
	}
	return m
}
