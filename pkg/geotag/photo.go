package geotag

import (
	"github.com/tstromberg/trajtag/pkg/imagelist"
	"github.com/tstromberg/trajtag/pkg/trajectory"
)

// Fix is a GPS time and position in its source coordinate system.
type Fix struct {
	Week   int
	Second float64
	X      float64
	Y      float64
	Height float64
	CRS    string
}

func fixFromSample(s trajectory.Sample) *Fix {
	return &Fix{Week: s.Week, Second: s.SecondsOfWeek, X: s.X, Y: s.Y, Height: s.Height, CRS: s.CRS}
}

func fixFromRecord(r imagelist.Record) *Fix {
	return &Fix{Week: r.Week, Second: r.Second, X: r.Easting, Y: r.Northing, Height: r.Height, CRS: r.CRS}
}

// Photo is a photo queued for geotagging.
type Photo struct {
	Path string

	// CapturedAt is the capture time in GPS seconds-of-week, set in trajectory modes.
	CapturedAt float64

	// Fix is the matched position, nil until matched.
	Fix *Fix

	// record is the image-list row naming this photo.
	record *imagelist.Record
}

// Outcome is the result of processing one photo.
type Outcome int

const (
	Tagged Outcome = iota
	Skipped
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Tagged:
		return "tagged"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Failure identifies a photo that could not be tagged.
type Failure struct {
	Path string
	Err  error
}

// Result summarizes a run.
type Result struct {
	Total    int
	Tagged   int
	Skipped  int
	Failed   int
	Failures []Failure
}

func (r *Result) add(path string, o Outcome, err error) {
	switch o {
	case Tagged:
		r.Tagged++
	case Skipped:
		r.Skipped++
	case Failed:
		r.Failed++
		r.Failures = append(r.Failures, Failure{Path: path, Err: err})
	}
}
