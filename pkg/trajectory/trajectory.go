// Package trajectory loads time-ordered GPS trajectories and matches capture times against them.
package trajectory

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"k8s.io/klog/v2"

	"github.com/tstromberg/trajtag/pkg/gpstime"
)

// Column positions in a tab-separated trajectory file.
const (
	colWeek   = 0
	colSecond = 1
	colX      = 3
	colY      = 4
	colHeight = 5
)

// microsPerWeek is one GPS week in microseconds.
const microsPerWeek = gpstime.SecondsPerWeek * 1_000_000

var (
	// ErrEmpty is returned when a trajectory holds no samples.
	ErrEmpty = errors.New("empty trajectory")
	// ErrBadFilename is returned when no capture counter can be found in a photo name.
	ErrBadFilename = errors.New("no capture time in filename")
)

// Sample is one timestamped trajectory position.
type Sample struct {
	Week          int
	SecondsOfWeek float64

	// X and Y follow the source CRS axis order: easting/northing, or longitude/latitude.
	X      float64
	Y      float64
	Height float64
	CRS    string

	// Line is the 1-based input line the sample was read from.
	Line int
}

// Track is an in-memory trajectory, ordered by week and seconds-of-week as read.
type Track struct {
	Samples []Sample

	// ClampStart makes Nearest return the first sample for capture times
	// preceding the whole track instead of reporting no match.
	ClampStart bool
}

// Read parses a tab-separated trajectory. The first line is a header and is
// skipped. Positions are tagged with crs.
func Read(r io.Reader, crs string) (*Track, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	if _, err := cr.Read(); err != nil {
		if err == io.EOF {
			return nil, ErrEmpty
		}
		return nil, fmt.Errorf("header: %w", err)
	}

	t := &Track{}
	for {
		fs, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read: %w", err)
		}
		if len(fs) == 1 && strings.TrimSpace(fs[0]) == "" {
			continue
		}
		line, _ := cr.FieldPos(0)

		s, err := parseRow(fs)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		s.CRS = crs
		s.Line = line
		t.Samples = append(t.Samples, s)
	}

	if len(t.Samples) == 0 {
		return nil, ErrEmpty
	}
	return t, nil
}

// Load reads a trajectory file from disk.
func Load(path string, crs string) (*Track, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	t, err := Read(f, crs)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	klog.Infof("loaded %d trajectory samples from %s (%s)", len(t.Samples), path, crs)
	return t, nil
}

func parseRow(fs []string) (Sample, error) {
	if len(fs) <= colHeight {
		return Sample{}, fmt.Errorf("want at least %d columns, got %d", colHeight+1, len(fs))
	}

	s := Sample{}
	week, err := strconv.ParseFloat(strings.TrimSpace(fs[colWeek]), 64)
	if err != nil {
		return s, fmt.Errorf("week: %w", err)
	}
	s.Week = int(week)

	vals := []*float64{&s.SecondsOfWeek, &s.X, &s.Y, &s.Height}
	for i, col := range []int{colSecond, colX, colY, colHeight} {
		v, err := strconv.ParseFloat(strings.TrimSpace(fs[col]), 64)
		if err != nil {
			return s, fmt.Errorf("column %d: %w", col, err)
		}
		*vals[i] = v
	}
	return s, nil
}

// Nearest returns the sample closest in time to sow. It looks at the first
// sample later than sow and the one preceding it, preferring the earlier one
// on a tie. Capture times after the last sample never match; times before
// the first sample only match when ClampStart is set.
//
// Capture times carry no week, so on a track that crosses a week rollover sow
// is matched in whichever covered week places it inside the track.
func (t *Track) Nearest(sow float64) (Sample, bool) {
	n := len(t.Samples)
	if n == 0 {
		return Sample{}, false
	}

	at := t.since(sow)
	after := sort.Search(n, func(i int) bool {
		return t.key(i) > at
	})

	if after == n {
		return Sample{}, false
	}
	if after == 0 {
		if t.ClampStart {
			return t.Samples[0], true
		}
		return Sample{}, false
	}

	if at-t.key(after-1) <= t.key(after)-at {
		return t.Samples[after-1], true
	}
	return t.Samples[after], true
}

// key is the time of sample i in seconds from the start of the first sample's week.
func (t *Track) key(i int) float64 {
	s := t.Samples[i]
	return float64(s.Week-t.Samples[0].Week)*gpstime.SecondsPerWeek + s.SecondsOfWeek
}

// since places sow on the key axis, in the first covered week where it
// falls within the track, or unchanged when there is none.
func (t *Track) since(sow float64) float64 {
	first, last := t.key(0), t.key(len(t.Samples)-1)
	for at := sow; at <= last; at += gpstime.SecondsPerWeek {
		if at >= first {
			return at
		}
	}
	return sow
}

// Bounds returns the first and last sample times.
func (t *Track) Bounds() (float64, float64) {
	if len(t.Samples) == 0 {
		return math.NaN(), math.NaN()
	}
	return t.Samples[0].SecondsOfWeek, t.Samples[len(t.Samples)-1].SecondsOfWeek
}

// CaptureFromFilename derives seconds-of-week from a photo name such as
// "cam0_1646870397123456_0001.jpg": the second underscore-separated field is
// a microsecond counter, reduced modulo one week.
func CaptureFromFilename(name string) (float64, error) {
	base := filepath.Base(name)
	parts := strings.Split(base, "_")
	if len(parts) < 2 {
		return 0, fmt.Errorf("%w: %q", ErrBadFilename, base)
	}

	field := strings.SplitN(parts[1], ".", 2)[0]
	n, err := strconv.ParseUint(field, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrBadFilename, base, err)
	}

	return float64(n%microsPerWeek) / 1e6, nil
}
