package trajectory

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/adrianmo/go-nmea"
	"k8s.io/klog/v2"

	"github.com/tstromberg/trajtag/pkg/gpstime"
	"github.com/tstromberg/trajtag/pkg/reproject"
)

// ReadNMEA builds a track from NMEA 0183 sentences. Valid RMC sentences
// supply date, time and position; GGA sentences for the same fix supply the
// altitude. Unparseable lines are skipped.
func ReadNMEA(r io.Reader) (*Track, error) {
	t := &Track{}
	sc := bufio.NewScanner(r)

	var (
		gga     nmea.GGA
		haveGGA bool
		lastFix nmea.Time
		line    int
	)

	for sc.Scan() {
		line++
		raw := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(raw, "$") {
			continue
		}

		s, err := nmea.Parse(raw)
		if err != nil {
			klog.V(1).Infof("line %d: skipping %q: %v", line, raw, err)
			continue
		}

		switch m := s.(type) {
		case nmea.GGA:
			gga, haveGGA = m, true
			if n := len(t.Samples); n > 0 && lastFix == m.Time {
				t.Samples[n-1].Height = m.Altitude
			}
		case nmea.RMC:
			if m.Validity != nmea.ValidRMC || !m.Date.Valid || !m.Time.Valid {
				continue
			}
			week, sow := gpstime.FromTime(fixTime(m.Date, m.Time))
			smp := Sample{
				Week:          week,
				SecondsOfWeek: sow,
				X:             m.Longitude,
				Y:             m.Latitude,
				CRS:           reproject.WGS84,
				Line:          line,
			}
			if haveGGA && gga.Time == m.Time {
				smp.Height = gga.Altitude
			}
			t.Samples = append(t.Samples, smp)
			lastFix = m.Time
		}
	}

	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	if len(t.Samples) == 0 {
		return nil, ErrEmpty
	}
	return t, nil
}

// LoadNMEA reads an NMEA log from disk.
func LoadNMEA(path string) (*Track, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	t, err := ReadNMEA(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	klog.Infof("loaded %d NMEA fixes from %s", len(t.Samples), path)
	return t, nil
}

func fixTime(d nmea.Date, t nmea.Time) time.Time {
	return time.Date(2000+d.YY, time.Month(d.MM), d.DD, t.Hour, t.Minute, t.Second, t.Millisecond*int(time.Millisecond), time.UTC)
}
