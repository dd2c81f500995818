package trajectory

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTrajectory = "Week\tSecond\tQuality\tLon\tLat\tHeight\tRoll\n" +
	"2200\t100.0\t1\t15.1\t42.1\t10.0\t0\n" +
	"2200\t110.0\t1\t15.2\t42.2\t20.0\t0\n" +
	"2200\t120.0\t1\t15.3\t42.3\t30.0\t0\n" +
	"2200\t130.0\t1\t15.4\t42.4\t40.0\t0\n"

func testTrack(t *testing.T) *Track {
	t.Helper()
	tr, err := Read(strings.NewReader(sampleTrajectory), "EPSG:4326")
	require.NoError(t, err)
	return tr
}

func TestRead(t *testing.T) {
	tr := testTrack(t)
	require.Len(t, tr.Samples, 4)

	assert.Equal(t, Sample{
		Week:          2200,
		SecondsOfWeek: 110,
		X:             15.2,
		Y:             42.2,
		Height:        20,
		CRS:           "EPSG:4326",
		Line:          3,
	}, tr.Samples[1])

	lo, hi := tr.Bounds()
	assert.Equal(t, 100.0, lo)
	assert.Equal(t, 130.0, hi)
}

func TestReadErrors(t *testing.T) {
	_, err := Read(strings.NewReader("header only\n"), "EPSG:4326")
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = Read(strings.NewReader("h\n2200\tabc\t1\t2\t3\t4\n"), "EPSG:4326")
	assert.ErrorContains(t, err, "line 2")

	_, err = Read(strings.NewReader("h\n2200\t1\t2\n"), "EPSG:4326")
	assert.ErrorContains(t, err, "columns")
}

func TestReadLineEndingsAndBlankLines(t *testing.T) {
	in := "Week\tSecond\tQ\tLon\tLat\tHeight\r\n" +
		"2200\t100\t1\t15.1\t42.1\t10\r\n" +
		"\r\n" +
		"   \n" +
		"2200\t110\t1\t15.2\t42.2\t20\r\n"

	tr, err := Read(strings.NewReader(in), "EPSG:4326")
	require.NoError(t, err)
	require.Len(t, tr.Samples, 2)
	assert.Equal(t, 2, tr.Samples[0].Line)
	assert.Equal(t, 5, tr.Samples[1].Line)
	assert.Equal(t, 20.0, tr.Samples[1].Height)
}

func TestLoad(t *testing.T) {
	p := filepath.Join(t.TempDir(), "traj.txt")
	require.NoError(t, os.WriteFile(p, []byte(sampleTrajectory), 0o600))

	tr, err := Load(p, "EPSG:4326")
	require.NoError(t, err)
	assert.Len(t, tr.Samples, 4)

	_, err = Load(filepath.Join(t.TempDir(), "missing.txt"), "EPSG:4326")
	assert.Error(t, err)
}

func TestNearest(t *testing.T) {
	tr := testTrack(t)

	tests := []struct {
		name   string
		sow    float64
		want   float64
		wantOK bool
	}{
		{name: "closer to before", sow: 113, want: 110, wantOK: true},
		{name: "closer to after", sow: 117, want: 120, wantOK: true},
		{name: "tie goes to before", sow: 115, want: 110, wantOK: true},
		{name: "exact sample", sow: 120, want: 120, wantOK: true},
		{name: "first sample", sow: 100, want: 100, wantOK: true},
		{name: "before track", sow: 99.9, wantOK: false},
		{name: "on last sample", sow: 130, wantOK: false},
		{name: "after track", sow: 131, wantOK: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, ok := tr.Nearest(tc.sow)
			assert.Equal(t, tc.wantOK, ok)
			if tc.wantOK {
				assert.Equal(t, tc.want, s.SecondsOfWeek)
			}
		})
	}
}

func TestNearestClampStart(t *testing.T) {
	tr := testTrack(t)
	tr.ClampStart = true

	s, ok := tr.Nearest(50)
	require.True(t, ok)
	assert.Equal(t, 100.0, s.SecondsOfWeek)

	_, ok = tr.Nearest(500)
	assert.False(t, ok)
}

func TestCaptureFromFilename(t *testing.T) {
	got, err := CaptureFromFilename("/photos/cam0_746668800000000_0001.jpg")
	require.NoError(t, err)
	assert.Equal(t, 345600.0, got)

	got, err = CaptureFromFilename("cam0_1500000.jpg")
	require.NoError(t, err)
	assert.Equal(t, 1.5, got)

	for _, name := range []string{"IMG0001.jpg", "cam_abc_1.jpg", "cam_-5_1.jpg"} {
		_, err := CaptureFromFilename(name)
		assert.ErrorIs(t, err, ErrBadFilename, name)
	}
}

const sampleNMEA = `$GPGGA,120000.00,4215.0000,N,01530.0000,E,1,08,0.9,100.5,M,45.0,M,,*6E
$GPRMC,120000.00,A,4215.0000,N,01530.0000,E,0.0,0.0,090322,004.2,W*40
garbage line
$GPRMC,120001.00,A,4215.0060,N,01530.0060,E,0.0,0.0,090322,004.2,W*41
$GPGGA,120001.00,4215.0060,N,01530.0060,E,1,08,0.9,101.0,M,45.0,M,,*6B
$GPRMC,120002.00,V,4215.0060,N,01530.0060,E,0.0,0.0,090322,004.2,W*55
$GPRMC,120003.00,A,4215.0060,N,01530.0060,E,0.0,0.0,090322,004.2,W*00
`

func TestReadNMEA(t *testing.T) {
	tr, err := ReadNMEA(strings.NewReader(sampleNMEA))
	require.NoError(t, err)
	require.Len(t, tr.Samples, 2)

	first := tr.Samples[0]
	assert.Equal(t, 2200, first.Week)
	assert.InDelta(t, 302418.0, first.SecondsOfWeek, 1e-6)
	assert.InDelta(t, 15.5, first.X, 1e-9)
	assert.InDelta(t, 42.25, first.Y, 1e-9)
	assert.Equal(t, 100.5, first.Height)
	assert.Equal(t, "EPSG:4326", first.CRS)

	second := tr.Samples[1]
	assert.InDelta(t, 302419.0, second.SecondsOfWeek, 1e-6)
	assert.Equal(t, 101.0, second.Height)

	_, err = ReadNMEA(strings.NewReader("nothing here\n"))
	assert.ErrorIs(t, err, ErrEmpty)
}

// Fixes at 23:59:58 and 00:00:02 GPS time around the week 2200/2201 boundary.
const rolloverNMEA = `$GPRMC,235940.00,A,4215.0000,N,01530.0000,E,0.0,0.0,120322,004.2,W*40
$GPRMC,235944.00,A,4215.0060,N,01530.0060,E,0.0,0.0,120322,004.2,W*44
`

func TestNearestAcrossWeekRollover(t *testing.T) {
	tr, err := ReadNMEA(strings.NewReader(rolloverNMEA))
	require.NoError(t, err)
	require.Len(t, tr.Samples, 2)
	assert.Equal(t, 2200, tr.Samples[0].Week)
	assert.InDelta(t, 604798.0, tr.Samples[0].SecondsOfWeek, 1e-6)
	assert.Equal(t, 2201, tr.Samples[1].Week)
	assert.InDelta(t, 2.0, tr.Samples[1].SecondsOfWeek, 1e-6)

	tests := []struct {
		sow      float64
		wantOK   bool
		wantWeek int
	}{
		{604799, true, 2200},
		{604798, true, 2200},
		{1, true, 2201},
		{2, false, 0},
		{0, true, 2200},
		{3, false, 0},
		{604797, false, 0},
	}
	for _, tc := range tests {
		got, ok := tr.Nearest(tc.sow)
		assert.Equal(t, tc.wantOK, ok, "sow=%v", tc.sow)
		if ok {
			assert.Equal(t, tc.wantWeek, got.Week, "sow=%v", tc.sow)
		}
	}
}

func TestNearestTSVWeekRollover(t *testing.T) {
	tr, err := Read(strings.NewReader("Week\tSecond\tQ\tX\tY\tH\n"+
		"2200\t604790\t1\t15.0\t42.0\t1\n"+
		"2201\t10\t1\t15.1\t42.1\t2\n"), "EPSG:4326")
	require.NoError(t, err)

	got, ok := tr.Nearest(5)
	require.True(t, ok)
	assert.Equal(t, 2201, got.Week)

	got, ok = tr.Nearest(604795)
	require.True(t, ok)
	assert.Equal(t, 2200, got.Week)
}
