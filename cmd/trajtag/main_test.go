package main

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tstromberg/trajtag/pkg/exifgeo"
	"github.com/tstromberg/trajtag/pkg/geotag"
)

const trajectory = "Week\tSecond\tQ\tLon\tLat\tHeight\n" +
	"2200\t345597\t1\t15.5\t42.25\t100\n" +
	"2200\t345607\t1\t15.6\t42.26\t110\n"

func TestNewWriter(t *testing.T) {
	w, err := newWriter("native")
	require.NoError(t, err)
	assert.NoError(t, w.Close())

	_, err = newWriter("gimp")
	assert.Error(t, err)
}

func TestWatchTagsPhotoCopiedInSlowly(t *testing.T) {
	dir := t.TempDir()
	traj := filepath.Join(t.TempDir(), "traj.txt")
	require.NoError(t, os.WriteFile(traj, []byte(trajectory), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tg, err := geotag.New(ctx, &geotag.Config{PhotoDir: dir, TrajectoryFile: traj}, exifgeo.NewNative())
	require.NoError(t, err)
	defer tg.Close()

	errc := make(chan error, 1)
	go func() { errc <- watch(ctx, dir, tg, 400*time.Millisecond) }()
	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	b := new(bytes.Buffer)
	require.NoError(t, jpeg.Encode(b, image.NewGray(image.Rect(0, 0, 8, 8)), nil))

	// Seconds-of-week 345600, inside the trajectory.
	photo := filepath.Join(dir, "cam0_746668800000000_0001.jpg")
	require.NoError(t, os.WriteFile(photo, b.Bytes()[:10], 0o644))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(photo, b.Bytes(), 0o644))

	require.Eventually(t, func() bool {
		g, err := exifgeo.ReadGeoTag(photo)
		return err == nil && g.Latitude != 0
	}, 10*time.Second, 100*time.Millisecond)

	g, err := exifgeo.ReadGeoTag(photo)
	require.NoError(t, err)
	assert.InDelta(t, 42.25, g.Latitude, 1e-5)

	cancel()
	assert.NoError(t, <-errc)
}
