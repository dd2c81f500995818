// trajtag geotags a directory of JPEG photos from a GPS trajectory or a processed image list.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"k8s.io/klog/v2"

	"github.com/tstromberg/trajtag/pkg/exifgeo"
	"github.com/tstromberg/trajtag/pkg/geotag"
	"github.com/tstromberg/trajtag/pkg/imagelist"
	"github.com/tstromberg/trajtag/pkg/reproject"
)

var (
	photoDir   = flag.String("photos", "", "Photo directory (required)")
	trajFile   = flag.String("trajectory", "", "Tab-separated trajectory file")
	nmeaFile   = flag.String("nmea", "", "NMEA 0183 log with RMC/GGA sentences")
	imageList  = flag.String("image-list", "", "Processed image list CSV")
	trajCRS    = flag.String("crs", reproject.WGS84, "Coordinate system of trajectory file positions")
	layout     = flag.String("layout", imagelist.Auto, "Image list column layout: auto, default, easting-first or a name from -layouts")
	layoutFile = flag.String("layouts", "", "YAML file with additional image list layouts")
	workers    = flag.Int("workers", 1, "Number of photos to process concurrently")
	backend    = flag.String("backend", "native", "Metadata writer: native or exiftool")
	backupDir  = flag.String("backup", "", "Copy original photos here before modifying them")
	journal    = flag.String("journal", "", "SQLite journal of per-photo outcomes")
	resume     = flag.Bool("resume", false, "Skip photos the journal records as tagged")
	recursive  = flag.Bool("recursive", false, "Include photos in subdirectories")
	clampStart = flag.Bool("clamp-start", false, "Tag photos taken before the trajectory starts with its first sample")
	dryRun     = flag.Bool("n", false, "dry-run mode, don't write metadata")
	watchFlag  = flag.Bool("watch", false, "watch the photo directory and tag new photos")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	if *photoDir == "" {
		klog.Exitf("--photos is a required flag")
	}

	c := &geotag.Config{
		PhotoDir:       *photoDir,
		Recursive:      *recursive,
		TrajectoryFile: *trajFile,
		NMEAFile:       *nmeaFile,
		ImageList:      *imageList,
		TrajectoryCRS:  *trajCRS,
		Layout:         *layout,
		LayoutFile:     *layoutFile,
		ClampStart:     *clampStart,
		Workers:        *workers,
		BackupDir:      *backupDir,
		JournalPath:    *journal,
		Resume:         *resume,
		DryRun:         *dryRun,
		Progress:       os.Stdout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w, err := newWriter(*backend)
	if err != nil {
		klog.Exitf("writer: %v", err)
	}
	defer func() {
		if err := w.Close(); err != nil {
			klog.Errorf("close writer: %v", err)
		}
	}()

	t, err := geotag.New(ctx, c, w)
	if err != nil {
		klog.Exitf("setup failed: %v", err)
	}
	defer t.Close()

	res, err := t.Run(ctx)
	if err != nil {
		if errors.Is(err, geotag.ErrNoPhotos) {
			klog.Exitf("No photos found in %s", *photoDir)
		}
		klog.Exitf("run failed: %v", err)
	}

	for _, f := range res.Failures {
		fmt.Fprintf(os.Stderr, "Could not tag %s: %v\n", f.Path, f.Err)
	}

	if *watchFlag {
		if err := watch(ctx, *photoDir, t, quietPeriod); err != nil {
			klog.Exitf("watch failed: %v", err)
		}
	}
}

func newWriter(name string) (exifgeo.Writer, error) {
	switch name {
	case "native":
		return exifgeo.NewNative(), nil
	case "exiftool":
		et, err := exifgeo.NewExiftool()
		if err != nil {
			return nil, err
		}
		return et, nil
	}
	return nil, fmt.Errorf("unknown backend %q", name)
}

// quietPeriod is how long a new photo must go without further writes before it is tagged.
const quietPeriod = 2 * time.Second

// watch tags JPEG files as they appear in dir until ctx is cancelled. A photo
// is tagged once it has been quiet for settle; photos that fail are retried
// on their next write.
func watch(ctx context.Context, dir string, t *geotag.Tagger, settle time.Duration) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("new watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return fmt.Errorf("add %s: %w", dir, err)
	}
	klog.Infof("watching %s for new photos ...", dir)

	tick := time.NewTicker(settle / 4)
	defer tick.Stop()

	// Our own in-place rewrites show up as creates too.
	done := map[string]bool{}
	pending := map[string]time.Time{}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !geotag.IsPhoto(event.Name) || done[event.Name] {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				pending[event.Name] = time.Now()
			}
		case <-tick.C:
			for path, last := range pending {
				if time.Since(last) < settle {
					continue
				}
				delete(pending, path)

				// Failures are logged by the tagger.
				o, err := t.Tag(ctx, path)
				if err != nil {
					continue
				}
				done[path] = true
				klog.Infof("%s: %s", path, o)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			klog.Errorf("watch error: %v", err)
		}
	}
}
