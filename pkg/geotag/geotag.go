// Package geotag drives a geotagging run: it matches photos to positions,
// converts them, and writes them into each photo.
package geotag

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/otiai10/copy"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/tstromberg/trajtag/pkg/exifgeo"
	"github.com/tstromberg/trajtag/pkg/gpstime"
	"github.com/tstromberg/trajtag/pkg/imagelist"
	"github.com/tstromberg/trajtag/pkg/journal"
	"github.com/tstromberg/trajtag/pkg/reproject"
	"github.com/tstromberg/trajtag/pkg/trajectory"
)

// ErrNoPhotos is returned when the photo directory holds no JPEG files.
var ErrNoPhotos = errors.New("no photos found")

// Tagger geotags photos from one loaded position source.
type Tagger struct {
	c *Config
	w exifgeo.Writer

	track   *trajectory.Track
	records map[string]imagelist.Record
	list    *imagelist.List
	journal *journal.Journal
}

// New validates c and loads its position source. The returned Tagger must be closed.
func New(ctx context.Context, c *Config, w exifgeo.Writer) (*Tagger, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}

	t := &Tagger{c: c, w: w}
	var err error

	switch {
	case c.TrajectoryFile != "":
		crs := c.TrajectoryCRS
		if crs == "" {
			crs = reproject.WGS84
		}
		if _, err := reproject.ParseEPSG(crs); err != nil {
			return nil, fmt.Errorf("trajectory crs: %w", err)
		}
		t.track, err = trajectory.Load(c.TrajectoryFile, crs)
	case c.NMEAFile != "":
		t.track, err = trajectory.LoadNMEA(c.NMEAFile)
	case c.ImageList != "":
		var ls map[string]imagelist.Layout
		ls, err = imagelist.LoadLayouts(c.LayoutFile)
		if err != nil {
			return nil, fmt.Errorf("layouts: %w", err)
		}
		t.list, err = imagelist.Load(c.ImageList, c.Layout, ls)
		if err == nil {
			t.records = t.list.ByPhoto()
		}
	}
	if err != nil {
		return nil, err
	}

	if t.track != nil {
		t.track.ClampStart = c.ClampStart
		lo, hi := t.track.Bounds()
		klog.Infof("trajectory covers seconds-of-week %.3f .. %.3f", lo, hi)
	}

	if c.JournalPath != "" {
		t.journal, err = journal.Open(ctx, c.JournalPath)
		if err != nil {
			return nil, fmt.Errorf("journal: %w", err)
		}
	}

	return t, nil
}

// Close releases the journal.
func (t *Tagger) Close() error {
	if t.journal != nil {
		return t.journal.Close()
	}
	return nil
}

// photos lists the work for a run, in processing order.
func (t *Tagger) photos(paths []string) []*Photo {
	if t.list == nil {
		ps := make([]*Photo, 0, len(paths))
		for _, p := range paths {
			ps = append(ps, &Photo{Path: p})
		}
		return ps
	}

	ps := make([]*Photo, 0, len(t.list.Records))
	for i := range t.list.Records {
		r := &t.list.Records[i]
		ps = append(ps, &Photo{Path: filepath.Join(t.c.PhotoDir, r.Photo), record: r})
	}
	return ps
}

// Run geotags every photo. Per-photo failures are logged and counted; only
// missing photos or cancellation end the run early with an error.
func (t *Tagger) Run(ctx context.Context) (*Result, error) {
	paths, err := Find(t.c.PhotoDir, t.c.Recursive)
	if err != nil {
		return nil, err
	}
	klog.Infof("camera directory %s: %d photos", t.c.PhotoDir, len(paths))
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoPhotos, t.c.PhotoDir)
	}

	ps := t.photos(paths)
	res := &Result{Total: len(ps)}

	var (
		mu   sync.Mutex
		done atomic.Int64
		out  = t.c.progress()
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.c.workers())

	for _, p := range ps {
		if gctx.Err() != nil {
			break
		}
		p := p
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			o, err := t.process(gctx, p)

			mu.Lock()
			defer mu.Unlock()
			res.add(p.Path, o, err)
			fmt.Fprintf(out, "progress: %d/%d\n", done.Add(1), res.Total)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return res, err
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	klog.Infof("finished: %d photos, %d tagged, %d skipped, %d failed", res.Total, res.Tagged, res.Skipped, res.Failed)
	return res, nil
}

// Tag geotags the single photo at path, looking it up in the image list when one is loaded.
func (t *Tagger) Tag(ctx context.Context, path string) (Outcome, error) {
	p := &Photo{Path: path}
	if t.records != nil {
		r, ok := t.records[filepath.Base(path)]
		if !ok {
			klog.Infof("%s: not in image list", path)
			return Skipped, nil
		}
		p.record = &r
	}
	return t.process(ctx, p)
}

func (t *Tagger) process(ctx context.Context, p *Photo) (Outcome, error) {
	o, g, err := t.tag(ctx, p)
	switch o {
	case Failed:
		if c := exifgeo.Classify(err); c != nil {
			klog.Errorf("could not tag %s (%v): %v", p.Path, c, err)
		} else {
			klog.Errorf("could not tag %s: %v", p.Path, err)
		}
	case Skipped:
		klog.V(1).Infof("skipped %s", p.Path)
	case Tagged:
		klog.Infof("tagged %s: lat=%.7f lon=%.7f alt=%.2f time=%s", p.Path, g.Latitude, g.Longitude, g.StoredAltitude(), g.Timestamp)
	}

	if t.journal != nil && !t.c.DryRun && ctx.Err() == nil {
		e := journal.Entry{Path: p.Path, Status: o.String(), Timestamp: g.Timestamp}
		if o == Tagged {
			e.Latitude, e.Longitude, e.Altitude = g.Latitude, g.Longitude, g.StoredAltitude()
		}
		if err != nil {
			e.Error = err.Error()
		}
		if jerr := t.journal.Record(ctx, e); jerr != nil {
			klog.Warningf("journal: %v", jerr)
		}
	}
	return o, err
}

func (t *Tagger) tag(ctx context.Context, p *Photo) (Outcome, exifgeo.GeoTag, error) {
	g := exifgeo.GeoTag{}

	if t.c.Resume && t.journal != nil {
		done, err := t.journal.Tagged(ctx, p.Path)
		if err != nil {
			return Failed, g, err
		}
		if done {
			return Skipped, g, nil
		}
	}

	if err := t.match(p); err != nil {
		return Failed, g, err
	}
	if p.Fix == nil {
		return Skipped, g, nil
	}

	g, err := geoTag(p.Fix)
	if err != nil {
		return Failed, g, err
	}

	if t.c.DryRun {
		klog.Infof("dry-run: would tag %s", p.Path)
		return Tagged, g, nil
	}

	if err := t.backup(p.Path); err != nil {
		return Failed, g, err
	}
	if err := t.w.Apply(p.Path, g); err != nil {
		return Failed, g, err
	}
	return Tagged, g, nil
}

// match sets p.Fix. A nil Fix without error means the photo has no position.
func (t *Tagger) match(p *Photo) error {
	if p.record != nil {
		if p.record.Err != nil {
			return fmt.Errorf("image list line %d: %w", p.record.Line, p.record.Err)
		}
		if _, err := os.Stat(p.Path); err != nil {
			klog.V(1).Infof("%s: listed photo not present: %v", p.Path, err)
			return nil
		}
		p.Fix = fixFromRecord(*p.record)
		return nil
	}

	sow, err := trajectory.CaptureFromFilename(p.Path)
	if err != nil {
		return err
	}
	p.CapturedAt = sow

	s, ok := t.track.Nearest(sow)
	if !ok {
		klog.V(1).Infof("%s: capture time %.6f is outside the trajectory", p.Path, sow)
		return nil
	}
	p.Fix = fixFromSample(s)
	return nil
}

// geoTag converts a fix into geographic coordinates and an EXIF timestamp.
func geoTag(f *Fix) (exifgeo.GeoTag, error) {
	pt, err := reproject.Reproject(f.X, f.Y, f.CRS, reproject.WGS84)
	if err != nil {
		return exifgeo.GeoTag{}, fmt.Errorf("reproject: %w", err)
	}

	ts, err := gpstime.ToCalendarTimestamp(f.Week, f.Second)
	if err != nil {
		return exifgeo.GeoTag{}, fmt.Errorf("gps time: %w", err)
	}

	return exifgeo.GeoTag{
		Latitude:  pt.Lat,
		Longitude: pt.Lon,
		Altitude:  f.Height,
		Timestamp: ts,
	}, nil
}

// backup copies the original photo into the backup directory once.
func (t *Tagger) backup(path string) error {
	if t.c.BackupDir == "" {
		return nil
	}

	rel, err := filepath.Rel(t.c.PhotoDir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(path)
	}
	dst := filepath.Join(t.c.BackupDir, rel)

	if _, err := os.Stat(dst); err == nil {
		return nil
	}
	if err := copy.Copy(path, dst); err != nil {
		return fmt.Errorf("backup %s: %w", path, err)
	}
	return nil
}
