package geotag

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrNoSource is returned unless exactly one position source is configured.
var ErrNoSource = errors.New("exactly one of trajectory, NMEA log or image list is required")

// Config holds configuration for a geotagging run.
type Config struct {
	PhotoDir  string
	Recursive bool

	// Position sources; exactly one must be set.
	TrajectoryFile string
	NMEAFile       string
	ImageList      string

	// TrajectoryCRS is the coordinate system of trajectory file positions.
	TrajectoryCRS string

	// Layout names the image-list column layout; LayoutFile adds YAML presets.
	Layout     string
	LayoutFile string

	// ClampStart matches photos taken before the first trajectory sample to that sample.
	ClampStart bool

	Workers     int
	BackupDir   string
	JournalPath string
	Resume      bool
	DryRun      bool

	// Progress receives one "progress: n/total" line per photo. Defaults to stdout.
	Progress io.Writer
}

func (c *Config) validate() error {
	if c.PhotoDir == "" {
		return errors.New("photo directory is required")
	}

	n := 0
	for _, s := range []string{c.TrajectoryFile, c.NMEAFile, c.ImageList} {
		if s != "" {
			n++
		}
	}
	if n != 1 {
		return ErrNoSource
	}

	if c.Resume && c.JournalPath == "" {
		return fmt.Errorf("resume requires a journal")
	}
	return nil
}

func (c *Config) workers() int {
	if c.Workers < 1 {
		return 1
	}
	return c.Workers
}

func (c *Config) progress() io.Writer {
	if c.Progress == nil {
		return os.Stdout
	}
	return c.Progress
}
