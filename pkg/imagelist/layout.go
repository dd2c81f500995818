package imagelist

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Preset names.
const (
	Auto         = "auto"
	Default      = "default"
	EastingFirst = "easting-first"
)

// ErrUnknownLayout is returned when a layout name matches no preset.
var ErrUnknownLayout = errors.New("unknown layout")

// Layout maps image-list fields to zero-based column indices.
type Layout struct {
	Name     string `yaml:"name"`
	Easting  int    `yaml:"easting"`
	Northing int    `yaml:"northing"`
	Height   int    `yaml:"height"`
	Week     int    `yaml:"week"`
	Second   int    `yaml:"second"`
	EPSG     int    `yaml:"epsg"`
	Photo    int    `yaml:"photo"`
}

// maxColumn returns the highest column index the layout reads.
func (l Layout) maxColumn() int {
	m := 0
	for _, c := range []int{l.Easting, l.Northing, l.Height, l.Week, l.Second, l.EPSG, l.Photo} {
		if c > m {
			m = c
		}
	}
	return m
}

func (l Layout) validate() error {
	for _, c := range []int{l.Easting, l.Northing, l.Height, l.Week, l.Second, l.EPSG, l.Photo} {
		if c < 0 {
			return fmt.Errorf("layout %q: negative column %d", l.Name, c)
		}
	}
	return nil
}

// Presets returns the built-in layouts keyed by name.
func Presets() map[string]Layout {
	return map[string]Layout{
		Default: {
			Name:     Default,
			Week:     0,
			Second:   1,
			EPSG:     2,
			Easting:  3,
			Northing: 4,
			Height:   5,
			Photo:    9,
		},
		EastingFirst: {
			Name:     EastingFirst,
			Easting:  0,
			Northing: 1,
			Height:   2,
			Photo:    8,
			Week:     9,
			Second:   10,
			EPSG:     11,
		},
	}
}

type layoutFile struct {
	Layouts []Layout `yaml:"layouts"`
}

// LoadLayouts reads extra named layouts from a YAML file and merges them over the presets.
func LoadLayouts(path string) (map[string]Layout, error) {
	ls := Presets()
	if path == "" {
		return ls, nil
	}

	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}

	var lf layoutFile
	if err := yaml.Unmarshal(bs, &lf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	for _, l := range lf.Layouts {
		if l.Name == "" || l.Name == Auto {
			return nil, fmt.Errorf("%s: layout needs a name other than %q", path, Auto)
		}
		if err := l.validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		ls[l.Name] = l
	}
	return ls, nil
}

// DetectLayout picks a preset from the header row: an "Easting" first column
// selects the easting-first layout, anything else the default one. A leading
// byte order mark and surrounding spaces are ignored.
func DetectLayout(header []string) Layout {
	ps := Presets()
	if len(header) > 0 && strings.TrimSpace(strings.TrimPrefix(header[0], "\ufeff")) == "Easting" {
		return ps[EastingFirst]
	}
	return ps[Default]
}

// ResolveLayout returns the layout named name from ls. "auto" and "" defer to DetectLayout.
func ResolveLayout(name string, header []string, ls map[string]Layout) (Layout, error) {
	if name == "" || name == Auto {
		return DetectLayout(header), nil
	}

	l, ok := ls[name]
	if !ok {
		names := []string{}
		for k := range ls {
			names = append(names, k)
		}
		sort.Strings(names)
		return Layout{}, fmt.Errorf("%w: %q (have %v)", ErrUnknownLayout, name, names)
	}
	return l, nil
}
