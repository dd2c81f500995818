package geotag

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/karrick/godirwalk"
	"k8s.io/klog/v2"
)

// IsPhoto reports whether path has a JPEG extension.
func IsPhoto(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return true
	}
	return false
}

// Find returns the JPEG files in root, sorted by path. Hidden entries are
// ignored and subdirectories are only entered when recursive is set.
func Find(root string, recursive bool) ([]string, error) {
	found := []string{}
	root = filepath.Clean(root)

	err := godirwalk.Walk(root, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if path == root {
				return nil
			}

			if filepath.Base(path)[0] == '.' {
				return godirwalk.SkipThis
			}

			isDir, err := de.IsDirOrSymlinkToDir()
			if err != nil {
				return err
			}
			if isDir {
				if !recursive {
					return godirwalk.SkipThis
				}
				return nil
			}

			if IsPhoto(path) {
				klog.V(1).Infof("found %s", path)
				found = append(found, path)
			}
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	sort.Strings(found)
	return found, nil
}
