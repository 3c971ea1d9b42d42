package watch

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/propdocs/plan-extractor/constants"
)

type ScanStats struct {
	Scanned uint32
	Matched uint32
	Failed  uint32
}

// ScanDirectory walks root and returns the plan documents it accepts,
// filtered by includeExts (or the default set), skipping hidden entries when
// requested. Walk errors on individual entries do not stop the scan.
func ScanDirectory(root string, includeExts []string, skipHidden bool) ([]string, ScanStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, ScanStats{}, errors.New("root path is required")
	}

	exts := map[string]struct{}{}
	if len(includeExts) == 0 {
		exts = constants.AllowedExtensions
	} else {
		for _, e := range includeExts {
			e = constants.NormalizeExt(strings.TrimSpace(e))
			if e != "" {
				exts[e] = struct{}{}
			}
		}
	}

	var paths []string
	var stats ScanStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		stats.Scanned++
		if walkErr != nil {
			stats.Failed++
			return nil // continue walking
		}
		if skipHidden && isHidden(path) && path != root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !allowed(path, exts) {
			return nil
		}
		stats.Matched++
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return paths, stats, err
	}
	return paths, stats, nil
}

func isHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
