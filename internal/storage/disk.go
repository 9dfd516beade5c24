package storage

import (
	"io/fs"
	"os"
	"path/filepath"
)

// Footprint is the on-disk size of the index artifacts, keyed by the name the caller gave.
type Footprint struct {
	Parts map[string]int64 `json:"parts"`
	Total int64            `json:"total"`
}

// MeasureFootprint sums the size of each named path. A path may be a file or a directory.
// Empty and missing paths count as zero.
func MeasureFootprint(paths map[string]string) (Footprint, error) {
	fp := Footprint{Parts: make(map[string]int64, len(paths))}
	for name, p := range paths {
		n, err := sizeOf(p)
		if err != nil {
			return Footprint{}, err
		}
		fp.Parts[name] = n
		fp.Total += n
	}
	return fp, nil
}

func sizeOf(p string) (int64, error) {
	if p == "" {
		return 0, nil
	}
	info, err := os.Stat(p)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		return info.Size(), nil
	}

	var total int64
	err = filepath.WalkDir(p, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		total += fi.Size()
		return nil
	})
	return total, err
}
