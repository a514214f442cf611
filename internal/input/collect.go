package input

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// Collect returns the supported files under root in lexical order.
//
// A root that is a single file yields a one-element list when its extension is
// allowed and an empty list otherwise. A missing root yields an empty list.
// Directories are scanned one level deep unless recursive is set.
func Collect(root string, recursive bool) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to stat %s: %w", root, err)
	}

	if !info.IsDir() {
		if Supported(root) {
			return []string{root}, nil
		}
		return nil, nil
	}

	var files []string
	if recursive {
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if isFile(path, d) && Supported(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", root, err)
		}
	} else {
		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, fmt.Errorf("failed to read directory %s: %w", root, err)
		}
		for _, e := range entries {
			path := filepath.Join(root, e.Name())
			if isFile(path, e) && Supported(path) {
				files = append(files, path)
			}
		}
	}

	return dedupe(files), nil
}

// isFile reports whether the entry is a regular file, following symlinks.
func isFile(path string, d fs.DirEntry) bool {
	if d.Type().IsRegular() {
		return true
	}
	if d.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func dedupe(files []string) []string {
	sort.Strings(files)
	out := files[:0]
	var last string
	for i, f := range files {
		if i > 0 && f == last {
			continue
		}
		out = append(out, f)
		last = f
	}
	return out
}
