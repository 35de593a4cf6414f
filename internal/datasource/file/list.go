// Package file implements the local filesystem data source: discovery of
// input files under a root directory and context-aware opening of a single
// file.
package file

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// ListJSON walks root recursively and returns the paths of all regular
// files with a .json extension (case-insensitive).
//
// The result is sorted lexicographically. Ordering carries no load-order
// semantics, but a deterministic sequence keeps runs reproducible and makes
// "N/M files processed" output stable across invocations.
func ListJSON(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(d.Name()), ".json") {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", root, err)
	}
	sort.Strings(out)
	return out, nil
}
