package batch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/MeKo-Tech/roikit/internal/utils"
)

// fileFilter selects batch inputs by base name. Exclude patterns win over
// include patterns; with no include patterns any supported image passes.
type fileFilter struct {
	include, exclude []string
}

func (f fileFilter) accepts(path string) bool {
	base := filepath.Base(path)
	if globAny(f.exclude, base) {
		return false
	}
	if len(f.include) == 0 {
		return utils.IsSupportedImage(path)
	}
	return globAny(f.include, base)
}

func globAny(patterns []string, name string) bool {
	return slices.ContainsFunc(patterns, func(p string) bool {
		ok, _ := filepath.Match(p, name)
		return ok
	})
}

// discoverImageFiles expands files and directories into a sorted,
// duplicate-free list of inputs.
func discoverImageFiles(args []string, recursive bool, include, exclude []string) ([]string, error) {
	filter := fileFilter{include: include, exclude: exclude}
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}
		if !info.IsDir() {
			if filter.accepts(arg) {
				files = append(files, arg)
			}
			continue
		}
		found, err := walkInputs(arg, recursive, filter)
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}
	slices.Sort(files)
	return slices.Compact(files), nil
}

// walkInputs lists accepted files below root. Hidden subdirectories are
// never entered; others only when recursive is set.
func walkInputs(root string, recursive bool, filter fileFilter) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		switch {
		case err != nil:
			return err
		case d.IsDir() && path == root:
			return nil
		case d.IsDir():
			if !recursive || strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		case filter.accepts(path):
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
