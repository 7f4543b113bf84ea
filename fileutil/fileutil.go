// Package fileutil finds candidate music files under root paths.
package fileutil

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.senan.xyz/rgain/tags"
)

// ResolveRoots normalises root paths for walking: absolute, symlinks
// resolved, duplicates removed, and any path living under an earlier one
// elided. The result is sorted.
func ResolveRoots(paths []string) ([]string, error) {
	var resolved []string
	for _, p := range paths {
		p, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("abs %q: %w", p, err)
		}
		if r, err := filepath.EvalSymlinks(p); err == nil {
			p = r
		}
		resolved = append(resolved, p)
	}
	sort.Strings(resolved)

	// parents sort before children, so one pass catches redundant subpaths
	var roots []string
	for _, p := range resolved {
		if len(roots) > 0 && isSubpath(p, roots[len(roots)-1]) {
			continue
		}
		roots = append(roots, p)
	}
	return roots, nil
}

func isSubpath(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// WalkMusicFiles calls fn for every recognised music file under root,
// recursively, following symlinks. A directory's own files are all yielded
// before descending into any of its subdirectories, so callers grouping by
// directory see each one as a single contiguous run. Dot hidden files and
// directories are skipped unless includeHidden. Directories already
// visited through another link are not descended again.
func WalkMusicFiles(root string, includeHidden bool, fn func(path string) error) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		if tags.CanRead(root) {
			return fn(root)
		}
		return nil
	}

	seen := map[string]struct{}{}
	return walkDir(root, includeHidden, seen, fn)
}

func walkDir(dir string, includeHidden bool, seen map[string]struct{}, fn func(path string) error) error {
	if real, err := filepath.EvalSymlinks(dir); err == nil {
		if _, ok := seen[real]; ok {
			return nil
		}
		seen[real] = struct{}{}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir: %w", err)
	}

	// this directory's files first, subdirectories after, so that every
	// directory's files arrive as one contiguous run
	var subdirs []string
	for _, entry := range entries {
		if !includeHidden && strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		path := filepath.Join(dir, entry.Name())

		mode := entry.Type()
		if mode&fs.ModeSymlink != 0 {
			info, err := os.Stat(path)
			if err != nil {
				continue // dangling link
			}
			mode = info.Mode()
		}

		switch {
		case mode.IsDir():
			subdirs = append(subdirs, path)
		case mode.IsRegular() && tags.CanRead(path):
			if err := fn(path); err != nil {
				return err
			}
		}
	}

	for _, sub := range subdirs {
		if err := walkDir(sub, includeHidden, seen, fn); err != nil {
			return err
		}
	}
	return nil
}
