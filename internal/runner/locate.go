package runner

import (
	"fmt"
	"io/fs"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"bist/pkg/logging"
)

// DefaultInclude is used when a directory target has no include patterns.
var DefaultInclude = []string{"*.star", "*.go", "*.m"}

// Locate resolves name against the working directory, then each search
// path entry. It reports whether a regular file was found.
func Locate(name string, searchPath []string) (string, bool) {
	if isFile(name) {
		return name, true
	}
	if filepath.IsAbs(name) {
		return name, false
	}
	for _, dir := range searchPath {
		candidate := filepath.Join(dir, name)
		if isFile(candidate) {
			return candidate, true
		}
	}
	return name, false
}

// Collect expands targets into the ordered list of files to run. Directory
// targets are walked for files matching include, skipping hidden
// directories. Unresolved names are kept as given so they are reported as
// files without tests.
func Collect(targets, searchPath, include []string) ([]string, error) {
	if len(include) == 0 {
		include = DefaultInclude
	}

	seen := make(map[string]bool)
	var files []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}

	for _, target := range targets {
		if info, err := os.Stat(target); err == nil && info.IsDir() {
			found, err := walk(target, include)
			if err != nil {
				return nil, err
			}
			for _, f := range found {
				add(f)
			}
			continue
		}

		if strings.ContainsAny(target, "*?[") {
			matches, err := filepath.Glob(target)
			if err != nil {
				return nil, fmt.Errorf("invalid pattern %q: %w", target, err)
			}
			sort.Strings(matches)
			for _, m := range matches {
				if isFile(m) {
					add(m)
				}
			}
			continue
		}

		path, ok := Locate(target, searchPath)
		if !ok {
			logging.Warn("Runner", "%s not found", target)
		}
		add(path)
	}
	return files, nil
}

func walk(root string, include []string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		for _, pattern := range include {
			if ok, _ := filepath.Match(pattern, d.Name()); ok {
				files = append(files, path)
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	return files, nil
}

// Shuffle returns files in an order determined by seed. A zero seed picks
// one from the clock; the seed used is returned so a run can be repeated.
func Shuffle(files []string, seed uint64) ([]string, uint64) {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	out := append([]string(nil), files...)
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out, seed
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
