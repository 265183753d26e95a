// Package leak detects resources and global names a test file leaves
// behind.
package leak

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"bist/pkg/logging"

	"go.uber.org/goleak"
)

// Sentinel is always considered present in the global namespace.
const Sentinel = "ans"

const defaultFDDir = "/proc/self/fd"

// Snapshot is the state captured before a file's blocks run.
type Snapshot struct {
	Handles map[string]bool
	Names   map[string]bool

	goroutines goleak.Option
}

// Report lists what appeared between a snapshot and the check.
type Report struct {
	File    string   `json:"file"`
	Handles []string `json:"handles,omitempty"`
	Names   []string `json:"names,omitempty"`
}

// Empty reports whether nothing leaked.
func (r Report) Empty() bool {
	return len(r.Handles) == 0 && len(r.Names) == 0
}

// Detector compares open handles and global names around a file run.
type Detector struct {
	// FDDir lists open descriptors; empty disables descriptor tracking.
	FDDir string
	// Goroutines enables goroutine tracking through goleak.
	Goroutines bool
}

// NewDetector returns a detector tracking descriptors and goroutines.
func NewDetector() *Detector {
	return &Detector{FDDir: defaultFDDir, Goroutines: true}
}

// Snapshot captures the current handles and the given global names.
func (d *Detector) Snapshot(names []string) Snapshot {
	s := Snapshot{
		Handles: d.handles(),
		Names:   toSet(names),
	}
	s.Names[Sentinel] = true
	if d.Goroutines {
		s.goroutines = goleak.IgnoreCurrent()
	}
	return s
}

// Check recomputes handles and names and reports anything new. It never
// fails; leaks are logged as warnings attributed to file.
func (d *Detector) Check(file string, before Snapshot, names []string) Report {
	r := Report{File: file}

	for h := range d.handles() {
		if !before.Handles[h] {
			r.Handles = append(r.Handles, h)
		}
	}
	if before.goroutines != nil {
		if err := goleak.Find(before.goroutines); err != nil {
			r.Handles = append(r.Handles, "goroutines: "+firstLine(err.Error()))
		}
	}
	for _, n := range names {
		if !before.Names[n] {
			r.Names = append(r.Names, n)
		}
	}
	sort.Strings(r.Handles)
	sort.Strings(r.Names)

	if len(r.Handles) > 0 {
		logging.Warn("Leak", "file %s leaked handles: %s", file, strings.Join(r.Handles, ", "))
	}
	if len(r.Names) > 0 {
		logging.Warn("Leak", "file %s leaked global names: %s", file, strings.Join(r.Names, ", "))
	}
	return r
}

func (d *Detector) handles() map[string]bool {
	out := make(map[string]bool)
	if d.FDDir == "" {
		return out
	}
	entries, err := os.ReadDir(d.FDDir)
	if err != nil {
		logging.Debug("Leak", "descriptor listing unavailable: %v", err)
		return out
	}
	self, _ := filepath.EvalSymlinks(d.FDDir)
	for _, e := range entries {
		target, err := os.Readlink(filepath.Join(d.FDDir, e.Name()))
		if err != nil {
			// Closed between ReadDir and Readlink, typically the listing's own descriptor.
			continue
		}
		if target == d.FDDir || target == self {
			continue
		}
		out[fmt.Sprintf("fd %s -> %s", e.Name(), target)] = true
	}
	return out
}

func toSet(names []string) map[string]bool {
	s := make(map[string]bool, len(names)+1)
	for _, n := range names {
		s[n] = true
	}
	return s
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
