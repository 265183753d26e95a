// Package features answers whether an optional capability is available,
// which gates testif blocks.
package features

import (
	"net"
	"os"
	"runtime"
	"sort"
	"strings"
)

// EnvVar lists extra features, separated by commas or whitespace.
const EnvVar = "BIST_FEATURES"

// Query reports whether a named feature is currently available.
type Query interface {
	Has(name string) bool
}

// Set is a fixed collection of available feature names.
type Set map[string]bool

// NewSet builds a Set from names. Empty names are ignored.
func NewSet(names ...string) Set {
	s := make(Set, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			s[n] = true
		}
	}
	return s
}

// Has implements Query.
func (s Set) Has(name string) bool {
	return s[name]
}

// Names returns the features in sorted order.
func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Host returns the features every run has: the operating system and
// architecture as HAVE_<GOOS> and HAVE_<GOARCH>, HAVE_CGO when built with
// cgo, and HAVE_NETWORK when a non-loopback interface is up.
func Host() Set {
	s := NewSet(
		"HAVE_"+strings.ToUpper(runtime.GOOS),
		"HAVE_"+strings.ToUpper(runtime.GOARCH),
	)
	if cgoEnabled {
		s["HAVE_CGO"] = true
	}
	if hasNetwork() {
		s["HAVE_NETWORK"] = true
	}
	return s
}

var netInterfaces = net.Interfaces

func hasNetwork() bool {
	ifaces, err := netInterfaces()
	if err != nil {
		return false
	}
	for _, i := range ifaces {
		if i.Flags&net.FlagUp != 0 && i.Flags&net.FlagLoopback == 0 {
			return true
		}
	}
	return false
}

// FromEnv parses the BIST_FEATURES environment variable.
func FromEnv() Set {
	return NewSet(strings.FieldsFunc(os.Getenv(EnvVar), func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})...)
}

// Merge unions sets into a new one.
func Merge(sets ...Set) Set {
	out := make(Set)
	for _, s := range sets {
		for n := range s {
			out[n] = true
		}
	}
	return out
}
