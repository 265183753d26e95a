package features

import (
	"errors"
	"net"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSet_Has(t *testing.T) {
	s := NewSet("HAVE_ZLIB", " ", "HAVE_CURL ")
	assert.True(t, s.Has("HAVE_ZLIB"))
	assert.True(t, s.Has("HAVE_CURL"))
	assert.False(t, s.Has("HAVE_X11"))
	assert.Equal(t, []string{"HAVE_CURL", "HAVE_ZLIB"}, s.Names())
}

func TestHost(t *testing.T) {
	h := Host()
	assert.True(t, h.Has("HAVE_"+strings.ToUpper(runtime.GOOS)))
	assert.True(t, h.Has("HAVE_"+strings.ToUpper(runtime.GOARCH)))
	assert.Equal(t, cgoEnabled, h.Has("HAVE_CGO"))
}

func TestHost_Network(t *testing.T) {
	orig := netInterfaces
	t.Cleanup(func() { netInterfaces = orig })

	tests := []struct {
		name   string
		ifaces []net.Interface
		err    error
		want   bool
	}{
		{name: "loopback only", ifaces: []net.Interface{{Name: "lo", Flags: net.FlagUp | net.FlagLoopback}}},
		{name: "interface down", ifaces: []net.Interface{{Name: "eth0"}}},
		{name: "interface up", ifaces: []net.Interface{{Name: "eth0", Flags: net.FlagUp}}, want: true},
		{name: "lookup error", err: errors.New("no netlink")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			netInterfaces = func() ([]net.Interface, error) { return tt.ifaces, tt.err }
			assert.Equal(t, tt.want, Host().Has("HAVE_NETWORK"))
		})
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv(EnvVar, "HAVE_A,HAVE_B  HAVE_C")
	s := FromEnv()
	assert.Equal(t, []string{"HAVE_A", "HAVE_B", "HAVE_C"}, s.Names())
}

func TestMerge(t *testing.T) {
	m := Merge(NewSet("A"), NewSet("B", "A"), nil)
	assert.Equal(t, []string{"A", "B"}, m.Names())
}
