package leak

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck_NewNames(t *testing.T) {
	d := &Detector{}
	before := d.Snapshot([]string{"helper"})

	r := d.Check("a.star", before, []string{"helper", "ans", "leaked_var"})
	assert.Equal(t, "a.star", r.File)
	assert.Equal(t, []string{"leaked_var"}, r.Names)
	assert.Empty(t, r.Handles)
	assert.False(t, r.Empty())
}

func TestCheck_NothingLeaked(t *testing.T) {
	d := &Detector{}
	before := d.Snapshot(nil)
	r := d.Check("a.star", before, nil)
	assert.True(t, r.Empty())
}

func TestCheck_OpenFileDescriptor(t *testing.T) {
	if _, err := os.Stat(defaultFDDir); err != nil {
		t.Skip("no /proc descriptor listing on this platform")
	}
	d := &Detector{FDDir: defaultFDDir}
	before := d.Snapshot(nil)

	path := filepath.Join(t.TempDir(), "held-open.txt")
	f, err := os.Create(path)
	require.NoError(t, err)

	r := d.Check("a.star", before, nil)
	require.NoError(t, f.Close())

	found := false
	for _, h := range r.Handles {
		if strings.HasSuffix(h, "held-open.txt") {
			found = true
		}
	}
	assert.True(t, found, "expected the open file in %v", r.Handles)

	r = d.Check("a.star", before, nil)
	for _, h := range r.Handles {
		assert.False(t, strings.HasSuffix(h, "held-open.txt"), "closed file still reported: %s", h)
	}
}

func TestCheck_Goroutine(t *testing.T) {
	d := &Detector{Goroutines: true}
	before := d.Snapshot(nil)

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-stop
	}()

	r := d.Check("a.star", before, nil)
	close(stop)
	<-done

	require.Len(t, r.Handles, 1)
	assert.True(t, strings.HasPrefix(r.Handles[0], "goroutines:"))
}
