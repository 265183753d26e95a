package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate keeps user and project config files out of the test and returns
// a scratch directory.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("BIST_FEATURES", "")
	return dir
}

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestSetVersion(t *testing.T) {
	SetVersion("1.2.3-test")
	assert.Equal(t, "1.2.3-test", rootCmd.Version)
}

func TestRootCommand(t *testing.T) {
	assert.Equal(t, "bist", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.True(t, rootCmd.SilenceUsage)
	assert.True(t, rootCmd.SilenceErrors)
}

func TestSubcommands(t *testing.T) {
	found := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		found[c.Name()] = true
	}
	for _, expected := range []string{"run", "explain", "demo", "serve", "version"} {
		assert.True(t, found[expected], "Expected subcommand %s to be registered", expected)
	}
}

func TestVersionCommand(t *testing.T) {
	SetVersion("9.9.9")
	out, err := execute(t, newVersionCmd())
	require.NoError(t, err)
	assert.Equal(t, "bist version 9.9.9\n", out)
}

func TestExplainCommand(t *testing.T) {
	out, err := execute(t, newExplainCmd())
	require.NoError(t, err)
	assert.Contains(t, out, ">>>>>")
	assert.Contains(t, out, "?????")
}

func TestDemoCommand(t *testing.T) {
	dir := isolate(t)
	path := writeTestFile(t, dir, "demo.star", "%!demo\n%! print('one')\n%!assert True\n%!demo\n%! print('two')\n")

	out, err := execute(t, newDemoCmd(), path)
	require.NoError(t, err)
	assert.Equal(t, "----- demo 1\n print('one')\n----- demo 2\n print('two')\n", out)

	out, err = execute(t, newDemoCmd(), path, "2")
	require.NoError(t, err)
	assert.Contains(t, out, "print('two')")
	assert.Contains(t, out, "two\n")
	assert.NotContains(t, out, "one")

	_, err = execute(t, newDemoCmd(), path, "3")
	assert.EqualError(t, err, "demo 3 out of range (1-2)")

	_, err = execute(t, newDemoCmd(), path, "zero")
	assert.EqualError(t, err, `demo number must be a positive integer, got "zero"`)

	_, err = execute(t, newDemoCmd(), filepath.Join(dir, "missing.star"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestDemoCommand_JSON(t *testing.T) {
	dir := isolate(t)
	path := writeTestFile(t, dir, "demo.star", "%!demo\n%! x = 1\n")

	out, err := execute(t, newDemoCmd(), "--json", path)
	require.NoError(t, err)
	assert.Contains(t, out, `"code": "\n x = 1\n"`)
	assert.Contains(t, out, `"offsets": [`)
}
