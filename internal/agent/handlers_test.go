package agent

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"bist/internal/app"
	"bist/internal/config"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer() *Server {
	return NewServer(app.FromConfig(config.GetDefaultConfig()), "test")
}

func callRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "Expected TextContent")
	return text.Text
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestTools(t *testing.T) {
	names := map[string]bool{}
	for _, tool := range newTestServer().Tools() {
		names[tool.Tool.Name] = true
		assert.NotNil(t, tool.Handler)
	}
	assert.Equal(t, map[string]bool{"bist_run": true, "bist_explain": true, "bist_demo": true}, names)
}

func TestHandleRun(t *testing.T) {
	path := writeFile(t, "mixed.star", "%!test\n%! print('hello')\n%!assert 1 == 2\n%!xtest <7>\n%! fail('known')\n")

	result, err := newTestServer().handleRun(context.Background(), callRequest("bist_run", map[string]interface{}{
		"targets": []interface{}{path},
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var resp runResponse
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &resp))
	assert.Equal(t, "FAIL", resp.Verdict)
	assert.Contains(t, resp.Output, "hello")
	assert.Contains(t, resp.Output, "!!!!! test failed")
	assert.Contains(t, resp.Summary, "1/2 tests failed")
	require.NotNil(t, resp.Suite)
	assert.Equal(t, 2, resp.Suite.Result.Tests)
	assert.Equal(t, 1, resp.Suite.Result.XBug)
}

func TestHandleRun_Pass(t *testing.T) {
	path := writeFile(t, "ok.star", "%!assert 2 + 2 == 4\n")

	result, err := newTestServer().handleRun(context.Background(), callRequest("bist_run", map[string]interface{}{
		"targets": path,
		"jobs":    float64(2),
	}))
	require.NoError(t, err)

	var resp runResponse
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &resp))
	assert.Equal(t, "PASS", resp.Verdict)
	assert.Equal(t, 1, resp.Suite.Result.Successes)
}

func TestHandleRun_InvalidParameters(t *testing.T) {
	tests := []struct {
		name string
		args map[string]interface{}
		want string
	}{
		{name: "missing targets", args: map[string]interface{}{}, want: "targets parameter is required"},
		{name: "jobs out of range", args: map[string]interface{}{"targets": "x.star", "jobs": float64(0)}, want: "jobs must be between 1 and 16"},
		{name: "negative threshold", args: map[string]interface{}{"targets": "x.star", "fail_threshold": float64(-1)}, want: "fail_threshold must not be negative"},
		{name: "unknown language", args: map[string]interface{}{"targets": "x.star", "language": "cobol"}, want: `unknown language "cobol"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := newTestServer().handleRun(context.Background(), callRequest("bist_run", tt.args))
			require.NoError(t, err)
			assert.True(t, result.IsError)
			assert.Contains(t, resultText(t, result), tt.want)
		})
	}
}

func TestHandleExplain(t *testing.T) {
	result, err := newTestServer().handleExplain(context.Background(), callRequest("bist_explain", nil))
	require.NoError(t, err)
	text := resultText(t, result)
	assert.Contains(t, text, ">>>>>")
	assert.Contains(t, text, "regression")
}

func TestHandleDemo(t *testing.T) {
	path := writeFile(t, "demo.star", "%!demo\n%! print('first')\n%!demo\n%! print('second')\n")
	srv := newTestServer()

	result, err := srv.handleDemo(context.Background(), callRequest("bist_demo", map[string]interface{}{"file": path}))
	require.NoError(t, err)
	var list []demoInfo
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &list))
	require.Len(t, list, 2)
	assert.Equal(t, 2, list[1].Index)
	assert.Contains(t, list[1].Code, "print('second')")

	result, err = srv.handleDemo(context.Background(), callRequest("bist_demo", map[string]interface{}{"file": path, "index": float64(2)}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	text := resultText(t, result)
	assert.Contains(t, text, "print('second')")
	assert.Contains(t, text, "second\n")
	assert.NotContains(t, text, "first")

	result, err = srv.handleDemo(context.Background(), callRequest("bist_demo", map[string]interface{}{"file": path, "index": float64(3)}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "Demo 3 out of range (1-2)")
}

func TestHandleDemo_Errors(t *testing.T) {
	srv := newTestServer()

	result, err := srv.handleDemo(context.Background(), callRequest("bist_demo", map[string]interface{}{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "file parameter is required")

	result, err = srv.handleDemo(context.Background(), callRequest("bist_demo", map[string]interface{}{"file": filepath.Join(t.TempDir(), "missing.star")}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "not found")

	path := writeFile(t, "nodemo.star", "%!assert True\n")
	result, err = srv.handleDemo(context.Background(), callRequest("bist_demo", map[string]interface{}{"file": path}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), "No demos in")
}

func TestStringList(t *testing.T) {
	assert.Nil(t, stringList(nil))
	assert.Nil(t, stringList(""))
	assert.Equal(t, []string{"a"}, stringList("a"))
	assert.Equal(t, []string{"a", "b"}, stringList([]interface{}{"a", 3, "", "b"}))
	assert.Equal(t, []string{"c"}, stringList([]string{"c"}))
}
