package engine

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bist/internal/engine/enginetest"
	"bist/internal/evaluator"
	"bist/internal/evaluator/goeval"
	"bist/internal/evaluator/starlarkeval"
	"bist/internal/features"
	"bist/internal/leak"
	"bist/internal/result"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func runSource(t *testing.T, opts Options, src string) (*FileReport, string) {
	t.Helper()
	var out bytes.Buffer
	if opts.Evaluator == nil {
		opts.Evaluator = starlarkeval.New(nil)
	}
	opts.Output = &out
	rep, err := New(opts).RunSource(context.Background(), "t.star", strings.NewReader(src))
	require.NoError(t, err)
	require.NotNil(t, rep)
	return rep, out.String()
}

func counters(r result.RunResult) result.RunResult {
	r.FilesProcessed, r.FilesWithTests, r.FilesWithNoTests, r.FailedFiles = nil, nil, nil, nil
	return r
}

func TestRunSource_NoMarkedLines(t *testing.T) {
	rep, out := runSource(t, Options{}, "x = 1\n# plain comment\n")

	assert.Equal(t, 0, rep.Result.Tests)
	assert.Equal(t, []string{"t.star"}, rep.Result.FilesWithNoTests)
	assert.Empty(t, rep.Result.FailedFiles)
	assert.True(t, rep.Result.OK())
	assert.Contains(t, out, "????? t.star has no tests available")
}

func TestRunSource_SharedTestAndAssert(t *testing.T) {
	src := "" +
		"%!shared a\n" +
		"%!test a = 3\n" +
		"%!assert a == 3\n"
	rep, out := runSource(t, Options{}, src)

	assert.Empty(t, out)
	if diff := cmp.Diff(result.RunResult{Tests: 2, Successes: 2}, counters(rep.Result)); diff != "" {
		t.Errorf("counters mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"t.star"}, rep.Result.FilesWithTests)
}

func TestRunSource_SharedRedeclarationResetsValues(t *testing.T) {
	src := "" +
		"%!shared a\n" +
		"%! a = 5\n" +
		"%!shared a\n" +
		"%!assert a == None\n"
	rep, _ := runSource(t, Options{}, src)
	assert.Equal(t, 1, rep.Result.Tests)
	assert.Equal(t, 1, rep.Result.Successes)
}

func TestRunSource_SharedRedeclarationDropsOldNames(t *testing.T) {
	src := "" +
		"%!shared a\n" +
		"%! a = 1\n" +
		"%!shared b\n" +
		"%!test x = a\n"
	rep, out := runSource(t, Options{}, src)
	assert.Equal(t, 1, rep.Result.Tests)
	assert.Equal(t, 0, rep.Result.Successes)
	assert.Contains(t, out, "!!!!! test failed")
}

func TestRunSource_SharedInitFailure(t *testing.T) {
	src := "" +
		"%!shared a\n" +
		"%! fail('no init')\n" +
		"%!test x = 1\n"
	rep, out := runSource(t, Options{}, src)
	assert.Equal(t, 1, rep.Result.SetupFailures)
	assert.Equal(t, 0, rep.Result.Tests)
	assert.True(t, rep.Halted)
	assert.Equal(t, 1, rep.Result.HardFailures())
	assert.Contains(t, out, "shared variable initialization failed")
}

func TestRunSource_BugIDs(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		want    result.RunResult
		message string
	}{
		{
			name:    "numeric id renders tracker url",
			src:     "%!test <12345>\n%! fail('broken')\n",
			want:    result.RunResult{XBug: 1},
			message: "known bug: https://tracker.test/12345",
		},
		{
			name:    "other id is verbatim",
			src:     "%!test <abc-7>\n%! fail('broken')\n",
			want:    result.RunResult{XBug: 1},
			message: "known bug: abc-7\n",
		},
		{
			name:    "xtest with open bug",
			src:     "%!xtest <42>\n%! fail('broken')\n",
			want:    result.RunResult{XBug: 1},
			message: "known bug: https://tracker.test/42",
		},
		{
			name:    "xtest with fixed bug",
			src:     "%!xtest <*42>\n%! fail('broken')\n",
			want:    result.RunResult{XRegression: 1},
			message: "regression: https://tracker.test/42",
		},
		{
			name:    "fixed without id",
			src:     "%!assert <*> 1 == 2\n",
			want:    result.RunResult{XRegression: 1},
			message: "!!!!! regression\n",
		},
		{
			name:    "xtest without id",
			src:     "%!xtest\n%! fail('broken')\n",
			want:    result.RunResult{XFail: 1},
			message: "known failure",
		},
		{
			name: "passing xtest counts as success",
			src:  "%!xtest x = 1\n",
			want: result.RunResult{Tests: 1, Successes: 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep, out := runSource(t, Options{BugTrackerURL: "https://tracker.test/%s"}, tt.src)
			if diff := cmp.Diff(tt.want, counters(rep.Result)); diff != "" {
				t.Errorf("counters mismatch (-want +got):\n%s", diff)
			}
			assert.True(t, rep.Result.OK())
			assert.False(t, rep.Halted)
			if tt.message != "" {
				assert.Contains(t, out, tt.message)
			}
		})
	}
}

func TestRunSource_ExpectedFailuresDoNotHalt(t *testing.T) {
	src := "" +
		"%!xtest <42>\n%! fail('broken')\n" +
		"%!assert 1 == 1\n"
	rep, _ := runSource(t, Options{}, src)
	assert.Equal(t, 1, rep.Result.XBug)
	assert.Equal(t, 1, rep.Result.Tests)
	assert.Equal(t, 1, rep.Result.Successes)
	assert.Len(t, rep.Blocks, 2)
}

func TestRunSource_FailBlock(t *testing.T) {
	rep, out := runSource(t, Options{}, "%!fail x = 1\n")
	assert.Equal(t, 1, rep.Result.Tests)
	assert.Equal(t, 0, rep.Result.Successes)
	assert.False(t, rep.Result.OK())
	assert.Contains(t, out, "expected error <.> but got none")

	rep, _ = runSource(t, Options{}, "%!fail fail('expected')\n")
	assert.Equal(t, 1, rep.Result.Successes)
}

func TestRunSource_ExpectedFailureOnlyFileHasNoTests(t *testing.T) {
	rep, out := runSource(t, Options{}, "%!xtest <42>\n%! fail('broken')\n")
	assert.Equal(t, 1, rep.Result.XBug)
	assert.Equal(t, []string{"t.star"}, rep.Result.FilesWithNoTests)
	assert.Empty(t, rep.Result.FilesWithTests)
	assert.True(t, rep.Result.OK())
	assert.Contains(t, out, "????? t.star has no tests available")
}

func TestRunSource_FailedInitializerLeavesSharedUnset(t *testing.T) {
	src := "" +
		"%!shared a\n" +
		"%! a = 1\n" +
		"%! fail('init broke')\n" +
		"%!assert a == None\n"
	rep, _ := runSource(t, Options{Batch: true}, src)
	assert.Equal(t, 1, rep.Result.SetupFailures)
	assert.Equal(t, 1, rep.Result.Successes)
}

func TestRunSource_RaisingBlockKeepsScope(t *testing.T) {
	src := "" +
		"%!shared a\n" +
		"%! a = 1\n" +
		"%!error <boom>\n" +
		"%! a = 2\n" +
		"%! fail('boom')\n" +
		"%!xtest\n" +
		"%! a = 3\n" +
		"%! fail('later')\n" +
		"%!assert a == 1\n"
	rep, out := runSource(t, Options{}, src)
	assert.Equal(t, 2, rep.Result.Successes, out)
	assert.Equal(t, 1, rep.Result.XFail)
}

func TestRunSource_ErrorAndWarningBlocks(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		ok      bool
		message string
	}{
		{name: "matching pattern", src: "%!error <division> 1 // 0\n", ok: true},
		{name: "matching id", src: "%!error id=bist:bad error('nope', id='bist:bad')\n", ok: true},
		{name: "wrong id", src: "%!error id=bist:bad error('nope', id='bist:other')\n", message: "expected id bist:bad but got bist:other"},
		{name: "wrong message", src: "%!error <nomatch> fail('x')\n", message: "expected <nomatch> but got <x>"},
		{name: "no error", src: "%!error x = 1\n", message: "expected error <.> but got none"},
		{name: "warning", src: "%!warning <careful> warning('be careful')\n", ok: true},
		{name: "warning missing", src: "%!warning x = 1\n", message: "expected warning <.> but got none"},
		{name: "error instead of warning", src: "%!warning fail('boom')\n", message: "but got error <boom>"},
		{name: "invalid pattern", src: "%!error <(> fail('x')\n", message: "invalid pattern <(>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep, out := runSource(t, Options{}, tt.src)
			assert.Equal(t, 1, rep.Result.Tests)
			assert.Equal(t, tt.ok, rep.Result.OK(), out)
			if tt.message != "" {
				assert.Contains(t, out, tt.message)
			}
		})
	}
}

func TestRunSource_TestIfMissingFeatureNeverRuns(t *testing.T) {
	src := "" +
		"%!shared hit\n" +
		"%!testif HAVE_NOTHING\n" +
		"%! hit = 1\n" +
		"%!assert hit == None\n"
	rep, out := runSource(t, Options{Features: features.NewSet("HAVE_ZLIB")}, src)
	assert.Equal(t, 1, rep.Result.XSkip)
	assert.Equal(t, 1, rep.Result.Tests)
	assert.Equal(t, 1, rep.Result.Successes)
	assert.Contains(t, out, "----- skipped test (missing feature: HAVE_NOTHING)")
}

func TestRunSource_TestIfRuntimeCondition(t *testing.T) {
	src := "" +
		"%!testif HAVE_ZLIB; 1 > 2\n" +
		"%! fail('never')\n" +
		"%!testif HAVE_ZLIB; 2 > 1\n" +
		"%! x = 1\n"
	rep, out := runSource(t, Options{Features: features.NewSet("HAVE_ZLIB")}, src)
	assert.Equal(t, 1, rep.Result.XRTSkip)
	assert.Equal(t, 1, rep.Result.Tests)
	assert.Equal(t, 1, rep.Result.Successes)
	assert.Contains(t, out, "skipped test (runtime test)")
}

func TestRunSource_UnknownBlock(t *testing.T) {
	rep, out := runSource(t, Options{}, "%!frobnicate x = 1\n")
	assert.Equal(t, 1, rep.Result.Tests)
	assert.Equal(t, 0, rep.Result.Successes)
	assert.Contains(t, out, "unknown test type")
}

func TestRunSource_FunctionLifecycle(t *testing.T) {
	ev := starlarkeval.New(nil)
	src := "" +
		"%!function r = double(x)\n" +
		"%!  r = x * 2\n" +
		"%!endfunction\n" +
		"%!assert (double(2), 4)\n"
	rep, out := runSource(t, Options{Evaluator: ev}, src)
	assert.Empty(t, out)
	assert.Equal(t, 1, rep.Result.Successes)
	assert.Empty(t, ev.Globals(), "functions are removed at end of file")
}

func TestRunSource_MissingFunctionName(t *testing.T) {
	rep, out := runSource(t, Options{}, "%!function\n%!  x = 1\n")
	assert.Equal(t, 1, rep.Result.SetupFailures)
	assert.Contains(t, out, "missing function name")
}

func TestRunSource_HaltsOnHardFailureUnlessBatch(t *testing.T) {
	src := "" +
		"%!test fail('first')\n" +
		"%!test x = 1\n"

	rep, _ := runSource(t, Options{}, src)
	assert.True(t, rep.Halted)
	assert.Len(t, rep.Blocks, 1)
	assert.Equal(t, 1, rep.Result.Tests)

	rep, _ = runSource(t, Options{Batch: true}, src)
	assert.False(t, rep.Halted)
	assert.Len(t, rep.Blocks, 2)
	assert.Equal(t, 2, rep.Result.Tests)
	assert.Equal(t, 1, rep.Result.Successes)
}

func TestRunSource_FailThreshold(t *testing.T) {
	src := "%!test fail('first')\n"
	rep, _ := runSource(t, Options{}, src)
	assert.Equal(t, []string{"t.star"}, rep.Result.FailedFiles)

	rep, _ = runSource(t, Options{FailThreshold: 1}, src)
	assert.Empty(t, rep.Result.FailedFiles)
}

func TestRunSource_VerboseEchoesBlocks(t *testing.T) {
	rep, out := runSource(t, Options{Verbosity: Verbose}, "%!test x = 1\n%!assert x == 1\n")
	assert.Contains(t, out, ">>>>> processing t.star")
	assert.Contains(t, out, "***** test x = 1\n")
	assert.Equal(t, 2, rep.Result.Tests)
}

func TestRunSource_SilentWritesNothing(t *testing.T) {
	_, out := runSource(t, Options{Verbosity: Silent}, "%!test fail('x')\n")
	assert.Empty(t, out)
}

func TestRunSource_Demo(t *testing.T) {
	src := "%!demo\n%! show()\n"

	ev := enginetest.New(nil)
	rep, out := runSource(t, Options{Evaluator: ev, Verbosity: Verbose}, src)
	assert.NotContains(t, ev.Calls(), "show()", "not interactive")
	assert.NotContains(t, out, pausePrompt)
	assert.False(t, rep.Result.HasTests())

	ev = enginetest.New(nil)
	_, out = runSource(t, Options{Evaluator: ev, Verbosity: Verbose, Interactive: true, Input: strings.NewReader("\n")}, src)
	assert.Contains(t, ev.Calls(), "show()")
	assert.Contains(t, out, pausePrompt)

	ev = enginetest.New(nil)
	runSource(t, Options{Evaluator: ev, Verbosity: Verbose, Interactive: true, Batch: true}, src)
	assert.NotContains(t, ev.Calls(), "show()", "batch mode")

	ev = enginetest.New(map[string]enginetest.Step{"show()": enginetest.Raise("no display")})
	rep, out = runSource(t, Options{Evaluator: ev, Verbosity: Verbose, Interactive: true}, src)
	assert.Equal(t, 1, rep.Result.SetupFailures)
	assert.Contains(t, out, "demo failed")
}

func TestRunSource_EvaluatorErrorIsHardFailure(t *testing.T) {
	ev := enginetest.New(map[string]enginetest.Step{"crash": enginetest.Fail(errors.New("crashed"))})
	rep, out := runSource(t, Options{Evaluator: ev}, "%!test crash\n")
	assert.Equal(t, 1, rep.Result.Tests)
	assert.False(t, rep.Result.OK())
	assert.Contains(t, out, "evaluator error: crashed")
}

func TestRunSource_InterruptEscapesAfterTeardown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ev := enginetest.New(nil)
	ev.Steps = map[string]enginetest.Step{
		"stop": func(context.Context, evaluator.Scope) (evaluator.Outcome, error) {
			cancel()
			return evaluator.Outcome{}, evaluator.Interrupted(context.Canceled)
		},
	}
	src := "" +
		"%!function helper()\n" +
		"%!test stop\n" +
		"%!test after\n"

	rep, err := New(Options{Evaluator: ev}).RunSource(ctx, "t.star", strings.NewReader(src))
	require.Error(t, err)
	assert.True(t, errors.Is(err, evaluator.ErrInterrupted))
	assert.Nil(t, rep)
	assert.NotContains(t, ev.Calls(), "after")
	assert.Empty(t, ev.Globals())
}

func TestRunSource_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(Options{Evaluator: enginetest.New(nil)}).RunSource(ctx, "t.star", strings.NewReader("%!test x\n"))
	assert.True(t, errors.Is(err, evaluator.ErrInterrupted))
}

func TestRunSource_Leaks(t *testing.T) {
	ev := enginetest.New(nil)
	ev.Steps = map[string]enginetest.Step{
		"leak": func(context.Context, evaluator.Scope) (evaluator.Outcome, error) {
			ev.Leak("stray")
			return evaluator.Outcome{}, nil
		},
	}
	rep, _ := runSource(t, Options{Evaluator: ev, Leak: &leak.Detector{}}, "%!test leak\n")
	require.NotNil(t, rep.Leaks)
	assert.Equal(t, []string{"stray"}, rep.Leaks.Names)
	assert.True(t, rep.Result.OK(), "leaks never affect counters")

	rep, _ = runSource(t, Options{Evaluator: enginetest.New(nil), Leak: &leak.Detector{}}, "%!test fine\n")
	assert.Nil(t, rep.Leaks)
}

func TestRunSource_LeakedImport(t *testing.T) {
	ev, err := goeval.New()
	require.NoError(t, err)

	rep, out := runSource(t, Options{Evaluator: ev, Leak: &leak.Detector{}}, "%!test\n%! import \"strings\"\n%! _ = strings.ToUpper(\"x\")\n")
	assert.True(t, rep.Result.OK(), out)
	require.NotNil(t, rep.Leaks)
	assert.Equal(t, []string{"strings"}, rep.Leaks.Names)
}

func TestRunSource_SharedScopeWithScriptedEvaluator(t *testing.T) {
	ev := enginetest.New(map[string]enginetest.Step{
		"set":   enginetest.Set("a", 3),
		"check": enginetest.Expect("a", 3),
	})
	rep, _ := runSource(t, Options{Evaluator: ev}, "%!shared a\n%!test set\n%!assert check\n")
	assert.Equal(t, 2, rep.Result.Successes)
	assert.Equal(t, []string{"set", "check"}, ev.Calls())
}

func TestRunFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.star")
	require.NoError(t, os.WriteFile(path, []byte("def f():\n    pass\n%!assert 1 + 1 == 2\n"), 0o644))

	rep, err := New(Options{Evaluator: starlarkeval.New(nil)}).RunFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Result.Successes)
	assert.Equal(t, []string{path}, rep.Result.FilesWithTests)
}

func TestRunFile_Missing(t *testing.T) {
	rep, err := New(Options{Evaluator: enginetest.New(nil)}).RunFile(context.Background(), "/nonexistent/file.star")
	require.NoError(t, err)
	assert.Equal(t, []string{"/nonexistent/file.star"}, rep.Result.FilesWithNoTests)
}

func TestGrabDemos(t *testing.T) {
	src := "" +
		"%!demo\n%! x = 1\n" +
		"%!test y = 2\n" +
		"%!demo\n%! z = 3\n"
	ev := enginetest.New(nil)
	ds, err := New(Options{Evaluator: ev}).GrabDemos(context.Background(), "t.star", strings.NewReader(src))
	require.NoError(t, err)

	require.Equal(t, 2, ds.Len())
	assert.Equal(t, "\n x = 1\n\n z = 3\n", ds.Code)
	assert.Equal(t, []int{8, 16}, ds.Offsets)

	first, ok := ds.Snippet(0)
	require.True(t, ok)
	assert.Equal(t, "\n x = 1\n", first)
	second, _ := ds.Snippet(1)
	assert.Equal(t, "\n z = 3\n", second)
	_, ok = ds.Snippet(2)
	assert.False(t, ok)
	assert.Empty(t, ev.Calls(), "grab-demo mode runs nothing")
}

func TestRunDemo(t *testing.T) {
	var out bytes.Buffer
	ev := enginetest.New(map[string]enginetest.Step{"bad": enginetest.Raise("nope")})
	e := New(Options{Evaluator: ev, Output: &out})

	require.NoError(t, e.RunDemo(context.Background(), "good"))
	err := e.RunDemo(context.Background(), "bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
	assert.Equal(t, "good\nbad\n", out.String())
}

func TestExplain(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Explain(&buf))
	for _, marker := range []string{">>>>> ", "***** ", "!!!!! ", "----- ", "????? "} {
		assert.Contains(t, buf.String(), marker)
	}
}

func TestOutcome_MarshalText(t *testing.T) {
	b, err := XBug.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "XBUG", string(b))

	var o Outcome
	require.NoError(t, o.UnmarshalText(b))
	assert.Equal(t, XBug, o)
	assert.Error(t, o.UnmarshalText([]byte("MAYBE")))
}

func TestParseVerbosity(t *testing.T) {
	v, ok := ParseVerbosity("verbose")
	assert.True(t, ok)
	assert.Equal(t, Verbose, v)
	_, ok = ParseVerbosity("loud")
	assert.False(t, ok)
}
