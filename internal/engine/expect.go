package engine

import (
	"context"
	"fmt"

	"bist/internal/block"
	"bist/internal/evaluator"
)

// expect runs an error or warning block. The code must raise an error (or
// emit a warning without raising) whose id or message matches.
func (f *file) expect(ctx context.Context, b *block.ExpectBlock) (outcome, error) {
	if b.PatternErr != nil {
		return outcome{kind: Fail, msg: fmt.Sprintf("invalid pattern <%s>: %v", b.PatternText, b.PatternErr)}, nil
	}

	out, err := f.engine.opts.Evaluator.Exec(ctx, b.Code, f.env)
	if err != nil {
		return outcome{}, err
	}
	if msg := mismatch(b, out); msg != "" {
		return outcome{kind: Fail, msg: msg}, nil
	}
	return pass, nil
}

// mismatch returns a description of how out differs from what b expects,
// or "" when it matches.
func mismatch(b *block.ExpectBlock, out evaluator.Outcome) string {
	want := "error"
	if b.Warning {
		want = "warning"
	}

	var got evaluator.Diagnostic
	switch {
	case !b.Warning && !out.Raised():
		return fmt.Sprintf("expected %s <%s> but got none", want, expectation(b))
	case !b.Warning:
		got = *out.Err
	case out.Raised():
		return fmt.Sprintf("expected %s <%s> but got error <%s>", want, expectation(b), out.Err)
	default:
		w, ok := out.LastWarning()
		if !ok {
			return fmt.Sprintf("expected %s <%s> but got none", want, expectation(b))
		}
		got = w
	}

	if b.ID != "" {
		if got.ID != b.ID {
			return fmt.Sprintf("expected id %s but got %s", b.ID, displayID(got.ID))
		}
		return ""
	}
	if b.Pattern != nil && !b.Pattern.MatchString(got.Message) {
		return fmt.Sprintf("expected <%s> but got <%s>", b.PatternText, got.Message)
	}
	return ""
}

func expectation(b *block.ExpectBlock) string {
	if b.ID != "" {
		return "id=" + b.ID
	}
	return b.PatternText
}

func displayID(id string) string {
	if id == "" {
		return "<none>"
	}
	return id
}
