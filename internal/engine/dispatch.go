package engine

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"bist/internal/block"
	"bist/internal/evaluator"
	"bist/internal/shared"
)

type outcome struct {
	kind Outcome
	msg  string
}

var pass = outcome{kind: Pass}

func (f *file) execute(ctx context.Context, b block.Block) (outcome, error) {
	ev := f.engine.opts.Evaluator

	switch b := b.(type) {
	case *block.CommentBlock, *block.EndFunctionBlock:
		return outcome{kind: NoOp}, nil

	case *block.DemoBlock:
		return f.demo(ctx, b)

	case *block.SharedBlock:
		f.env.Declare(b.Names)
		if strings.TrimSpace(b.Init) == "" {
			return pass, nil
		}
		out, err := ev.Exec(ctx, b.Init, f.env)
		if err != nil {
			return outcome{}, err
		}
		if out.Raised() {
			return outcome{kind: Fail, msg: "shared variable initialization failed\n" + out.Err.String()}, nil
		}
		return pass, nil

	case *block.FunctionBlock:
		if b.Name == "" {
			return outcome{kind: Fail, msg: missingFnMsg}, nil
		}
		out, err := ev.Define(ctx, evaluator.FunctionDef{
			Name:   b.Name,
			Params: b.Params,
			Result: b.Result,
			Tail:   b.Tail,
			Body:   b.Body,
		})
		if err != nil {
			return outcome{}, err
		}
		if out.Raised() {
			return outcome{kind: Fail, msg: "syntax error\n" + out.Err.String()}, nil
		}
		f.functions = append(f.functions, b.Name)
		return pass, nil

	case *block.ExpectBlock:
		return f.expect(ctx, b)

	case *block.TestBlock:
		return f.test(ctx, b)

	case *block.TestIfBlock:
		return f.testIf(ctx, b)

	case *block.UnknownBlock:
		return outcome{kind: Fail, msg: fmt.Sprintf("unknown test type %q", b.Tag)}, nil

	default:
		panic(fmt.Sprintf("engine: unhandled block type %T", b))
	}
}

func (f *file) demo(ctx context.Context, b *block.DemoBlock) (outcome, error) {
	opts := f.engine.opts
	if !opts.Interactive || opts.Verbosity < Verbose || opts.Batch {
		return outcome{kind: NoOp}, nil
	}
	out, err := opts.Evaluator.Exec(ctx, b.Code, shared.New())
	if err != nil {
		return outcome{}, err
	}
	if out.Raised() {
		return outcome{kind: Fail, msg: "demo failed\n" + out.Err.String()}, nil
	}
	if opts.Input != nil {
		if f.input == nil {
			f.input = bufio.NewReader(opts.Input)
		}
		f.engine.printf("%s", pausePrompt)
		_, _ = f.input.ReadString('\n')
	}
	return pass, nil
}

func (f *file) test(ctx context.Context, b *block.TestBlock) (outcome, error) {
	ev := f.engine.opts.Evaluator

	var (
		out evaluator.Outcome
		err error
	)
	switch b.Kind() {
	case block.KindAssert:
		out, err = ev.Assert(ctx, b.Code, f.env)
	default:
		out, err = ev.Exec(ctx, b.Code, f.env)
	}
	if err != nil {
		return outcome{}, err
	}

	if b.Kind() == block.KindFail {
		if out.Raised() {
			return pass, nil
		}
		return f.raised(b, fmt.Sprintf("expected error <%s> but got none", block.DefaultPattern)), nil
	}
	if out.Raised() {
		return f.raised(b, out.Err.String()), nil
	}
	return pass, nil
}

func (f *file) testIf(ctx context.Context, b *block.TestIfBlock) (outcome, error) {
	opts := f.engine.opts

	var missing []string
	for _, feat := range b.Features {
		if !opts.Features.Has(feat) {
			missing = append(missing, feat)
		}
	}
	if len(missing) > 0 {
		return outcome{kind: Skip, msg: "skipped test (missing feature: " + strings.Join(missing, ", ") + ")"}, nil
	}

	if b.Condition != "" {
		ok, out, err := opts.Evaluator.Truth(ctx, b.Condition, f.env)
		if err != nil {
			return outcome{}, err
		}
		if out.Raised() {
			return outcome{kind: Fail, msg: "runtime condition failed\n" + out.Err.String()}, nil
		}
		if !ok {
			return outcome{kind: RuntimeSkip, msg: "skipped test (runtime test)"}, nil
		}
	}

	out, err := opts.Evaluator.Exec(ctx, b.Code, f.env)
	if err != nil {
		return outcome{}, err
	}
	if out.Raised() {
		return f.raised(b, out.Err.String()), nil
	}
	return pass, nil
}

// raised classifies a block that failed with msg.
func (f *file) raised(b block.Block, msg string) outcome {
	if !block.ExpectedFailure(b) {
		return outcome{kind: Fail, msg: "test failed\n" + msg}
	}
	bug := block.Bug(b)
	switch {
	case bug.ID != "" && bug.Fixed:
		return outcome{kind: Regression, msg: "regression: " + f.bugRef(bug.ID) + "\n" + msg}
	case bug.ID != "":
		return outcome{kind: XBug, msg: "known bug: " + f.bugRef(bug.ID) + "\n" + msg}
	case bug.Fixed:
		return outcome{kind: Regression, msg: "regression\n" + msg}
	default:
		return outcome{kind: XFail, msg: "known failure\n" + msg}
	}
}

// bugRef renders an all-digit id as a tracker URL; other ids are verbatim.
func (f *file) bugRef(id string) string {
	for _, c := range id {
		if c < '0' || c > '9' {
			return id
		}
	}
	return fmt.Sprintf(f.engine.opts.BugTrackerURL, id)
}
