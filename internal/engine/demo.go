package engine

import (
	"context"
	"fmt"
	"io"

	"bist/internal/block"
	"bist/internal/shared"
)

// GrabDemos collects the demo blocks read from r without running anything.
// Offsets[i] is the end of demo i within Code.
func (e *Engine) GrabDemos(ctx context.Context, name string, r io.Reader) (DemoSet, error) {
	buf, err := block.Extract(r, e.opts.Marker)
	if err != nil {
		return DemoSet{}, fmt.Errorf("reading %s: %w", name, err)
	}

	var ds DemoSet
	for _, raw := range block.Split(buf) {
		if err := ctx.Err(); err != nil {
			return DemoSet{}, err
		}
		d, ok := block.Classify(raw).(*block.DemoBlock)
		if !ok {
			continue
		}
		ds.Code += d.Code
		ds.Offsets = append(ds.Offsets, len(ds.Code))
	}
	return ds, nil
}

// RunDemo executes one demo snippet in an empty scope, echoing it first.
// It ignores Batch and Interactive; the caller asked for it explicitly.
func (e *Engine) RunDemo(ctx context.Context, code string) error {
	e.printf("%s", withNewline(code))
	out, err := e.opts.Evaluator.Exec(ctx, code, shared.New())
	if err != nil {
		return err
	}
	if out.Raised() {
		return fmt.Errorf("demo failed: %s", out.Err)
	}
	return nil
}
