package evaluator

import "sync"

// Recorder collects the diagnostics of one snippet run.
type Recorder struct {
	warnings []Diagnostic
	lastErr  *Diagnostic
}

// Warnings returns the recorded warnings, oldest first.
func (r *Recorder) Warnings() []Diagnostic {
	return append([]Diagnostic(nil), r.warnings...)
}

// LastError returns the most recently raised diagnostic.
func (r *Recorder) LastError() (Diagnostic, bool) {
	if r.lastErr == nil {
		return Diagnostic{}, false
	}
	return *r.lastErr, true
}

// Sink is the side channel through which evaluator builtins report
// warnings and identified errors. Capture swaps in a fresh recorder and
// returns a restore func that puts the previous one back, so nested or
// aborted runs never leak state into each other.
type Sink struct {
	mu      sync.Mutex
	current *Recorder
}

// Capture installs a new recorder. Callers must defer the returned restore.
func (s *Sink) Capture() (*Recorder, func()) {
	rec := &Recorder{}

	s.mu.Lock()
	prev := s.current
	s.current = rec
	s.mu.Unlock()

	return rec, func() {
		s.mu.Lock()
		s.current = prev
		s.mu.Unlock()
	}
}

// Warn records a warning on the active recorder. Warnings emitted outside
// a capture are dropped.
func (s *Sink) Warn(d Diagnostic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		s.current.warnings = append(s.current.warnings, d)
	}
}

// Raise records d as the last error of the active recorder.
func (s *Sink) Raise(d Diagnostic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		s.current.lastErr = &d
	}
}
