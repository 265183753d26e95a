// Package shared holds the variable set that "shared" blocks declare and
// that later blocks of the same file read and mutate.
package shared

// Environment is an ordered set of shared variable names and their values.
// A nil value is the empty value every variable starts from. It is owned by
// the goroutine running one file and is not safe for concurrent use.
type Environment struct {
	names  []string
	values map[string]any
}

// New returns an empty environment.
func New() *Environment {
	return &Environment{values: make(map[string]any)}
}

// Declare replaces the active name list. Every previously shared variable
// and every newly named one is reset to the empty value first, so no value
// survives a redeclaration, not even under the same name. An empty names
// list clears the environment.
func (e *Environment) Declare(names []string) {
	e.values = make(map[string]any, len(names))

	seen := make(map[string]bool, len(names))
	e.names = e.names[:0]
	for _, n := range names {
		if seen[n] {
			continue
		}
		seen[n] = true
		e.names = append(e.names, n)
		e.values[n] = nil
	}
}

// Names returns a copy of the active name list in declaration order.
func (e *Environment) Names() []string {
	return append([]string(nil), e.names...)
}

// Has reports whether name is currently shared.
func (e *Environment) Has(name string) bool {
	_, ok := e.values[name]
	return ok
}

// Get returns the value of a shared variable, nil when unset or unknown.
func (e *Environment) Get(name string) any {
	return e.values[name]
}

// Set updates a shared variable. Names outside the active set are ignored:
// only a shared block can widen the set.
func (e *Environment) Set(name string, value any) {
	if _, ok := e.values[name]; ok {
		e.values[name] = value
	}
}

// Clear discards all shared variables.
func (e *Environment) Clear() {
	e.Declare(nil)
}

// Len returns the number of shared variables.
func (e *Environment) Len() int {
	return len(e.names)
}
