package block

import "regexp"

// Kind is the directive tag of a block.
type Kind string

const (
	KindShared      Kind = "shared"
	KindFunction    Kind = "function"
	KindEndFunction Kind = "endfunction"
	KindAssert      Kind = "assert"
	KindFail        Kind = "fail"
	KindError       Kind = "error"
	KindWarning     Kind = "warning"
	KindTest        Kind = "test"
	KindXTest       Kind = "xtest"
	KindTestIf      Kind = "testif"
	KindDemo        Kind = "demo"
	KindComment     Kind = "comment"
	KindUnknown     Kind = "unknown"
)

// Block is one classified directive unit. The set of implementations is
// closed: only the types in this file satisfy it.
type Block interface {
	Kind() Kind
	// Raw is the verbatim block text, used for echo and diagnostics.
	Raw() string
	sealed()
}

type base struct {
	raw string
}

func (b base) Raw() string { return b.raw }
func (base) sealed()       {}

// BugRef is the optional <id> annotation of a test block.
type BugRef struct {
	// Present is true when the block carried a <...> annotation at all.
	Present bool
	ID      string
	// Fixed is set by a leading '*': the bug was resolved, so a failure is
	// a regression.
	Fixed bool
}

// SharedBlock declares the shared variable set for the following blocks.
type SharedBlock struct {
	base
	Names []string
	// Init is the optional initializer snippet, empty when absent.
	Init string
}

func (*SharedBlock) Kind() Kind { return KindShared }

// FunctionBlock defines a callable in the evaluator's global namespace.
type FunctionBlock struct {
	base
	// Name is empty when the header carried no recognizable name.
	Name string
	// Params is the text between the parentheses of the header.
	Params string
	// Result is the named return variable of "r = f(x)" headers.
	Result string
	// Tail is whatever follows the closing parenthesis on the header line.
	Tail string
	Body string
}

func (*FunctionBlock) Kind() Kind { return KindFunction }

type EndFunctionBlock struct{ base }

func (*EndFunctionBlock) Kind() Kind { return KindEndFunction }

type CommentBlock struct{ base }

func (*CommentBlock) Kind() Kind { return KindComment }

// TestBlock covers assert, fail, test and xtest blocks.
type TestBlock struct {
	base
	kind Kind
	Code string
	Bug  BugRef
}

func (b *TestBlock) Kind() Kind { return b.kind }

// ExpectBlock covers error and warning blocks.
type ExpectBlock struct {
	base
	Warning bool
	// Pattern is compiled from PatternText; nil when ID is set or the
	// pattern failed to compile.
	Pattern     *regexp.Regexp
	PatternText string
	// PatternErr records a pattern that did not compile.
	PatternErr error
	ID         string
	Code       string
}

func (b *ExpectBlock) Kind() Kind {
	if b.Warning {
		return KindWarning
	}
	return KindError
}

// TestIfBlock is a test gated on features and an optional runtime condition.
type TestIfBlock struct {
	base
	Features  []string
	Condition string
	Bug       BugRef
	Code      string
}

func (*TestIfBlock) Kind() Kind { return KindTestIf }

// DemoBlock holds example code meant for a human watching.
type DemoBlock struct {
	base
	Code string
}

func (*DemoBlock) Kind() Kind { return KindDemo }

// UnknownBlock is any block whose tag is not recognized.
type UnknownBlock struct {
	base
	Tag string
}

func (*UnknownBlock) Kind() Kind { return KindUnknown }

// IsTest reports whether an executed b counts toward the tests total.
func IsTest(b Block) bool {
	switch b.Kind() {
	case KindAssert, KindFail, KindError, KindWarning, KindTest, KindXTest, KindTestIf, KindUnknown:
		return true
	}
	return false
}

// ExpectedFailure reports whether a raise from b is anticipated. xtest
// blocks always are; other test blocks only when they carry a bug reference.
func ExpectedFailure(b Block) bool {
	switch v := b.(type) {
	case *TestBlock:
		return v.kind == KindXTest || v.Bug.Present
	case *TestIfBlock:
		return v.Bug.Present
	}
	return false
}

// Bug returns the bug reference carried by b, if any.
func Bug(b Block) BugRef {
	switch v := b.(type) {
	case *TestBlock:
		return v.Bug
	case *TestIfBlock:
		return v.Bug
	}
	return BugRef{}
}
