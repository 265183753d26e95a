package engine

import (
	"fmt"
	"io"
)

const legend = `# Tests are extracted from lines starting with the test marker and run
# block by block, in order, against a shared set of variables.
#
#   %s new test file
#   %s code for the test
#   %s test had an unexpected result
#   %s test was skipped
#   %s no tests in file
#
# Expected failures (xtest, or a test carrying <bug-id>) are counted
# separately and do not fail the run. A bug marked <*id> is fixed, so its
# failure is reported as a regression.
`

// Explain writes the meaning of the diagnostic markers to w.
func Explain(w io.Writer) error {
	_, err := fmt.Fprintf(w, legend, signalFile, signalBlock, signalFail, signalSkip, signalEmpty)
	return err
}
