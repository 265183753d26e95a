package block

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// DefaultMarker prefixes every test line in a source file.
const DefaultMarker = "%!"

// Extract collects the marked lines of r into one buffer, marker stripped
// and newlines kept. Unmarked lines are dropped entirely, so positions in
// the buffer do not map back to source lines.
func Extract(r io.Reader, marker string) (string, error) {
	if marker == "" {
		marker = DefaultMarker
	}

	var buf strings.Builder
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if strings.HasPrefix(line, marker) {
			buf.WriteString(line[len(marker):])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to read test lines: %w", err)
		}
	}
	return buf.String(), nil
}
