package block

import "unicode"

// trailer is appended so the last real block has a terminating boundary.
// It is a comment block and never returned.
const trailer = "\n%"

// Split partitions an extracted buffer into raw blocks. A block starts at
// column 0 of a line whose first character is not whitespace; indented and
// blank lines continue the current block. Text before the first such line
// belongs to no block.
func Split(buf string) []string {
	s := "\n" + buf + trailer

	var starts []int
	for i := 0; i < len(s)-1; i++ {
		if s[i] == '\n' && !unicode.IsSpace(rune(s[i+1])) {
			starts = append(starts, i+1)
		}
	}

	// The final start is always the trailer.
	if len(starts) < 2 {
		return nil
	}
	blocks := make([]string, 0, len(starts)-1)
	for i := 0; i < len(starts)-1; i++ {
		blocks = append(blocks, s[starts[i]:starts[i+1]])
	}
	// Drop the newline that was added in front of the trailer.
	last := len(blocks) - 1
	blocks[last] = blocks[last][:len(blocks[last])-1]
	return blocks
}
