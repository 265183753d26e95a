package evaluator

import "strings"

// Dedent normalizes block code for languages that care about indentation.
// When code starts on the directive line, that first line is trimmed on its
// own and the remaining lines lose their common leading whitespace.
// Otherwise leading blank lines are dropped and all lines are dedented
// together.
func Dedent(code string) string {
	lines := strings.Split(strings.TrimRight(code, " \t\r\n"), "\n")
	onDirectiveLine := strings.TrimSpace(lines[0]) != ""
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	if len(lines) == 0 {
		return ""
	}

	var out []string
	rest := lines
	if onDirectiveLine {
		out = append(out, strings.TrimSpace(lines[0]))
		rest = lines[1:]
	}

	prefix := ""
	set := false
	for _, l := range rest {
		if strings.TrimSpace(l) == "" {
			continue
		}
		ws := l[:len(l)-len(strings.TrimLeft(l, " \t"))]
		if !set {
			prefix, set = ws, true
			continue
		}
		prefix = commonPrefix(prefix, ws)
	}

	for _, l := range rest {
		if strings.TrimSpace(l) == "" {
			out = append(out, "")
			continue
		}
		out = append(out, strings.TrimPrefix(l, prefix))
	}
	return strings.Join(out, "\n") + "\n"
}

// Indent prefixes every non-blank line of code with pad.
func Indent(code, pad string) string {
	lines := strings.Split(strings.TrimRight(code, "\n"), "\n")
	for i, l := range lines {
		if strings.TrimSpace(l) != "" {
			lines[i] = pad + l
		}
	}
	return strings.Join(lines, "\n") + "\n"
}

func commonPrefix(a, b string) string {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return a[:n]
}
