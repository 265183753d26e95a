package block

import (
	"regexp"
	"strings"
)

// DefaultPattern matches any message; used by error and warning blocks that
// name no pattern.
const DefaultPattern = "."

var (
	bugRe          = regexp.MustCompile(`^\s*<(\*?)([^>]*)>`)
	trailingBugRe  = regexp.MustCompile(`<(\*?)([^>]*)>\s*$`)
	patternRe      = regexp.MustCompile(`^\s*<(.*?)>`)
	idRe           = regexp.MustCompile(`^\s*id=(\S+)`)
	functionRe     = regexp.MustCompile(`^\s*(?:([A-Za-z_]\w*)\s*=\s*)?([A-Za-z_]\w*)\s*\(([^)]*)\)(.*)$`)
	nameSeparators = regexp.MustCompile(`[,\s]+`)
)

// Classify turns one raw block into its typed form.
func Classify(raw string) Block {
	b := base{raw: raw}
	if raw == "" {
		return &UnknownBlock{base: b}
	}
	if raw[0] == '%' || raw[0] == '#' {
		return &CommentBlock{base: b}
	}

	n := 0
	for n < len(raw) && isLetter(raw[n]) {
		n++
	}
	tag, payload := raw[:n], raw[n:]

	switch Kind(tag) {
	case KindShared:
		return classifyShared(b, payload)
	case KindFunction:
		return classifyFunction(b, payload)
	case KindEndFunction:
		return &EndFunctionBlock{base: b}
	case KindAssert, KindFail, KindTest, KindXTest:
		bug, code := splitBug(payload)
		return &TestBlock{base: b, kind: Kind(tag), Code: code, Bug: bug}
	case KindError, KindWarning:
		return classifyExpect(b, payload, Kind(tag) == KindWarning)
	case KindTestIf:
		return classifyTestIf(b, payload)
	case KindDemo:
		return &DemoBlock{base: b, Code: payload}
	default:
		return &UnknownBlock{base: b, Tag: tag}
	}
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func classifyShared(b base, payload string) *SharedBlock {
	line, rest, _ := strings.Cut(payload, "\n")
	line = stripComment(line)

	var names []string
	for _, name := range nameSeparators.Split(strings.TrimSpace(line), -1) {
		if name != "" {
			names = append(names, name)
		}
	}

	init := rest
	if strings.TrimSpace(init) == "" {
		init = ""
	}
	return &SharedBlock{base: b, Names: names, Init: init}
}

// stripComment removes a trailing %, # or // comment from a name list.
func stripComment(line string) string {
	cut := len(line)
	for _, marker := range []string{"%", "#", "//"} {
		if i := strings.Index(line, marker); i >= 0 && i < cut {
			cut = i
		}
	}
	return line[:cut]
}

func classifyFunction(b base, payload string) *FunctionBlock {
	header, body, _ := strings.Cut(payload, "\n")
	fb := &FunctionBlock{base: b, Body: body}

	m := functionRe.FindStringSubmatch(header)
	if m == nil {
		return fb
	}
	fb.Result = m[1]
	fb.Name = m[2]
	fb.Params = strings.TrimSpace(m[3])
	fb.Tail = strings.TrimSpace(m[4])
	return fb
}

func splitBug(payload string) (BugRef, string) {
	m := bugRe.FindStringSubmatchIndex(payload)
	if m == nil {
		return BugRef{}, payload
	}
	ref := BugRef{
		Present: true,
		Fixed:   m[3] > m[2],
		ID:      strings.TrimSpace(payload[m[4]:m[5]]),
	}
	return ref, payload[m[1]:]
}

func classifyExpect(b base, payload string, warning bool) *ExpectBlock {
	eb := &ExpectBlock{base: b, Warning: warning, PatternText: DefaultPattern, Code: payload}

	if m := patternRe.FindStringSubmatchIndex(payload); m != nil {
		eb.PatternText = payload[m[2]:m[3]]
		eb.Code = payload[m[1]:]
	} else if m := idRe.FindStringSubmatchIndex(payload); m != nil {
		eb.ID = payload[m[2]:m[3]]
		eb.PatternText = ""
		eb.Code = payload[m[1]:]
		return eb
	}

	re, err := regexp.Compile(eb.PatternText)
	if err != nil {
		eb.PatternErr = err
		return eb
	}
	eb.Pattern = re
	return eb
}

func classifyTestIf(b base, payload string) *TestIfBlock {
	header, code, _ := strings.Cut(payload, "\n")
	tb := &TestIfBlock{base: b, Code: code}

	if m := trailingBugRe.FindStringSubmatchIndex(header); m != nil {
		tb.Bug = BugRef{
			Present: true,
			Fixed:   m[3] > m[2],
			ID:      strings.TrimSpace(header[m[4]:m[5]]),
		}
		header = header[:m[0]]
	}

	features, cond, _ := strings.Cut(header, ";")
	for _, f := range nameSeparators.Split(strings.TrimSpace(features), -1) {
		if f != "" {
			tb.Features = append(tb.Features, f)
		}
	}
	tb.Condition = strings.TrimSpace(cond)
	return tb
}
