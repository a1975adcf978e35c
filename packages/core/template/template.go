package template

import (
	"regexp"
	"strings"
)

var (
	escapePattern   = regexp.MustCompile(`^\$\$`)
	functionPattern = regexp.MustCompile(`^\$\{([a-zA-Z_]\w*)\(([\$\w\.\-/\s=,]*)\)\}`)
	variablePattern = regexp.MustCompile(`^(?:\$\{([a-zA-Z_]\w*)\}|\$([a-zA-Z_]\w*))`)
)

type SegmentKind int

const (
	SegmentLiteral SegmentKind = iota
	SegmentEscape
	SegmentVariable
	SegmentFunction
)

func (k SegmentKind) String() string {
	switch k {
	case SegmentEscape:
		return "escape"
	case SegmentVariable:
		return "variable"
	case SegmentFunction:
		return "function"
	default:
		return "literal"
	}
}

// Segment is one region of a template string. Raw is the exact source text;
// Name is set for variables and functions, Args for functions.
type Segment struct {
	Kind SegmentKind
	Raw  string
	Name string
	Args string
}

// Parse splits raw into segments, left to right. At every "$" it tries, in
// order, the "$$" escape, a ${func(args)} call, then ${var} or $var. A "$"
// that starts none of them is kept as literal text.
func Parse(raw string) []Segment {
	start := strings.IndexByte(raw, '$')
	if start < 0 {
		if raw == "" {
			return nil
		}
		return []Segment{{Kind: SegmentLiteral, Raw: raw}}
	}

	var segments []Segment
	if start > 0 {
		segments = append(segments, Segment{Kind: SegmentLiteral, Raw: raw[:start]})
	}

	pos := start
	for pos < len(raw) {
		rest := raw[pos:]

		if loc := escapePattern.FindStringIndex(rest); loc != nil {
			segments = append(segments, Segment{Kind: SegmentEscape, Raw: rest[:loc[1]]})
			pos += loc[1]
			continue
		}

		if m := functionPattern.FindStringSubmatch(rest); m != nil {
			segments = append(segments, Segment{Kind: SegmentFunction, Raw: m[0], Name: m[1], Args: m[2]})
			pos += len(m[0])
			continue
		}

		if m := variablePattern.FindStringSubmatch(rest); m != nil {
			name := m[1]
			if name == "" {
				name = m[2]
			}
			segments = append(segments, Segment{Kind: SegmentVariable, Raw: m[0], Name: name})
			pos += len(m[0])
			continue
		}

		next := strings.IndexByte(raw[pos+1:], '$')
		end := len(raw)
		if next >= 0 {
			end = pos + 1 + next
		}
		segments = appendLiteral(segments, raw[pos:end])
		pos = end
	}
	return segments
}

// appendLiteral merges consecutive literal runs.
func appendLiteral(segments []Segment, text string) []Segment {
	if n := len(segments); n > 0 && segments[n-1].Kind == SegmentLiteral {
		segments[n-1].Raw += text
		return segments
	}
	return append(segments, Segment{Kind: SegmentLiteral, Raw: text})
}
