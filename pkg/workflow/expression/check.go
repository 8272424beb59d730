package expression

import (
	"strings"
)

const (
	// Prefix marks a parameter value as a live expression.
	Prefix = "="

	openMarker  = "{{"
	closeMarker = "}}"
)

// IssueCode identifies a formatting rule.
type IssueCode string

const (
	MissingPrefix IssueCode = "missing-prefix"
	DoublePrefix  IssueCode = "double-prefix"
	Unbalanced    IssueCode = "unbalanced-markers"
	EmptyMarkers  IssueCode = "empty-expression"
	NestedMarkers IssueCode = "nested-markers"
)

// Problem is one violated formatting rule.
type Problem struct {
	Code    IssueCode `json:"code"`
	Message string    `json:"message"`
}

// Verdict is the result of checking one parameter value.
type Verdict struct {
	HasExpression bool      `json:"hasExpression"`
	HasPrefix     bool      `json:"hasPrefix"`
	Valid         bool      `json:"valid"`
	Problems      []Problem `json:"problems,omitempty"`
	// Suggestion is the corrected value, set only when the correction is mechanical.
	Suggestion string  `json:"suggestion,omitempty"`
	Confidence float64 `json:"confidence"`
}

// Has reports whether the verdict contains a problem with the given code.
func (v Verdict) Has(code IssueCode) bool {
	for _, p := range v.Problems {
		if p.Code == code {
			return true
		}
	}
	return false
}

// Message joins the problem messages.
func (v Verdict) Message() string {
	msgs := make([]string, len(v.Problems))
	for i, p := range v.Problems {
		msgs[i] = p.Message
	}
	return strings.Join(msgs, "; ")
}

// segment is one {{ ... }} span found by scan.
type segment struct {
	start, end int // byte offsets of the outer markers, end exclusive
	body       string
	nested     bool
}

// scanResult describes the marker structure of a string.
type scanResult struct {
	segments   []segment
	unclosed   int
	unopened   int
	hasNesting bool
}

// scan walks s once and pairs markers. Inner markers of a nested span are
// folded into the outer segment.
func scan(s string) scanResult {
	var res scanResult
	depth := 0
	start := 0
	nested := false
	for i := 0; i < len(s)-1; {
		switch {
		case s[i:i+2] == openMarker:
			if depth == 0 {
				start = i
				nested = false
			} else {
				nested = true
				res.hasNesting = true
			}
			depth++
			i += 2
		case s[i:i+2] == closeMarker:
			if depth == 0 {
				res.unopened++
				i += 2
				continue
			}
			depth--
			if depth == 0 {
				res.segments = append(res.segments, segment{
					start:  start,
					end:    i + 2,
					body:   s[start+2 : i],
					nested: nested,
				})
			}
			i += 2
		default:
			i++
		}
	}
	res.unclosed = depth
	return res
}

// Check inspects a single parameter value. Non-string values and strings
// without markers are valid.
func Check(value any) Verdict {
	v := Verdict{Valid: true, Confidence: 1.0}
	s, ok := value.(string)
	if !ok || !strings.Contains(s, openMarker) {
		if ok {
			v.HasPrefix = strings.HasPrefix(s, Prefix)
		}
		return v
	}

	v.HasExpression = true
	v.HasPrefix = strings.HasPrefix(s, Prefix)
	res := scan(s)
	mechanical := true

	if strings.HasPrefix(s, Prefix+Prefix) {
		v.Problems = append(v.Problems, Problem{
			Code:    DoublePrefix,
			Message: "Expression has a double '=' prefix; the runtime evaluates only a single '='",
		})
	}
	if !v.HasPrefix {
		v.Problems = append(v.Problems, Problem{
			Code:    MissingPrefix,
			Message: "Expression is missing the '=' prefix and will be treated as literal text",
		})
	}
	if res.unclosed > 0 || res.unopened > 0 {
		v.Problems = append(v.Problems, Problem{
			Code:    Unbalanced,
			Message: "Expression markers are unbalanced: every '{{' needs a matching '}}'",
		})
		mechanical = false
	}
	for _, seg := range res.segments {
		if strings.TrimSpace(seg.body) == "" {
			v.Problems = append(v.Problems, Problem{
				Code:    EmptyMarkers,
				Message: "Expression markers '{{ }}' contain nothing to evaluate",
			})
			mechanical = false
			break
		}
	}
	if res.hasNesting {
		v.Problems = append(v.Problems, Problem{
			Code:    NestedMarkers,
			Message: "Expression markers are nested; use a single '{{ }}' pair per expression",
		})
	}

	if len(v.Problems) == 0 {
		return v
	}
	v.Valid = false
	if mechanical {
		if fixed := correct(s, res); fixed != s {
			v.Suggestion = fixed
		}
	}
	return v
}

// correct applies the mechanical fixes: flatten nested markers and normalize
// the prefix to exactly one '='.
func correct(s string, res scanResult) string {
	if res.hasNesting {
		var b strings.Builder
		last := 0
		for _, seg := range res.segments {
			b.WriteString(s[last:seg.start])
			body := seg.body
			if seg.nested {
				body = strings.ReplaceAll(strings.ReplaceAll(body, openMarker, ""), closeMarker, "")
				body = " " + strings.Join(strings.Fields(body), " ") + " "
			}
			b.WriteString(openMarker + body + closeMarker)
			last = seg.end
		}
		b.WriteString(s[last:])
		s = b.String()
	}
	return Prefix + strings.TrimLeft(s, Prefix)
}
