package expression

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheck(t *testing.T) {
	tests := []struct {
		name       string
		value      any
		valid      bool
		hasExpr    bool
		codes      []IssueCode
		suggestion string
	}{
		{name: "plain text", value: "hello", valid: true},
		{name: "number", value: 42.0, valid: true},
		{name: "nil", value: nil, valid: true},
		{name: "live expression", value: "={{ $json.url }}", valid: true, hasExpr: true},
		{name: "mixed text with prefix", value: "=Hello {{ $json.name }}!", valid: true, hasExpr: true},
		{name: "two expressions", value: "={{ $json.a }}-{{ $json.b }}", valid: true, hasExpr: true},
		{
			name:       "missing prefix",
			value:      "{{ $json.url }}",
			hasExpr:    true,
			codes:      []IssueCode{MissingPrefix},
			suggestion: "={{ $json.url }}",
		},
		{
			name:       "missing prefix in text",
			value:      "Order {{ $json.id }} shipped",
			hasExpr:    true,
			codes:      []IssueCode{MissingPrefix},
			suggestion: "=Order {{ $json.id }} shipped",
		},
		{
			name:       "double prefix",
			value:      "=={{ $json.url }}",
			hasExpr:    true,
			codes:      []IssueCode{DoublePrefix},
			suggestion: "={{ $json.url }}",
		},
		{
			name:    "unclosed",
			value:   "={{ $json.url",
			hasExpr: true,
			codes:   []IssueCode{Unbalanced},
		},
		{
			name:    "extra close",
			value:   "={{ $json.url }} }}",
			hasExpr: true,
			codes:   []IssueCode{Unbalanced},
		},
		{
			name:    "empty markers",
			value:   "={{   }}",
			hasExpr: true,
			codes:   []IssueCode{EmptyMarkers},
		},
		{
			name:       "nested markers",
			value:      "={{ {{ $json.url }} }}",
			hasExpr:    true,
			codes:      []IssueCode{NestedMarkers},
			suggestion: "={{ $json.url }}",
		},
		{
			name:       "nested and missing prefix",
			value:      "{{ {{ $json.url }} }}",
			hasExpr:    true,
			codes:      []IssueCode{MissingPrefix, NestedMarkers},
			suggestion: "={{ $json.url }}",
		},
		{
			name:    "missing prefix and empty",
			value:   "{{}}",
			hasExpr: true,
			codes:   []IssueCode{MissingPrefix, EmptyMarkers},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Check(tt.value)
			assert.Equal(t, tt.valid, v.Valid)
			assert.Equal(t, tt.hasExpr, v.HasExpression)
			assert.Equal(t, 1.0, v.Confidence)
			assert.Equal(t, tt.suggestion, v.Suggestion)

			var codes []IssueCode
			for _, p := range v.Problems {
				codes = append(codes, p.Code)
			}
			assert.Equal(t, tt.codes, codes)
		})
	}
}

func TestCheckSuggestionPasses(t *testing.T) {
	for _, value := range []string{"{{ $json.url }}", "=={{ $json.url }}", "{{ {{ $json.url }} }}", "a {{ $json.x }} b"} {
		v := Check(value)
		if assert.False(t, v.Valid, value) && assert.NotEmpty(t, v.Suggestion, value) {
			assert.True(t, Check(v.Suggestion).Valid, "suggestion for %q should pass: %q", value, v.Suggestion)
		}
	}
}

func TestVerdictMessage(t *testing.T) {
	v := Check("{{}}")
	assert.True(t, v.Has(MissingPrefix))
	assert.False(t, v.Has(DoublePrefix))
	assert.Contains(t, v.Message(), "missing the '=' prefix")
	assert.Contains(t, v.Message(), "contain nothing to evaluate")
}
