package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanFences(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare json", `{"a": 1}`, `{"a": 1}`},
		{"json fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"plain fence", "```\n[1, 2]\n```", "[1, 2]"},
		{"surrounding whitespace", "  ```json\n{}\n```  ", "{}"},
		{"no closing fence", "```json\n{}", "{}"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, cleanFences(tc.in))
		})
	}
}

func TestDecodeOrSuccess(t *testing.T) {
	got, ok := decodeOr("```json\n{\"x.tsx\": {\"new_tag\": \"y.tsx\"}}\n```", map[string]MappingEntry{})
	assert.True(t, ok)
	assert.Equal(t, "y.tsx", got["x.tsx"].NewTag)
}

func TestDecodeOrReturnsDefaultOnFailure(t *testing.T) {
	def := []Constraint{{Type: "kept"}}
	got, ok := decodeOr("no json here", def)
	assert.False(t, ok)
	assert.Equal(t, def, got)
}

func TestLimitString(t *testing.T) {
	assert.Equal(t, "short", limitString("short", 10))
	assert.Equal(t, "abc...", limitString("abcdef", 3))
}
