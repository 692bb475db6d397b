package summary

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain object", `{"summary":[]}`, `{"summary":[]}`},
		{"fenced json", "```json\n{\"summary\":[]}\n```", `{"summary":[]}`},
		{"fenced no language", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"prose around object", `Sure, here it is: {"a":1} hope that helps`, `{"a":1}`},
		{"leading whitespace", "  \n {\"a\":1}", `{"a":1}`},
		{"garbage", "no json here", ""},
		{"broken object", `{"a":`, ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractJSON(tt.in)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			assert.Equal(t, tt.want, string(got))
		})
	}
}
