package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type planShape struct {
	Subtasks []string `json:"subtasks"`
}

func TestRecoverJSON(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []string
		wantErr bool
	}{
		{
			name: "direct object",
			raw:  `{"subtasks":["a","b"]}`,
			want: []string{"a", "b"},
		},
		{
			name: "json fence",
			raw:  "Here is the plan:\n```json\n{\"subtasks\":[\"a\"]}\n```",
			want: []string{"a"},
		},
		{
			name: "plain fence",
			raw:  "```\n{\"subtasks\":[\"a\"]}\n```\nDone.",
			want: []string{"a"},
		},
		{
			name: "object buried in prose",
			raw:  `Sure! The result is {"subtasks":["a"]} as requested.`,
			want: []string{"a"},
		},
		{
			name: "trailing comma repaired",
			raw:  `{"subtasks":["a","b",]}`,
			want: []string{"a", "b"},
		},
		{
			name: "braces inside strings",
			raw:  `prefix {"subtasks":["keep {this}"]} suffix`,
			want: []string{"keep {this}"},
		},
		{
			name:    "no json at all",
			raw:     "I cannot answer that.",
			wantErr: true,
		},
		{
			name:    "empty output",
			raw:     "   \n ",
			wantErr: true,
		},
		{
			name:    "unbalanced object",
			raw:     `{"subtasks":["a"`,
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got planShape
			err := RecoverJSON(tc.raw, &got)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.Subtasks)
		})
	}
}

func TestFirstBalancedObject(t *testing.T) {
	assert.Equal(t, `{"a":1}`, firstBalancedObject(`x {"a":1} y`))
	assert.Equal(t, `{"a":{"b":2}}`, firstBalancedObject(`{"a":{"b":2}} trailing {`))
	assert.Equal(t, "", firstBalancedObject("no braces here"))
	assert.Equal(t, "", firstBalancedObject(`{"open": "never closes`))
}
