package agent

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/pilot/internal/llmutil"
)

func rawActions(items ...string) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(items))
	for _, it := range items {
		out = append(out, json.RawMessage(it))
	}
	return out
}

func TestParsePlan(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		wantActions   []json.RawMessage
		wantRationale string
	}{
		{
			name:          "wrapped in prose",
			input:         `Sure! {"actions":[{"type":"navigate","url":"https://example.com"}],"rationale":"go"} Thanks`,
			wantActions:   rawActions(`{"type":"navigate","url":"https://example.com"}`),
			wantRationale: "go",
		},
		{
			name:        "empty actions",
			input:       `{"actions":[]}`,
			wantActions: rawActions(),
		},
		{
			name:        "elements kept without validation",
			input:       "```json\n{\"actions\":[{\"type\":\"scroll\"}, 42]}\n```",
			wantActions: rawActions(`{"type":"scroll"}`, `42`),
		},
		{
			name:        "non-string rationale dropped",
			input:       `{"actions":[{"type":"wait"}],"rationale":{"why":"x"}}`,
			wantActions: rawActions(`{"type":"wait"}`),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := ParsePlan(tt.input)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.wantActions, plan.Actions); diff != "" {
				t.Errorf("actions mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, tt.wantRationale, plan.Rationale)
		})
	}
}

func TestParsePlan_Errors(t *testing.T) {
	t.Run("no braces", func(t *testing.T) {
		_, err := ParsePlan("I cannot help with that.")
		assert.ErrorIs(t, err, llmutil.ErrNoJSONObject)
	})

	t.Run("missing actions", func(t *testing.T) {
		_, err := ParsePlan(`{"rationale":"nothing"}`)
		assert.ErrorIs(t, err, ErrInvalidPlan)
	})

	t.Run("actions not an array", func(t *testing.T) {
		_, err := ParsePlan(`{"actions":{"type":"wait"}}`)
		assert.ErrorIs(t, err, ErrInvalidPlan)
	})

	t.Run("null actions", func(t *testing.T) {
		_, err := ParsePlan(`{"actions":null}`)
		assert.ErrorIs(t, err, ErrInvalidPlan)
	})

	t.Run("two objects span invalid JSON", func(t *testing.T) {
		_, err := ParsePlan(`{"actions":[]} and {"actions":[]}`)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to decode plan JSON")
	})
}
