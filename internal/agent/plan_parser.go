// internal/agent/plan_parser.go
package agent

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/xkilldash9x/pilot/api/schemas"
	"github.com/xkilldash9x/pilot/internal/llmutil"
)

// ErrInvalidPlan is returned when the decoded object has no usable actions array.
var ErrInvalidPlan = errors.New("invalid plan: actions missing or not an array")

// ParsePlan extracts the plan object from raw model text. The span between the
// first '{' and the last '}' is decoded; the actions array is returned as-is,
// element for element, without validating the individual actions.
func ParsePlan(raw string) (schemas.Plan, error) {
	snippet, err := llmutil.ExtractJSONObject(raw)
	if err != nil {
		return schemas.Plan{}, err
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(snippet), &doc); err != nil {
		return schemas.Plan{}, fmt.Errorf("failed to decode plan JSON: %w", err)
	}

	actionsRaw, ok := doc["actions"]
	if !ok || !isJSONArray(actionsRaw) {
		return schemas.Plan{}, ErrInvalidPlan
	}

	var actions []json.RawMessage
	if err := json.Unmarshal(actionsRaw, &actions); err != nil {
		return schemas.Plan{}, fmt.Errorf("failed to decode plan actions: %w", err)
	}
	if actions == nil {
		actions = []json.RawMessage{}
	}

	plan := schemas.Plan{Actions: actions}
	if r, ok := doc["rationale"]; ok {
		// A non-string rationale is dropped rather than failing the plan.
		var rationale string
		if json.Unmarshal(r, &rationale) == nil {
			plan.Rationale = rationale
		}
	}
	return plan, nil
}

func isJSONArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}
