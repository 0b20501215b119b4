// api/schemas/messages.go
package schemas

import (
	"encoding/json"
	"time"
)

// Plan is the parsed model output for one user command. Actions are kept as
// the raw JSON elements the model produced; they are validated when executed.
type Plan struct {
	Actions   []json.RawMessage `json:"actions"`
	Rationale string            `json:"rationale,omitempty"`
}

// ExecutionResult is the outcome of running a plan against one page context.
type ExecutionResult struct {
	OK   bool     `json:"ok"`
	Logs []string `json:"logs"`
}

// RunResult is what the top-level entry point hands back. It is either the
// normal shape (plan, ok, logs) or, when Error is set, the error shape alone.
type RunResult struct {
	Plan  Plan
	OK    bool
	Logs  []string
	Error string
}

// Failed reports whether the run ended in the error shape.
func (r RunResult) Failed() bool { return r.Error != "" }

// MarshalJSON renders the two result shapes as distinct objects.
func (r RunResult) MarshalJSON() ([]byte, error) {
	if r.Error != "" {
		return json.Marshal(struct {
			Error string `json:"error"`
		}{r.Error})
	}
	logs := r.Logs
	if logs == nil {
		logs = []string{}
	}
	plan := r.Plan
	if plan.Actions == nil {
		plan.Actions = []json.RawMessage{}
	}
	return json.Marshal(struct {
		Plan Plan     `json:"plan"`
		OK   bool     `json:"ok"`
		Logs []string `json:"logs"`
	}{plan, r.OK, logs})
}

// UnmarshalJSON accepts either result shape.
func (r *RunResult) UnmarshalJSON(data []byte) error {
	var aux struct {
		Plan  Plan     `json:"plan"`
		OK    bool     `json:"ok"`
		Logs  []string `json:"logs"`
		Error string   `json:"error"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = RunResult{Plan: aux.Plan, OK: aux.OK, Logs: aux.Logs, Error: aux.Error}
	return nil
}

// Target identifies one page context (a browser tab or an in-memory document).
type Target struct {
	ID    string `json:"id"`
	URL   string `json:"url,omitempty"`
	Title string `json:"title,omitempty"`
}

// Request kinds understood by the page side.
const (
	RequestPerform      = "perform"
	RequestActiveTarget = "activeTarget"
)

// PerformRequest is the controller-to-page message. ID correlates the single
// response to its request when the exchange crosses a connection.
type PerformRequest struct {
	ID      string          `json:"id,omitempty"`
	Action  string          `json:"action"`
	Target  *Target         `json:"target,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// PerformResponse is the page's single reply: either OK with a Log, or not OK
// with an Error. Target is only set when answering an activeTarget request.
type PerformResponse struct {
	ID     string  `json:"id,omitempty"`
	OK     bool    `json:"ok"`
	Log    string  `json:"log,omitempty"`
	Error  string  `json:"error,omitempty"`
	Target *Target `json:"target,omitempty"`
}

// RunRecord is one persisted PlanAndRun outcome.
type RunRecord struct {
	ID        string    `json:"id"`
	Command   string    `json:"command"`
	Result    RunResult `json:"result"`
	CreatedAt time.Time `json:"created_at"`
}
