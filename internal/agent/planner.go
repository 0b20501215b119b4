// internal/agent/planner.go
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot/api/schemas"
	"github.com/xkilldash9x/pilot/internal/llmutil"
)

// PlannerOptions tunes the Planner.
type PlannerOptions struct {
	// RationaleMaxLen bounds the raw model text echoed into a failure
	// rationale. Zero keeps it whole.
	RationaleMaxLen int
}

// Planner turns a free-text command into a Plan by asking a language model.
type Planner struct {
	model  schemas.ModelInvoker
	opts   PlannerOptions
	logger *zap.Logger
}

// NewPlanner creates a Planner around the given model capability.
func NewPlanner(model schemas.ModelInvoker, opts PlannerOptions, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{
		model:  model,
		opts:   opts,
		logger: logger.Named("planner"),
	}
}

// PlanFromCommand never fails. A model error or an unparseable response yields
// an empty plan whose rationale starts with "Failed to parse plan:".
func (p *Planner) PlanFromCommand(ctx context.Context, command string) schemas.Plan {
	prompt := BuildPrompt(command)

	if p.model == nil {
		return p.failed(fmt.Errorf("%w: no model configured", schemas.ErrModelUnavailable), "")
	}

	raw, err := p.model.Invoke(ctx, prompt)
	if err != nil {
		return p.failed(err, "")
	}

	plan, err := ParsePlan(raw)
	if err != nil {
		return p.failed(err, raw)
	}

	p.logger.Debug("Plan received from model.",
		zap.Int("actions", len(plan.Actions)),
		zap.String("rationale", plan.Rationale))
	return plan
}

func (p *Planner) failed(reason error, raw string) schemas.Plan {
	p.logger.Warn("Planning failed, returning an empty plan.",
		zap.String("failure", string(FailurePlanning)),
		zap.Error(reason),
		zap.Int("raw_len", len(raw)))
	return schemas.Plan{
		Actions:   []json.RawMessage{},
		Rationale: fmt.Sprintf("Failed to parse plan: %s\nRaw: %s", reason.Error(), llmutil.Truncate(raw, p.opts.RationaleMaxLen)),
	}
}

// BuildPrompt composes the fixed instruction preamble with the user command.
func BuildPrompt(command string) string {
	var b strings.Builder
	b.WriteString(systemInstructions)
	b.WriteString("\nUser: ")
	b.WriteString(command)
	b.WriteString("\nJSON:")
	return b.String()
}

const systemInstructions = `You plan browser automation steps for a user.
Reply with ONLY a JSON object of the form {"actions":[...],"rationale":"..."}. Do not use markdown or code fences and do not add any text outside the object.

Each element of "actions" is one of:
  {"type":"navigate","url":"<absolute URL>"}
  {"type":"click","selector":"<CSS selector>"}
  {"type":"type","selector":"<CSS selector>","text":"<text>","submit":<true|false, optional>}
  {"type":"wait","ms":<milliseconds, optional, defaults to 1000>}
  {"type":"starGithubRepo","owner":"<owner>","repo":"<repository>"}

Rules:
  - Actions run strictly in order and the run stops at the first failure.
  - navigate does not wait for the page to load. Put a wait after it before interacting with the new page.
  - Prefer stable selectors such as ids, names and aria-labels.
  - To star a GitHub repository use starGithubRepo instead of navigate and click.
  - If the request cannot be done with these actions, return an empty actions array and explain why in rationale.`
