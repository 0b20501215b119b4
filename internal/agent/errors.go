// internal/agent/errors.go
package agent

// FailureKind classifies why a command did not run to completion. It is
// attached to log entries so failures can be grouped without parsing the
// human-readable message.
type FailureKind string

const (
	// FailurePlanning means the model call or plan parsing failed. It never
	// escapes the Planner; the plan comes back empty with a rationale.
	FailurePlanning FailureKind = "PLANNING_FAILURE"
	// FailureTargetResolution means no page context could be resolved. It is
	// fatal to the command and surfaces as RunResult.Error.
	FailureTargetResolution FailureKind = "TARGET_RESOLUTION_FAILURE"
	// FailureActionDispatch means the page side rejected or failed an action.
	FailureActionDispatch FailureKind = "ACTION_DISPATCH_FAILURE"
	// FailureTransport means the request/response round trip itself failed.
	// The coordinator treats it exactly like FailureActionDispatch.
	FailureTransport FailureKind = "TRANSPORT_FAILURE"
	FailureCancelled FailureKind = "CANCELLED"
	// FailurePanic marks a collaborator panic recovered at the entry point.
	FailurePanic FailureKind = "PANIC"
)

// defaultDispatchError is reported when the page side answers ok:false
// without saying why.
const defaultDispatchError = "action failed without an error message"
