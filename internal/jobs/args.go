package jobs

// WorkflowKind identifies the agent workflow job definition. It is fixed for
// the process lifetime; individual executions are identified by run id.
const WorkflowKind = "agent_workflow"

// WorkflowArgs carries the user's request into a detached run
type WorkflowArgs struct {
	UserRequest string         `json:"user_request"`
	Params      map[string]any `json:"params,omitempty"`
}

// Kind returns the job kind for River
func (WorkflowArgs) Kind() string { return WorkflowKind }
