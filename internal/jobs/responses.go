package jobs

import "fmt"

// Tool response shapes. Every operation returns one of these as data; errors
// from the run system are folded into the payload and never propagated, so a
// failing call degrades the conversation instead of aborting it.

// StartResponse is returned by the start operation
type StartResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	RunID   int64  `json:"run_id,omitempty"`
	JobID   string `json:"job_id,omitempty"`
}

// TaskResult describes one sub-task of a finished run
type TaskResult struct {
	TaskKey string `json:"task_key"`
	State   string `json:"state"`
	Result  string `json:"result,omitempty"`
}

// PollResponse is a point-in-time snapshot of a run
type PollResponse struct {
	Success        bool         `json:"success"`
	Message        string       `json:"message,omitempty"`
	Error          string       `json:"error,omitempty"`
	RunID          string       `json:"run_id,omitempty"`
	LifeCycleState string       `json:"life_cycle_state,omitempty"`
	IsRunning      bool         `json:"is_running"`
	StateMessage   string       `json:"state_message,omitempty"`
	ResultState    string       `json:"result_state,omitempty"`
	IsSuccessful   *bool        `json:"is_successful,omitempty"`
	Tasks          []TaskResult `json:"tasks,omitempty"`
}

// TerminateResponse is returned by the terminate operation
type TerminateResponse struct {
	Success        bool   `json:"success"`
	Message        string `json:"message,omitempty"`
	Error          string `json:"error,omitempty"`
	RunID          string `json:"run_id,omitempty"`
	LifeCycleState string `json:"life_cycle_state,omitempty"`
}

// failMessage formats a consistent human-readable failure message the model
// can relay to the user
func failMessage(operation, identifier string, err error) string {
	if identifier != "" {
		return fmt.Sprintf("Failed to %s for %s: %v", operation, identifier, err)
	}
	return fmt.Sprintf("Failed to %s: %v", operation, err)
}
