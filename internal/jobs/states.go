package jobs

import (
	"encoding/json"

	"github.com/riverqueue/river/rivertype"
)

// LifeCycleState is the coarse status classification of a run, independent
// of its success/failure outcome
type LifeCycleState string

const (
	LifeCycleStatePending     LifeCycleState = "PENDING"
	LifeCycleStateRunning     LifeCycleState = "RUNNING"
	LifeCycleStateTerminating LifeCycleState = "TERMINATING"
	LifeCycleStateTerminated  LifeCycleState = "TERMINATED"
)

// ResultState is the terminal outcome of a finished run
type ResultState string

const (
	ResultStateSuccess  ResultState = "SUCCESS"
	ResultStateFailed   ResultState = "FAILED"
	ResultStateCanceled ResultState = "CANCELED"
)

// classifyLifeCycle maps the queue's job state onto the run lifecycle. A
// running job whose cancellation has been requested but not yet observed by
// its worker reports TERMINATING.
func classifyLifeCycle(job *rivertype.JobRow) LifeCycleState {
	switch job.State {
	case rivertype.JobStatePending, rivertype.JobStateScheduled,
		rivertype.JobStateAvailable, rivertype.JobStateRetryable:
		return LifeCycleStatePending
	case rivertype.JobStateRunning:
		if cancelRequested(job) {
			return LifeCycleStateTerminating
		}
		return LifeCycleStateRunning
	default:
		return LifeCycleStateTerminated
	}
}

// classifyResult returns the terminal result for a finalized run. The second
// return is false while the run has no result yet.
func classifyResult(job *rivertype.JobRow) (ResultState, bool) {
	switch job.State {
	case rivertype.JobStateCompleted:
		return ResultStateSuccess, true
	case rivertype.JobStateCancelled:
		return ResultStateCanceled, true
	case rivertype.JobStateDiscarded:
		return ResultStateFailed, true
	default:
		return "", false
	}
}

// isRunning reports whether the run is still in flight
func isRunning(state LifeCycleState) bool {
	switch state {
	case LifeCycleStatePending, LifeCycleStateRunning, LifeCycleStateTerminating:
		return true
	}
	return false
}

// isCancellable reports whether terminate may act on the run. TERMINATING is
// deliberately excluded: a cancellation already in progress is not
// re-cancellable.
func isCancellable(state LifeCycleState) bool {
	return state == LifeCycleStatePending || state == LifeCycleStateRunning
}

// cancelRequested checks the job metadata for a pending cancellation marker
func cancelRequested(job *rivertype.JobRow) bool {
	if len(job.Metadata) == 0 {
		return false
	}
	var meta map[string]json.RawMessage
	if err := json.Unmarshal(job.Metadata, &meta); err != nil {
		return false
	}
	_, ok := meta["cancel_attempted_at"]
	return ok
}

// stateMessage surfaces the most recent execution error, if any
func stateMessage(job *rivertype.JobRow) string {
	if len(job.Errors) == 0 {
		return ""
	}
	return job.Errors[len(job.Errors)-1].Error
}
