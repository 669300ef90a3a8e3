// Package jobs wraps the run-based job system behind the three lifecycle
// operations the agent exposes as tools: start, poll, terminate.
package jobs

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivertype"
	"github.com/rs/zerolog/log"
)

// RunAPI is the slice of the River client the lifecycle operations use.
// Tests substitute a fake; production passes *river.Client[pgx.Tx].
type RunAPI interface {
	Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
	JobGet(ctx context.Context, id int64) (*rivertype.JobRow, error)
	JobCancel(ctx context.Context, id int64) (*rivertype.JobRow, error)
}

// Client issues lifecycle operations against the run system. It is
// constructed once by the composition root and passed explicitly to
// everything that needs it; there is no cached singleton. For test
// isolation, build a fresh one with NewClientWithRunAPI per test.
type Client struct {
	api   RunAPI
	queue string
}

// NewClient creates an insert-only River client over the given pool. The
// queue names the run system's pre-configured job target; it is read-only
// for the process lifetime.
func NewClient(pool *pgxpool.Pool, queue string) (*Client, error) {
	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create River client: %w", err)
	}
	return NewClientWithRunAPI(riverClient, queue), nil
}

// NewClientWithRunAPI creates a client over an explicit RunAPI
func NewClientWithRunAPI(api RunAPI, queue string) *Client {
	return &Client{api: api, queue: queue}
}

// Start launches a new run carrying the user's request. Every invocation
// starts a new run; there is no deduplication.
func (c *Client) Start(ctx context.Context, userRequest string, params map[string]any) StartResponse {
	args := WorkflowArgs{
		UserRequest: userRequest,
		Params:      params,
	}

	log.Info().Str("queue", c.queue).Msg("Starting agent workflow run")

	result, err := c.api.Insert(ctx, args, &river.InsertOpts{Queue: c.queue})
	if err != nil {
		log.Error().Err(err).Str("queue", c.queue).Msg("Failed to start run")
		return StartResponse{
			Success: false,
			Error:   err.Error(),
			Message: failMessage("start job", "job "+WorkflowKind, err),
		}
	}

	runID := result.Job.ID
	log.Info().Int64("run_id", runID).Msg("Run started")

	return StartResponse{
		Success: true,
		Message: fmt.Sprintf("Job started successfully. Run ID: %d. "+
			"The user can check the status later by asking about run %d.", runID, runID),
		RunID: runID,
		JobID: WorkflowKind,
	}
}

// Poll returns a point-in-time snapshot of a run. It never waits for
// completion; repeated polling is the caller's responsibility.
func (c *Client) Poll(ctx context.Context, runID string) PollResponse {
	id, err := strconv.ParseInt(runID, 10, 64)
	if err != nil {
		return PollResponse{
			Success: false,
			Error:   err.Error(),
			Message: failMessage("get status", "run "+runID, err),
		}
	}

	log.Info().Str("run_id", runID).Msg("Polling run status")

	job, err := c.api.JobGet(ctx, id)
	if err != nil {
		return PollResponse{
			Success: false,
			Error:   err.Error(),
			Message: failMessage("get status", "run "+runID, err),
		}
	}

	lifecycle := classifyLifeCycle(job)

	resp := PollResponse{
		Success:        true,
		RunID:          runID,
		LifeCycleState: string(lifecycle),
		IsRunning:      isRunning(lifecycle),
		StateMessage:   stateMessage(job),
	}

	// Result info only once the run has one
	if result, ok := classifyResult(job); ok {
		resp.ResultState = string(result)
		successful := result == ResultStateSuccess
		resp.IsSuccessful = &successful
	}

	// Sub-task breakdown only once the run is no longer in flight
	if !resp.IsRunning {
		task := TaskResult{
			TaskKey: job.Kind,
			State:   string(lifecycle),
		}
		if result, ok := classifyResult(job); ok {
			task.Result = string(result)
		}
		resp.Tasks = []TaskResult{task}
	}

	log.Info().Str("run_id", runID).Str("state", string(lifecycle)).Msg("Run status")
	return resp
}

// Terminate cancels a run if, and only if, it is still cancellable. A run
// that has already finished or is already being cancelled is reported back
// with its current state rather than re-cancelled.
func (c *Client) Terminate(ctx context.Context, runID string) TerminateResponse {
	id, err := strconv.ParseInt(runID, 10, 64)
	if err != nil {
		return TerminateResponse{
			Success: false,
			Error:   err.Error(),
			Message: failMessage("terminate", "run "+runID, err),
		}
	}

	log.Info().Str("run_id", runID).Msg("Attempting to terminate run")

	job, err := c.api.JobGet(ctx, id)
	if err != nil {
		return TerminateResponse{
			Success: false,
			Error:   err.Error(),
			Message: failMessage("terminate", "run "+runID, err),
		}
	}

	lifecycle := classifyLifeCycle(job)

	if !isCancellable(lifecycle) {
		log.Warn().Str("run_id", runID).Str("state", string(lifecycle)).
			Msg("Run is not in a cancellable state")
		return TerminateResponse{
			Success: false,
			RunID:   runID,
			Message: fmt.Sprintf("Job run %s is not in a cancellable state. "+
				"Current state: %s", runID, lifecycle),
			LifeCycleState: string(lifecycle),
		}
	}

	if _, err := c.api.JobCancel(ctx, id); err != nil {
		return TerminateResponse{
			Success: false,
			Error:   err.Error(),
			Message: failMessage("terminate", "run "+runID, err),
		}
	}

	log.Info().Str("run_id", runID).Msg("Run cancelled")

	return TerminateResponse{
		Success: true,
		RunID:   runID,
		Message: fmt.Sprintf("Job run %s has been cancelled successfully.", runID),
	}
}

var _ RunAPI = (*river.Client[pgx.Tx])(nil)
