package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"

	"github.com/taskrelay/internal/jobs"
	"github.com/taskrelay/internal/llm"
)

// Tool names. The set is closed: dispatch is an explicit switch, and the
// list handed to the model is fixed when the toolset is constructed.
const (
	ToolStartJob     = "start_job"
	ToolPollJob      = "poll_job"
	ToolTerminateJob = "terminate_job"
	ToolQueryData    = "query_data"
)

// JobClient is the job lifecycle surface the toolset dispatches to
type JobClient interface {
	Start(ctx context.Context, userRequest string, params map[string]any) jobs.StartResponse
	Poll(ctx context.Context, runID string) jobs.PollResponse
	Terminate(ctx context.Context, runID string) jobs.TerminateResponse
}

// QueryRunner executes read-only data queries
type QueryRunner interface {
	Query(ctx context.Context, sql string) (string, error)
}

// Toolset is the immutable set of tools available to one orchestrator. The
// detached task runner is built without a JobClient so a run can never
// launch further runs.
type Toolset struct {
	jobs  JobClient
	query QueryRunner
	defs  []llms.Tool
}

// NewToolset builds the tool list for the given capabilities. Passing nil
// for either component leaves its tools out; the resulting list never
// changes after construction.
func NewToolset(jobClient JobClient, queryRunner QueryRunner) *Toolset {
	t := &Toolset{jobs: jobClient, query: queryRunner}

	if jobClient != nil {
		t.defs = append(t.defs,
			llms.Tool{
				Type: "function",
				Function: &llms.FunctionDefinition{
					Name: ToolStartJob,
					Description: "Start a background job with the user's request. " +
						"Use this when a user wants to kick off a long-running task or workflow. " +
						"After starting, tell the user the run_id so they can check status later.",
					Parameters: map[string]any{
						"type": "object",
						"properties": map[string]any{
							"user_request": map[string]any{
								"type":        "string",
								"description": "The user's request/prompt to pass to the job.",
							},
							"params": map[string]any{
								"type":        "object",
								"description": "Optional additional parameters to pass to the job.",
							},
						},
						"required": []string{"user_request"},
					},
				},
			},
			llms.Tool{
				Type: "function",
				Function: &llms.FunctionDefinition{
					Name: ToolPollJob,
					Description: "Check the status of a previously started job run. " +
						"Use this when the user asks about the status of a run.",
					Parameters: map[string]any{
						"type": "object",
						"properties": map[string]any{
							"run_id": map[string]any{
								"type":        "string",
								"description": "The run ID returned when the job was started.",
							},
						},
						"required": []string{"run_id"},
					},
				},
			},
			llms.Tool{
				Type: "function",
				Function: &llms.FunctionDefinition{
					Name: ToolTerminateJob,
					Description: "Terminate/cancel a running job. " +
						"Use this when the user wants to stop a previously started run.",
					Parameters: map[string]any{
						"type": "object",
						"properties": map[string]any{
							"run_id": map[string]any{
								"type":        "string",
								"description": "The run ID of the job to terminate.",
							},
						},
						"required": []string{"run_id"},
					},
				},
			},
		)
	}

	if queryRunner != nil {
		t.defs = append(t.defs, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name: ToolQueryData,
				Description: "Run a read-only SQL query against the data warehouse " +
					"and return the results as a text table.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"query": map[string]any{
							"type":        "string",
							"description": "The SQL query to run. SELECT statements only.",
						},
					},
					"required": []string{"query"},
				},
			},
		})
	}

	return t
}

// Definitions returns the tool list for the model call
func (t *Toolset) Definitions() []llms.Tool {
	return t.defs
}

// Empty reports whether the toolset has no tools at all
func (t *Toolset) Empty() bool {
	return len(t.defs) == 0
}

// errorPayload is the structured failure shape fed back to the model
type errorPayload struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Execute runs one tool call and returns the JSON result content plus
// whether the call was the job-start tool. Failures never escape: every
// error becomes a structured payload so the model can explain it to the
// user instead of the turn aborting.
func (t *Toolset) Execute(ctx context.Context, call ToolCall) (string, bool) {
	args, repaired := llm.RepairArguments(call.Arguments)
	if repaired {
		log.Warn().Str("tool", call.Name).Msg("Repaired malformed tool arguments")
	}

	switch call.Name {
	case ToolStartJob:
		if t.jobs == nil {
			return marshalPayload(unknownTool(call.Name)), false
		}
		var input struct {
			UserRequest string         `json:"user_request"`
			Params      map[string]any `json:"params"`
		}
		if err := json.Unmarshal([]byte(args), &input); err != nil {
			return marshalPayload(badArguments(call.Name, err)), true
		}
		return marshalPayload(t.jobs.Start(ctx, input.UserRequest, input.Params)), true

	case ToolPollJob:
		if t.jobs == nil {
			return marshalPayload(unknownTool(call.Name)), false
		}
		var input struct {
			RunID string `json:"run_id"`
		}
		if err := json.Unmarshal([]byte(args), &input); err != nil {
			return marshalPayload(badArguments(call.Name, err)), false
		}
		return marshalPayload(t.jobs.Poll(ctx, input.RunID)), false

	case ToolTerminateJob:
		if t.jobs == nil {
			return marshalPayload(unknownTool(call.Name)), false
		}
		var input struct {
			RunID string `json:"run_id"`
		}
		if err := json.Unmarshal([]byte(args), &input); err != nil {
			return marshalPayload(badArguments(call.Name, err)), false
		}
		return marshalPayload(t.jobs.Terminate(ctx, input.RunID)), false

	case ToolQueryData:
		if t.query == nil {
			return marshalPayload(unknownTool(call.Name)), false
		}
		var input struct {
			Query string `json:"query"`
		}
		if err := json.Unmarshal([]byte(args), &input); err != nil {
			return marshalPayload(badArguments(call.Name, err)), false
		}
		result, err := t.query.Query(ctx, input.Query)
		if err != nil {
			log.Error().Err(err).Msg("Data query failed")
			return marshalPayload(errorPayload{
				Error:   err.Error(),
				Message: fmt.Sprintf("Failed to run query: %v", err),
			}), false
		}
		return result, false

	default:
		return marshalPayload(unknownTool(call.Name)), false
	}
}

func unknownTool(name string) errorPayload {
	return errorPayload{
		Error:   "unknown tool",
		Message: fmt.Sprintf("Tool %q is not available.", name),
	}
}

func badArguments(name string, err error) errorPayload {
	return errorPayload{
		Error:   err.Error(),
		Message: fmt.Sprintf("Failed to decode arguments for %s: %v", name, err),
	}
}

func marshalPayload(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		// Payload types are plain structs; this cannot realistically fail
		return fmt.Sprintf(`{"success":false,"error":%q}`, err.Error())
	}
	return string(raw)
}
