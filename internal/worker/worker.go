// Package worker executes detached agent workflow runs picked up from the
// job queue. A run is a fresh, single-turn conversation: it shares no state
// with the interactive thread that started it, and the only tools it can
// reach are read-only. Everything it does is written to the audit trail.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/riverqueue/river"
	"github.com/rs/zerolog/log"

	"github.com/taskrelay/internal/agent"
	"github.com/taskrelay/internal/jobs"
	"github.com/taskrelay/internal/llm"
	"github.com/taskrelay/internal/tasklog"
)

// TaskName labels audit entries written by workflow runs
const TaskName = "agent_workflow_task"

const maxAuditOutput = 2000

// Appender writes audit entries. Satisfied by tasklog.Store.
type Appender interface {
	Append(ctx context.Context, taskName, message, status string) error
}

// WorkflowWorker runs agent workflow jobs
type WorkflowWorker struct {
	river.WorkerDefaults[jobs.WorkflowArgs]
	orch  *agent.Orchestrator
	audit Appender
}

// NewWorkflowWorker builds the worker. The toolset is deliberately
// restricted: no job client, so a run cannot start, poll, or cancel other
// runs. queryRunner may be nil when data queries are disabled.
func NewWorkflowWorker(model llm.Generator, queryRunner agent.QueryRunner, audit Appender, systemPrompt string) *WorkflowWorker {
	return &WorkflowWorker{
		orch:  agent.NewOrchestrator(model, agent.NewToolset(nil, queryRunner), systemPrompt),
		audit: audit,
	}
}

// Work executes one workflow run. The run fails when the model fails or
// when an audit entry cannot be written; River then retries or discards
// per its policy.
func (w *WorkflowWorker) Work(ctx context.Context, job *river.Job[jobs.WorkflowArgs]) error {
	log.Info().
		Int64("run_id", job.ID).
		Str("request", job.Args.UserRequest).
		Msg("Starting agent workflow run")

	state := &agent.State{}
	state.Append(agent.Message{Role: agent.RoleUser, Content: workflowPrompt(job.Args)})

	emit := &auditEmitter{ctx: ctx, audit: w.audit}
	if err := w.orch.Run(ctx, state, emit); err != nil {
		return fmt.Errorf("workflow run %d failed: %w", job.ID, err)
	}
	if emit.err != nil {
		return fmt.Errorf("workflow run %d audit write failed: %w", job.ID, emit.err)
	}

	summary := strings.Join(emit.texts, "\n")
	if summary == "" {
		summary = "(no text output)"
	}
	if err := w.audit.Append(ctx, TaskName, summary, tasklog.StatusCompleted); err != nil {
		return fmt.Errorf("workflow run %d audit write failed: %w", job.ID, err)
	}

	log.Info().Int64("run_id", job.ID).Msg("Agent workflow run completed")
	return nil
}

// workflowPrompt renders the job arguments as the run's user message
func workflowPrompt(args jobs.WorkflowArgs) string {
	if len(args.Params) == 0 {
		return args.UserRequest
	}
	raw, err := json.Marshal(args.Params)
	if err != nil {
		return args.UserRequest
	}
	return args.UserRequest + "\n\nAdditional parameters: " + string(raw)
}

// auditEmitter mirrors the run into the audit trail as it happens. The
// first write failure latches; later events are dropped and the run fails
// once the loop returns.
type auditEmitter struct {
	ctx   context.Context
	audit Appender
	step  int
	err   error
	texts []string
}

func (e *auditEmitter) Item(msg agent.Message) {
	if e.err != nil {
		return
	}

	switch msg.Role {
	case agent.RoleAssistant:
		if msg.Content != "" {
			e.texts = append(e.texts, msg.Content)
		}
		for _, tc := range msg.ToolCalls {
			e.step++
			e.write(auditRecord{
				Step:      e.step,
				Tool:      tc.Name,
				Arguments: tc.Arguments,
			}, tasklog.StatusToolCall)
		}
	case agent.RoleTool:
		e.step++
		e.write(auditRecord{
			Step:       e.step,
			Tool:       msg.Name,
			ToolCallID: msg.ToolCallID,
			Output:     truncate(msg.Content, maxAuditOutput),
		}, tasklog.StatusToolResult)
	}
}

func (e *auditEmitter) Delta(itemID, delta string) {}

type auditRecord struct {
	Step       int    `json:"step"`
	Tool       string `json:"tool,omitempty"`
	ToolCallID string `json:"tool_call_id,omitempty"`
	Arguments  string `json:"arguments,omitempty"`
	Output     string `json:"output,omitempty"`
}

func (e *auditEmitter) write(rec auditRecord, status string) {
	raw, err := json.Marshal(rec)
	if err != nil {
		e.err = err
		return
	}
	if err := e.audit.Append(e.ctx, TaskName, string(raw), status); err != nil {
		e.err = err
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	// Back up to a rune boundary so the cut never splits a character
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "... (truncated)"
}
