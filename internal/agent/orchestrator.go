// Package agent implements the conversation orchestrator: the loop that
// interleaves model turns with tool execution until the turn ends.
package agent

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/taskrelay/internal/llm"
)

// Emitter observes the turn as it runs. Item fires once per completed
// message in the order the loop produces them; Delta fires for each text
// fragment of the in-progress assistant message, tagged with the id the
// finished message will carry.
type Emitter interface {
	Item(msg Message)
	Delta(itemID, delta string)
}

// Orchestrator drives one agent/tool loop. It holds no per-conversation
// state; everything mutable lives in the State passed to Run.
type Orchestrator struct {
	model        llm.Generator
	tools        *Toolset
	systemPrompt string
}

// NewOrchestrator creates an orchestrator with a fixed toolset and prompt
func NewOrchestrator(model llm.Generator, tools *Toolset, systemPrompt string) *Orchestrator {
	return &Orchestrator{
		model:        model,
		tools:        tools,
		systemPrompt: systemPrompt,
	}
}

// Run executes the loop until the turn ends:
//   - model turn: call the model with the full history
//   - if the model requested no tools, the turn ends
//   - tool turn: execute all requested calls as a batch, feeding each
//     result (including failures, as structured payloads) back into the
//     history, then return to the model turn
//
// Once the job-start tool has fired, the loop ends before the next model
// turn so control returns to the caller with the run id instead of the
// model chaining further calls against a job that just began.
func (o *Orchestrator) Run(ctx context.Context, state *State, emit Emitter) error {
	for {
		if state.JobStarted {
			log.Info().Msg("Job started; ending turn")
			return nil
		}

		itemID := "msg_" + uuid.NewString()

		var stream llm.StreamFunc
		if emit != nil {
			stream = func(ctx context.Context, chunk []byte) error {
				if len(chunk) > 0 {
					emit.Delta(itemID, string(chunk))
				}
				return nil
			}
		}

		choice, err := o.model.Generate(ctx,
			toLLMMessages(o.systemPrompt, state.Messages),
			o.tools.Definitions(), stream)
		if err != nil {
			return err
		}

		msg := assistantFromChoice(itemID, choice)
		state.Append(msg)
		if emit != nil {
			emit.Item(msg)
		}

		if len(msg.ToolCalls) == 0 {
			return nil
		}

		// Tool turn. Calls execute as a batch; one failing call becomes a
		// structured error result and the rest still run.
		started := false
		for _, tc := range msg.ToolCalls {
			log.Info().Str("tool", tc.Name).Msg("Executing tool call")

			content, isStart := o.tools.Execute(ctx, tc)
			if isStart {
				started = true
			}

			result := Message{
				ID:         "tr_" + uuid.NewString(),
				Role:       RoleTool,
				ToolCallID: tc.ID,
				Name:       tc.Name,
				Content:    content,
			}
			state.Append(result)
			if emit != nil {
				emit.Item(result)
			}
		}
		state.JobStarted = started
	}
}
