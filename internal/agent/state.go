package agent

import (
	"github.com/tmc/langchaingo/llms"
)

// Message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCall is one tool invocation requested by the model
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message is one entry in a conversation. The same shape serves as the
// checkpointed history format and as the completed output item on the wire.
type Message struct {
	ID         string     `json:"id,omitempty"`
	Role       string     `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// State is the conversation state for one thread. It is loaded from the
// checkpoint store at the start of a turn, appended to while the turn runs,
// and saved back once the turn ends. History is never rewritten.
type State struct {
	Messages      []Message      `json:"messages"`
	JobStarted    bool           `json:"job_started"`
	CustomInputs  map[string]any `json:"custom_inputs,omitempty"`
	CustomOutputs map[string]any `json:"custom_outputs,omitempty"`
}

// Append adds messages to the history
func (s *State) Append(msgs ...Message) {
	s.Messages = append(s.Messages, msgs...)
}

// toLLMMessages converts the history to model messages, prefixed with the
// system prompt when one is configured
func toLLMMessages(systemPrompt string, msgs []Message) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(msgs)+1)

	if systemPrompt != "" {
		out = append(out, llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt))
	}

	for _, m := range msgs {
		switch m.Role {
		case RoleAssistant:
			mc := llms.MessageContent{Role: llms.ChatMessageTypeAI}
			if m.Content != "" {
				mc.Parts = append(mc.Parts, llms.TextContent{Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				mc.Parts = append(mc.Parts, llms.ToolCall{
					ID:   tc.ID,
					Type: "function",
					FunctionCall: &llms.FunctionCall{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				})
			}
			out = append(out, mc)
		case RoleTool:
			out = append(out, llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{llms.ToolCallResponse{
					ToolCallID: m.ToolCallID,
					Name:       m.Name,
					Content:    m.Content,
				}},
			})
		case RoleSystem:
			out = append(out, llms.TextParts(llms.ChatMessageTypeSystem, m.Content))
		default:
			out = append(out, llms.TextParts(llms.ChatMessageTypeHuman, m.Content))
		}
	}

	return out
}

// assistantFromChoice builds the assistant message for one model turn
func assistantFromChoice(id string, choice *llms.ContentChoice) Message {
	msg := Message{
		ID:      id,
		Role:    RoleAssistant,
		Content: choice.Content,
	}

	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall == nil {
			continue
		}
		msg.ToolCalls = append(msg.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.FunctionCall.Name,
			Arguments: tc.FunctionCall.Arguments,
		})
	}

	return msg
}
