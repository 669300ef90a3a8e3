package agent

import "github.com/google/uuid"

// InputMessage is one incoming conversation message
type InputMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// RequestContext carries identity the calling platform already knows about
// the conversation
type RequestContext struct {
	ConversationID string `json:"conversation_id,omitempty"`
}

// Request is one conversational turn
type Request struct {
	Input        []InputMessage  `json:"input"`
	CustomInputs map[string]any  `json:"custom_inputs,omitempty"`
	Context      *RequestContext `json:"context,omitempty"`
}

// Response is the non-streaming form of a completed turn
type Response struct {
	Output        []Message      `json:"output"`
	CustomOutputs map[string]any `json:"custom_outputs"`
}

// ResolveThreadID produces the thread key for a request. Priority:
// 1. thread_id from custom_inputs if present
// 2. the platform's conversation id if available
// 3. a freshly generated id
// Explicit caller intent overrides inferred identity, which overrides a
// fresh start. This never fails.
func ResolveThreadID(req *Request) string {
	if req.CustomInputs != nil {
		if id, ok := req.CustomInputs["thread_id"].(string); ok && id != "" {
			return id
		}
	}

	if req.Context != nil && req.Context.ConversationID != "" {
		return req.Context.ConversationID
	}

	return uuid.NewString()
}
