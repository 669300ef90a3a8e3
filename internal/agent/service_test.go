package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(script []scriptedTurn, checkpoints *memoryCheckpoints) (*Service, *scriptedModel, *fakeJobs) {
	model := &scriptedModel{script: script}
	jobs := &fakeJobs{}
	orch := NewOrchestrator(model, NewToolset(jobs, nil), "You are an assistant.")
	return NewService(orch, checkpoints), model, jobs
}

func TestServiceRespondFreshThread(t *testing.T) {
	checkpoints := newMemoryCheckpoints()
	svc, _, _ := newTestService([]scriptedTurn{textTurn("Hi there.")}, checkpoints)

	req := &Request{Input: []InputMessage{{Role: RoleUser, Content: "hello"}}}
	resp, err := svc.Respond(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, resp.Output, 1)
	assert.Equal(t, "Hi there.", resp.Output[0].Content)

	threadID, ok := resp.CustomOutputs["thread_id"].(string)
	require.True(t, ok)
	assert.NotEmpty(t, threadID)

	// The turn was checkpointed under the resolved thread id
	raw, ok := checkpoints.states[threadID]
	require.True(t, ok)
	var saved State
	require.NoError(t, json.Unmarshal(raw, &saved))
	require.Len(t, saved.Messages, 2)
	assert.Equal(t, "hello", saved.Messages[0].Content)
	assert.Equal(t, "Hi there.", saved.Messages[1].Content)
}

func TestServiceNoToolsConfigured(t *testing.T) {
	checkpoints := newMemoryCheckpoints()
	model := &scriptedModel{script: []scriptedTurn{textTurn("Just chatting.")}}
	orch := NewOrchestrator(model, NewToolset(nil, nil), "")
	svc := NewService(orch, checkpoints)

	resp, err := svc.Respond(context.Background(), &Request{
		Input: []InputMessage{{Role: RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)

	// Exactly one output item and a fresh thread id
	require.Len(t, resp.Output, 1)
	assert.Equal(t, RoleAssistant, resp.Output[0].Role)
	assert.NotEmpty(t, resp.CustomOutputs["thread_id"])
	assert.Equal(t, 1, model.callCount())
}

func TestServiceDistinctThreadsPerBareRequest(t *testing.T) {
	checkpoints := newMemoryCheckpoints()
	svc, _, _ := newTestService([]scriptedTurn{
		textTurn("first"),
		textTurn("second"),
	}, checkpoints)

	resp1, err := svc.Respond(context.Background(), &Request{
		Input: []InputMessage{{Role: RoleUser, Content: "a"}},
	})
	require.NoError(t, err)
	resp2, err := svc.Respond(context.Background(), &Request{
		Input: []InputMessage{{Role: RoleUser, Content: "b"}},
	})
	require.NoError(t, err)

	assert.NotEqual(t, resp1.CustomOutputs["thread_id"], resp2.CustomOutputs["thread_id"])
	assert.Len(t, checkpoints.states, 2)
}

func TestServiceResumeByThreadID(t *testing.T) {
	checkpoints := newMemoryCheckpoints()
	svc, model, _ := newTestService([]scriptedTurn{
		textTurn("Nice to meet you, Ada."),
		textTurn("Your name is Ada."),
	}, checkpoints)

	first, err := svc.Respond(context.Background(), &Request{
		Input: []InputMessage{{Role: RoleUser, Content: "My name is Ada."}},
	})
	require.NoError(t, err)
	threadID := first.CustomOutputs["thread_id"].(string)

	_, err = svc.Respond(context.Background(), &Request{
		Input:        []InputMessage{{Role: RoleUser, Content: "What is my name?"}},
		CustomInputs: map[string]any{"thread_id": threadID},
	})
	require.NoError(t, err)

	// The second model call saw the full history: system prompt, both user
	// messages, and the first assistant reply
	require.Len(t, model.lastMsgs, 4)

	var saved State
	require.NoError(t, json.Unmarshal(checkpoints.states[threadID], &saved))
	assert.Len(t, saved.Messages, 4)
}

func TestServiceConversationIDResolvesThread(t *testing.T) {
	checkpoints := newMemoryCheckpoints()
	svc, _, _ := newTestService([]scriptedTurn{textTurn("ok")}, checkpoints)

	resp, err := svc.Respond(context.Background(), &Request{
		Input:   []InputMessage{{Role: RoleUser, Content: "hi"}},
		Context: &RequestContext{ConversationID: "conv-42"},
	})
	require.NoError(t, err)
	assert.Equal(t, "conv-42", resp.CustomOutputs["thread_id"])
	assert.Contains(t, checkpoints.states, "conv-42")
}

func TestServiceJobStartedResetsAcrossTurns(t *testing.T) {
	checkpoints := newMemoryCheckpoints()
	svc, model, jobs := newTestService([]scriptedTurn{
		toolTurn(ToolStartJob, `{"user_request":"run the report"}`),
		textTurn("Run 123 is in progress."),
	}, checkpoints)

	first, err := svc.Respond(context.Background(), &Request{
		Input: []InputMessage{{Role: RoleUser, Content: "run the report"}},
	})
	require.NoError(t, err)
	threadID := first.CustomOutputs["thread_id"].(string)
	assert.Equal(t, 1, model.callCount())
	assert.Len(t, jobs.started, 1)

	// The persisted state carries the flag from the ended turn
	var saved State
	require.NoError(t, json.Unmarshal(checkpoints.states[threadID], &saved))
	assert.True(t, saved.JobStarted)

	// The next turn on the same thread talks to the model again
	second, err := svc.Respond(context.Background(), &Request{
		Input:        []InputMessage{{Role: RoleUser, Content: "how is it going?"}},
		CustomInputs: map[string]any{"thread_id": threadID},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, model.callCount())
	require.Len(t, second.Output, 1)
	assert.Equal(t, "Run 123 is in progress.", second.Output[0].Content)
}

func TestServiceModelErrorNotCheckpointed(t *testing.T) {
	checkpoints := newMemoryCheckpoints()
	svc, _, _ := newTestService([]scriptedTurn{
		{err: errors.New("model unavailable")},
	}, checkpoints)

	_, err := svc.Respond(context.Background(), &Request{
		Input:        []InputMessage{{Role: RoleUser, Content: "hi"}},
		CustomInputs: map[string]any{"thread_id": "t1"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model unavailable")

	// The failed turn left no partial state behind
	assert.NotContains(t, checkpoints.states, "t1")
	assert.Equal(t, 0, checkpoints.saves)
}

func TestServiceSaveFailureSurfacesAsErrorEvent(t *testing.T) {
	checkpoints := newMemoryCheckpoints()
	checkpoints.saveErr = errors.New("connection lost")
	svc, _, _ := newTestService([]scriptedTurn{textTurn("hi")}, checkpoints)

	events, err := svc.Stream(context.Background(), &Request{
		Input: []InputMessage{{Role: RoleUser, Content: "hello"}},
	})
	require.NoError(t, err)

	collected := collect(t, events)
	last := collected[len(collected)-1]
	assert.Equal(t, EventTypeError, last.Type)
	assert.Contains(t, last.Message, "connection lost")
}

func TestServiceStreamWritesThreadIDIntoRequest(t *testing.T) {
	checkpoints := newMemoryCheckpoints()
	svc, _, _ := newTestService([]scriptedTurn{textTurn("ok")}, checkpoints)

	req := &Request{Input: []InputMessage{{Role: RoleUser, Content: "hi"}}}
	events, err := svc.Stream(context.Background(), req)
	require.NoError(t, err)
	collect(t, events)

	id, ok := req.CustomInputs["thread_id"].(string)
	require.True(t, ok)
	assert.NotEmpty(t, id)
}
