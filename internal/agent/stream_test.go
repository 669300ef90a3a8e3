package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var out []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("timed out draining event stream")
		}
	}
}

func TestEventsStreamsDeltasAndItems(t *testing.T) {
	model := &scriptedModel{script: []scriptedTurn{
		textTurn("Hello world", "Hello", " world"),
	}}
	orch := NewOrchestrator(model, NewToolset(&fakeJobs{}, nil), "")

	state := &State{}
	state.Append(Message{Role: RoleUser, Content: "hi"})

	events := collect(t, orch.Events(context.Background(), state))

	var deltas []Event
	var items []Event
	for _, ev := range events {
		switch ev.Type {
		case EventTypeTextDelta:
			deltas = append(deltas, ev)
		case EventTypeItemDone:
			items = append(items, ev)
		default:
			t.Fatalf("unexpected event type %q", ev.Type)
		}
	}

	require.Len(t, items, 1)
	require.Len(t, deltas, 2)

	// Concatenated deltas reproduce the completed item, and every delta
	// carries that item's id
	var assembled string
	for _, d := range deltas {
		assert.Equal(t, items[0].Item.ID, d.ItemID)
		assembled += d.Delta
	}
	assert.Equal(t, items[0].Item.Content, assembled)
}

func TestEventsToolLoopOrdering(t *testing.T) {
	model := &scriptedModel{script: []scriptedTurn{
		toolTurn(ToolPollJob, `{"run_id":"7"}`),
		textTurn("Still going."),
	}}
	orch := NewOrchestrator(model, NewToolset(&fakeJobs{}, nil), "")

	state := &State{}
	events := collect(t, orch.Events(context.Background(), state))

	var roles []string
	for _, ev := range events {
		if ev.Type == EventTypeItemDone {
			roles = append(roles, ev.Item.Role)
		}
	}
	assert.Equal(t, []string{RoleAssistant, RoleTool, RoleAssistant}, roles)
}

func TestEventsModelErrorBecomesErrorEvent(t *testing.T) {
	model := &scriptedModel{script: []scriptedTurn{
		{err: assert.AnError},
	}}
	orch := NewOrchestrator(model, NewToolset(&fakeJobs{}, nil), "")

	events := collect(t, orch.Events(context.Background(), &State{}))

	require.Len(t, events, 1)
	assert.Equal(t, EventTypeError, events[0].Type)
	assert.Equal(t, assert.AnError.Error(), events[0].Message)
}

func TestEventsCancellationClosesStream(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	model := &scriptedModel{script: []scriptedTurn{
		textTurn("unreachable"),
	}}
	orch := NewOrchestrator(model, NewToolset(&fakeJobs{}, nil), "")

	events := orch.Events(ctx, &State{})

	timeout := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		case <-timeout:
			t.Fatal("stream did not close after cancellation")
		}
	}
}
