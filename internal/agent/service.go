package agent

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
)

// Session is a request-scoped handle on the checkpoint store
type Session interface {
	Close()
	Load(ctx context.Context, threadID string, state any) (bool, error)
	Save(ctx context.Context, threadID string, state any) error
}

// Checkpointer hands out request-scoped checkpoint sessions
type Checkpointer interface {
	Acquire(ctx context.Context) (Session, error)
}

// Service ties the orchestrator to thread identity and checkpointing: one
// Service handles many concurrent requests, each on its own session.
type Service struct {
	orch        *Orchestrator
	checkpoints Checkpointer
}

// NewService creates the request-facing agent service
func NewService(orch *Orchestrator, checkpoints Checkpointer) *Service {
	return &Service{orch: orch, checkpoints: checkpoints}
}

// Stream runs one conversational turn and returns its event stream. The
// resolved thread id is written back into req.CustomInputs so the caller
// can resume; state is saved after the turn ends and before the channel
// closes. Setup failures (checkpoint acquire/load) return an error;
// failures while the turn runs surface as an error event.
func (s *Service) Stream(ctx context.Context, req *Request) (<-chan Event, error) {
	threadID := ResolveThreadID(req)
	if req.CustomInputs == nil {
		req.CustomInputs = map[string]any{}
	}
	req.CustomInputs["thread_id"] = threadID

	session, err := s.checkpoints.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	state := &State{}
	if _, err := session.Load(ctx, threadID, state); err != nil {
		session.Close()
		return nil, err
	}

	// Turn start: the flag never carries over from a previous turn
	state.JobStarted = false
	state.CustomInputs = req.CustomInputs
	if state.CustomOutputs == nil {
		state.CustomOutputs = map[string]any{}
	}
	state.CustomOutputs["thread_id"] = threadID

	for _, in := range req.Input {
		state.Append(Message{Role: in.Role, Content: in.Content})
	}

	out := make(chan Event)
	go func() {
		defer close(out)
		defer session.Close()

		failed := false
		for ev := range s.orch.Events(ctx, state) {
			if ev.Type == EventTypeError {
				failed = true
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}

		// Save once, after END. A turn that errored out never reaches END,
		// so its partial state is not persisted.
		if failed {
			return
		}
		if err := session.Save(ctx, threadID, state); err != nil {
			log.Error().Err(err).Str("thread_id", threadID).Msg("Failed to save checkpoint")
			select {
			case out <- Event{Type: EventTypeError, Message: err.Error()}:
			case <-ctx.Done():
			}
		}
	}()

	return out, nil
}

// Respond is the non-streaming form: run the same turn to completion,
// collect the completed items in order, and discard the deltas.
func (s *Service) Respond(ctx context.Context, req *Request) (*Response, error) {
	events, err := s.Stream(ctx, req)
	if err != nil {
		return nil, err
	}

	var output []Message
	for ev := range events {
		switch ev.Type {
		case EventTypeItemDone:
			output = append(output, *ev.Item)
		case EventTypeError:
			return nil, errors.New(ev.Message)
		}
	}

	return &Response{
		Output:        output,
		CustomOutputs: req.CustomInputs,
	}, nil
}
