package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/tmc/langchaingo/llms"

	"github.com/taskrelay/internal/jobs"
	"github.com/taskrelay/internal/llm"
)

// scriptedModel returns canned choices in order, optionally streaming text
// fragments first
type scriptedModel struct {
	mu       sync.Mutex
	script   []scriptedTurn
	calls    int
	lastMsgs []llms.MessageContent
}

type scriptedTurn struct {
	chunks []string
	choice *llms.ContentChoice
	err    error
}

func textTurn(text string, chunks ...string) scriptedTurn {
	return scriptedTurn{chunks: chunks, choice: &llms.ContentChoice{Content: text}}
}

func toolTurn(name, args string) scriptedTurn {
	return scriptedTurn{choice: multiToolChoice(
		namedCall(fmt.Sprintf("call_%s", name), name, args))}
}

func namedCall(id, name, args string) llms.ToolCall {
	return llms.ToolCall{
		ID:           id,
		Type:         "function",
		FunctionCall: &llms.FunctionCall{Name: name, Arguments: args},
	}
}

func multiToolChoice(calls ...llms.ToolCall) *llms.ContentChoice {
	return &llms.ContentChoice{ToolCalls: calls}
}

func (m *scriptedModel) Generate(ctx context.Context, messages []llms.MessageContent, tools []llms.Tool, stream llm.StreamFunc) (*llms.ContentChoice, error) {
	m.mu.Lock()
	turnIdx := m.calls
	m.calls++
	m.lastMsgs = messages
	m.mu.Unlock()

	if turnIdx >= len(m.script) {
		return nil, errors.New("scripted model exhausted")
	}
	turn := m.script[turnIdx]
	if turn.err != nil {
		return nil, turn.err
	}

	if stream != nil {
		for _, chunk := range turn.chunks {
			if err := stream(ctx, []byte(chunk)); err != nil {
				return nil, err
			}
		}
	}

	return turn.choice, nil
}

func (m *scriptedModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// fakeJobs records lifecycle calls and returns fixed payloads
type fakeJobs struct {
	started    []string
	polled     []string
	terminated []string
	startErr   bool
}

func (f *fakeJobs) Start(ctx context.Context, userRequest string, params map[string]any) jobs.StartResponse {
	f.started = append(f.started, userRequest)
	if f.startErr {
		return jobs.StartResponse{Success: false, Error: "boom", Message: "Failed to start job: boom"}
	}
	return jobs.StartResponse{Success: true, RunID: 123, JobID: jobs.WorkflowKind, Message: "Job started successfully. Run ID: 123."}
}

func (f *fakeJobs) Poll(ctx context.Context, runID string) jobs.PollResponse {
	f.polled = append(f.polled, runID)
	return jobs.PollResponse{Success: true, RunID: runID, LifeCycleState: "RUNNING", IsRunning: true}
}

func (f *fakeJobs) Terminate(ctx context.Context, runID string) jobs.TerminateResponse {
	f.terminated = append(f.terminated, runID)
	return jobs.TerminateResponse{Success: true, RunID: runID}
}

// fakeQuery returns a fixed result or error
type fakeQuery struct {
	result string
	err    error
	asked  []string
}

func (f *fakeQuery) Query(ctx context.Context, sql string) (string, error) {
	f.asked = append(f.asked, sql)
	return f.result, f.err
}

// memoryCheckpoints is an in-memory Checkpointer
type memoryCheckpoints struct {
	mu      sync.Mutex
	states  map[string][]byte
	saves   int
	saveErr error
}

func newMemoryCheckpoints() *memoryCheckpoints {
	return &memoryCheckpoints{states: map[string][]byte{}}
}

func (m *memoryCheckpoints) Acquire(ctx context.Context) (Session, error) {
	return &memorySession{store: m}, nil
}

type memorySession struct {
	store  *memoryCheckpoints
	closed bool
}

func (s *memorySession) Close() { s.closed = true }

func (s *memorySession) Load(ctx context.Context, threadID string, state any) (bool, error) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	raw, ok := s.store.states[threadID]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, state)
}

func (s *memorySession) Save(ctx context.Context, threadID string, state any) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	if s.store.saveErr != nil {
		return s.store.saveErr
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	s.store.states[threadID] = raw
	s.store.saves++
	return nil
}
