package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sagekit/sagekit/pkg/models"
)

// fakeTransport scripts host behavior for engine tests and records every
// call it receives.
type fakeTransport struct {
	mu sync.Mutex

	// onMemory handles memory_api tool calls by operation type.
	onMemory map[string]func(args models.MemoryArgs) (result any, nextCursor string, errStr string)
	// onAgentRun handles agent_run.
	onAgentRun func(input models.AgentInput) models.AgentOutput
	// onCommand handles plain commands (identity, sign_in, ...).
	onCommand map[string]func() (any, error)

	// callDelay is applied before answering, to widen race windows.
	callDelay time.Duration

	memoryCalls map[string]int        // op type -> count
	fetchTimes  map[int64][]time.Time // GetConversation timestamps per id

	subs map[string][]func(json.RawMessage)
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		onMemory:    make(map[string]func(models.MemoryArgs) (any, string, string)),
		onCommand:   make(map[string]func() (any, error)),
		memoryCalls: make(map[string]int),
		fetchTimes:  make(map[int64][]time.Time),
		subs:        make(map[string][]func(json.RawMessage)),
	}
}

func (f *fakeTransport) Call(ctx context.Context, command string, args any) (json.RawMessage, error) {
	if f.callDelay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.callDelay):
		}
	}

	switch command {
	case "tool_call":
		return f.toolCall(args)
	case "agent_run":
		return f.agentRun(args)
	default:
		f.mu.Lock()
		fn := f.onCommand[command]
		f.mu.Unlock()
		if fn == nil {
			return nil, fmt.Errorf("fake: no handler for %s", command)
		}
		res, err := fn()
		if err != nil {
			return nil, err
		}
		return json.Marshal(res)
	}
}

func (f *fakeTransport) toolCall(args any) (json.RawMessage, error) {
	b, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	var req struct {
		Input struct {
			Name string            `json:"name"`
			Args models.MemoryArgs `json:"args"`
		} `json:"input"`
	}
	if err := json.Unmarshal(b, &req); err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.memoryCalls[req.Input.Args.Type]++
	if req.Input.Args.Type == models.OpGetConversation {
		id := req.Input.Args.ID
		f.fetchTimes[id] = append(f.fetchTimes[id], time.Now())
	}
	fn := f.onMemory[req.Input.Args.Type]
	f.mu.Unlock()

	if fn == nil {
		return nil, fmt.Errorf("fake: no memory handler for %s", req.Input.Args.Type)
	}

	result, nextCursor, errStr := fn(req.Input.Args)
	out := map[string]any{
		"output": map[string]any{
			"result":      result,
			"next_cursor": nextCursor,
			"error":       errStr,
		},
		"usage": models.Usage{Requests: 1},
	}
	return json.Marshal(out)
}

func (f *fakeTransport) agentRun(args any) (json.RawMessage, error) {
	b, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	var req struct {
		Input models.AgentInput `json:"input"`
	}
	if err := json.Unmarshal(b, &req); err != nil {
		return nil, err
	}

	f.mu.Lock()
	fn := f.onAgentRun
	f.mu.Unlock()
	if fn == nil {
		return nil, fmt.Errorf("fake: no agent_run handler")
	}
	return json.Marshal(fn(req.Input))
}

func (f *fakeTransport) Subscribe(eventName string, fn func(json.RawMessage)) func() {
	f.mu.Lock()
	f.subs[eventName] = append(f.subs[eventName], fn)
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			subs := f.subs[eventName]
			if len(subs) > 0 {
				f.subs[eventName] = subs[:len(subs)-1]
			}
		})
	}
}

// fire delivers a host event to subscribers.
func (f *fakeTransport) fire(eventName string, payload any) {
	b, _ := json.Marshal(payload)
	f.mu.Lock()
	subs := make([]func(json.RawMessage), len(f.subs[eventName]))
	copy(subs, f.subs[eventName])
	f.mu.Unlock()
	for _, fn := range subs {
		fn(b)
	}
}

func (f *fakeTransport) memoryCallCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.memoryCalls[op]
}

func (f *fakeTransport) fetchTimesFor(id int64) []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]time.Time, len(f.fetchTimes[id]))
	copy(out, f.fetchTimes[id])
	return out
}
