package model

import (
	"context"
	"sync"

	"github.com/hupe1980/agentforge/core"
)

// MockModel is a scripted model for tests. Responses and errors are consumed
// from a FIFO queue in the order they were enqueued; when the queue is empty,
// Invoke returns a plain text response echoing the last user message.
type MockModel struct {
	mu       sync.Mutex
	queue    []mockTurn
	requests []Request
	name     string
}

type mockTurn struct {
	resp *Response
	err  error
}

// NewMockModel creates a mock that identifies itself under the given name.
func NewMockModel(name string) *MockModel {
	return &MockModel{name: name}
}

// EnqueueResponse appends a scripted response to the queue.
func (m *MockModel) EnqueueResponse(resp *Response) {
	m.mu.Lock()
	m.queue = append(m.queue, mockTurn{resp: resp})
	m.mu.Unlock()
}

// EnqueueTextResponse appends a plain completion with the given content.
func (m *MockModel) EnqueueTextResponse(content string) {
	m.EnqueueResponse(&Response{
		Content:      content,
		Usage:        core.TokenUsage{InputTokens: 10, OutputTokens: 5},
		FinishReason: "stop",
	})
}

// EnqueueToolCallResponse appends a turn requesting the given tool calls.
func (m *MockModel) EnqueueToolCallResponse(content string, toolCalls ...core.ToolCall) {
	m.EnqueueResponse(&Response{
		Content:      content,
		ToolCalls:    toolCalls,
		Usage:        core.TokenUsage{InputTokens: 10, OutputTokens: 5},
		FinishReason: "tool_calls",
	})
}

// EnqueueError appends a scripted failure to the queue.
func (m *MockModel) EnqueueError(err error) {
	m.mu.Lock()
	m.queue = append(m.queue, mockTurn{err: err})
	m.mu.Unlock()
}

// Requests returns a copy of every request seen so far.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Invoke implements the Model interface.
func (m *MockModel) Invoke(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)

	if len(m.queue) > 0 {
		turn := m.queue[0]
		m.queue = m.queue[1:]
		if turn.err != nil {
			return nil, turn.err
		}
		return turn.resp, nil
	}

	content := "mock response"
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == core.RoleUser {
			content = "echo: " + req.Messages[i].Content
			break
		}
	}

	return &Response{
		Content:      content,
		Usage:        core.TokenUsage{InputTokens: 10, OutputTokens: 5},
		FinishReason: "stop",
	}, nil
}

// Info implements the Model interface.
func (m *MockModel) Info() Info {
	return Info{Name: m.name, Provider: "mock", SupportsTools: true}
}
