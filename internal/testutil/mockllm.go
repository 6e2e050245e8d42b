// Package testutil provides shared test fixtures: a scripted model for
// agent tests and an in-process fake of the Genie REST endpoints.
package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// MockModelName is the model name the mock registers under.
const MockModelName = "mock/test-model"

// MockLLM is a scripted stand-in for a real model. Replies are keyed by
// substrings of the latest user message; anything unmatched gets the
// fallback. Every generation is recorded so tests can assert on what the
// model was actually asked.
//
// Safe for concurrent use.
type MockLLM struct {
	mu       sync.Mutex
	script   []scriptedReply
	fallback string
	calls    []MockCall
}

// scriptedReply maps a lowercase user-message substring to a reply. Tool
// requests, when present, are emitted ahead of the text so the agent's
// tool loop runs.
type scriptedReply struct {
	trigger string
	text    string
	tools   []*ai.ToolRequest
}

// MockCall records a single generation.
type MockCall struct {
	UserMessage string // latest user message text
	Response    string // reply text returned
}

// NewMockLLM creates a mock whose unmatched generations return fallback.
func NewMockLLM(fallback string) *MockLLM {
	return &MockLLM{fallback: fallback}
}

// AddResponse scripts a reply for user messages containing trigger
// (case-insensitive). Earlier scripts win over later ones.
func (m *MockLLM) AddResponse(trigger, text string) {
	m.AddToolResponse(trigger, nil, text)
}

// AddToolResponse scripts a reply that also requests tool calls.
func (m *MockLLM) AddToolResponse(trigger string, tools []*ai.ToolRequest, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, scriptedReply{
		trigger: strings.ToLower(trigger),
		text:    text,
		tools:   tools,
	})
}

// Calls returns a copy of all recorded generations.
func (m *MockLLM) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]MockCall, len(m.calls))
	copy(cp, m.calls)
	return cp
}

// Reset clears recorded generations. The script stays.
func (m *MockLLM) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// RegisterModel registers the mock with Genkit under MockModelName.
func (m *MockLLM) RegisterModel(g *genkit.Genkit) ai.Model {
	return genkit.DefineModel(g, MockModelName, &ai.ModelOptions{
		Label: "Mock Test Model",
		Supports: &ai.ModelSupports{
			Multiturn:  true,
			Tools:      true,
			SystemRole: true,
			Media:      false,
		},
	}, m.generate)
}

// generate is the Genkit model function.
func (m *MockLLM) generate(ctx context.Context, req *ai.ModelRequest, cb ai.ModelStreamCallback) (*ai.ModelResponse, error) {
	userText := lastUserText(req)
	reply := m.match(userText)

	if cb != nil {
		_ = cb(ctx, &ai.ModelResponseChunk{
			Content: []*ai.Part{ai.NewTextPart(reply.text)},
		})
	}

	var parts []*ai.Part
	for _, tr := range reply.tools {
		parts = append(parts, &ai.Part{
			Kind:        ai.PartToolRequest,
			ToolRequest: tr,
		})
	}
	parts = append(parts, ai.NewTextPart(reply.text))

	return &ai.ModelResponse{
		Request: req,
		Message: &ai.Message{
			Role:    ai.RoleModel,
			Content: parts,
		},
	}, nil
}

// match picks the scripted reply for userText and records the call.
func (m *MockLLM) match(userText string) scriptedReply {
	m.mu.Lock()
	defer m.mu.Unlock()

	reply := scriptedReply{text: m.fallback}
	lower := strings.ToLower(userText)
	for _, s := range m.script {
		if strings.Contains(lower, s.trigger) {
			reply = s
			break
		}
	}

	m.calls = append(m.calls, MockCall{
		UserMessage: userText,
		Response:    reply.text,
	})
	return reply
}

// lastUserText extracts the text of the most recent user message.
func lastUserText(req *ai.ModelRequest) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == ai.RoleUser {
			return req.Messages[i].Text()
		}
	}
	return ""
}
