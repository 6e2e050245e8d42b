// Package agent runs the conversational loop around the Genie tool.
//
// The agent is a thin orchestration layer: it loads session history,
// calls the model with the Genie toolset attached, and persists the
// exchange. All Databricks knowledge lives behind the tool; the agent
// only relays questions and answers.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/dbgenie/dbgenie/internal/log"
	"github.com/dbgenie/dbgenie/internal/memory"
)

const (
	// Name is the unique identifier for the agent.
	Name = "dbgenie"

	// Description describes the agent's capabilities.
	Description = "A conversational assistant for Databricks and Unity Catalog, backed by the Genie API."

	// FallbackResponseMessage is returned when the model produces an
	// empty response with no tool requests.
	FallbackResponseMessage = "I apologize, but I couldn't generate a response. Please try rephrasing your question."

	// defaultMaxTurns bounds the agentic tool-calling loop.
	defaultMaxTurns = 5

	// defaultHistoryLimit bounds how many stored turns are replayed to
	// the model per request.
	defaultHistoryLimit = 50
)

// systemPrompt steers the model toward verbatim tool use. Genie expects
// the user's natural language question, not SQL.
const systemPrompt = `You are a helpful assistant for Databricks and Unity Catalog queries.

When users ask questions about Databricks, Unity Catalog, tables, schemas, data, clusters, or jobs:
- Use the get_databricks_info tool
- Pass the user's question EXACTLY as they asked it (natural language)
- DO NOT convert questions to SQL - Genie handles that internally
- DO NOT modify or rewrite the user's question before passing it to the tool

For example:
- User asks: "What tables are in my catalog?"
- You should call: get_databricks_info(query="What tables are in my catalog?")
- NOT: get_databricks_info(query="SELECT * FROM information_schema.tables")

Let Genie do the SQL generation and data retrieval.`

// Response represents the complete result of an agent execution.
type Response struct {
	FinalText    string            // Model's final text output
	ToolRequests []*ai.ToolRequest // Tool requests made during execution
}

// StreamCallback is called for each chunk of streaming response.
// Return an error to abort the stream.
type StreamCallback func(ctx context.Context, chunk *ai.ModelResponseChunk) error

// Config contains all required parameters for the agent.
type Config struct {
	Genkit  *genkit.Genkit
	History *memory.Store
	Logger  log.Logger
	Tools   []ai.ToolRef // Pre-registered tools from tools.Toolset.Register

	ModelName    string // Genkit model name, e.g. "googleai/gemini-2.5-flash"
	MaxTurns     int    // Maximum agentic loop turns (<=0 uses default)
	HistoryLimit int    // Stored turns replayed per request (<=0 uses default)

	// RateLimiter caps model calls (nil = use default).
	RateLimiter *rate.Limiter
}

func (cfg Config) validate() error {
	if cfg.Genkit == nil {
		return errors.New("genkit instance is required")
	}
	if cfg.History == nil {
		return errors.New("history store is required")
	}
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.ModelName == "" {
		return errors.New("model name is required")
	}
	if len(cfg.Tools) == 0 {
		return errors.New("at least one tool is required")
	}
	return nil
}

// Agent is the conversational agent. It is stateless across requests;
// all configuration is captured immutably at construction, so it is
// safe for concurrent use.
type Agent struct {
	g            *genkit.Genkit
	history      *memory.Store
	logger       log.Logger
	tools        []ai.ToolRef
	modelName    string
	maxTurns     int
	historyLimit int
	rateLimiter  *rate.Limiter
}

// New creates an agent from the given configuration.
func New(cfg Config) (*Agent, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}
	historyLimit := cfg.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}

	// Default: 10 requests/sec sustained, burst of 30.
	rl := cfg.RateLimiter
	if rl == nil {
		rl = rate.NewLimiter(10, 30)
	}

	a := &Agent{
		g:            cfg.Genkit,
		history:      cfg.History,
		logger:       cfg.Logger,
		tools:        cfg.Tools,
		modelName:    cfg.ModelName,
		maxTurns:     maxTurns,
		historyLimit: historyLimit,
		rateLimiter:  rl,
	}

	a.logger.Info("agent initialized",
		"model", a.modelName,
		"tools", len(a.tools),
		"max_turns", a.maxTurns)

	return a, nil
}

// Execute runs the agent with the given input (non-streaming).
func (a *Agent) Execute(ctx context.Context, sessionID uuid.UUID, input string) (*Response, error) {
	return a.ExecuteStream(ctx, sessionID, input, nil)
}

// ExecuteStream runs the agent with optional streaming output.
// If callback is non-nil, it is called for each chunk as it is
// generated; the final response is always returned after generation
// completes.
func (a *Agent) ExecuteStream(ctx context.Context, sessionID uuid.UUID, input string, callback StreamCallback) (*Response, error) {
	a.logger.Debug("executing agent",
		"session_id", sessionID,
		"streaming", callback != nil)

	if err := a.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	// History load is critical; without it the model would silently
	// lose conversation context.
	stored, err := a.history.History(ctx, sessionID, a.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}

	messages := make([]*ai.Message, 0, len(stored)+1)
	for _, m := range stored {
		switch m.Role {
		case memory.RoleUser:
			messages = append(messages, ai.NewUserMessage(ai.NewTextPart(m.Content)))
		case memory.RoleAssistant:
			messages = append(messages, ai.NewModelMessage(ai.NewTextPart(m.Content)))
		}
	}
	messages = append(messages, ai.NewUserMessage(ai.NewTextPart(input)))

	opts := []ai.GenerateOption{
		ai.WithModelName(a.modelName),
		ai.WithSystem(systemPrompt),
		ai.WithMessages(messages...),
		ai.WithTools(a.tools...),
		ai.WithMaxTurns(a.maxTurns),
	}
	if callback != nil {
		opts = append(opts, ai.WithStreaming(ai.ModelStreamCallback(callback)))
	}

	resp, err := genkit.Generate(ctx, a.g, opts...)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	responseText := resp.Text()

	// Empty text with tool requests is valid agentic behavior; only
	// apply the fallback when the model produced nothing at all.
	if strings.TrimSpace(responseText) == "" && len(resp.ToolRequests()) == 0 {
		a.logger.Warn("model returned empty response with no tool requests",
			"session_id", sessionID)
		responseText = FallbackResponseMessage
	}

	// Persist the exchange. Failures here degrade gracefully: the user
	// still gets their answer, the session just loses this turn.
	if err := a.history.AddMessage(ctx, sessionID, memory.RoleUser, input); err != nil {
		a.logger.Error("failed to save user message", "error", err)
	} else if err := a.history.AddMessage(ctx, sessionID, memory.RoleAssistant, responseText); err != nil {
		a.logger.Error("failed to save assistant message", "error", err)
	}

	return &Response{
		FinalText:    responseText,
		ToolRequests: resp.ToolRequests(),
	}, nil
}
