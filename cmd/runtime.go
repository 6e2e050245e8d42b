package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"golang.org/x/time/rate"

	"github.com/dbgenie/dbgenie/internal/agent"
	"github.com/dbgenie/dbgenie/internal/config"
	"github.com/dbgenie/dbgenie/internal/database"
	"github.com/dbgenie/dbgenie/internal/genie"
	"github.com/dbgenie/dbgenie/internal/log"
	"github.com/dbgenie/dbgenie/internal/memory"
	"github.com/dbgenie/dbgenie/internal/tools"
)

// runtime wires the Genie facade from configuration. It is everything
// the no-LLM path needs.
type runtime struct {
	cfg    *config.Config
	logger log.Logger
	svc    *genie.Service
}

// agentRuntime extends runtime with the model-facing stack: local chat
// history, Genkit, and the conversational agent.
type agentRuntime struct {
	*runtime
	store *memory.Store
	agent *agent.Agent

	closeDB func() error
}

func newRuntime() (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level})

	client, err := genie.NewClient(cfg.DatabricksHost, cfg.DatabricksToken, cfg.GenieSpaceID, logger)
	if err != nil {
		return nil, fmt.Errorf("creating genie client: %w", err)
	}

	svc, err := genie.NewService(client, genie.Options{
		WaitSeconds: cfg.WaitSeconds,
		MaxRetries:  cfg.MaxRetries,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating genie service: %w", err)
	}

	return &runtime{cfg: cfg, logger: logger, svc: svc}, nil
}

// newAgentRuntime builds the full conversational stack. The caller must
// invoke Close when done.
func newAgentRuntime(ctx context.Context) (*agentRuntime, error) {
	rt, err := newRuntime()
	if err != nil {
		return nil, err
	}

	// Genkit's Google AI plugin reads GEMINI_API_KEY itself; fail with a
	// hint here instead of deep inside the first model call.
	if os.Getenv("GEMINI_API_KEY") == "" {
		fmt.Fprintln(os.Stderr, "Error: GEMINI_API_KEY environment variable not set")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Please run:")
		fmt.Fprintln(os.Stderr, "  export GEMINI_API_KEY=your-api-key")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Or use 'dbgenie ask --no-llm' to query Genie directly.")
		return nil, fmt.Errorf("GEMINI_API_KEY not set")
	}

	db, err := database.Open(rt.cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	store, err := memory.New(db, rt.logger)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating history store: %w", err)
	}

	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))

	toolset, err := tools.NewToolset(rt.svc, rt.logger)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating toolset: %w", err)
	}
	toolRefs, err := toolset.Register(g)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("registering tools: %w", err)
	}

	ag, err := agent.New(agent.Config{
		Genkit:       g,
		History:      store,
		Logger:       rt.logger,
		Tools:        toolRefs,
		ModelName:    rt.cfg.ModelName,
		MaxTurns:     rt.cfg.MaxTurns,
		HistoryLimit: rt.cfg.HistoryLimit,
		RateLimiter:  rate.NewLimiter(10, 30),
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating agent: %w", err)
	}

	return &agentRuntime{
		runtime: rt,
		store:   store,
		agent:   ag,
		closeDB: db.Close,
	}, nil
}

// Close releases the runtime's resources.
func (ar *agentRuntime) Close() {
	if err := ar.closeDB(); err != nil {
		ar.logger.Error("closing database", "error", err)
	}
}
