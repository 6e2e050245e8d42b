// Package tools provides Genkit tool registration for the Databricks
// Genie tool.
//
// Tools capture their dependencies via closures over a Toolset; there is
// no package-level state. Handlers follow the Genkit signature
// func(*ai.ToolContext, InputType) (OutputType, error).
package tools

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/dbgenie/dbgenie/internal/genie"
	"github.com/dbgenie/dbgenie/internal/log"
)

// DatabricksInfoToolName is the registered tool name the model calls.
const DatabricksInfoToolName = "get_databricks_info"

// databricksInfoDescription tells the model to pass questions through
// verbatim. Genie generates SQL itself; a rewritten question degrades
// its results.
const databricksInfoDescription = "Use this tool to answer questions about Databricks, " +
	"Unity Catalog, tables, schemas, clusters, jobs, and data. " +
	"Pass the user's natural language question directly - DO NOT convert to SQL. " +
	"Genie will handle query generation internally."

// DatabricksInfoInput defines input for the get_databricks_info tool.
type DatabricksInfoInput struct {
	Query       string `json:"query" jsonschema_description:"Natural language question about Databricks (DO NOT pass SQL, pass the question as-is)"`
	WaitSeconds int    `json:"wait_seconds,omitempty" jsonschema_description:"Seconds to wait between status checks"`
	MaxRetries  int    `json:"max_retries,omitempty" jsonschema_description:"Maximum number of status checks before giving up"`
}

// answerer is the Genie capability the toolset needs.
// *genie.Service satisfies it.
type answerer interface {
	AnswerWithOptions(ctx context.Context, question string, opts genie.Options) string
}

// Toolset exposes Databricks Genie to the agent as Genkit tools.
type Toolset struct {
	svc    answerer
	logger log.Logger
}

// NewToolset creates a Toolset backed by a Genie answer service.
func NewToolset(svc answerer, logger log.Logger) (*Toolset, error) {
	if svc == nil {
		return nil, fmt.Errorf("genie service is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Toolset{svc: svc, logger: logger}, nil
}

// Register registers all Genie tools with Genkit and returns their refs
// for ai.WithTools.
func (t *Toolset) Register(g *genkit.Genkit) ([]ai.ToolRef, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required (cannot be nil)")
	}

	info := genkit.DefineTool(g, DatabricksInfoToolName,
		databricksInfoDescription,
		t.GetDatabricksInfo)

	t.logger.Debug("registered genie tools", "tool", DatabricksInfoToolName)
	return []ai.ToolRef{info}, nil
}

// GetDatabricksInfo asks Genie the user's question and returns the
// rendered answer. Failures come back as readable text rather than an
// error so the model can relay them to the user.
func (t *Toolset) GetDatabricksInfo(ctx *ai.ToolContext, input DatabricksInfoInput) (string, error) {
	if input.Query == "" {
		return "", fmt.Errorf("query is required")
	}

	t.logger.Debug("asking genie",
		"query_length", len(input.Query),
		"wait_seconds", input.WaitSeconds,
		"max_retries", input.MaxRetries)

	opts := genie.Options{
		WaitSeconds: input.WaitSeconds,
		MaxRetries:  input.MaxRetries,
	}
	// An omitted wait_seconds decodes as zero, which genie.Options reads
	// as spin-polling. The model never means that; use the defaults.
	if opts.WaitSeconds == 0 {
		opts.WaitSeconds = -1
	}
	return t.svc.AnswerWithOptions(ctx.Context, input.Query, opts), nil
}
