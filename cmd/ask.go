package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dbgenie/dbgenie/internal/genie"
)

var (
	askWaitSeconds int
	askMaxRetries  int
	askNoLLM       bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a one-shot question about your Databricks environment",
	Long: `Ask sends a single question and prints the answer.

By default the question goes through the LLM agent, which decides when to
call Genie. With --no-llm the question is sent to Genie verbatim, with no
model in the loop.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().IntVar(&askWaitSeconds, "wait", -1, "seconds between Genie status checks (-1 = config default)")
	askCmd.Flags().IntVar(&askMaxRetries, "retries", 0, "maximum Genie status checks (0 = config default)")
	askCmd.Flags().BoolVar(&askNoLLM, "no-llm", false, "send the question straight to Genie, bypassing the model")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	question := strings.Join(args, " ")

	if askNoLLM {
		rt, err := newRuntime()
		if err != nil {
			return err
		}
		answer := rt.svc.AnswerWithOptions(ctx, question, genie.Options{
			WaitSeconds: askWaitSeconds,
			MaxRetries:  askMaxRetries,
		})
		fmt.Println(answer)
		return nil
	}

	ar, err := newAgentRuntime(ctx)
	if err != nil {
		return err
	}
	defer ar.Close()

	// One-shot questions still get a session so the exchange lands in
	// history like any other.
	session, err := ar.store.CreateSession(ctx, sessionTitle(question))
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}

	resp, err := ar.agent.Execute(ctx, session.ID, question)
	if err != nil {
		return fmt.Errorf("generating answer: %w", err)
	}

	fmt.Println(resp.FinalText)
	return nil
}

// sessionTitle derives a short session title from the first question.
func sessionTitle(question string) string {
	const maxTitle = 60
	title := strings.TrimSpace(question)
	runes := []rune(title)
	if len(runes) > maxTitle {
		title = string(runes[:maxTitle]) + "..."
	}
	return title
}
