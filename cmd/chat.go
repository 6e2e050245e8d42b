package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dbgenie/dbgenie/internal/memory"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat about your Databricks environment",
	RunE:  runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	ar, err := newAgentRuntime(ctx)
	if err != nil {
		return err
	}
	defer ar.Close()

	st := defaultStyles()
	md := newMarkdownRenderer(80)

	session, err := ar.store.CreateSession(ctx, "Chat Session")
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}

	fmt.Println(st.System.Render("dbgenie - ask me anything about your Databricks environment."))
	fmt.Println(st.System.Render("Commands: /new (fresh session), /history, /quit. Ctrl+D exits."))
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(st.Prompt.Render("you> ") + " ")

		if !scanner.Scan() {
			// EOF (Ctrl+D)
			fmt.Println()
			fmt.Println(st.System.Render("Goodbye."))
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			quit, newSession, err := handleChatCommand(ctx, ar, st, session.ID, input)
			if err != nil {
				fmt.Fprintln(os.Stderr, st.Error.Render(fmt.Sprintf("Error: %v", err)))
				continue
			}
			if quit {
				break
			}
			if newSession != nil {
				session = newSession
			}
			continue
		}

		fmt.Print(st.Assistant.Render("genie>") + " ")

		resp, err := ar.agent.Execute(ctx, session.ID, input)
		if err != nil {
			fmt.Println()
			fmt.Fprintln(os.Stderr, st.Error.Render(fmt.Sprintf("Error: %v", err)))
			continue
		}

		fmt.Println(md.Render(resp.FinalText))
		fmt.Println()
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("reading input: %w", err)
	}
	return nil
}

// handleChatCommand dispatches slash commands. It reports whether the
// loop should exit and, for /new, returns the replacement session.
func handleChatCommand(ctx context.Context, ar *agentRuntime, st styles, sessionID uuid.UUID, input string) (quit bool, newSession *memory.Session, err error) {
	switch strings.Fields(input)[0] {
	case "/quit", "/exit":
		fmt.Println(st.System.Render("Goodbye."))
		return true, nil, nil

	case "/new":
		session, err := ar.store.CreateSession(ctx, "Chat Session")
		if err != nil {
			return false, nil, fmt.Errorf("creating session: %w", err)
		}
		fmt.Println(st.System.Render("Started a fresh session."))
		fmt.Println()
		return false, session, nil

	case "/history":
		messages, err := ar.store.History(ctx, sessionID, ar.cfg.HistoryLimit)
		if err != nil {
			return false, nil, fmt.Errorf("loading history: %w", err)
		}
		if len(messages) == 0 {
			fmt.Println(st.System.Render("No messages in this session yet."))
			fmt.Println()
			return false, nil, nil
		}
		for _, m := range messages {
			label := "you"
			if m.Role == memory.RoleAssistant {
				label = "genie"
			}
			fmt.Printf("%s %s\n", st.System.Render(label+">"), m.Content)
		}
		fmt.Println()
		return false, nil, nil

	case "/help":
		fmt.Println(st.System.Render("Commands:"))
		fmt.Println(st.System.Render("  /new      start a fresh session"))
		fmt.Println(st.System.Render("  /history  show this session's messages"))
		fmt.Println(st.System.Render("  /quit     exit"))
		fmt.Println()
		return false, nil, nil

	default:
		return false, nil, fmt.Errorf("unknown command %q (try /help)", input)
	}
}
