package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/user/resumechat/internal/session"
	"github.com/user/resumechat/internal/state"
	"github.com/user/resumechat/internal/tokens"
	"github.com/user/resumechat/internal/transcript"
	"github.com/user/resumechat/internal/types"
)

func init() {
	rootCmd.AddCommand(sessionCmd, historyCmd)
	sessionCmd.AddCommand(sessionListCmd, sessionNewCmd)

	historyCmd.Flags().Bool("local", false, "read the local copy instead of the backend")
	historyCmd.Flags().Int("budget", 0, "show only the most recent messages fitting this many tokens")
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage sessions",
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions opened on this machine",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		sessions := state.NewSessionStore(cfg.DataDir)
		transcripts := state.NewTranscriptStore(cfg.DataDir)

		ctx := cmd.Context()
		list, err := sessions.List(ctx)
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}

		if len(list) == 0 {
			fmt.Println("No sessions found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tMESSAGES\tUPDATED\tTITLE")
		for _, s := range list {
			count, err := transcripts.Count(ctx, s.ID)
			if err != nil {
				count = 0
			}
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\n",
				s.ID,
				count,
				s.UpdatedAt.Format("2006-01-02 15:04:05"),
				s.Title,
			)
		}
		return w.Flush()
	},
}

var sessionNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Create a new session id",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		var path string
		resolver := session.NewResolver(session.NavigatorFunc(func(p string) { path = p }))
		id := resolver.Resolve("")
		if _, err := state.NewSessionStore(cfg.DataDir).Touch(cmd.Context(), id, ""); err != nil {
			return fmt.Errorf("record session: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", session.ParsePath(path))
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <session-id>",
	Short: "Print a session's transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		id := types.SessionID(session.ParsePath(args[0]))
		local, _ := cmd.Flags().GetBool("local")
		budget, _ := cmd.Flags().GetInt("budget")

		cfg := loadConfig()
		t, err := fetchTranscript(ctx, local, id)
		if err != nil {
			return err
		}

		counter, err := tokens.New(cfg.Model)
		if err != nil {
			return err
		}
		printTranscript(cmd.OutOrStdout(), counter, transcript.Sanitize(t), budget)
		return nil
	},
}

func fetchTranscript(ctx context.Context, local bool, id types.SessionID) (types.Transcript, error) {
	if local {
		cfg := loadConfig()
		return state.NewTranscriptStore(cfg.DataDir).History(ctx, "", id)
	}
	s, err := sessionClient(ctx)
	if err != nil {
		return nil, err
	}
	return s.client.History(ctx, s.token, id)
}

func printTranscript(w io.Writer, counter *tokens.Counter, t types.Transcript, budget int) {
	shown := t
	if budget > 0 {
		shown = counter.Fit(t, budget)
		if omitted := len(t) - len(shown); omitted > 0 {
			fmt.Fprintf(w, "(%d earlier messages omitted)\n", omitted)
		}
	}
	for _, m := range shown {
		for _, p := range m.Parts {
			if p.Kind == types.PartTool {
				fmt.Fprintf(w, "[%s]\n", p.ToolName())
			}
		}
		fmt.Fprintf(w, "%s> %s\n", m.Role, m.Text())
	}
	fmt.Fprintf(w, "-- %d messages, ~%d tokens\n", len(shown), counter.Count(shown))
}
