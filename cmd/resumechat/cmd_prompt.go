package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/user/resumechat/internal/state"
)

func init() {
	rootCmd.AddCommand(promptCmd)
	promptCmd.AddCommand(promptAddCmd, promptListCmd, promptRemoveCmd)
}

func promptStore() *state.PromptStore {
	cfg := loadConfig()
	return state.NewPromptStore(filepath.Join(cfg.DataDir, "prompts.json"))
}

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Manage saved prompts (send one in chat with /p <name>)",
}

var promptAddCmd = &cobra.Command{
	Use:   "add <name> <text...>",
	Short: "Save a prompt",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p := &state.Prompt{Name: args[0], Text: strings.Join(args[1:], " ")}
		if err := promptStore().Add(p); err != nil {
			return fmt.Errorf("add prompt: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Prompt %q saved.\n", p.Name)
		return nil
	},
}

var promptListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved prompts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		prompts, err := promptStore().List()
		if err != nil {
			return fmt.Errorf("list prompts: %w", err)
		}
		if len(prompts) == 0 {
			fmt.Println("No saved prompts.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tTEXT")
		for _, p := range prompts {
			fmt.Fprintf(w, "%s\t%s\n", p.Name, p.Text)
		}
		return w.Flush()
	},
}

var promptRemoveCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Remove a saved prompt",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := promptStore().Remove(args[0]); err != nil {
			return fmt.Errorf("remove prompt: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Prompt %q removed.\n", args[0])
		return nil
	},
}
