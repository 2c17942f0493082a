package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/user/resumechat/internal/config"
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configListCmd, configGetCmd, configSetCmd)
	configListCmd.Flags().Bool("show-secrets", false, "print secrets unmasked")
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change settings",
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every setting and the credential in effect",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		show, _ := cmd.Flags().GetBool("show-secrets")
		return listSettings(cmd.OutOrStdout(), loadConfig(), !show)
	},
}

// listSettings prints the effective settings, environment overrides
// included, followed by the identity source the client will use.
func listSettings(out io.Writer, cfg *config.Config, mask bool) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, s := range config.Settings(cfg, mask) {
		fmt.Fprintf(w, "%s\t%v\n", s.Key, s.Value)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	source := cfg.IdentitySource()
	if source == "" {
		source = "none (run setup)"
	}
	_, err := fmt.Fprintf(out, "\nidentity: %s\n", source)
	return err
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print the stored value of a setting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		val, err := config.GetValue(cfgPath, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), val)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Store a setting",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		loadConfig()
		if err := config.SetValue(cfgPath, key, val); err != nil {
			return err
		}
		if config.IsSecretKey(key) {
			val = "***"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", key, val)
		return nil
	},
}
