package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/resumechat/internal/config"
)

func init() {
	rootCmd.AddCommand(setupCmd)
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		scanner := bufio.NewScanner(os.Stdin)

		fmt.Println("ResumeChat Setup Wizard")
		fmt.Println("Press Enter to accept the default value shown in brackets.")
		fmt.Println()

		cfg.API.BaseURL = prompt(scanner, "Backend URL", cfg.API.BaseURL)
		cfg.Auth.TokenFile = prompt(scanner, "Access token file (optional)", cfg.Auth.TokenFile)
		if cfg.Auth.TokenFile == "" {
			cfg.Auth.Token = prompt(scanner, "Access token (optional)", cfg.Auth.Token)
		}
		cfg.Auth.TokenURL = prompt(scanner, "OAuth token URL (optional)", cfg.Auth.TokenURL)
		if cfg.Auth.TokenURL != "" {
			cfg.Auth.ClientID = prompt(scanner, "OAuth client ID", cfg.Auth.ClientID)
			cfg.Auth.ClientSecret = prompt(scanner, "OAuth client secret", cfg.Auth.ClientSecret)
			cfg.Auth.RefreshToken = prompt(scanner, "OAuth refresh token", cfg.Auth.RefreshToken)
		}
		cfg.Model = prompt(scanner, "Tokenizer model", cfg.Model)

		if err := config.Save(cfgPath, cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}

		fmt.Println()
		fmt.Println("Configuration saved to", cfgPath)

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()
		if err := newClient(cfg).Health(ctx); err != nil {
			fmt.Printf("Warning: backend at %s is not reachable: %v\n", cfg.API.BaseURL, err)
		} else {
			fmt.Printf("Backend at %s is healthy.\n", cfg.API.BaseURL)
		}
		return nil
	},
}

// prompt displays a labeled prompt with a default value and reads user input.
// If the user enters nothing, the default is returned.
func prompt(scanner *bufio.Scanner, label, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", label, defaultVal)
	} else {
		fmt.Printf("%s: ", label)
	}
	if scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		if input != "" {
			return input
		}
	}
	return defaultVal
}
