package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/resumechat/internal/auth"
	"github.com/user/resumechat/internal/client"
	"github.com/user/resumechat/internal/config"
	"github.com/user/resumechat/internal/logging"
	"github.com/user/resumechat/internal/types"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:           "resumechat",
	Short:         "Chat with a resume reviewer from the terminal",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", config.DefaultPath(), "config file path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig loads the config file, exiting on failure.
func loadConfig() *config.Config {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// setupLogging installs the configured logger as the slog default.
func setupLogging(cfg *config.Config) io.Closer {
	logger, closer, err := logging.Setup(logging.Options{
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxBackups: 3,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)
	return closer
}

// newIdentity picks the credential source: a refresh-token grant, then a
// token file, then a static token.
func newIdentity(ctx context.Context, cfg *config.Config) (types.IdentityProvider, error) {
	switch cfg.IdentitySource() {
	case config.SourceRefreshToken:
		p, err := auth.NewRefreshing(ctx, auth.RefreshConfig{
			TokenURL:     cfg.Auth.TokenURL,
			ClientID:     cfg.Auth.ClientID,
			ClientSecret: cfg.Auth.ClientSecret,
			RefreshToken: cfg.Auth.RefreshToken,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	case config.SourceTokenFile:
		return auth.File(cfg.Auth.TokenFile), nil
	case config.SourceToken:
		return auth.Static(cfg.Auth.Token), nil
	default:
		return nil, fmt.Errorf("no credentials configured (set auth.token, auth.token_file or auth.refresh_token)")
	}
}

func newClient(cfg *config.Config) *client.Client {
	return client.New(cfg.API.BaseURL,
		client.WithTimeout(cfg.Timeout()),
		client.WithLogger(slog.Default()),
	)
}
