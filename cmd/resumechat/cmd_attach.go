package main

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/resumechat/internal/jobpost"
	"github.com/user/resumechat/internal/types"
)

func init() {
	rootCmd.AddCommand(attachCmd, detachCmd, attachmentsCmd)
}

// openUpload reads src into an Upload. Job descriptions may also be given as
// an http(s) URL, which is fetched and converted to markdown.
func openUpload(ctx context.Context, kind types.ArtifactKind, src string) (*types.Upload, error) {
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		if kind != types.ArtifactJobDescription {
			return nil, fmt.Errorf("only job descriptions can be fetched from a URL")
		}
		return jobpost.NewFetcher(nil).Upload(ctx, src)
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", src, err)
	}
	contentType := mime.TypeByExtension(filepath.Ext(src))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &types.Upload{
		Name:        filepath.Base(src),
		ContentType: contentType,
		Body:        bytes.NewReader(data),
	}, nil
}

// sessionClient returns the backend client and a fresh bearer token.
func sessionClient(ctx context.Context) (*apiSession, error) {
	cfg := loadConfig()
	setupLogging(cfg)
	identity, err := newIdentity(ctx, cfg)
	if err != nil {
		return nil, err
	}
	token, err := identity.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}
	return &apiSession{client: newClient(cfg), token: token}, nil
}

var attachCmd = &cobra.Command{
	Use:   "attach <session-id> <resume|job> <file|url>",
	Short: "Upload a resume or job description to a session",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		kind, err := types.ParseArtifactKind(args[1])
		if err != nil {
			return err
		}
		s, err := sessionClient(ctx)
		if err != nil {
			return err
		}
		upload, err := openUpload(ctx, kind, args[2])
		if err != nil {
			return err
		}
		a, err := s.client.Upload(ctx, s.token, types.SessionID(args[0]), kind, upload)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s (%s) as %s.\n", a.Name, a.ContentType, kind)
		return nil
	},
}

var detachCmd = &cobra.Command{
	Use:   "detach <session-id> <resume|job>",
	Short: "Delete a session's resume or job description",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		kind, err := types.ParseArtifactKind(args[1])
		if err != nil {
			return err
		}
		s, err := sessionClient(ctx)
		if err != nil {
			return err
		}
		if err := s.client.Delete(ctx, s.token, types.SessionID(args[0]), kind); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s.\n", kind)
		return nil
	},
}

var attachmentsCmd = &cobra.Command{
	Use:   "attachments <session-id>",
	Short: "Show a session's attachments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := sessionClient(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, kind := range types.ArtifactKinds {
			a, err := s.client.Attachment(ctx, s.token, types.SessionID(args[0]), kind)
			if err != nil {
				return err
			}
			printAttachment(out, kind, a)
		}
		return nil
	},
}
