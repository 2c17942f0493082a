// Package auth provides identity providers: sources of the bearer credential
// sent with every backend call.
package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2"
)

// ErrNoToken is returned when a provider has no credential to offer.
var ErrNoToken = errors.New("no access token configured")

// Static always returns the same token.
type Static string

func (s Static) Token(context.Context) (string, error) {
	if s == "" {
		return "", ErrNoToken
	}
	return string(s), nil
}

// File reads the token from a file on every call, so an external process
// can rotate it.
type File string

func (f File) Token(context.Context) (string, error) {
	data, err := os.ReadFile(string(f))
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	tok := strings.TrimSpace(string(data))
	if tok == "" {
		return "", ErrNoToken
	}
	return tok, nil
}

// OAuth2 issues access tokens from an oauth2.TokenSource, which handles
// caching and refresh.
type OAuth2 struct {
	src oauth2.TokenSource
}

func NewOAuth2(src oauth2.TokenSource) *OAuth2 {
	return &OAuth2{src: src}
}

// RefreshConfig describes a refresh-token grant.
type RefreshConfig struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	RefreshToken string
	Scopes       []string
}

// NewRefreshing returns an OAuth2 provider that exchanges cfg.RefreshToken
// for access tokens as they expire.
func NewRefreshing(ctx context.Context, cfg RefreshConfig) (*OAuth2, error) {
	if cfg.TokenURL == "" || cfg.RefreshToken == "" {
		return nil, fmt.Errorf("token url and refresh token are required")
	}
	oc := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: cfg.TokenURL},
		Scopes:       cfg.Scopes,
	}
	tok := &oauth2.Token{RefreshToken: cfg.RefreshToken}
	return NewOAuth2(oauth2.ReuseTokenSource(nil, oc.TokenSource(ctx, tok))), nil
}

func (o *OAuth2) Token(context.Context) (string, error) {
	tok, err := o.src.Token()
	if err != nil {
		return "", fmt.Errorf("refresh access token: %w", err)
	}
	if tok.AccessToken == "" {
		return "", ErrNoToken
	}
	return tok.AccessToken, nil
}
