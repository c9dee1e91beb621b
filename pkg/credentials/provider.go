// Package credentials supplies the bearer token attached to each chat
// request. An empty token means the request is sent as a guest.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mitchellh/go-homedir"

	"github.com/kcaldas/tradechat/pkg/config"
)

// EnvToken is the variable read by the Env provider.
const EnvToken = "TRADECHAT_TOKEN"

// Provider returns the token for the next request. It is called once per
// turn, so rotating credentials take effect on the following request.
type Provider interface {
	Token(ctx context.Context) (string, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context) (string, error)

// Token calls f.
func (f ProviderFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

// Static always returns the same token.
type Static string

// Token returns the static token.
func (s Static) Token(context.Context) (string, error) {
	return strings.TrimSpace(string(s)), nil
}

// Guest never sends a token.
var Guest Provider = Static("")

// Env reads TRADECHAT_TOKEN through a config manager on every call.
type Env struct {
	config config.Manager
}

// NewEnv creates an Env provider.
func NewEnv(m config.Manager) *Env {
	return &Env{config: m}
}

// Token returns the configured token or "" when none is set.
func (e *Env) Token(context.Context) (string, error) {
	return strings.TrimSpace(e.config.GetStringWithDefault(EnvToken, "")), nil
}

// File reads the token from a file. A leading ~ expands to the home
// directory. The file is read on every call.
type File struct {
	Path string
	// Optional makes a missing file behave like an empty token.
	Optional bool
}

// Token returns the trimmed file contents.
func (f File) Token(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path, err := homedir.Expand(f.Path)
	if err != nil {
		return "", fmt.Errorf("expanding token path %s: %w", f.Path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if f.Optional && errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("reading token file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Chain asks each provider in order and returns the first non-empty token.
// The first error stops the chain.
type Chain []Provider

// Token walks the chain.
func (c Chain) Token(ctx context.Context) (string, error) {
	for _, p := range c {
		if p == nil {
			continue
		}
		token, err := p.Token(ctx)
		if err != nil {
			return "", err
		}
		if token != "" {
			return token, nil
		}
	}
	return "", nil
}

// Default builds the provider chain used by the CLI: the environment first,
// then the optional token file.
func Default(m config.Manager, tokenFile string) Provider {
	chain := Chain{NewEnv(m)}
	if tokenFile != "" {
		chain = append(chain, File{Path: tokenFile, Optional: true})
	}
	return chain
}
