package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Environment keys read by LoadChatConfig.
const (
	EnvBaseURL           = "TRADECHAT_BASE_URL"
	EnvChatPath          = "TRADECHAT_CHAT_PATH"
	EnvIdleTimeout       = "TRADECHAT_IDLE_TIMEOUT"
	EnvMaxFrameBytes     = "TRADECHAT_MAX_FRAME_BYTES"
	EnvLocale            = "TRADECHAT_LOCALE"
	EnvExpectDetailLinks = "TRADECHAT_EXPECT_DETAIL_LINKS"
	EnvLenientShapes     = "TRADECHAT_LENIENT_SHAPES"
	EnvTokenFile         = "TRADECHAT_TOKEN_FILE"
)

// Defaults for ChatConfig.
const (
	DefaultBaseURL      = "http://localhost:8080"
	DefaultChatPath     = "/api/v1/chat/stream"
	DefaultIdleTimeout  = 60 * time.Second
	DefaultMaxFrameSize = 1 << 20
	DefaultLocale       = "en-US"
)

// ChatConfig is everything the chat client needs to reach the streaming
// endpoint.
type ChatConfig struct {
	BaseURL  string
	ChatPath string
	// IdleTimeout bounds the silence between two chunks. Zero disables it.
	IdleTimeout       time.Duration
	MaxFrameSize      int
	Locale            string
	ExpectDetailLinks bool
	LenientShapes     bool
	TokenFile         string
}

// DefaultChatConfig returns the built-in defaults.
func DefaultChatConfig() ChatConfig {
	return ChatConfig{
		BaseURL:      DefaultBaseURL,
		ChatPath:     DefaultChatPath,
		IdleTimeout:  DefaultIdleTimeout,
		MaxFrameSize: DefaultMaxFrameSize,
		Locale:       DefaultLocale,
	}
}

// LoadChatConfig resolves ChatConfig through m, falling back to defaults.
func LoadChatConfig(m Manager) ChatConfig {
	def := DefaultChatConfig()
	return ChatConfig{
		BaseURL:           m.GetStringWithDefault(EnvBaseURL, def.BaseURL),
		ChatPath:          m.GetStringWithDefault(EnvChatPath, def.ChatPath),
		IdleTimeout:       m.GetDurationWithDefault(EnvIdleTimeout, def.IdleTimeout),
		MaxFrameSize:      m.GetIntWithDefault(EnvMaxFrameBytes, def.MaxFrameSize),
		Locale:            m.GetStringWithDefault(EnvLocale, def.Locale),
		ExpectDetailLinks: m.GetBoolWithDefault(EnvExpectDetailLinks, false),
		LenientShapes:     m.GetBoolWithDefault(EnvLenientShapes, false),
		TokenFile:         m.GetStringWithDefault(EnvTokenFile, ""),
	}
}

// Endpoint joins BaseURL and ChatPath.
func (c ChatConfig) Endpoint() (string, error) {
	base, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", c.BaseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return "", fmt.Errorf("invalid base URL %q: scheme must be http or https", c.BaseURL)
	}
	return base.JoinPath(c.ChatPath).String(), nil
}

// Validate reports settings the client cannot work with.
func (c ChatConfig) Validate() error {
	if _, err := c.Endpoint(); err != nil {
		return err
	}
	if c.MaxFrameSize <= 0 {
		return errors.New("max frame size must be positive")
	}
	if c.IdleTimeout < 0 {
		return errors.New("idle timeout must not be negative")
	}
	return nil
}
