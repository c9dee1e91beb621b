package di

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/wire"

	"github.com/kcaldas/tradechat/pkg/chat"
	"github.com/kcaldas/tradechat/pkg/config"
	"github.com/kcaldas/tradechat/pkg/credentials"
	"github.com/kcaldas/tradechat/pkg/events"
	"github.com/kcaldas/tradechat/pkg/logging"
)

// Options carries command-line overrides into the graph. Zero values leave
// the configured setting alone.
type Options struct {
	// ConfigFile is the YAML settings file; empty selects the default path.
	ConfigFile  string
	Locale      string
	IdleTimeout time.Duration
	// IdleTimeoutSet distinguishes an explicit zero (disable) from unset.
	IdleTimeoutSet bool
	// ReplayFile serves a captured stream instead of calling the server.
	ReplayFile string
	ChunkSize  int
}

// Transport performs the HTTP round trip for the chat client.
type Transport interface {
	Do(req *http.Request) (*http.Response, error)
}

// App is everything a command needs to run turns.
type App struct {
	Client      *chat.Client
	Credentials credentials.Provider
	Bus         *events.InMemoryBus
	Config      config.ChatConfig
}

// ChatSet provides the chat client and its collaborators.
var ChatSet = wire.NewSet(
	ProvideConfigManager,
	ProvideChatConfig,
	ProvideCredentials,
	ProvideEventBus,
	wire.Bind(new(events.Publisher), new(*events.InMemoryBus)),
	ProvideLogger,
	ProvideTransport,
	ProvideChatClient,
	wire.Struct(new(App), "*"),
)

// ProvideConfigManager layers the environment over the YAML settings file.
func ProvideConfigManager(opts Options) (config.Manager, error) {
	path := opts.ConfigFile
	if path == "" {
		path = config.DefaultConfigPath
	}
	values, err := config.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return config.NewLayeredManager(values), nil
}

// ProvideChatConfig resolves the chat settings and applies overrides.
func ProvideChatConfig(m config.Manager, opts Options) config.ChatConfig {
	cfg := config.LoadChatConfig(m)
	if opts.Locale != "" {
		cfg.Locale = opts.Locale
	}
	if opts.IdleTimeoutSet {
		cfg.IdleTimeout = opts.IdleTimeout
	}
	return cfg
}

// ProvideCredentials reads TRADECHAT_TOKEN, then the configured token file.
func ProvideCredentials(m config.Manager, cfg config.ChatConfig) credentials.Provider {
	return credentials.Default(m, cfg.TokenFile)
}

func ProvideEventBus() *events.InMemoryBus {
	return events.NewEventBus()
}

func ProvideLogger() logging.Logger {
	return logging.NewComponentLogger("chat")
}

// ProvideTransport returns the replay transport when a transcript is given
// and a plain HTTP client otherwise.
func ProvideTransport(opts Options) Transport {
	if opts.ReplayFile != "" {
		return chat.ReplayDoer{Path: opts.ReplayFile, ChunkSize: opts.ChunkSize}
	}
	return &http.Client{}
}

func ProvideChatClient(cfg config.ChatConfig, transport Transport, logger logging.Logger, publisher events.Publisher) (*chat.Client, error) {
	client, err := chat.NewClient(cfg,
		chat.WithHTTPClient(transport),
		chat.WithLogger(logger),
		chat.WithPublisher(publisher),
	)
	if err != nil {
		return nil, fmt.Errorf("creating chat client: %w", err)
	}
	return client, nil
}
