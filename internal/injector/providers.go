package injector

import (
	"github.com/google/wire"

	"github.com/zeusync/reefrush/internal/client"
	"github.com/zeusync/reefrush/internal/core/config"
	"github.com/zeusync/reefrush/internal/core/env"
	"github.com/zeusync/reefrush/internal/core/observability/log"
	"github.com/zeusync/reefrush/internal/server"
)

// ConfigPath is the YAML file to load. Empty means defaults.
type ConfigPath string

// Loaded is a parsed configuration file.
type Loaded struct {
	Config   config.Config
	Settings *config.Settings
}

func ProvideLoaded(path ConfigPath) (Loaded, error) {
	cfg, settings, err := config.LoadFile(string(path))
	if err != nil {
		return Loaded{}, err
	}
	return Loaded{Config: cfg, Settings: settings}, nil
}

func ProvideConfig(l Loaded) config.Config { return l.Config }

func ProvideSettings(l Loaded) *config.Settings { return l.Settings }

func ProvideLogger(cfg config.Config) log.Log {
	return log.New(log.ParseLevel(cfg.Log.Level))
}

func ProvideClient(e env.Env, cfg config.Config) (*client.Client, error) {
	var opts []client.Option
	if cfg.Client.Autopilot > 0 {
		opts = append(opts, client.WithAutopilot(cfg.Client.Autopilot))
	}
	return client.New(e, cfg, opts...)
}

var Set = wire.NewSet(
	ProvideLoaded,
	ProvideConfig,
	ProvideSettings,
	ProvideLogger,
	env.New,
	server.New,
	ProvideClient,
)
