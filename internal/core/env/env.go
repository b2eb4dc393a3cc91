// Package env carries the process-wide collaborators (logger and settings)
// explicitly, so constructors never reach for hidden globals.
package env

import (
	"github.com/zeusync/reefrush/internal/core/config"
	"github.com/zeusync/reefrush/internal/core/observability/log"
)

type Env struct {
	Logger   log.Log
	Settings *config.Settings
}

func New(logger log.Log, settings *config.Settings) Env {
	if logger == nil {
		logger = log.NewNop()
	}
	if settings == nil {
		settings = config.NewSettings(nil)
	}
	return Env{Logger: logger, Settings: settings}
}

// Nop is an Env with a discarding logger and no settings.
func Nop() Env {
	return New(nil, nil)
}

// Component returns a child logger tagged with the component name.
func (e Env) Component(name string) log.Log {
	logger := e.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	return logger.With(log.String("component", name))
}
