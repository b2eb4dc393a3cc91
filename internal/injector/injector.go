//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"

	"github.com/zeusync/reefrush/internal/client"
	"github.com/zeusync/reefrush/internal/server"
)

func InitializeServer(path ConfigPath) (*server.Server, error) {
	wire.Build(Set)
	return nil, nil
}

func InitializeClient(path ConfigPath) (*client.Client, error) {
	wire.Build(Set)
	return nil, nil
}
