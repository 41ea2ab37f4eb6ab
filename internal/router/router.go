package router

import (
	"fmt"

	"google.golang.org/grpc"

	"github.com/joshp123/printmon/internal/core"
	"github.com/joshp123/printmon/internal/rpc"
)

// RegisterPlugins registers the registry service and every plugin service
// on the gRPC server.
func RegisterPlugins(server *grpc.Server, plugins []core.Plugin) error {
	if err := rpc.Register(server, core.NewRegistryService(plugins).Service()); err != nil {
		return fmt.Errorf("register registry: %w", err)
	}

	for _, p := range plugins {
		p.RegisterGRPC(server)
	}
	return nil
}
