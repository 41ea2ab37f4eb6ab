package core

import (
	"context"
	"sync"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joshp123/printmon/internal/rpc"
)

const (
	RegistryPackage = "printmon.registry.v1"
	RegistryName    = "Registry"
)

// RegistryService provides plugin discovery to clients.
type RegistryService struct {
	plugins []Plugin
	mu      sync.RWMutex
}

func NewRegistryService(plugins []Plugin) *RegistryService {
	return &RegistryService{plugins: plugins}
}

// Service describes the registry for rpc.Register.
func (r *RegistryService) Service() rpc.Service {
	return rpc.Service{
		Package: RegistryPackage,
		Name:    RegistryName,
		Methods: []rpc.Method{
			{Name: "ListPlugins", Handler: r.ListPlugins},
			{Name: "DescribePlugin", Handler: r.DescribePlugin},
		},
	}
}

// ListPlugins returns {"plugins": [{plugin_id, display_name, version, status}]}.
func (r *RegistryService) ListPlugins(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	plugins := make([]any, 0, len(r.plugins))
	for _, p := range r.plugins {
		manifest := p.Manifest()
		plugins = append(plugins, map[string]any{
			"plugin_id":    manifest.PluginID,
			"display_name": manifest.DisplayName,
			"version":      manifest.Version,
			"status":       string(p.Health()),
		})
	}

	return structpb.NewStruct(map[string]any{"plugins": plugins})
}

// DescribePlugin takes {"plugin_id"} and returns {"plugin": {...}}.
func (r *RegistryService) DescribePlugin(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	_ = ctx

	pluginID := rpc.StringField(req, "plugin_id")
	if pluginID == "" {
		return nil, status.Error(codes.InvalidArgument, "plugin_id is required")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		manifest := p.Manifest()
		if manifest.PluginID != pluginID {
			continue
		}

		dashboards := make([]any, 0, len(p.Dashboards()))
		for _, d := range p.Dashboards() {
			dashboards = append(dashboards, map[string]any{
				"name": d.Name,
				"path": DashboardPath(manifest.PluginID, d.Name),
			})
		}

		return structpb.NewStruct(map[string]any{"plugin": map[string]any{
			"plugin_id":      manifest.PluginID,
			"display_name":   manifest.DisplayName,
			"version":        manifest.Version,
			"services":       rpc.Strings(manifest.Services),
			"agents_md":      p.AgentsMD(),
			"status":         string(p.Health()),
			"health_message": p.HealthMessage(),
			"dashboards":     dashboards,
		}})
	}

	return nil, status.Errorf(codes.NotFound, "plugin %q not found", pluginID)
}
