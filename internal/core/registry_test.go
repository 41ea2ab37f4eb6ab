package core

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

type stubPlugin struct {
	id            string
	name          string
	version       string
	services      []string
	dashboards    []Dashboard
	agents        string
	health        HealthStatus
	healthMessage string
}

func (s stubPlugin) ID() string { return s.id }

func (s stubPlugin) Manifest() Manifest {
	return Manifest{
		PluginID:    s.id,
		DisplayName: s.name,
		Version:     s.version,
		Services:    s.services,
	}
}

func (s stubPlugin) AgentsMD() string { return s.agents }

func (s stubPlugin) Dashboards() []Dashboard { return s.dashboards }

func (s stubPlugin) RegisterGRPC(*grpc.Server) {}

func (s stubPlugin) Collectors() []prometheus.Collector { return nil }

func (s stubPlugin) Health() HealthStatus { return s.health }

func (s stubPlugin) HealthMessage() string { return s.healthMessage }

func newStubPlugin(id string) stubPlugin {
	return stubPlugin{
		id:         id,
		name:       "Demo",
		version:    "0.1.0",
		services:   []string{"printmon.plugins.demo.v1.DemoService"},
		agents:     "demo agents",
		health:     HealthHealthy,
		dashboards: []Dashboard{{Name: "demo", JSON: []byte("{}")}},
	}
}

func TestRegistryListPlugins(t *testing.T) {
	plugin := newStubPlugin("demo")
	svc := NewRegistryService([]Plugin{plugin})

	resp, err := svc.ListPlugins(context.Background(), &structpb.Struct{})
	if err != nil {
		t.Fatalf("ListPlugins error: %v", err)
	}
	plugins := resp.AsMap()["plugins"].([]any)
	if len(plugins) != 1 {
		t.Fatalf("expected 1 plugin, got %d", len(plugins))
	}

	got := plugins[0].(map[string]any)
	if got["plugin_id"] != "demo" || got["display_name"] != "Demo" || got["version"] != "0.1.0" {
		t.Fatalf("unexpected plugin summary: %+v", got)
	}
	if got["status"] != string(HealthHealthy) {
		t.Fatalf("unexpected health status: %v", got["status"])
	}
}

func TestRegistryDescribePlugin(t *testing.T) {
	plugin := newStubPlugin("demo")
	svc := NewRegistryService([]Plugin{plugin})

	req, _ := structpb.NewStruct(map[string]any{"plugin_id": "demo"})
	resp, err := svc.DescribePlugin(context.Background(), req)
	if err != nil {
		t.Fatalf("DescribePlugin error: %v", err)
	}
	desc, ok := resp.AsMap()["plugin"].(map[string]any)
	if !ok {
		t.Fatalf("expected plugin descriptor")
	}
	if desc["plugin_id"] != "demo" {
		t.Fatalf("unexpected plugin id: %v", desc["plugin_id"])
	}
	dashboards := desc["dashboards"].([]any)
	if len(dashboards) != 1 {
		t.Fatalf("expected 1 dashboard, got %d", len(dashboards))
	}
	if path := dashboards[0].(map[string]any)["path"]; path != "/dashboards/demo/demo.json" {
		t.Fatalf("unexpected dashboard path: %v", path)
	}

	req, _ = structpb.NewStruct(map[string]any{"plugin_id": "missing"})
	if _, err := svc.DescribePlugin(context.Background(), req); status.Code(err) != codes.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
	if _, err := svc.DescribePlugin(context.Background(), &structpb.Struct{}); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestFilterPlugins(t *testing.T) {
	compiled := []Plugin{newStubPlugin("demo"), newStubPlugin("extra")}

	active := FilterPlugins(compiled, map[string]bool{"demo": true}, false)
	if len(active) != 1 || active[0].ID() != "demo" {
		t.Fatalf("unexpected active plugins: %v", active)
	}

	active = FilterPlugins(compiled, map[string]bool{}, true)
	if len(active) != 2 {
		t.Fatalf("expected all plugins, got %d", len(active))
	}
}

func TestValidateEnabledPlugins(t *testing.T) {
	compiled := []Plugin{newStubPlugin("demo")}

	if err := ValidateEnabledPlugins(compiled, map[string]bool{"demo": true}, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := ValidateEnabledPlugins(compiled, map[string]bool{"missing": true}, false); err == nil {
		t.Fatalf("expected error for missing plugin")
	}
}

func TestValidatePlugins(t *testing.T) {
	if err := ValidatePlugins([]Plugin{newStubPlugin("demo"), newStubPlugin("prusalink")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bad := newStubPlugin("Bad-ID")
	if err := ValidatePlugins([]Plugin{bad}); err == nil {
		t.Fatalf("expected error for malformed id")
	}
	if err := ValidatePlugins([]Plugin{newStubPlugin("demo"), newStubPlugin("demo")}); err == nil {
		t.Fatalf("expected error for duplicate id")
	}
	unnamed := newStubPlugin("demo")
	unnamed.name = ""
	if err := ValidatePlugins([]Plugin{unnamed}); err == nil {
		t.Fatalf("expected error for empty display name")
	}
}

func TestDashboards(t *testing.T) {
	plugins := []Plugin{newStubPlugin("demo")}

	m := DashboardsMap(plugins)
	if string(m["/dashboards/demo/demo.json"]) != "{}" {
		t.Fatalf("unexpected dashboards map: %v", m)
	}

	dir := t.TempDir()
	if err := WriteDashboards(dir, plugins); err != nil {
		t.Fatalf("WriteDashboards: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "demo", "demo.json"))
	if err != nil || string(data) != "{}" {
		t.Fatalf("unexpected dashboard file: %q, %v", data, err)
	}
	if err := WriteDashboards("", plugins); err != nil {
		t.Fatalf("empty dir should be a no-op: %v", err)
	}
}

func TestHealthCollector(t *testing.T) {
	degraded := newStubPlugin("demo")
	degraded.health = HealthDegraded

	expected := `
# HELP printmon_plugin_health Plugin health (1 for the current status)
# TYPE printmon_plugin_health gauge
printmon_plugin_health{plugin="demo",status="DEGRADED"} 1
printmon_plugin_health{plugin="demo",status="ERROR"} 0
printmon_plugin_health{plugin="demo",status="HEALTHY"} 0
`
	if err := testutil.CollectAndCompare(NewHealthCollector([]Plugin{degraded}), strings.NewReader(expected)); err != nil {
		t.Fatalf("unexpected metrics: %v", err)
	}
}
