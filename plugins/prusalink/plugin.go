package prusalink

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/joshp123/printmon/internal/config"
	"github.com/joshp123/printmon/internal/core"
	"github.com/joshp123/printmon/internal/host"
	"github.com/joshp123/printmon/internal/logging"
	"github.com/joshp123/printmon/internal/rate"
	"github.com/joshp123/printmon/internal/rpc"
)

//go:embed AGENTS.md
var agentsMD string

//go:embed dashboard.json
var dashboardJSON []byte

const (
	PluginID    = "prusalink"
	platform    = "sensor"
	ServicePkg  = "printmon.plugins.prusalink.v1"
	ServiceName = "PrusaLinkService"
)

// Plugin implements the printmon plugin contract for one PrusaLink printer.
type Plugin struct {
	cfg     Config
	host    *host.Host
	logger  *zap.Logger
	client  *Client
	entry   host.ConfigEntry
	printer *updateCoordinator[PrinterInfo]
	job     *updateCoordinator[JobInfo]
	metrics *MetricsCollector
	initErr error
}

// NewPlugin constructs the plugin from config. It returns false when the
// prusalink section is absent.
func NewPlugin(cfg *config.PrusaLinkConfig, h *host.Host, logger *zap.Logger) (*Plugin, bool) {
	if cfg == nil {
		return nil, false
	}
	logger = logging.OrNop(logger).Named(PluginID)

	runtimeCfg, err := ConfigFromFile(cfg)
	if err != nil {
		return &Plugin{host: h, logger: logger, initErr: err}, true
	}

	budget := rate.Provider(PluginID).MaxRequestsPer(rate.Minute, runtimeCfg.RequestsPerMinute)
	httpClient := rate.WrapHTTP(budget, &http.Client{Timeout: requestTimeout})

	client, err := NewClient(runtimeCfg.Host, runtimeCfg.APIKey, httpClient)
	if err != nil {
		return &Plugin{cfg: runtimeCfg, host: h, logger: logger, initErr: err}, true
	}

	p := &Plugin{
		cfg:     runtimeCfg,
		host:    h,
		logger:  logger.With(zap.String("entry_id", runtimeCfg.EntryID)),
		client:  client,
		entry:   host.NewConfigEntry(Domain, runtimeCfg.EntryID, runtimeCfg.Name, runtimeCfg.entryData()),
		printer: newPrinterCoordinator(client, logger),
		job:     newJobCoordinator(client, logger),
	}
	p.metrics = newMetricsCollector(p.printer, p.job)
	return p, true
}

func (p *Plugin) ID() string {
	return PluginID
}

func (p *Plugin) Manifest() core.Manifest {
	return core.Manifest{
		PluginID:    PluginID,
		DisplayName: "PrusaLink",
		Version:     "0.1.0",
		Services:    []string{ServicePkg + "." + ServiceName},
	}
}

func (p *Plugin) AgentsMD() string {
	return agentsMD
}

func (p *Plugin) Dashboards() []core.Dashboard {
	return []core.Dashboard{{Name: "prusalink-overview", JSON: dashboardJSON}}
}

func (p *Plugin) RegisterGRPC(server *grpc.Server) {
	rpc.MustRegister(server, newService(p).Service())
}

func (p *Plugin) Collectors() []prometheus.Collector {
	if p.metrics == nil {
		return nil
	}
	return []prometheus.Collector{p.metrics}
}

func (p *Plugin) Health() core.HealthStatus {
	status, _ := p.health()
	return status
}

func (p *Plugin) HealthMessage() string {
	_, msg := p.health()
	return msg
}

func (p *Plugin) health() (core.HealthStatus, string) {
	if p.initErr != nil {
		return core.HealthError, p.initErr.Error()
	}
	for _, err := range []error{p.printer.LastError(), p.job.LastError()} {
		if err == nil {
			continue
		}
		if errors.Is(err, ErrInvalidAuth) {
			return core.HealthError, err.Error()
		}
		return core.HealthDegraded, err.Error()
	}
	return core.HealthHealthy, ""
}

// Entry is the config entry the plugin loads into the host.
func (p *Plugin) Entry() host.ConfigEntry {
	return p.entry
}

// Run loads the entry, polls until ctx is cancelled and unloads the entry.
func (p *Plugin) Run(ctx context.Context) error {
	if p.initErr != nil {
		p.logger.Error("PrusaLink not configured", zap.Error(p.initErr))
		<-ctx.Done()
		return nil
	}

	if err := p.setupEntry(ctx); err != nil {
		return err
	}
	defer func() {
		if err := p.host.UnloadEntry(p.entry.EntryID); err != nil {
			p.logger.Warn("Unload entry failed", zap.Error(err))
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.printer.Run(gctx) })
	g.Go(func() error { return p.job.Run(gctx) })
	return g.Wait()
}

func (p *Plugin) setupEntry(ctx context.Context) error {
	if err := p.host.AddEntry(p.entry); err != nil {
		return fmt.Errorf("add prusalink entry: %w", err)
	}

	var version *VersionInfo
	versionCtx, cancel := context.WithTimeout(ctx, setupTimeout)
	info, err := p.client.Version(versionCtx)
	cancel()
	if err != nil {
		p.logger.Warn("Version lookup failed", zap.Error(err))
	} else {
		version = &info
	}

	device := deviceInfo(p.entry, version)
	printerEntities := make([]host.Entity, 0)
	for _, desc := range PrinterSensors() {
		printerEntities = append(printerEntities, newSensorEntity(p.entry.EntryID, device, desc, p.printer))
	}
	jobEntities := make([]host.Entity, 0)
	for _, desc := range JobSensors(nil) {
		jobEntities = append(jobEntities, newSensorEntity(p.entry.EntryID, device, desc, p.job))
	}

	entities := append(append([]host.Entity{}, printerEntities...), jobEntities...)
	if _, err := p.host.AddEntities(p.entry.EntryID, platform, device, entities, p.cfg.enabledOverrides()); err != nil {
		_ = p.host.UnloadEntry(p.entry.EntryID)
		return fmt.Errorf("add prusalink entities: %w", err)
	}
	p.host.WriteEntryStates(p.entry.EntryID)

	p.printer.AddListener(func() { p.writeStates(printerEntities) })
	p.job.AddListener(func() { p.writeStates(jobEntities) })

	// A failed first refresh leaves entities unavailable until the next poll.
	if err := p.printer.Refresh(ctx); err != nil {
		p.logger.Warn("Initial printer refresh failed", zap.Error(err))
	}
	if err := p.job.Refresh(ctx); err != nil {
		p.logger.Warn("Initial job refresh failed", zap.Error(err))
	}

	p.logger.Info("PrusaLink entry set up",
		zap.String("host", p.cfg.Host),
		zap.Int("entities", len(entities)))
	return nil
}

func (p *Plugin) writeStates(entities []host.Entity) {
	for _, e := range entities {
		p.host.WriteState(e)
	}
}

// ExpectChange makes both coordinators poll fast for a while.
func (p *Plugin) ExpectChange() {
	if p.printer == nil {
		return
	}
	p.printer.ExpectChange()
	p.job.ExpectChange()
}
