package prusalink

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joshp123/printmon/internal/rate"
	"github.com/joshp123/printmon/internal/rpc"
)

type service struct {
	plugin *Plugin
}

func newService(p *Plugin) *service {
	return &service{plugin: p}
}

func (s *service) Service() rpc.Service {
	return rpc.Service{
		Package: ServicePkg,
		Name:    ServiceName,
		Methods: []rpc.Method{
			{Name: "GetVersion", Handler: s.GetVersion},
			{Name: "GetPrinter", Handler: s.GetPrinter},
			{Name: "GetJob", Handler: s.GetJob},
			{Name: "ListSensors", Handler: s.ListSensors},
			{Name: "Refresh", Handler: s.Refresh},
			{Name: "ExpectChange", Handler: s.ExpectChange},
		},
	}
}

func (s *service) ready() error {
	if s.plugin.client == nil {
		return status.Error(codes.FailedPrecondition, "prusalink client not configured")
	}
	return nil
}

func (s *service) GetVersion(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return s.passthrough(ctx, pathVersion)
}

func (s *service) GetPrinter(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return s.passthrough(ctx, pathPrinter)
}

func (s *service) GetJob(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return s.passthrough(ctx, pathJob)
}

func (s *service) passthrough(ctx context.Context, path string) (*structpb.Struct, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	payload, err := s.plugin.client.Raw(ctx, path)
	if err != nil {
		return nil, status.Errorf(grpcCode(err), "get %s: %v", path, err)
	}
	out := &structpb.Struct{}
	if len(payload) == 0 {
		return out, nil
	}
	if err := protojson.Unmarshal(payload, out); err != nil {
		return nil, status.Errorf(codes.Internal, "decode %s: %v", path, err)
	}
	return out, nil
}

// ListSensors returns {"sensors": [...]} with registry and state data.
func (s *service) ListSensors(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	_ = ctx
	if err := s.ready(); err != nil {
		return nil, err
	}

	h := s.plugin.host
	sensors := make([]any, 0)
	for _, reg := range h.Entities.List() {
		if reg.EntryID != s.plugin.entry.EntryID {
			continue
		}
		sensor := map[string]any{
			"key":          reg.Description.Key,
			"name":         reg.Description.Name,
			"entity_id":    reg.EntityID,
			"unique_id":    reg.UniqueID,
			"enabled":      !reg.Disabled,
			"unit":         reg.Description.Unit,
			"device_class": reg.Description.DeviceClass,
			"available":    false,
			"state":        "",
		}
		if state, ok := h.States.Get(reg.EntityID); ok {
			sensor["available"] = state.Available
			sensor["state"] = state.Formatted()
			sensor["last_updated"] = state.LastUpdated.UTC().Format(time.RFC3339)
		}
		sensors = append(sensors, sensor)
	}
	return structpb.NewStruct(map[string]any{"sensors": sensors})
}

// Refresh polls both coordinators now and reports per-coordinator results.
func (s *service) Refresh(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	result := map[string]any{}
	for name, refresh := range map[string]func(context.Context) error{
		"printer": s.plugin.printer.Refresh,
		"job":     s.plugin.job.Refresh,
	} {
		entry := map[string]any{"success": true}
		if err := refresh(ctx); err != nil {
			entry["success"] = false
			entry["error"] = err.Error()
		}
		result[name] = entry
	}
	return structpb.NewStruct(result)
}

func (s *service) ExpectChange(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	_ = ctx
	if err := s.ready(); err != nil {
		return nil, err
	}
	s.plugin.ExpectChange()
	return structpb.NewStruct(map[string]any{
		"printer_interval_seconds": s.plugin.printer.UpdateInterval().Seconds(),
		"job_interval_seconds":     s.plugin.job.UpdateInterval().Seconds(),
	})
}

func grpcCode(err error) codes.Code {
	var limited rate.RateLimitError
	switch {
	case errors.Is(err, ErrInvalidAuth):
		return codes.Unauthenticated
	case errors.Is(err, ErrConflict):
		return codes.Aborted
	case errors.As(err, &limited):
		return codes.ResourceExhausted
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	default:
		return codes.Unavailable
	}
}
