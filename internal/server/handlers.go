package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/joshp123/printmon/internal/host"
)

// HealthHandler returns a simple OK for liveness checks.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type stateAttributes struct {
	FriendlyName      string   `json:"friendly_name"`
	UnitOfMeasurement string   `json:"unit_of_measurement,omitempty"`
	DeviceClass       string   `json:"device_class,omitempty"`
	StateClass        string   `json:"state_class,omitempty"`
	Icon              string   `json:"icon,omitempty"`
	Options           []string `json:"options,omitempty"`
}

type stateResponse struct {
	EntityID    string          `json:"entity_id"`
	UniqueID    string          `json:"unique_id"`
	State       string          `json:"state"`
	Attributes  stateAttributes `json:"attributes"`
	LastUpdated string          `json:"last_updated"`
}

func renderState(s host.State) stateResponse {
	return stateResponse{
		EntityID: s.EntityID,
		UniqueID: s.UniqueID,
		State:    s.Formatted(),
		Attributes: stateAttributes{
			FriendlyName:      s.FriendlyName(),
			UnitOfMeasurement: s.Description.Unit,
			DeviceClass:       s.Description.DeviceClass,
			StateClass:        s.Description.StateClass,
			Icon:              s.Description.Icon,
			Options:           s.Description.Options,
		},
		LastUpdated: s.LastUpdated.UTC().Format(time.RFC3339Nano),
	}
}

// RegisterStateHandlers mounts GET /api/states and GET /api/states/{entity_id}.
func RegisterStateHandlers(mux *http.ServeMux, states *host.StateCache) {
	mux.HandleFunc("GET /api/states", func(w http.ResponseWriter, _ *http.Request) {
		list := states.List()
		out := make([]stateResponse, 0, len(list))
		for _, s := range list {
			out = append(out, renderState(s))
		}
		writeJSON(w, http.StatusOK, out)
	})
	mux.HandleFunc("GET /api/states/{entity_id}", func(w http.ResponseWriter, r *http.Request) {
		s, ok := states.Get(r.PathValue("entity_id"))
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "Entity not found."})
			return
		}
		writeJSON(w, http.StatusOK, renderState(s))
	})
}

func writeJSON(w http.ResponseWriter, code int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(value)
}
