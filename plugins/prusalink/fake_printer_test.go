package prusalink

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

const testAPIKey = "secret-key"

// fakePrinter serves canned PrusaLink responses.
type fakePrinter struct {
	mu       sync.Mutex
	bodies   map[string]string
	statuses map[string]int
	hits     map[string]int
}

func newFakePrinter(t *testing.T) (*fakePrinter, *httptest.Server) {
	t.Helper()

	f := &fakePrinter{
		bodies: map[string]string{
			pathVersion: `{"api":"2.0.0","server":"2.1.2","text":"PrusaLink","hostname":"prusa-mk4","original":"PrusaLink MK4"}`,
			pathPrinter: `{"telemetry":{"temp-bed":60.1,"temp-nozzle":215.3,"z-height":1.2,"print-speed":100,"material":"PLA"},"temperature":{"tool0":{"actual":215.3,"target":215},"bed":{"actual":60.1,"target":60}},"state":{"text":"Printing","flags":{"printing":true,"operational":true}}}`,
			pathJob:     `{"state":"Printing","job":{"estimatedPrintTime":3600,"file":{"name":"BENCHY~1.GCO","path":"/usb","display":"benchy.gcode"}},"progress":{"completion":0.42,"printTime":600,"printTimeLeft":1800}}`,
		},
		statuses: map[string]int{},
		hits:     map[string]int{},
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		f.mu.Lock()
		f.hits[r.URL.Path]++
		body, ok := f.bodies[r.URL.Path]
		code := f.statuses[r.URL.Path]
		f.mu.Unlock()

		if r.Header.Get(apiKeyHeader) != testAPIKey {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if code != 0 {
			w.WriteHeader(code)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(server.Close)
	return f, server
}

func (f *fakePrinter) set(path, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bodies[path] = body
}

func (f *fakePrinter) fail(path string, code int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[path] = code
}

func (f *fakePrinter) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[path]
}
