package prusalink

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshp123/printmon/internal/host"
)

func TestNormalizeHost(t *testing.T) {
	tests := map[string]string{
		"192.168.1.20":          "http://192.168.1.20",
		"192.168.1.20/":         "http://192.168.1.20",
		"http://printer.local/": "http://printer.local",
		"https://printer.local": "https://printer.local",
		"  printer.local//  ":   "http://printer.local",
		"":                      "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeHost(in), in)
	}
}

func TestRunSetupFlowSuccess(t *testing.T) {
	_, server := newFakePrinter(t)

	result := RunSetupFlow(context.Background(), SetupInput{Name: "Office", Host: server.URL + "/", APIKey: testAPIKey}, nil)
	require.Empty(t, result.ErrorCode, "err: %v", result.Err)

	assert.Equal(t, "prusa-mk4", result.Entry.Title)
	assert.Equal(t, Domain, result.Entry.Domain)
	assert.Equal(t, server.URL, result.Entry.Data.Host)
	assert.Equal(t, "Office", result.Entry.Data.Name)
	assert.Equal(t, host.NewEntryID(Domain, server.URL), result.Entry.EntryID)
	assert.Equal(t, "2.1.2", result.Version.Server)
}

func TestRunSetupFlowTitleFallsBackToName(t *testing.T) {
	fake, server := newFakePrinter(t)
	fake.set(pathVersion, `{"api":"2.0.0","server":"2.1.2","hostname":""}`)

	result := RunSetupFlow(context.Background(), SetupInput{Name: "Office", Host: server.URL, APIKey: testAPIKey}, nil)
	require.Empty(t, result.ErrorCode)
	assert.Equal(t, "Office", result.Entry.Title)

	result = RunSetupFlow(context.Background(), SetupInput{Host: server.URL, APIKey: testAPIKey}, nil)
	require.Empty(t, result.ErrorCode)
	assert.Equal(t, "127.0.0.1", result.Entry.Title)
	assert.Equal(t, "127.0.0.1", result.Entry.Data.Name)
}

func TestRunSetupFlowErrors(t *testing.T) {
	fake, server := newFakePrinter(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		input SetupInput
		setup func()
		want  string
	}{
		{"empty host", SetupInput{APIKey: testAPIKey}, nil, ErrorCannotConnect},
		{"empty key", SetupInput{Host: server.URL}, nil, ErrorCannotConnect},
		{"bad key", SetupInput{Host: server.URL, APIKey: "wrong"}, nil, ErrorInvalidAuth},
		{"unreachable", SetupInput{Host: "http://127.0.0.1:1", APIKey: testAPIKey}, nil, ErrorCannotConnect},
		{"server error", SetupInput{Host: server.URL, APIKey: testAPIKey}, func() { fake.fail(pathVersion, http.StatusBadGateway) }, ErrorCannotConnect},
		{"conflict", SetupInput{Host: server.URL, APIKey: testAPIKey}, func() { fake.fail(pathVersion, http.StatusConflict) }, ErrorUnknown},
		{"old api", SetupInput{Host: server.URL, APIKey: testAPIKey}, func() {
			fake.fail(pathVersion, 0)
			fake.set(pathVersion, `{"api":"0.9.0","hostname":"old"}`)
		}, ErrorNotSupported},
		{"missing api", SetupInput{Host: server.URL, APIKey: testAPIKey}, func() { fake.set(pathVersion, `{"hostname":"x"}`) }, ErrorNotSupported},
		{"garbage body", SetupInput{Host: server.URL, APIKey: testAPIKey}, func() { fake.set(pathVersion, `<html>`) }, ErrorUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setup != nil {
				tt.setup()
			}
			result := RunSetupFlow(ctx, tt.input, nil)
			assert.Equal(t, tt.want, result.ErrorCode, "err: %v", result.Err)
			assert.Empty(t, result.Entry.EntryID)
		})
	}
}

func TestSupportedAPI(t *testing.T) {
	assert.True(t, supportedAPI("2.0.0"))
	assert.True(t, supportedAPI("v2.1"))
	assert.True(t, supportedAPI("10"))
	assert.False(t, supportedAPI("1.9"))
	assert.False(t, supportedAPI(""))
	assert.False(t, supportedAPI("abc"))
}
