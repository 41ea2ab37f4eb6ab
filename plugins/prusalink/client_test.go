package prusalink

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshp123/printmon/internal/rate"
)

func TestClientDecodesEndpoints(t *testing.T) {
	_, server := newFakePrinter(t)
	client, err := NewClient(server.URL+"/", testAPIKey, nil)
	require.NoError(t, err)
	assert.Equal(t, server.URL, client.Host())
	assert.NotContains(t, client.String(), testAPIKey)

	ctx := context.Background()

	version, err := client.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", version.API)
	assert.Equal(t, "prusa-mk4", version.Hostname)

	printer, err := client.Printer(ctx)
	require.NoError(t, err)
	require.NotNil(t, printer.Telemetry.TempBed)
	assert.InDelta(t, 60.1, *printer.Telemetry.TempBed, 1e-9)
	assert.True(t, printer.State.Flags.Printing)
	require.NotNil(t, printer.Temperature.Tool0)
	assert.InDelta(t, 215.0, printer.Temperature.Tool0.Target, 1e-9)

	job, err := client.Job(ctx)
	require.NoError(t, err)
	require.NotNil(t, job.Job)
	assert.Equal(t, "benchy.gcode", job.Job.File.Display)
	require.NotNil(t, job.Progress)
	assert.InDelta(t, 0.42, job.Progress.Completion, 1e-9)
}

func TestClientNullSubObjects(t *testing.T) {
	fake, server := newFakePrinter(t)
	fake.set(pathJob, `{"state":"Operational","job":null,"progress":null}`)
	client, err := NewClient(server.URL, testAPIKey, nil)
	require.NoError(t, err)

	job, err := client.Job(context.Background())
	require.NoError(t, err)
	assert.Nil(t, job.Job)
	assert.Nil(t, job.Progress)
}

func TestClientErrorClassification(t *testing.T) {
	fake, server := newFakePrinter(t)
	ctx := context.Background()

	wrongKey, err := NewClient(server.URL, "wrong", nil)
	require.NoError(t, err)
	_, err = wrongKey.Version(ctx)
	assert.ErrorIs(t, err, ErrInvalidAuth)

	client, err := NewClient(server.URL, testAPIKey, nil)
	require.NoError(t, err)

	fake.fail(pathPrinter, http.StatusConflict)
	_, err = client.Printer(ctx)
	assert.ErrorIs(t, err, ErrConflict)

	fake.fail(pathJob, http.StatusServiceUnavailable)
	_, err = client.Job(ctx)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr), "got %v", err)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	assert.False(t, errors.Is(err, ErrInvalidAuth))

	fake.set(pathVersion, `not json`)
	_, err = client.Version(ctx)
	var decodeErr *DecodeError
	assert.True(t, errors.As(err, &decodeErr), "got %v", err)
}

func TestClientTransportError(t *testing.T) {
	_, server := newFakePrinter(t)
	client, err := NewClient(server.URL, testAPIKey, nil)
	require.NoError(t, err)
	server.Close()

	_, err = client.Version(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalidAuth))
	assert.False(t, errors.Is(err, ErrConflict))
}

func TestClientRawRestrictsPaths(t *testing.T) {
	_, server := newFakePrinter(t)
	client, err := NewClient(server.URL, testAPIKey, nil)
	require.NoError(t, err)

	raw, err := client.Raw(context.Background(), pathJob)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "benchy.gcode")

	_, err = client.Raw(context.Background(), "/api/v1/files")
	assert.Error(t, err)
}

func TestClientRequiresHostAndKey(t *testing.T) {
	_, err := NewClient("", testAPIKey, nil)
	assert.Error(t, err)
	_, err = NewClient("http://printer", " ", nil)
	assert.Error(t, err)
}

func TestClientRespectsBudget(t *testing.T) {
	fake, server := newFakePrinter(t)
	budget := rate.Provider("prusalink-test").MaxRequestsPer(rate.Minute, 1)
	client, err := NewClient(server.URL, testAPIKey, rate.WrapHTTP(budget, nil))
	require.NoError(t, err)

	_, err = client.Version(context.Background())
	require.NoError(t, err)

	_, err = client.Version(context.Background())
	var limited rate.RateLimitError
	assert.True(t, errors.As(err, &limited), "got %v", err)
	assert.Equal(t, 1, fake.count(pathVersion))
}
