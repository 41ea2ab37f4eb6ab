package prusalink

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joshp123/printmon/internal/host"
)

const setupTimeout = 5 * time.Second

// Setup flow error codes.
const (
	ErrorCannotConnect = "cannot_connect"
	ErrorInvalidAuth   = "invalid_auth"
	ErrorNotSupported  = "not_supported"
	ErrorUnknown       = "unknown"
)

// SetupError carries the flow error code for a failed validation.
type SetupError struct {
	Code string
	Err  error
}

func (e *SetupError) Error() string {
	if e.Err == nil {
		return e.Code
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

// SetupInput is what the user types in.
type SetupInput struct {
	Name   string
	Host   string
	APIKey string
}

// SetupResult is either an entry or an error code.
type SetupResult struct {
	Entry     host.ConfigEntry
	Version   VersionInfo
	ErrorCode string
	Err       error
}

// NormalizeHost trims trailing slashes and assumes http:// when no scheme
// is given.
func NormalizeHost(raw string) string {
	hostURL := strings.TrimRight(strings.TrimSpace(raw), "/")
	if hostURL == "" {
		return ""
	}
	if !strings.HasPrefix(hostURL, "http://") && !strings.HasPrefix(hostURL, "https://") {
		hostURL = "http://" + hostURL
	}
	return hostURL
}

// ValidateInput checks that data reaches a supported PrusaLink instance.
func ValidateInput(ctx context.Context, data host.EntryData, httpClient *http.Client) (VersionInfo, error) {
	if strings.TrimSpace(data.Host) == "" || strings.TrimSpace(data.APIKey) == "" {
		return VersionInfo{}, &SetupError{Code: ErrorCannotConnect, Err: errors.New("host and api key are required")}
	}

	client, err := NewClient(data.Host, data.APIKey, httpClient)
	if err != nil {
		return VersionInfo{}, &SetupError{Code: ErrorCannotConnect, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, setupTimeout)
	defer cancel()

	version, err := client.Version(ctx)
	if err != nil {
		return VersionInfo{}, &SetupError{Code: classifySetupError(err), Err: err}
	}
	if !supportedAPI(version.API) {
		return VersionInfo{}, &SetupError{Code: ErrorNotSupported, Err: fmt.Errorf("unsupported api version %q", version.API)}
	}
	return version, nil
}

func classifySetupError(err error) string {
	var decodeErr *DecodeError
	switch {
	case errors.Is(err, ErrInvalidAuth):
		return ErrorInvalidAuth
	case errors.Is(err, ErrConflict), errors.As(err, &decodeErr):
		return ErrorUnknown
	default:
		return ErrorCannotConnect
	}
}

// supportedAPI accepts API major version 2 and later.
func supportedAPI(api string) bool {
	major, _, _ := strings.Cut(strings.TrimPrefix(strings.TrimSpace(api), "v"), ".")
	n, err := strconv.Atoi(major)
	return err == nil && n >= 2
}

// RunSetupFlow normalises input, validates it against the printer and
// builds the config entry. The entry title is the printer hostname, falling
// back to the given name and then to the host.
func RunSetupFlow(ctx context.Context, input SetupInput, httpClient *http.Client) SetupResult {
	data := host.EntryData{
		Name:   strings.TrimSpace(input.Name),
		Host:   NormalizeHost(input.Host),
		APIKey: strings.TrimSpace(input.APIKey),
	}

	version, err := ValidateInput(ctx, data, httpClient)
	if err != nil {
		code := ErrorUnknown
		var setupErr *SetupError
		if errors.As(err, &setupErr) {
			code = setupErr.Code
		}
		return SetupResult{ErrorCode: code, Err: err}
	}

	title := strings.TrimSpace(version.Hostname)
	if title == "" {
		title = data.Name
	}
	if title == "" {
		title = hostnameOf(data.Host)
	}
	if data.Name == "" {
		data.Name = title
	}
	return SetupResult{
		Entry:   host.NewConfigEntry(Domain, "", title, data),
		Version: version,
	}
}

func hostnameOf(hostURL string) string {
	u, err := url.Parse(hostURL)
	if err != nil || u.Hostname() == "" {
		return hostURL
	}
	return u.Hostname()
}
