package prusalink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	requestTimeout = 10 * time.Second
	apiKeyHeader   = "X-Api-Key"

	pathVersion = "/api/version"
	pathPrinter = "/api/printer"
	pathJob     = "/api/job"
)

var (
	// ErrInvalidAuth is returned for HTTP 401.
	ErrInvalidAuth = errors.New("prusalink: invalid authentication")
	// ErrConflict is returned for HTTP 409.
	ErrConflict = errors.New("prusalink: conflict")
)

// StatusError is any other non-2xx response.
type StatusError struct {
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("request %s: %d %s", e.Path, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("request %s: %d %s: %s", e.Path, e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

// DecodeError means the printer answered 2xx with a body we could not parse.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Client talks to one PrusaLink instance. It never retries.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient builds a client for host. A nil httpClient gets a default with
// a request timeout.
func NewClient(host, apiKey string, httpClient *http.Client) (*Client, error) {
	if strings.TrimSpace(host) == "" {
		return nil, fmt.Errorf("prusalink host is required")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("prusalink api key is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(host, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
	}, nil
}

// Host is the base URL, used as the device configuration URL.
func (c *Client) Host() string {
	return c.baseURL
}

// String identifies the client without leaking the key.
func (c *Client) String() string {
	return "prusalink " + c.baseURL
}

func (c *Client) Version(ctx context.Context) (VersionInfo, error) {
	var info VersionInfo
	if err := c.getJSON(ctx, pathVersion, &info); err != nil {
		return VersionInfo{}, err
	}
	return info, nil
}

func (c *Client) Printer(ctx context.Context) (PrinterInfo, error) {
	var info PrinterInfo
	if err := c.getJSON(ctx, pathPrinter, &info); err != nil {
		return PrinterInfo{}, err
	}
	return info, nil
}

func (c *Client) Job(ctx context.Context) (JobInfo, error) {
	var info JobInfo
	if err := c.getJSON(ctx, pathJob, &info); err != nil {
		return JobInfo{}, err
	}
	return info, nil
}

// Raw returns the undecoded body of one of the fixed endpoints.
func (c *Client) Raw(ctx context.Context, path string) ([]byte, error) {
	switch path {
	case pathVersion, pathPrinter, pathJob:
	default:
		return nil, fmt.Errorf("unsupported path %q", path)
	}
	return c.getBytes(ctx, path)
}

func (c *Client) getJSON(ctx context.Context, path string, dest any) error {
	payload, err := c.getBytes(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		return &DecodeError{Path: path, Err: err}
	}
	return nil
}

func (c *Client) getBytes(ctx context.Context, path string) ([]byte, error) {
	endpoint, err := url.JoinPath(c.baseURL, path)
	if err != nil {
		return nil, fmt.Errorf("build url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return nil, ErrInvalidAuth
	case http.StatusConflict:
		return nil, ErrConflict
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Path: path, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(payload))}
	}

	return payload, nil
}
