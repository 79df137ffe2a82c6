// Package httpclient is the HTTP client shared by the REST connectors.
// It does not retry: retries, rate limiting and circuit breaking belong to the
// connector runner. It only maps transport and status failures onto the
// error taxonomy so the runner can decide.
package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"baykus/internal/platform/errors"
	"baykus/internal/platform/logx"
)

const (
	DefaultUserAgent = "Baykus OSINT Tool/1.0"
	// maxBody limita lo que se lee de una respuesta.
	maxBody = 8 << 20
)

// AuthScheme indica cómo se envía la credencial.
type AuthScheme int

const (
	AuthNone AuthScheme = iota
	AuthAPIKeyHeader
	AuthBearer
)

// Config holds the configuration for the HTTP client.
type Config struct {
	// Connector nombre usado en los errores
	Connector string

	// BaseURL se antepone a las rutas relativas
	BaseURL string

	// Timeout por petición. Default: 30 seconds
	Timeout time.Duration

	// UserAgent header. Default: DefaultUserAgent
	UserAgent string

	APIKey string
	Auth   AuthScheme

	// Transport permite inyectar un RoundTripper (tests)
	Transport http.RoundTripper
}

// Client wraps http.Client with auth and error classification.
type Client struct {
	httpClient *http.Client
	logger     logx.Logger
	config     Config
}

// New creates a new HTTP client with the given configuration.
func New(config Config, logger logx.Logger) *Client {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.UserAgent == "" {
		config.UserAgent = DefaultUserAgent
	}
	if config.APIKey != "" && config.Auth == AuthNone {
		config.Auth = AuthAPIKeyHeader
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	return &Client{
		httpClient: &http.Client{Timeout: config.Timeout, Transport: config.Transport},
		logger:     logger.With("component", "httpclient", "connector", config.Connector),
		config:     config,
	}
}

// URL resuelve path contra BaseURL; las URL absolutas se respetan.
func (c *Client) URL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.config.BaseURL + path
}

// Do performs a request and returns the response only for 2xx/3xx codes.
// Network failures come back transient; statuses are mapped by errors.FromStatus.
// Context cancellation is returned unchanged.
func (c *Client) Do(ctx context.Context, method, path string, body io.Reader, headers map[string]string) (*http.Response, error) {
	url := c.URL(path)
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, errors.Permanent(c.config.Connector, errors.Wrapf(err, "build request %s %s", method, url))
	}

	req.Header.Set("User-Agent", c.config.UserAgent)
	switch c.config.Auth {
	case AuthAPIKeyHeader:
		req.Header.Set("X-API-Key", c.config.APIKey)
	case AuthBearer:
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.Debug("http request failed", "method", method, "url", url, "error", err.Error(), "duration_ms", elapsed.Milliseconds())
		return nil, errors.Transient(c.config.Connector, err)
	}

	c.logger.Debug("http response", "method", method, "url", url, "status", resp.StatusCode, "duration_ms", elapsed.Milliseconds())

	if err := errors.FromStatus(c.config.Connector, resp.StatusCode); err != nil {
		drain(resp)
		return nil, err
	}
	return resp, nil
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string, headers map[string]string) (*http.Response, error) {
	return c.Do(ctx, http.MethodGet, path, nil, headers)
}

// GetBytes hace GET y devuelve el cuerpo completo.
func (c *Client) GetBytes(ctx context.Context, path string, headers map[string]string) ([]byte, error) {
	resp, err := c.Get(ctx, path, headers)
	if err != nil {
		return nil, err
	}
	return ReadBody(resp)
}

// GetJSON hace GET y decodifica el cuerpo en out. Un cuerpo que no es JSON
// válido es un error de normalización, no de conexión.
// Devuelve también el cuerpo crudo para archivarlo.
func (c *Client) GetJSON(ctx context.Context, path string, out any) (json.RawMessage, error) {
	return c.GetJSONWithHeaders(ctx, path, nil, out)
}

// GetJSONWithHeaders es GetJSON con cabeceras adicionales.
func (c *Client) GetJSONWithHeaders(ctx context.Context, path string, headers map[string]string, out any) (json.RawMessage, error) {
	h := map[string]string{"Accept": "application/json"}
	for k, v := range headers {
		h[k] = v
	}
	body, err := c.GetBytes(ctx, path, h)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return nil, errors.Wrapf(errors.ErrNormalization, "decode %s: %v", c.URL(path), err)
	}
	return json.RawMessage(body), nil
}

// ReadBody reads the response body and closes it.
func ReadBody(resp *http.Response) ([]byte, error) {
	if resp == nil {
		return nil, errors.New("response is nil")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}
	return body, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}

// String returns a human-readable representation of the client configuration.
func (c *Client) String() string {
	return fmt.Sprintf("HTTPClient{connector=%s, base=%s, timeout=%s}", c.config.Connector, c.config.BaseURL, c.config.Timeout)
}
