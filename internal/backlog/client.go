// Package backlog provides a typed HTTP client for the Backlog v2 REST API.
package backlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultTimeout = 30 * time.Second
	apiPathPrefix  = "/api/v2"
	maxErrorBody   = 64 << 10
)

// Config holds Backlog client configuration.
type Config struct {
	// BaseURL is the space root, for example https://example.backlog.com.
	// A bare domain is accepted and gets an https scheme.
	BaseURL string
	// APIKey authenticates every request as the apiKey query parameter.
	APIKey string
	// Timeout is the per-request timeout. Defaults to 30s.
	Timeout time.Duration
	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// Client is the typed HTTP SDK for Backlog APIs.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	cfg     Config
}

// ErrorDetail is one entry of the Backlog error envelope.
type ErrorDetail struct {
	Message  string `json:"message"`
	Code     int    `json:"code"`
	MoreInfo string `json:"moreInfo,omitempty"`
}

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Errors     []ErrorDetail
}

// Error implements error.
func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	messages := make([]string, 0, len(e.Errors))
	for _, detail := range e.Errors {
		if msg := strings.TrimSpace(detail.Message); msg != "" {
			messages = append(messages, msg)
		}
	}
	if len(messages) == 0 {
		return fmt.Sprintf("backlog API returned status %d", e.StatusCode)
	}
	return strings.Join(messages, "; ")
}

// IsNotFound reports whether err is a 404 from the Backlog API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// New creates a new Backlog client.
func New(cfg Config) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, fmt.Errorf("client: BaseURL is required")
	}
	if !strings.Contains(baseURL, "://") {
		baseURL = "https://" + baseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("client: invalid BaseURL: %w", err)
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("client: APIKey is required")
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	cfg.BaseURL = baseURL

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		http:    httpClient,
		baseURL: baseURL,
		apiKey:  strings.TrimSpace(cfg.APIKey),
		cfg:     cfg,
	}, nil
}

// BaseURL returns the normalized space URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) post(ctx context.Context, path string, form url.Values, out any) error {
	return c.do(ctx, http.MethodPost, path, nil, form, out)
}

func (c *Client) patch(ctx context.Context, path string, form url.Values, out any) error {
	return c.do(ctx, http.MethodPatch, path, nil, form, out)
}

func (c *Client) delete(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, query, form url.Values, out any) error {
	params := url.Values{}
	for key, values := range query {
		params[key] = values
	}
	params.Set("apiKey", c.apiKey)
	target := c.baseURL + apiPathPrefix + path + "?" + params.Encode()

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var envelope struct {
		Errors []ErrorDetail `json:"errors"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && len(envelope.Errors) > 0 {
		apiErr.Errors = envelope.Errors
		return apiErr
	}
	if text := strings.TrimSpace(string(raw)); text != "" {
		apiErr.Errors = []ErrorDetail{{Message: text}}
	}
	return apiErr
}

func escapePath(segment string) string {
	return url.PathEscape(strings.TrimSpace(segment))
}

func setInt(values url.Values, key string, v int) {
	if v != 0 {
		values.Set(key, strconv.Itoa(v))
	}
}

func setString(values url.Values, key, v string) {
	if strings.TrimSpace(v) != "" {
		values.Set(key, v)
	}
}

func setBool(values url.Values, key string, v *bool) {
	if v != nil {
		values.Set(key, strconv.FormatBool(*v))
	}
}

func setFloat(values url.Values, key string, v *float64) {
	if v != nil {
		values.Set(key, strconv.FormatFloat(*v, 'f', -1, 64))
	}
}

func addInts(values url.Values, key string, ids []int) {
	for _, id := range ids {
		values.Add(key, strconv.Itoa(id))
	}
}

func mergeValues(dst, src url.Values) {
	for key, vs := range src {
		for _, v := range vs {
			dst.Add(key, v)
		}
	}
}
