package client

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/telekom/exception-subscriptions/pkg/api"
	"github.com/telekom/exception-subscriptions/pkg/event"
	"github.com/telekom/exception-subscriptions/pkg/notification"
	"github.com/telekom/exception-subscriptions/pkg/version"
)

type Client struct {
	rest      *resty.Client
	server    string
	token     string
	userAgent string
	retries   int
}

type Option func(*Client) error

func New(opts ...Option) (*Client, error) {
	c := &Client{
		rest:      resty.New().SetTimeout(30 * time.Second),
		userAgent: version.UserAgent(),
		retries:   2,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.server == "" {
		return nil, errors.New("server is required")
	}

	c.rest.
		SetBaseURL(c.server).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", c.userAgent).
		SetRetryCount(c.retries).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(retryPolicy)
	if c.token != "" {
		c.rest.SetAuthToken(c.token)
	}
	return c, nil
}

func WithServer(server string) Option {
	return func(c *Client) error {
		if server == "" {
			return errors.New("server is required")
		}
		parsed, err := url.Parse(server)
		if err != nil {
			return fmt.Errorf("invalid server: %w", err)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return fmt.Errorf("invalid server %q: scheme must be http or https", server)
		}
		c.server = strings.TrimSuffix(parsed.String(), "/")
		return nil
	}
}

func WithToken(token string) Option {
	return func(c *Client) error {
		c.token = token
		return nil
	}
}

func WithUserAgent(userAgent string) Option {
	return func(c *Client) error {
		c.userAgent = userAgent
		return nil
	}
}

// WithRetries sets how often idempotent failures (connection errors, 429, 5xx) are retried.
func WithRetries(n int) Option {
	return func(c *Client) error {
		if n < 0 {
			return errors.New("retries cannot be negative")
		}
		c.retries = n
		return nil
	}
}

func WithTLSConfig(caFile string, insecureSkipTLSVerify bool) Option {
	return func(c *Client) error {
		tlsConfig, err := loadTLSConfig(caFile, insecureSkipTLSVerify)
		if err != nil {
			return err
		}
		c.rest.SetTLSClientConfig(tlsConfig)
		return nil
	}
}

func loadTLSConfig(caFile string, insecure bool) (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: insecure} //nolint:gosec // user opt-in
	if caFile == "" {
		return tlsConfig, nil
	}
	data, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if ok := pool.AppendCertsFromPEM(data); !ok {
		return nil, errors.New("failed to parse CA file")
	}
	tlsConfig.RootCAs = pool
	return tlsConfig, nil
}

func retryPolicy(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
}

func subscriptionsPath(project string) string {
	return "/api/projects/" + url.PathEscape(project) + "/subscriptions"
}

// GetSubscriptions returns the stored subscriptions of project.
func (c *Client) GetSubscriptions(ctx context.Context, project string) (*api.SubscriptionsResponse, error) {
	var out api.SubscriptionsResponse
	if err := c.do(ctx, http.MethodGet, subscriptionsPath(project), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ApplySubscriptions replaces the subscriptions of project with text.
func (c *Client) ApplySubscriptions(ctx context.Context, project, text string) (*api.SubscriptionsResponse, error) {
	var out api.SubscriptionsResponse
	body := api.SubscriptionsRequest{Subscriptions: text}
	if err := c.do(ctx, http.MethodPut, subscriptionsPath(project), nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ValidateSubscriptions checks text on the server without storing it.
func (c *Client) ValidateSubscriptions(ctx context.Context, project, text string) (*api.ValidateResponse, error) {
	var out api.ValidateResponse
	body := api.SubscriptionsRequest{Subscriptions: text}
	if err := c.do(ctx, http.MethodPost, subscriptionsPath(project)+"/validate", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteSubscriptions(ctx context.Context, project string) error {
	return c.do(ctx, http.MethodDelete, subscriptionsPath(project), nil, nil, nil)
}

// Matches asks the server which addresses would be notified for culprit.
func (c *Client) Matches(ctx context.Context, project, culprit string) (*api.MatchesResponse, error) {
	var out api.MatchesResponse
	query := map[string]string{"culprit": culprit}
	if err := c.do(ctx, http.MethodGet, "/api/projects/"+url.PathEscape(project)+"/matches", query, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SendEvent posts env to the event hook.
func (c *Client) SendEvent(ctx context.Context, env event.Envelope) (*notification.Result, error) {
	var out notification.Result
	if err := c.do(ctx, http.MethodPost, "/api/events", nil, env, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Version(ctx context.Context) (*version.BuildInfo, error) {
	var out version.BuildInfo
	if err := c.do(ctx, http.MethodGet, "/api/version", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, query map[string]string, body any, out any) error {
	req := c.rest.R().SetContext(ctx)
	if query != nil {
		req.SetQueryParams(query)
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	if resp.IsError() {
		return decodeError(resp)
	}
	if out == nil || len(resp.Body()) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}

func decodeError(resp *resty.Response) error {
	var apiErr struct {
		Error   string `json:"error"`
		Details string `json:"details"`
		Line    int    `json:"line"`
		Text    string `json:"text"`
	}
	body := resp.Body()
	if len(body) > 0 {
		_ = json.Unmarshal(body, &apiErr)
	}
	msg := strings.TrimSpace(apiErr.Error)
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = resp.Status()
	}
	if apiErr.Details != "" {
		msg += ": " + apiErr.Details
	}
	return &HTTPError{StatusCode: resp.StatusCode(), Message: msg, Line: apiErr.Line}
}

type HTTPError struct {
	StatusCode int
	Message    string
	// Line is set for rejected subscription texts.
	Line int
}

func (e *HTTPError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("request failed (%d): line %d: %s", e.StatusCode, e.Line, e.Message)
	}
	return fmt.Sprintf("request failed (%d): %s", e.StatusCode, e.Message)
}
