package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/shx815/simple-openhands/internal/domain/jobs"
	"github.com/shx815/simple-openhands/internal/infrastructure/resilience"
	"github.com/shx815/simple-openhands/internal/infrastructure/tracing"
	"github.com/shx815/simple-openhands/internal/shared/types"
)

// HeaderAPIKey carries the session API key
const HeaderAPIKey = "X-Session-API-Key"

// Options configures a Client
type Options struct {
	BaseURL string
	APIKey  string
	// Timeout bounds one HTTP exchange; it must exceed the command timeout.
	Timeout time.Duration
	// RateLimit caps requests per second; zero means unlimited.
	RateLimit float64
	// DialRetries is how often a refused connection is retried.
	DialRetries int
}

// DefaultOptions returns options for a local server
func DefaultOptions() Options {
	return Options{
		BaseURL:     DefaultURL,
		Timeout:     10 * time.Minute,
		DialRetries: 3,
	}
}

// APIError is a non-2xx answer from the server
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Detail)
}

// Client talks to the runtime API with rate limiting and a circuit breaker
type Client struct {
	Resty   *resty.Client
	Limiter *rate.Limiter
	Breaker *resilience.Breaker
	Mu      sync.RWMutex
}

// New creates a client for opts.BaseURL
func New(opts Options) *Client {
	defaults := DefaultOptions()
	if opts.BaseURL == "" {
		opts.BaseURL = defaults.BaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}

	// Only refused connections are retried; a retried action would run twice.
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.DialRetries
	retryClient.RetryWaitMin = 200 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second
	retryClient.CheckRetry = retryDialErrors
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.Logger = nil

	restyClient := resty.NewWithClient(retryClient.StandardClient())
	restyClient.
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetHeader("User-Agent", "ohrun/"+types.Version).
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal)
	if opts.APIKey != "" {
		restyClient.SetHeader(HeaderAPIKey, opts.APIKey)
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), max(1, int(opts.RateLimit)))
	}

	breaker := resilience.New("runtime-api", resilience.Settings{
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return apiErr.Status < http.StatusInternalServerError
			}
			return err == nil
		},
	})

	return &Client{
		Resty:   restyClient,
		Limiter: limiter,
		Breaker: breaker,
	}
}

func retryDialErrors(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	var opErr *net.OpError
	if err != nil && errors.As(err, &opErr) && opErr.Op == "dial" {
		return true, nil
	}
	return false, nil
}

// Request creates a new request after the breaker and rate limiter agree.
// The trace carried by ctx is propagated.
func (c *Client) Request(ctx context.Context) (*resty.Request, error) {
	if c.Breaker.State() == resilience.StateOpen {
		return nil, resilience.ErrCircuitOpen
	}
	if err := c.Limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	c.Mu.RLock()
	req := c.Resty.R().SetContext(ctx)
	c.Mu.RUnlock()

	tracing.Inject(ctx, req.Header)
	return req, nil
}

// Send issues one request through the breaker and returns the response
// whatever its status. Status errors count against the breaker only when
// they are server faults.
func (c *Client) Send(ctx context.Context, method, path string, body interface{}) (*resty.Response, error) {
	req, err := c.Request(ctx)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.SetBody(body)
	}

	var resp *resty.Response
	err = c.Breaker.Do(func() error {
		var err error
		resp, err = req.Execute(method, path)
		if err != nil {
			return err
		}
		if resp.IsError() {
			return &APIError{Status: resp.StatusCode(), Detail: errorDetail(resp.Body())}
		}
		return nil
	})
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return resp, nil
	}
	return resp, err
}

// do sends one request and decodes a 2xx body into out
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	resp, err := c.Send(ctx, method, path, body)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return &APIError{Status: resp.StatusCode(), Detail: errorDetail(resp.Body())}
	}
	if out == nil {
		return nil
	}
	if err := sonic.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errorDetail pulls the message out of an error body
func errorDetail(body []byte) string {
	var e struct {
		Detail  string `json:"detail"`
		Error   string `json:"error"`
		Content string `json:"content"`
	}
	if err := sonic.Unmarshal(body, &e); err == nil {
		switch {
		case e.Content != "":
			return e.Content
		case e.Detail != "":
			return e.Detail
		case e.Error != "":
			return e.Error
		}
	}
	return strings.TrimSpace(string(body))
}

// RunRequest builds the request body of a run action
func RunRequest(args types.ActionArgs) types.ActionRequest {
	return types.ActionRequest{Action: types.Action{Action: types.ActionRun, Args: args}}
}

// Run executes a run action
func (c *Client) Run(ctx context.Context, args types.ActionArgs) (*types.RunObservation, error) {
	var obs types.RunObservation
	if err := c.do(ctx, http.MethodPost, "/execute_action", RunRequest(args), &obs); err != nil {
		return nil, err
	}
	return &obs, nil
}

// ServerInfo returns the server's runtime context as decoded JSON
func (c *Client) ServerInfo(ctx context.Context) (map[string]interface{}, error) {
	out := map[string]interface{}{}
	if err := c.do(ctx, http.MethodGet, "/server_info", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Reset replaces the server's shell session
func (c *Client) Reset(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/reset", nil, nil)
}

// Alive reports the server's liveness
func (c *Client) Alive(ctx context.Context) (*types.AliveResponse, error) {
	var out types.AliveResponse
	if err := c.do(ctx, http.MethodGet, "/alive", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Job fetches one job
func (c *Client) Job(ctx context.Context, id int) (*jobs.Job, error) {
	var out jobs.Job
	if err := c.do(ctx, http.MethodGet, "/jobs/"+strconv.Itoa(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// BreakerState returns the current circuit breaker state
func (c *Client) BreakerState() resilience.State {
	return c.Breaker.State()
}
