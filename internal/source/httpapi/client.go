package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/nhle/notification-sync/internal/source"
)

// backendName identifies this backend in AuthError values and logs.
const backendName = "http"

// ClientOptions tunes the HTTP client. Zero values pick defaults.
type ClientOptions struct {
	// RatePerSec caps outgoing requests. Zero disables the limiter.
	RatePerSec int

	// BreakerFailures is the consecutive failure count that opens the
	// circuit. Zero means 5.
	BreakerFailures int

	// BreakerCooldown is how long the circuit stays open. Zero means 30s.
	BreakerCooldown time.Duration

	// Timeout bounds a single HTTP exchange. Zero means 30s.
	Timeout time.Duration

	// MaxRetries is the number of retries after a 429. Zero means 3.
	MaxRetries int

	Logger zerolog.Logger
}

// Client is a thin HTTP client for the notification REST API.
// It handles Bearer token authentication, JSON marshaling, client-side
// rate limiting, a circuit breaker, and automatic retry with exponential
// backoff on HTTP 429.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	maxRetries int
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	logger     zerolog.Logger
}

// NewClient creates a new HTTP client. The baseURL is the API root
// (e.g., http://localhost:8080/api). An empty token sends no
// Authorization header.
func NewClient(baseURL, token string, opts ClientOptions) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.BreakerFailures <= 0 {
		opts.BreakerFailures = 5
	}
	if opts.BreakerCooldown <= 0 {
		opts.BreakerCooldown = 30 * time.Second
	}

	limit := rate.Inf
	burst := 1
	if opts.RatePerSec > 0 {
		limit = rate.Limit(opts.RatePerSec)
		burst = opts.RatePerSec
	}

	logger := opts.Logger.With().Str("comp", "httpapi").Logger()
	failures := uint32(opts.BreakerFailures)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "notifications-api",
		MaxRequests: 1,
		Timeout:     opts.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			// Only server-side and transport failures count against the API.
			return err == nil ||
				source.IsAuthError(err) ||
				errors.Is(err, context.Canceled) ||
				errors.Is(err, errClientStatus)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state")
		},
	})

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		maxRetries: opts.MaxRetries,
		limiter:    rate.NewLimiter(limit, burst),
		breaker:    breaker,
		logger:     logger,
	}
}

// errClientStatus marks non-auth 4xx responses.
var errClientStatus = errors.New("client error status")

// Get performs an HTTP GET request and returns the raw response body.
func (c *Client) Get(ctx context.Context, path string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

// Patch performs an HTTP PATCH request with a JSON body and unmarshals
// the JSON response into result.
func (c *Client) Patch(
	ctx context.Context,
	path string,
	body any,
	result any,
) error {
	respBody, err := c.do(ctx, http.MethodPatch, path, body)
	if err != nil {
		return err
	}
	if result == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("unmarshaling response from PATCH %s: %w", path, err)
	}
	return nil
}

// do runs one request through the circuit breaker.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	body any,
) ([]byte, error) {
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doWithRetry(ctx, method, path, body)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%s %s: %w", method, path, err)
		}
		return nil, err
	}
	return out.([]byte), nil
}

// doWithRetry builds the request, handles auth, rate limiting with
// exponential backoff, and status mapping.
func (c *Client) doWithRetry(
	ctx context.Context,
	method string,
	path string,
	body any,
) ([]byte, error) {
	url := c.baseURL + path

	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		payload = data
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for rate limiter: %w", err)
		}

		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}

		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("executing request %s %s: %w", method, path, err)
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("reading response body: %w", readErr)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			waitDuration := retryAfterDuration(resp, attempt)
			lastErr = fmt.Errorf("rate limited (429) on %s %s", method, path)
			c.logger.Debug().
				Str("path", path).
				Dur("wait", waitDuration).
				Int("attempt", attempt).
				Msg("rate limited, retrying")

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(waitDuration):
				continue
			}
		}

		if resp.StatusCode == http.StatusUnauthorized {
			return nil, &source.AuthError{
				Backend: backendName,
				Message: fmt.Sprintf("authentication failed (401): check the API token for %s", c.baseURL),
			}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			msg := string(respBody)
			var apiErr ErrorResponse
			if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Text() != "" {
				msg = apiErr.Text()
			}
			err := fmt.Errorf("unexpected status %d on %s %s: %s", resp.StatusCode, method, path, msg)
			if resp.StatusCode < 500 {
				err = fmt.Errorf("%w: %w", errClientStatus, err)
			}
			return nil, err
		}

		return respBody, nil
	}

	return nil, fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

// retryAfterDuration reads the Retry-After header and computes a wait
// duration. Falls back to exponential backoff if the header is missing.
func retryAfterDuration(resp *http.Response, attempt int) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}

	// Exponential backoff: 1s, 2s, 4s, ...
	backoff := time.Duration(1<<uint(attempt)) * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	return backoff
}
