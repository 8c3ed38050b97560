package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	domainErrors "github.com/dawilly/clickpesa/internal/domain/errors"
	"github.com/dawilly/clickpesa/internal/infrastructure/observability"
)

// Environment selects which ClickPesa endpoint set to call.
type Environment string

const (
	EnvironmentSandbox Environment = "sandbox"
	EnvironmentLive    Environment = "live"
)

// ParseEnvironment validates an environment name from configuration.
func ParseEnvironment(s string) (Environment, error) {
	switch Environment(s) {
	case EnvironmentSandbox, EnvironmentLive:
		return Environment(s), nil
	default:
		return "", fmt.Errorf("%w: %q", domainErrors.ErrInvalidEnvironment, s)
	}
}

// BaseURL returns the API root for the environment.
func (e Environment) BaseURL() string {
	if e == EnvironmentLive {
		return "https://api.clickpesa.com"
	}
	return "https://sandbox.clickpesa.com"
}

// maxResponseSize caps how much of a gateway response body is read.
const maxResponseSize = 1 << 20

// Result is the common outcome of every gateway operation. Gateway-reported
// failures (4xx, 5xx) and calls that never reached the gateway are both
// carried here rather than as Go errors; a Go error means the request could
// not even be built from its inputs.
type Result struct {
	Success    bool            `json:"-"`
	Message    string          `json:"message,omitempty"`
	StatusCode int             `json:"-"`
	Raw        json.RawMessage `json:"-"`
}

// resulter lets the shared call path fill in the embedded Result after
// decoding an operation-specific response type.
type resulter interface {
	setResult(statusCode int, raw []byte)
	setCallError(message string)
}

func (r *Result) setResult(statusCode int, raw []byte) {
	r.StatusCode = statusCode
	r.Success = statusCode >= 200 && statusCode < 300
	r.Raw = raw
}

// setCallError records a call that produced no gateway response at all.
// StatusCode stays zero so callers can tell it from an HTTP rejection.
func (r *Result) setCallError(message string) {
	r.Success = false
	r.Message = message
	r.StatusCode = 0
	r.Raw = nil
}

// errServerError marks a 5xx response inside the circuit breaker so it
// counts toward tripping while the body is still returned to the caller.
var errServerError = errors.New("gateway server error")

type httpResult struct {
	status int
	body   []byte
}

// client is the HTTP plumbing shared by the collections and payouts APIs.
type client struct {
	http    *http.Client
	baseURL string
	tokens  TokenSource
	breaker *gobreaker.CircuitBreaker[*httpResult]
	metrics *observability.Metrics
	logger  zerolog.Logger
}

func newClient(env Environment, tokens TokenSource, timeout time.Duration, metrics *observability.Metrics, logger zerolog.Logger) *client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &client{
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseURL: env.BaseURL(),
		tokens:  tokens,
		metrics: metrics,
		logger:  logger,
	}

	c.breaker = gobreaker.NewCircuitBreaker[*httpResult](gobreaker.Settings{
		Name:        "clickpesa-" + string(env),
		MaxRequests: 10,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 10 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).
				Str("from", from.String()).Str("to", to.String()).
				Msg("circuit breaker state changed")
			if metrics != nil {
				metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	})

	return c
}

// call performs one gateway operation. The response body is decoded into
// out regardless of HTTP status so gateway-side rejections surface as
// Result values; transport, token, and breaker failures surface the same
// way with a zero status code. A 401 triggers a single token refresh and
// retry.
func (c *client) call(ctx context.Context, operation, method, path string, body any, out resulter) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("marshal %s request: %w", operation, err)
		}
	}

	start := time.Now()
	res, err := c.roundTrip(ctx, method, path, payload)
	if res != nil && res.status == http.StatusUnauthorized {
		// Token likely expired server-side before our TTL; refresh once.
		c.tokens.Invalidate(ctx)
		res, err = c.roundTrip(ctx, method, path, payload)
	}
	c.observe(operation, start, res, err)

	if err != nil && !errors.Is(err, errServerError) {
		out.setCallError(err.Error())
		return nil
	}

	if len(res.body) > 0 {
		// Non-JSON bodies are kept raw; the status code still decides success.
		_ = json.Unmarshal(res.body, out)
	}
	out.setResult(res.status, res.body)
	return nil
}

func (c *client) roundTrip(ctx context.Context, method, path string, payload []byte) (*httpResult, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domainErrors.ErrTokenUnavailable, err)
	}

	return c.breaker.Execute(func() (*httpResult, error) {
		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
		if err != nil {
			return nil, err
		}
		// The gateway issues tokens with the "Bearer " prefix included.
		req.Header.Set("Authorization", token)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		if err != nil {
			return nil, err
		}

		res := &httpResult{status: resp.StatusCode, body: body}
		if resp.StatusCode >= 500 {
			return res, errServerError
		}
		return res, nil
	})
}

func (c *client) observe(operation string, start time.Time, res *httpResult, err error) {
	if c.metrics == nil {
		return
	}
	outcome := "success"
	switch {
	case err != nil && !errors.Is(err, errServerError):
		outcome = "error"
	case res != nil && res.status >= 400:
		outcome = "failure"
	}
	c.metrics.GatewayRequestsTotal.WithLabelValues(operation, outcome).Inc()
	c.metrics.GatewayRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
