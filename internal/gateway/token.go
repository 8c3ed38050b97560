package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	domainErrors "github.com/dawilly/clickpesa/internal/domain/errors"
	"github.com/dawilly/clickpesa/internal/infrastructure/observability"
)

// DefaultTokenTTL matches the gateway's one hour token validity.
const DefaultTokenTTL = time.Hour

// TokenSource yields a valid gateway auth token. The returned token
// includes the "Bearer " prefix, exactly as the gateway issues it.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate(ctx context.Context)
}

// Authenticator obtains and caches auth tokens for one credential pair.
// Tokens are cached per environment so sandbox and live never share a
// token, and concurrent cache misses collapse into a single refresh.
type Authenticator struct {
	http     *http.Client
	env      Environment
	baseURL  string
	apiKey   string
	clientID string
	cache    Cache
	ttl      time.Duration
	group    singleflight.Group
	metrics  *observability.Metrics
	logger   zerolog.Logger
}

// NewAuthenticator creates an Authenticator backed by the given cache.
func NewAuthenticator(env Environment, apiKey, clientID string, cache Cache, ttl time.Duration, metrics *observability.Metrics, logger zerolog.Logger) *Authenticator {
	if cache == nil {
		cache = NewMemoryCache()
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Authenticator{
		http:     &http.Client{Timeout: 30 * time.Second},
		env:      env,
		baseURL:  env.BaseURL(),
		apiKey:   apiKey,
		clientID: clientID,
		cache:    cache,
		ttl:      ttl,
		metrics:  metrics,
		logger:   logger,
	}
}

func (a *Authenticator) cacheKey() string {
	return "token:" + string(a.env)
}

// Token returns a cached token or fetches a fresh one. Concurrent callers
// missing the cache share one request to the gateway.
func (a *Authenticator) Token(ctx context.Context) (string, error) {
	if token, ok := a.cache.Get(ctx, a.cacheKey()); ok {
		return token, nil
	}

	v, err, _ := a.group.Do(a.cacheKey(), func() (any, error) {
		// Re-check under the flight; another caller may have refreshed.
		if token, ok := a.cache.Get(ctx, a.cacheKey()); ok {
			return token, nil
		}

		token, err := a.fetchToken(ctx)
		if err != nil {
			a.recordRefresh("failure")
			return "", err
		}

		a.cache.Put(ctx, a.cacheKey(), token, a.ttl)
		a.recordRefresh("success")
		a.logger.Debug().Str("environment", string(a.env)).Msg("gateway token refreshed")
		return token, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate drops the cached token so the next Token call refreshes.
func (a *Authenticator) Invalidate(ctx context.Context) {
	a.cache.Invalidate(ctx, a.cacheKey())
}

type tokenResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
	Message string `json:"message"`
}

func (a *Authenticator) fetchToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/third-parties/generate-token", nil)
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("api-key", a.apiKey)
	req.Header.Set("client-id", a.clientID)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domainErrors.ErrTokenUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("read token response: %w", err)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("%w: status %d", domainErrors.ErrTokenUnavailable, resp.StatusCode)
	}
	if !tr.Success || tr.Token == "" {
		if tr.Message != "" {
			return "", fmt.Errorf("%w: %s", domainErrors.ErrTokenUnavailable, tr.Message)
		}
		return "", fmt.Errorf("%w: status %d", domainErrors.ErrTokenUnavailable, resp.StatusCode)
	}

	return tr.Token, nil
}

func (a *Authenticator) recordRefresh(result string) {
	if a.metrics != nil {
		a.metrics.TokenRefreshes.WithLabelValues(string(a.env), result).Inc()
	}
}

// StaticTokenSource wraps a pre-issued token, mirroring the disbursement
// flow where the payouts client reuses a token minted elsewhere.
type StaticTokenSource struct {
	token string
}

func NewStaticTokenSource(token string) *StaticTokenSource {
	return &StaticTokenSource{token: token}
}

func (s *StaticTokenSource) Token(context.Context) (string, error) {
	if s.token == "" {
		return "", domainErrors.ErrTokenUnavailable
	}
	return s.token, nil
}

func (s *StaticTokenSource) Invalidate(context.Context) {}
