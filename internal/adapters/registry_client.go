package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/cenk/backoff"
	"github.com/rs/dnscache"
	"github.com/rs/zerolog/log"
	circuit "github.com/rubyist/circuitbreaker"

	"dependency-metrics/internal/shared"
)

const defaultHTTPTimeout = 30 * time.Second
const defaultHTTPRetries = 3
const defaultHTTPRetryDelay = 200 * time.Millisecond
const maxHTTPRetryDelay = 5 * time.Second
const breakerThreshold = 5

var errRetryable = errors.New("retryable registry response")

type httpRetryConfig struct {
	timeout   time.Duration
	retries   int
	baseDelay time.Duration
}

func normalizeHTTPConfig(timeoutSec int, retries int, delayMs int) httpRetryConfig {
	timeout := time.Duration(timeoutSec) * time.Second
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	retryCount := retries
	if retryCount <= 0 {
		retryCount = defaultHTTPRetries
	}
	baseDelay := time.Duration(delayMs) * time.Millisecond
	if baseDelay <= 0 {
		baseDelay = defaultHTTPRetryDelay
	}
	return httpRetryConfig{
		timeout:   timeout,
		retries:   retryCount,
		baseDelay: baseDelay,
	}
}

// RegistryClient issues JSON GETs against package registries. Transient
// failures are retried with exponential backoff; a per-host circuit breaker
// stops hammering a registry that keeps failing.
type RegistryClient struct {
	client    *http.Client
	cfg       httpRetryConfig
	userAgent string
	breakers  map[string]*circuit.Breaker
	mu        sync.RWMutex
}

type RegistryClientOption func(*RegistryClient)

// WithHTTPClient replaces the DNS-caching client, mostly for tests.
func WithHTTPClient(client *http.Client) RegistryClientOption {
	return func(c *RegistryClient) {
		c.client = client
	}
}

func WithUserAgent(ua string) RegistryClientOption {
	return func(c *RegistryClient) {
		c.userAgent = ua
	}
}

func NewRegistryClient(timeoutSec int, retries int, delayMs int, opts ...RegistryClientOption) *RegistryClient {
	c := &RegistryClient{
		cfg:       normalizeHTTPConfig(timeoutSec, retries, delayMs),
		userAgent: "dependency-metrics",
		breakers:  map[string]*circuit.Breaker{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.client == nil {
		c.client = newCachingHTTPClient(c.cfg.timeout)
	}
	return c
}

func newCachingHTTPClient(timeout time.Duration) *http.Client {
	resolver := &dnscache.Resolver{}
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			resolver.Refresh(true)
		}
	}()
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				host, port, err := net.SplitHostPort(addr)
				if err != nil {
					return nil, err
				}
				ips, err := resolver.LookupHost(ctx, host)
				if err != nil {
					return nil, err
				}
				for _, ip := range ips {
					conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
					if err == nil {
						return conn, nil
					}
				}
				return nil, fmt.Errorf("failed to dial any resolved IP for %s", host)
			},
			MaxIdleConns:        64,
			MaxIdleConnsPerHost: 16,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}

func (c *RegistryClient) breaker(host string) *circuit.Breaker {
	c.mu.RLock()
	breaker, ok := c.breakers[host]
	c.mu.RUnlock()
	if ok {
		return breaker
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if breaker, ok := c.breakers[host]; ok {
		return breaker
	}
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 30 * time.Second
	expBackoff.MaxInterval = 5 * time.Minute
	expBackoff.Reset()
	breaker = circuit.NewBreakerWithOptions(&circuit.Options{
		BackOff:    expBackoff,
		ShouldTrip: circuit.ThresholdTripFunc(breakerThreshold),
	})
	c.breakers[host] = breaker
	return breaker
}

// GetJSON decodes the document at rawURL into out. A 404 is reported as
// CodeNotFound and never counts against the breaker.
func (c *RegistryClient) GetJSON(ctx context.Context, rawURL string, out any) error {
	host := registryHost(rawURL)
	breaker := c.breaker(host)
	if !breaker.Ready() {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("registry %s unavailable, circuit open", host))
	}

	var body []byte
	notFound := false
	err := breaker.Call(func() error {
		payload, missing, err := c.fetchWithRetry(ctx, rawURL)
		if err != nil {
			return err
		}
		body = payload
		notFound = missing
		return nil
	}, 0)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("request to %s failed", rawURL)).
			WithCause(err)
	}
	if notFound {
		return errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("not found: %s", rawURL))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("invalid JSON from %s", rawURL)).
			WithCause(err)
	}
	return nil
}

func (c *RegistryClient) fetchWithRetry(ctx context.Context, rawURL string) ([]byte, bool, error) {
	var body []byte
	notFound := false
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.cfg.baseDelay
	policy.MaxInterval = maxHTTPRetryDelay
	policy.MaxElapsedTime = 0
	operation := func() error {
		payload, status, err := c.doRequest(ctx, rawURL)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		switch {
		case status == http.StatusNotFound:
			notFound = true
			return nil
		case status == http.StatusTooManyRequests || status >= http.StatusInternalServerError:
			return fmt.Errorf("%w: %v", errRetryable, shared.HTTPStatusError(status, rawURL))
		case status < 200 || status >= 300:
			return backoff.Permanent(shared.HTTPStatusError(status, rawURL))
		}
		body = payload
		return nil
	}
	notify := func(err error, wait time.Duration) {
		log.Warn().Err(err).Str("url", rawURL).Dur("retry_in", wait).Msg("registry request failed, retrying")
	}
	retries := uint64(c.cfg.retries - 1)
	err := backoff.RetryNotify(operation, backoff.WithContext(backoff.WithMaxRetries(policy, retries), ctx), notify)
	if err != nil {
		return nil, false, err
	}
	return body, notFound, nil
}

func (c *RegistryClient) doRequest(ctx context.Context, rawURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, resp.StatusCode, nil
	}
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return payload, resp.StatusCode, nil
}

func registryHost(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return strings.TrimSpace(rawURL)
	}
	return parsed.Host
}
