// Package agent is the client-side companion to the registry: it
// registers this process as a service instance, heartbeats it in the
// background, resolves peer services, and load-balances outbound calls
// with linear-backoff retry.
package agent

import (
	"net/url"
	"strings"
	"time"

	"github.com/RomainDECOSTER/scoutquest/internal/registry/loadbalancer"
	"github.com/RomainDECOSTER/scoutquest/pkg/client/rest"
	"github.com/RomainDECOSTER/scoutquest/pkg/concurrency"
)

// Config configures a Client.
type Config struct {
	// DiscoveryURL is the registry's base URL, e.g. "http://localhost:8080".
	DiscoveryURL string

	// Timeout bounds every outbound HTTP call (registration, discovery,
	// heartbeat, peer invocation). Default 30s.
	Timeout time.Duration

	// RetryAttempts bounds Invoke's retry loop. Default 3.
	RetryAttempts int

	// RetryDelay is the base of the linear backoff: attempt N waits
	// RetryDelay * N. Default 1s.
	RetryDelay time.Duration

	// HeartbeatInterval is the background heartbeat cadence. Default 30s.
	HeartbeatInterval time.Duration

	// MaxConcurrentCalls bounds the number of in-flight Invoke calls this
	// Client will run at once; callers beyond the limit block until a
	// slot frees up. Default 8.
	MaxConcurrentCalls int64
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 1 * time.Second
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	if c.MaxConcurrentCalls <= 0 {
		c.MaxConcurrentCalls = 8
	}
	return c
}

// Client is the process-local service-discovery agent. Each successful
// Register returns an opaque *Handle the caller threads through
// Heartbeat's lifetime and Deregister — there is no process-wide mutable
// identity to get out of sync. Client itself does not limit how many
// instances are registered through it at the same time.
type Client struct {
	cfg          Config
	discoveryURL string
	http         *rest.Client
	lb           *loadbalancer.LoadBalancer
	callSem      *concurrency.Semaphore
}

// New creates a Client talking to discoveryURL. Returns InvalidURLError
// if discoveryURL cannot be parsed.
func New(cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()

	trimmed := strings.TrimRight(cfg.DiscoveryURL, "/")
	if _, err := url.Parse(trimmed); err != nil {
		return nil, &InvalidURLError{URL: cfg.DiscoveryURL, Cause: err}
	}

	restClient := rest.New(rest.Config{
		Timeout: cfg.Timeout,
		Retries: 0, // transport-level retry is disabled; Invoke owns retry semantics
		// The breaker guards repeated calls into a service whose
		// instances are all erroring, independent of Invoke's
		// per-call retry loop: it trips across calls, not within one.
		CircuitBreakerEnabled:   true,
		CircuitBreakerThreshold: 5,
		CircuitBreakerTimeout:   30 * time.Second,
	})

	return &Client{
		cfg:          cfg,
		discoveryURL: trimmed,
		http:         restClient,
		lb:           loadbalancer.New(),
		callSem:      concurrency.NewSemaphore(cfg.MaxConcurrentCalls),
	}, nil
}
