// Package health runs the two independent background sweeps that keep
// the catalog's liveness view honest: an active prober that calls each
// instance's declared health-check endpoint, and a reaper that removes
// instances whose heartbeat has gone stale.
package health

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RomainDECOSTER/scoutquest/internal/registry"
	"github.com/RomainDECOSTER/scoutquest/pkg/client/rest"
	"github.com/RomainDECOSTER/scoutquest/pkg/concurrency"
	"github.com/RomainDECOSTER/scoutquest/pkg/logger"
)

// tickGuard makes a ticker loop single-shot: tryStart fails if the
// previous tick is still in flight, so ticks never stack.
type tickGuard struct {
	running atomic.Bool
}

func (g *tickGuard) tryStart() bool { return g.running.CompareAndSwap(false, true) }
func (g *tickGuard) finish()        { g.running.Store(false) }

// Config controls both cadences and the prober's worker pool size.
type Config struct {
	// ProbeInterval is the active health-check cadence. Default 30s.
	ProbeInterval time.Duration
	// ReapInterval is the reaper sweep cadence. Default 5m.
	ReapInterval time.Duration
	// StaleThreshold is the oldest permitted now-last_heartbeat gap
	// before the reaper removes an instance. Default 5m.
	StaleThreshold time.Duration
	// MaxConcurrentProbes bounds the worker pool used to fan out
	// probes within a single tick. Default 16.
	MaxConcurrentProbes int
}

func (c Config) withDefaults() Config {
	if c.ProbeInterval <= 0 {
		c.ProbeInterval = 30 * time.Second
	}
	if c.ReapInterval <= 0 {
		c.ReapInterval = 5 * time.Minute
	}
	if c.StaleThreshold <= 0 {
		c.StaleThreshold = 5 * time.Minute
	}
	if c.MaxConcurrentProbes <= 0 {
		c.MaxConcurrentProbes = 16
	}
	return c
}

// Checker owns the active-probe ticker and the reaper ticker. Each tick
// is single-shot: if the previous tick is still running when the next
// fires, the new one is skipped rather than stacking concurrent sweeps.
type Checker struct {
	cfg      Config
	registry registry.Registry
	client   *rest.Client

	probing tickGuard
	reaping tickGuard
}

// New creates a Checker driving registry through probes and reaps.
func New(reg registry.Registry, cfg Config) *Checker {
	cfg = cfg.withDefaults()
	// The probe client retries once (retryablehttp's default policy retries
	// a connection error or a 5xx response) plus a
	// circuit breaker (pkg/servicemesh/circuitbreaker, via pkg/client/rest):
	// a target whose health endpoint keeps erroring trips the breaker so a
	// sweep doesn't keep paying the full dial+timeout cost probe after
	// probe. This is distinct from the agent's request-level linear
	// backoff: whatever the transport retries, each probe yields a single
	// pass-or-fail result.
	probeClient := rest.New(rest.Config{
		Timeout:                 10 * time.Second,
		Retries:                 1,
		CircuitBreakerEnabled:   true,
		CircuitBreakerThreshold: 5,
		CircuitBreakerTimeout:   30 * time.Second,
	})

	return &Checker{
		cfg:      cfg,
		registry: reg,
		client:   probeClient,
	}
}

// Run blocks until ctx is cancelled, driving both tickers concurrently,
// and returns only once both loops have exited, so a sweep in flight at
// cancellation has applied its results by then.
func (c *Checker) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	concurrency.SafeGo(ctx, func() { defer wg.Done(); c.runProbeLoop(ctx) })
	concurrency.SafeGo(ctx, func() { defer wg.Done(); c.runReapLoop(ctx) })
	<-ctx.Done()
	wg.Wait()
}

func (c *Checker) runProbeLoop(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !c.probing.tryStart() {
				logger.L().WarnContext(ctx, "skipping health probe tick, previous tick still running")
				continue
			}
			c.probeOnce(ctx)
			c.probing.finish()
		}
	}
}

func (c *Checker) runReapLoop(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !c.reaping.tryStart() {
				logger.L().WarnContext(ctx, "skipping reap tick, previous tick still running")
				continue
			}
			c.reapOnce(ctx)
			c.reaping.finish()
		}
	}
}

func (c *Checker) probeOnce(ctx context.Context) {
	instances, err := c.registry.AllInstances(ctx)
	if err != nil {
		logger.L().ErrorContext(ctx, "health probe: failed to enumerate instances", "error", err)
		return
	}

	targets := make([]*registry.Instance, 0, len(instances))
	for _, inst := range instances {
		if inst.HealthCheck != nil {
			targets = append(targets, inst)
		}
	}
	if len(targets) == 0 {
		return
	}

	// A fresh pool every tick: WorkerPool.Stop closes its task queue, so
	// reusing one pool across ticks would panic on the second Submit.
	pool := concurrency.NewWorkerPool(c.cfg.MaxConcurrentProbes, c.cfg.MaxConcurrentProbes*4)
	pool.Start(ctx)

	for _, inst := range targets {
		inst := inst
		pool.Submit(func(taskCtx context.Context) {
			healthy := c.probe(taskCtx, inst)
			if err := c.registry.ApplyHealthResult(taskCtx, inst.ID, healthy); err != nil {
				logger.L().ErrorContext(taskCtx, "failed to apply health result", "instance_id", inst.ID, "error", err)
			}
		})
	}

	pool.Stop()
}

func (c *Checker) probe(ctx context.Context, inst *registry.Instance) bool {
	spec := inst.HealthCheck
	timeout := time.Duration(spec.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	method := spec.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(reqCtx, method, spec.URL, nil)
	if err != nil {
		logger.L().WarnContext(ctx, "health probe: invalid request", "instance_id", inst.ID, "error", err)
		return false
	}
	for k, v := range spec.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		logger.L().DebugContext(ctx, "health probe failed", "instance_id", inst.ID, "error", err)
		return false
	}
	defer resp.Body.Close()

	expected := spec.ExpectedStatus
	if expected == 0 {
		expected = http.StatusOK
	}
	return resp.StatusCode == expected
}

func (c *Checker) reapOnce(ctx context.Context) {
	instances, err := c.registry.AllInstances(ctx)
	if err != nil {
		logger.L().ErrorContext(ctx, "reaper: failed to enumerate instances", "error", err)
		return
	}

	now := time.Now()
	for _, inst := range instances {
		if now.Sub(inst.LastHeartbeat) <= c.cfg.StaleThreshold {
			continue
		}
		if _, err := c.registry.Deregister(ctx, inst.ID); err != nil {
			logger.L().ErrorContext(ctx, "reaper: failed to deregister stale instance", "instance_id", inst.ID, "error", err)
			continue
		}
		logger.L().InfoContext(ctx, "reaper removed stale instance", "instance_id", inst.ID, "service", inst.ServiceName)
	}
}
