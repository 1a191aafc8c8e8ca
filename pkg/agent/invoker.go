package agent

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/RomainDECOSTER/scoutquest/internal/registry"
	"github.com/RomainDECOSTER/scoutquest/pkg/logger"
)

// InvokeOptions configures a single Invoke call.
type InvokeOptions struct {
	Method   string
	Body     []byte
	Strategy registry.Strategy
}

// Invoke resolves serviceName, picks one instance per opts.Strategy,
// and performs an HTTP call against path. It makes at most RetryAttempts
// attempts in all, waiting RetryDelay * attempt after each failed one
// (linear backoff); every attempt re-resolves and re-picks, so a sick
// instance is avoided on retry once the registry view has updated.
func (c *Client) Invoke(ctx context.Context, serviceName, path string, opts InvokeOptions) (*http.Response, error) {
	if err := c.callSem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.callSem.Release(1)

	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}
	strategy := opts.Strategy
	if strategy == "" {
		strategy = registry.StrategyRandom
	}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.RetryAttempts; attempt++ {
		resp, err := c.tryInvoke(ctx, serviceName, path, method, opts.Body, strategy)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		logger.L().WarnContext(ctx, "invoke attempt failed",
			"service", serviceName, "path", path, "attempt", attempt, "max_attempts", c.cfg.RetryAttempts, "error", err)

		if attempt == c.cfg.RetryAttempts {
			break
		}

		delay := c.cfg.RetryDelay * time.Duration(attempt)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	logger.L().ErrorContext(ctx, "invoke exhausted retries", "service", serviceName, "path", path, "error", lastErr)
	return nil, lastErr
}

func (c *Client) tryInvoke(ctx context.Context, serviceName, path, method string, body []byte, strategy registry.Strategy) (*http.Response, error) {
	instances, err := c.Discover(ctx, serviceName, DiscoverOptions{})
	if err != nil {
		return nil, err
	}
	if len(instances) == 0 {
		return nil, &ServiceNotFoundError{ServiceName: serviceName}
	}

	inst, err := c.lb.Select(instances, strategy)
	if err != nil {
		return nil, err
	}

	target := instanceURL(inst, path)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, &NetworkError{Cause: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Cause: err}
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("http error %d calling %s: %s", resp.StatusCode, target, string(respBody))
	}
	return resp, nil
}

func instanceURL(inst *registry.Instance, path string) string {
	scheme := "http"
	if inst.Secure {
		scheme = "https"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return fmt.Sprintf("%s://%s:%d%s", scheme, inst.Host, inst.Port, path)
}
