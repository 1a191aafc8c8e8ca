package agent

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/RomainDECOSTER/scoutquest/internal/registry"
	"github.com/RomainDECOSTER/scoutquest/pkg/logger"
)

// DiscoverOptions filters a Discover call.
type DiscoverOptions struct {
	HealthyOnly *bool
	Tags        []string
	Limit       int
}

// Discover issues a discovery query and returns the decoded instance
// list. A 404 is treated as "no instances" rather than an error.
func (c *Client) Discover(ctx context.Context, serviceName string, opts DiscoverOptions) ([]*registry.Instance, error) {
	u, err := url.Parse(c.discoveryURL + "/api/v1/discovery/" + serviceName)
	if err != nil {
		return nil, &InvalidURLError{URL: serviceName, Cause: err}
	}

	q := u.Query()
	healthyOnly := true
	if opts.HealthyOnly != nil {
		healthyOnly = *opts.HealthyOnly
	}
	q.Set("healthy_only", strconv.FormatBool(healthyOnly))
	if len(opts.Tags) > 0 {
		q.Set("tags", strings.Join(opts.Tags, ","))
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &NetworkError{Cause: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		logger.L().WarnContext(ctx, "discovery request failed", "service", serviceName, "status", resp.StatusCode)
		return nil, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var instances []*registry.Instance
	if err := json.Unmarshal(body, &instances); err != nil {
		return nil, err
	}
	return instances, nil
}

// GetServicesByTag returns every service carrying tag.
func (c *Client) GetServicesByTag(ctx context.Context, tag string) ([]*registry.Service, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.discoveryURL+"/api/v1/tags/"+tag+"/services", nil)
	if err != nil {
		return nil, &NetworkError{Cause: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.L().WarnContext(ctx, "tag search failed", "tag", tag, "status", resp.StatusCode)
		return nil, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var services []*registry.Service
	if err := json.Unmarshal(body, &services); err != nil {
		return nil, err
	}
	return services, nil
}
