package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/RomainDECOSTER/scoutquest/internal/registry"
	"github.com/RomainDECOSTER/scoutquest/pkg/logger"
)

// RegisterOptions is the optional part of a registration request.
type RegisterOptions struct {
	Secure      bool
	Metadata    map[string]string
	Tags        []string
	HealthCheck *registry.HealthCheckSpec
}

// Register performs the POST-register handshake and, on success,
// starts the background heartbeat loop and returns a Handle the caller
// must eventually pass to Deregister.
func (c *Client) Register(ctx context.Context, serviceName, host string, port int, opts RegisterOptions) (*Handle, error) {
	body, err := json.Marshal(registry.RegisterRequest{
		ServiceName: serviceName,
		Host:        host,
		Port:        port,
		Secure:      opts.Secure,
		Metadata:    opts.Metadata,
		Tags:        opts.Tags,
		HealthCheck: opts.HealthCheck,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.discoveryURL+"/api/v1/services", bytes.NewReader(body))
	if err != nil {
		return nil, &NetworkError{Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Cause: err}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RegistrationFailedError{Status: resp.StatusCode, Body: string(respBody)}
	}

	var inst registry.Instance
	if err := json.Unmarshal(respBody, &inst); err != nil {
		return nil, err
	}

	logger.L().InfoContext(ctx, "registered with registry", "service", serviceName, "instance_id", inst.ID)

	handle := newHandle(c, &inst)
	c.startHeartbeat(handle)
	return handle, nil
}

// Deregister stops the handle's heartbeat task and issues the DELETE
// to the registry. Missing-id at the registry is not an error.
func (c *Client) Deregister(ctx context.Context, h *Handle) error {
	h.stopHeartbeat()

	inst := h.Instance()
	path := c.discoveryURL + "/api/v1/services/" + inst.ServiceName + "/instances/" + inst.ID

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return &NetworkError{Cause: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &NetworkError{Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusNotFound {
		logger.L().WarnContext(ctx, "deregistration returned unexpected status", "status", resp.StatusCode)
	}

	h.markDeregistered()
	return nil
}
