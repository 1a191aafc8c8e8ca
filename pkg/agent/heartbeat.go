package agent

import (
	"context"
	"net/http"
	"time"

	"github.com/RomainDECOSTER/scoutquest/pkg/concurrency"
	"github.com/RomainDECOSTER/scoutquest/pkg/logger"
)

// startHeartbeat launches the background heartbeat loop for h. A failed
// tick is logged and retried next tick; it never tears down the loop.
// The loop terminates when h's heartbeat is explicitly cancelled by
// Deregister.
func (c *Client) startHeartbeat(h *Handle) {
	ctx, cancel := context.WithCancel(context.Background())
	h.setCancel(cancel)

	concurrency.SafeGo(ctx, func() {
		ticker := time.NewTicker(c.cfg.HeartbeatInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.heartbeatOnce(ctx, h)
			}
		}
	})
}

func (c *Client) heartbeatOnce(ctx context.Context, h *Handle) {
	inst := h.Instance()
	path := c.discoveryURL + "/api/v1/services/" + inst.ServiceName + "/instances/" + inst.ID + "/heartbeat"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, path, nil)
	if err != nil {
		logger.L().ErrorContext(ctx, "failed to build heartbeat request", "error", err)
		return
	}

	resp, err := c.http.Do(req)
	if err != nil {
		logger.L().WarnContext(ctx, "heartbeat failed", "instance_id", inst.ID, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.L().WarnContext(ctx, "heartbeat rejected", "instance_id", inst.ID, "status", resp.StatusCode)
	}
}
