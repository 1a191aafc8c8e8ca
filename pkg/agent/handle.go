package agent

import (
	"context"
	"runtime"
	"sync"

	"github.com/RomainDECOSTER/scoutquest/internal/registry"
	"github.com/RomainDECOSTER/scoutquest/pkg/logger"
)

// Handle is the opaque registered-instance identity returned by
// Register. It owns the background heartbeat task for as long as it
// lives, and is threaded explicitly through Heartbeat and Deregister —
// replacing the prototype's process-wide mutable registration state.
//
// A Handle that is garbage-collected without Deregister being called
// logs a warning, mirroring the source's drop-without-deregister
// warning, but never performs synchronous network I/O from a finalizer.
type Handle struct {
	client      *Client
	instance    *registry.Instance
	mu          sync.Mutex
	cancelBeat  context.CancelFunc
	deregistered bool
}

func newHandle(client *Client, instance *registry.Instance) *Handle {
	h := &Handle{client: client, instance: instance}
	runtime.SetFinalizer(h, (*Handle).finalize)
	return h
}

// Instance returns a copy of the registered instance as last known by
// the agent (not refreshed from the registry).
func (h *Handle) Instance() *registry.Instance {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.instance.Clone()
}

func (h *Handle) setCancel(cancel context.CancelFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cancelBeat = cancel
}

func (h *Handle) stopHeartbeat() {
	h.mu.Lock()
	cancel := h.cancelBeat
	h.cancelBeat = nil
	h.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (h *Handle) markDeregistered() {
	h.mu.Lock()
	h.deregistered = true
	h.mu.Unlock()
	runtime.SetFinalizer(h, nil)
}

func (h *Handle) finalize() {
	h.mu.Lock()
	deregistered := h.deregistered
	h.mu.Unlock()

	if !deregistered {
		logger.L().Warn("agent handle garbage-collected without Deregister being called",
			"service", h.instance.ServiceName, "instance_id", h.instance.ID)
	}
}
