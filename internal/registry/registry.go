package registry

import "context"

// Registry is the catalog's mutation and query surface. The lifecycle
// manager, heartbeat receiver, active health checker, reaper, and query
// layer described by the spec are all callers of this single interface;
// internal/registry/memory is its sole implementation.
//
// Every mutation is all-or-nothing relative to both the catalog and the
// event it emits: either the whole change is visible and the event fired,
// or nothing observable happened.
type Registry interface {
	// Register adds a fresh instance with a registry-assigned ID and
	// status Up, creating its service if this is the first instance.
	Register(ctx context.Context, req RegisterRequest) (*Instance, error)

	// Deregister removes an instance. Idempotent: returns false if the
	// id is already absent. Removes the owning service too if this was
	// its last instance.
	Deregister(ctx context.Context, instanceID string) (bool, error)

	// Heartbeat touches last_heartbeat and, if the instance was not Up,
	// recovers it to Up. Returns false if the id is unknown.
	Heartbeat(ctx context.Context, instanceID string) (bool, error)

	// UpdateStatus is the administrative override: unconditionally sets
	// status and last_status_change regardless of current state.
	UpdateStatus(ctx context.Context, instanceID string, status Status) (bool, error)

	// ApplyHealthResult is the active health checker's path into the
	// lifecycle manager. It transitions only on edge changes and is a
	// no-op within the same logical health state.
	ApplyHealthResult(ctx context.Context, instanceID string, healthy bool) error

	// ListAllServices returns every known service.
	ListAllServices(ctx context.Context) ([]*Service, error)

	// GetService returns a single service by name, or ErrServiceNotFound.
	GetService(ctx context.Context, name string) (*Service, error)

	// DeregisterService removes every instance of a service.
	DeregisterService(ctx context.Context, name string) error

	// GetServiceInstances applies the healthy/tags/limit filter chain
	// described by the spec's query layer, in that order.
	GetServiceInstances(ctx context.Context, serviceName string, query DiscoveryQuery) ([]*Instance, error)

	// GetServicesByTag matches on each service's founding tag set.
	GetServicesByTag(ctx context.Context, tag string) ([]*Service, error)

	// AllInstances returns every instance across every service, used by
	// the active health checker and reaper to enumerate probe targets.
	AllInstances(ctx context.Context) ([]*Instance, error)

	// Stats returns aggregate counts for the /health and /metrics
	// surfaces.
	Stats(ctx context.Context) Stats
}

// Stats are the aggregate counters exposed over /health and /metrics.
type Stats struct {
	TotalServices     int   `json:"total_services"`
	TotalInstances    int   `json:"total_instances"`
	HealthyInstances  int   `json:"healthy_instances"`
	StartTimeUnix     int64 `json:"start_time"`
	UptimeSeconds     int64 `json:"uptime_seconds"`
}
