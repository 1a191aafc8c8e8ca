// Package registry defines the service-discovery catalog: the domain
// types, the mutation/query interface every backend implements, and the
// sentinel errors and observability decorator shared by all of them.
//
// The only backend in this repository is internal/registry/memory — the
// registry is pure in-memory by design (see spec Non-goals: no durable
// storage, no multi-replica consensus).
package registry

import "time"

// Status is the lifecycle state of a registered instance.
type Status string

const (
	StatusUp           Status = "Up"
	StatusDown         Status = "Down"
	StatusStarting     Status = "Starting"
	StatusStopping     Status = "Stopping"
	StatusOutOfService Status = "OutOfService"
	StatusUnknown      Status = "Unknown"
)

// Strategy is a load-balancing strategy token. Wire-stable: do not rename.
type Strategy string

const (
	StrategyRandom           Strategy = "Random"
	StrategyRoundRobin       Strategy = "RoundRobin"
	StrategyLeastConnections Strategy = "LeastConnections"
	StrategyWeightedRandom   Strategy = "WeightedRandom"
	StrategyHealthyOnly      Strategy = "HealthyOnly"
)

// EventKind identifies the kind of change a RegistryEvent describes.
type EventKind string

const (
	EventServiceRegistered    EventKind = "ServiceRegistered"
	EventInstanceRegistered   EventKind = "InstanceRegistered"
	EventServiceDeregistered  EventKind = "ServiceDeregistered"
	EventInstanceDeregistered EventKind = "InstanceDeregistered"
	EventInstanceStatusChanged EventKind = "InstanceStatusChanged"
	EventHealthCheckFailed    EventKind = "HealthCheckFailed"
	EventHealthCheckRecovered EventKind = "HealthCheckRecovered"
)

// HealthCheckSpec configures an active health-check probe for an
// instance. Immutable once attached at registration.
type HealthCheckSpec struct {
	URL             string            `json:"url"`
	IntervalSeconds int               `json:"interval_seconds"`
	TimeoutSeconds  int               `json:"timeout_seconds"`
	Method          string            `json:"method"`
	ExpectedStatus  int               `json:"expected_status"`
	Headers         map[string]string `json:"headers,omitempty"`
}

// Instance is a single running endpoint of a named service.
type Instance struct {
	ID                string            `json:"id"`
	ServiceName       string            `json:"service_name"`
	Host              string            `json:"host"`
	Port              int               `json:"port"`
	Secure            bool              `json:"secure"`
	Status            Status            `json:"status"`
	Metadata          map[string]string `json:"metadata"`
	Tags              []string          `json:"tags"`
	HealthCheck       *HealthCheckSpec  `json:"health_check,omitempty"`
	RegisteredAt      time.Time         `json:"registered_at"`
	LastHeartbeat     time.Time         `json:"last_heartbeat"`
	LastStatusChange  time.Time         `json:"last_status_change"`
}

// IsHealthy reports whether the instance is the only status considered
// healthy by every load-balancing "healthy" filter in this system.
func (i *Instance) IsHealthy() bool {
	return i.Status == StatusUp
}

// Clone returns a deep-enough copy of the instance for safe return from
// the catalog (callers must never observe a mutation racing a read).
func (i *Instance) Clone() *Instance {
	if i == nil {
		return nil
	}
	c := *i
	if i.Metadata != nil {
		c.Metadata = make(map[string]string, len(i.Metadata))
		for k, v := range i.Metadata {
			c.Metadata[k] = v
		}
	}
	if i.Tags != nil {
		c.Tags = append([]string(nil), i.Tags...)
	}
	if i.HealthCheck != nil {
		hc := *i.HealthCheck
		c.HealthCheck = &hc
	}
	return &c
}

// Service is the named set of equivalent instances offering the same
// contract.
type Service struct {
	Name      string    `json:"name"`
	Instances []*Instance `json:"instances"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RegistryEvent is a typed notification of a catalog state change,
// published on the event bus. Never persisted, never replayed.
type RegistryEvent struct {
	Kind        EventKind      `json:"event_type"`
	ServiceName string         `json:"service_name"`
	InstanceID  string         `json:"instance_id,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
	Detail      map[string]any `json:"details,omitempty"`
}

// RegisterRequest is the input to Register.
type RegisterRequest struct {
	ServiceName string            `json:"service_name" validate:"required"`
	Host        string            `json:"host" validate:"required"`
	Port        int               `json:"port" validate:"required,min=1,max=65535"`
	Secure      bool              `json:"secure"`
	Metadata    map[string]string `json:"metadata"`
	Tags        []string          `json:"tags"`
	HealthCheck *HealthCheckSpec  `json:"health_check"`
}

// DiscoveryQuery filters a GetServiceInstances / ListInstances read.
type DiscoveryQuery struct {
	// HealthyOnly defaults to true when nil.
	HealthyOnly *bool
	Tags        []string
	Limit       int
}

// HealthyOnlyOrDefault reports the effective healthy-only filter,
// defaulting to true when unspecified.
func (q DiscoveryQuery) HealthyOnlyOrDefault() bool {
	if q.HealthyOnly == nil {
		return true
	}
	return *q.HealthyOnly
}
