// Package memory is the registry's sole catalog backend: a concurrent
// in-memory store of services and instances. Restart clears all state
// by design — there is no durable storage and no replication.
package memory

import (
	"context"
	"time"

	"github.com/RomainDECOSTER/scoutquest/internal/registry"
	"github.com/RomainDECOSTER/scoutquest/internal/registry/eventbus"
	"github.com/RomainDECOSTER/scoutquest/pkg/concurrency"
	"github.com/google/uuid"
)

// Catalog is the concurrent in-memory implementation of registry.Registry.
//
// A single SmartRWMutex guards both indices together so that a mutation
// and the event it produces are never observed apart: readers either see
// the whole pre-mutation state or the whole post-mutation state, never a
// torn view, and per-instance transitions are serialized against each
// other by the same lock.
type Catalog struct {
	mu        *concurrency.SmartRWMutex
	instances map[string]*registry.Instance // id -> instance
	services  map[string]*registry.Service  // name -> service
	bus       *eventbus.Bus
	startedAt time.Time
}

// New creates an empty catalog publishing events on bus.
func New(bus *eventbus.Bus) *Catalog {
	return &Catalog{
		mu:        concurrency.NewSmartRWMutex(concurrency.MutexConfig{Name: "registry-catalog"}),
		instances: make(map[string]*registry.Instance),
		services:  make(map[string]*registry.Service),
		bus:       bus,
		startedAt: time.Now(),
	}
}

func (c *Catalog) Register(ctx context.Context, req registry.RegisterRequest) (*registry.Instance, error) {
	if req.ServiceName == "" || req.Host == "" || req.Port < 1 || req.Port > 65535 {
		return nil, registry.ErrInvalidRequest
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	inst := &registry.Instance{
		ID:               uuid.NewString(),
		ServiceName:      req.ServiceName,
		Host:             req.Host,
		Port:             req.Port,
		Secure:           req.Secure,
		Status:           registry.StatusUp,
		Metadata:         req.Metadata,
		Tags:             req.Tags,
		HealthCheck:      req.HealthCheck,
		RegisteredAt:     now,
		LastHeartbeat:    now,
		LastStatusChange: now,
	}

	c.instances[inst.ID] = inst

	svc, existed := c.services[req.ServiceName]
	if !existed {
		svc = &registry.Service{
			Name:      req.ServiceName,
			Tags:      append([]string(nil), req.Tags...),
			CreatedAt: now,
			UpdatedAt: now,
		}
		c.services[req.ServiceName] = svc
	}
	svc.Instances = append(svc.Instances, inst)
	svc.UpdatedAt = now

	if existed {
		c.bus.Publish(ctx, registry.RegistryEvent{
			Kind:        registry.EventInstanceRegistered,
			ServiceName: req.ServiceName,
			InstanceID:  inst.ID,
			Timestamp:   now,
		})
	} else {
		c.bus.Publish(ctx, registry.RegistryEvent{
			Kind:        registry.EventServiceRegistered,
			ServiceName: req.ServiceName,
			InstanceID:  inst.ID,
			Timestamp:   now,
		})
	}

	return inst.Clone(), nil
}

func (c *Catalog) Deregister(ctx context.Context, instanceID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	inst, ok := c.instances[instanceID]
	if !ok {
		return false, nil
	}

	delete(c.instances, instanceID)

	svc := c.services[inst.ServiceName]
	if svc != nil {
		svc.Instances = removeInstance(svc.Instances, instanceID)
		svc.UpdatedAt = time.Now()
	}

	now := time.Now()
	if svc == nil || len(svc.Instances) == 0 {
		delete(c.services, inst.ServiceName)
		c.bus.Publish(ctx, registry.RegistryEvent{
			Kind:        registry.EventServiceDeregistered,
			ServiceName: inst.ServiceName,
			InstanceID:  instanceID,
			Timestamp:   now,
		})
	} else {
		c.bus.Publish(ctx, registry.RegistryEvent{
			Kind:        registry.EventInstanceDeregistered,
			ServiceName: inst.ServiceName,
			InstanceID:  instanceID,
			Timestamp:   now,
		})
	}

	return true, nil
}

func (c *Catalog) Heartbeat(ctx context.Context, instanceID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	inst, ok := c.instances[instanceID]
	if !ok {
		return false, nil
	}

	now := time.Now()
	inst.LastHeartbeat = now

	if inst.Status != registry.StatusUp {
		prev := inst.Status
		inst.Status = registry.StatusUp
		inst.LastStatusChange = now

		c.bus.Publish(ctx, registry.RegistryEvent{
			Kind:        registry.EventHealthCheckRecovered,
			ServiceName: inst.ServiceName,
			InstanceID:  instanceID,
			Timestamp:   now,
			Detail:      map[string]any{"previous_status": string(prev)},
		})
	}

	return true, nil
}

func (c *Catalog) UpdateStatus(ctx context.Context, instanceID string, status registry.Status) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	inst, ok := c.instances[instanceID]
	if !ok {
		return false, nil
	}

	prev := inst.Status
	now := time.Now()
	inst.Status = status
	inst.LastStatusChange = now

	c.bus.Publish(ctx, registry.RegistryEvent{
		Kind:        registry.EventInstanceStatusChanged,
		ServiceName: inst.ServiceName,
		InstanceID:  instanceID,
		Timestamp:   now,
		Detail: map[string]any{
			"previous_status": string(prev),
			"new_status":      string(status),
		},
	})

	return true, nil
}

func (c *Catalog) ApplyHealthResult(ctx context.Context, instanceID string, healthy bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	inst, ok := c.instances[instanceID]
	if !ok {
		return registry.ErrInstanceNotFound
	}

	wasUp := inst.Status == registry.StatusUp
	now := time.Now()

	switch {
	case wasUp && !healthy:
		inst.Status = registry.StatusDown
		inst.LastStatusChange = now
		c.bus.Publish(ctx, registry.RegistryEvent{
			Kind:        registry.EventHealthCheckFailed,
			ServiceName: inst.ServiceName,
			InstanceID:  instanceID,
			Timestamp:   now,
		})
	case !wasUp && healthy:
		prev := inst.Status
		inst.Status = registry.StatusUp
		inst.LastStatusChange = now
		c.bus.Publish(ctx, registry.RegistryEvent{
			Kind:        registry.EventHealthCheckRecovered,
			ServiceName: inst.ServiceName,
			InstanceID:  instanceID,
			Timestamp:   now,
			Detail:      map[string]any{"previous_status": string(prev)},
		})
	}
	// Same logical state: no-op, no event.

	return nil
}

func (c *Catalog) ListAllServices(ctx context.Context) ([]*registry.Service, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*registry.Service, 0, len(c.services))
	for _, svc := range c.services {
		out = append(out, cloneService(svc))
	}
	return out, nil
}

func (c *Catalog) GetService(ctx context.Context, name string) (*registry.Service, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	svc, ok := c.services[name]
	if !ok {
		return nil, registry.ErrServiceNotFound
	}
	return cloneService(svc), nil
}

func (c *Catalog) DeregisterService(ctx context.Context, name string) error {
	c.mu.Lock()
	svc, ok := c.services[name]
	if !ok {
		c.mu.Unlock()
		return registry.ErrServiceNotFound
	}
	ids := make([]string, len(svc.Instances))
	for i, inst := range svc.Instances {
		ids[i] = inst.ID
	}
	c.mu.Unlock()

	for _, id := range ids {
		if _, err := c.Deregister(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (c *Catalog) GetServiceInstances(ctx context.Context, serviceName string, query registry.DiscoveryQuery) ([]*registry.Instance, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	svc, ok := c.services[serviceName]
	if !ok {
		return nil, registry.ErrServiceNotFound
	}

	return filterInstances(svc.Instances, query), nil
}

func (c *Catalog) GetServicesByTag(ctx context.Context, tag string) ([]*registry.Service, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []*registry.Service
	for _, svc := range c.services {
		if hasTag(svc.Tags, tag) {
			out = append(out, cloneService(svc))
		}
	}
	return out, nil
}

func (c *Catalog) AllInstances(ctx context.Context) ([]*registry.Instance, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*registry.Instance, 0, len(c.instances))
	for _, inst := range c.instances {
		out = append(out, inst.Clone())
	}
	return out, nil
}

func (c *Catalog) Stats(ctx context.Context) registry.Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	healthy := 0
	for _, inst := range c.instances {
		if inst.IsHealthy() {
			healthy++
		}
	}

	return registry.Stats{
		TotalServices:    len(c.services),
		TotalInstances:   len(c.instances),
		HealthyInstances: healthy,
		StartTimeUnix:    c.startedAt.Unix(),
		UptimeSeconds:    int64(time.Since(c.startedAt).Seconds()),
	}
}

func filterInstances(instances []*registry.Instance, query registry.DiscoveryQuery) []*registry.Instance {
	out := make([]*registry.Instance, 0, len(instances))
	for _, inst := range instances {
		if query.HealthyOnlyOrDefault() && !inst.IsHealthy() {
			continue
		}
		if !hasAllTags(inst.Tags, query.Tags) {
			continue
		}
		out = append(out, inst.Clone())
	}
	if query.Limit > 0 && len(out) > query.Limit {
		out = out[:query.Limit]
	}
	return out
}

func hasAllTags(instanceTags, required []string) bool {
	for _, want := range required {
		if !hasTag(instanceTags, want) {
			return false
		}
	}
	return true
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

func removeInstance(instances []*registry.Instance, id string) []*registry.Instance {
	out := instances[:0]
	for _, inst := range instances {
		if inst.ID != id {
			out = append(out, inst)
		}
	}
	// Clear the tail: out shares instances' backing array, so without
	// this the slot(s) beyond the new length would keep the removed
	// instance reachable and unable to be collected.
	for i := len(out); i < len(instances); i++ {
		instances[i] = nil
	}
	return out
}

func cloneService(svc *registry.Service) *registry.Service {
	c := *svc
	c.Instances = make([]*registry.Instance, len(svc.Instances))
	for i, inst := range svc.Instances {
		c.Instances[i] = inst.Clone()
	}
	c.Tags = append([]string(nil), svc.Tags...)
	return &c
}

var _ registry.Registry = (*Catalog)(nil)
