// Package loadbalancer picks one instance from a candidate list per a
// fixed strategy enumeration. It is stateless except for a round-robin
// cursor and never touches the catalog directly.
package loadbalancer

import (
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/RomainDECOSTER/scoutquest/internal/registry"
)

// LoadBalancer selects one instance from a slice per registry.Strategy.
type LoadBalancer struct {
	// roundRobinCounters holds one cursor per service name (string ->
	// *atomic.Uint64), so interleaved requests for different services
	// never perturb each other's rotation.
	roundRobinCounters sync.Map
}

// New creates a LoadBalancer with a fresh round-robin cursor.
func New() *LoadBalancer {
	return &LoadBalancer{}
}

// Select picks one instance from instances per strategy.
//
// Filtering rule shared by every strategy except HealthyOnly: if any Up
// instances exist, operate over that subset; otherwise fall back to the
// full candidate list so the caller still gets a best-effort answer.
// HealthyOnly never falls back.
func (lb *LoadBalancer) Select(instances []*registry.Instance, strategy registry.Strategy) (*registry.Instance, error) {
	if len(instances) == 0 {
		return nil, registry.ErrNoInstances
	}

	var healthy []*registry.Instance
	for _, inst := range instances {
		if inst.IsHealthy() {
			healthy = append(healthy, inst)
		}
	}

	if strategy == registry.StrategyHealthyOnly {
		if len(healthy) == 0 {
			return nil, registry.NoHealthyInstances(instances[0].ServiceName)
		}
		return healthy[0], nil
	}

	target := instances
	if len(healthy) > 0 {
		target = healthy
	}

	switch strategy {
	case registry.StrategyRandom, registry.StrategyWeightedRandom:
		// WeightedRandom is reserved: weights are not threaded through
		// yet, so it degrades to uniform random.
		return target[rand.Intn(len(target))], nil
	case registry.StrategyRoundRobin:
		counter := lb.counterFor(target[0].ServiceName)
		idx := counter.Add(1) - 1 // pre-increment value: first pick is index 0
		return target[idx%uint64(len(target))], nil
	case registry.StrategyLeastConnections:
		// Reserved: connection-count telemetry is not tracked anywhere
		// in this system, so this degrades to first candidate.
		return target[0], nil
	default:
		return target[rand.Intn(len(target))], nil
	}
}

// counterFor returns the round-robin cursor for serviceName, creating one
// on first use.
func (lb *LoadBalancer) counterFor(serviceName string) *atomic.Uint64 {
	v, _ := lb.roundRobinCounters.LoadOrStore(serviceName, new(atomic.Uint64))
	return v.(*atomic.Uint64)
}
