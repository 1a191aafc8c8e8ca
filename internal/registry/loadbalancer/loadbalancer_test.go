package loadbalancer_test

import (
	"testing"

	"github.com/RomainDECOSTER/scoutquest/internal/registry"
	"github.com/RomainDECOSTER/scoutquest/internal/registry/loadbalancer"
	"github.com/stretchr/testify/suite"
)

type LoadBalancerSuite struct {
	suite.Suite
	lb *loadbalancer.LoadBalancer
}

func (s *LoadBalancerSuite) SetupTest() {
	s.lb = loadbalancer.New()
}

func instances(statuses ...registry.Status) []*registry.Instance {
	out := make([]*registry.Instance, len(statuses))
	for i, st := range statuses {
		out[i] = &registry.Instance{
			ID:          string(rune('a' + i)),
			ServiceName: "svc",
			Status:      st,
		}
	}
	return out
}

func (s *LoadBalancerSuite) TestEmptyInputIsInternalError() {
	_, err := s.lb.Select(nil, registry.StrategyRandom)
	s.ErrorIs(err, registry.ErrNoInstances)
}

func (s *LoadBalancerSuite) TestRandomPrefersHealthySubset() {
	set := instances(registry.StatusUp, registry.StatusDown, registry.StatusUp)
	for i := 0; i < 20; i++ {
		picked, err := s.lb.Select(set, registry.StrategyRandom)
		s.NoError(err)
		s.Equal(registry.StatusUp, picked.Status)
	}
}

func (s *LoadBalancerSuite) TestRandomFallsBackWhenNoneHealthy() {
	set := instances(registry.StatusDown, registry.StatusDown)
	picked, err := s.lb.Select(set, registry.StrategyRandom)
	s.NoError(err)
	s.Equal(registry.StatusDown, picked.Status)
}

func (s *LoadBalancerSuite) TestRoundRobinCycles() {
	set := instances(registry.StatusUp, registry.StatusUp, registry.StatusUp)
	seen := map[string]int{}
	for i := 0; i < 6; i++ {
		picked, err := s.lb.Select(set, registry.StrategyRoundRobin)
		s.NoError(err)
		seen[picked.ID]++
	}
	s.Len(seen, 3)
	for _, count := range seen {
		s.Equal(2, count)
	}
}

func (s *LoadBalancerSuite) TestRoundRobinFirstPickIsFirstCandidate() {
	set := instances(registry.StatusUp, registry.StatusUp)
	first, err := s.lb.Select(set, registry.StrategyRoundRobin)
	s.NoError(err)
	s.Equal(set[0].ID, first.ID)
	second, err := s.lb.Select(set, registry.StrategyRoundRobin)
	s.NoError(err)
	s.Equal(set[1].ID, second.ID)
	third, err := s.lb.Select(set, registry.StrategyRoundRobin)
	s.NoError(err)
	s.Equal(set[0].ID, third.ID)
}

func (s *LoadBalancerSuite) TestRoundRobinCountersAreIndependentPerService() {
	svcA := instances(registry.StatusUp, registry.StatusUp)
	svcB := []*registry.Instance{
		{ID: "x", ServiceName: "other", Status: registry.StatusUp},
		{ID: "y", ServiceName: "other", Status: registry.StatusUp},
	}

	pickedA, err := s.lb.Select(svcA, registry.StrategyRoundRobin)
	s.NoError(err)
	s.Equal(svcA[0].ID, pickedA.ID)

	pickedB, err := s.lb.Select(svcB, registry.StrategyRoundRobin)
	s.NoError(err)
	s.Equal(svcB[0].ID, pickedB.ID)
}

func (s *LoadBalancerSuite) TestHealthyOnlyErrorsWhenNoneUp() {
	set := instances(registry.StatusDown, registry.StatusOutOfService)
	_, err := s.lb.Select(set, registry.StrategyHealthyOnly)
	var noHealthy *registry.NoHealthyInstancesError
	s.ErrorAs(err, &noHealthy)
	s.Equal("svc", noHealthy.ServiceName)
}

func (s *LoadBalancerSuite) TestHealthyOnlyNeverFallsBack() {
	set := instances(registry.StatusUp, registry.StatusDown)
	picked, err := s.lb.Select(set, registry.StrategyHealthyOnly)
	s.NoError(err)
	s.Equal(registry.StatusUp, picked.Status)
}

func (s *LoadBalancerSuite) TestLeastConnectionsReturnsFirstCandidate() {
	set := instances(registry.StatusUp, registry.StatusUp)
	picked, err := s.lb.Select(set, registry.StrategyLeastConnections)
	s.NoError(err)
	s.Equal(set[0].ID, picked.ID)
}

func TestLoadBalancerSuite(t *testing.T) {
	suite.Run(t, new(LoadBalancerSuite))
}
