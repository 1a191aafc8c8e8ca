package memory_test

import (
	"context"
	"testing"

	"github.com/RomainDECOSTER/scoutquest/internal/registry"
	"github.com/RomainDECOSTER/scoutquest/internal/registry/eventbus"
	"github.com/RomainDECOSTER/scoutquest/internal/registry/memory"
	"github.com/stretchr/testify/suite"
)

type CatalogSuite struct {
	suite.Suite
	ctx context.Context
	bus *eventbus.Bus
	cat *memory.Catalog
}

func (s *CatalogSuite) SetupTest() {
	s.ctx = context.Background()
	s.bus = eventbus.New()
	s.cat = memory.New(s.bus)
}

func (s *CatalogSuite) register(name string) *registry.Instance {
	inst, err := s.cat.Register(s.ctx, registry.RegisterRequest{
		ServiceName: name,
		Host:        "127.0.0.1",
		Port:        8080,
		Tags:        []string{"team-a"},
	})
	s.Require().NoError(err)
	return inst
}

func (s *CatalogSuite) TestRegisterCreatesServiceAndEmitsEvents() {
	sub := s.bus.Subscribe(s.ctx)
	defer sub.Unsubscribe()

	inst := s.register("orders")
	s.NotEmpty(inst.ID)
	s.Equal(registry.StatusUp, inst.Status)

	evt := <-sub.Events
	s.Equal(registry.EventServiceRegistered, evt.Kind)
	s.Equal("orders", evt.ServiceName)
}

func (s *CatalogSuite) TestSecondInstanceEmitsInstanceRegistered() {
	sub := s.bus.Subscribe(s.ctx)
	defer sub.Unsubscribe()

	s.register("orders")
	<-sub.Events
	s.register("orders")
	evt := <-sub.Events
	s.Equal(registry.EventInstanceRegistered, evt.Kind)
}

func (s *CatalogSuite) TestTagsFrozenAtServiceCreation() {
	first, err := s.cat.Register(s.ctx, registry.RegisterRequest{
		ServiceName: "orders", Host: "h", Port: 1, Tags: []string{"v1"},
	})
	s.Require().NoError(err)
	_, err = s.cat.Register(s.ctx, registry.RegisterRequest{
		ServiceName: "orders", Host: "h", Port: 2, Tags: []string{"v2"},
	})
	s.Require().NoError(err)

	svc, err := s.cat.GetService(s.ctx, "orders")
	s.Require().NoError(err)
	s.Equal([]string{"v1"}, svc.Tags)
	s.Len(svc.Instances, 2)
	_ = first
}

func (s *CatalogSuite) TestDeregisterLastInstanceRemovesService() {
	inst := s.register("orders")

	ok, err := s.cat.Deregister(s.ctx, inst.ID)
	s.NoError(err)
	s.True(ok)

	_, err = s.cat.GetService(s.ctx, "orders")
	s.ErrorIs(err, registry.ErrServiceNotFound)
}

func (s *CatalogSuite) TestDeregisterUnknownIsFalseNotError() {
	ok, err := s.cat.Deregister(s.ctx, "nonexistent")
	s.NoError(err)
	s.False(ok)
}

func (s *CatalogSuite) TestHeartbeatRecoversDownInstance() {
	inst := s.register("orders")
	_, err := s.cat.UpdateStatus(s.ctx, inst.ID, registry.StatusDown)
	s.Require().NoError(err)

	ok, err := s.cat.Heartbeat(s.ctx, inst.ID)
	s.NoError(err)
	s.True(ok)

	svc, _ := s.cat.GetService(s.ctx, "orders")
	s.Equal(registry.StatusUp, svc.Instances[0].Status)
}

func (s *CatalogSuite) TestApplyHealthResultNoOpWithinSameState() {
	inst := s.register("orders")

	sub := s.bus.Subscribe(s.ctx)
	defer sub.Unsubscribe()

	err := s.cat.ApplyHealthResult(s.ctx, inst.ID, true)
	s.NoError(err)

	select {
	case evt := <-sub.Events:
		s.Fail("unexpected event", evt)
	default:
	}
}

func (s *CatalogSuite) TestApplyHealthResultTransitionsAndEmits() {
	inst := s.register("orders")

	sub := s.bus.Subscribe(s.ctx)
	defer sub.Unsubscribe()

	s.Require().NoError(s.cat.ApplyHealthResult(s.ctx, inst.ID, false))
	evt := <-sub.Events
	s.Equal(registry.EventHealthCheckFailed, evt.Kind)

	s.Require().NoError(s.cat.ApplyHealthResult(s.ctx, inst.ID, true))
	evt = <-sub.Events
	s.Equal(registry.EventHealthCheckRecovered, evt.Kind)
}

func (s *CatalogSuite) TestGetServiceInstancesDefaultsToHealthyOnly() {
	s.register("orders")
	second, err := s.cat.Register(s.ctx, registry.RegisterRequest{
		ServiceName: "orders", Host: "h2", Port: 2, Tags: []string{"team-b"},
	})
	s.Require().NoError(err)
	_, err = s.cat.UpdateStatus(s.ctx, second.ID, registry.StatusDown)
	s.Require().NoError(err)

	out, err := s.cat.GetServiceInstances(s.ctx, "orders", registry.DiscoveryQuery{})
	s.Require().NoError(err)
	s.Len(out, 1)
}

func TestCatalogSuite(t *testing.T) {
	suite.Run(t, new(CatalogSuite))
}
