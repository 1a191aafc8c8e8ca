package health_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/RomainDECOSTER/scoutquest/internal/registry"
	"github.com/RomainDECOSTER/scoutquest/internal/registry/eventbus"
	"github.com/RomainDECOSTER/scoutquest/internal/registry/health"
	"github.com/RomainDECOSTER/scoutquest/internal/registry/memory"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type CheckerSuite struct {
	suite.Suite
}

func (s *CheckerSuite) TestProbeAppliesFailureResult() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx := context.Background()
	bus := eventbus.New()
	cat := memory.New(bus)

	inst, err := cat.Register(ctx, registry.RegisterRequest{
		ServiceName: "orders",
		Host:        "127.0.0.1",
		Port:        1,
		HealthCheck: &registry.HealthCheckSpec{
			URL:            srv.URL,
			TimeoutSeconds: 2,
			Method:         http.MethodGet,
			ExpectedStatus: http.StatusOK,
		},
	})
	require.NoError(s.T(), err)

	checker := health.New(cat, health.Config{
		ProbeInterval:        50 * time.Millisecond,
		ReapInterval:         time.Hour,
		MaxConcurrentProbes:  2,
	})

	runCtx, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancel()
	checker.Run(runCtx)

	svc, err := cat.GetService(ctx, "orders")
	require.NoError(s.T(), err)
	require.Len(s.T(), svc.Instances, 1)
	s.Equal(registry.StatusDown, svc.Instances[0].Status)
	_ = inst
}

func (s *CheckerSuite) TestReapRemovesStaleInstance() {
	ctx := context.Background()
	bus := eventbus.New()
	cat := memory.New(bus)

	inst, err := cat.Register(ctx, registry.RegisterRequest{
		ServiceName: "orders", Host: "127.0.0.1", Port: 1,
	})
	require.NoError(s.T(), err)

	_, err = cat.UpdateStatus(ctx, inst.ID, registry.StatusUp)
	require.NoError(s.T(), err)

	checker := health.New(cat, health.Config{
		ProbeInterval:  time.Hour,
		ReapInterval:   50 * time.Millisecond,
		StaleThreshold: 1 * time.Nanosecond,
	})

	runCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	checker.Run(runCtx)

	_, err = cat.GetService(ctx, "orders")
	s.ErrorIs(err, registry.ErrServiceNotFound)
}

func TestCheckerSuite(t *testing.T) {
	suite.Run(t, new(CheckerSuite))
}
