package server_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/RomainDECOSTER/scoutquest/internal/registry"
	"github.com/RomainDECOSTER/scoutquest/internal/registry/eventbus"
	"github.com/RomainDECOSTER/scoutquest/internal/registry/memory"
	"github.com/RomainDECOSTER/scoutquest/pkg/config"
	"github.com/RomainDECOSTER/scoutquest/pkg/server"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type ServerSuite struct {
	suite.Suite
	ts  *httptest.Server
	cat *memory.Catalog
}

func (s *ServerSuite) SetupTest() {
	bus := eventbus.New()
	s.cat = memory.New(bus)

	srv, err := server.New(s.cat, bus, server.Options{
		Server: config.ServerConfig{EnableCORS: true, CORSOrigins: []string{"*"}},
	})
	require.NoError(s.T(), err)

	s.ts = httptest.NewServer(srv.Router())
}

func (s *ServerSuite) TearDownTest() {
	s.ts.Close()
}

func (s *ServerSuite) TestRegisterThenDiscover() {
	body, _ := json.Marshal(map[string]any{
		"service_name": "test-service",
		"host":         "localhost",
		"port":         3000,
	})
	resp, err := http.Post(s.ts.URL+"/api/v1/services", "application/json", bytes.NewReader(body))
	require.NoError(s.T(), err)
	s.Equal(http.StatusCreated, resp.StatusCode)

	var inst registry.Instance
	require.NoError(s.T(), json.NewDecoder(resp.Body).Decode(&inst))
	s.Equal("test-service", inst.ServiceName)
	s.Equal(registry.StatusUp, inst.Status)

	discResp, err := http.Get(s.ts.URL + "/api/v1/discovery/test-service")
	require.NoError(s.T(), err)
	var instances []*registry.Instance
	require.NoError(s.T(), json.NewDecoder(discResp.Body).Decode(&instances))
	s.Require().Len(instances, 1)
	s.Equal(inst.ID, instances[0].ID)
}

func (s *ServerSuite) TestHeartbeatRecovery() {
	body, _ := json.Marshal(map[string]any{"service_name": "api", "host": "h", "port": 1})
	resp, _ := http.Post(s.ts.URL+"/api/v1/services", "application/json", bytes.NewReader(body))
	var inst registry.Instance
	json.NewDecoder(resp.Body).Decode(&inst)

	statusBody, _ := json.Marshal(map[string]string{"status": "Down"})
	req, _ := http.NewRequest(http.MethodPut, s.ts.URL+"/api/v1/services/api/instances/"+inst.ID+"/status", bytes.NewReader(statusBody))
	putResp, err := http.DefaultClient.Do(req)
	require.NoError(s.T(), err)
	s.Equal(http.StatusOK, putResp.StatusCode)

	hbResp, err := http.Post(s.ts.URL+"/api/v1/services/api/instances/"+inst.ID+"/heartbeat", "application/json", nil)
	require.NoError(s.T(), err)
	s.Equal(http.StatusOK, hbResp.StatusCode)

	getResp, _ := http.Get(s.ts.URL + "/api/v1/services/api")
	var svc registry.Service
	json.NewDecoder(getResp.Body).Decode(&svc)
	s.Require().Len(svc.Instances, 1)
	s.Equal(registry.StatusUp, svc.Instances[0].Status)
}

func (s *ServerSuite) TestDiscoveryOf404Service() {
	resp, err := http.Get(s.ts.URL + "/api/v1/discovery/nonexistent")
	require.NoError(s.T(), err)
	s.Equal(http.StatusOK, resp.StatusCode)
	var instances []*registry.Instance
	json.NewDecoder(resp.Body).Decode(&instances)
	s.Empty(instances)
}

func (s *ServerSuite) TestHealthEndpoint() {
	resp, err := http.Get(s.ts.URL + "/health")
	require.NoError(s.T(), err)
	s.Equal(http.StatusOK, resp.StatusCode)
}

func TestServerSuite(t *testing.T) {
	suite.Run(t, new(ServerSuite))
}
