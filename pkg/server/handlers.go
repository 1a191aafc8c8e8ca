package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/RomainDECOSTER/scoutquest/internal/registry"
	pkgerrors "github.com/RomainDECOSTER/scoutquest/pkg/errors"
	"github.com/RomainDECOSTER/scoutquest/pkg/logger"
	"github.com/go-chi/chi/v5"
	playvalidator "github.com/go-playground/validator/v10"
)

// validationMessage turns a go-playground/validator error into a short,
// field-by-field message instead of the library's default Go-syntax dump.
func validationMessage(err error) string {
	var fieldErrs playvalidator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return "invalid request"
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		parts = append(parts, fmt.Sprintf("%s failed %q validation", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

func (s *Server) mountRoutes(r chi.Router) {
	r.Get("/health", s.handleHealth)
	r.Get("/metrics", s.handleMetrics)
	s.mountDashboard(r)

	r.Route("/api/v1", func(api chi.Router) {
		api.Get("/events", s.handleEvents)
		api.Post("/services", s.handleRegister)
		api.Get("/services", s.handleListServices)
		api.Get("/services/{name}", s.handleGetService)
		api.Delete("/services/{name}", s.handleDeregisterService)
		api.Get("/services/{name}/instances", s.handleListInstances)
		api.Delete("/services/{name}/instances/{id}", s.handleDeregisterInstance)
		api.Post("/services/{name}/instances/{id}/heartbeat", s.handleHeartbeat)
		api.Put("/services/{name}/instances/{id}/status", s.handleUpdateStatus)
		api.Get("/services/{name}/tags", s.handleServiceTags)
		api.Get("/discovery/{name}", s.handleDiscover)
		api.Get("/discovery/{name}/load-balance", s.handleLoadBalance)
		api.Get("/tags/{tag}/services", s.handleServicesByTag)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := s.reg.Stats(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"status":            "up",
		"total_services":    stats.TotalServices,
		"total_instances":   stats.TotalInstances,
		"healthy_instances": stats.HealthyInstances,
		"uptime_seconds":    stats.UptimeSeconds,
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	stats := s.reg.Stats(r.Context())
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registry.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, pkgerrors.InvalidArgument("malformed request body", err))
		return
	}

	if err := s.validate.ValidateStruct(req); err != nil {
		writeError(w, r, pkgerrors.InvalidArgument(validationMessage(err), err))
		return
	}

	inst, err := s.reg.Register(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, inst)
}

func (s *Server) handleListServices(w http.ResponseWriter, r *http.Request) {
	services, err := s.reg.ListAllServices(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, services)
}

func (s *Server) handleGetService(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	svc, err := s.reg.GetService(r.Context(), name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, svc)
}

func (s *Server) handleDeregisterService(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.reg.DeregisterService(r.Context(), name); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListInstances(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	instances, err := s.reg.GetServiceInstances(r.Context(), name, parseDiscoveryQuery(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, instances)
}

func (s *Server) handleDeregisterInstance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ok, err := s.reg.Deregister(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !ok {
		writeError(w, r, pkgerrors.NotFound("instance not found", nil))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ok, err := s.reg.Heartbeat(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !ok {
		writeError(w, r, pkgerrors.NotFound("instance not found", nil))
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body struct {
		Status registry.Status `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, pkgerrors.InvalidArgument("malformed request body", err))
		return
	}

	ok, err := s.reg.UpdateStatus(r.Context(), id, body.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !ok {
		writeError(w, r, pkgerrors.NotFound("instance not found", nil))
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleServiceTags(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	svc, err := s.reg.GetService(r.Context(), name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, svc.Tags)
}

func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	instances, err := s.reg.GetServiceInstances(r.Context(), name, parseDiscoveryQuery(r))
	if err != nil {
		if errors.Is(err, registry.ErrServiceNotFound) {
			writeJSON(w, http.StatusOK, []*registry.Instance{})
			return
		}
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, instances)
}

func (s *Server) handleLoadBalance(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	strategy := registry.Strategy(r.URL.Query().Get("strategy"))
	if strategy == "" {
		strategy = registry.StrategyRoundRobin
	}

	healthyOnly := true
	instances, err := s.reg.GetServiceInstances(r.Context(), name, registry.DiscoveryQuery{HealthyOnly: &healthyOnly})
	if err != nil {
		writeError(w, r, err)
		return
	}

	inst, err := s.lb.Select(instances, strategy)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

func (s *Server) handleServicesByTag(w http.ResponseWriter, r *http.Request) {
	tag := chi.URLParam(r, "tag")
	services, err := s.reg.GetServicesByTag(r.Context(), tag)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, services)
}

func parseDiscoveryQuery(r *http.Request) registry.DiscoveryQuery {
	q := r.URL.Query()

	query := registry.DiscoveryQuery{}
	if raw := q.Get("healthy_only"); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			query.HealthyOnly = &v
		}
	}
	if raw := q.Get("tags"); raw != "" {
		query.Tags = strings.Split(raw, ",")
	}
	if raw := q.Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			query.Limit = v
		}
	}
	return query
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.L().Error("failed to encode response", "error", err)
	}
}

// handleEvents is a placeholder real-time channel: it streams the event
// bus as server-sent events so a caller can watch registry changes live
// instead of polling the discovery endpoints. One bus subscription per
// connection; closed on client disconnect.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, pkgerrors.Internal("streaming unsupported by this response writer", nil))
		return
	}

	sub := s.bus.Subscribe(r.Context())
	defer sub.Unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-sub.Events:
			if !ok {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				logger.L().Error("failed to marshal event for stream", "error", err)
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *pkgerrors.AppError
	if errors.As(err, &appErr) {
		writeJSON(w, appErr.HTTPStatus(), map[string]string{"error": appErr.Message})
		return
	}
	logger.L().ErrorContext(r.Context(), "unhandled error", "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}
