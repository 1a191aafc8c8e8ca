package server

import (
	_ "embed"
	"net/http"

	"github.com/go-chi/chi/v5"
)

//go:embed dashboard.html
var dashboardHTML []byte

// mountDashboard serves the static operator dashboard at /. It is a
// thin read-only view over /api/v1/services; all interaction happens
// client-side via fetch.
func (s *Server) mountDashboard(r chi.Router) {
	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(dashboardHTML)
	})
}
