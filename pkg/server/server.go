// Package server wires the registry's domain layer to an HTTP surface:
// routing, CORS, optional API-key and CIDR middleware, TLS termination,
// the static dashboard, and a placeholder real-time event channel.
package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/RomainDECOSTER/scoutquest/internal/registry"
	"github.com/RomainDECOSTER/scoutquest/internal/registry/eventbus"
	"github.com/RomainDECOSTER/scoutquest/internal/registry/loadbalancer"
	"github.com/RomainDECOSTER/scoutquest/pkg/config"
	"github.com/RomainDECOSTER/scoutquest/pkg/logger"
	"github.com/RomainDECOSTER/scoutquest/pkg/validator"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Options configures a new Server. Server.APIKey is optional; a blank value
// disables the static API-key check entirely. TLS is optional; when nil
// the server listens in plaintext.
type Options struct {
	Server  config.ServerConfig
	Network config.NetworkConfig
	TLS     *tls.Config
	TLSMeta config.TLSConfig
}

// Server is the registry's HTTP boundary. It owns no domain state of
// its own; every handler delegates to the wrapped registry.Registry.
type Server struct {
	reg         registry.Registry
	bus         *eventbus.Bus
	lb          *loadbalancer.LoadBalancer
	validate    *validator.Validator
	router      chi.Router
	opts        Options
	httpSrv     *http.Server
	redirectSrv *http.Server
}

// New builds a Server ready to ListenAndServe. Returns an error if the
// CIDR middleware configuration is invalid.
func New(reg registry.Registry, bus *eventbus.Bus, opts Options) (*Server, error) {
	ipMW, err := newIPRestriction(opts.Network)
	if err != nil {
		return nil, err
	}

	s := &Server{
		reg:      reg,
		bus:      bus,
		lb:       loadbalancer.New(),
		validate: validator.New(),
		opts:     opts,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors(opts.Server.EnableCORS, opts.Server.CORSOrigins))
	r.Use(ipMW.Middleware)
	r.Use(apiKeyAuth(opts.Server.APIKey))

	s.mountRoutes(r)
	s.router = r

	port := opts.Server.Port
	if port <= 0 {
		port = 8080
	}
	s.httpSrv = &http.Server{
		Addr:              opts.Server.Host + ":" + strconv.Itoa(port),
		Handler:           otelhttp.NewHandler(r, "scoutquest-server"),
		ReadHeaderTimeout: 10 * time.Second,
		TLSConfig:         opts.TLS,
	}

	if opts.TLS != nil && opts.TLSMeta.RedirectHTTP {
		httpPort := opts.TLSMeta.HTTPPort
		if httpPort <= 0 {
			httpPort = 8081
		}
		redirectAddr := opts.Server.Host + ":" + strconv.Itoa(httpPort)
		s.redirectSrv = &http.Server{
			Addr:              redirectAddr,
			Handler:           redirectToHTTPS(port),
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	return s, nil
}

func redirectToHTTPS(tlsPort int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := r.Host
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}
		target := fmt.Sprintf("https://%s:%d%s", host, tlsPort, r.URL.RequestURI())
		http.Redirect(w, r, target, http.StatusMovedPermanently)
	})
}

// Router exposes the underlying chi.Router, primarily for tests that
// want to drive the HTTP surface without a real listener.
func (s *Server) Router() chi.Router {
	return s.router
}

// ListenAndServe blocks serving HTTP until ctx is cancelled, then
// performs a graceful shutdown.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 2)
	go func() {
		logger.L().InfoContext(ctx, "registry server listening", "addr", s.httpSrv.Addr, "tls", s.httpSrv.TLSConfig != nil)
		var err error
		if s.httpSrv.TLSConfig != nil {
			err = s.httpSrv.ListenAndServeTLS("", "")
		} else {
			err = s.httpSrv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	if s.redirectSrv != nil {
		go func() {
			logger.L().InfoContext(ctx, "http redirect listener listening", "addr", s.redirectSrv.Addr)
			if err := s.redirectSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
				return
			}
			errCh <- nil
		}()
	}

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if s.redirectSrv != nil {
			_ = s.redirectSrv.Shutdown(shutdownCtx)
		}
		return s.httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger.L().InfoContext(r.Context(), "request",
			"method", r.Method, "path", r.URL.Path, "status", ww.Status(), "duration", time.Since(start))
	})
}
