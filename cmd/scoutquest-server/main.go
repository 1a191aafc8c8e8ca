// Command scoutquest-server runs the service registry: the in-memory
// catalog, event bus, active health checker, and the HTTP surface that
// fronts them.
package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/RomainDECOSTER/scoutquest/internal/registry"
	"github.com/RomainDECOSTER/scoutquest/internal/registry/eventbus"
	"github.com/RomainDECOSTER/scoutquest/internal/registry/health"
	"github.com/RomainDECOSTER/scoutquest/internal/registry/memory"
	"github.com/RomainDECOSTER/scoutquest/pkg/config"
	"github.com/RomainDECOSTER/scoutquest/pkg/logger"
	"github.com/RomainDECOSTER/scoutquest/pkg/server"
	"github.com/RomainDECOSTER/scoutquest/pkg/telemetry"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code: 0 on a clean shutdown, non-zero on
// any fatal initialization failure (config, TLS material, bind).
func run() int {
	var cfg config.Config
	if err := config.Load(&cfg); err != nil {
		// Logger isn't initialized yet; config failures go to stderr directly.
		println("scoutquest-server: failed to load configuration: " + err.Error())
		return 1
	}

	logFormat := "JSON"
	if cfg.Logging.Format == "pretty" {
		logFormat = "TEXT"
	}
	logger.Init(logger.Config{
		Level:  strings.ToUpper(cfg.Logging.Level),
		Format: logFormat,
	})
	log := logger.L()

	shutdownTracing, err := telemetry.Init(telemetry.Config{
		ServiceName: "scoutquest-server",
	})
	if err != nil {
		log.Warn("tracing disabled: failed to initialize telemetry", "error", err)
	} else {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownTracing(ctx)
		}()
	}

	bus := eventbus.New()
	catalog := memory.New(bus)
	reg := registry.NewInstrumented(catalog)

	checker := health.New(reg, health.Config{
		ProbeInterval:       time.Duration(cfg.HealthCheck.IntervalSeconds) * time.Second,
		StaleThreshold:      time.Duration(cfg.HealthCheck.TimeoutSeconds*cfg.HealthCheck.MaxFailures) * time.Second,
		MaxConcurrentProbes: cfg.HealthCheck.MaxConcurrentProbes,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go checker.Run(ctx)

	srvOpts := server.Options{
		Server:  cfg.Server,
		Network: cfg.Network,
	}

	if cfg.TLS.Enabled {
		tlsConf, err := server.LoadOrGenerateTLS(cfg.TLS)
		if err != nil {
			log.Error("failed to prepare tls material", "error", err)
			return 1
		}
		srvOpts.TLS = tlsConf
		srvOpts.TLSMeta = cfg.TLS
	}

	srv, err := server.New(reg, bus, srvOpts)
	if err != nil {
		log.Error("failed to build server", "error", err)
		return 1
	}

	log.Info("scoutquest-server starting",
		"host", cfg.Server.Host, "port", cfg.Server.Port, "tls", cfg.TLS.Enabled)

	if err := srv.ListenAndServe(ctx); err != nil {
		log.Error("server exited with error", "error", err)
		return 1
	}

	log.Info("scoutquest-server shut down cleanly")
	return 0
}

