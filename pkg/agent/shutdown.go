package agent

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RomainDECOSTER/scoutquest/pkg/logger"
)

const shutdownDeregisterTimeout = 5 * time.Second

// WaitForShutdownAndDeregister installs a SIGINT/SIGTERM handler and,
// on signal, deregisters h before returning. It blocks until the signal
// arrives or ctx is cancelled.
func WaitForShutdownAndDeregister(ctx context.Context, client *Client, h *Handle) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.L().Info("shutdown signal received, deregistering", "signal", sig.String())
	case <-ctx.Done():
	}

	deregCtx, cancel := context.WithTimeout(context.Background(), shutdownDeregisterTimeout)
	defer cancel()

	if err := client.Deregister(deregCtx, h); err != nil {
		logger.L().Error("deregistration on shutdown failed", "error", err)
	}
}
