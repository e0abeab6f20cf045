package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/abbishal/OrcaStatLLM-Researcher/internal/config"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	err := newRootCmd(cfg, logger).ExecuteContext(ctx)
	stop()
	if err != nil {
		logger.Error("application stopped", "error", err)
		os.Exit(1)
	}
}
