package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"ironnas/backend/irond/internal/config"
	"ironnas/backend/irond/internal/operations"
	"ironnas/backend/irond/internal/pools"
	"ironnas/backend/irond/internal/poolsvc"
	"ironnas/backend/irond/internal/scrub"
	"ironnas/backend/irond/internal/server"
)

// shutdownTimeout bounds how long in-flight requests may drain on SIGTERM.
const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.FromEnv()
	logger := server.Logger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := pools.NewStore(cfg.StateDir)
	info := pools.NewInfoService(*logger, store)
	manager := operations.NewManager(*logger, store, operations.Options{
		SettleDelay:   cfg.SettleDelay,
		MdadmConfPath: filepath.Join(cfg.EtcDir, "mdadm", "mdadm.conf"),
	})
	svc := poolsvc.New(*logger, store, info, manager)

	cleaner := operations.NewCleaner(*logger, manager)
	cleaner.Interval = cfg.CleanupInterval
	cleaner.StaleAfter = cfg.StaleAfter
	cleaner.CompletedRetention = cfg.CompletedRetention
	cleaner.FailedRetention = cfg.FailedRetention
	go cleaner.Run(ctx)

	sched := scrub.NewScheduler(*logger, scrub.LoadSchedules(filepath.Join(cfg.EtcDir, "irond", "schedules.yaml")))
	if err := sched.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("scrub scheduler")
	}
	defer sched.Stop()

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: server.NewRouter(cfg, svc)}

	go func() {
		logger.Info().Msgf("irond listening on http://%s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server exited")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
