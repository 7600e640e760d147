package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/updown-rounds/internal/gateway"
	"github.com/radieske/updown-rounds/internal/shared/config"
	"github.com/radieske/updown-rounds/internal/shared/logger"
	"github.com/radieske/updown-rounds/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "api-gateway"
	}
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	h, err := gateway.New(log, gateway.Targets{Bets: cfg.BetServiceURL, Scheduler: cfg.SchedulerURL})
	if err != nil {
		log.Fatal("gateway targets", zap.Error(err))
	}

	msrv := metrics.StartMetricsServer(log, cfg.MetricsPort, nil)
	defer msrv.Close()

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("api-gateway listening",
			zap.String("addr", srv.Addr),
			zap.String("bets", cfg.BetServiceURL),
			zap.String("scheduler", cfg.SchedulerURL),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("gateway failed", zap.Error(err))
			cancel()
		}
	}()

	<-ctx.Done()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}
