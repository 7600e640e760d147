package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	railsim "github.com/radieske/updown-rounds/internal/rail-simulator"
	"github.com/radieske/updown-rounds/internal/shared/config"
	"github.com/radieske/updown-rounds/internal/shared/logger"
	"github.com/radieske/updown-rounds/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "payment-rail-simulator"
	}
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid config", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Métricas Prometheus por resultado da transferência
	transfers := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rail_transfers_total",
		Help: "Transferências processadas por status",
	}, []string{"status"})
	prometheus.MustRegister(transfers)

	sim := railsim.NewServer(log, cfg.RailRejectRate.InexactFloat64(), 0)
	sim.OnTransfer = func(status string) { transfers.WithLabelValues(status).Inc() }

	msrv := metrics.StartMetricsServer(log, cfg.MetricsPort, nil)
	defer msrv.Close()

	// Servidor público (POST /transfers)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:           sim.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("payment rail simulator (public) running",
			zap.String("addr", srv.Addr),
			zap.String("paths", "/transfers"),
			zap.String("reject_rate", cfg.RailRejectRate.String()),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("public server error", zap.Error(err))
			cancel()
		}
	}()

	<-ctx.Done()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}
