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

	"github.com/radieske/updown-rounds/internal/oracle/binance"
	"github.com/radieske/updown-rounds/internal/payout"
	"github.com/radieske/updown-rounds/internal/payout/rail"
	"github.com/radieske/updown-rounds/internal/round/repo"
	"github.com/radieske/updown-rounds/internal/scheduler"
	httpapi "github.com/radieske/updown-rounds/internal/scheduler/http"
	"github.com/radieske/updown-rounds/internal/settlement"
	"github.com/radieske/updown-rounds/internal/shared/config"
	"github.com/radieske/updown-rounds/internal/shared/kafka"
	"github.com/radieske/updown-rounds/internal/shared/logger"
	"github.com/radieske/updown-rounds/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "round-scheduler"
	}
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid config", zap.Error(err))
	}
	if !binance.SupportsWindow(cfg.RoundWindow) {
		log.Fatal("round window has no oracle interval", zap.Duration("window", cfg.RoundWindow))
	}

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	connectCtx, connectCancel := context.WithTimeout(ctx, 10*time.Second)
	store, closeStore, err := repo.Open(connectCtx, cfg.StoreDriver, cfg.PostgresDSN)
	connectCancel()
	if err != nil {
		log.Fatal("store open", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	defer closeStore()

	// Kafka writers (round_settled, payout_confirmed)
	settledW := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicRoundSettled)
	defer settledW.Close()
	confirmedW := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicPayoutConfirmed)
	defer confirmedW.Close()
	publ := kafka.NewPublisher(nil, settledW, confirmedW)

	// Métricas Prometheus por etapa do ciclo de vida
	created := prometheus.NewCounter(prometheus.CounterOpts{Name: "rounds_created_total", Help: "rodadas criadas"})
	locked := prometheus.NewCounter(prometheus.CounterOpts{Name: "rounds_locked_total", Help: "rodadas travadas"})
	settledBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "rounds_settled_total", Help: "rodadas liquidadas por motivo"}, []string{"reason"})
	paid := prometheus.NewCounter(prometheus.CounterOpts{Name: "payouts_paid_total", Help: "pagamentos confirmados"})
	payFailed := prometheus.NewCounter(prometheus.CounterOpts{Name: "payouts_failed_total", Help: "transferências recusadas ou com erro"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "scheduler_errors_total", Help: "erros por estágio"}, []string{"stage"})
	runs := prometheus.NewHistogram(prometheus.HistogramOpts{Name: "scheduler_run_seconds", Help: "duração de uma execução", Buckets: prometheus.DefBuckets})
	prometheus.MustRegister(created, locked, settledBy, paid, payFailed, errorsBy, runs)

	// Colaboradores externos: oráculo de preço e trilho de pagamento
	oracle := binance.New(cfg.OracleURL, cfg.OracleTimeout)
	railCli := rail.New(cfg.PaymentRailURL, cfg.PayoutAsset)

	issuer := payout.NewIssuer(log, store, railCli, publ, cfg.PayoutLease)
	issuer.SetBatchSize(cfg.PayoutBatch)
	issuer.OnPaid = func() { paid.Inc() }
	issuer.OnFailed = func() { payFailed.Inc() }

	engine := settlement.NewEngine(log, store, oracle, settlement.Config{RefundRetention: cfg.RefundRetention}, publ, issuer)

	schedCfg := scheduler.Config{
		Symbols:       cfg.ActiveSymbols,
		Window:        cfg.RoundWindow,
		FeeRate:       cfg.FeeRate,
		BonusBoost:    cfg.BonusBoost,
		SettleTimeout: cfg.SettleTimeout,
	}
	sched := &scheduler.Scheduler{
		Log:      log,
		Store:    store,
		Settler:  engine,
		Payouts:  issuer,
		Config:   schedCfg,
		OnCreate: func() { created.Inc() },
		OnLock:   func() { locked.Inc() },
		OnSettle: func(reason string) { settledBy.WithLabelValues(reason).Inc() },
		OnError:  func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}
	timed := runTimer{s: sched, observe: runs.Observe}

	runner := scheduler.NewRunner(log, ctx)
	if _, err := runner.Schedule(cfg.SchedulerCron, timed); err != nil {
		log.Fatal("cron schedule", zap.String("spec", cfg.SchedulerCron), zap.Error(err))
	}
	runner.Start()
	defer runner.Stop()

	// metrics/health
	msrv := metrics.StartMetricsServer(log, cfg.MetricsPort, store.Ping)
	defer msrv.Close()

	// HTTP de administração
	api := &httpapi.API{Log: log, Scheduler: timed, Timeout: 2 * time.Minute}
	apiSrv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("round-scheduler listening",
			zap.String("addr", apiSrv.Addr),
			zap.Strings("symbols", cfg.ActiveSymbols),
			zap.Duration("window", cfg.RoundWindow),
			zap.String("cron", cfg.SchedulerCron),
		)
		if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("api", zap.Error(err))
			cancel()
		}
	}()

	<-ctx.Done()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = apiSrv.Shutdown(shutdownCtx)
	log.Info("round-scheduler stopped")
}

// runTimer mede a duração de cada execução (cron e HTTP)
type runTimer struct {
	s       *scheduler.Scheduler
	observe func(float64)
}

func (t runTimer) Run(ctx context.Context) scheduler.Result {
	start := time.Now()
	res := t.s.Run(ctx)
	t.observe(time.Since(start).Seconds())
	return res
}
