package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/updown-rounds/internal/bet-service/cache"
	"github.com/radieske/updown-rounds/internal/bet-service/consumer"
	bhttp "github.com/radieske/updown-rounds/internal/bet-service/http"
	"github.com/radieske/updown-rounds/internal/bet-service/ws"
	"github.com/radieske/updown-rounds/internal/normalize"
	"github.com/radieske/updown-rounds/internal/pool"
	"github.com/radieske/updown-rounds/internal/round/repo"
	sharedcache "github.com/radieske/updown-rounds/internal/shared/cache"
	"github.com/radieske/updown-rounds/internal/shared/config"
	"github.com/radieske/updown-rounds/internal/shared/kafka"
	"github.com/radieske/updown-rounds/internal/shared/logger"
	"github.com/radieske/updown-rounds/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "bet-service"
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

	// Store + Redis
	connectCtx, connectCancel := context.WithTimeout(ctx, 10*time.Second)
	store, closeStore, err := repo.Open(connectCtx, cfg.StoreDriver, cfg.PostgresDSN)
	if err != nil {
		connectCancel()
		log.Fatal("store open", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	defer closeStore()

	rdb, err := sharedcache.ConnectRedis(connectCtx, cfg.RedisAddr)
	connectCancel()
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()
	rounds := cache.New(rdb, cfg.CacheTTL)

	// Kafka writer (topic bet_placed)
	writer := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetPlaced)
	defer writer.Close()
	publ := kafka.NewPublisher(writer, nil, nil)

	// Normalização: ativos de cotação passam direto, o resto vai para o serviço de troca
	var swap normalize.Converter
	if cfg.SwapURL != "" {
		swap = normalize.NewSwapClient(cfg.SwapURL, cfg.PayoutAsset)
	}
	norm := normalize.New(log, normalize.Config{
		QuoteAssets:   cfg.QuoteAssets,
		StableFeeRate: cfg.StableFeeRate,
		SwapFeeRate:   cfg.SwapFeeRate,
	}, swap)

	acc := pool.NewAccountant(log, store)

	// Métricas Prometheus
	placed := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "bets_placed_total", Help: "apostas aceitas por lado"}, []string{"side"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "bets_rejected_total", Help: "apostas recusadas por motivo"}, []string{"reason"})
	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "bet_round_settled_consumed_total", Help: "eventos round_settled consumidos"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "bet_consumer_errors_total", Help: "erros do consumer por estágio"}, []string{"stage"})
	feedSent := prometheus.NewCounter(prometheus.CounterOpts{Name: "bet_feed_broadcasts_total", Help: "apostas repassadas ao feed websocket"})
	prometheus.MustRegister(placed, rejected, consumed, errorsBy, feedSent)

	// Feed websocket de apostas ao vivo
	hub := ws.NewHub(log, func(r *http.Request) bool { return true })

	// HTTP público
	api := bhttp.NewServer(log, store, acc, norm, publ, rounds, cfg.ActiveSymbols)
	api.OnPlaced = func(side string) { placed.WithLabelValues(side).Inc() }
	api.OnRejected = func(reason string) { rejected.WithLabelValues(reason).Inc() }
	api.SetLiveFeed(hub)
	apiSrv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Consumer round_settled (consumer group bet-service)
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicRoundSettled, "bet-service")
	defer reader.Close()
	listener := &consumer.SettledListener{
		Log:        log,
		Reader:     reader,
		Cache:      rounds,
		OnConsumed: func() { consumed.Inc() },
		OnError:    func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}
	go func() {
		if err := listener.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("round_settled consumer stopped", zap.Error(err))
		}
	}()

	// Consumer bet_placed -> feed websocket; grupo por réplica para que cada uma receba todas as apostas
	host, _ := os.Hostname()
	feedReader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicBetPlaced, "bet-service-feed-"+host)
	defer feedReader.Close()
	feed := &consumer.BetFeedListener{
		Log:        log,
		Reader:     feedReader,
		Hub:        hub,
		OnConsumed: func() { feedSent.Inc() },
		OnError:    func(stage string) { errorsBy.WithLabelValues("feed_" + stage).Inc() },
	}
	go func() {
		if err := feed.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("bet_placed feed consumer stopped", zap.Error(err))
		}
	}()

	// metrics/health
	msrv := metrics.StartMetricsServer(log, cfg.MetricsPort, func(ctx context.Context) error {
		if err := store.Ping(ctx); err != nil {
			return fmt.Errorf("store: %w", err)
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		return nil
	})
	defer msrv.Close()

	go func() {
		log.Info("bet-service listening", zap.String("addr", apiSrv.Addr), zap.Strings("symbols", cfg.ActiveSymbols))
		if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("api", zap.Error(err))
			cancel()
		}
	}()

	<-ctx.Done()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = apiSrv.Shutdown(shutdownCtx)
	log.Info("bet-service stopped")
}
