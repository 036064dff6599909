package main

import (
	"context"
	"encoding/json"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/usdt-settlement-engine/internal/payout-mirror/cache"
	"github.com/radieske/usdt-settlement-engine/internal/payout-mirror/consumer"
	"github.com/radieske/usdt-settlement-engine/internal/payout-mirror/pubsub"
	"github.com/radieske/usdt-settlement-engine/internal/payout-mirror/repository"
	sharedcache "github.com/radieske/usdt-settlement-engine/internal/shared/cache"
	"github.com/radieske/usdt-settlement-engine/internal/shared/config"
	"github.com/radieske/usdt-settlement-engine/internal/shared/db"
	"github.com/radieske/usdt-settlement-engine/internal/shared/kafka"
	"github.com/radieske/usdt-settlement-engine/internal/shared/logger"
	"github.com/radieske/usdt-settlement-engine/internal/shared/metrics"
	"github.com/radieske/usdt-settlement-engine/pkg/contracts/events"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Inicializa dependências: Postgres e Redis
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	redisClient, err := sharedcache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	ttl := 5 * time.Minute
	rcache := cache.NewRedisCache(redisClient, ttl)
	repo := repository.NewPostgresRepo(pg)
	broadcaster := pubsub.NewRedisBroadcaster(redisClient)

	// Consumer group payout-mirror sobre o tópico de eventos de liquidação
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicSettlementEvents, "payout-mirror")
	defer reader.Close()

	var dlqWriter *kafka.Writer
	if cfg.TopicSettlementEventsDLQ != "" {
		dlqWriter = kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicSettlementEventsDLQ)
		defer dlqWriter.Close()
	}

	// Métricas Prometheus para monitoramento do espelhamento
	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "payout_mirror_messages_consumed_total", Help: "mensagens consumidas"})
	mirrored := prometheus.NewCounter(prometheus.CounterOpts{Name: "payout_mirror_applied_total", Help: "eventos aplicados ao espelho"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "payout_mirror_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(consumed, mirrored, errorsBy)

	proc := &consumer.Processor{
		Log:        log,
		Reader:     reader,
		Repo:       repo,
		Cache:      rcache,
		DLQ:        dlqWriter,
		OnConsumed: func() { consumed.Inc() },
		OnMirrored: func() { mirrored.Inc() },
		OnError:    func(stage string) { errorsBy.WithLabelValues(stage).Inc() },

		// Após espelhar, repassa o evento aos assinantes de pagamento
		OnAfterMirror: func(env events.Envelope) {
			msg := pubsub.WSUpdate{BetID: betIDOf(env), Type: env.Type, Payload: env.Payload}
			b, _ := json.Marshal(msg)

			ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
			defer cancel()

			if err := broadcaster.Publish(ctx, cfg.RedisPubSubChannel, b); err != nil {
				log.Warn("payment broadcast publish failed", zap.Error(err))
			}
		},
	}

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return err
		}
		return redisClient.Ping(ctx).Err()
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("payout-mirror-worker started", zap.String("consume", cfg.TopicSettlementEvents))
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("processor stopped with error", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = metricsSrv.Shutdown(shutdownCtx)

	log.Info("payout-mirror-worker stopped")
}

// betIDOf extrai o bet_id do payload quando houver; 0 para eventos de
// tesouraria e de fila
func betIDOf(env events.Envelope) int64 {
	var probe struct {
		BetID int64 `json:"bet_id"`
	}
	_ = json.Unmarshal(env.Payload, &probe)
	return probe.BetID
}
