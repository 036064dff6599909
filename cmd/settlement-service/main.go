package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/radieske/usdt-settlement-engine/internal/settlement/engine"
	settlementhttp "github.com/radieske/usdt-settlement-engine/internal/settlement/http"
	"github.com/radieske/usdt-settlement-engine/internal/settlement/sink"
	"github.com/radieske/usdt-settlement-engine/internal/settlement/transfer"
	"github.com/radieske/usdt-settlement-engine/internal/shared/config"
	"github.com/radieske/usdt-settlement-engine/internal/shared/kafka"
	"github.com/radieske/usdt-settlement-engine/internal/shared/logger"
	"github.com/radieske/usdt-settlement-engine/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Kafka producer: eventos de liquidação para o worker de espelhamento
	writer := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicSettlementEvents)
	defer writer.Close()
	eventSink := sink.NewKafka(writer)

	// Adapter de token: ERC-20 via JSON-RPC quando há nó configurado,
	// token em memória no ambiente local
	adapter, operator, err := buildAdapter(cfg)
	if err != nil {
		log.Fatal("token adapter", zap.Error(err))
	}
	log.Info("token adapter ready",
		zap.String("operator", operator.Hex()),
		zap.Bool("onchain", cfg.EthRPCURL != ""),
	)

	eng := engine.New(log, engine.Config{
		Owner:          operator,
		PlatformWallet: common.HexToAddress(cfg.PlatformWallet),
		AdminFeeWallet: common.HexToAddress(cfg.AdminFeeWallet),
		FeePercent:     cfg.FeePercent,
	}, adapter, eventSink)

	// Servidor de métricas e health em porta separada
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		return nil // o motor é em memória; vivo == saudável
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Gatilho periódico: drena a fila quando há entradas pendentes
	go drainLoop(ctx, log, eng, operator, cfg.QueueDrainInterval)

	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: settlementhttp.NewServer(log, eng).Router(),
	}
	go func() {
		log.Info("settlement api listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
}

// buildAdapter escolhe a implementação de transferência e o endereço do
// operador correspondente
func buildAdapter(cfg config.Config) (transfer.Adapter, common.Address, error) {
	if cfg.EthRPCURL != "" {
		erc20, err := transfer.NewERC20(cfg.EthRPCURL, common.HexToAddress(cfg.TokenAddress), cfg.OperatorKey, cfg.ChainID)
		if err != nil {
			return nil, common.Address{}, err
		}
		return erc20, erc20.Operator(), nil
	}

	operator := common.HexToAddress(cfg.OperatorAddress)
	return transfer.NewMemory(operator), operator, nil
}

// drainLoop dispara o processamento da fila em intervalos fixos, pulando
// quando não há nada enfileirado
func drainLoop(ctx context.Context, log *zap.Logger, eng *engine.Engine, operator common.Address, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if eng.QueueLen() == 0 {
			continue
		}
		if err := eng.ProcessPaymentQueue(ctx, operator); err != nil {
			if errors.Is(err, engine.ErrEmptyQueue) {
				continue
			}
			log.Warn("queue drain", zap.Error(err))
		}
	}
}
