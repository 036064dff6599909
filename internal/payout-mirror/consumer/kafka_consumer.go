package consumer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/usdt-settlement-engine/internal/payout-mirror/cache"
	"github.com/radieske/usdt-settlement-engine/internal/payout-mirror/repository"
	"github.com/radieske/usdt-settlement-engine/pkg/contracts/events"
)

// Processor consome os eventos de liquidação do Kafka e materializa o
// espelho: Postgres para auditoria, Redis para consultas de status.
// Callbacks de métricas podem ser usadas para monitoramento de cada etapa.
type Processor struct {
	Log    *zap.Logger
	Reader *kafka.Reader
	Repo   *repository.PostgresRepo
	Cache  *cache.RedisCache
	DLQ    *kafka.Writer // opcional; recebe envelopes que falharam no banco

	OnConsumed func()       // métricas (counter++)
	OnMirrored func()       // métricas
	OnError    func(string) // métricas por fase

	// OnAfterMirror roda após persistir com sucesso; usado para o
	// broadcast de pagamento via Redis Pub/Sub.
	OnAfterMirror func(env events.Envelope)
}

// Run inicia o loop principal de consumo e processamento das mensagens Kafka
func (p *Processor) Run(ctx context.Context) error {
	for {
		m, err := p.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err() // encerra se o contexto for cancelado
			}
			p.Log.Warn("kafka read failed", zap.Error(err))
			if p.OnError != nil {
				p.OnError("read")
			}
			time.Sleep(500 * time.Millisecond)
			continue
		}

		if p.OnConsumed != nil {
			p.OnConsumed() // callback de métrica: mensagem consumida
		}

		var env events.Envelope
		if err := json.Unmarshal(m.Value, &env); err != nil {
			p.Log.Warn("invalid envelope", zap.Error(err))
			if p.OnError != nil {
				p.OnError("decode")
			}
			continue
		}

		if err := p.apply(ctx, env); err != nil {
			p.Log.Warn("mirror apply failed",
				zap.String("type", env.Type), zap.Error(err))
			if p.OnError != nil {
				p.OnError("db")
			}
			if p.DLQ != nil {
				if derr := p.DLQ.WriteMessages(ctx, kafka.Message{Key: m.Key, Value: m.Value}); derr != nil {
					p.Log.Error("dlq write failed", zap.Error(derr))
				}
			}
			continue
		}

		if p.OnMirrored != nil {
			p.OnMirrored() // callback de métrica: espelho atualizado
		}
		if p.OnAfterMirror != nil {
			p.OnAfterMirror(env)
		}
	}
}

// apply despacha o envelope para a mutação de espelho correspondente
func (p *Processor) apply(ctx context.Context, env events.Envelope) error {
	switch env.Type {
	case events.TypeBetPlaced:
		var e events.BetPlaced
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			return err
		}
		return p.Repo.InsertBet(ctx, e, env.Ts)

	case events.TypeBetSettled:
		var e events.BetSettled
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			return err
		}
		if !e.Won {
			return p.Repo.UpdateStatus(ctx, e.BetID, "Settled", env.Ts)
		}
		// Ganha: o progresso real chega nos eventos de pagamento; aqui
		// só marca a transição de estado.
		return p.Repo.UpdateStatus(ctx, e.BetID, "PartiallyPaid", env.Ts)

	case events.TypeBetPartiallyPaid:
		var e events.BetPartiallyPaid
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			return err
		}
		if err := p.Repo.UpdatePayment(ctx, e.BetID, "PartiallyPaid", e.PaidAmount, e.RemainingAmount, e.PaymentPercentage, env.Ts); err != nil {
			return err
		}
		// o histórico guarda o incremento de cada pagamento, não o acumulado
		if err := p.Repo.InsertPayout(ctx, e.BetID, e.Amount, e.PaymentPercentage, env.Ts); err != nil {
			return err
		}
		return p.cachePayment(ctx, e.BetID, "PartiallyPaid", e.PaidAmount, e.RemainingAmount, e.PaymentPercentage, env.Ts)

	case events.TypeBetFullyPaid:
		var e events.BetFullyPaid
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			return err
		}
		if err := p.Repo.UpdatePayment(ctx, e.BetID, "FullyPaid", e.TotalAmount, 0, 100, env.Ts); err != nil {
			return err
		}
		if err := p.Repo.InsertPayout(ctx, e.BetID, e.Amount, 100, env.Ts); err != nil {
			return err
		}
		return p.cachePayment(ctx, e.BetID, "FullyPaid", e.TotalAmount, 0, 100, env.Ts)

	case events.TypeBetAddedToQueue:
		var e events.BetAddedToPaymentQueue
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			return err
		}
		// A entrada na fila não muda o espelho da aposta; fica só no
		// histórico de tesouraria como passivo assumido.
		return p.Repo.InsertTreasuryMovement(ctx, "liability_committed", e.Bettor, e.PendingAmount, env.Ts)

	case events.TypeBetCancelled:
		var e events.BetCancelled
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			return err
		}
		return p.Repo.UpdateStatus(ctx, e.BetID, "Cancelled", env.Ts)

	case events.TypeFeesWithdrawn:
		var e events.FeesWithdrawn
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			return err
		}
		return p.Repo.InsertTreasuryMovement(ctx, "fees_withdrawn", e.Destination, e.Amount, env.Ts)

	case events.TypeWithdrawal:
		var e events.Withdrawal
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			return err
		}
		return p.Repo.InsertTreasuryMovement(ctx, "withdrawal", e.Destination, e.Amount, env.Ts)

	case events.TypePaymentQueueDrained:
		// Informativo; nada a espelhar por aposta.
		return nil

	default:
		p.Log.Warn("unknown event type", zap.String("type", env.Type))
		return nil
	}
}

// cachePayment grava o estado de pagamento no Redis; falha de cache não
// derruba o processamento.
func (p *Processor) cachePayment(ctx context.Context, betID int64, status string, paid, remaining int64, pct int, ts time.Time) error {
	st := cache.PaymentState{
		BetID:             betID,
		Status:            status,
		PaidAmount:        paid,
		RemainingAmount:   remaining,
		PaymentPercentage: pct,
		UpdatedAt:         ts,
	}
	if err := p.Cache.SetPayment(ctx, st); err != nil {
		p.Log.Warn("redis set failed", zap.Error(err))
		if p.OnError != nil {
			p.OnError("cache")
		}
	}
	return nil
}
