// Package engine orquestra a liquidação de apostas com pagamento parcial:
// decide quanto da premiação cabe na liquidez disponível, paga na hora o que
// couber, enfileira o restante e drena a fila em ordem FIFO conforme nova
// liquidez chega.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/radieske/usdt-settlement-engine/internal/settlement/ledger"
	"github.com/radieske/usdt-settlement-engine/internal/settlement/metrics"
	"github.com/radieske/usdt-settlement-engine/internal/settlement/queue"
	"github.com/radieske/usdt-settlement-engine/internal/settlement/registry"
	"github.com/radieske/usdt-settlement-engine/internal/settlement/transfer"
	ev "github.com/radieske/usdt-settlement-engine/pkg/contracts/events"
)

var (
	ErrUnauthorized            = errors.New("caller is not authorized")
	ErrUnauthorizedDestination = errors.New("destination is not the platform wallet")
	ErrEmptyQueue              = errors.New("payment queue is empty")
	ErrTransferFailed          = errors.New("token transfer failed")
)

// EventSink recebe os eventos do motor. Entrega fire-and-forget: falha de
// publicação é logada, nunca desfaz a operação.
type EventSink interface {
	Publish(ctx context.Context, key string, eventType string, payload any) error
}

// Config fixa as identidades do motor. PlatformWallet e AdminFeeWallet são
// destinos constantes; qualquer outro destino de saque é rejeitado.
type Config struct {
	Owner          common.Address
	PlatformWallet common.Address
	AdminFeeWallet common.Address
	FeePercent     int64
}

// Engine compõe ledger, registro de apostas e fila de pagamentos atrás de um
// único mutex: cada operação mutante executa de ponta a ponta sem
// intercalação, e nenhum estado é gravado antes da transferência de token
// ser confirmada.
type Engine struct {
	mu sync.Mutex

	log      *zap.Logger
	cfg      Config
	ledger   *ledger.Ledger
	registry *registry.Registry
	queue    *queue.Queue
	adapter  transfer.Adapter
	sink     EventSink
}

func New(log *zap.Logger, cfg Config, adapter transfer.Adapter, sink EventSink) *Engine {
	return &Engine{
		log:      log,
		cfg:      cfg,
		ledger:   ledger.New(),
		registry: registry.New(cfg.FeePercent),
		queue:    queue.New(),
		adapter:  adapter,
		sink:     sink,
	}
}

// PlaceBet coleta o stake do apostador e registra a aposta. Aberta a
// qualquer apostador; validação acontece antes de qualquer movimentação.
func (e *Engine) PlaceBet(ctx context.Context, bettor common.Address, stake int64, eventID, outcomeID string, potentialWin int64) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := registry.ValidateBet(stake, potentialWin); err != nil {
		return 0, err
	}

	if err := e.adapter.TransferFrom(ctx, bettor, stake); err != nil {
		metrics.TransferFailures.Inc()
		return 0, fmt.Errorf("%w: collect stake: %v", ErrTransferFailed, err)
	}

	betID, err := e.registry.PlaceBet(bettor, stake, eventID, outcomeID, potentialWin)
	if err != nil {
		// inalcançável: validado acima, sob o mesmo lock
		return 0, err
	}
	bet, _ := e.registry.Get(betID)

	if err := e.ledger.RecordDeposit(stake); err != nil {
		return 0, err
	}
	if err := e.ledger.RecordFeeAccrual(bet.Fee); err != nil {
		return 0, err
	}

	metrics.BetsPlaced.Inc()
	e.emit(ctx, betID, ev.TypeBetPlaced, ev.BetPlaced{
		BetID:        betID,
		Bettor:       bettor.Hex(),
		Stake:        stake,
		Fee:          bet.Fee,
		EventID:      eventID,
		OutcomeID:    outcomeID,
		PotentialWin: potentialWin,
	})
	return betID, nil
}

// SettleBet liquida uma aposta Pending. Perdida: sem movimentação. Ganha:
// paga o que a liquidez disponível cobre e enfileira o restante. Falha de
// transferência aborta a liquidação inteira sem tocar o estado.
func (e *Engine) SettleBet(ctx context.Context, caller common.Address, betID int64, won bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.cfg.Owner {
		return ErrUnauthorized
	}

	bet, err := e.registry.Get(betID)
	if err != nil {
		return err
	}
	if bet.Status != registry.StatusPending {
		return fmt.Errorf("%w: bet %d is %s", registry.ErrInvalidState, betID, bet.Status)
	}

	if !won {
		if err := e.registry.MarkSettled(betID, false); err != nil {
			return err
		}
		metrics.BetsSettled.WithLabelValues("lost").Inc()
		e.emit(ctx, betID, ev.TypeBetSettled, ev.BetSettled{
			BetID: betID, Bettor: bet.Bettor.Hex(), Won: false, Amount: 0,
		})
		return nil
	}

	payable := min(bet.PotentialWin, e.ledger.AvailableForPayouts())

	// transferência antes de qualquer mutação: se falhar, nada mudou
	if payable > 0 {
		if err := e.adapter.Transfer(ctx, bet.Bettor, payable); err != nil {
			metrics.TransferFailures.Inc()
			return fmt.Errorf("%w: settle bet %d: %v", ErrTransferFailed, betID, err)
		}
	}

	if err := e.registry.MarkSettled(betID, true); err != nil {
		return e.fatal("mark settled after transfer", betID, err)
	}
	if payable > 0 {
		if err := e.registry.ApplyPayment(betID, payable); err != nil {
			return e.fatal("apply settlement payment", betID, err)
		}
		if err := e.ledger.RecordPayout(payable); err != nil {
			return e.fatal("record settlement payout", betID, err)
		}
		metrics.PayoutMicros.Add(float64(payable))
	}

	bet, _ = e.registry.Get(betID)
	metrics.BetsSettled.WithLabelValues("won").Inc()
	e.emit(ctx, betID, ev.TypeBetSettled, ev.BetSettled{
		BetID: betID, Bettor: bet.Bettor.Hex(), Won: true, Amount: payable,
	})

	if bet.RemainingAmount == 0 {
		e.emit(ctx, betID, ev.TypeBetFullyPaid, ev.BetFullyPaid{
			BetID: betID, Bettor: bet.Bettor.Hex(), Amount: payable, TotalAmount: bet.PaidAmount,
		})
		return nil
	}

	// resta saldo devedor: reserva o passivo e entra na fila
	if err := e.ledger.CommitLiability(bet.RemainingAmount); err != nil {
		return e.fatal("commit liability", betID, err)
	}
	e.queue.Enqueue(betID)
	e.syncGauges()

	if payable > 0 {
		e.emit(ctx, betID, ev.TypeBetPartiallyPaid, ev.BetPartiallyPaid{
			BetID:             betID,
			Bettor:            bet.Bettor.Hex(),
			Amount:            payable,
			PaidAmount:        bet.PaidAmount,
			RemainingAmount:   bet.RemainingAmount,
			PaymentPercentage: bet.PaymentPercentage,
		})
	}
	e.emit(ctx, betID, ev.TypeBetAddedToQueue, ev.BetAddedToPaymentQueue{
		BetID: betID, Bettor: bet.Bettor.Hex(), PendingAmount: bet.RemainingAmount,
	})
	return nil
}

// CancelBet cancela uma aposta Pending e estorna stake + taxa ao apostador.
// Pode ser iniciada pelo dono da plataforma ou pelo próprio apostador.
func (e *Engine) CancelBet(ctx context.Context, caller common.Address, betID int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	bet, err := e.registry.Get(betID)
	if err != nil {
		return err
	}
	if caller != e.cfg.Owner && caller != bet.Bettor {
		return ErrUnauthorized
	}
	if bet.Status != registry.StatusPending {
		return fmt.Errorf("%w: bet %d is %s", registry.ErrInvalidState, betID, bet.Status)
	}

	// o estorno devolve também a taxa; se ela já saiu do pool via
	// WithdrawFees, não há o que devolver
	refund := bet.Stake + bet.Fee
	if refund > e.ledger.CustodiedBalance()-e.ledger.CommittedLiability() || bet.Fee > e.ledger.AccumulatedFees() {
		return ledger.ErrInsufficientFunds
	}

	if err := e.adapter.Transfer(ctx, bet.Bettor, refund); err != nil {
		metrics.TransferFailures.Inc()
		return fmt.Errorf("%w: refund bet %d: %v", ErrTransferFailed, betID, err)
	}

	if err := e.registry.MarkCancelled(betID); err != nil {
		return e.fatal("mark cancelled after refund", betID, err)
	}
	if err := e.ledger.RecordRefund(bet.Stake, bet.Fee); err != nil {
		return e.fatal("record refund", betID, err)
	}

	metrics.BetsCancelled.Inc()
	e.emit(ctx, betID, ev.TypeBetCancelled, ev.BetCancelled{
		BetID: betID, Bettor: bet.Bettor.Hex(), RefundAmount: refund,
	})
	return nil
}

// ProcessPaymentQueue drena a fila em ordem FIFO estrita enquanto houver
// orçamento. Ao encontrar a primeira aposta sem nada pagável, para por
// inteiro: uma premiação grande na frente segura as menores atrás até a
// liquidez acumular. Disparada pelo gatilho periódico ou por ação
// administrativa; ambas serializam no mesmo lock.
func (e *Engine) ProcessPaymentQueue(ctx context.Context, caller common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.cfg.Owner {
		return ErrUnauthorized
	}
	if e.queue.Len() == 0 {
		return ErrEmptyQueue
	}

	metrics.QueueDrainRuns.Inc()
	defer e.syncGauges()

	var (
		betsPaid  int
		totalPaid int64
	)
	for betID := range e.queue.InOrder() {
		bet, err := e.registry.Get(betID)
		if err != nil {
			return e.fatal("queued bet lookup", betID, err)
		}

		payable := min(bet.RemainingAmount, e.ledger.DrainBudget())
		if payable == 0 {
			// liquidez esgotada; o resto da fila espera a próxima rodada
			break
		}

		if err := e.adapter.Transfer(ctx, bet.Bettor, payable); err != nil {
			metrics.TransferFailures.Inc()
			// entradas já pagas nesta rodada permanecem; esta não foi tocada
			return fmt.Errorf("%w: drain bet %d: %v", ErrTransferFailed, betID, err)
		}

		if err := e.registry.ApplyPayment(betID, payable); err != nil {
			return e.fatal("apply queued payment", betID, err)
		}
		if err := e.ledger.RecordPayout(payable); err != nil {
			return e.fatal("record queued payout", betID, err)
		}
		if err := e.ledger.ReleaseLiability(payable); err != nil {
			return e.fatal("release liability", betID, err)
		}
		metrics.PayoutMicros.Add(float64(payable))
		betsPaid++
		totalPaid += payable

		bet, _ = e.registry.Get(betID)
		if bet.Status == registry.StatusFullyPaid {
			e.queue.Remove(betID)
			e.emit(ctx, betID, ev.TypeBetFullyPaid, ev.BetFullyPaid{
				BetID: betID, Bettor: bet.Bettor.Hex(), Amount: payable, TotalAmount: bet.PaidAmount,
			})
		} else {
			e.emit(ctx, betID, ev.TypeBetPartiallyPaid, ev.BetPartiallyPaid{
				BetID:             betID,
				Bettor:            bet.Bettor.Hex(),
				Amount:            payable,
				PaidAmount:        bet.PaidAmount,
				RemainingAmount:   bet.RemainingAmount,
				PaymentPercentage: bet.PaymentPercentage,
			})
		}
	}

	if e.queue.Len() == 0 {
		e.emitKey(ctx, "queue", ev.TypePaymentQueueDrained, ev.PaymentQueueDrained{
			BetsPaid: betsPaid, TotalPaid: totalPaid,
		})
	}
	return nil
}

// RecordDeposit credita liquidez nova na custódia (aporte da plataforma já
// confirmado no token).
func (e *Engine) RecordDeposit(ctx context.Context, caller common.Address, amount int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.cfg.Owner {
		return ErrUnauthorized
	}
	if amount <= 0 {
		return fmt.Errorf("%w: deposit %d", registry.ErrInvalidAmount, amount)
	}
	return e.ledger.RecordDeposit(amount)
}

// WithdrawFees saca taxas acumuladas para a carteira fixa de taxas.
func (e *Engine) WithdrawFees(ctx context.Context, caller common.Address, amount int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.cfg.Owner {
		return ErrUnauthorized
	}
	if amount <= 0 {
		return fmt.Errorf("%w: fee withdrawal %d", registry.ErrInvalidAmount, amount)
	}
	if amount > e.ledger.AccumulatedFees() {
		return ledger.ErrInsufficientFunds
	}

	if err := e.adapter.Transfer(ctx, e.cfg.AdminFeeWallet, amount); err != nil {
		metrics.TransferFailures.Inc()
		return fmt.Errorf("%w: withdraw fees: %v", ErrTransferFailed, err)
	}
	if err := e.ledger.RecordFeeWithdrawal(amount); err != nil {
		return e.fatal("record fee withdrawal", -1, err)
	}

	e.emitKey(ctx, e.cfg.AdminFeeWallet.Hex(), ev.TypeFeesWithdrawn, ev.FeesWithdrawn{
		Destination: e.cfg.AdminFeeWallet.Hex(), Amount: amount,
	})
	return nil
}

// Withdraw saca saldo livre para a carteira da plataforma. Qualquer outro
// destino é rejeitado para impedir desvio de fundos.
func (e *Engine) Withdraw(ctx context.Context, caller common.Address, destination common.Address, amount int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.cfg.Owner {
		return ErrUnauthorized
	}
	if destination != e.cfg.PlatformWallet {
		return ErrUnauthorizedDestination
	}
	if amount <= 0 {
		return fmt.Errorf("%w: withdrawal %d", registry.ErrInvalidAmount, amount)
	}
	if amount > e.ledger.AvailableForPayouts() {
		return ledger.ErrInsufficientFunds
	}

	if err := e.adapter.Transfer(ctx, destination, amount); err != nil {
		metrics.TransferFailures.Inc()
		return fmt.Errorf("%w: withdraw: %v", ErrTransferFailed, err)
	}
	if err := e.ledger.RecordWithdrawal(amount); err != nil {
		return e.fatal("record withdrawal", -1, err)
	}

	e.emitKey(ctx, destination.Hex(), ev.TypeWithdrawal, ev.Withdrawal{
		Destination: destination.Hex(), Amount: amount,
	})
	return nil
}

func (e *Engine) emit(ctx context.Context, betID int64, eventType string, payload any) {
	e.emitKey(ctx, strconv.FormatInt(betID, 10), eventType, payload)
}

func (e *Engine) emitKey(ctx context.Context, key string, eventType string, payload any) {
	if err := e.sink.Publish(ctx, key, eventType, payload); err != nil {
		e.log.Warn("publish event", zap.String("type", eventType), zap.Error(err))
	}
}

// fatal loga uma violação de invariante pós-transferência. Não há como
// desfazer tokens já movidos; o erro sobe para o operador investigar.
func (e *Engine) fatal(op string, betID int64, err error) error {
	e.log.Error("ledger invariant violation", zap.String("op", op), zap.Int64("betId", betID), zap.Error(err))
	return err
}

func (e *Engine) syncGauges() {
	metrics.QueueLength.Set(float64(e.queue.Len()))
	metrics.CommittedLiability.Set(float64(e.ledger.CommittedLiability()))
}
