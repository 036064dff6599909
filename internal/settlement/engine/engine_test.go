package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/usdt-settlement-engine/internal/settlement/ledger"
	"github.com/radieske/usdt-settlement-engine/internal/settlement/registry"
	ev "github.com/radieske/usdt-settlement-engine/pkg/contracts/events"
)

const usdt = int64(1_000_000)

var (
	owner    = common.HexToAddress("0x90F79bf6EB2c4f870365E785982E1f101E93b906")
	platform = common.HexToAddress("0x071437DdE24411BC1E31dD102a7FBA39DF493E3B")
	feeWall  = common.HexToAddress("0xE4A87598050D7877a79E2BEff12A25Be636c557e")
	alice    = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	bob      = common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")
	mallory  = common.HexToAddress("0x15d34AAf54267DB7D7c367839AAf71A00a2C6A65")
)

type transferCall struct {
	kind   string // "transfer" | "transferFrom"
	addr   common.Address
	amount int64
}

// fakeAdapter registra transferências e pode ser programado para falhar na
// n-ésima chamada de Transfer.
type fakeAdapter struct {
	calls            []transferCall
	transferCount    int
	failTransferAt   int // 1-based; 0 = nunca falha
	failTransferFrom bool
}

func (f *fakeAdapter) Transfer(_ context.Context, to common.Address, amount int64) error {
	f.transferCount++
	if f.failTransferAt != 0 && f.transferCount >= f.failTransferAt {
		return errors.New("token transfer reverted")
	}
	f.calls = append(f.calls, transferCall{"transfer", to, amount})
	return nil
}

func (f *fakeAdapter) TransferFrom(_ context.Context, from common.Address, amount int64) error {
	if f.failTransferFrom {
		return errors.New("insufficient allowance")
	}
	f.calls = append(f.calls, transferCall{"transferFrom", from, amount})
	return nil
}

type fakeSink struct {
	types    []string
	payloads map[string][]any
}

func (s *fakeSink) Publish(_ context.Context, _ string, eventType string, payload any) error {
	s.types = append(s.types, eventType)
	if s.payloads == nil {
		s.payloads = make(map[string][]any)
	}
	s.payloads[eventType] = append(s.payloads[eventType], payload)
	return nil
}

func (s *fakeSink) count(eventType string) int {
	n := 0
	for _, t := range s.types {
		if t == eventType {
			n++
		}
	}
	return n
}

func newTestEngine(feePercent int64) (*Engine, *fakeAdapter, *fakeSink) {
	adapter := &fakeAdapter{}
	sink := &fakeSink{}
	e := New(zap.NewNop(), Config{
		Owner:          owner,
		PlatformWallet: platform,
		AdminFeeWallet: feeWall,
		FeePercent:     feePercent,
	}, adapter, sink)
	return e, adapter, sink
}

func ctx() context.Context { return context.Background() }

func TestPlaceBetCollectsStake(t *testing.T) {
	e, adapter, sink := newTestEngine(5)

	id, err := e.PlaceBet(ctx(), alice, 1000*usdt, "event123", "outcome456", 2000*usdt)
	require.NoError(t, err)
	require.EqualValues(t, 0, id)

	require.Equal(t, []transferCall{{"transferFrom", alice, 1000 * usdt}}, adapter.calls)

	lv := e.Ledger()
	require.EqualValues(t, 1000*usdt, lv.CustodiedBalance)
	require.EqualValues(t, 50*usdt, lv.AccumulatedFees)
	require.Equal(t, 1, sink.count(ev.TypeBetPlaced))
}

func TestPlaceBetValidatesBeforeCollecting(t *testing.T) {
	e, adapter, _ := newTestEngine(5)

	_, err := e.PlaceBet(ctx(), alice, registry.MaxBet+1, "e", "o", 100)
	require.ErrorIs(t, err, registry.ErrInvalidAmount)
	require.Empty(t, adapter.calls)

	// teto exato passa
	_, err = e.PlaceBet(ctx(), alice, registry.MaxBet, "e", "o", 100)
	require.NoError(t, err)
}

func TestPlaceBetCollectFailure(t *testing.T) {
	e, adapter, _ := newTestEngine(5)
	adapter.failTransferFrom = true

	_, err := e.PlaceBet(ctx(), alice, 1000*usdt, "e", "o", 2000*usdt)
	require.ErrorIs(t, err, ErrTransferFailed)

	// nada registrado, nada creditado
	_, gerr := e.GetBet(0)
	require.ErrorIs(t, gerr, registry.ErrNotFound)
	require.EqualValues(t, 0, e.Ledger().CustodiedBalance)
}

func TestSettleLostNoFundMovement(t *testing.T) {
	e, adapter, sink := newTestEngine(5)
	require.NoError(t, e.RecordDeposit(ctx(), owner, 5000*usdt))
	id, _ := e.PlaceBet(ctx(), alice, 1000*usdt, "e", "o", 2000*usdt)

	before := e.Ledger()
	transfersBefore := len(adapter.calls)

	require.NoError(t, e.SettleBet(ctx(), owner, id, false))

	bet, _ := e.GetBet(id)
	require.Equal(t, registry.StatusSettled, bet.Status)
	require.Equal(t, before, e.Ledger())
	require.Len(t, adapter.calls, transfersBefore)
	require.Equal(t, 1, sink.count(ev.TypeBetSettled))

	// liquidar de novo falha
	require.ErrorIs(t, e.SettleBet(ctx(), owner, id, true), registry.ErrInvalidState)
}

func TestSettleWonFullyFunded(t *testing.T) {
	e, adapter, sink := newTestEngine(5)
	require.NoError(t, e.RecordDeposit(ctx(), owner, 5000*usdt))
	id, _ := e.PlaceBet(ctx(), alice, 1000*usdt, "e", "o", 2000*usdt)

	require.NoError(t, e.SettleBet(ctx(), owner, id, true))

	bet, _ := e.GetBet(id)
	require.Equal(t, registry.StatusFullyPaid, bet.Status)
	require.EqualValues(t, 2000*usdt, bet.PaidAmount)
	require.EqualValues(t, 0, bet.RemainingAmount)
	require.Equal(t, 100, bet.PaymentPercentage)

	last := adapter.calls[len(adapter.calls)-1]
	require.Equal(t, transferCall{"transfer", alice, 2000 * usdt}, last)

	// nunca entra na fila
	require.Equal(t, 0, e.QueueLen())
	require.Equal(t, 1, sink.count(ev.TypeBetFullyPaid))
	require.Equal(t, 0, sink.count(ev.TypeBetAddedToQueue))

	require.EqualValues(t, 4000*usdt, e.Ledger().CustodiedBalance)
}

func TestSettleWonUnauthorized(t *testing.T) {
	e, _, _ := newTestEngine(5)
	require.NoError(t, e.RecordDeposit(ctx(), owner, 5000*usdt))
	id, _ := e.PlaceBet(ctx(), alice, 1000*usdt, "e", "o", 2000*usdt)

	require.ErrorIs(t, e.SettleBet(ctx(), mallory, id, true), ErrUnauthorized)
	require.ErrorIs(t, e.ProcessPaymentQueue(ctx(), mallory), ErrUnauthorized)
	require.ErrorIs(t, e.WithdrawFees(ctx(), mallory, usdt), ErrUnauthorized)
	require.ErrorIs(t, e.Withdraw(ctx(), mallory, platform, usdt), ErrUnauthorized)
	require.ErrorIs(t, e.RecordDeposit(ctx(), mallory, usdt), ErrUnauthorized)

	bet, _ := e.GetBet(id)
	require.Equal(t, registry.StatusPending, bet.Status)
}

func TestSettleUnknownBet(t *testing.T) {
	e, _, _ := newTestEngine(5)
	require.ErrorIs(t, e.SettleBet(ctx(), owner, 42, true), registry.ErrNotFound)
}

// Progressão completa dos cenários de pagamento parcial: 500 → +1000 → +500.
func TestPartialPayoutProgression(t *testing.T) {
	e, adapter, sink := newTestEngine(0)

	// custódia fica em 500 após o saque da plataforma
	id, _ := e.PlaceBet(ctx(), bob, 1000*usdt, "event123", "outcome456", 2000*usdt)
	require.NoError(t, e.Withdraw(ctx(), owner, platform, 500*usdt))

	require.NoError(t, e.SettleBet(ctx(), owner, id, true))

	bet, _ := e.GetBet(id)
	require.Equal(t, registry.StatusPartiallyPaid, bet.Status)
	require.EqualValues(t, 500*usdt, bet.PaidAmount)
	require.EqualValues(t, 1500*usdt, bet.RemainingAmount)
	require.Equal(t, 25, bet.PaymentPercentage)

	st, err := e.PaymentStatus(id)
	require.NoError(t, err)
	require.NotNil(t, st.QueuePosition)
	require.Equal(t, 0, *st.QueuePosition)
	require.Equal(t, 1, e.QueueLen())
	require.Equal(t, 1, sink.count(ev.TypeBetAddedToQueue))

	// chega mais 1000 de liquidez: paga 1000, segue na fila
	require.NoError(t, e.RecordDeposit(ctx(), owner, 1000*usdt))
	require.NoError(t, e.ProcessPaymentQueue(ctx(), owner))

	bet, _ = e.GetBet(id)
	require.Equal(t, registry.StatusPartiallyPaid, bet.Status)
	require.EqualValues(t, 1500*usdt, bet.PaidAmount)
	require.EqualValues(t, 500*usdt, bet.RemainingAmount)
	require.Equal(t, 75, bet.PaymentPercentage)
	require.Equal(t, 1, e.QueueLen())

	// últimos 500: completa e sai da fila
	require.NoError(t, e.RecordDeposit(ctx(), owner, 500*usdt))
	require.NoError(t, e.ProcessPaymentQueue(ctx(), owner))

	bet, _ = e.GetBet(id)
	require.Equal(t, registry.StatusFullyPaid, bet.Status)
	require.Equal(t, 100, bet.PaymentPercentage)
	require.Equal(t, 0, e.QueueLen())
	require.Equal(t, 1, sink.count(ev.TypePaymentQueueDrained))

	// invariante em todos os passos: paid + remaining == potentialWin
	require.EqualValues(t, bet.PotentialWin, bet.PaidAmount+bet.RemainingAmount)

	// bob recebeu 500 + 1000 + 500
	var total int64
	for _, c := range adapter.calls {
		if c.kind == "transfer" && c.addr == bob {
			total += c.amount
		}
	}
	require.EqualValues(t, 2000*usdt, total)
}

// Cada evento de pagamento carrega o incremento daquele pagamento, não só o
// acumulado: é o que o histórico de pagamentos espelha linha a linha.
func TestPaymentEventsCarryIncrements(t *testing.T) {
	e, _, sink := newTestEngine(0)

	id, _ := e.PlaceBet(ctx(), bob, 1000*usdt, "event123", "outcome456", 2000*usdt)
	require.NoError(t, e.Withdraw(ctx(), owner, platform, 500*usdt))
	require.NoError(t, e.SettleBet(ctx(), owner, id, true)) // paga 500

	require.NoError(t, e.RecordDeposit(ctx(), owner, 1000*usdt))
	require.NoError(t, e.ProcessPaymentQueue(ctx(), owner)) // paga 1000

	require.NoError(t, e.RecordDeposit(ctx(), owner, 500*usdt))
	require.NoError(t, e.ProcessPaymentQueue(ctx(), owner)) // paga 500, completa

	var increments []int64
	for _, p := range sink.payloads[ev.TypeBetPartiallyPaid] {
		increments = append(increments, p.(ev.BetPartiallyPaid).Amount)
	}
	require.Equal(t, []int64{500 * usdt, 1000 * usdt}, increments)

	full := sink.payloads[ev.TypeBetFullyPaid]
	require.Len(t, full, 1)
	require.EqualValues(t, 500*usdt, full[0].(ev.BetFullyPaid).Amount)
	require.EqualValues(t, 2000*usdt, full[0].(ev.BetFullyPaid).TotalAmount)
}

func TestSettleWonZeroLiquidity(t *testing.T) {
	e, adapter, sink := newTestEngine(0)
	id, _ := e.PlaceBet(ctx(), alice, 1000*usdt, "e", "o", 2000*usdt)
	require.NoError(t, e.Withdraw(ctx(), owner, platform, 1000*usdt))

	transfersBefore := len(adapter.calls)
	require.NoError(t, e.SettleBet(ctx(), owner, id, true))

	// nenhuma transferência tentada; entra na fila com zero pago
	bet, _ := e.GetBet(id)
	require.Equal(t, registry.StatusPartiallyPaid, bet.Status)
	require.EqualValues(t, 0, bet.PaidAmount)
	require.EqualValues(t, 2000*usdt, bet.RemainingAmount)
	require.Equal(t, 0, bet.PaymentPercentage)
	require.Len(t, adapter.calls, transfersBefore)
	require.Equal(t, 1, e.QueueLen())
	require.Equal(t, 1, sink.count(ev.TypeBetAddedToQueue))
	require.Equal(t, 0, sink.count(ev.TypeBetPartiallyPaid))
}

// FIFO estrito: a aposta da frente segura as de trás até a liquidez dar.
func TestQueueStrictFIFOBlocking(t *testing.T) {
	e, _, _ := newTestEngine(0)

	idA, _ := e.PlaceBet(ctx(), alice, 1000*usdt, "e", "oA", 2000*usdt)
	idB, _ := e.PlaceBet(ctx(), bob, 1000*usdt, "e", "oB", 2000*usdt)
	require.NoError(t, e.Withdraw(ctx(), owner, platform, 2000*usdt))

	require.NoError(t, e.SettleBet(ctx(), owner, idA, true))
	require.NoError(t, e.SettleBet(ctx(), owner, idB, true))
	require.Equal(t, 2, e.QueueLen())

	require.NoError(t, e.RecordDeposit(ctx(), owner, 1000*usdt))
	require.NoError(t, e.ProcessPaymentQueue(ctx(), owner))

	// A leva tudo; B não recebe nada nesta rodada
	betA, _ := e.GetBet(idA)
	require.EqualValues(t, 1000*usdt, betA.PaidAmount)
	require.Equal(t, 50, betA.PaymentPercentage)

	betB, _ := e.GetBet(idB)
	require.EqualValues(t, 0, betB.PaidAmount)

	// ordem preservada
	stA, _ := e.PaymentStatus(idA)
	stB, _ := e.PaymentStatus(idB)
	require.Equal(t, 0, *stA.QueuePosition)
	require.Equal(t, 1, *stB.QueuePosition)

	// liquidez para ambos: fila esvazia
	require.NoError(t, e.RecordDeposit(ctx(), owner, 3000*usdt))
	require.NoError(t, e.ProcessPaymentQueue(ctx(), owner))

	betA, _ = e.GetBet(idA)
	betB, _ = e.GetBet(idB)
	require.Equal(t, registry.StatusFullyPaid, betA.Status)
	require.Equal(t, registry.StatusFullyPaid, betB.Status)
	require.Equal(t, 0, e.QueueLen())
}

func TestProcessEmptyQueue(t *testing.T) {
	e, _, _ := newTestEngine(0)
	require.ErrorIs(t, e.ProcessPaymentQueue(ctx(), owner), ErrEmptyQueue)
}

func TestProcessQueueWithoutFunds(t *testing.T) {
	e, adapter, _ := newTestEngine(0)
	id, _ := e.PlaceBet(ctx(), alice, 1000*usdt, "e", "o", 2000*usdt)
	require.NoError(t, e.Withdraw(ctx(), owner, platform, 1000*usdt))
	require.NoError(t, e.SettleBet(ctx(), owner, id, true))

	transfersBefore := len(adapter.calls)
	stats := e.QueueStats()

	// fila não-vazia com orçamento zero: completa sem pagar nada, sem erro
	require.NoError(t, e.ProcessPaymentQueue(ctx(), owner))
	require.Equal(t, stats, e.QueueStats())
	require.Len(t, adapter.calls, transfersBefore)
}

func TestSettleTransferFailureAborts(t *testing.T) {
	e, adapter, _ := newTestEngine(0)
	id, _ := e.PlaceBet(ctx(), alice, 1000*usdt, "e", "o", 2000*usdt)
	require.NoError(t, e.RecordDeposit(ctx(), owner, 5000*usdt))

	before := e.Ledger()
	adapter.failTransferAt = adapter.transferCount + 1

	require.ErrorIs(t, e.SettleBet(ctx(), owner, id, true), ErrTransferFailed)

	// abortada por inteiro: aposta segue Pending, ledger e fila intactos
	bet, _ := e.GetBet(id)
	require.Equal(t, registry.StatusPending, bet.Status)
	require.Equal(t, before, e.Ledger())
	require.Equal(t, 0, e.QueueLen())
}

func TestDrainTransferFailureStops(t *testing.T) {
	e, adapter, _ := newTestEngine(0)
	idA, _ := e.PlaceBet(ctx(), alice, 1000*usdt, "e", "oA", 500*usdt)
	idB, _ := e.PlaceBet(ctx(), bob, 1000*usdt, "e", "oB", 500*usdt)
	require.NoError(t, e.Withdraw(ctx(), owner, platform, 2000*usdt))
	require.NoError(t, e.SettleBet(ctx(), owner, idA, true))
	require.NoError(t, e.SettleBet(ctx(), owner, idB, true))

	require.NoError(t, e.RecordDeposit(ctx(), owner, 1000*usdt))

	// primeira transferência do dreno passa, segunda falha
	adapter.failTransferAt = adapter.transferCount + 2
	require.ErrorIs(t, e.ProcessPaymentQueue(ctx(), owner), ErrTransferFailed)

	// A foi paga e saiu; B não foi tocada e segue na frente da fila
	betA, _ := e.GetBet(idA)
	require.Equal(t, registry.StatusFullyPaid, betA.Status)

	betB, _ := e.GetBet(idB)
	require.EqualValues(t, 0, betB.PaidAmount)
	stB, _ := e.PaymentStatus(idB)
	require.Equal(t, 0, *stB.QueuePosition)
}

func TestCancelBetByBettor(t *testing.T) {
	e, adapter, sink := newTestEngine(5)
	require.NoError(t, e.RecordDeposit(ctx(), owner, 1000*usdt))
	id, _ := e.PlaceBet(ctx(), alice, 1000*usdt, "e", "o", 2000*usdt)

	require.NoError(t, e.CancelBet(ctx(), alice, id))

	bet, _ := e.GetBet(id)
	require.Equal(t, registry.StatusCancelled, bet.Status)

	// estorno devolve stake + taxa
	last := adapter.calls[len(adapter.calls)-1]
	require.Equal(t, transferCall{"transfer", alice, 1050 * usdt}, last)

	lv := e.Ledger()
	require.EqualValues(t, 0, lv.AccumulatedFees)
	require.EqualValues(t, 950*usdt, lv.CustodiedBalance)
	require.Equal(t, 1, sink.count(ev.TypeBetCancelled))

	// terminal
	require.ErrorIs(t, e.CancelBet(ctx(), alice, id), registry.ErrInvalidState)
	require.ErrorIs(t, e.SettleBet(ctx(), owner, id, true), registry.ErrInvalidState)
}

// Com a taxa já sacada do pool, o estorno integral é impossível: o cancel
// precisa falhar antes de mover qualquer token.
func TestCancelAfterFeesWithdrawn(t *testing.T) {
	e, adapter, _ := newTestEngine(5)
	id, _ := e.PlaceBet(ctx(), alice, 1000*usdt, "e", "oA", 2000*usdt)
	e.PlaceBet(ctx(), bob, 1000*usdt, "e", "oB", 2000*usdt)

	require.NoError(t, e.WithdrawFees(ctx(), owner, 100*usdt))

	before := e.Ledger()
	transfersBefore := len(adapter.calls)

	require.ErrorIs(t, e.CancelBet(ctx(), alice, id), ledger.ErrInsufficientFunds)

	// rejeitado antes de qualquer movimentação: sem transferência, aposta
	// segue Pending, ledger intacto
	require.Len(t, adapter.calls, transfersBefore)
	bet, _ := e.GetBet(id)
	require.Equal(t, registry.StatusPending, bet.Status)
	require.Equal(t, before, e.Ledger())

	// a aposta continua viva: liquidável normalmente
	require.NoError(t, e.SettleBet(ctx(), owner, id, false))
}

func TestCancelBetByStranger(t *testing.T) {
	e, _, _ := newTestEngine(5)
	require.NoError(t, e.RecordDeposit(ctx(), owner, 1000*usdt))
	id, _ := e.PlaceBet(ctx(), alice, 1000*usdt, "e", "o", 2000*usdt)

	require.ErrorIs(t, e.CancelBet(ctx(), mallory, id), ErrUnauthorized)

	// dono pode
	require.NoError(t, e.CancelBet(ctx(), owner, id))
}

func TestWithdrawOnlyToPlatformWallet(t *testing.T) {
	e, _, _ := newTestEngine(0)
	require.NoError(t, e.RecordDeposit(ctx(), owner, 1000*usdt))

	before := e.Ledger()
	err := e.Withdraw(ctx(), owner, mallory, 500*usdt)
	require.ErrorIs(t, err, ErrUnauthorizedDestination)
	require.Equal(t, before, e.Ledger())

	require.NoError(t, e.Withdraw(ctx(), owner, platform, 500*usdt))
}

func TestWithdrawBoundedByAvailable(t *testing.T) {
	e, _, _ := newTestEngine(0)
	id, _ := e.PlaceBet(ctx(), alice, 1000*usdt, "e", "o", 2000*usdt)
	require.NoError(t, e.Withdraw(ctx(), owner, platform, 800*usdt))
	require.NoError(t, e.SettleBet(ctx(), owner, id, true)) // paga 200, enfileira 1800

	// custódia zerou e o passivo da fila está reservado
	require.ErrorIs(t, e.Withdraw(ctx(), owner, platform, 1), ledger.ErrInsufficientFunds)

	// depósito novo continua reservado para a fila
	require.NoError(t, e.RecordDeposit(ctx(), owner, 1000*usdt))
	require.ErrorIs(t, e.Withdraw(ctx(), owner, platform, 1), ledger.ErrInsufficientFunds)
}

func TestWithdrawFees(t *testing.T) {
	e, adapter, sink := newTestEngine(5)
	e.PlaceBet(ctx(), alice, 1000*usdt, "e", "o", 2000*usdt)
	e.PlaceBet(ctx(), bob, 1000*usdt, "e", "o", 2000*usdt)

	require.ErrorIs(t, e.WithdrawFees(ctx(), owner, 101*usdt), ledger.ErrInsufficientFunds)

	require.NoError(t, e.WithdrawFees(ctx(), owner, 100*usdt))
	last := adapter.calls[len(adapter.calls)-1]
	require.Equal(t, transferCall{"transfer", feeWall, 100 * usdt}, last)
	require.EqualValues(t, 0, e.Ledger().AccumulatedFees)
	require.Equal(t, 1, sink.count(ev.TypeFeesWithdrawn))
}

func TestPaymentStatusNotInPayment(t *testing.T) {
	e, _, _ := newTestEngine(5)
	id, _ := e.PlaceBet(ctx(), alice, 1000*usdt, "e", "o", 2000*usdt)

	_, err := e.PaymentStatus(id)
	require.ErrorIs(t, err, registry.ErrInvalidState)

	_, err = e.PaymentStatus(99)
	require.ErrorIs(t, err, registry.ErrNotFound)
}

func TestFullyPaidHasNoQueuePosition(t *testing.T) {
	e, _, _ := newTestEngine(0)
	require.NoError(t, e.RecordDeposit(ctx(), owner, 5000*usdt))
	id, _ := e.PlaceBet(ctx(), alice, 1000*usdt, "e", "o", 2000*usdt)
	require.NoError(t, e.SettleBet(ctx(), owner, id, true))

	st, err := e.PaymentStatus(id)
	require.NoError(t, err)
	require.Equal(t, registry.StatusFullyPaid, st.Status)
	require.Nil(t, st.QueuePosition)
}

func TestUserBetsThroughEngine(t *testing.T) {
	e, _, _ := newTestEngine(5)
	e.PlaceBet(ctx(), alice, 100*usdt, "e1", "o1", 200*usdt)
	e.PlaceBet(ctx(), bob, 100*usdt, "e1", "o2", 200*usdt)
	e.PlaceBet(ctx(), alice, 100*usdt, "e2", "o1", 200*usdt)

	require.Equal(t, []int64{0, 2}, e.UserBets(alice))
}
