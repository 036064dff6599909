package engine

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/radieske/usdt-settlement-engine/internal/settlement/registry"
)

// PaymentStatus é a visão de pagamento de uma aposta, para a camada de
// consulta. QueuePosition é nil quando a aposta não está na fila.
type PaymentStatus struct {
	BetID             int64
	Status            registry.Status
	PaidAmount        int64
	RemainingAmount   int64
	PaymentPercentage int
	QueuePosition     *int
}

// QueueStats resume o estado da fila de pagamentos.
type QueueStats struct {
	Length             int
	CommittedLiability int64
}

// LedgerView é um snapshot dos saldos contábeis.
type LedgerView struct {
	CustodiedBalance    int64
	AccumulatedFees     int64
	CommittedLiability  int64
	AvailableForPayouts int64
}

// GetBet retorna a aposta.
func (e *Engine) GetBet(betID int64) (registry.Bet, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.Get(betID)
}

// UserBets retorna os ids das apostas do usuário em ordem de colocação.
func (e *Engine) UserBets(bettor common.Address) []int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.UserBets(bettor)
}

// PaymentStatus retorna o sub-estado de pagamento de uma aposta ganha.
func (e *Engine) PaymentStatus(betID int64) (PaymentStatus, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	bet, err := e.registry.Get(betID)
	if err != nil {
		return PaymentStatus{}, err
	}
	if bet.Status != registry.StatusPartiallyPaid && bet.Status != registry.StatusFullyPaid {
		return PaymentStatus{}, fmt.Errorf("%w: bet %d is %s, not in payment", registry.ErrInvalidState, betID, bet.Status)
	}

	st := PaymentStatus{
		BetID:             betID,
		Status:            bet.Status,
		PaidAmount:        bet.PaidAmount,
		RemainingAmount:   bet.RemainingAmount,
		PaymentPercentage: bet.PaymentPercentage,
	}
	if pos, ok := e.queue.PositionOf(betID); ok {
		st.QueuePosition = &pos
	}
	return st, nil
}

// QueueStats retorna tamanho da fila e passivo comprometido.
func (e *Engine) QueueStats() QueueStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return QueueStats{
		Length:             e.queue.Len(),
		CommittedLiability: e.ledger.CommittedLiability(),
	}
}

// QueueLen retorna só o tamanho da fila (gatilho periódico usa pra decidir
// se vale disparar o dreno).
func (e *Engine) QueueLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.queue.Len()
}

// Ledger retorna o snapshot contábil.
func (e *Engine) Ledger() LedgerView {
	e.mu.Lock()
	defer e.mu.Unlock()
	return LedgerView{
		CustodiedBalance:    e.ledger.CustodiedBalance(),
		AccumulatedFees:     e.ledger.AccumulatedFees(),
		CommittedLiability:  e.ledger.CommittedLiability(),
		AvailableForPayouts: e.ledger.AvailableForPayouts(),
	}
}
