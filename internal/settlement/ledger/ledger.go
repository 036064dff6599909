package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvariantViolation indica bug de contabilidade. Nunca deve ser
	// alcançável em operação normal; quem recebe trata como fatal.
	ErrInvariantViolation = errors.New("ledger invariant violation")
)

// Ledger é a fonte única de verdade sobre quanto pode ser pago agora.
// Contabilidade pura, em micro-USDT (int64): saldo custodiado, taxas
// acumuladas da plataforma e passivo comprometido com a fila de pagamentos.
//
// Não é thread-safe; o motor de liquidação serializa todo acesso.
type Ledger struct {
	custodied int64 // saldo total sob custódia (espelho do saldo do token)
	fees      int64 // taxas acumuladas ainda não sacadas
	committed int64 // soma dos remainingAmount das apostas na fila
}

func New() *Ledger { return &Ledger{} }

// AvailableForPayouts retorna o saldo livre para NOVAS decisões de pagamento:
// custódia menos taxas menos passivo já prometido à fila.
// Quando apostas entram na fila sem liquidez, o passivo pode exceder a
// custódia; nesse caso o disponível é zero (nunca negativo).
func (l *Ledger) AvailableForPayouts() int64 {
	avail := l.custodied - l.fees - l.committed
	if avail < 0 {
		return 0
	}
	return avail
}

// DrainBudget retorna o teto de pagamento durante o processamento da fila.
// O passivo da própria fila não é subtraído: é exatamente ele que está sendo
// liberado, na ordem FIFO. Apenas as taxas permanecem protegidas.
func (l *Ledger) DrainBudget() int64 {
	budget := l.custodied - l.fees
	if budget < 0 {
		return 0
	}
	return budget
}

// CustodiedBalance retorna o saldo total sob custódia.
func (l *Ledger) CustodiedBalance() int64 { return l.custodied }

// AccumulatedFees retorna as taxas acumuladas não sacadas.
func (l *Ledger) AccumulatedFees() int64 { return l.fees }

// CommittedLiability retorna o passivo comprometido com a fila.
func (l *Ledger) CommittedLiability() int64 { return l.committed }

// RecordDeposit credita um depósito na custódia.
func (l *Ledger) RecordDeposit(amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: deposit amount %d", ErrInvariantViolation, amount)
	}
	l.custodied += amount
	return nil
}

// RecordFeeAccrual provisiona a taxa de uma aposta recém colocada.
// O valor já faz parte da custódia (veio dentro do stake).
func (l *Ledger) RecordFeeAccrual(amount int64) error {
	if amount < 0 {
		return fmt.Errorf("%w: fee accrual %d", ErrInvariantViolation, amount)
	}
	l.fees += amount
	return nil
}

// RecordPayout debita um pagamento da custódia. O chamador já verificou o
// teto (AvailableForPayouts na liquidação, DrainBudget no dreno da fila);
// a checagem aqui é defensiva.
func (l *Ledger) RecordPayout(amount int64) error {
	if amount <= 0 || amount > l.custodied-l.fees {
		return fmt.Errorf("%w: payout %d exceeds custodied %d minus fees %d",
			ErrInvariantViolation, amount, l.custodied, l.fees)
	}
	l.custodied -= amount
	return nil
}

// CommitLiability reserva o valor ainda devido de uma aposta enfileirada,
// para que não seja prometido duas vezes.
func (l *Ledger) CommitLiability(amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: commit liability %d", ErrInvariantViolation, amount)
	}
	l.committed += amount
	return nil
}

// ReleaseLiability libera passivo conforme a fila é paga.
func (l *Ledger) ReleaseLiability(amount int64) error {
	if amount <= 0 || amount > l.committed {
		return fmt.Errorf("%w: release %d of committed %d", ErrInvariantViolation, amount, l.committed)
	}
	l.committed -= amount
	return nil
}

// RecordFeeWithdrawal debita um saque de taxas (custódia e pool de taxas
// caem juntos).
func (l *Ledger) RecordFeeWithdrawal(amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: fee withdrawal %d", ErrInvariantViolation, amount)
	}
	if amount > l.fees {
		return ErrInsufficientFunds
	}
	l.fees -= amount
	l.custodied -= amount
	return nil
}

// RecordWithdrawal debita um saque da plataforma, limitado ao disponível
// (nunca toca taxas nem o passivo da fila).
func (l *Ledger) RecordWithdrawal(amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: withdrawal %d", ErrInvariantViolation, amount)
	}
	if amount > l.AvailableForPayouts() {
		return ErrInsufficientFunds
	}
	l.custodied -= amount
	return nil
}

// RecordRefund reverte uma aposta cancelada: devolve stake + taxa e desfaz a
// provisão da taxa.
func (l *Ledger) RecordRefund(stake, fee int64) error {
	refund := stake + fee
	if stake <= 0 || fee < 0 || refund > l.custodied || fee > l.fees {
		return fmt.Errorf("%w: refund stake=%d fee=%d custodied=%d fees=%d",
			ErrInvariantViolation, stake, fee, l.custodied, l.fees)
	}
	l.custodied -= refund
	l.fees -= fee
	return nil
}
