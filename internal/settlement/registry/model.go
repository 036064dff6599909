package registry

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Status é o ciclo de vida de uma aposta. A numeração segue o enum do
// contrato original para manter compatibilidade com os espelhos off-chain.
type Status int

const (
	StatusPending       Status = iota // aguardando liquidação
	StatusSettled                     // liquidada como perdida (terminal)
	StatusPartiallyPaid               // ganha, pagamento incompleto (na fila)
	StatusFullyPaid                   // ganha e paga por inteiro (terminal)
	StatusCancelled                   // cancelada antes da liquidação (terminal)
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusSettled:
		return "Settled"
	case StatusPartiallyPaid:
		return "PartiallyPaid"
	case StatusFullyPaid:
		return "FullyPaid"
	case StatusCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Bet é o registro autoritativo de uma aposta. Valores em micro-USDT.
type Bet struct {
	ID           int64
	Bettor       common.Address
	Stake        int64
	EventID      string
	OutcomeID    string
	PotentialWin int64
	Fee          int64 // floor(stake × feePercent / 100)
	Won          bool
	Status       Status

	// Sub-estado de pagamento, válido após liquidação como ganha.
	// Invariante: PaidAmount + RemainingAmount == PotentialWin.
	PaidAmount        int64
	RemainingAmount   int64
	PaymentPercentage int // floor(paid × 100 / potentialWin)

	PlacedAt        time.Time
	LastPaymentTime time.Time
}
