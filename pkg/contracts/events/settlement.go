package events

import (
	"encoding/json"
	"time"
)

// Tipos de evento publicados no tópico settlement_events.
const (
	TypeBetPlaced           = "bet_placed"
	TypeBetSettled          = "bet_settled"
	TypeBetPartiallyPaid    = "bet_partially_paid"
	TypeBetFullyPaid        = "bet_fully_paid"
	TypeBetAddedToQueue     = "bet_added_to_payment_queue"
	TypeBetCancelled        = "bet_cancelled"
	TypeFeesWithdrawn       = "fees_withdrawn"
	TypeWithdrawal          = "withdrawal"
	TypePaymentQueueDrained = "payment_queue_drained"
)

// Envelope encapsula qualquer evento de liquidação publicado no Kafka.
// O payload é o struct correspondente ao Type, serializado em JSON.
type Envelope struct {
	ID      string          `json:"id"` // uuid do evento
	Type    string          `json:"type"`
	Ts      time.Time       `json:"ts"`
	Payload json.RawMessage `json:"payload"`
}

// Valores monetários sempre em micro-USDT (6 casas decimais, inteiro).

type BetPlaced struct {
	BetID        int64  `json:"bet_id"`
	Bettor       string `json:"bettor"`
	Stake        int64  `json:"stake"`
	Fee          int64  `json:"fee"`
	EventID      string `json:"event_id"`
	OutcomeID    string `json:"outcome_id"`
	PotentialWin int64  `json:"potential_win"`
}

type BetSettled struct {
	BetID  int64  `json:"bet_id"`
	Bettor string `json:"bettor"`
	Won    bool   `json:"won"`
	Amount int64  `json:"amount"` // valor pago na liquidação (0 se perdeu)
}

type BetPartiallyPaid struct {
	BetID             int64  `json:"bet_id"`
	Bettor            string `json:"bettor"`
	Amount            int64  `json:"amount"` // valor deste pagamento
	PaidAmount        int64  `json:"paid_amount"`
	RemainingAmount   int64  `json:"remaining_amount"`
	PaymentPercentage int    `json:"payment_percentage"`
}

type BetFullyPaid struct {
	BetID       int64  `json:"bet_id"`
	Bettor      string `json:"bettor"`
	Amount      int64  `json:"amount"` // valor do pagamento final
	TotalAmount int64  `json:"total_amount"`
}

type BetAddedToPaymentQueue struct {
	BetID         int64  `json:"bet_id"`
	Bettor        string `json:"bettor"`
	PendingAmount int64  `json:"pending_amount"`
}

type BetCancelled struct {
	BetID        int64  `json:"bet_id"`
	Bettor       string `json:"bettor"`
	RefundAmount int64  `json:"refund_amount"`
}

type FeesWithdrawn struct {
	Destination string `json:"destination"`
	Amount      int64  `json:"amount"`
}

type Withdrawal struct {
	Destination string `json:"destination"`
	Amount      int64  `json:"amount"`
}

// PaymentQueueDrained é emitido quando um processamento esvazia a fila.
type PaymentQueueDrained struct {
	BetsPaid  int   `json:"bets_paid"`
	TotalPaid int64 `json:"total_paid"`
}
