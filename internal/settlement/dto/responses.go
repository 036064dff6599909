package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/usdt-settlement-engine/internal/settlement/registry"
)

// UsdtString converte micro-USDT para a representação humana com 6 casas.
func UsdtString(micro int64) string {
	return decimal.NewFromInt(micro).Shift(-registry.USDTDecimals).String()
}

type PlaceBetResponse struct {
	BetID int64  `json:"betId"`
	Fee   int64  `json:"fee"`
	Stake string `json:"stakeUsdt"`
}

type BetResponse struct {
	BetID             int64     `json:"betId"`
	Bettor            string    `json:"bettor"`
	Stake             int64     `json:"stake"`
	StakeUsdt         string    `json:"stakeUsdt"`
	EventID           string    `json:"eventId"`
	OutcomeID         string    `json:"outcomeId"`
	PotentialWin      int64     `json:"potentialWin"`
	PotentialWinUsdt  string    `json:"potentialWinUsdt"`
	Fee               int64     `json:"fee"`
	Won               bool      `json:"won"`
	Status            string    `json:"status"`
	PaidAmount        int64     `json:"paidAmount"`
	RemainingAmount   int64     `json:"remainingAmount"`
	PaymentPercentage int       `json:"paymentPercentage"`
	PlacedAt          time.Time `json:"placedAt"`
}

func NewBetResponse(b registry.Bet) BetResponse {
	return BetResponse{
		BetID:             b.ID,
		Bettor:            b.Bettor.Hex(),
		Stake:             b.Stake,
		StakeUsdt:         UsdtString(b.Stake),
		EventID:           b.EventID,
		OutcomeID:         b.OutcomeID,
		PotentialWin:      b.PotentialWin,
		PotentialWinUsdt:  UsdtString(b.PotentialWin),
		Fee:               b.Fee,
		Won:               b.Won,
		Status:            b.Status.String(),
		PaidAmount:        b.PaidAmount,
		RemainingAmount:   b.RemainingAmount,
		PaymentPercentage: b.PaymentPercentage,
		PlacedAt:          b.PlacedAt,
	}
}

type PaymentStatusResponse struct {
	BetID               int64  `json:"betId"`
	Status              string `json:"status"`
	PaidAmount          int64  `json:"paidAmount"`
	PaidAmountUsdt      string `json:"paidAmountUsdt"`
	RemainingAmount     int64  `json:"remainingAmount"`
	RemainingAmountUsdt string `json:"remainingAmountUsdt"`
	PaymentPercentage   int    `json:"paymentPercentage"`
	QueuePosition       *int   `json:"queuePosition"`
}

type QueueStatsResponse struct {
	Length                 int    `json:"length"`
	CommittedLiability     int64  `json:"committedLiability"`
	CommittedLiabilityUsdt string `json:"committedLiabilityUsdt"`
}

type LedgerResponse struct {
	CustodiedBalance    int64  `json:"custodiedBalance"`
	AccumulatedFees     int64  `json:"accumulatedFees"`
	CommittedLiability  int64  `json:"committedLiability"`
	AvailableForPayouts int64  `json:"availableForPayouts"`
	AvailableUsdt       string `json:"availableUsdt"`
}

type UserBetsResponse struct {
	Bettor string  `json:"bettor"`
	BetIDs []int64 `json:"betIds"`
}

// NewPaymentStatusUsdt monta a resposta de status de pagamento.
func NewPaymentStatusUsdt(betID int64, status string, paid, remaining int64, pct int, pos *int) PaymentStatusResponse {
	return PaymentStatusResponse{
		BetID:               betID,
		Status:              status,
		PaidAmount:          paid,
		PaidAmountUsdt:      UsdtString(paid),
		RemainingAmount:     remaining,
		RemainingAmountUsdt: UsdtString(remaining),
		PaymentPercentage:   pct,
		QueuePosition:       pos,
	}
}
