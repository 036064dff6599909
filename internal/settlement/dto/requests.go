package dto

// Valores monetários nos requests em micro-USDT (inteiro, 6 casas).

type PlaceBetRequest struct {
	Bettor       string `json:"bettor"`
	Stake        int64  `json:"stake"`
	EventID      string `json:"eventId"`
	OutcomeID    string `json:"outcomeId"`
	PotentialWin int64  `json:"potentialWin"`
}

type SettleBetRequest struct {
	Caller string `json:"caller"`
	BetID  int64  `json:"betId"`
	Won    bool   `json:"won"`
}

type CancelBetRequest struct {
	Caller string `json:"caller"`
	BetID  int64  `json:"betId"`
}

type ProcessQueueRequest struct {
	Caller string `json:"caller"`
}

type DepositRequest struct {
	Caller string `json:"caller"`
	Amount int64  `json:"amount"`
}

type WithdrawRequest struct {
	Caller      string `json:"caller"`
	Destination string `json:"destination"`
	Amount      int64  `json:"amount"`
}

type WithdrawFeesRequest struct {
	Caller string `json:"caller"`
	Amount int64  `json:"amount"`
}
