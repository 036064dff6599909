package registry

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// USDTDecimals é a escala do token (micro-USDT).
	USDTDecimals = 6

	// MaxBet limita a exposição por aposta: 9999 USDT em micro unidades.
	MaxBet = 9999 * 1_000_000

	// MaxPotentialWin limita a premiação a odds de 100x sobre o teto do
	// stake; também mantém paid×100 longe do limite de int64.
	MaxPotentialWin = 100 * MaxBet
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrNotFound      = errors.New("bet not found")
	ErrInvalidState  = errors.New("invalid bet state")
	ErrOverpayment   = errors.New("payment exceeds remaining amount")
)

// Registry guarda as apostas e aplica as transições de estado. Ids são
// inteiros crescentes atribuídos na criação, nunca reutilizados.
//
// Não é thread-safe; o motor de liquidação serializa todo acesso e é o
// único mutador.
type Registry struct {
	feePercent int64
	bets       []*Bet
	userBets   map[common.Address][]int64 // em ordem de colocação
	now        func() time.Time
}

func New(feePercent int64) *Registry {
	return &Registry{
		feePercent: feePercent,
		userBets:   make(map[common.Address][]int64),
		now:        time.Now,
	}
}

// ValidateBet checa os limites de uma aposta antes de qualquer movimentação
// de fundos.
func ValidateBet(stake, potentialWin int64) error {
	if stake <= 0 || stake > MaxBet {
		return fmt.Errorf("%w: stake %d", ErrInvalidAmount, stake)
	}
	if potentialWin <= 0 || potentialWin > MaxPotentialWin {
		return fmt.Errorf("%w: potential win %d", ErrInvalidAmount, potentialWin)
	}
	return nil
}

// PlaceBet valida e registra uma aposta Pending, retornando o id atribuído.
func (r *Registry) PlaceBet(bettor common.Address, stake int64, eventID, outcomeID string, potentialWin int64) (int64, error) {
	if err := ValidateBet(stake, potentialWin); err != nil {
		return 0, err
	}

	b := &Bet{
		ID:           int64(len(r.bets)),
		Bettor:       bettor,
		Stake:        stake,
		EventID:      eventID,
		OutcomeID:    outcomeID,
		PotentialWin: potentialWin,
		Fee:          stake * r.feePercent / 100,
		Status:       StatusPending,
		PlacedAt:     r.now(),
	}
	r.bets = append(r.bets, b)
	r.userBets[bettor] = append(r.userBets[bettor], b.ID)
	return b.ID, nil
}

// Get retorna uma cópia da aposta.
func (r *Registry) Get(betID int64) (Bet, error) {
	b, err := r.get(betID)
	if err != nil {
		return Bet{}, err
	}
	return *b, nil
}

// UserBets retorna os ids das apostas do usuário em ordem de colocação.
func (r *Registry) UserBets(bettor common.Address) []int64 {
	ids := r.userBets[bettor]
	out := make([]int64, len(ids))
	copy(out, ids)
	return out
}

// Count retorna o total de apostas já registradas.
func (r *Registry) Count() int { return len(r.bets) }

// MarkSettled liquida uma aposta Pending. Se perdida, estado terminal
// Settled; se ganha, abre o sub-estado de pagamento com tudo por pagar.
func (r *Registry) MarkSettled(betID int64, won bool) error {
	b, err := r.get(betID)
	if err != nil {
		return err
	}
	if b.Status != StatusPending {
		return fmt.Errorf("%w: bet %d is %s", ErrInvalidState, betID, b.Status)
	}

	b.Won = won
	if !won {
		b.Status = StatusSettled
		return nil
	}

	b.Status = StatusPartiallyPaid
	b.PaidAmount = 0
	b.RemainingAmount = b.PotentialWin
	b.PaymentPercentage = 0
	return nil
}

// MarkCancelled cancela uma aposta Pending. O estorno é responsabilidade
// do chamador.
func (r *Registry) MarkCancelled(betID int64) error {
	b, err := r.get(betID)
	if err != nil {
		return err
	}
	if b.Status != StatusPending {
		return fmt.Errorf("%w: bet %d is %s", ErrInvalidState, betID, b.Status)
	}
	b.Status = StatusCancelled
	return nil
}

// ApplyPayment registra um pagamento (parcial ou final) de uma aposta ganha.
// Pagamentos são monotônicos: PaidAmount nunca diminui.
func (r *Registry) ApplyPayment(betID int64, amount int64) error {
	b, err := r.get(betID)
	if err != nil {
		return err
	}
	if b.Status != StatusPartiallyPaid {
		return fmt.Errorf("%w: bet %d is %s", ErrInvalidState, betID, b.Status)
	}
	if amount <= 0 {
		return fmt.Errorf("%w: payment %d", ErrInvalidAmount, amount)
	}
	if amount > b.RemainingAmount {
		return fmt.Errorf("%w: payment %d, remaining %d", ErrOverpayment, amount, b.RemainingAmount)
	}

	b.PaidAmount += amount
	b.RemainingAmount -= amount
	b.PaymentPercentage = int(b.PaidAmount * 100 / b.PotentialWin)
	b.LastPaymentTime = r.now()
	if b.RemainingAmount == 0 {
		b.Status = StatusFullyPaid
	}
	return nil
}

func (r *Registry) get(betID int64) (*Bet, error) {
	if betID < 0 || betID >= int64(len(r.bets)) {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, betID)
	}
	return r.bets[betID], nil
}
