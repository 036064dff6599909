package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/radieske/usdt-settlement-engine/pkg/contracts/events"
)

// PostgresRepo mantém o espelho de apostas e o histórico de pagamentos
// no Postgres. O motor de liquidação é a fonte da verdade; aqui é só
// leitura de consulta e auditoria.
type PostgresRepo struct {
	DB *sql.DB
}

// NewPostgresRepo retorna uma instância de repositório Postgres
func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{DB: db}
}

// InsertBet registra uma aposta recém-colocada no espelho
func (r *PostgresRepo) InsertBet(ctx context.Context, e events.BetPlaced, ts time.Time) error {
	const q = `
		INSERT INTO bets_mirror
		  (bet_id, bettor, stake, fee, event_id, outcome_id, potential_win, status, paid_amount, remaining_amount, payment_percentage, updated_at)
		VALUES
		  ($1,$2,$3,$4,$5,$6,$7,'Pending',0,0,0,$8)
		ON CONFLICT (bet_id) DO NOTHING
	`
	_, err := r.DB.ExecContext(ctx, q,
		e.BetID, e.Bettor, e.Stake, e.Fee,
		e.EventID, e.OutcomeID, e.PotentialWin, ts,
	)
	return err
}

// UpdateStatus atualiza o status do espelho sem mexer nos valores pagos
func (r *PostgresRepo) UpdateStatus(ctx context.Context, betID int64, status string, ts time.Time) error {
	const q = `
		UPDATE bets_mirror SET status = $2, updated_at = $3 WHERE bet_id = $1
	`
	_, err := r.DB.ExecContext(ctx, q, betID, status, ts)
	return err
}

// UpdatePayment atualiza o sub-estado de pagamento do espelho
func (r *PostgresRepo) UpdatePayment(ctx context.Context, betID int64, status string, paid, remaining int64, pct int, ts time.Time) error {
	const q = `
		UPDATE bets_mirror SET
		  status             = $2,
		  paid_amount        = $3,
		  remaining_amount   = $4,
		  payment_percentage = $5,
		  updated_at         = $6
		WHERE bet_id = $1
	`
	_, err := r.DB.ExecContext(ctx, q, betID, status, paid, remaining, pct, ts)
	return err
}

// InsertPayout adiciona uma linha ao histórico de pagamentos da aposta
func (r *PostgresRepo) InsertPayout(ctx context.Context, betID int64, amount int64, pctAfter int, ts time.Time) error {
	const q = `
		INSERT INTO payout_history
		  (bet_id, amount, percentage_after, paid_at)
		VALUES
		  ($1,$2,$3,$4)
	`
	_, err := r.DB.ExecContext(ctx, q, betID, amount, pctAfter, ts)
	return err
}

// InsertTreasuryMovement registra saques de taxas e retiradas da tesouraria
func (r *PostgresRepo) InsertTreasuryMovement(ctx context.Context, kind, destination string, amount int64, ts time.Time) error {
	const q = `
		INSERT INTO treasury_movements
		  (kind, destination, amount, moved_at)
		VALUES
		  ($1,$2,$3,$4)
	`
	_, err := r.DB.ExecContext(ctx, q, kind, destination, amount, ts)
	return err
}
