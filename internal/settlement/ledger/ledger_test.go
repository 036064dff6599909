package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const usdt = int64(1_000_000) // 1 USDT em micro unidades

func TestAvailableForPayouts(t *testing.T) {
	l := New()
	require.EqualValues(t, 0, l.AvailableForPayouts())

	require.NoError(t, l.RecordDeposit(5000*usdt))
	require.NoError(t, l.RecordFeeAccrual(50*usdt))
	require.EqualValues(t, 4950*usdt, l.AvailableForPayouts())

	require.NoError(t, l.CommitLiability(2000*usdt))
	require.EqualValues(t, 2950*usdt, l.AvailableForPayouts())
}

func TestAvailableNeverNegative(t *testing.T) {
	l := New()
	require.NoError(t, l.RecordDeposit(100*usdt))

	// aposta enfileirada sem liquidez: passivo excede custódia
	require.NoError(t, l.CommitLiability(2000*usdt))
	require.EqualValues(t, 0, l.AvailableForPayouts())
	require.EqualValues(t, 100*usdt, l.DrainBudget())
}

func TestDrainBudgetProtectsFees(t *testing.T) {
	l := New()
	require.NoError(t, l.RecordDeposit(1000*usdt))
	require.NoError(t, l.RecordFeeAccrual(50*usdt))
	require.NoError(t, l.CommitLiability(1500*usdt))

	// o dreno ignora o passivo (é ele que está sendo liberado), mas nunca
	// come as taxas
	require.EqualValues(t, 950*usdt, l.DrainBudget())
}

func TestRecordPayoutBounds(t *testing.T) {
	l := New()
	require.NoError(t, l.RecordDeposit(1000*usdt))
	require.NoError(t, l.RecordFeeAccrual(50*usdt))

	require.ErrorIs(t, l.RecordPayout(951*usdt), ErrInvariantViolation)
	require.NoError(t, l.RecordPayout(950*usdt))
	require.EqualValues(t, 50*usdt, l.CustodiedBalance())
	require.EqualValues(t, 50*usdt, l.AccumulatedFees())
}

func TestLiabilityLifecycle(t *testing.T) {
	l := New()
	require.NoError(t, l.RecordDeposit(500*usdt))
	require.NoError(t, l.CommitLiability(1500*usdt))

	require.NoError(t, l.ReleaseLiability(500*usdt))
	require.EqualValues(t, 1000*usdt, l.CommittedLiability())

	require.ErrorIs(t, l.ReleaseLiability(1001*usdt), ErrInvariantViolation)
}

func TestFeeWithdrawal(t *testing.T) {
	l := New()
	require.NoError(t, l.RecordDeposit(1000*usdt))
	require.NoError(t, l.RecordFeeAccrual(50*usdt))

	require.ErrorIs(t, l.RecordFeeWithdrawal(51*usdt), ErrInsufficientFunds)
	require.NoError(t, l.RecordFeeWithdrawal(50*usdt))
	require.EqualValues(t, 0, l.AccumulatedFees())
	require.EqualValues(t, 950*usdt, l.CustodiedBalance())
}

func TestWithdrawalBoundedByAvailable(t *testing.T) {
	l := New()
	require.NoError(t, l.RecordDeposit(1000*usdt))
	require.NoError(t, l.RecordFeeAccrual(50*usdt))
	require.NoError(t, l.CommitLiability(300*usdt))

	require.ErrorIs(t, l.RecordWithdrawal(651*usdt), ErrInsufficientFunds)
	require.NoError(t, l.RecordWithdrawal(650*usdt))

	// taxas e passivo da fila permanecem cobertos
	require.EqualValues(t, 350*usdt, l.CustodiedBalance())
	require.EqualValues(t, 0, l.AvailableForPayouts())
}

func TestRefundReversesFeeAccrual(t *testing.T) {
	l := New()
	require.NoError(t, l.RecordDeposit(1000*usdt)) // float da casa
	require.NoError(t, l.RecordDeposit(1000*usdt)) // stake da aposta
	require.NoError(t, l.RecordFeeAccrual(50*usdt))

	// estorno devolve stake + taxa; a taxa sai da custódia da casa
	require.NoError(t, l.RecordRefund(1000*usdt, 50*usdt))
	require.EqualValues(t, 950*usdt, l.CustodiedBalance())
	require.EqualValues(t, 0, l.AccumulatedFees())

	// estorno maior que a custódia é bug, nunca fluxo normal
	require.ErrorIs(t, l.RecordRefund(5000*usdt, 0), ErrInvariantViolation)
}
