package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Métricas do motor de liquidação, registradas no registry default
// (expostas pelo servidor compartilhado de /metrics).
var (
	BetsPlaced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_bets_placed_total",
		Help: "Apostas registradas.",
	})

	BetsSettled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_bets_settled_total",
		Help: "Apostas liquidadas, por resultado.",
	}, []string{"outcome"}) // won | lost

	BetsCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_bets_cancelled_total",
		Help: "Apostas canceladas com estorno.",
	})

	PayoutMicros = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_payout_micro_usdt_total",
		Help: "Total pago a vencedores, em micro-USDT.",
	})

	TransferFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_transfer_failures_total",
		Help: "Transferências de token recusadas pelo adapter.",
	})

	QueueLength = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "settlement_payment_queue_length",
		Help: "Apostas aguardando na fila de pagamentos.",
	})

	CommittedLiability = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "settlement_committed_liability_micro_usdt",
		Help: "Passivo comprometido com a fila, em micro-USDT.",
	})

	QueueDrainRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_queue_drain_runs_total",
		Help: "Execuções do processamento da fila de pagamentos.",
	})
)
