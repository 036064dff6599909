package topics

const (
	// Eventos de liquidação e pagamentos parciais
	SettlementEvents = "settlement_events"

	// DLQ
	SettlementEventsDLQ = "settlement_events_dlq"
)
