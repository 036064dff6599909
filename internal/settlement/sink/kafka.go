// Package sink publica os eventos do motor de liquidação para as camadas
// externas (worker de espelhamento, notificações). Entrega fire-and-forget,
// at-least-once; o sink nunca realimenta o estado do motor.
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	skafka "github.com/radieske/usdt-settlement-engine/internal/shared/kafka"
	"github.com/radieske/usdt-settlement-engine/pkg/contracts/events"
)

type Kafka struct {
	writer *kafkago.Writer
}

func NewKafka(w *kafkago.Writer) *Kafka { return &Kafka{writer: w} }

// Publish envelopa e envia um evento. A key particiona por aposta, mantendo
// a ordem dos eventos de uma mesma aposta.
func (k *Kafka) Publish(ctx context.Context, key string, eventType string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	env := events.Envelope{
		ID:      uuid.NewString(),
		Type:    eventType,
		Ts:      time.Now().UTC(),
		Payload: raw,
	}
	b, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	return skafka.WriteJSON(ctx, k.writer, key, b)
}
