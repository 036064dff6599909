package cache

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// PaymentState é a visão cacheada do pagamento de uma aposta, servida
// às consultas de status sem bater no banco.
type PaymentState struct {
	BetID             int64     `json:"betId"`
	Status            string    `json:"status"`
	PaidAmount        int64     `json:"paidAmount"`
	RemainingAmount   int64     `json:"remainingAmount"`
	PaymentPercentage int       `json:"paymentPercentage"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// RedisCache encapsula o cache de status de pagamento no Redis
// Client: cliente Redis
// TTL: tempo de expiração dos registros
type RedisCache struct {
	Client *redis.Client
	TTL    time.Duration
}

// NewRedisCache cria uma instância de cache Redis com TTL configurável
func NewRedisCache(c *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{Client: c, TTL: ttl}
}

// key gera a chave Redis para o status de pagamento de uma aposta
func key(betID int64) string { return "payment:bet:" + strconv.FormatInt(betID, 10) }

// SetPayment armazena o estado de pagamento de uma aposta com TTL definido
func (r *RedisCache) SetPayment(ctx context.Context, st PaymentState) error {
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return r.Client.Set(ctx, key(st.BetID), b, r.TTL).Err()
}

// GetPayment recupera o estado de pagamento cacheado; found=false em miss
func (r *RedisCache) GetPayment(ctx context.Context, betID int64) (PaymentState, bool, error) {
	b, err := r.Client.Get(ctx, key(betID)).Bytes()
	if err == redis.Nil {
		return PaymentState{}, false, nil
	}
	if err != nil {
		return PaymentState{}, false, err
	}
	var st PaymentState
	if err := json.Unmarshal(b, &st); err != nil {
		return PaymentState{}, false, err
	}
	return st, true, nil
}
