// Package transfer define o primitivo de movimentação do token USDT usado
// pelo motor de liquidação. Toda transferência é falível e checada de forma
// síncrona; o motor nunca repete uma transferência que falhou dentro da
// mesma operação.
package transfer

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// Adapter é a capacidade de mover tokens de e para a custódia da plataforma.
// Valores em micro-USDT.
type Adapter interface {
	// Transfer envia tokens da custódia para o destino.
	Transfer(ctx context.Context, to common.Address, amount int64) error

	// TransferFrom puxa tokens do apostador para a custódia (exige
	// allowance prévio no caso ERC-20).
	TransferFrom(ctx context.Context, from common.Address, amount int64) error
}
