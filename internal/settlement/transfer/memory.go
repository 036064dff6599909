package transfer

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Memory é um token em memória para ambiente local e testes de integração:
// mantém saldos por endereço e move valores entre eles sem rede.
type Memory struct {
	mu       sync.Mutex
	operator common.Address
	balances map[common.Address]int64
}

func NewMemory(operator common.Address) *Memory {
	return &Memory{
		operator: operator,
		balances: make(map[common.Address]int64),
	}
}

// Mint credita saldo a um endereço (setup de ambiente local).
func (m *Memory) Mint(addr common.Address, amount int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[addr] += amount
}

// BalanceOf retorna o saldo do endereço.
func (m *Memory) BalanceOf(addr common.Address) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[addr]
}

func (m *Memory) Transfer(_ context.Context, to common.Address, amount int64) error {
	return m.move(m.operator, to, amount)
}

func (m *Memory) TransferFrom(_ context.Context, from common.Address, amount int64) error {
	return m.move(from, m.operator, amount)
}

func (m *Memory) move(from, to common.Address, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if amount <= 0 {
		return fmt.Errorf("invalid transfer amount %d", amount)
	}
	if m.balances[from] < amount {
		return fmt.Errorf("token balance of %s is %d, need %d", from.Hex(), m.balances[from], amount)
	}
	m.balances[from] -= amount
	m.balances[to] += amount
	return nil
}
