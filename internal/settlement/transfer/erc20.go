package transfer

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

const erc20TransferABI = `[
	{"name":"transfer","type":"function","inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"name":"transferFrom","type":"function","inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`

const transferGasLimit = 100_000

// ERC20 executa transferências do token via JSON-RPC, assinadas pela chave
// do operador (a conta que custodia os fundos). Cada chamada envia uma
// transação e espera a mineração; receipt com status de falha vira erro.
type ERC20 struct {
	client   *ethclient.Client
	token    common.Address
	key      *ecdsa.PrivateKey
	operator common.Address
	chainID  *big.Int
	abi      abi.ABI
}

func NewERC20(rpcURL string, token common.Address, operatorKeyHex string, chainID int64) (*ERC20, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial eth rpc: %w", err)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(operatorKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse operator key: %w", err)
	}

	parsed, err := abi.JSON(strings.NewReader(erc20TransferABI))
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}

	return &ERC20{
		client:   client,
		token:    token,
		key:      key,
		operator: crypto.PubkeyToAddress(key.PublicKey),
		chainID:  big.NewInt(chainID),
		abi:      parsed,
	}, nil
}

// Operator retorna o endereço da conta custodiante.
func (e *ERC20) Operator() common.Address { return e.operator }

func (e *ERC20) Transfer(ctx context.Context, to common.Address, amount int64) error {
	data, err := e.abi.Pack("transfer", to, big.NewInt(amount))
	if err != nil {
		return fmt.Errorf("pack transfer: %w", err)
	}
	return e.send(ctx, data)
}

func (e *ERC20) TransferFrom(ctx context.Context, from common.Address, amount int64) error {
	data, err := e.abi.Pack("transferFrom", from, e.operator, big.NewInt(amount))
	if err != nil {
		return fmt.Errorf("pack transferFrom: %w", err)
	}
	return e.send(ctx, data)
}

func (e *ERC20) send(ctx context.Context, data []byte) error {
	nonce, err := e.client.PendingNonceAt(ctx, e.operator)
	if err != nil {
		return fmt.Errorf("pending nonce: %w", err)
	}
	gasPrice, err := e.client.SuggestGasPrice(ctx)
	if err != nil {
		return fmt.Errorf("suggest gas price: %w", err)
	}

	tx := types.NewTransaction(nonce, e.token, big.NewInt(0), transferGasLimit, gasPrice, data)
	signed, err := types.SignTx(tx, types.NewEIP155Signer(e.chainID), e.key)
	if err != nil {
		return fmt.Errorf("sign tx: %w", err)
	}

	if err := e.client.SendTransaction(ctx, signed); err != nil {
		return fmt.Errorf("send tx: %w", err)
	}

	receipt, err := bind.WaitMined(ctx, e.client, signed)
	if err != nil {
		return fmt.Errorf("wait mined: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("token transfer reverted: tx %s", signed.Hash().Hex())
	}
	return nil
}
