// Package ethereum provides Ethereum blockchain infrastructure adapters.
package ethereum

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/fd1az/flashloan-arb/business/blockchain/app"
	"github.com/fd1az/flashloan-arb/internal/apperror"
)

const (
	tracerName = "github.com/fd1az/flashloan-arb/business/blockchain/infra/ethereum"
	meterName  = "github.com/fd1az/flashloan-arb/business/blockchain/infra/ethereum"
)

// RPC is the subset of the node API the adapters use.
type RPC interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

var (
	_ RPC                = (*ethclient.Client)(nil)
	_ app.ContractCaller = (*Caller)(nil)
)

// Caller performs unsigned read-only calls. It needs no key, so it also
// serves dry runs.
type Caller struct {
	client RPC
}

// NewCaller creates a Caller.
func NewCaller(client RPC) *Caller {
	return &Caller{client: client}
}

// Call runs eth_call against the latest block.
func (c *Caller) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	out, err := c.client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("eth_call %s", to.Hex())))
	}
	return out, nil
}
