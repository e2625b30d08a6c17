// Package app contains application services and port definitions for the blockchain context.
package app

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/flashloan-arb/business/blockchain/domain"
)

// GasOracle provides current gas prices.
type GasOracle interface {
	GasPrice(ctx context.Context) (*domain.GasPrice, error)
}

// ChainReader answers liveness questions about the node.
type ChainReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// ContractCaller performs read-only contract calls.
type ContractCaller interface {
	Call(ctx context.Context, to common.Address, data []byte) ([]byte, error)
}
