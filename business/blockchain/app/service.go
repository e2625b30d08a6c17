package app

import (
	"context"
	"fmt"
	"time"

	"github.com/fd1az/flashloan-arb/internal/apperror"
)

// GasService prices execution gas in the native coin.
type GasService struct {
	oracle   GasOracle
	chain    ChainReader
	gasLimit uint64
}

// NewGasService creates a GasService. gasLimit is the expected gas used by one
// full execution.
func NewGasService(oracle GasOracle, chain ChainReader, gasLimit uint64) *GasService {
	return &GasService{oracle: oracle, chain: chain, gasLimit: gasLimit}
}

// ExecutionCost returns gasLimit*gasPrice in wei.
func (s *GasService) ExecutionCost(ctx context.Context) (uint64, error) {
	price, err := s.oracle.GasPrice(ctx)
	if err != nil {
		return 0, err
	}
	cost, err := price.Cost(s.gasLimit)
	if err != nil {
		return 0, apperror.New(apperror.CodeCalculationError,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("gas cost for limit %d", s.gasLimit)))
	}
	return cost, nil
}

// Ping checks that the node answers within timeout.
func (s *GasService) Ping(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if _, err := s.chain.BlockNumber(ctx); err != nil {
		return apperror.Wrap(err, apperror.CodeEthereumConnectionFailed, "block number")
	}
	return nil
}
