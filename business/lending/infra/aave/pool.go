// Package aave borrows and repays through an Aave V3 Pool.
package aave

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/fd1az/flashloan-arb/business/lending/app"
	"github.com/fd1az/flashloan-arb/internal/apperror"
	"github.com/fd1az/flashloan-arb/internal/asset"
)

// variable rate mode
var interestRateMode = big.NewInt(2)

// PoolABI covers borrow, repay and the reserve lookup. getReserveData returns
// a static struct, so it is declared with its flattened fields.
const PoolABI = `[
	{"name":"borrow","type":"function","stateMutability":"nonpayable","inputs":[
		{"name":"asset","type":"address"},{"name":"amount","type":"uint256"},
		{"name":"interestRateMode","type":"uint256"},{"name":"referralCode","type":"uint16"},
		{"name":"onBehalfOf","type":"address"}],"outputs":[]},
	{"name":"repay","type":"function","stateMutability":"nonpayable","inputs":[
		{"name":"asset","type":"address"},{"name":"amount","type":"uint256"},
		{"name":"interestRateMode","type":"uint256"},{"name":"onBehalfOf","type":"address"}],
		"outputs":[{"name":"","type":"uint256"}]},
	{"name":"getReserveData","type":"function","stateMutability":"view","inputs":[
		{"name":"asset","type":"address"}],"outputs":[
		{"name":"configuration","type":"uint256"},
		{"name":"liquidityIndex","type":"uint128"},
		{"name":"currentLiquidityRate","type":"uint128"},
		{"name":"variableBorrowIndex","type":"uint128"},
		{"name":"currentVariableBorrowRate","type":"uint128"},
		{"name":"currentStableBorrowRate","type":"uint128"},
		{"name":"lastUpdateTimestamp","type":"uint40"},
		{"name":"id","type":"uint16"},
		{"name":"aTokenAddress","type":"address"},
		{"name":"stableDebtTokenAddress","type":"address"},
		{"name":"variableDebtTokenAddress","type":"address"},
		{"name":"interestRateStrategyAddress","type":"address"},
		{"name":"accruedToTreasury","type":"uint128"},
		{"name":"unbacked","type":"uint128"},
		{"name":"isolationModeTotalDebt","type":"uint128"}]}
]`

const balanceOfABI = `[{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}]`

var (
	poolABI  = mustParse(PoolABI)
	erc20ABI = mustParse(balanceOfABI)
)

func mustParse(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("parse abi: %v", err))
	}
	return parsed
}

// Caller performs read-only calls.
type Caller interface {
	Call(ctx context.Context, to common.Address, data []byte) ([]byte, error)
}

// Sender signs and mines transactions.
type Sender interface {
	Account() common.Address
	Send(ctx context.Context, to common.Address, data []byte, value uint64) (*types.Receipt, error)
	EnsureAllowance(ctx context.Context, token, spender common.Address, amount uint64) error
}

var _ app.Lender = (*Pool)(nil)

// Pool is a Lender over an Aave V3 Pool contract.
type Pool struct {
	address common.Address
	caller  Caller
	sender  Sender
}

// NewPool creates the adapter.
func NewPool(address common.Address, caller Caller, sender Sender) *Pool {
	return &Pool{address: address, caller: caller, sender: sender}
}

// Name identifies the lender.
func (p *Pool) Name() string { return "aave:" + p.address.Hex() }

// Available returns the underlying balance held by the reserve's aToken.
func (p *Pool) Available(ctx context.Context, id asset.AssetID) (uint64, error) {
	data, err := poolABI.Pack("getReserveData", id.Address())
	if err != nil {
		return 0, fmt.Errorf("failed to encode getReserveData: %w", err)
	}
	out, err := p.caller.Call(ctx, p.address, data)
	if err != nil {
		return 0, err
	}
	values, err := poolABI.Unpack("getReserveData", out)
	if err != nil || len(values) < 9 {
		return 0, apperror.New(apperror.CodeContractCallFailed, apperror.WithCause(err), apperror.WithContext("decode getReserveData"))
	}
	aToken := values[8].(common.Address)
	if aToken == (common.Address{}) {
		return 0, nil
	}

	data, err = erc20ABI.Pack("balanceOf", aToken)
	if err != nil {
		return 0, fmt.Errorf("failed to encode balanceOf: %w", err)
	}
	out, err = p.caller.Call(ctx, id.Address(), data)
	if err != nil {
		return 0, err
	}
	values, err = erc20ABI.Unpack("balanceOf", out)
	if err != nil || len(values) != 1 {
		return 0, apperror.New(apperror.CodeContractCallFailed, apperror.WithCause(err), apperror.WithContext("decode balanceOf"))
	}
	bal := values[0].(*big.Int)
	if !bal.IsUint64() {
		return ^uint64(0), nil
	}
	return bal.Uint64(), nil
}

func (p *Pool) requireSender() error {
	if p.sender == nil {
		return apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("aave pool has no signer"))
	}
	return nil
}

// Borrow draws amount at the variable rate on behalf of the signer.
func (p *Pool) Borrow(ctx context.Context, id asset.AssetID, amount uint64) error {
	if err := p.requireSender(); err != nil {
		return err
	}
	data, err := poolABI.Pack("borrow", id.Address(), new(big.Int).SetUint64(amount), interestRateMode, uint16(0), p.sender.Account())
	if err != nil {
		return fmt.Errorf("failed to encode borrow: %w", err)
	}
	_, err = p.sender.Send(ctx, p.address, data, 0)
	return err
}

// Repay approves the pool and repays amount.
func (p *Pool) Repay(ctx context.Context, id asset.AssetID, amount uint64) error {
	if err := p.requireSender(); err != nil {
		return err
	}
	if err := p.sender.EnsureAllowance(ctx, id.Address(), p.address, amount); err != nil {
		return err
	}
	data, err := poolABI.Pack("repay", id.Address(), new(big.Int).SetUint64(amount), interestRateMode, p.sender.Account())
	if err != nil {
		return fmt.Errorf("failed to encode repay: %w", err)
	}
	_, err = p.sender.Send(ctx, p.address, data, 0)
	return err
}
