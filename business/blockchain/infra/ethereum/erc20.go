package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/fd1az/flashloan-arb/internal/apperror"
	"github.com/fd1az/flashloan-arb/internal/asset"
	"github.com/fd1az/flashloan-arb/internal/ledger"
)

const erc20ABI = `[
	{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"allowance","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"approve","type":"function","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"name":"transfer","type":"function","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`

// ERC20ABI is the parsed token ABI.
var ERC20ABI = mustParseABI(erc20ABI)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("parse abi: %v", err))
	}
	return parsed
}

var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// Tokens performs ERC20 calls from the submitter account.
type Tokens struct {
	sub *Submitter
}

// NewTokens creates a Tokens adapter.
func NewTokens(sub *Submitter) *Tokens {
	return &Tokens{sub: sub}
}

// Account returns the signing address.
func (t *Tokens) Account() common.Address { return t.sub.Account() }

// Send forwards to the submitter.
func (t *Tokens) Send(ctx context.Context, to common.Address, data []byte, value uint64) (*types.Receipt, error) {
	return t.sub.Send(ctx, to, data, value)
}

// BalanceOf returns owner's balance of token.
func (t *Tokens) BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	data, err := ERC20ABI.Pack("balanceOf", owner)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInternalError, "pack balanceOf")
	}
	out, err := t.sub.Call(ctx, token, data)
	if err != nil {
		return nil, err
	}
	return unpackUint(ERC20ABI, "balanceOf", out)
}

// EnsureAllowance approves spender for the maximum amount when the current
// allowance is below amount.
func (t *Tokens) EnsureAllowance(ctx context.Context, token, spender common.Address, amount uint64) error {
	data, err := ERC20ABI.Pack("allowance", t.sub.Account(), spender)
	if err != nil {
		return apperror.Wrap(err, apperror.CodeInternalError, "pack allowance")
	}
	out, err := t.sub.Call(ctx, token, data)
	if err != nil {
		return err
	}
	current, err := unpackUint(ERC20ABI, "allowance", out)
	if err != nil {
		return err
	}
	if current.Cmp(new(big.Int).SetUint64(amount)) >= 0 {
		return nil
	}

	data, err = ERC20ABI.Pack("approve", spender, maxUint256)
	if err != nil {
		return apperror.Wrap(err, apperror.CodeInternalError, "pack approve")
	}
	_, err = t.sub.Send(ctx, token, data, 0)
	return err
}

// Transfer moves amount of an ERC20 asset from the signing account to a hex
// address. from must be the signing account.
func (t *Tokens) Transfer(ctx context.Context, id asset.AssetID, from, to ledger.Account, amount uint64) error {
	if !id.IsToken() {
		return apperror.New(apperror.CodeInvalidTokenAccount,
			apperror.WithContext(fmt.Sprintf("%s is not an ERC20 token", id)))
	}
	if !common.IsHexAddress(string(from)) || common.HexToAddress(string(from)) != t.sub.Account() {
		return apperror.New(apperror.CodeInvalidTokenAccount,
			apperror.WithContext(fmt.Sprintf("cannot sign for %s", from)))
	}
	if !common.IsHexAddress(string(to)) {
		return apperror.New(apperror.CodeInvalidTokenAccount,
			apperror.WithContext(fmt.Sprintf("invalid destination %s", to)))
	}

	data, err := ERC20ABI.Pack("transfer", common.HexToAddress(string(to)), new(big.Int).SetUint64(amount))
	if err != nil {
		return apperror.Wrap(err, apperror.CodeInternalError, "pack transfer")
	}
	if _, err := t.sub.Send(ctx, id.Address(), data, 0); err != nil {
		return apperror.Wrap(err, apperror.CodeTransferFailed, fmt.Sprintf("transfer %d %s", amount, id))
	}
	return nil
}

func unpackUint(parsed abi.ABI, method string, out []byte) (*big.Int, error) {
	values, err := parsed.Unpack(method, out)
	if err != nil || len(values) != 1 {
		return nil, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("unpack %s", method)))
	}
	v, ok := values[0].(*big.Int)
	if !ok {
		return nil, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithContext(fmt.Sprintf("unexpected %s output", method)))
	}
	return v, nil
}
