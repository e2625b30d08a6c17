package ethereum

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/fd1az/flashloan-arb/internal/apperror"
	"github.com/fd1az/flashloan-arb/internal/asset"
	"github.com/fd1az/flashloan-arb/internal/ledger"
	"github.com/fd1az/flashloan-arb/internal/logger"
)

const testKey = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"

type fakeRPC struct {
	mu sync.Mutex

	gasPrice   *big.Int
	priceErr   error
	priceCalls int

	allowance *big.Int
	status    uint64
	pending   int // receipt lookups answered NotFound first

	sent []*types.Transaction
}

func (f *fakeRPC) ChainID(context.Context) (*big.Int, error)  { return big.NewInt(1), nil }
func (f *fakeRPC) BlockNumber(context.Context) (uint64, error) { return 19_000_000, nil }
func (f *fakeRPC) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{BaseFee: big.NewInt(10_000_000_000)}, nil
}

func (f *fakeRPC) SuggestGasPrice(context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.priceCalls++
	if f.priceErr != nil {
		return nil, f.priceErr
	}
	return new(big.Int).Set(f.gasPrice), nil
}

func (f *fakeRPC) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeRPC) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint64(len(f.sent)), nil
}

func (f *fakeRPC) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) { return 100_000, nil }

func (f *fakeRPC) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeRPC) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pending > 0 {
		f.pending--
		return nil, ethereum.NotFound
	}
	return &types.Receipt{TxHash: hash, Status: f.status, BlockNumber: big.NewInt(1)}, nil
}

func (f *fakeRPC) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	return ERC20ABI.Methods["allowance"].Outputs.Pack(f.allowance)
}

func newTestSubmitter(t *testing.T, rpc *fakeRPC) *Submitter {
	t.Helper()
	sub, err := NewSubmitter(rpc, "0x"+testKey, SubmitterConfig{
		ChainID:        big.NewInt(1),
		ReceiptTimeout: time.Second,
		ReceiptPoll:    time.Millisecond,
		GasMarginPct:   20,
	}, logger.NewNop())
	if err != nil {
		t.Fatalf("NewSubmitter: %v", err)
	}
	return sub
}

func TestSubmitter_SendWaitsForReceipt(t *testing.T) {
	rpc := &fakeRPC{status: types.ReceiptStatusSuccessful, pending: 2}
	sub := newTestSubmitter(t, rpc)

	to := common.HexToAddress("0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D")
	receipt, err := sub.Send(context.Background(), to, []byte{0x01}, 0)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(rpc.sent) != 1 {
		t.Fatalf("sent %d transactions", len(rpc.sent))
	}

	tx := rpc.sent[0]
	if receipt.TxHash != tx.Hash() {
		t.Errorf("receipt for wrong tx")
	}
	if tx.Gas() != 120_000 {
		t.Errorf("gas = %d, want estimate plus margin", tx.Gas())
	}
	if tx.GasFeeCap().Cmp(big.NewInt(21_000_000_000)) != 0 {
		t.Errorf("fee cap = %s", tx.GasFeeCap())
	}
	sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(1)), tx)
	if err != nil || sender != sub.Account() {
		t.Errorf("sender = %s, %v", sender.Hex(), err)
	}
}

func TestSubmitter_RevertedStatus(t *testing.T) {
	rpc := &fakeRPC{status: types.ReceiptStatusFailed}
	sub := newTestSubmitter(t, rpc)

	receipt, err := sub.Send(context.Background(), common.HexToAddress("0x01"), nil, 0)
	if !apperror.HasCode(err, apperror.CodeTxReverted) {
		t.Fatalf("err = %v, want TX_REVERTED", err)
	}
	if receipt == nil {
		t.Error("reverted send should still return the receipt")
	}
}

func TestSubmitter_InvalidKey(t *testing.T) {
	_, err := NewSubmitter(&fakeRPC{}, "zz", SubmitterConfig{ChainID: big.NewInt(1)}, logger.NewNop())
	if !apperror.HasCode(err, apperror.CodeConfigurationError) {
		t.Fatalf("err = %v", err)
	}
}

func TestTokens_EnsureAllowance(t *testing.T) {
	token := common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	spender := common.HexToAddress("0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D")

	tests := []struct {
		name      string
		allowance int64
		wantSends int
	}{
		{"sufficient", 5_000, 0},
		{"insufficient", 10, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rpc := &fakeRPC{status: types.ReceiptStatusSuccessful, allowance: big.NewInt(tt.allowance)}
			tokens := NewTokens(newTestSubmitter(t, rpc))

			if err := tokens.EnsureAllowance(context.Background(), token, spender, 1_000); err != nil {
				t.Fatalf("EnsureAllowance: %v", err)
			}
			if len(rpc.sent) != tt.wantSends {
				t.Fatalf("sent %d, want %d", len(rpc.sent), tt.wantSends)
			}
			if tt.wantSends == 1 && *rpc.sent[0].To() != token {
				t.Errorf("approve sent to %s", rpc.sent[0].To().Hex())
			}
		})
	}
}

func TestTokens_TransferRejectsForeignSource(t *testing.T) {
	rpc := &fakeRPC{status: types.ReceiptStatusSuccessful}
	tokens := NewTokens(newTestSubmitter(t, rpc))

	err := tokens.Transfer(context.Background(), asset.USDC.ID(),
		ledger.Account("0x0000000000000000000000000000000000000001"),
		ledger.Account("0x0000000000000000000000000000000000000002"), 10)
	if !apperror.HasCode(err, apperror.CodeInvalidTokenAccount) {
		t.Fatalf("err = %v", err)
	}

	err = tokens.Transfer(context.Background(), asset.USDC.ID(),
		ledger.Account(tokens.Account().Hex()),
		ledger.Account("0x0000000000000000000000000000000000000002"), 10)
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if len(rpc.sent) != 1 {
		t.Fatalf("sent %d", len(rpc.sent))
	}
}

func TestGasOracle_CachesAndClamps(t *testing.T) {
	rpc := &fakeRPC{gasPrice: big.NewInt(900_000_000_000)}
	oracle, err := NewGasOracle(rpc, GasOracleConfig{TTL: 12 * time.Second, CapGwei: 500}, logger.NewNop())
	if err != nil {
		t.Fatalf("NewGasOracle: %v", err)
	}
	defer oracle.Close()

	ctx := context.Background()
	first, err := oracle.GasPrice(ctx)
	if err != nil {
		t.Fatalf("GasPrice: %v", err)
	}
	if first.Gwei() != 500 {
		t.Errorf("gwei = %v, want clamp at 500", first.Gwei())
	}
	if _, err := oracle.GasPrice(ctx); err != nil {
		t.Fatalf("GasPrice: %v", err)
	}
	if rpc.priceCalls != 1 {
		t.Errorf("node queried %d times, want 1", rpc.priceCalls)
	}
}

func TestGasOracle_StaleFallback(t *testing.T) {
	rpc := &fakeRPC{gasPrice: big.NewInt(20_000_000_000)}
	oracle, err := NewGasOracle(rpc, GasOracleConfig{TTL: time.Second}, logger.NewNop())
	if err != nil {
		t.Fatalf("NewGasOracle: %v", err)
	}
	defer oracle.Close()

	ctx := context.Background()
	if _, err := oracle.GasPrice(ctx); err != nil {
		t.Fatalf("GasPrice: %v", err)
	}

	base := time.Now()
	oracle.now = func() time.Time { return base.Add(2 * time.Second) }
	rpc.priceErr = errors.New("node down")

	p, err := oracle.GasPrice(ctx)
	if err != nil {
		t.Fatalf("GasPrice after node failure: %v", err)
	}
	if p.Gwei() != 20 {
		t.Errorf("gwei = %v, want last quote 20", p.Gwei())
	}
	if rpc.priceCalls != 2 {
		t.Errorf("node queried %d times, want 2", rpc.priceCalls)
	}
}

func TestGasOracle_NoQuoteYet(t *testing.T) {
	rpc := &fakeRPC{priceErr: errors.New("node down")}
	oracle, err := NewGasOracle(rpc, GasOracleConfig{}, logger.NewNop())
	if err != nil {
		t.Fatalf("NewGasOracle: %v", err)
	}
	defer oracle.Close()

	_, err = oracle.GasPrice(context.Background())
	if !apperror.HasCode(err, apperror.CodeEthereumRPCError) {
		t.Fatalf("err = %v, want ethereum rpc error", err)
	}
}

func TestCaller_Call(t *testing.T) {
	rpc := &fakeRPC{allowance: big.NewInt(7)}
	out, err := NewCaller(rpc).Call(context.Background(), common.HexToAddress("0x01"), nil)
	if err != nil {
		t.Fatal(err)
	}
	v, err := unpackUint(ERC20ABI, "allowance", out)
	if err != nil || v.Int64() != 7 {
		t.Errorf("allowance = %v, %v", v, err)
	}
}
