package ethereum

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/flashloan-arb/business/blockchain/app"
	"github.com/fd1az/flashloan-arb/internal/apperror"
	"github.com/fd1az/flashloan-arb/internal/logger"
)

var _ app.ContractCaller = (*Submitter)(nil)

// SubmitterConfig holds configuration for transaction submission.
type SubmitterConfig struct {
	ChainID        *big.Int
	ReceiptTimeout time.Duration
	ReceiptPoll    time.Duration
	GasMarginPct   uint64 // added on top of eth_estimateGas
}

type submitterMetrics struct {
	txSent     metric.Int64Counter
	txReverted metric.Int64Counter
	confirm    metric.Float64Histogram
}

// Submitter signs EIP-1559 transactions with one key and waits for receipts.
type Submitter struct {
	client RPC
	cfg    SubmitterConfig
	key    *ecdsa.PrivateKey
	from   common.Address
	signer types.Signer
	logger logger.LoggerInterface

	// nonce allocation and broadcast happen under mu
	mu sync.Mutex

	tracer  trace.Tracer
	metrics *submitterMetrics
}

// NewSubmitter creates a Submitter from a hex private key.
func NewSubmitter(client RPC, hexKey string, cfg SubmitterConfig, log logger.LoggerInterface) (*Submitter, error) {
	if cfg.ChainID == nil {
		return nil, apperror.New(apperror.CodeConfigurationError, apperror.WithContext("chain id is required"))
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithCause(err),
			apperror.WithContext("invalid private key"))
	}
	if cfg.ReceiptPoll <= 0 {
		cfg.ReceiptPoll = time.Second
	}

	s := &Submitter{
		client: client,
		cfg:    cfg,
		key:    key,
		from:   crypto.PubkeyToAddress(key.PublicKey),
		signer: types.LatestSignerForChainID(cfg.ChainID),
		logger: log,
		tracer: otel.Tracer(tracerName),
	}
	if err := s.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return s, nil
}

func (s *Submitter) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	s.metrics = &submitterMetrics{}

	s.metrics.txSent, err = meter.Int64Counter(
		"tx_sent_total",
		metric.WithDescription("Transactions broadcast"),
		metric.WithUnit("{tx}"),
	)
	if err != nil {
		return err
	}

	s.metrics.txReverted, err = meter.Int64Counter(
		"tx_reverted_total",
		metric.WithDescription("Transactions mined with failed status"),
		metric.WithUnit("{tx}"),
	)
	if err != nil {
		return err
	}

	s.metrics.confirm, err = meter.Float64Histogram(
		"tx_confirm_seconds",
		metric.WithDescription("Time from broadcast to receipt"),
		metric.WithUnit("s"),
	)
	return err
}

// Account returns the signing address.
func (s *Submitter) Account() common.Address {
	return s.from
}

// Call runs a read-only call from the signing account.
func (s *Submitter) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	out, err := s.client.CallContract(ctx, ethereum.CallMsg{From: s.from, To: &to, Data: data}, nil)
	if err != nil {
		return nil, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("eth_call %s", to.Hex())))
	}
	return out, nil
}

// Send signs, broadcasts and waits for the transaction to be mined. A mined
// transaction with failed status returns TX_REVERTED together with its receipt.
func (s *Submitter) Send(ctx context.Context, to common.Address, data []byte, value uint64) (*types.Receipt, error) {
	ctx, span := s.tracer.Start(ctx, "tx.send",
		trace.WithAttributes(
			attribute.String("to", to.Hex()),
			attribute.Int("data_len", len(data)),
		),
	)
	defer span.End()

	tx, err := s.signAndBroadcast(ctx, to, data, new(big.Int).SetUint64(value))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "broadcast failed")
		return nil, err
	}
	s.metrics.txSent.Add(ctx, 1)
	span.SetAttributes(attribute.String("tx_hash", tx.Hash().Hex()))

	start := time.Now()
	receipt, err := s.waitReceipt(ctx, tx.Hash())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "no receipt")
		return nil, err
	}
	s.metrics.confirm.Record(ctx, time.Since(start).Seconds())

	if receipt.Status != types.ReceiptStatusSuccessful {
		s.metrics.txReverted.Add(ctx, 1)
		err := apperror.New(apperror.CodeTxReverted,
			apperror.WithContext(fmt.Sprintf("tx %s to %s", tx.Hash().Hex(), to.Hex())))
		span.RecordError(err)
		span.SetStatus(codes.Error, "reverted")
		return receipt, err
	}

	s.logger.Debug(ctx, "transaction mined",
		"tx", tx.Hash().Hex(),
		"block", receipt.BlockNumber,
		"gas_used", receipt.GasUsed,
	)
	span.SetStatus(codes.Ok, "mined")
	return receipt, nil
}

func (s *Submitter) signAndBroadcast(ctx context.Context, to common.Address, data []byte, value *big.Int) (*types.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nonce, err := s.client.PendingNonceAt(ctx, s.from)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeEthereumRPCError, "pending nonce")
	}

	tip, err := s.client.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeEthereumRPCError, "gas tip cap")
	}
	head, err := s.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeEthereumRPCError, "latest header")
	}
	feeCap := new(big.Int).Add(tip, new(big.Int).Mul(baseFee(head), big.NewInt(2)))

	gas, err := s.client.EstimateGas(ctx, ethereum.CallMsg{From: s.from, To: &to, Data: data, Value: value})
	if err != nil {
		return nil, apperror.New(apperror.CodeGasEstimationFailed,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("estimate gas for %s", to.Hex())))
	}
	gas += gas * s.cfg.GasMarginPct / 100

	tx, err := types.SignNewTx(s.key, s.signer, &types.DynamicFeeTx{
		ChainID:   s.cfg.ChainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Value:     value,
		Data:      data,
	})
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInternalError, "sign transaction")
	}

	if err := s.client.SendTransaction(ctx, tx); err != nil {
		return nil, apperror.Wrap(err, apperror.CodeEthereumRPCError, "send transaction")
	}
	return tx, nil
}

func (s *Submitter) waitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	if s.cfg.ReceiptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ReceiptTimeout)
		defer cancel()
	}

	ticker := time.NewTicker(s.cfg.ReceiptPoll)
	defer ticker.Stop()

	for {
		receipt, err := s.client.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, apperror.Wrap(err, apperror.CodeEthereumRPCError, "transaction receipt")
		}

		select {
		case <-ctx.Done():
			return nil, apperror.New(apperror.CodeServiceTimeout,
				apperror.WithCause(ctx.Err()),
				apperror.WithContext(fmt.Sprintf("waiting for %s", hash.Hex())))
		case <-ticker.C:
		}
	}
}

func baseFee(h *types.Header) *big.Int {
	if h == nil || h.BaseFee == nil {
		return new(big.Int)
	}
	return h.BaseFee
}
