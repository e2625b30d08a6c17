package aggregator

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	chain "github.com/fd1az/flashloan-arb/business/blockchain/domain"
	"github.com/fd1az/flashloan-arb/business/pricing/app"
	"github.com/fd1az/flashloan-arb/internal/apperror"
	"github.com/fd1az/flashloan-arb/internal/asset"
	"github.com/fd1az/flashloan-arb/internal/logger"
)

var (
	taker     = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	exchange  = common.HexToAddress("0xDef1C0ded9bec7F1a1670819833240f027b25EfF")
	allowance = common.HexToAddress("0x0000000000000000000000000000000000000a11")
)

type fakeSender struct {
	approvedFor common.Address
	sentTo      common.Address
	value       uint64
	received    int64
}

func (s *fakeSender) Account() common.Address { return taker }

func (s *fakeSender) EnsureAllowance(_ context.Context, _, spender common.Address, _ uint64) error {
	s.approvedFor = spender
	return nil
}

func (s *fakeSender) Send(_ context.Context, to common.Address, _ []byte, value uint64) (*types.Receipt, error) {
	s.sentTo, s.value = to, value
	return &types.Receipt{Logs: []*types.Log{{
		Address: asset.USDT.Address(),
		Topics: []common.Hash{
			chain.TransferTopic,
			common.BytesToHash(exchange.Bytes()),
			common.BytesToHash(taker.Bytes()),
		},
		Data: common.LeftPadBytes(big.NewInt(s.received).Bytes(), 32),
	}}}, nil
}

func newTestClient(t *testing.T, url string, sender app.TxSubmitter) *Client {
	t.Helper()
	c, err := New(Config{Venue: "zeroex", BaseURL: url, APIKey: "k", Timeout: time.Second}, sender, logger.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestRouteQuote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != priceEndpoint {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("sellAmount") != "1000000" || q.Get("slippagePercentage") != "0.03" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		if r.Header.Get("0x-api-key") != "k" {
			t.Error("missing api key")
		}
		json.NewEncoder(w).Encode(PriceResponse{BuyAmount: "1001234"})
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, nil)
	out, err := c.RouteQuote(context.Background(), app.QuoteRequest{
		Input: asset.USDC.ID(), Output: asset.USDT.ID(), Amount: 1_000_000, MaxSlippageBps: 300,
	})
	if err != nil {
		t.Fatal(err)
	}
	if out != 1_001_234 {
		t.Errorf("out = %d", out)
	}
}

func TestRouteQuote_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   apperror.Code
	}{
		{"rejected", http.StatusBadRequest, `{"code":100,"reason":"Validation Failed"}`, apperror.CodeInvalidQuote},
		{"outage", http.StatusBadGateway, `bad gateway`, apperror.CodeAggregatorQuoteFailed},
		{"garbage amount", http.StatusOK, `{"buyAmount":"-5"}`, apperror.CodeInvalidQuote},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := newTestClient(t, server.URL, nil)
			_, err := c.RouteQuote(context.Background(), app.QuoteRequest{Input: asset.USDC.ID(), Output: asset.USDT.ID(), Amount: 1})
			if got := apperror.GetCode(err); got != tt.want {
				t.Fatalf("code = %s, want %s (err %v)", got, tt.want, err)
			}
		})
	}
}

func TestRouteQuote_BreakerOpensOnOutage(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, nil)
	req := app.QuoteRequest{Input: asset.USDC.ID(), Output: asset.USDT.ID(), Amount: 1}
	for i := 0; i < 5; i++ {
		_, _ = c.RouteQuote(context.Background(), req)
	}

	_, err := c.RouteQuote(context.Background(), req)
	if !apperror.HasCode(err, apperror.CodeCircuitOpen) {
		t.Fatalf("err = %v", err)
	}
	if !apperror.IsTransient(err) {
		t.Error("open breaker should be transient")
	}
	if hits.Load() != 5 {
		t.Errorf("server hit %d times", hits.Load())
	}
}

func TestRouteSwap(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("takerAddress") != taker.Hex() {
			t.Errorf("taker = %s", r.URL.Query().Get("takerAddress"))
		}
		json.NewEncoder(w).Encode(QuoteResponse{
			To:              exchange,
			Data:            []byte{0xde, 0xad},
			Value:           "0",
			BuyAmount:       "1005000",
			AllowanceTarget: allowance,
		})
	}))
	defer server.Close()

	sender := &fakeSender{received: 1_004_900}
	c := newTestClient(t, server.URL, sender)

	req := app.SwapRequest{Input: asset.USDC.ID(), Output: asset.USDT.ID(), Amount: 1_000_000, MinOutput: 1_000_000}
	out, err := c.RouteSwap(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if out != 1_004_900 {
		t.Errorf("out = %d", out)
	}
	if sender.approvedFor != allowance || sender.sentTo != exchange {
		t.Errorf("approved %s, sent to %s", sender.approvedFor.Hex(), sender.sentTo.Hex())
	}

	req.MinOutput = 2_000_000
	if _, err := c.RouteSwap(context.Background(), req); !apperror.HasCode(err, apperror.CodeSlippageExceeded) {
		t.Errorf("err = %v", err)
	}
}
