package domain

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

func transferLog(token, from, to common.Address, amount int64) *types.Log {
	return &types.Log{
		Address: token,
		Topics: []common.Hash{
			TransferTopic,
			common.BytesToHash(from.Bytes()),
			common.BytesToHash(to.Bytes()),
		},
		Data: common.LeftPadBytes(big.NewInt(amount).Bytes(), 32),
	}
}

func TestReceivedAmount(t *testing.T) {
	token := common.HexToAddress("0x01")
	other := common.HexToAddress("0x02")
	me := common.HexToAddress("0xaa")
	pool := common.HexToAddress("0xbb")

	logs := []*types.Log{
		transferLog(token, me, pool, 500),    // outgoing leg
		transferLog(token, pool, me, 1_200),  // proceeds
		transferLog(other, pool, me, 99),     // different token
		transferLog(token, pool, me, 300),    // second hop
		{Address: token, Topics: []common.Hash{TransferTopic}}, // malformed
	}

	got, err := ReceivedAmount(logs, token, me)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 1_500 {
		t.Errorf("received = %d, want 1500", got)
	}
}

func TestGasPrice_Cost(t *testing.T) {
	p := NewGasPrice(big.NewInt(20_000_000_000), time.Now()) // 20 gwei

	cost, err := p.Cost(450_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cost != 9_000_000_000_000_000 {
		t.Errorf("cost = %d", cost)
	}
	if p.Gwei() != 20 {
		t.Errorf("gwei = %v", p.Gwei())
	}

	huge := NewGasPrice(new(big.Int).Lsh(big.NewInt(1), 63), time.Now())
	if _, err := huge.Cost(4); err == nil {
		t.Error("expected overflow")
	}
}
