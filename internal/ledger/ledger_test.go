package ledger_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/fd1az/flashloan-arb/internal/asset"
	"github.com/fd1az/flashloan-arb/internal/ledger"
)

var (
	weth = asset.WETH.ID()
	usdc = asset.USDC.ID()
)

func TestLedger_Transfer(t *testing.T) {
	l := ledger.New()
	l.Open("alice", "bob")

	if err := l.Mint("alice", weth, 100); err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if err := l.Transfer("alice", "bob", weth, 40); err != nil {
		t.Fatalf("Transfer: %v", err)
	}

	if got := l.Balance("alice", weth); got != 60 {
		t.Errorf("alice = %d, want 60", got)
	}
	if got := l.Balance("bob", weth); got != 40 {
		t.Errorf("bob = %d, want 40", got)
	}

	err := l.Transfer("bob", "alice", weth, 41)
	if !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Errorf("err = %v, want insufficient balance", err)
	}
	if err := l.Transfer("alice", "mallory", weth, 1); !errors.Is(err, ledger.ErrUnknownAccount) {
		t.Errorf("err = %v, want unknown account", err)
	}
	if err := l.Transfer("alice", "bob", weth, 0); !errors.Is(err, ledger.ErrZeroAmount) {
		t.Errorf("err = %v, want zero amount", err)
	}
}

func TestLedger_UpdateIsAllOrNothing(t *testing.T) {
	l := ledger.New()
	l.Open("trader", "pool")
	_ = l.Mint("trader", weth, 10)
	_ = l.Mint("pool", usdc, 5)

	// The second leg fails, so the first must not persist.
	err := l.Update(func(tx *ledger.Tx) error {
		if err := tx.Transfer("trader", "pool", weth, 10); err != nil {
			return err
		}
		return tx.Transfer("pool", "trader", usdc, 6)
	})
	if !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Fatalf("err = %v", err)
	}

	if l.Balance("trader", weth) != 10 || l.Balance("pool", weth) != 0 {
		t.Errorf("partial write leaked: %+v", l.Snapshot())
	}
}

func TestLedger_StagedReads(t *testing.T) {
	l := ledger.New()
	l.Open("a", "b")
	_ = l.Mint("a", usdc, 3)

	err := l.Update(func(tx *ledger.Tx) error {
		if err := tx.Transfer("a", "b", usdc, 2); err != nil {
			return err
		}
		if got := tx.Balance("b", usdc); got != 2 {
			t.Errorf("staged balance = %d, want 2", got)
		}
		return tx.Transfer("b", "a", usdc, 1)
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	snap := l.Snapshot()
	if len(snap) != 2 || snap[0].Account != "a" || snap[0].Amount != 2 || snap[1].Amount != 1 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestLedger_ConcurrentTransfersConserveSupply(t *testing.T) {
	l := ledger.New()
	l.Open("x", "y")
	_ = l.Mint("x", weth, 1000)
	_ = l.Mint("y", weth, 1000)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); _ = l.Transfer("x", "y", weth, 3) }()
		go func() { defer wg.Done(); _ = l.Transfer("y", "x", weth, 2) }()
	}
	wg.Wait()

	if total := l.Balance("x", weth) + l.Balance("y", weth); total != 2000 {
		t.Errorf("supply = %d, want 2000", total)
	}
}
