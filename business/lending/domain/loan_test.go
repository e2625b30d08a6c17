package domain

import (
	"testing"
	"time"

	"github.com/fd1az/flashloan-arb/internal/asset"
)

func TestNewLoan(t *testing.T) {
	tests := []struct {
		name      string
		principal uint64
		feeBps    uint64
		wantFee   uint64
		wantRepay uint64
	}{
		{"default fee", 400_000_000_000_000_000, 20, 800_000_000_000_000, 400_800_000_000_000_000},
		{"no fee", 1_000, 0, 0, 1_000},
		{"fee rounds down", 499, 20, 0, 499},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := NewLoan("paper", asset.WETH.ID(), tt.principal, tt.feeBps, time.Now())
			if err != nil {
				t.Fatal(err)
			}
			if l.Fee != tt.wantFee {
				t.Errorf("fee = %d, want %d", l.Fee, tt.wantFee)
			}
			repay, err := l.RepayAmount()
			if err != nil || repay != tt.wantRepay {
				t.Errorf("repay = %d, %v; want %d", repay, err, tt.wantRepay)
			}
		})
	}
}

func TestRepayAmount_Overflow(t *testing.T) {
	l := Loan{Principal: ^uint64(0), Fee: 1}
	if _, err := l.RepayAmount(); err == nil {
		t.Fatal("expected overflow")
	}
}
