package monolith

import (
	"context"
	"errors"
	"testing"

	"github.com/fd1az/flashloan-arb/internal/config"
	"github.com/fd1az/flashloan-arb/internal/di"
	"github.com/fd1az/flashloan-arb/internal/ledger"
	"github.com/fd1az/flashloan-arb/internal/logger"
)

type recordingModule struct {
	name  string
	order *[]string
	err   error
}

func (m recordingModule) RegisterServices(c di.Container) error {
	*m.order = append(*m.order, "register:"+m.name)
	return m.err
}

func (m recordingModule) Startup(ctx context.Context, mono Monolith) error {
	*m.order = append(*m.order, "start:"+m.name)
	return nil
}

func TestNew_PaperModeSkipsNode(t *testing.T) {
	cfg := &config.Config{Execution: config.ExecutionConfig{Mode: config.ModePaper}}

	a, err := New(context.Background(), cfg, logger.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	if a.EthClient() != nil {
		t.Error("paper mode should not dial a node")
	}
	if a.Services().Has("ethClient") {
		t.Error("ethClient registered in paper mode")
	}
	if _, ok := a.Services().Get("ledger").(*ledger.Ledger); !ok {
		t.Error("ledger not registered")
	}
}

func TestModules_RunInOrder(t *testing.T) {
	cfg := &config.Config{Execution: config.ExecutionConfig{Mode: config.ModePaper}}
	a, err := New(context.Background(), cfg, logger.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var order []string
	mods := []Module{recordingModule{"pricing", &order, nil}, recordingModule{"arbitrage", &order, nil}}

	if err := a.RegisterModules(mods...); err != nil {
		t.Fatal(err)
	}
	if err := a.StartModules(context.Background(), mods...); err != nil {
		t.Fatal(err)
	}

	want := []string{"register:pricing", "register:arbitrage", "start:pricing", "start:arbitrage"}
	if len(order) != len(want) {
		t.Fatalf("order = %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %s, want %s", i, order[i], want[i])
		}
	}

	boom := errors.New("boom")
	if err := a.RegisterModules(recordingModule{"bad", &order, boom}); !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
}
