package circuitbreaker_test

import (
	"errors"
	"testing"

	"github.com/sony/gobreaker/v2"

	"github.com/fd1az/flashloan-arb/internal/circuitbreaker"
)

func TestCircuitBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	cfg := circuitbreaker.DefaultConfig("rpc")
	cfg.ConsecutiveFailures = 3

	var transitions []gobreaker.State
	cfg.OnStateChange = func(_ string, _, to gobreaker.State) {
		transitions = append(transitions, to)
	}

	cb := circuitbreaker.New[int](cfg)
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		if _, err := cb.Execute(func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
			t.Fatalf("attempt %d: err = %v, want boom", i, err)
		}
	}

	if cb.State() != gobreaker.StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}

	_, err := cb.Execute(func() (int, error) { return 1, nil })
	if !circuitbreaker.IsOpen(err) {
		t.Fatalf("expected open-state error, got %v", err)
	}
	if len(transitions) != 1 || transitions[0] != gobreaker.StateOpen {
		t.Errorf("transitions = %v", transitions)
	}
}

func TestCircuitBreaker_PassesValues(t *testing.T) {
	cb := circuitbreaker.New[string](circuitbreaker.DefaultConfig("ok"))

	v, err := cb.Execute(func() (string, error) { return "reserves", nil })
	if err != nil || v != "reserves" {
		t.Fatalf("Execute = %q, %v", v, err)
	}
	if cb.Name() != "ok" {
		t.Errorf("Name = %q", cb.Name())
	}
}
