package apm

import (
	"context"
	"testing"

	"github.com/fd1az/flashloan-arb/internal/logger"
)

func TestParseHeaders(t *testing.T) {
	tests := []struct {
		in      string
		want    map[string]string
		wantErr bool
	}{
		{in: "", want: map[string]string{}},
		{in: "x-honeycomb-team=abc", want: map[string]string{"x-honeycomb-team": "abc"}},
		{in: "a=1, b=2", want: map[string]string{"a": "1", "b": "2"}},
		{in: "novalue", wantErr: true},
		{in: "=x", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseHeaders(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseHeaders(%q) err = %v", tt.in, err)
			continue
		}
		if tt.wantErr {
			continue
		}
		if len(got) != len(tt.want) {
			t.Errorf("ParseHeaders(%q) = %v, want %v", tt.in, got, tt.want)
		}
		for k, v := range tt.want {
			if got[k] != v {
				t.Errorf("ParseHeaders(%q)[%s] = %q, want %q", tt.in, k, got[k], v)
			}
		}
	}
}

func TestNewTraceProvider(t *testing.T) {
	ctx := context.Background()
	log := logger.NewNop()

	tp, err := NewTraceProvider(ctx, Config{Provider: EmptyProvider}, log)
	if err != nil {
		t.Fatal(err)
	}
	if err := tp.Stop(); err != nil {
		t.Fatal(err)
	}

	if _, err := NewTraceProvider(ctx, Config{Provider: "jaeger"}, log); err == nil {
		t.Error("expected error for unknown provider")
	}

	tp, err = NewTraceProvider(ctx, Config{Provider: ConsoleProvider, ServiceName: "test"}, log)
	if err != nil {
		t.Fatal(err)
	}
	if err := tp.Stop(); err != nil {
		t.Fatal(err)
	}
}
