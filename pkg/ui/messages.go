// Package ui provides the Bubble Tea TUI for the flash-loan arbitrage engine.
package ui

import (
	"time"

	"github.com/fd1az/flashloan-arb/pkg/ui/components"
)

// Message types for TUI updates. Values arrive pre-formatted; the UI does no
// arithmetic on amounts.

// PairsMsg carries the result of one monitor tick.
type PairsMsg struct {
	Seq      uint64
	Took     time.Duration
	Rows     []components.PairRow
	InFlight int
}

// OpportunityMsg is sent when a pair clears its cost.
type OpportunityMsg struct {
	Pair      string
	Direction string
	Spread    string
	Cost      string
	Profit    string
}

// OutcomeMsg is sent when an execution reaches a terminal state.
type OutcomeMsg struct {
	Row components.ExecutionRow
}

// StatsMsg replaces the totals panel.
type StatsMsg struct {
	Stats components.Stats
}

// SettingMsg updates one entry of the status line.
type SettingMsg struct {
	Name  string
	Value string
}

// ErrorMsg is sent when an error occurs.
type ErrorMsg struct {
	Error error
}

// LogMsg is sent to display a log message in the UI.
type LogMsg struct {
	Level   string // "info", "warn", "error"
	Message string
}

// TickMsg drives animations.
type TickMsg struct{}

// StartModulesMsg signals that modules should start loading.
type StartModulesMsg struct{}
