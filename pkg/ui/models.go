package ui

import (
	"fmt"
	"time"
)

// Phase represents the current UI phase.
type Phase string

const (
	PhaseWelcome   Phase = "welcome"
	PhaseDashboard Phase = "dashboard"
)

// WelcomeDuration is how long the welcome screen shows before auto-advancing.
const WelcomeDuration = 2 * time.Second

const (
	maxErrors   = 3
	maxActivity = 8
)

// ErrorEntry represents an error with timestamp.
type ErrorEntry struct {
	Message   string
	Timestamp time.Time
}

// addError keeps the last maxErrors entries.
func addError(errs []ErrorEntry, msg string, at time.Time) []ErrorEntry {
	errs = append(errs, ErrorEntry{Message: msg, Timestamp: at})
	if len(errs) > maxErrors {
		errs = errs[len(errs)-maxErrors:]
	}
	return errs
}

// addActivity appends a timestamped line and keeps the last maxActivity.
func addActivity(feed []string, at time.Time, message string) []string {
	feed = append(feed, fmt.Sprintf("[%s] %s", at.Format("15:04:05"), message))
	if len(feed) > maxActivity {
		feed = feed[len(feed)-maxActivity:]
	}
	return feed
}
