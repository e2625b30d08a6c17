package app

import (
	"context"
	"sync"
)

// InFlight is the process-local single-flight set of pair keys.
type InFlight struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

var _ PairLock = (*InFlight)(nil)

// NewInFlight creates an empty set.
func NewInFlight() *InFlight {
	return &InFlight{keys: make(map[string]struct{})}
}

// TryLock claims key. A held key is rejected, never queued.
func (f *InFlight) TryLock(_ context.Context, key string) (func(), bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, held := f.keys[key]; held {
		return nil, false, nil
	}
	f.keys[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.keys, key)
			f.mu.Unlock()
		})
	}, true, nil
}

// Busy reports whether key is held.
func (f *InFlight) Busy(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, held := f.keys[key]
	return held
}

// Len returns the number of held keys.
func (f *InFlight) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.keys)
}
