package asset

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Registry is a thread-safe registry of known assets.
type Registry struct {
	mu       sync.RWMutex
	byID     map[AssetID]*Asset
	bySymbol map[string]*Asset
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:     make(map[AssetID]*Asset),
		bySymbol: make(map[string]*Asset),
	}
}

// Register adds an asset. Registering the same ID twice is an error.
func (r *Registry) Register(a *Asset) error {
	if a == nil {
		return ErrNilAsset
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[a.ID()]; exists {
		return fmt.Errorf("asset: %s already registered", a.ID())
	}
	r.byID[a.ID()] = a
	r.bySymbol[strings.ToUpper(a.Symbol())] = a
	return nil
}

// Get retrieves an asset by ID.
func (r *Registry) Get(id AssetID) (*Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byID[id]
	return a, ok
}

// Resolve finds an asset by symbol (case-insensitive) or by 0x address on
// chainID.
func (r *Registry) Resolve(ref string, chainID uint64) (*Asset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if common.IsHexAddress(ref) {
		if a, ok := r.byID[NewTokenAssetID(chainID, common.HexToAddress(ref))]; ok {
			return a, nil
		}
		return nil, fmt.Errorf("asset: address %s not registered on chain %d", ref, chainID)
	}
	if a, ok := r.bySymbol[strings.ToUpper(ref)]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("asset: unknown symbol %q", ref)
}

// All returns every registered asset.
func (r *Registry) All() []*Asset {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Asset, 0, len(r.byID))
	for _, a := range r.byID {
		out = append(out, a)
	}
	return out
}

// Count returns the number of registered assets.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
