// Package ledger is an in-memory multi-asset balance book. Paper-mode venues,
// the paper lending pool and the paper transferer all settle against one
// shared Ledger, and Update gives them all-or-nothing multi-entry writes.
package ledger

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/fd1az/flashloan-arb/internal/asset"
	"github.com/fd1az/flashloan-arb/internal/fixedpoint"
)

// Account names a holder of balances.
type Account string

var (
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")
	ErrUnknownAccount      = errors.New("ledger: unknown account")
	ErrZeroAmount          = errors.New("ledger: zero amount")
)

type key struct {
	account Account
	asset   asset.AssetID
}

// Ledger holds balances per (account, asset).
type Ledger struct {
	mu       sync.RWMutex
	balances map[key]uint64
	accounts map[Account]struct{}
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{
		balances: make(map[key]uint64),
		accounts: make(map[Account]struct{}),
	}
}

// Open registers an account so transfers to it are accepted.
func (l *Ledger) Open(accounts ...Account) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, a := range accounts {
		l.accounts[a] = struct{}{}
	}
}

// HasAccount reports whether acct was opened.
func (l *Ledger) HasAccount(acct Account) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.accounts[acct]
	return ok
}

// Balance returns acct's balance of id.
func (l *Ledger) Balance(acct Account, id asset.AssetID) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[key{acct, id}]
}

// Mint credits acct out of thin air. Used for seeding.
func (l *Ledger) Mint(acct Account, id asset.AssetID, amount uint64) error {
	return l.Update(func(tx *Tx) error {
		return tx.Credit(acct, id, amount)
	})
}

// Transfer moves amount of id between accounts.
func (l *Ledger) Transfer(from, to Account, id asset.AssetID, amount uint64) error {
	return l.Update(func(tx *Tx) error {
		return tx.Transfer(from, to, id, amount)
	})
}

// Update runs fn against a staged view. Entries are committed only if fn
// returns nil.
func (l *Ledger) Update(fn func(tx *Tx) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx := &Tx{l: l, staged: make(map[key]uint64)}
	if err := fn(tx); err != nil {
		return err
	}
	for k, v := range tx.staged {
		if v == 0 {
			delete(l.balances, k)
			continue
		}
		l.balances[k] = v
	}
	return nil
}

// Entry is one row of a snapshot.
type Entry struct {
	Account Account
	Asset   asset.AssetID
	Amount  uint64
}

// Snapshot returns all non-zero balances ordered by account.
func (l *Ledger) Snapshot() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Entry, 0, len(l.balances))
	for k, v := range l.balances {
		out = append(out, Entry{Account: k.account, Asset: k.asset, Amount: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Account != out[j].Account {
			return out[i].Account < out[j].Account
		}
		return out[i].Asset.String() < out[j].Asset.String()
	})
	return out
}

// Tx is a staged set of balance changes. It is only valid inside Update.
type Tx struct {
	l      *Ledger
	staged map[key]uint64
}

// Balance reads through staged changes.
func (tx *Tx) Balance(acct Account, id asset.AssetID) uint64 {
	k := key{acct, id}
	if v, ok := tx.staged[k]; ok {
		return v
	}
	return tx.l.balances[k]
}

// Credit adds amount to acct.
func (tx *Tx) Credit(acct Account, id asset.AssetID, amount uint64) error {
	if _, ok := tx.l.accounts[acct]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAccount, acct)
	}
	next, err := fixedpoint.Add(tx.Balance(acct, id), amount)
	if err != nil {
		return err
	}
	tx.staged[key{acct, id}] = next
	return nil
}

// Debit removes amount from acct.
func (tx *Tx) Debit(acct Account, id asset.AssetID, amount uint64) error {
	if _, ok := tx.l.accounts[acct]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAccount, acct)
	}
	bal := tx.Balance(acct, id)
	if bal < amount {
		return fmt.Errorf("%w: %s holds %d of %s, needs %d", ErrInsufficientBalance, acct, bal, id, amount)
	}
	tx.staged[key{acct, id}] = bal - amount
	return nil
}

// Transfer debits from and credits to.
func (tx *Tx) Transfer(from, to Account, id asset.AssetID, amount uint64) error {
	if amount == 0 {
		return ErrZeroAmount
	}
	if err := tx.Debit(from, id, amount); err != nil {
		return err
	}
	return tx.Credit(to, id, amount)
}
