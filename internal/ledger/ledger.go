package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

var (
	// ErrInsufficientBalance is returned when a debit exceeds the user's balance.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrStoreUnavailable is returned when the durable balance store cannot
	// be reached after retries. The in-memory balance is left unchanged.
	ErrStoreUnavailable = errors.New("balance store unavailable")
	// ErrInvalidAmount is returned for zero or negative amounts.
	ErrInvalidAmount = errors.New("amount must be positive")
)

const (
	saveAttempts     = 3
	saveRetryBackoff = 50 * time.Millisecond
)

// Store is the narrow durable interface behind the ledger. Every successful
// mutation is written through the store before it is acknowledged.
type Store interface {
	SaveBalance(ctx context.Context, userId string, balance int) error
	LoadBalance(ctx context.Context, userId string) (int, error)
}

type account struct {
	mu      sync.Mutex
	loaded  bool
	balance int
}

// Ledger tracks per-user token balances. All reads and writes for a given
// user serialize on that user's account lock, so a balance can never be
// observed mid-mutation and can never go negative.
type Ledger struct {
	log      *log.Logger
	store    Store
	mu       sync.Mutex
	accounts map[string]*account
}

func NewLedger(logger *log.Logger, store Store) *Ledger {
	return &Ledger{
		log:      logger,
		store:    store,
		accounts: make(map[string]*account),
	}
}

func (l *Ledger) account(userId string) *account {
	l.mu.Lock()
	defer l.mu.Unlock()

	a, ok := l.accounts[userId]
	if !ok {
		a = &account{}
		l.accounts[userId] = a
	}
	return a
}

// load populates the account from the store on first touch. Callers must
// hold the account lock.
func (l *Ledger) load(ctx context.Context, userId string, a *account) error {
	if a.loaded {
		return nil
	}

	balance, err := l.store.LoadBalance(ctx, userId)
	if err != nil {
		return fmt.Errorf("%w: load %q: %v", ErrStoreUnavailable, userId, err)
	}

	a.balance = balance
	a.loaded = true
	return nil
}

func (l *Ledger) save(ctx context.Context, userId string, balance int) error {
	var err error
	for attempt := 1; attempt <= saveAttempts; attempt++ {
		if err = l.store.SaveBalance(ctx, userId, balance); err == nil {
			return nil
		}

		l.log.Printf("save balance for %q failed (attempt %d): %v", userId, attempt, err)
		if attempt == saveAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, ctx.Err())
		case <-time.After(time.Duration(attempt) * saveRetryBackoff):
		}
	}

	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// Credit adds amount to the user's balance. The durable write happens
// before the in-memory balance changes, so a failed write leaves the
// ledger untouched and the operation is safe to retry.
func (l *Ledger) Credit(ctx context.Context, userId string, amount int) (int, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	a := l.account(userId)
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := l.load(ctx, userId, a); err != nil {
		return 0, err
	}

	newBalance := a.balance + amount
	if err := l.save(ctx, userId, newBalance); err != nil {
		return 0, err
	}

	a.balance = newBalance
	return a.balance, nil
}

// Debit removes amount from the user's balance, failing with
// ErrInsufficientBalance if the balance would go negative.
func (l *Ledger) Debit(ctx context.Context, userId string, amount int) (int, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	a := l.account(userId)
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := l.load(ctx, userId, a); err != nil {
		return 0, err
	}

	if a.balance < amount {
		return a.balance, ErrInsufficientBalance
	}

	newBalance := a.balance - amount
	if newBalance < 0 {
		// unreachable unless the serialization above is broken
		panic(fmt.Sprintf("ledger: negative balance %d for user %q", newBalance, userId))
	}

	if err := l.save(ctx, userId, newBalance); err != nil {
		return 0, err
	}

	a.balance = newBalance
	return a.balance, nil
}

// Balance returns the user's current balance.
func (l *Ledger) Balance(ctx context.Context, userId string) (int, error) {
	a := l.account(userId)
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := l.load(ctx, userId, a); err != nil {
		return 0, err
	}

	return a.balance, nil
}
