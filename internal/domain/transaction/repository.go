package transaction

import (
	"context"
	"time"
)

// Store defines the persistence contract for payment transactions.
//
// All lookups are safe to call with no matching row: they return (nil, nil),
// never an error. UpdateStatusFrom is the compare-and-set primitive that
// enforces the at-most-once terminal transition; callers must treat a false
// return as "someone else already finalized this transaction".
type Store interface {
	// Create persists a new transaction and assigns its ID.
	Create(ctx context.Context, tx *Transaction) error

	// GetByID retrieves a transaction by ID.
	GetByID(ctx context.Context, id int64) (*Transaction, error)

	// FindRecentByID returns the last transaction with the given ID created
	// within the window, or nil.
	FindRecentByID(ctx context.Context, id int64, window time.Duration) (*Transaction, error)

	// FindRecentByEmail returns the last transaction for the given email
	// created within the window, or nil.
	FindRecentByEmail(ctx context.Context, email string, window time.Duration) (*Transaction, error)

	// UpdateStatusFrom atomically moves the transaction from status `from`
	// to status `to`. It reports whether a row actually transitioned.
	UpdateStatusFrom(ctx context.Context, id int64, from, to Status) (bool, error)
}
