package service

import "context"

// TransactionManager defines the interface for database transaction management.
// The workflow uses it to commit the payment status change and the order
// paid flag atomically.
type TransactionManager interface {
	// WithTransaction executes the given function within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	// Otherwise, it is committed.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
