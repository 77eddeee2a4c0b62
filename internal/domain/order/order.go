package order

import "context"

// Order is the read model exposed by the surrounding order subsystem.
// The workflow reads it for ownership and amount checks and writes exactly
// once, to mark it paid.
type Order struct {
	ID            int64
	UserID        int64 // 0 when placed as guest
	Email         string
	PriceCents    int64
	Currency      string
	PaymentMethod string // gateway name selected at checkout
	IsPaid        bool
}

// Gateway is the only touchpoint into the order domain.
//
// Absence is never an error: GetByID and FindOwned return (nil, nil) when no
// order with the ID exists. An ownership mismatch on an existing order is
// different and comes back as ErrForbidden.
type Gateway interface {
	// GetByID retrieves an order by ID.
	GetByID(ctx context.Context, id int64) (*Order, error)

	// FindOwned retrieves the order matching the exact (id, userID, email)
	// combination recorded on a payment transaction. It returns ErrForbidden
	// when the order exists but neither the user nor the email owns it.
	FindOwned(ctx context.Context, id, userID int64, email string) (*Order, error)

	// MarkPaid flags the order as paid and sets the configured status name.
	MarkPaid(ctx context.Context, id int64, statusName string) error
}
