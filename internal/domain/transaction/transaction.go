package transaction

import (
	"fmt"
	"time"

	"github.com/dsamarin/gatepay/internal/domain/errors"
)

// Status represents the transaction status in the state machine.
// A transaction is created exactly once and finalized at most once;
// completed, error and canceled are terminal.
type Status string

const (
	StatusCreated   Status = "created"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
	StatusCanceled  Status = "canceled"
)

// OptGatewayName is the options key carrying the gateway chosen at start time.
const OptGatewayName = "gatewayName"

// Transaction represents a single payment attempt against an order.
type Transaction struct {
	ID          int64
	UserID      int64 // 0 for guest checkout
	Email       string
	OrderID     int64
	Currency    string
	AmountCents int64
	Description string
	Status      Status
	Options     map[string]string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// New creates a transaction in the created status.
func New(userID int64, email string, orderID int64, amountCents int64, currency, description, gatewayName string) (*Transaction, error) {
	if amountCents < 0 {
		return nil, errors.NewValidationError("amount", "must be non-negative")
	}
	if len(currency) != 3 {
		return nil, errors.NewValidationError("currency", "must be a 3-letter ISO code")
	}
	if gatewayName == "" {
		return nil, errors.NewValidationError("gatewayName", "cannot be empty")
	}

	now := time.Now()
	return &Transaction{
		UserID:      userID,
		Email:       email,
		OrderID:     orderID,
		Currency:    currency,
		AmountCents: amountCents,
		Description: description,
		Status:      StatusCreated,
		Options:     map[string]string{OptGatewayName: gatewayName},
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// GatewayName returns the gateway recorded at start time, or "".
func (t *Transaction) GatewayName() string {
	return t.Options[OptGatewayName]
}

// Option returns a named option value, or "".
func (t *Transaction) Option(name string) string {
	return t.Options[name]
}

// CanTransitionTo checks whether the status transition is allowed.
// The only valid transitions are created -> {completed, error, canceled}.
func (t *Transaction) CanTransitionTo(newStatus Status) bool {
	if t.Status != StatusCreated {
		return false
	}
	switch newStatus {
	case StatusCompleted, StatusError, StatusCanceled:
		return true
	}
	return false
}

// TransitionTo moves the transaction to a terminal status.
func (t *Transaction) TransitionTo(newStatus Status) error {
	if !t.CanTransitionTo(newStatus) {
		return errors.NewDomainError(
			"invalid_transition",
			fmt.Sprintf("cannot transition from %s to %s", t.Status, newStatus),
			errors.ErrInvalidTransition,
		)
	}
	t.Status = newStatus
	t.UpdatedAt = time.Now()
	return nil
}

// IsPending reports whether the transaction still awaits reconciliation.
func (t *Transaction) IsPending() bool {
	return t.Status == StatusCreated
}

// IsTerminal reports whether the transaction reached a terminal status.
func (t *Transaction) IsTerminal() bool {
	return t.Status == StatusCompleted || t.Status == StatusError || t.Status == StatusCanceled
}
