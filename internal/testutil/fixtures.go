package testutil

import (
	"time"

	"github.com/dsamarin/gatepay/internal/domain/order"
	"github.com/dsamarin/gatepay/internal/domain/transaction"
)

func NewTestOrder(id, userID int64, email string, priceCents int64, gatewayName string) *order.Order {
	return &order.Order{
		ID:            id,
		UserID:        userID,
		Email:         email,
		PriceCents:    priceCents,
		Currency:      "EUR",
		PaymentMethod: gatewayName,
		IsPaid:        false,
	}
}

func NewTestTransaction(id, userID int64, email string, orderID, amountCents int64, gatewayName string) *transaction.Transaction {
	now := time.Now()
	return &transaction.Transaction{
		ID:          id,
		UserID:      userID,
		Email:       email,
		OrderID:     orderID,
		Currency:    "EUR",
		AmountCents: amountCents,
		Description: "test payment",
		Status:      transaction.StatusCreated,
		Options:     map[string]string{transaction.OptGatewayName: gatewayName},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// NewStaleTransaction backdates the transaction so it falls outside any
// reasonable lookup window.
func NewStaleTransaction(id, userID int64, email string, orderID, amountCents int64, gatewayName string, age time.Duration) *transaction.Transaction {
	t := NewTestTransaction(id, userID, email, orderID, amountCents, gatewayName)
	t.CreatedAt = time.Now().Add(-age)
	t.UpdatedAt = t.CreatedAt
	return t
}
