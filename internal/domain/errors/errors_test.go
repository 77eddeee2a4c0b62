package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Error(t *testing.T) {
	err := NewDomainError("gateway_failed", "purchase rejected", ErrGatewayUnavailable)
	assert.Equal(t, "purchase rejected: payment gateway unavailable", err.Error())

	noWrap := NewDomainError("gateway_failed", "purchase rejected", nil)
	assert.Equal(t, "purchase rejected", noWrap.Error())
}

func TestDomainError_Unwrap(t *testing.T) {
	err := NewDomainError("finalized", "duplicate callback", ErrAlreadyFinalized)
	assert.ErrorIs(t, err, ErrAlreadyFinalized)
	assert.NotErrorIs(t, err, ErrPaymentNotFound)
}

func TestValidationError_Error(t *testing.T) {
	err := NewValidationError("amount", "must be non-negative")
	assert.Equal(t, "validation failed for field amount: must be non-negative", err.Error())

	var ve *ValidationError
	assert.True(t, errors.As(err, &ve))
	assert.Equal(t, "amount", ve.Field)
}
