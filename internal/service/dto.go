package service

import (
	"context"
	"net/url"

	"github.com/dsamarin/gatepay/internal/domain/transaction"
	"github.com/dsamarin/gatepay/internal/gateway"
	"github.com/dsamarin/gatepay/internal/infrastructure/redis"
)

// Source labels the callback endpoint a request arrived on. It tags audit
// logs and metrics.
type Source string

const (
	SourceStart  Source = "start"
	SourceReturn Source = "return"
	SourceNotify Source = "notify"
	SourceCancel Source = "cancel"
)

// StartRequest holds the input for starting a payment.
// Controllers convert their HTTP request to this type.
type StartRequest struct {
	OrderID  int64
	UserID   int64 // 0 = anonymous
	Email    string
	ClientIP string
	Values   url.Values // merged query and form values
}

// StartResult is what starting a payment hands back to the HTTP layer:
// the created transaction, the gateway's immediate answer (redirect or
// inline message) and the session token to set as a cookie.
type StartResult struct {
	Transaction  *transaction.Transaction
	Result       *gateway.Result
	SessionToken string
	URLs         gateway.URLSet
}

// OutcomeKind classifies a reconcile result for the HTTP layer.
type OutcomeKind string

const (
	// OutcomeCompleted means the payment transitioned to completed and the
	// order was marked paid.
	OutcomeCompleted OutcomeKind = "completed"
	// OutcomeRedirect means the gateway wants another browser round-trip;
	// payment status is unchanged.
	OutcomeRedirect OutcomeKind = "redirect"
	// OutcomeFailed means the gateway reported failure or the call errored;
	// the payment transitioned to error.
	OutcomeFailed OutcomeKind = "failed"
	// OutcomeSkipped means another callback already handled the payment.
	OutcomeSkipped OutcomeKind = "skipped"
)

// Outcome is the normalized result of reconciling a callback. RedirectURL is
// set for OutcomeRedirect; URLs carries the configured success/fail targets
// so browser-facing endpoints can redirect when the gateway sent no message.
type Outcome struct {
	Kind        OutcomeKind
	Message     string
	RedirectURL string
	URLs        gateway.URLSet
}

// SessionStore is the payment session hint storage the workflow depends on.
// Implemented by the redis session store; mocked in tests.
type SessionStore interface {
	Save(ctx context.Context, sess redis.Session) (string, error)
	Get(ctx context.Context, token string) (*redis.Session, error)
	Delete(ctx context.Context, token string) error
}

// PaymentLock is one advisory per-payment lock.
type PaymentLock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// LockFunc hands out a PaymentLock for a payment id.
type LockFunc func(paymentID int64) PaymentLock
