package gateway

import (
	"context"
)

// Kind identifies a gateway operation.
type Kind string

const (
	KindPurchase         Kind = "purchase"
	KindAuthorize        Kind = "authorize"
	KindCompletePurchase Kind = "completePurchase"
)

// Result is the normalized outcome of a gateway operation. Exactly one of
// Successful / Redirect / neither (failure) describes it.
type Result struct {
	Successful  bool
	Redirect    bool
	RedirectURL string
	Message     string
	Reference   string         // gateway-side transaction reference, if any
	Data        map[string]any // raw response payload, logged for audit
}

// Failed reports whether the result is neither success nor redirect.
func (r *Result) Failed() bool {
	return !r.Successful && !r.Redirect
}

// Client is a single gateway adapter. All protocol handling, signing and
// crypto live behind this interface; the workflow only sees parameter maps
// and normalized results.
type Client interface {
	// Name returns the gateway name this client is registered under.
	Name() string
	// SupportsAuthorize reports whether the gateway implements the
	// two-phase authorize/capture flow.
	SupportsAuthorize() bool
	// Purchase runs the single-call authorize-and-capture flow.
	Purchase(ctx context.Context, params map[string]string) (*Result, error)
	// Authorize reserves funds for a later capture.
	Authorize(ctx context.Context, params map[string]string) (*Result, error)
	// CompletePurchase finalizes a purchase from callback data.
	CompletePurchase(ctx context.Context, params map[string]string) (*Result, error)
}
