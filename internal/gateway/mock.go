package gateway

import (
	"context"
	"fmt"
	"time"
)

// MockClient is a configurable in-process gateway adapter used in tests and
// as the demo gateway in development environments.
type MockClient struct {
	name              string
	supportsAuthorize bool
	latency           time.Duration
	redirectBase      string
	failMessage       string // non-empty: purchase/complete report failure
	err               error  // non-nil: every call returns this error
}

type MockClientOption func(*MockClient)

func WithSupportsAuthorize() MockClientOption {
	return func(c *MockClient) { c.supportsAuthorize = true }
}

func WithLatency(d time.Duration) MockClientOption {
	return func(c *MockClient) { c.latency = d }
}

// WithRedirectBase sets the gateway-hosted payment page purchases redirect to.
func WithRedirectBase(u string) MockClientOption {
	return func(c *MockClient) { c.redirectBase = u }
}

func WithFailure(message string) MockClientOption {
	return func(c *MockClient) { c.failMessage = message }
}

func WithError(err error) MockClientOption {
	return func(c *MockClient) { c.err = err }
}

func NewMockClient(name string, opts ...MockClientOption) *MockClient {
	c := &MockClient{
		name:         name,
		latency:      10 * time.Millisecond,
		redirectBase: "https://pay.example.com/checkout",
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *MockClient) Name() string { return c.name }

func (c *MockClient) SupportsAuthorize() bool { return c.supportsAuthorize }

func (c *MockClient) wait(ctx context.Context) error {
	select {
	case <-time.After(c.latency):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *MockClient) Purchase(ctx context.Context, params map[string]string) (*Result, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	if c.err != nil {
		return nil, c.err
	}
	if c.failMessage != "" {
		return &Result{Message: c.failMessage}, nil
	}
	return &Result{
		Redirect:    true,
		RedirectURL: fmt.Sprintf("%s?order=%s", c.redirectBase, params["orderNumber"]),
		Data:        map[string]any{"params": params},
	}, nil
}

func (c *MockClient) Authorize(ctx context.Context, params map[string]string) (*Result, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	if c.err != nil {
		return nil, c.err
	}
	if c.failMessage != "" {
		return &Result{Message: c.failMessage}, nil
	}
	return &Result{
		Redirect:    true,
		RedirectURL: fmt.Sprintf("%s?invoice=%s", c.redirectBase, params["invoiceId"]),
		Data:        map[string]any{"params": params},
	}, nil
}

func (c *MockClient) CompletePurchase(ctx context.Context, params map[string]string) (*Result, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	if c.err != nil {
		return nil, c.err
	}
	if c.failMessage != "" {
		return &Result{Message: c.failMessage}, nil
	}
	return &Result{
		Successful: true,
		Message:    "OK",
		Reference:  fmt.Sprintf("%s_txn_%s", c.name, params["invoiceId"]),
		Data:       map[string]any{"params": params},
	}, nil
}
