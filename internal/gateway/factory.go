package gateway

import (
	"fmt"
	"time"

	"github.com/dsamarin/gatepay/internal/domain/errors"
	"github.com/sony/gobreaker/v2"
)

// Factory holds the registered gateway clients and a circuit breaker per
// gateway. Registration happens at startup; the factory is read-only after.
type Factory struct {
	clients         map[string]Client
	circuitBreakers map[string]*gobreaker.CircuitBreaker[*Result]
}

func NewFactory(clients ...Client) *Factory {
	f := &Factory{
		clients:         make(map[string]Client),
		circuitBreakers: make(map[string]*gobreaker.CircuitBreaker[*Result]),
	}
	for _, c := range clients {
		f.Register(c)
	}
	return f
}

func (f *Factory) Register(c Client) {
	f.clients[c.Name()] = c
	f.circuitBreakers[c.Name()] = gobreaker.NewCircuitBreaker[*Result](gobreaker.Settings{
		Name:        c.Name(),
		MaxRequests: 10,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 10 && failureRatio >= 0.6
		},
	})
}

// Get returns the client and breaker registered under name.
func (f *Factory) Get(name string) (Client, *gobreaker.CircuitBreaker[*Result], error) {
	c, ok := f.clients[name]
	if !ok {
		return nil, nil, fmt.Errorf("gateway %q: %w", name, errors.ErrGatewayNotFound)
	}
	return c, f.circuitBreakers[name], nil
}

// Has reports whether a client is registered under name.
func (f *Factory) Has(name string) bool {
	_, ok := f.clients[name]
	return ok
}
