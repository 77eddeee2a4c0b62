package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	domainErrors "github.com/dsamarin/gatepay/internal/domain/errors"
	"github.com/dsamarin/gatepay/internal/domain/order"
	"github.com/dsamarin/gatepay/internal/domain/transaction"
	"github.com/dsamarin/gatepay/internal/gateway"
	"github.com/dsamarin/gatepay/internal/infrastructure/config"
	"github.com/dsamarin/gatepay/internal/infrastructure/observability"
	"github.com/dsamarin/gatepay/internal/infrastructure/redis"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// PaymentWorkflow drives a payment through its lifecycle: start issues the
// initial gateway call, return/notify callbacks locate and reconcile the
// pending transaction, cancel abandons it. Every terminal status change goes
// through the store's compare-and-set, so a duplicate callback is a no-op
// regardless of interleaving.
type PaymentWorkflow struct {
	store     transaction.Store
	orders    order.Gateway
	factory   *gateway.Factory
	txManager TransactionManager
	sessions  SessionStore
	lockFor   LockFunc
	gateways  map[string]gateway.Config
	cfg       config.PaymentConfig
	metrics   *observability.Metrics
	logger    zerolog.Logger
}

// NewPaymentWorkflow creates a new PaymentWorkflow.
func NewPaymentWorkflow(
	store transaction.Store,
	orders order.Gateway,
	factory *gateway.Factory,
	txManager TransactionManager,
	sessions SessionStore,
	lockFor LockFunc,
	gateways map[string]gateway.Config,
	cfg config.PaymentConfig,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *PaymentWorkflow {
	return &PaymentWorkflow{
		store:     store,
		orders:    orders,
		factory:   factory,
		txManager: txManager,
		sessions:  sessions,
		lockFor:   lockFor,
		gateways:  gateways,
		cfg:       cfg,
		metrics:   metrics,
		logger:    logger,
	}
}

// Start creates a payment transaction for the order and issues the single
// outbound gateway call: authorize when the gateway prefers the
// authorize-first flow and its client supports it, purchase otherwise.
func (w *PaymentWorkflow) Start(ctx context.Context, req StartRequest) (*StartResult, error) {
	o, err := w.resolveOwnedOrder(ctx, req)
	if err != nil {
		return nil, err
	}
	if o.IsPaid {
		return nil, domainErrors.ErrOrderPaid
	}

	client, breaker, err := w.factory.Get(o.PaymentMethod)
	if err != nil {
		return nil, err
	}
	cfg, ok := w.gateways[o.PaymentMethod]
	if !ok {
		return nil, domainErrors.ErrGatewayNotFound
	}

	t, err := transaction.New(o.UserID, o.Email, o.ID, o.PriceCents, o.Currency,
		fmt.Sprintf("payment for order %d", o.ID), o.PaymentMethod)
	if err != nil {
		return nil, err
	}
	if err := w.store.Create(ctx, t); err != nil {
		return nil, err
	}

	token, err := w.sessions.Save(ctx, redis.Session{
		TransactionID: t.ID,
		Email:         t.Email,
		UserID:        t.UserID,
		AmountCents:   t.AmountCents,
		Currency:      t.Currency,
		GatewayName:   o.PaymentMethod,
	})
	if err != nil {
		// The session is only a hint; a payment without one still
		// reconciles via the callback payload.
		w.logger.Warn().Err(err).Int64("payment_id", t.ID).Msg("payment session not saved")
	}

	kind := gateway.KindPurchase
	if cfg.PrefersAuthorize && client.SupportsAuthorize() {
		kind = gateway.KindAuthorize
	}
	w.logRequest(SourceStart, t.ID, req.Values)
	w.metrics.PaymentsStarted.WithLabelValues(o.PaymentMethod, string(kind)).Inc()

	params := gateway.ResolveParams(cfg, kind, gateway.TemplateValues{
		Email:       t.Email,
		PaymentID:   t.ID,
		OrderID:     o.ID,
		AmountCents: t.AmountCents,
		Currency:    t.Currency,
		ClientIP:    req.ClientIP,
	}, req.Values)

	result, err := w.callGateway(ctx, client, breaker, kind, params)
	if err != nil {
		w.finalize(ctx, t.ID, transaction.StatusError)
		w.logger.Error().Err(err).Int64("payment_id", t.ID).
			Str("gateway", o.PaymentMethod).Msg("gateway start call failed")
		return nil, domainErrors.ErrGatewayUnavailable
	}
	if result.Failed() {
		w.finalize(ctx, t.ID, transaction.StatusError)
	}

	return &StartResult{Transaction: t, Result: result, SessionToken: token, URLs: cfg.URLs}, nil
}

// LocatePayment finds the pending transaction a callback refers to. A payment
// id field under any configured alias wins; only when no id field is present
// at all does the customer email path run. Both queries are bounded by the
// lookup window. Returns (nil, nil) when nothing usable matches or the
// matched row is no longer pending.
func (w *PaymentWorkflow) LocatePayment(ctx context.Context, values url.Values) (*transaction.Transaction, error) {
	for _, key := range w.cfg.DataKeys.PaymentID {
		raw := values.Get(key)
		if raw == "" {
			continue
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, nil
		}
		t, err := w.store.FindRecentByID(ctx, id, w.cfg.LookupWindow)
		if err != nil {
			return nil, err
		}
		return pendingOnly(t), nil
	}

	for _, key := range w.cfg.DataKeys.CustomerEmail {
		email := values.Get(key)
		if email == "" {
			continue
		}
		t, err := w.store.FindRecentByEmail(ctx, email, w.cfg.LookupWindow)
		if err != nil {
			return nil, err
		}
		return pendingOnly(t), nil
	}

	return nil, nil
}

// LocateBySession resolves the pending transaction from a session token.
// Used by cancel and as a return fallback when the payload carries nothing.
func (w *PaymentWorkflow) LocateBySession(ctx context.Context, token string) (*transaction.Transaction, error) {
	if token == "" {
		return nil, nil
	}
	sess, err := w.sessions.Get(ctx, token)
	if err != nil {
		if errors.Is(err, domainErrors.ErrSessionNotFound) {
			return nil, nil
		}
		return nil, err
	}
	t, err := w.store.GetByID(ctx, sess.TransactionID)
	if err != nil {
		return nil, err
	}
	return pendingOnly(t), nil
}

// ReconcileKind picks the gateway operation callbacks complete with.
func (w *PaymentWorkflow) ReconcileKind(t *transaction.Transaction) gateway.Kind {
	cfg, ok := w.gateways[t.GatewayName()]
	if !ok || !cfg.PrefersAuthorize {
		return gateway.KindCompletePurchase
	}
	if client, _, err := w.factory.Get(t.GatewayName()); err == nil && client.SupportsAuthorize() {
		return gateway.KindAuthorize
	}
	return gateway.KindCompletePurchase
}

// Reconcile completes the gateway transaction for a pending payment and
// settles its status. Success commits the completed status and the order's
// paid flag in one database transaction; failure or a gateway error moves
// the payment to error; a redirect changes nothing. When the row is no
// longer pending by the time the status update runs, the whole call
// degrades to a no-op.
func (w *PaymentWorkflow) Reconcile(ctx context.Context, t *transaction.Transaction, kind gateway.Kind, source Source, values url.Values) (*Outcome, error) {
	w.logRequest(source, t.ID, values)

	// Order mismatch is indistinguishable from an unknown payment on
	// purpose: callbacks must not leak which ids exist.
	o, err := w.orders.FindOwned(ctx, t.OrderID, t.UserID, t.Email)
	if err != nil {
		if errors.Is(err, domainErrors.ErrForbidden) {
			return nil, domainErrors.ErrPaymentNotFound
		}
		return nil, err
	}
	if o == nil {
		return nil, domainErrors.ErrPaymentNotFound
	}

	client, breaker, err := w.factory.Get(t.GatewayName())
	if err != nil {
		return nil, err
	}
	cfg := w.gateways[t.GatewayName()]

	lock := w.lockFor(t.ID)
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		w.logger.Warn().Err(err).Int64("payment_id", t.ID).Msg("reconcile lock unavailable")
	} else if !acquired {
		// Another callback is already talking to the gateway for this
		// payment; let it settle the status.
		return w.outcome(source, &Outcome{Kind: OutcomeSkipped, URLs: cfg.URLs}), nil
	} else {
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
				w.logger.Warn().Err(err).Int64("payment_id", t.ID).Msg("reconcile lock release failed")
			}
		}()
	}

	params := gateway.ResolveParams(cfg, kind, gateway.TemplateValues{
		Email:       t.Email,
		PaymentID:   t.ID,
		OrderID:     o.ID,
		AmountCents: t.AmountCents,
		Currency:    t.Currency,
		ClientIP:    values.Get("clientIp"),
	}, values)

	result, err := w.callGateway(ctx, client, breaker, kind, params)
	if err != nil {
		w.finalize(ctx, t.ID, transaction.StatusError)
		w.logger.Error().Err(err).Int64("payment_id", t.ID).Str("source", string(source)).
			Str("gateway", t.GatewayName()).Msg("gateway reconcile call failed")
		return w.outcome(source, &Outcome{Kind: OutcomeFailed, URLs: cfg.URLs}), nil
	}

	switch {
	case result.Redirect:
		return w.outcome(source, &Outcome{Kind: OutcomeRedirect, RedirectURL: result.RedirectURL, Message: result.Message, URLs: cfg.URLs}), nil

	case result.Successful:
		transitioned, err := w.complete(ctx, t, o.ID)
		if err != nil {
			return nil, err
		}
		if !transitioned {
			return w.outcome(source, &Outcome{Kind: OutcomeSkipped, URLs: cfg.URLs}), nil
		}
		w.logger.Info().Int64("payment_id", t.ID).Str("source", string(source)).
			Str("reference", result.Reference).Msg("payment completed")
		return w.outcome(source, &Outcome{Kind: OutcomeCompleted, Message: result.Message, URLs: cfg.URLs}), nil

	default:
		w.finalize(ctx, t.ID, transaction.StatusError)
		w.logger.Warn().Int64("payment_id", t.ID).Str("source", string(source)).
			Str("message", result.Message).Msg("payment failed")
		return w.outcome(source, &Outcome{Kind: OutcomeFailed, Message: result.Message, URLs: cfg.URLs}), nil
	}
}

// outcome records the callback outcome metric on the way out.
func (w *PaymentWorkflow) outcome(source Source, out *Outcome) *Outcome {
	w.metrics.CallbacksTotal.WithLabelValues(string(source), string(out.Kind)).Inc()
	return out
}

// Cancel abandons the pending payment referenced by the session token. The
// gateway is never contacted.
func (w *PaymentWorkflow) Cancel(ctx context.Context, token string, values url.Values) (*Outcome, error) {
	t, err := w.LocateBySession(ctx, token)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, domainErrors.ErrPaymentNotFound
	}
	w.logRequest(SourceCancel, t.ID, values)

	transitioned, err := w.store.UpdateStatusFrom(ctx, t.ID, transaction.StatusCreated, transaction.StatusCanceled)
	if err != nil {
		return nil, err
	}
	cfg, ok := w.gateways[t.GatewayName()]
	if !ok {
		// gateway dropped from config since the payment started; the
		// cancellation still counts, the caller just has no URLs to use
		w.logger.Warn().Int64("payment_id", t.ID).Str("gateway", t.GatewayName()).
			Msg("gateway no longer configured")
	}
	if !transitioned {
		return w.outcome(SourceCancel, &Outcome{Kind: OutcomeSkipped, URLs: cfg.URLs}), nil
	}
	w.metrics.StatusTransitions.WithLabelValues(string(transaction.StatusCanceled)).Inc()
	w.logger.Info().Int64("payment_id", t.ID).Msg("payment canceled")

	if err := w.sessions.Delete(ctx, token); err != nil {
		w.logger.Warn().Err(err).Int64("payment_id", t.ID).Msg("payment session not deleted")
	}
	return w.outcome(SourceCancel, &Outcome{Kind: OutcomeCompleted, URLs: cfg.URLs}), nil
}

// resolveOwnedOrder loads the order and enforces ownership. Anonymous actors
// are only admitted to ownerless orders, and only when guest checkout is on.
func (w *PaymentWorkflow) resolveOwnedOrder(ctx context.Context, req StartRequest) (*order.Order, error) {
	if req.UserID == 0 && req.Email == "" {
		if !w.cfg.AllowGuest {
			return nil, domainErrors.ErrForbidden
		}
		o, err := w.orders.GetByID(ctx, req.OrderID)
		if err != nil {
			return nil, err
		}
		if o == nil {
			return nil, domainErrors.ErrOrderNotFound
		}
		if o.UserID != 0 {
			return nil, domainErrors.ErrForbidden
		}
		return o, nil
	}

	o, err := w.orders.FindOwned(ctx, req.OrderID, req.UserID, req.Email)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, domainErrors.ErrOrderNotFound
	}
	return o, nil
}

// callGateway runs one gateway operation through the circuit breaker with
// the configured timeout, recording request metrics.
func (w *PaymentWorkflow) callGateway(ctx context.Context, client gateway.Client, breaker *gobreaker.CircuitBreaker[*gateway.Result], kind gateway.Kind, params map[string]string) (*gateway.Result, error) {
	callCtx, cancel := context.WithTimeout(ctx, w.cfg.GatewayTimeout)
	defer cancel()

	start := time.Now()
	result, err := breaker.Execute(func() (*gateway.Result, error) {
		switch kind {
		case gateway.KindAuthorize:
			return client.Authorize(callCtx, params)
		case gateway.KindCompletePurchase:
			return client.CompletePurchase(callCtx, params)
		default:
			return client.Purchase(callCtx, params)
		}
	})

	w.metrics.GatewayRequestDuration.WithLabelValues(client.Name(), string(kind)).
		Observe(time.Since(start).Seconds())
	outcome := "success"
	switch {
	case err != nil:
		outcome = "error"
	case result.Redirect:
		outcome = "redirect"
	case !result.Successful:
		outcome = "failure"
	}
	w.metrics.GatewayRequestsTotal.WithLabelValues(client.Name(), string(kind), outcome).Inc()

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, domainErrors.ErrGatewayTimeout
		}
		return nil, err
	}
	return result, nil
}

// complete commits the completed status and the order paid flag atomically.
// Reports whether this call was the one that transitioned the row.
func (w *PaymentWorkflow) complete(ctx context.Context, t *transaction.Transaction, orderID int64) (bool, error) {
	var transitioned bool
	err := w.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		ok, err := w.store.UpdateStatusFrom(txCtx, t.ID, transaction.StatusCreated, transaction.StatusCompleted)
		if err != nil {
			return err
		}
		transitioned = ok
		if !ok {
			return nil
		}
		return w.orders.MarkPaid(txCtx, orderID, w.cfg.PaidStatusName)
	})
	if err != nil {
		return false, err
	}
	if transitioned {
		w.metrics.StatusTransitions.WithLabelValues(string(transaction.StatusCompleted)).Inc()
	}
	return transitioned, nil
}

// finalize moves a pending payment to a terminal status outside the success
// path. A miss means another callback got there first, which is fine.
func (w *PaymentWorkflow) finalize(ctx context.Context, id int64, to transaction.Status) {
	ok, err := w.store.UpdateStatusFrom(ctx, id, transaction.StatusCreated, to)
	if err != nil {
		w.logger.Error().Err(err).Int64("payment_id", id).Str("status", string(to)).
			Msg("status update failed")
		return
	}
	if ok {
		w.metrics.StatusTransitions.WithLabelValues(string(to)).Inc()
	}
}

// logRequest records the merged callback payload for audit.
func (w *PaymentWorkflow) logRequest(source Source, paymentID int64, values url.Values) {
	fields := make(map[string]interface{}, len(values))
	for name := range values {
		fields[name] = values.Get(name)
	}
	w.logger.Info().Int64("payment_id", paymentID).Str("source", string(source)).
		Fields(fields).Msg("callback request data")
}

// pendingOnly filters out rows another callback already settled.
func pendingOnly(t *transaction.Transaction) *transaction.Transaction {
	if t == nil || !t.IsPending() {
		return nil
	}
	return t
}
