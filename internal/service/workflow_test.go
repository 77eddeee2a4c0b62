package service

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	domainErrors "github.com/dsamarin/gatepay/internal/domain/errors"
	"github.com/dsamarin/gatepay/internal/domain/transaction"
	"github.com/dsamarin/gatepay/internal/gateway"
	"github.com/dsamarin/gatepay/internal/infrastructure/config"
	"github.com/dsamarin/gatepay/internal/infrastructure/observability"
	"github.com/dsamarin/gatepay/internal/infrastructure/redis"
	"github.com/dsamarin/gatepay/internal/testutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Test Helpers ---

func strPtr(s string) *string { return &s }

func demoGatewayConfig() gateway.Config {
	return gateway.Config{
		URLs: gateway.URLSet{
			Return:  "https://shop.example.com/payments/return",
			Notify:  "https://shop.example.com/payments/notify",
			Cancel:  "https://shop.example.com/payments/cancel",
			Success: "https://shop.example.com/thanks",
			Fail:    "https://shop.example.com/sorry",
		},
		Parameters: map[string]*string{
			"merchantId":  strPtr("m-1001"),
			"amount":      strPtr("AMOUNT"),
			"currency":    strPtr("CURRENCY"),
			"email":       strPtr("CUSTOMER_EMAIL"),
			"invoiceId":   strPtr("PAYMENT_ID"),
			"orderNumber": strPtr("ORDER_ID"),
			"returnUrl":   strPtr("RETURN_URL"),
			"signature":   nil,
		},
	}
}

func defaultPaymentConfig() config.PaymentConfig {
	return config.PaymentConfig{
		LookupWindow:     30 * time.Minute,
		GatewayTimeout:   2 * time.Second,
		ReconcileLockTTL: 30 * time.Second,
		SessionTTL:       time.Hour,
		PaidStatusName:   "paid",
		DataKeys: config.DataKeysConfig{
			PaymentID:     []string{"transactionId", "invoiceId"},
			CustomerEmail: []string{"email", "customerEmail"},
		},
	}
}

type workflowFixture struct {
	workflow *PaymentWorkflow
	store    *testutil.MockTransactionStore
	orders   *testutil.MockOrderGateway
	sessions *testutil.MockSessionStore
	lock     *testutil.MockLock
}

func setupWorkflowWith(gwCfg gateway.Config, payCfg config.PaymentConfig, clientOpts ...gateway.MockClientOption) *workflowFixture {
	fx := &workflowFixture{
		store:    testutil.NewMockTransactionStore(),
		orders:   testutil.NewMockOrderGateway(),
		sessions: testutil.NewMockSessionStore(),
		lock:     &testutil.MockLock{},
	}
	factory := gateway.NewFactory(gateway.NewMockClient("demo", clientOpts...))
	fx.workflow = NewPaymentWorkflow(
		fx.store,
		fx.orders,
		factory,
		&testutil.MockTransactionManager{},
		fx.sessions,
		func(int64) PaymentLock { return fx.lock },
		map[string]gateway.Config{"demo": gwCfg},
		payCfg,
		observability.NewMetrics("test", prometheus.NewRegistry()),
		zerolog.Nop(),
	)
	return fx
}

func setupWorkflow(clientOpts ...gateway.MockClientOption) *workflowFixture {
	return setupWorkflowWith(demoGatewayConfig(), defaultPaymentConfig(), clientOpts...)
}

func resolvedParams(t *testing.T, result *gateway.Result) map[string]string {
	t.Helper()
	params, ok := result.Data["params"].(map[string]string)
	require.True(t, ok, "mock result should echo the request params")
	return params
}

// --- Start Tests ---

func TestStart_RedirectsToGateway(t *testing.T) {
	fx := setupWorkflow()
	fx.orders.AddOrder(testutil.NewTestOrder(42, 7, "buyer@example.com", 10000, "demo"))

	res, err := fx.workflow.Start(context.Background(), StartRequest{OrderID: 42, UserID: 7})
	require.NoError(t, err)
	assert.True(t, res.Result.Redirect)
	assert.NotEmpty(t, res.SessionToken)

	stored := fx.store.Get(res.Transaction.ID)
	require.NotNil(t, stored)
	assert.Equal(t, transaction.StatusCreated, stored.Status)
	assert.Equal(t, int64(10000), stored.AmountCents)
	assert.Equal(t, "demo", stored.GatewayName())

	params := resolvedParams(t, res.Result)
	assert.Equal(t, "100.00", params["amount"])
	assert.Equal(t, "EUR", params["currency"])
	assert.Equal(t, "buyer@example.com", params["email"])
	assert.Equal(t, "42", params["orderNumber"])
	assert.Equal(t, "m-1001", params["merchantId"])
}

func TestStart_AuthorizeFirstGateway(t *testing.T) {
	gwCfg := demoGatewayConfig()
	gwCfg.PrefersAuthorize = true
	fx := setupWorkflowWith(gwCfg, defaultPaymentConfig(), gateway.WithSupportsAuthorize())
	fx.orders.AddOrder(testutil.NewTestOrder(42, 7, "buyer@example.com", 10000, "demo"))

	res, err := fx.workflow.Start(context.Background(), StartRequest{OrderID: 42, UserID: 7})
	require.NoError(t, err)
	assert.True(t, res.Result.Redirect)
	// the mock's authorize flow redirects with the invoice id
	assert.Contains(t, res.Result.RedirectURL, "invoice=")
}

func TestStart_PrefersAuthorizeButUnsupported_FallsBackToPurchase(t *testing.T) {
	gwCfg := demoGatewayConfig()
	gwCfg.PrefersAuthorize = true
	fx := setupWorkflowWith(gwCfg, defaultPaymentConfig())
	fx.orders.AddOrder(testutil.NewTestOrder(42, 7, "buyer@example.com", 10000, "demo"))

	res, err := fx.workflow.Start(context.Background(), StartRequest{OrderID: 42, UserID: 7})
	require.NoError(t, err)
	assert.Contains(t, res.Result.RedirectURL, "order=")
}

func TestStart_OrderNotFound(t *testing.T) {
	fx := setupWorkflow()

	_, err := fx.workflow.Start(context.Background(), StartRequest{OrderID: 99, UserID: 7})
	assert.ErrorIs(t, err, domainErrors.ErrOrderNotFound)
}

func TestStart_ForeignOrder_Forbidden(t *testing.T) {
	fx := setupWorkflow()
	fx.orders.AddOrder(testutil.NewTestOrder(42, 7, "buyer@example.com", 10000, "demo"))

	_, err := fx.workflow.Start(context.Background(), StartRequest{OrderID: 42, UserID: 8, Email: "other@example.com"})
	assert.ErrorIs(t, err, domainErrors.ErrForbidden)
}

func TestStart_AlreadyPaidOrder(t *testing.T) {
	fx := setupWorkflow()
	o := testutil.NewTestOrder(42, 7, "buyer@example.com", 10000, "demo")
	o.IsPaid = true
	fx.orders.AddOrder(o)

	_, err := fx.workflow.Start(context.Background(), StartRequest{OrderID: 42, UserID: 7})
	assert.ErrorIs(t, err, domainErrors.ErrOrderPaid)
}

func TestStart_UnknownGateway(t *testing.T) {
	fx := setupWorkflow()
	fx.orders.AddOrder(testutil.NewTestOrder(42, 7, "buyer@example.com", 10000, "ghost"))

	_, err := fx.workflow.Start(context.Background(), StartRequest{OrderID: 42, UserID: 7})
	assert.ErrorIs(t, err, domainErrors.ErrGatewayNotFound)
}

func TestStart_GuestCheckout_Allowed(t *testing.T) {
	payCfg := defaultPaymentConfig()
	payCfg.AllowGuest = true
	fx := setupWorkflowWith(demoGatewayConfig(), payCfg)
	fx.orders.AddOrder(testutil.NewTestOrder(42, 0, "guest@example.com", 5000, "demo"))

	res, err := fx.workflow.Start(context.Background(), StartRequest{OrderID: 42})
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Transaction.UserID)
}

func TestStart_GuestCheckout_Disabled(t *testing.T) {
	fx := setupWorkflow()
	fx.orders.AddOrder(testutil.NewTestOrder(42, 0, "guest@example.com", 5000, "demo"))

	_, err := fx.workflow.Start(context.Background(), StartRequest{OrderID: 42})
	assert.ErrorIs(t, err, domainErrors.ErrForbidden)
}

func TestStart_GuestCheckout_OwnedOrderRejected(t *testing.T) {
	payCfg := defaultPaymentConfig()
	payCfg.AllowGuest = true
	fx := setupWorkflowWith(demoGatewayConfig(), payCfg)
	fx.orders.AddOrder(testutil.NewTestOrder(42, 7, "buyer@example.com", 5000, "demo"))

	_, err := fx.workflow.Start(context.Background(), StartRequest{OrderID: 42})
	assert.ErrorIs(t, err, domainErrors.ErrForbidden)
}

func TestStart_GatewayFailure_MarksError(t *testing.T) {
	fx := setupWorkflow(gateway.WithFailure("card declined"))
	fx.orders.AddOrder(testutil.NewTestOrder(42, 7, "buyer@example.com", 10000, "demo"))

	res, err := fx.workflow.Start(context.Background(), StartRequest{OrderID: 42, UserID: 7})
	require.NoError(t, err)
	assert.True(t, res.Result.Failed())
	assert.Equal(t, "card declined", res.Result.Message)
	assert.Equal(t, transaction.StatusError, fx.store.Get(res.Transaction.ID).Status)
}

func TestStart_GatewayError_MarksError(t *testing.T) {
	fx := setupWorkflow(gateway.WithError(errors.New("connection reset")))
	fx.orders.AddOrder(testutil.NewTestOrder(42, 7, "buyer@example.com", 10000, "demo"))

	_, err := fx.workflow.Start(context.Background(), StartRequest{OrderID: 42, UserID: 7})
	assert.ErrorIs(t, err, domainErrors.ErrGatewayUnavailable)

	// the row was already persisted, so it must land in error
	assert.Equal(t, transaction.StatusError, fx.store.Get(1).Status)
}

// --- LocatePayment Tests ---

func TestLocatePayment_ByTransactionID(t *testing.T) {
	fx := setupWorkflow()
	fx.store.AddTransaction(testutil.NewTestTransaction(5, 7, "buyer@example.com", 42, 10000, "demo"))

	found, err := fx.workflow.LocatePayment(context.Background(), url.Values{"transactionId": {"5"}})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, int64(5), found.ID)
}

func TestLocatePayment_IDAliasBeatsEmail(t *testing.T) {
	fx := setupWorkflow()
	fx.store.AddTransaction(testutil.NewTestTransaction(5, 7, "buyer@example.com", 42, 10000, "demo"))
	fx.store.AddTransaction(testutil.NewTestTransaction(6, 8, "other@example.com", 43, 2000, "demo"))

	found, err := fx.workflow.LocatePayment(context.Background(), url.Values{
		"invoiceId": {"5"},
		"email":     {"other@example.com"},
	})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, int64(5), found.ID)
}

func TestLocatePayment_ByEmail(t *testing.T) {
	fx := setupWorkflow()
	fx.store.AddTransaction(testutil.NewTestTransaction(5, 7, "buyer@example.com", 42, 10000, "demo"))

	found, err := fx.workflow.LocatePayment(context.Background(), url.Values{"customerEmail": {"buyer@example.com"}})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, int64(5), found.ID)
}

func TestLocatePayment_WithinWindow(t *testing.T) {
	fx := setupWorkflow()
	fx.store.AddTransaction(testutil.NewStaleTransaction(5, 7, "buyer@example.com", 42, 10000, "demo", 29*time.Minute))

	found, err := fx.workflow.LocatePayment(context.Background(), url.Values{"transactionId": {"5"}})
	require.NoError(t, err)
	assert.NotNil(t, found)
}

func TestLocatePayment_OutsideWindow(t *testing.T) {
	fx := setupWorkflow()
	fx.store.AddTransaction(testutil.NewStaleTransaction(5, 7, "buyer@example.com", 42, 10000, "demo", 31*time.Minute))

	found, err := fx.workflow.LocatePayment(context.Background(), url.Values{"transactionId": {"5"}})
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestLocatePayment_AlreadyHandled(t *testing.T) {
	fx := setupWorkflow()
	done := testutil.NewTestTransaction(5, 7, "buyer@example.com", 42, 10000, "demo")
	done.Status = transaction.StatusCompleted
	fx.store.AddTransaction(done)

	found, err := fx.workflow.LocatePayment(context.Background(), url.Values{"transactionId": {"5"}})
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestLocatePayment_NoUsableKeys(t *testing.T) {
	fx := setupWorkflow()

	found, err := fx.workflow.LocatePayment(context.Background(), url.Values{"foo": {"bar"}})
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestLocatePayment_MalformedID(t *testing.T) {
	fx := setupWorkflow()
	fx.store.AddTransaction(testutil.NewTestTransaction(5, 7, "buyer@example.com", 42, 10000, "demo"))

	found, err := fx.workflow.LocatePayment(context.Background(), url.Values{"transactionId": {"abc"}})
	require.NoError(t, err)
	assert.Nil(t, found)
}

// --- Reconcile Tests ---

func TestReconcile_Success_CompletesAndMarksPaid(t *testing.T) {
	fx := setupWorkflow()
	fx.orders.AddOrder(testutil.NewTestOrder(42, 7, "buyer@example.com", 10000, "demo"))
	pending := testutil.NewTestTransaction(5, 7, "buyer@example.com", 42, 10000, "demo")
	fx.store.AddTransaction(pending)

	out, err := fx.workflow.Reconcile(context.Background(), pending, gateway.KindCompletePurchase, SourceNotify, url.Values{"invoiceId": {"5"}})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, out.Kind)
	assert.Equal(t, "OK", out.Message)

	assert.Equal(t, transaction.StatusCompleted, fx.store.Get(5).Status)
	o, _ := fx.orders.GetByID(context.Background(), 42)
	assert.True(t, o.IsPaid)
	assert.Equal(t, "paid", fx.orders.PaidStatus(42))
}

func TestReconcile_DuplicateCallback_NoOp(t *testing.T) {
	fx := setupWorkflow()
	fx.orders.AddOrder(testutil.NewTestOrder(42, 7, "buyer@example.com", 10000, "demo"))
	pending := testutil.NewTestTransaction(5, 7, "buyer@example.com", 42, 10000, "demo")
	fx.store.AddTransaction(pending)

	first, err := fx.workflow.Reconcile(context.Background(), pending, gateway.KindCompletePurchase, SourceNotify, url.Values{})
	require.NoError(t, err)
	require.Equal(t, OutcomeCompleted, first.Kind)

	second, err := fx.workflow.Reconcile(context.Background(), pending, gateway.KindCompletePurchase, SourceReturn, url.Values{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, second.Kind)
	assert.Equal(t, transaction.StatusCompleted, fx.store.Get(5).Status)
}

func TestReconcile_Failure_MarksError(t *testing.T) {
	fx := setupWorkflow(gateway.WithFailure("signature mismatch"))
	fx.orders.AddOrder(testutil.NewTestOrder(42, 7, "buyer@example.com", 10000, "demo"))
	pending := testutil.NewTestTransaction(5, 7, "buyer@example.com", 42, 10000, "demo")
	fx.store.AddTransaction(pending)

	out, err := fx.workflow.Reconcile(context.Background(), pending, gateway.KindCompletePurchase, SourceReturn, url.Values{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, out.Kind)
	assert.Equal(t, "signature mismatch", out.Message)
	assert.Equal(t, transaction.StatusError, fx.store.Get(5).Status)

	o, _ := fx.orders.GetByID(context.Background(), 42)
	assert.False(t, o.IsPaid)
}

func TestReconcile_GatewayError_MarksError(t *testing.T) {
	fx := setupWorkflow(gateway.WithError(errors.New("connection reset")))
	fx.orders.AddOrder(testutil.NewTestOrder(42, 7, "buyer@example.com", 10000, "demo"))
	pending := testutil.NewTestTransaction(5, 7, "buyer@example.com", 42, 10000, "demo")
	fx.store.AddTransaction(pending)

	out, err := fx.workflow.Reconcile(context.Background(), pending, gateway.KindCompletePurchase, SourceNotify, url.Values{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, out.Kind)
	assert.Equal(t, transaction.StatusError, fx.store.Get(5).Status)
}

func TestReconcile_Timeout_MarksError(t *testing.T) {
	payCfg := defaultPaymentConfig()
	payCfg.GatewayTimeout = 20 * time.Millisecond
	fx := setupWorkflowWith(demoGatewayConfig(), payCfg, gateway.WithLatency(200*time.Millisecond))
	fx.orders.AddOrder(testutil.NewTestOrder(42, 7, "buyer@example.com", 10000, "demo"))
	pending := testutil.NewTestTransaction(5, 7, "buyer@example.com", 42, 10000, "demo")
	fx.store.AddTransaction(pending)

	out, err := fx.workflow.Reconcile(context.Background(), pending, gateway.KindCompletePurchase, SourceNotify, url.Values{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, out.Kind)
	assert.Equal(t, transaction.StatusError, fx.store.Get(5).Status)
}

func TestReconcile_OrderMissing_LooksLikeUnknownPayment(t *testing.T) {
	fx := setupWorkflow()
	pending := testutil.NewTestTransaction(5, 7, "buyer@example.com", 42, 10000, "demo")
	fx.store.AddTransaction(pending)

	_, err := fx.workflow.Reconcile(context.Background(), pending, gateway.KindCompletePurchase, SourceNotify, url.Values{})
	assert.ErrorIs(t, err, domainErrors.ErrPaymentNotFound)
	assert.Equal(t, transaction.StatusCreated, fx.store.Get(5).Status)
}

func TestReconcile_OrderOwnerMismatch_LooksLikeUnknownPayment(t *testing.T) {
	fx := setupWorkflow()
	fx.orders.AddOrder(testutil.NewTestOrder(42, 8, "other@example.com", 10000, "demo"))
	pending := testutil.NewTestTransaction(5, 7, "buyer@example.com", 42, 10000, "demo")
	fx.store.AddTransaction(pending)

	_, err := fx.workflow.Reconcile(context.Background(), pending, gateway.KindCompletePurchase, SourceNotify, url.Values{})
	assert.ErrorIs(t, err, domainErrors.ErrPaymentNotFound)
}

func TestReconcile_LockHeld_Skips(t *testing.T) {
	fx := setupWorkflow()
	fx.orders.AddOrder(testutil.NewTestOrder(42, 7, "buyer@example.com", 10000, "demo"))
	pending := testutil.NewTestTransaction(5, 7, "buyer@example.com", 42, 10000, "demo")
	fx.store.AddTransaction(pending)
	fx.lock.AcquireFunc = func(ctx context.Context) (bool, error) { return false, nil }

	out, err := fx.workflow.Reconcile(context.Background(), pending, gateway.KindCompletePurchase, SourceReturn, url.Values{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, out.Kind)
	assert.Equal(t, transaction.StatusCreated, fx.store.Get(5).Status)
}

func TestReconcile_AuthorizeKind_PassesRedirectThrough(t *testing.T) {
	gwCfg := demoGatewayConfig()
	gwCfg.PrefersAuthorize = true
	fx := setupWorkflowWith(gwCfg, defaultPaymentConfig(), gateway.WithSupportsAuthorize())
	fx.orders.AddOrder(testutil.NewTestOrder(42, 7, "buyer@example.com", 10000, "demo"))
	pending := testutil.NewTestTransaction(5, 7, "buyer@example.com", 42, 10000, "demo")
	fx.store.AddTransaction(pending)

	kind := fx.workflow.ReconcileKind(pending)
	assert.Equal(t, gateway.KindAuthorize, kind)

	out, err := fx.workflow.Reconcile(context.Background(), pending, kind, SourceReturn, url.Values{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeRedirect, out.Kind)
	assert.NotEmpty(t, out.RedirectURL)
	assert.Equal(t, transaction.StatusCreated, fx.store.Get(5).Status)
}

func TestReconcileKind_DefaultsToCompletePurchase(t *testing.T) {
	fx := setupWorkflow()
	pending := testutil.NewTestTransaction(5, 7, "buyer@example.com", 42, 10000, "demo")

	assert.Equal(t, gateway.KindCompletePurchase, fx.workflow.ReconcileKind(pending))
}

// --- Cancel Tests ---

func TestCancel_PendingPayment(t *testing.T) {
	fx := setupWorkflow()
	fx.store.AddTransaction(testutil.NewTestTransaction(5, 7, "buyer@example.com", 42, 10000, "demo"))
	fx.sessions.AddSession("tok-1", redis.Session{TransactionID: 5, Email: "buyer@example.com", UserID: 7, GatewayName: "demo"})

	out, err := fx.workflow.Cancel(context.Background(), "tok-1", url.Values{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, out.Kind)
	assert.Equal(t, "https://shop.example.com/sorry", out.URLs.Fail)
	assert.Equal(t, transaction.StatusCanceled, fx.store.Get(5).Status)

	_, err = fx.sessions.Get(context.Background(), "tok-1")
	assert.ErrorIs(t, err, domainErrors.ErrSessionNotFound)
}

func TestCancel_GatewayGone_StillCancels(t *testing.T) {
	fx := setupWorkflow()
	fx.store.AddTransaction(testutil.NewTestTransaction(5, 7, "buyer@example.com", 42, 10000, "ghost"))
	fx.sessions.AddSession("tok-1", redis.Session{TransactionID: 5, GatewayName: "ghost"})

	out, err := fx.workflow.Cancel(context.Background(), "tok-1", url.Values{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, out.Kind)
	assert.Empty(t, out.URLs.Fail)
	assert.Equal(t, transaction.StatusCanceled, fx.store.Get(5).Status)
}

func TestCancel_NoSession(t *testing.T) {
	fx := setupWorkflow()

	_, err := fx.workflow.Cancel(context.Background(), "missing", url.Values{})
	assert.ErrorIs(t, err, domainErrors.ErrPaymentNotFound)
}

func TestCancel_EmptyToken(t *testing.T) {
	fx := setupWorkflow()

	_, err := fx.workflow.Cancel(context.Background(), "", url.Values{})
	assert.ErrorIs(t, err, domainErrors.ErrPaymentNotFound)
}

func TestCancel_AlreadyFinalized(t *testing.T) {
	fx := setupWorkflow()
	done := testutil.NewTestTransaction(5, 7, "buyer@example.com", 42, 10000, "demo")
	done.Status = transaction.StatusCompleted
	fx.store.AddTransaction(done)
	fx.sessions.AddSession("tok-1", redis.Session{TransactionID: 5})

	_, err := fx.workflow.Cancel(context.Background(), "tok-1", url.Values{})
	assert.ErrorIs(t, err, domainErrors.ErrPaymentNotFound)
	assert.Equal(t, transaction.StatusCompleted, fx.store.Get(5).Status)
}

// --- LocateBySession Tests ---

func TestLocateBySession_PendingOnly(t *testing.T) {
	fx := setupWorkflow()
	fx.store.AddTransaction(testutil.NewTestTransaction(5, 7, "buyer@example.com", 42, 10000, "demo"))
	fx.sessions.AddSession("tok-1", redis.Session{TransactionID: 5})

	found, err := fx.workflow.LocateBySession(context.Background(), "tok-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, int64(5), found.ID)

	found, err = fx.workflow.LocateBySession(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Nil(t, found)
}
