package controller

import (
	"net/http"
	"strconv"
	"time"

	domainErrors "github.com/dsamarin/gatepay/internal/domain/errors"
	"github.com/dsamarin/gatepay/internal/infrastructure/observability"
	"github.com/dsamarin/gatepay/internal/middleware"
	"github.com/dsamarin/gatepay/internal/service"
	"github.com/go-chi/chi/v5"
)

// PaymentController exposes the payment lifecycle over HTTP: start creates
// the transaction and hands the browser to the gateway; return, notify and
// cancel are the callbacks that settle it.
type PaymentController struct {
	workflow   *service.PaymentWorkflow
	metrics    *observability.Metrics
	sessionTTL time.Duration
}

// NewPaymentController creates a new PaymentController.
func NewPaymentController(workflow *service.PaymentWorkflow, metrics *observability.Metrics, sessionTTL time.Duration) *PaymentController {
	return &PaymentController{workflow: workflow, metrics: metrics, sessionTTL: sessionTTL}
}

// Start handles GET/POST /payments/start/{orderID}.
func (h *PaymentController) Start(w http.ResponseWriter, r *http.Request) {
	defer h.observe(service.SourceStart, time.Now())

	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil {
		writeError(w, domainErrors.ErrInvalidInput)
		return
	}

	actor := middleware.ActorFrom(r.Context())
	res, err := h.workflow.Start(r.Context(), service.StartRequest{
		OrderID:  orderID,
		UserID:   actor.UserID,
		Email:    actor.Email,
		ClientIP: clientIP(r),
		Values:   mergedValues(r),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	if res.SessionToken != "" {
		setSessionCookie(w, res.SessionToken, h.sessionTTL)
	}

	switch {
	case res.Result.Redirect:
		http.Redirect(w, r, res.Result.RedirectURL, http.StatusFound)
	case res.Result.Successful:
		// gateways that settle without a redirect, e.g. stored cards
		if res.Result.Message != "" {
			writeResponse(w, res.Result.Message)
			return
		}
		http.Redirect(w, r, res.URLs.Success, http.StatusFound)
	default:
		writeResponse(w, res.Result.Message)
	}
}

// Return handles GET/POST /payments/return, the browser coming back from
// the gateway. An unmatchable callback answers 200 with an empty body so
// probing requests learn nothing.
func (h *PaymentController) Return(w http.ResponseWriter, r *http.Request) {
	defer h.observe(service.SourceReturn, time.Now())

	values := mergedValues(r)
	t, err := h.workflow.LocatePayment(r.Context(), values)
	if err != nil {
		writeError(w, err)
		return
	}
	if t == nil {
		// the payload may be useless while the session cookie still knows
		t, err = h.workflow.LocateBySession(r.Context(), sessionToken(r))
		if err != nil {
			writeError(w, err)
			return
		}
	}
	if t == nil {
		writeResponse(w, "")
		return
	}

	out, err := h.workflow.Reconcile(r.Context(), t, h.workflow.ReconcileKind(t), service.SourceReturn, values)
	if err != nil {
		if hidesExistence(err) {
			writeResponse(w, "")
			return
		}
		writeError(w, err)
		return
	}

	switch out.Kind {
	case service.OutcomeRedirect:
		http.Redirect(w, r, out.RedirectURL, http.StatusFound)
	case service.OutcomeCompleted:
		clearSessionCookie(w)
		if out.Message != "" {
			writeResponse(w, out.Message)
			return
		}
		http.Redirect(w, r, out.URLs.Success, http.StatusFound)
	case service.OutcomeFailed:
		clearSessionCookie(w)
		if out.Message != "" {
			writeResponse(w, out.Message)
			return
		}
		http.Redirect(w, r, out.URLs.Fail, http.StatusFound)
	default:
		writeResponse(w, "")
	}
}

// Notify handles GET/POST /payments/notify, the server-to-server callback.
// It acknowledges with 200 no matter what: gateways retry anything else,
// and a non-200 would also leak which payments exist.
func (h *PaymentController) Notify(w http.ResponseWriter, r *http.Request) {
	defer h.observe(service.SourceNotify, time.Now())

	values := mergedValues(r)
	t, err := h.workflow.LocatePayment(r.Context(), values)
	if err != nil || t == nil {
		writeResponse(w, "")
		return
	}

	if _, err := h.workflow.Reconcile(r.Context(), t, h.workflow.ReconcileKind(t), service.SourceNotify, values); err != nil {
		writeResponse(w, "")
		return
	}
	writeResponse(w, "")
}

// Cancel handles GET/POST /payments/cancel, the browser abandoning the
// gateway's payment page.
func (h *PaymentController) Cancel(w http.ResponseWriter, r *http.Request) {
	defer h.observe(service.SourceCancel, time.Now())

	out, err := h.workflow.Cancel(r.Context(), sessionToken(r), mergedValues(r))
	if err != nil {
		writeError(w, err)
		return
	}

	clearSessionCookie(w)
	if out.URLs.Fail == "" {
		// gateway vanished from config, nowhere to send the browser
		writeResponse(w, "")
		return
	}
	http.Redirect(w, r, out.URLs.Fail, http.StatusFound)
}

func (h *PaymentController) observe(source service.Source, start time.Time) {
	h.metrics.CallbackDuration.WithLabelValues(string(source)).
		Observe(time.Since(start).Seconds())
}
