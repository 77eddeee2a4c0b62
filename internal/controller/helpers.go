package controller

import (
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	domainErrors "github.com/dsamarin/gatepay/internal/domain/errors"
	"github.com/rs/zerolog/log"
)

// sessionCookieName carries the opaque payment session token across the
// browser's round-trip to the gateway.
const sessionCookieName = "payment_session"

type errorMapping struct {
	err    error
	status int
}

var errorMappings = []errorMapping{
	{domainErrors.ErrForbidden, http.StatusForbidden},
	{domainErrors.ErrOrderPaid, http.StatusForbidden},
	{domainErrors.ErrOrderNotFound, http.StatusNotFound},
	{domainErrors.ErrGatewayNotFound, http.StatusNotFound},
	{domainErrors.ErrPaymentNotFound, http.StatusNotFound},
	{domainErrors.ErrSessionNotFound, http.StatusNotFound},
	{domainErrors.ErrInvalidInput, http.StatusBadRequest},
}

// hidesExistence reports whether the error is an absence a callback must
// not surface. Return and notify answer an empty 200 for every not-found
// condition so probing requests cannot tell which payments exist.
func hidesExistence(err error) bool {
	return errors.Is(err, domainErrors.ErrPaymentNotFound) ||
		errors.Is(err, domainErrors.ErrOrderNotFound) ||
		errors.Is(err, domainErrors.ErrGatewayNotFound)
}

// writeResponse renders a gateway or workflow message. Gateways that expect
// an XML acknowledgement get application/xml, everything else is HTML.
func writeResponse(w http.ResponseWriter, body string) {
	contentType := "text/html; charset=utf-8"
	if strings.HasPrefix(strings.TrimSpace(body), "<?xml") {
		contentType = "application/xml"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if body != "" {
		w.Write([]byte(body))
	}
}

// writeError maps domain errors onto the browser-facing endpoints. Error
// detail never reaches the response body.
func writeError(w http.ResponseWriter, err error) {
	var validationErr *domainErrors.ValidationError
	if errors.As(err, &validationErr) {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			http.Error(w, http.StatusText(m.status), m.status)
			return
		}
	}

	log.Error().Err(err).Msg("unhandled error in handler")
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

// mergedValues returns query and form body values folded together, the way
// gateways deliver callback payloads: some send everything in the query
// string, some post a form, some do both.
func mergedValues(r *http.Request) url.Values {
	if err := r.ParseForm(); err != nil {
		return r.URL.Query()
	}
	return r.Form
}

// clientIP relies on chi's RealIP middleware having rewritten RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func setSessionCookie(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/payments",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/payments",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func sessionToken(r *http.Request) string {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}
