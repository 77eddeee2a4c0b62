package gateway

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/dsamarin/gatepay/internal/domain/transaction"
)

// TemplateValues are the live values substituted into parameter templates.
type TemplateValues struct {
	Email       string
	PaymentID   int64
	OrderID     int64
	AmountCents int64
	Currency    string
	ClientIP    string
}

// replacer builds the placeholder substitution for one gateway config.
// AMOUNT is always rendered with exactly two fraction digits.
func (c Config) replacer(v TemplateValues) *strings.Replacer {
	return strings.NewReplacer(
		"CUSTOMER_EMAIL", v.Email,
		"PAYMENT_ID", strconv.FormatInt(v.PaymentID, 10),
		"ORDER_ID", strconv.FormatInt(v.OrderID, 10),
		"RETURN_URL", c.URLs.Return,
		"NOTIFY_URL", c.URLs.Notify,
		"CANCEL_URL", c.URLs.Cancel,
		"SUCCESS_URL", c.URLs.Success,
		"FAIL_URL", c.URLs.Fail,
		"AMOUNT", transaction.FormatCents(v.AmountCents),
		"CURRENCY", v.Currency,
		"CUSTOMER_IP_ADDR", v.ClientIP,
	)
}

// ResolveParams builds the parameter map for one gateway operation.
//
// Each parameter resolves through three layers, first non-nil wins:
// the per-operation template (purchase/complete override, else the base
// parameters map) with placeholders substituted; the base parameters value;
// the same-named inbound request field. Anything still unresolved becomes
// an empty string. The config is never mutated.
func ResolveParams(cfg Config, op Kind, vals TemplateValues, request url.Values) map[string]string {
	tpl := cfg.template(op)
	r := cfg.replacer(vals)

	params := make(map[string]string, len(tpl))
	for name, value := range tpl {
		switch {
		case value != nil:
			params[name] = r.Replace(*value)
		case cfg.Parameters[name] != nil:
			params[name] = r.Replace(*cfg.Parameters[name])
		default:
			params[name] = request.Get(name)
		}
	}
	return params
}
