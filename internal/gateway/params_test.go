package gateway

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func demoConfig() Config {
	return Config{
		URLs: URLSet{
			Return:  "https://shop.example.com/payments/return",
			Notify:  "https://shop.example.com/payments/notify",
			Cancel:  "https://shop.example.com/payments/cancel",
			Success: "https://shop.example.com/checkout/success",
			Fail:    "https://shop.example.com/checkout/fail",
		},
		Parameters: map[string]*string{
			"username":    strPtr("merchant-1"),
			"orderNumber": strPtr("ORDER_ID"),
			"amount":      strPtr("AMOUNT"),
			"currency":    strPtr("CURRENCY"),
			"returnUrl":   strPtr("NOTIFY_URL"),
			"failUrl":     strPtr("FAIL_URL"),
			"clientIp":    strPtr("CUSTOMER_IP_ADDR"),
		},
		Complete: map[string]*string{
			"username":  strPtr("merchant-1"),
			"invoiceId": strPtr("PAYMENT_ID"),
			"amount":    nil,
			"signature": nil,
		},
	}
}

func demoValues() TemplateValues {
	return TemplateValues{
		Email:       "buyer@example.com",
		PaymentID:   15,
		OrderID:     42,
		AmountCents: 10000,
		Currency:    "RUB",
		ClientIP:    "203.0.113.9",
	}
}

func TestResolveParams_BaseTemplateSubstitution(t *testing.T) {
	params := ResolveParams(demoConfig(), KindPurchase, demoValues(), url.Values{})

	assert.Equal(t, "merchant-1", params["username"])
	assert.Equal(t, "42", params["orderNumber"])
	assert.Equal(t, "100.00", params["amount"], "amount always carries two fraction digits")
	assert.Equal(t, "RUB", params["currency"])
	assert.Equal(t, "https://shop.example.com/payments/notify", params["returnUrl"])
	assert.Equal(t, "https://shop.example.com/checkout/fail", params["failUrl"])
	assert.Equal(t, "203.0.113.9", params["clientIp"])
}

func TestResolveParams_CompleteOverrideFallsBackToBase(t *testing.T) {
	params := ResolveParams(demoConfig(), KindCompletePurchase, demoValues(), url.Values{})

	// Override value wins.
	assert.Equal(t, "15", params["invoiceId"])
	// Nil override value falls back to the base parameters template.
	assert.Equal(t, "100.00", params["amount"])
	// Base template keys absent from the override are not included.
	assert.NotContains(t, params, "orderNumber")
}

func TestResolveParams_RequestFallback(t *testing.T) {
	req := url.Values{}
	req.Set("signature", "a1b2c3")

	params := ResolveParams(demoConfig(), KindCompletePurchase, demoValues(), req)
	assert.Equal(t, "a1b2c3", params["signature"])
}

func TestResolveParams_UnresolvedDefaultsToEmpty(t *testing.T) {
	params := ResolveParams(demoConfig(), KindCompletePurchase, demoValues(), url.Values{})
	assert.Equal(t, "", params["signature"])
}

func TestResolveParams_AuthorizeUsesCompleteOverride(t *testing.T) {
	params := ResolveParams(demoConfig(), KindAuthorize, demoValues(), url.Values{})
	assert.Equal(t, "15", params["invoiceId"])
}

func TestResolveParams_NoOverrideUsesBase(t *testing.T) {
	cfg := demoConfig()
	cfg.Complete = nil

	params := ResolveParams(cfg, KindCompletePurchase, demoValues(), url.Values{})
	assert.Equal(t, "42", params["orderNumber"])
}
