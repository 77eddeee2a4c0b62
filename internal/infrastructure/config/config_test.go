package config

import (
	"testing"
	"time"

	"github.com/dsamarin/gatepay/internal/gateway"
	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "test",
			Password: "test",
			Database: "test_db",
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: 6379,
		},
		Payment: PaymentConfig{
			LookupWindow:   30 * time.Minute,
			GatewayTimeout: 30 * time.Second,
			DataKeys: DataKeysConfig{
				PaymentID:     []string{"transactionId"},
				CustomerEmail: []string{"email"},
			},
		},
	}
}

func TestConfig_Validate_Success(t *testing.T) {
	err := validConfig().Validate()
	assert.NoError(t, err)
}

func TestConfig_Validate_InvalidServerPort(t *testing.T) {
	tests := []struct {
		name string
		port int
	}{
		{"port too low", 0},
		{"port negative", -1},
		{"port too high", 99999},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Server.Port = tt.port

			err := cfg.Validate()
			assert.Error(t, err)
			assert.Contains(t, err.Error(), "server.port")
		})
	}
}

func TestConfig_Validate_LookupWindowRequired(t *testing.T) {
	cfg := validConfig()
	cfg.Payment.LookupWindow = 0

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "payment.lookup_window")
}

func TestConfig_Validate_PaymentIDKeysRequired(t *testing.T) {
	cfg := validConfig()
	cfg.Payment.DataKeys.PaymentID = nil

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "payment.data_keys.payment_id")
}

func TestConfig_Validate_GatewayURLs(t *testing.T) {
	cfg := validConfig()
	cfg.Gateways = map[string]gateway.Config{
		"demo": {
			URLs: gateway.URLSet{
				Return:  "https://shop.example.com/payments/return",
				Notify:  "https://shop.example.com/payments/notify",
				Cancel:  "https://shop.example.com/payments/cancel",
				Success: "https://shop.example.com/checkout/success",
				Fail:    "not a url",
			},
		},
	}

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "gateways.demo.urls")
}

func TestConfig_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Skipf("config file present but unreadable: %v", err)
	}

	assert.Equal(t, 30*time.Minute, cfg.Payment.LookupWindow)
	assert.Equal(t, 30*time.Second, cfg.Payment.GatewayTimeout)
	assert.Contains(t, cfg.Payment.DataKeys.PaymentID, "transactionId")
	assert.Equal(t, "paid", cfg.Payment.PaidStatusName)
}

func TestDatabaseDSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host: "db", Port: 5432, User: "u", Password: "p", Database: "gatepay", SSLMode: "disable",
	}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=gatepay sslmode=disable", cfg.DatabaseDSN())
}
