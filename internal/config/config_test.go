package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "LEDGER_BACKEND", "DEFAULT_PAYMENT_GATEWAY", "GATEWAY_CALL_TIMEOUT", "GATEWAY_MAX_RETRIES", "PAYPAL_BASE_URL", "PAYPAL_MODE", "KAFKA_BROKERS"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("unexpected port: %s", cfg.Port)
	}
	if cfg.LedgerBackend != LedgerDynamoDB {
		t.Fatalf("unexpected ledger backend: %s", cfg.LedgerBackend)
	}
	if cfg.DefaultGateway != "stripe" {
		t.Fatalf("unexpected default gateway: %s", cfg.DefaultGateway)
	}
	if cfg.GatewayCallTimeout != 10*time.Second || cfg.GatewayMaxRetries != 3 {
		t.Fatalf("unexpected retry settings: %+v", cfg)
	}
	if cfg.PayPal.BaseURL != "https://api-m.sandbox.paypal.com" {
		t.Fatalf("unexpected paypal url: %s", cfg.PayPal.BaseURL)
	}
	if len(cfg.KafkaBrokers) != 0 {
		t.Fatalf("expected no brokers, got %v", cfg.KafkaBrokers)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("LEDGER_BACKEND", "Postgres")
	t.Setenv("DEFAULT_PAYMENT_GATEWAY", "PayPal")
	t.Setenv("GATEWAY_CALL_TIMEOUT", "3s")
	t.Setenv("GATEWAY_MAX_RETRIES", "not-a-number")
	t.Setenv("PAYPAL_MODE", "live")
	t.Setenv("PAYPAL_BASE_URL", "")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")

	cfg := Load()
	if cfg.LedgerBackend != LedgerPostgres {
		t.Fatalf("unexpected ledger backend: %s", cfg.LedgerBackend)
	}
	if cfg.DefaultGateway != "paypal" {
		t.Fatalf("unexpected default gateway: %s", cfg.DefaultGateway)
	}
	if cfg.GatewayCallTimeout != 3*time.Second {
		t.Fatalf("unexpected timeout: %s", cfg.GatewayCallTimeout)
	}
	if cfg.GatewayMaxRetries != 3 {
		t.Fatalf("expected fallback retries, got %d", cfg.GatewayMaxRetries)
	}
	if cfg.PayPal.BaseURL != "https://api-m.paypal.com" {
		t.Fatalf("unexpected paypal url: %s", cfg.PayPal.BaseURL)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "kafka-2:9092" {
		t.Fatalf("unexpected brokers: %v", cfg.KafkaBrokers)
	}
}
