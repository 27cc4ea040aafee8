package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the process configuration, read from the environment (and .env in
// local runs through godotenv).
type Config struct {
	Port           string
	ServiceName    string
	LedgerBackend  string
	DatabaseURL    string
	RedisURL       string
	KafkaBrokers   []string
	KafkaTopic     string
	NATSURL        string
	SessionSubject string

	DefaultGateway string
	Stripe         StripeConfig
	PayPal         PayPalConfig
	MercadoPago    MercadoPagoConfig

	GatewayCallTimeout time.Duration
	GatewayMaxRetries  uint64
	RetryInitial       time.Duration
	RetryMax           time.Duration
	PendingPaymentTTL  time.Duration
	IdempotencyTTL     time.Duration
}

type StripeConfig struct {
	SecretKey      string
	PublishableKey string
	WebhookSecret  string
}

type PayPalConfig struct {
	ClientID     string
	ClientSecret string
	WebhookID    string
	BaseURL      string
	ReturnURL    string
	CancelURL    string
}

type MercadoPagoConfig struct {
	AccessToken   string
	PublicKey     string
	WebhookSecret string
}

const (
	LedgerDynamoDB = "dynamodb"
	LedgerPostgres = "postgres"
	LedgerMemory   = "memory"
)

func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		ServiceName:    getEnv("SERVICE_NAME", "mentor-payments"),
		LedgerBackend:  strings.ToLower(getEnv("LEDGER_BACKEND", LedgerDynamoDB)),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		KafkaBrokers:   splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:     getEnv("KAFKA_PAYMENT_TOPIC", "payment.state.changed"),
		NATSURL:        os.Getenv("NATS_URL"),
		SessionSubject: getEnv("NATS_SESSION_SUBJECT", "session.confirmed"),

		DefaultGateway: strings.ToLower(getEnv("DEFAULT_PAYMENT_GATEWAY", "stripe")),
		Stripe: StripeConfig{
			SecretKey:      os.Getenv("STRIPE_SECRET_KEY"),
			PublishableKey: os.Getenv("STRIPE_PUBLISHABLE_KEY"),
			WebhookSecret:  os.Getenv("STRIPE_WEBHOOK_SECRET"),
		},
		PayPal: PayPalConfig{
			ClientID:     os.Getenv("PAYPAL_CLIENT_ID"),
			ClientSecret: os.Getenv("PAYPAL_CLIENT_SECRET"),
			WebhookID:    os.Getenv("PAYPAL_WEBHOOK_ID"),
			BaseURL:      paypalBaseURL(),
			ReturnURL:    os.Getenv("PAYPAL_RETURN_URL"),
			CancelURL:    os.Getenv("PAYPAL_CANCEL_URL"),
		},
		MercadoPago: MercadoPagoConfig{
			AccessToken:   os.Getenv("MERCADOPAGO_ACCESS_TOKEN"),
			PublicKey:     os.Getenv("MERCADOPAGO_PUBLIC_KEY"),
			WebhookSecret: os.Getenv("MERCADOPAGO_WEBHOOK_SECRET"),
		},

		GatewayCallTimeout: getDuration("GATEWAY_CALL_TIMEOUT", 10*time.Second),
		GatewayMaxRetries:  getUint("GATEWAY_MAX_RETRIES", 3),
		RetryInitial:       getDuration("GATEWAY_RETRY_INITIAL", 200*time.Millisecond),
		RetryMax:           getDuration("GATEWAY_RETRY_MAX", 2*time.Second),
		PendingPaymentTTL:  getDuration("PENDING_PAYMENT_TTL", 30*time.Minute),
		IdempotencyTTL:     getDuration("IDEMPOTENCY_TTL", 24*time.Hour),
	}
}

func paypalBaseURL() string {
	if v := os.Getenv("PAYPAL_BASE_URL"); v != "" {
		return strings.TrimRight(v, "/")
	}
	if strings.EqualFold(os.Getenv("PAYPAL_MODE"), "live") {
		return "https://api-m.paypal.com"
	}
	return "https://api-m.sandbox.paypal.com"
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func getUint(key string, fallback uint64) uint64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
