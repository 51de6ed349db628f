package config

import (
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config carries every runtime setting for the praxis service.
type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080"`
	DatabaseDSN string `envconfig:"DATABASE_DSN" required:"true"`

	// Payment processor.
	StripeSecretKey     string `envconfig:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `envconfig:"STRIPE_WEBHOOK_SECRET"`
	CheckoutSuccessURL  string `envconfig:"CHECKOUT_SUCCESS_URL" default:"https://app.praxis.local/payments/success"`
	CheckoutCancelURL   string `envconfig:"CHECKOUT_CANCEL_URL" default:"https://app.praxis.local/payments/cancelled"`
	// Platform fee charged on top of each checkout, in basis points.
	// Currently zero everywhere; kept configurable rather than hardcoded.
	PlatformFeeBps int64 `envconfig:"PLATFORM_FEE_BPS" default:"0"`

	// Notification sink.
	AMQPURL      string `envconfig:"AMQP_URL"`
	AMQPExchange string `envconfig:"AMQP_EXCHANGE" default:"praxis.notifications"`

	// Payment-email sweeper.
	SweeperBatchSize    int           `envconfig:"SWEEPER_BATCH_SIZE" default:"50"`
	SweeperPollInterval time.Duration `envconfig:"SWEEPER_POLL_INTERVAL" default:"1m"`
	SweeperLockTimeout  time.Duration `envconfig:"SWEEPER_LOCK_TIMEOUT" default:"10m"`

	// Tracing.
	TracingEnabled  bool    `envconfig:"TRACING_ENABLED" default:"false"`
	TracingEndpoint string  `envconfig:"TRACING_ENDPOINT"`
	TracingProtocol string  `envconfig:"TRACING_PROTOCOL" default:"grpc"`
	TracingSampling float64 `envconfig:"TRACING_SAMPLING" default:"1.0"`

	SupportedCurrencies []string `envconfig:"SUPPORTED_CURRENCIES" default:"EUR,USD,GBP,CHF"`
}

func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("PRAXIS", &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

// CurrencySupported reports whether the service accepts the given ISO code.
func (c Config) CurrencySupported(code string) bool {
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, supported := range c.SupportedCurrencies {
		if strings.ToUpper(strings.TrimSpace(supported)) == code {
			return true
		}
	}
	return false
}
