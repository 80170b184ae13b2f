// Package config defines the process-wide configuration for the
// entitlement engine. Configuration is loaded once at startup and is
// immutable thereafter; any missing required value or invalid format
// aborts initialization rather than letting the engine run with silently
// wrong tier or quota rules.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File (Lowest)
package config

import (
	"time"

	"github.com/fabricadosdjs/plataforma-musicas-sub011/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret
// type used for sensitive configuration values.
type SecretString = types.SecretString

// Config is the top-level configuration struct. It is populated once
// during process initialization and never modified. Sub-components
// receive only the specific config subsets they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"entitlement-engine"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Server      ServerConfig
	Database    DatabaseConfig
	Billing     BillingConfig
	Quota       QuotaConfig
	Entitlement EntitlementConfig

	// Build metadata injected via ldflags, not env.
	Build BuildInfo
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"15s"`
	ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"20s"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required,url"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// BillingConfig holds the payment-provider webhook credentials.
type BillingConfig struct {
	StripeWebhookSecret SecretString `envconfig:"STRIPE_WEBHOOK_SECRET" validate:"required"`
}

// QuotaConfig holds window and sweep parameters for the quota tracker.
type QuotaConfig struct {
	// Timezone is the reference timezone for daily and weekly windows.
	Timezone string `envconfig:"QUOTA_TIMEZONE" default:"America/Sao_Paulo"`
	// WeeklyResetWeekday is a time.Weekday ordinal (0 = Sunday).
	WeeklyResetWeekday int `envconfig:"WEEKLY_RESET_WEEKDAY" default:"0" validate:"min=0,max=6"`
	WeeklyResetHour    int `envconfig:"WEEKLY_RESET_HOUR" default:"0" validate:"min=0,max=23"`

	SweepInterval time.Duration `envconfig:"QUOTA_SWEEP_INTERVAL" default:"15m"`
}

// EntitlementConfig holds the JSON-encoded rule tables. Empty values fall
// back to the compiled-in defaults; non-empty values replace them whole.
type EntitlementConfig struct {
	// ThresholdsJSON: {"basic": 3500, "standard": 4200, "full": 6000} (cents).
	ThresholdsJSON string `envconfig:"TIER_THRESHOLDS_JSON" validate:"omitempty,json"`
	// PinnedValuesJSON maps exact cent values to tiers: {"9700": "full"}.
	PinnedValuesJSON string `envconfig:"TIER_PINNED_VALUES_JSON" validate:"omitempty,json"`
	// PricingJSON: {"extraction": {"base_cents": 3800, "discount_by_tier": {...}}}.
	PricingJSON string `envconfig:"ADDON_PRICING_JSON" validate:"omitempty,json"`
	// BenefitsJSON: {"basic": {"dailyDownloads": {"enabled": true, "limit": 50}}}.
	BenefitsJSON string `envconfig:"BENEFIT_DEFAULTS_JSON" validate:"omitempty,json"`
	// ProtectedPathsJSON: {"/downloads": ["tier"], "/uploads": ["addon:uploader"]}.
	ProtectedPathsJSON string `envconfig:"PROTECTED_PATHS_JSON" validate:"omitempty,json"`
}

// BuildInfo carries compile-time version metadata for diagnostics.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}
