package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

type Config struct {
	// Server
	Port        string
	Environment string
	LogLevel    string

	// Payments gateway
	GatewayAPIKey       string
	ProductPriceID      string
	GatewayBaseURL      string
	GatewayTimeout      time.Duration
	BreakerFailures     int
	BreakerCooldown     time.Duration
	ExposeGatewayErrors bool

	// Site
	SiteBaseURL string

	// CORS
	AllowedOrigins   []string
	TrustedDomain    string
	StorefrontSuffix string

	// Rate Limiting
	RateLimitRequests int
	RateLimitWindow   int
	RateLimitBurst    int

	// Features
	EnableMetrics bool

	// Error reporting
	SentryDSN string
}

func New() *Config {
	c := &Config{
		// Server
		Port:        getEnv("PORT", "4242"),
		Environment: getEnv("ENVIRONMENT", "development"),

		// Payments gateway
		GatewayAPIKey:       strings.TrimSpace(getEnv("STRIPE_SECRET_KEY", "")),
		ProductPriceID:      strings.TrimSpace(getEnv("STRIPE_PRICE_PRO", "")),
		GatewayBaseURL:      getEnv("STRIPE_API_BASE", "https://api.stripe.com"),
		GatewayTimeout:      getEnvAsDuration("GATEWAY_TIMEOUT", 10*time.Second),
		BreakerFailures:     getEnvAsInt("GATEWAY_BREAKER_FAILURES", 5),
		BreakerCooldown:     getEnvAsDuration("GATEWAY_BREAKER_COOLDOWN", 30*time.Second),
		ExposeGatewayErrors: getEnvAsBool("EXPOSE_GATEWAY_ERRORS", false),

		// Site
		SiteBaseURL: strings.TrimRight(getEnv("SITE_BASE_URL", "https://lucentpay.co"), "/"),

		// CORS
		AllowedOrigins:   splitList(getEnv("ALLOWED_ORIGINS", "")),
		StorefrontSuffix: getEnv("STOREFRONT_SUFFIX", ".myshopify.com"),

		// Rate Limiting
		RateLimitRequests: getEnvAsInt("RATE_LIMIT_REQUESTS", 30),
		RateLimitWindow:   getEnvAsInt("RATE_LIMIT_WINDOW", 60),
		RateLimitBurst:    getEnvAsInt("RATE_LIMIT_BURST", 10),

		// Features
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),

		SentryDSN: getEnv("SENTRY_DSN", ""),
	}

	c.TrustedDomain = getEnv("TRUSTED_DOMAIN", hostOf(c.SiteBaseURL))

	defaultLevel := "debug"
	if c.IsProduction() {
		defaultLevel = "info"
	}
	c.LogLevel = getEnv("LOG_LEVEL", defaultLevel)

	return c
}

// HasGatewayKey reports whether a payments gateway credential is configured.
func (c *Config) HasGatewayKey() bool {
	return c != nil && c.GatewayAPIKey != ""
}

// HasPrice reports whether the membership price identifier is configured.
func (c *Config) HasPrice() bool {
	return c != nil && c.ProductPriceID != ""
}

// Validate returns an error describing missing required settings. The server still starts
// without them; health reports the gap instead.
func (c *Config) Validate() error {
	var missing []string
	if !c.HasGatewayKey() {
		missing = append(missing, "STRIPE_SECRET_KEY")
	}
	if !c.HasPrice() {
		missing = append(missing, "STRIPE_PRICE_PRO")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var value int
	_, err := fmt.Sscanf(valueStr, "%d", &value)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	return valueStr == "true" || valueStr == "1"
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func hostOf(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(parsed.Hostname(), "www.")
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
