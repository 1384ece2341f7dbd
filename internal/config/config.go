package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Pricing maps a product type to its unit cost.
type Pricing map[string]decimal.Decimal

func (p Pricing) UnitCost(productType string) (decimal.Decimal, bool) {
	cost, ok := p[productType]
	return cost, ok
}

type Config struct {
	Env      string
	Port     string
	Postgres string
	Kafka    []string

	RedisAddr     string
	RedisPassword string

	Pricing            Pricing
	ProductNames       []string
	ReferralPercentage decimal.Decimal
	DueTime            time.Duration
	PayoutWeekday      time.Weekday
	SweepInterval      time.Duration

	PaystackSecret    string
	ReferralJWTSecret string
	JWTPublicKey      string
	JWTIssuer         string

	EncryptionKey string
	SigningKey    string

	RateLimitRPS   float64
	RateLimitBurst int

	// Paystack delivers from a handful of addresses, so webhooks get their own bucket.
	WebhookRateLimitRPS   float64
	WebhookRateLimitBurst int
	TrustedProxies        []netip.Prefix
}

func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

// LoadDotEnv reads .env into the process environment when present.
// Variables already set in the environment win.
func LoadDotEnv() {
	for _, file := range []string{".env", "../../.env"} {
		if err := godotenv.Load(file); err == nil {
			return
		}
	}
}

func Load() (*Config, error) {
	LoadDotEnv()

	cfg := &Config{
		Env:            getEnv("APP_ENV", "prod"),
		Port:           getEnv("PORT", "8081"),
		Postgres:       os.Getenv("POSTGRES_URL"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		ProductNames:   splitList(getEnv("PRODUCT_NAMES", "wattbank")),
		PaystackSecret: os.Getenv("PAYSTACK_SECRET_KEY"),
		JWTIssuer:      os.Getenv("JWT_ISSUER"),
		EncryptionKey:  os.Getenv("DB_ENCRYPTION_KEY"),
		SigningKey:     os.Getenv("DB_SIGNING_KEY"),
	}
	cfg.ReferralJWTSecret = os.Getenv("REFERRAL_JWT_SECRET")
	cfg.JWTPublicKey = strings.ReplaceAll(os.Getenv("JWT_PUBLIC_KEY"), `\n`, "\n")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka = splitList(brokers)
	}

	var errs []error
	for key, value := range map[string]string{
		"POSTGRES_URL":        cfg.Postgres,
		"PAYSTACK_SECRET_KEY": cfg.PaystackSecret,
		"REFERRAL_JWT_SECRET": cfg.ReferralJWTSecret,
		"JWT_PUBLIC_KEY":      cfg.JWTPublicKey,
		"DB_ENCRYPTION_KEY":   cfg.EncryptionKey,
	} {
		if value == "" {
			errs = append(errs, fmt.Errorf("%s environment variable is required", key))
		}
	}

	pricing, err := ParsePricing(map[string]string{
		"useries": os.Getenv("WATTBANK_U_COST"),
		"sseries": os.Getenv("WATTBANK_S_COST"),
	})
	if err != nil {
		errs = append(errs, err)
	}
	cfg.Pricing = pricing

	percentage, err := decimal.NewFromString(getEnv("REFFERAL_PERCENTAGE", "0"))
	if err != nil {
		errs = append(errs, fmt.Errorf("REFFERAL_PERCENTAGE: %w", err))
	}
	cfg.ReferralPercentage = percentage.Div(decimal.NewFromInt(100))

	if cfg.DueTime, err = ParseDueTime(getEnv("DUE_TIME", "0")); err != nil {
		errs = append(errs, fmt.Errorf("DUE_TIME: %w", err))
	}
	if cfg.PayoutWeekday, err = ParseWeekday(getEnv("PAYOUT_WEEKDAY", "wednesday")); err != nil {
		errs = append(errs, fmt.Errorf("PAYOUT_WEEKDAY: %w", err))
	}
	if cfg.SweepInterval, err = time.ParseDuration(getEnv("SWEEP_INTERVAL", "30s")); err != nil {
		errs = append(errs, fmt.Errorf("SWEEP_INTERVAL: %w", err))
	} else if cfg.SweepInterval <= 0 {
		errs = append(errs, errors.New("SWEEP_INTERVAL must be positive"))
	}
	if cfg.RateLimitRPS, err = strconv.ParseFloat(getEnv("RATE_LIMIT_RPS", "5"), 64); err != nil {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_RPS: %w", err))
	}
	if cfg.RateLimitBurst, err = strconv.Atoi(getEnv("RATE_LIMIT_BURST", "20")); err != nil {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_BURST: %w", err))
	}

	if cfg.WebhookRateLimitRPS, err = strconv.ParseFloat(getEnv("WEBHOOK_RATE_LIMIT_RPS", "50"), 64); err != nil {
		errs = append(errs, fmt.Errorf("WEBHOOK_RATE_LIMIT_RPS: %w", err))
	}
	if cfg.WebhookRateLimitBurst, err = strconv.Atoi(getEnv("WEBHOOK_RATE_LIMIT_BURST", "200")); err != nil {
		errs = append(errs, fmt.Errorf("WEBHOOK_RATE_LIMIT_BURST: %w", err))
	}
	if cfg.TrustedProxies, err = ParseTrustedProxies(os.Getenv("TRUSTED_PROXIES")); err != nil {
		errs = append(errs, fmt.Errorf("TRUSTED_PROXIES: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseTrustedProxies reads a comma separated list of CIDR ranges or single addresses.
func ParseTrustedProxies(raw string) ([]netip.Prefix, error) {
	var prefixes []netip.Prefix
	for _, entry := range splitList(raw) {
		if strings.Contains(entry, "/") {
			p, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, err
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, err
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// ParsePricing builds the cost table, skipping product types without a configured cost.
func ParsePricing(costs map[string]string) (Pricing, error) {
	pricing := make(Pricing, len(costs))
	for productType, raw := range costs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		cost, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("unit cost for %s: %w", productType, err)
		}
		if !cost.IsPositive() {
			return nil, fmt.Errorf("unit cost for %s must be positive", productType)
		}
		pricing[productType] = cost
	}
	if len(pricing) == 0 {
		return nil, errors.New("at least one product unit cost must be configured")
	}
	return pricing, nil
}

// ParseDueTime accepts a bare number of milliseconds or a Go duration string.
func ParseDueTime(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if ms < 0 {
			return 0, errors.New("must not be negative")
		}
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, errors.New("must not be negative")
	}
	return d, nil
}

func ParseWeekday(raw string) (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.ToLower(d.String()) == name {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", raw)
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Worker is the configuration of the notification worker.
type Worker struct {
	Kafka           []string
	EmailServiceURL string
	NotifyEmail     string
}

func LoadWorker() (*Worker, error) {
	LoadDotEnv()

	cfg := &Worker{
		Kafka:           splitList(os.Getenv("KAFKA_BROKERS")),
		EmailServiceURL: os.Getenv("EMAIL_SERVICE_URL"),
		NotifyEmail:     os.Getenv("NOTIFY_EMAIL"),
	}

	var errs []error
	if len(cfg.Kafka) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKERS environment variable is required"))
	}
	if cfg.EmailServiceURL == "" {
		errs = append(errs, errors.New("EMAIL_SERVICE_URL environment variable is required"))
	}
	if cfg.NotifyEmail == "" {
		errs = append(errs, errors.New("NOTIFY_EMAIL environment variable is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SMTP is the configuration of the email relay. An empty Host disables delivery.
type SMTP struct {
	Port     string
	Host     string
	SMTPPort int
	Username string
	Password string
	Sender   string
}

func LoadSMTP() (*SMTP, error) {
	LoadDotEnv()

	cfg := &SMTP{
		Port:     getEnv("PORT", "8084"),
		Host:     os.Getenv("SMTP_HOST"),
		Username: os.Getenv("SMTP_USERNAME"),
		Password: os.Getenv("SMTP_PASSWORD"),
		Sender:   os.Getenv("SMTP_SENDER"),
	}

	port, err := strconv.Atoi(getEnv("SMTP_PORT", "587"))
	if err != nil {
		return nil, fmt.Errorf("SMTP_PORT: %w", err)
	}
	cfg.SMTPPort = port

	if cfg.Host != "" && cfg.Sender == "" {
		return nil, errors.New("SMTP_SENDER environment variable is required when SMTP_HOST is set")
	}
	return cfg, nil
}
