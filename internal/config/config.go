package config

import (
	"crypto/rand"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
)

const (
	TransportSMTP   = "smtp"
	TransportResend = "resend"
	TransportLog    = "log"
)

type Config struct {
	// Server
	Port       string
	Env        string // development, production
	TrustProxy bool

	// Mail transport
	MailTransport      string
	SMTPHost           string
	SMTPPort           int
	SMTPUser           string
	SMTPPass           string
	ResendAPIKey       string
	ResendBaseURL      string
	MailFromAddress    string
	MailFromName       string
	MailSendTimeout    time.Duration
	MailSendsPerSecond float64

	// Composition
	RecruiterEmail string
	PromoURL       string

	// Limits
	RateLimitMax    int
	RateLimitWindow time.Duration
	RateLimitKey    []byte
	MaxUploadBytes  int64

	Cors struct {
		AllowedOrigin string
	}
}

// Load reads configuration from the environment (and a .env file when
// present), then from command line flags.
func Load() (*Config, error) {
	return load(flag.CommandLine, os.Args[1:])
}

func load(fs *flag.FlagSet, args []string) (*Config, error) {
	// Load .env file if it exists (don't error if missing)
	_ = godotenv.Load()

	cfg := &Config{}

	fs.StringVar(&cfg.Port, "port", getEnv("PORT", "3000"), "Server port")
	fs.StringVar(&cfg.Env, "env", getEnv("ENV", "development"), "Environment (development, production)")
	fs.StringVar(&cfg.MailTransport, "mail-transport", getEnv("MAIL_TRANSPORT", TransportSMTP), "Mail transport (smtp, resend, log)")

	cfg.TrustProxy = getEnv("TRUST_PROXY", "false") == "true"

	cfg.SMTPHost = getEnv("SMTP_HOST", "smtp.gmail.com")
	cfg.SMTPUser = getEnv("SMTP_USER", "")
	cfg.SMTPPass = getEnv("SMTP_PASS", "")
	cfg.ResendAPIKey = getEnv("RESEND_API_KEY", "")
	cfg.ResendBaseURL = getEnv("RESEND_BASE_URL", "https://api.resend.com")
	cfg.MailFromAddress = getEnv("MAIL_FROM_ADDRESS", cfg.SMTPUser)
	cfg.MailFromName = getEnv("MAIL_FROM_NAME", "Careers")
	cfg.RecruiterEmail = getEnv("RECRUITER_EMAIL", "careers@example.com")
	cfg.PromoURL = getEnv("PROMO_URL", "https://example.com")
	cfg.Cors.AllowedOrigin = strings.TrimSpace(getEnv("ALLOWED_ORIGIN", ""))

	var err error
	if cfg.SMTPPort, err = getEnvInt("SMTP_PORT", 587); err != nil {
		return nil, err
	}
	if cfg.MailSendTimeout, err = getEnvDuration("MAIL_SEND_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.MailSendsPerSecond, err = getEnvFloat("MAIL_SENDS_PER_SECOND", 0); err != nil {
		return nil, err
	}
	if cfg.RateLimitMax, err = getEnvInt("RATE_LIMIT_MAX", 5); err != nil {
		return nil, err
	}
	if cfg.RateLimitWindow, err = getEnvDuration("RATE_LIMIT_WINDOW", 15*time.Minute); err != nil {
		return nil, err
	}

	size, err := humanize.ParseBytes(getEnv("MAX_UPLOAD_SIZE", "5MiB"))
	if err != nil {
		return nil, fmt.Errorf("MAX_UPLOAD_SIZE: %w", err)
	}
	cfg.MaxUploadBytes = int64(size)

	if key := getEnv("RATE_LIMIT_KEY", ""); key != "" {
		cfg.RateLimitKey = []byte(key)
	} else {
		// Identities only need to be stable for the life of the process.
		cfg.RateLimitKey = make([]byte, 32)
		if _, err := rand.Read(cfg.RateLimitKey); err != nil {
			return nil, fmt.Errorf("generate rate limit key: %w", err)
		}
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.MailTransport {
	case TransportSMTP:
		if c.SMTPUser == "" || c.SMTPPass == "" {
			return fmt.Errorf("SMTP_USER and SMTP_PASS are required for the smtp transport")
		}
	case TransportResend:
		if c.ResendAPIKey == "" {
			return fmt.Errorf("RESEND_API_KEY is required for the resend transport")
		}
	case TransportLog:
		// It logs recipient addresses.
		if c.IsProduction() {
			return fmt.Errorf("MAIL_TRANSPORT=log is not allowed in production")
		}
	default:
		return fmt.Errorf("unknown MAIL_TRANSPORT %q", c.MailTransport)
	}

	if c.MailFromAddress == "" {
		return fmt.Errorf("MAIL_FROM_ADDRESS is required")
	}
	if c.RecruiterEmail == "" {
		return fmt.Errorf("RECRUITER_EMAIL is required")
	}
	if c.RateLimitMax < 1 {
		return fmt.Errorf("RATE_LIMIT_MAX must be at least 1")
	}
	if c.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
	}
	if len(c.RateLimitKey) > 64 {
		return fmt.Errorf("RATE_LIMIT_KEY must be at most 64 bytes")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_SIZE must be positive")
	}
	if c.MailSendTimeout <= 0 {
		return fmt.Errorf("MAIL_SEND_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return i, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
