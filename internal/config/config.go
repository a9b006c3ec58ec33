package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

// Config holds application configuration values.
type Config struct {
	Env          string
	Port         int
	StaticDir    string
	CORSOrigins  string
	LogLevel     string
	LogFile      string
	JWTSecret    string
	TokenExpires time.Duration

	DatabaseDriver string
	DatabaseURL    string
	MongoURI       string
	MongoDatabase  string

	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioPhoneNumber string
	TwilioVerifySID   string
	TwilioAPIBase     string
	TwilioVerifyBase  string
	SMSCountryCode    string
	OTPTestPhone      string

	TelegramBotToken  string
	TelegramAdminChat string
}

// Load reads environment variables (and an optional .env file) and returns
// a populated Config.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:          getEnv("APP_ENV", getEnv("NODE_ENV", "development")),
		Port:         getEnvInt("PORT", 5000),
		StaticDir:    getEnv("STATIC_DIR", "frontend/build"),
		CORSOrigins:  getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:3001"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogFile:      getEnv("LOG_FILE", ""),
		JWTSecret:    getEnv("JWT_SECRET", ""),
		TokenExpires: getEnvDuration("JWT_TTL_HOURS", 720) * time.Hour,

		DatabaseDriver: strings.ToLower(getEnv("DATABASE_DRIVER", "")),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		MongoURI:       getEnv("MONGODB_URI", ""),
		MongoDatabase:  getEnv("MONGODB_DATABASE", "bloodlink"),

		TwilioAccountSID:  getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:   getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioPhoneNumber: getEnv("TWILIO_PHONE_NUMBER", ""),
		TwilioVerifySID:   getEnv("TWILIO_VERIFY_SID", ""),
		TwilioAPIBase:     getEnv("TWILIO_API_BASE", "https://api.twilio.com/2010-04-01"),
		TwilioVerifyBase:  getEnv("TWILIO_VERIFY_BASE", "https://verify.twilio.com/v2"),
		SMSCountryCode:    getEnv("SMS_COUNTRY_CODE", "91"),
		OTPTestPhone:      getEnv("OTP_TEST_PHONE", "+916361943681"),

		TelegramBotToken:  getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramAdminChat: getEnv("TELEGRAM_ADMIN_CHAT_ID", ""),
	}

	if cfg.DatabaseDriver == "" {
		if cfg.MongoURI != "" {
			cfg.DatabaseDriver = DriverMongo
		} else {
			cfg.DatabaseDriver = DriverPostgres
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return errors.New("PORT must be a valid TCP port")
	}
	switch c.DatabaseDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL must be set for the postgres driver")
		}
	case DriverMongo:
		if c.MongoURI == "" {
			return errors.New("MONGODB_URI must be set for the mongo driver")
		}
	case DriverMemory:
	default:
		return errors.New("DATABASE_DRIVER must be postgres, mongo or memory")
	}
	return nil
}

// IsProduction reports whether the server runs with production semantics.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// DatabaseConfigured reports whether a connection string exists for the
// selected driver.
func (c *Config) DatabaseConfigured() bool {
	switch c.DatabaseDriver {
	case DriverMongo:
		return c.MongoURI != ""
	case DriverMemory:
		return true
	}
	return c.DatabaseURL != ""
}

// TwilioConfigured reports whether SMS credentials are present.
func (c *Config) TwilioConfigured() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != ""
}

// AllowedOrigins returns the CORS origin list.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback int) time.Duration {
	return time.Duration(getEnvInt(key, fallback))
}
