package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	DatabaseDriver      string
	DatabaseURL         string
	Port                string
	GoEnv               string
	Auth0Domain         string
	Auth0Audience       string
	JWTSecret           string
	AWSRegion           string
	AWSS3Bucket         string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	LogLevel            string
	CommissionRate      decimal.Decimal
	GatewayFeeRate      decimal.Decimal
	GatewayBaseURL      string
	GatewayAPIKey       string
	GatewayPrivateKey   string
	GatewayMerchantCode string
	GatewayTimeout      time.Duration
	RedisAddr           string
	RedisPassword       string
	NotificationChannel string
	NotifyTimeout       time.Duration
	AuditBackend        string
	MongoURI            string
	MongoDatabase       string
	MongoCollection     string
	AuditPageSize       int
	CORSAllowedOrigins  []string
}

var appConfig *Config

// defaults mirror a local development setup
var defaults = map[string]interface{}{
	"DATABASE_DRIVER":      "postgres",
	"PORT":                 "8080",
	"GO_ENV":               "development",
	"AWS_REGION":           "us-east-1",
	"LOG_LEVEL":            "info",
	"COMMISSION_RATE":      "0.10",
	"GATEWAY_FEE_RATE":     "0.015",
	"GATEWAY_TIMEOUT":      "15s",
	"NOTIFICATION_CHANNEL": "tailorhub:notifications",
	"NOTIFY_TIMEOUT":       "5s",
	"AUDIT_BACKEND":        "database",
	"MONGODB_DATABASE":     "tailorhub",
	"MONGODB_COLLECTION":   "activity_logs",
	"AUDIT_PAGE_SIZE":      50,
	"CORS_ALLOWED_ORIGINS": "http://localhost:3000",
}

// Load loads the configuration from environment variables
// It automatically determines which .env file to load based on GO_ENV
func Load() (*Config, error) {
	env := os.Getenv("GO_ENV")
	if env == "" {
		env = "development"
	}

	// Try to load environment-specific file first
	envFile := fmt.Sprintf(".env.%s", env)
	if err := godotenv.Load(envFile); err != nil {
		if err := godotenv.Load(); err != nil {
			// Deployed environments set variables directly
			log.Printf("No .env file found, using system environment variables")
		}
	} else {
		log.Printf("Loaded configuration from %s", envFile)
	}

	v := viper.New()
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	commission, err := decimal.NewFromString(v.GetString("COMMISSION_RATE"))
	if err != nil {
		return nil, fmt.Errorf("COMMISSION_RATE is not a decimal: %w", err)
	}
	gatewayFee, err := decimal.NewFromString(v.GetString("GATEWAY_FEE_RATE"))
	if err != nil {
		return nil, fmt.Errorf("GATEWAY_FEE_RATE is not a decimal: %w", err)
	}

	config := &Config{
		DatabaseDriver:      strings.ToLower(v.GetString("DATABASE_DRIVER")),
		DatabaseURL:         v.GetString("DATABASE_URL"),
		Port:                v.GetString("PORT"),
		GoEnv:               v.GetString("GO_ENV"),
		Auth0Domain:         v.GetString("AUTH0_DOMAIN"),
		Auth0Audience:       v.GetString("AUTH0_AUDIENCE"),
		JWTSecret:           v.GetString("JWT_SECRET"),
		AWSRegion:           v.GetString("AWS_REGION"),
		AWSS3Bucket:         v.GetString("AWS_S3_BUCKET"),
		AWSAccessKeyID:      v.GetString("AWS_ACCESS_KEY_ID"),
		AWSSecretAccessKey:  v.GetString("AWS_SECRET_ACCESS_KEY"),
		LogLevel:            v.GetString("LOG_LEVEL"),
		CommissionRate:      commission,
		GatewayFeeRate:      gatewayFee,
		GatewayBaseURL:      v.GetString("GATEWAY_BASE_URL"),
		GatewayAPIKey:       v.GetString("GATEWAY_API_KEY"),
		GatewayPrivateKey:   v.GetString("GATEWAY_PRIVATE_KEY"),
		GatewayMerchantCode: v.GetString("GATEWAY_MERCHANT_CODE"),
		GatewayTimeout:      v.GetDuration("GATEWAY_TIMEOUT"),
		RedisAddr:           v.GetString("REDIS_ADDR"),
		RedisPassword:       v.GetString("REDIS_PASSWORD"),
		NotificationChannel: v.GetString("NOTIFICATION_CHANNEL"),
		NotifyTimeout:       v.GetDuration("NOTIFY_TIMEOUT"),
		AuditBackend:        strings.ToLower(v.GetString("AUDIT_BACKEND")),
		MongoURI:            v.GetString("MONGODB_URI"),
		MongoDatabase:       v.GetString("MONGODB_DATABASE"),
		MongoCollection:     v.GetString("MONGODB_COLLECTION"),
		AuditPageSize:       v.GetInt("AUDIT_PAGE_SIZE"),
		CORSAllowedOrigins:  splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks that all required configuration values are set
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	switch c.DatabaseDriver {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("DATABASE_DRIVER %q is not supported", c.DatabaseDriver)
	}
	switch c.AuditBackend {
	case "database":
	case "mongo":
		if c.MongoURI == "" {
			return fmt.Errorf("MONGODB_URI is required when AUDIT_BACKEND=mongo")
		}
	default:
		return fmt.Errorf("AUDIT_BACKEND %q is not supported", c.AuditBackend)
	}
	one := decimal.NewFromInt(1)
	if c.CommissionRate.IsNegative() || c.GatewayFeeRate.IsNegative() ||
		c.CommissionRate.Add(c.GatewayFeeRate).GreaterThan(one) {
		return fmt.Errorf("COMMISSION_RATE and GATEWAY_FEE_RATE must be non-negative and sum to at most 1")
	}
	if c.AuditPageSize <= 0 {
		return fmt.Errorf("AUDIT_PAGE_SIZE must be positive")
	}
	return nil
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.GoEnv == "production"
}

// IsTest returns true if the application is running in test mode
func (c *Config) IsTest() bool {
	return c.GoEnv == "test"
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GoEnv == "development"
}

// GetDatabaseURL returns the database URL
func (c *Config) GetDatabaseURL() string {
	return c.DatabaseURL
}

// SetConfig stores the loaded configuration for package-level access
func SetConfig(cfg *Config) {
	appConfig = cfg
}

// GetConfig returns the loaded configuration
func GetConfig() *Config {
	return appConfig
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
