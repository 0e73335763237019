package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Payment  PaymentConfig
	Loyalty  LoyaltyConfig
	Order    OrderConfig
	Kafka    KafkaConfig
	S3       S3Config
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Host string
	Port int
}

// DatabaseConfig holds database-related configuration.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	MaxConnections  int
	MinConnections  int
	MaxConnLifetime int // seconds
}

// LoggerConfig holds logger-related configuration.
type LoggerConfig struct {
	Level  string
	Format string // "json" or "console"
}

// AuthConfig holds authentication configuration for admin endpoints.
type AuthConfig struct {
	APIKey string
}

// PaymentConfig holds the VNPay gateway settings. The shared secret and
// merchant code are injected into the adapter at construction time and are
// never read from the environment per call.
type PaymentConfig struct {
	TmnCode    string // merchant code issued by the gateway
	HashSecret string // shared HMAC secret
	GatewayURL string // payment page base URL
	ReturnURL  string // browser return URL registered with the gateway
	Version    string
	Locale     string
	Currency   string
}

// LoyaltyConfig controls reward-point accrual.
type LoyaltyConfig struct {
	EarnRatePercent int   // share of order total converted to points
	PointsUnit      int64 // currency units per point
}

// OrderConfig holds order-flow settings.
type OrderConfig struct {
	CancelWindowHours int
	TaxRatePercent    int
	ShippingFlatFee   int64
}

// KafkaConfig holds the outbound notification transport settings. An empty
// broker list disables publishing; outbox rows are then drained locally.
type KafkaConfig struct {
	Brokers            []string
	NotificationsTopic string
	EmailsTopic        string
}

// S3Config holds AWS S3 configuration for payment-proof images.
type S3Config struct {
	Enabled  bool
	Bucket   string
	Region   string
	Prefix   string // key prefix within the bucket (e.g. "proofs/")
	LocalDir string // filesystem fallback when S3 is disabled
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvAsInt("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "techshop"),
			MaxConnections:  getEnvAsInt("DB_MAX_CONNECTIONS", 25),
			MinConnections:  getEnvAsInt("DB_MIN_CONNECTIONS", 5),
			MaxConnLifetime: getEnvAsInt("DB_MAX_CONN_LIFETIME", 300),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			APIKey: getEnv("API_KEY", ""),
		},
		Payment: PaymentConfig{
			TmnCode:    getEnv("VNPAY_TMN_CODE", ""),
			HashSecret: getEnv("VNPAY_HASH_SECRET", ""),
			GatewayURL: getEnv("VNPAY_GATEWAY_URL", "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html"),
			ReturnURL:  getEnv("VNPAY_RETURN_URL", "http://localhost:8080/api/payment/vnpay_return"),
			Version:    getEnv("VNPAY_VERSION", "2.1.0"),
			Locale:     getEnv("VNPAY_LOCALE", "vn"),
			Currency:   getEnv("VNPAY_CURRENCY", "VND"),
		},
		Loyalty: LoyaltyConfig{
			EarnRatePercent: getEnvAsInt("LOYALTY_EARN_RATE_PERCENT", 10),
			PointsUnit:      int64(getEnvAsInt("LOYALTY_POINTS_UNIT", 1000)),
		},
		Order: OrderConfig{
			CancelWindowHours: getEnvAsInt("ORDER_CANCEL_WINDOW_HOURS", 24),
			TaxRatePercent:    getEnvAsInt("ORDER_TAX_RATE_PERCENT", 0),
			ShippingFlatFee:   int64(getEnvAsInt("ORDER_SHIPPING_FLAT_FEE", 0)),
		},
		Kafka: KafkaConfig{
			Brokers:            splitCSV(getEnv("KAFKA_BROKERS", "")),
			NotificationsTopic: getEnv("KAFKA_NOTIFICATIONS_TOPIC", "order.notifications"),
			EmailsTopic:        getEnv("KAFKA_EMAILS_TOPIC", "order.emails"),
		},
		S3: S3Config{
			Enabled:  getEnvAsBool("S3_ENABLED", false),
			Bucket:   getEnv("S3_BUCKET", ""),
			Region:   getEnv("S3_REGION", "ap-southeast-1"),
			Prefix:   getEnv("S3_PREFIX", "proofs/"),
			LocalDir: getEnv("PROOF_LOCAL_DIR", "data/proofs"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}

	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.Database.MaxConnections < 1 {
		return fmt.Errorf("database max connections must be at least 1")
	}

	if c.Database.MinConnections < 1 {
		return fmt.Errorf("database min connections must be at least 1")
	}

	if c.Database.MinConnections > c.Database.MaxConnections {
		return fmt.Errorf("database min connections cannot exceed max connections")
	}

	if c.Auth.APIKey == "" {
		return fmt.Errorf("API key is required")
	}

	if c.Payment.TmnCode == "" {
		return fmt.Errorf("VNPay merchant code is required")
	}

	if c.Payment.HashSecret == "" {
		return fmt.Errorf("VNPay hash secret is required")
	}

	if c.Loyalty.EarnRatePercent < 0 || c.Loyalty.EarnRatePercent > 100 {
		return fmt.Errorf("invalid loyalty earn rate: %d", c.Loyalty.EarnRatePercent)
	}

	if c.Loyalty.PointsUnit < 1 {
		return fmt.Errorf("loyalty points unit must be at least 1")
	}

	if c.Order.CancelWindowHours < 1 {
		return fmt.Errorf("cancellation window must be at least one hour")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLogLevels[c.Logger.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Logger.Format != "json" && c.Logger.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", c.Logger.Format)
	}

	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			return fmt.Errorf("S3 bucket is required when S3 is enabled")
		}
		if c.S3.Region == "" {
			return fmt.Errorf("S3 region is required when S3 is enabled")
		}
	}

	return nil
}

// ConnectionString returns the PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}

// Address returns the server address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value.
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value.
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// splitCSV splits a comma-separated list, dropping empty entries.
func splitCSV(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
