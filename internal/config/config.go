// Package config loads service configuration from the environment.
//
// cmd/* call godotenv first so a local .env file can supply values; real
// environment variables always win. Load applies defaults and Validate
// rejects values the service cannot run with.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// HTTP
	Port       string
	Env        string
	GinMode    string
	CORSOrigin string

	// Database. DatabaseURL wins over the individual DB_* parts.
	DatabaseURL string
	DBHost      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBPort      string
	DBSSLMode   string

	// Store behaviour
	StoreTimeout    time.Duration
	ConflictRetries int

	// Identifier generation
	IDPrefix      string
	IDFloor       int64
	IDMaxAttempts int
	IDBackoffBase time.Duration

	// Lifecycle policy
	AssignStatus   string
	DescriptionMin int
	DescriptionMax int
	StrictHours    bool

	// Identity
	JWTSecret    string
	AuthRequired bool

	// Logging
	LogLevel  string
	LogFormat string
	LogDir    string

	// Notifications
	NotifySinks     []string
	NotifyWorkers   int
	NotifyQueueSize int
	NotifyTimeout   time.Duration
	KafkaBrokers    []string
	KafkaTopic      string
	SQSQueueURL     string
	SQSQueueName    string
}

// LoadDotEnv reads .env if present. A missing file is not an error.
func LoadDotEnv(paths ...string) error {
	err := godotenv.Load(paths...)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// Load builds the configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		Port:       getEnvOrDefault("PORT", "8080"),
		Env:        getEnvOrDefault("ENV", "development"),
		GinMode:    os.Getenv("GIN_MODE"),
		CORSOrigin: getEnvOrDefault("CORS_ORIGIN", "http://localhost:5173"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBHost:      os.Getenv("DB_HOST"),
		DBUser:      os.Getenv("DB_USER"),
		DBPassword:  os.Getenv("DB_PASSWORD"),
		DBName:      os.Getenv("DB_NAME"),
		DBPort:      getEnvOrDefault("DB_PORT", "5432"),
		DBSSLMode:   getEnvOrDefault("DB_SSLMODE", "disable"),

		StoreTimeout:    getEnvDuration("STORE_TIMEOUT", 5*time.Second),
		ConflictRetries: getEnvInt("CONFLICT_RETRIES", 3),

		IDPrefix:      getEnvOrDefault("ID_PREFIX", "CMPT"),
		IDFloor:       int64(getEnvInt("ID_FLOOR", 0)),
		IDMaxAttempts: getEnvInt("ID_MAX_ATTEMPTS", 5),
		IDBackoffBase: getEnvDuration("ID_BACKOFF_BASE", 100*time.Millisecond),

		AssignStatus:   getEnvOrDefault("ASSIGN_STATUS", "in-progress"),
		DescriptionMin: getEnvInt("DESCRIPTION_MIN", 10),
		DescriptionMax: getEnvInt("DESCRIPTION_MAX", 2000),
		StrictHours:    getEnvBool("STRICT_HOURS", false),

		JWTSecret:    os.Getenv("JWT_SECRET"),
		AuthRequired: getEnvBool("AUTH_REQUIRED", false),

		LogLevel:  getEnvOrDefault("LOG_LEVEL", "INFO"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "text"),
		LogDir:    os.Getenv("LOG_DIR"),

		NotifySinks:     getEnvList("NOTIFY_SINKS", []string{"log"}),
		NotifyWorkers:   getEnvInt("NOTIFY_WORKERS", 2),
		NotifyQueueSize: getEnvInt("NOTIFY_QUEUE_SIZE", 100),
		NotifyTimeout:   getEnvDuration("NOTIFY_TIMEOUT", 5*time.Second),
		KafkaBrokers:    getEnvList("KAFKA_BROKERS", nil),
		KafkaTopic:      getEnvOrDefault("KAFKA_TOPIC", "complaint-events"),
		SQSQueueURL:     os.Getenv("SQS_QUEUE_URL"),
		SQSQueueName:    os.Getenv("SQS_QUEUE_NAME"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that values are usable.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("STORE_TIMEOUT must be positive, got %v", c.StoreTimeout)
	}
	if c.ConflictRetries < 1 {
		return fmt.Errorf("CONFLICT_RETRIES must be at least 1, got %d", c.ConflictRetries)
	}
	if c.IDPrefix == "" || strings.ContainsAny(c.IDPrefix, " -/") {
		return fmt.Errorf("ID_PREFIX must be a non-empty word, got %q", c.IDPrefix)
	}
	if c.IDFloor < 0 {
		return fmt.Errorf("ID_FLOOR cannot be negative, got %d", c.IDFloor)
	}
	if c.IDMaxAttempts < 1 {
		return fmt.Errorf("ID_MAX_ATTEMPTS must be at least 1, got %d", c.IDMaxAttempts)
	}
	if c.IDBackoffBase <= 0 {
		return fmt.Errorf("ID_BACKOFF_BASE must be positive, got %v", c.IDBackoffBase)
	}
	if c.AssignStatus != "assigned" && c.AssignStatus != "in-progress" {
		return fmt.Errorf("ASSIGN_STATUS must be assigned or in-progress, got %q", c.AssignStatus)
	}
	if c.DescriptionMin < 1 || c.DescriptionMax < c.DescriptionMin {
		return fmt.Errorf("DESCRIPTION_MIN/MAX must satisfy 1 <= min <= max, got %d/%d", c.DescriptionMin, c.DescriptionMax)
	}
	if c.AuthRequired && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when AUTH_REQUIRED is true")
	}
	if c.NotifyWorkers < 1 || c.NotifyQueueSize < 1 {
		return fmt.Errorf("NOTIFY_WORKERS and NOTIFY_QUEUE_SIZE must be at least 1")
	}
	for _, sink := range c.NotifySinks {
		switch sink {
		case "log", "kafka", "sqs":
		default:
			return fmt.Errorf("NOTIFY_SINKS contains unknown sink %q", sink)
		}
		if sink == "kafka" && len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required for the kafka sink")
		}
		if sink == "sqs" && c.SQSQueueURL == "" && c.SQSQueueName == "" {
			return fmt.Errorf("SQS_QUEUE_URL or SQS_QUEUE_NAME is required for the sqs sink")
		}
	}
	return nil
}

// HasDatabase reports whether enough settings exist to open a connection.
func (c *Config) HasDatabase() bool {
	return c.DatabaseURL != "" || c.DBHost != ""
}

// DSN returns the postgres connection string.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode)
}

// RedactedDSN is safe to log.
func (c *Config) RedactedDSN() string {
	if c.DatabaseURL != "" {
		if u, err := url.Parse(c.DatabaseURL); err == nil {
			return u.Redacted()
		}
		return "DATABASE_URL"
	}
	return fmt.Sprintf("host=%s user=%s dbname=%s port=%s", c.DBHost, c.DBUser, c.DBName, c.DBPort)
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("250ms") or whole seconds ("5").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}
