package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/devicehub/devicehub/internal/ports"
)

// Config represents application configuration
type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Audit    AuditConfig    `json:"audit"`
	AI       AIConfig       `json:"ai"`
	Redis    RedisConfig    `json:"redis"`
	Logging  LoggingConfig  `json:"logging"`
	Security SecurityConfig `json:"security"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Port         string        `json:"port"`
	Host         string        `json:"host"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
	Environment  string        `json:"environment"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	URL            string        `json:"-"`
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	User           string        `json:"user"`
	Password       string        `json:"-"`
	DBName         string        `json:"dbname"`
	SSLMode        string        `json:"sslmode"`
	MaxConnections int           `json:"max_connections"`
	MaxIdleTime    time.Duration `json:"max_idle_time"`
	ConnectTimeout time.Duration `json:"connect_timeout"`
}

// AuditConfig represents the admin audit-log subsystem configuration
type AuditConfig struct {
	FallbackBackend string        `json:"fallback_backend"` // sqlite, redis, memory
	FallbackPath    string        `json:"fallback_path"`
	FallbackKey     string        `json:"fallback_key"`
	StoreTimeout    time.Duration `json:"store_timeout"`
	IPLookupEnabled bool          `json:"ip_lookup_enabled"`
	IPLookupURL     string        `json:"ip_lookup_url"`
	IPLookupTimeout time.Duration `json:"ip_lookup_timeout"`
	DefaultPageSize int           `json:"default_page_size"`
	MaxPageSize     int           `json:"max_page_size"`
	ExportLimit     int           `json:"export_limit"`
}

// AIConfig represents chat proxy configuration
type AIConfig struct {
	Provider    string  `json:"provider"` // openai, mock
	APIKey      string  `json:"-"`
	BaseURL     string  `json:"base_url"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	TimeoutMs   int     `json:"timeout_ms"`
}

// RedisConfig represents Redis configuration
type RedisConfig struct {
	URL string `json:"-"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"` // json, text
}

// SecurityConfig represents security configuration
type SecurityConfig struct {
	JWTSecret            string        `json:"-"`
	CORSOrigins          []string      `json:"cors_origins"`
	CORSAllowCredentials bool          `json:"cors_allow_credentials"`
	RateLimitEnabled     bool          `json:"rate_limit_enabled"`
	RateLimitRequests    int           `json:"rate_limit_requests"`
	RateLimitWindow      time.Duration `json:"rate_limit_window"`
	ChatRateLimit        int           `json:"chat_rate_limit"`
}

// Load reads .env when present, then the environment
func Load() (*Config, error) {
	_ = godotenv.Load()

	config := &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "5000"),
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			Environment:  getEnv("ENVIRONMENT", "development"),
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnvInt("DB_PORT", 5432),
			User:           getEnv("DB_USER", "postgres"),
			Password:       getEnv("DB_PASSWORD", ""),
			DBName:         getEnv("DB_NAME", "postgres"),
			SSLMode:        getEnv("DB_SSLMODE", "require"),
			MaxConnections: getEnvInt("DB_MAX_CONNECTIONS", 10),
			MaxIdleTime:    getEnvDuration("DB_MAX_IDLE_TIME", 30*time.Minute),
			ConnectTimeout: getEnvDuration("DB_CONNECT_TIMEOUT", 10*time.Second),
		},
		Audit: AuditConfig{
			FallbackBackend: getEnv("AUDIT_FALLBACK_BACKEND", "sqlite"),
			FallbackPath:    getEnv("AUDIT_FALLBACK_PATH", defaultFallbackPath()),
			FallbackKey:     getEnv("AUDIT_FALLBACK_KEY", "admin_logs_fallback"),
			StoreTimeout:    getEnvDuration("AUDIT_STORE_TIMEOUT", 5*time.Second),
			IPLookupEnabled: getEnvBool("IP_LOOKUP_ENABLED", true),
			IPLookupURL:     getEnv("IP_LOOKUP_URL", "https://api.ipify.org?format=json"),
			IPLookupTimeout: getEnvDuration("IP_LOOKUP_TIMEOUT", 3*time.Second),
			DefaultPageSize: getEnvInt("AUDIT_PAGE_SIZE", 50),
			MaxPageSize:     getEnvInt("AUDIT_MAX_PAGE_SIZE", 500),
			ExportLimit:     getEnvInt("AUDIT_EXPORT_LIMIT", 10000),
		},
		AI: AIConfig{
			Provider:    getEnv("AI_PROVIDER", "mock"),
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			BaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Model:       getEnv("AI_CHAT_MODEL", "gpt-4"),
			MaxTokens:   getEnvInt("AI_MAX_TOKENS", 1000),
			Temperature: getEnvFloat("AI_TEMPERATURE", 0.7),
			TimeoutMs:   getEnvInt("AI_TIMEOUT_MS", 30000),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Security: SecurityConfig{
			JWTSecret:            getEnv("SUPABASE_JWT_SECRET", ""),
			CORSOrigins:          getEnvSlice("CORS_ORIGINS", []string{"http://localhost:3000", "http://localhost:3001", "http://localhost:5173"}),
			CORSAllowCredentials: getEnvBool("CORS_ALLOW_CREDENTIALS", true),
			RateLimitEnabled:     getEnvBool("RATE_LIMIT_ENABLED", true),
			RateLimitRequests:    getEnvInt("RATE_LIMIT_REQUESTS", 120),
			RateLimitWindow:      getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
			ChatRateLimit:        getEnvInt("CHAT_RATE_LIMIT", 20),
		},
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	if c.Database.URL == "" && (c.Database.Host == "" || c.Database.User == "" || c.Database.DBName == "") {
		return fmt.Errorf("DATABASE_URL or DB_HOST, DB_USER and DB_NAME are required")
	}

	switch c.Audit.FallbackBackend {
	case "sqlite":
		if c.Audit.FallbackPath == "" {
			return fmt.Errorf("AUDIT_FALLBACK_PATH is required for the sqlite fallback backend")
		}
	case "redis":
		if c.Redis.URL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis fallback backend")
		}
	case "memory":
		if c.IsProduction() {
			return fmt.Errorf("the memory fallback backend loses entries on restart and is not allowed in production")
		}
	default:
		return fmt.Errorf("unknown audit fallback backend: %s", c.Audit.FallbackBackend)
	}

	if c.Audit.FallbackKey == "" {
		return fmt.Errorf("AUDIT_FALLBACK_KEY must not be empty")
	}

	switch c.AI.Provider {
	case "mock":
	case "openai":
		if c.AI.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for provider: %s", c.AI.Provider)
		}
	default:
		return fmt.Errorf("unknown AI provider: %s", c.AI.Provider)
	}

	return nil
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// GetDatabaseURL returns the database connection string
func (c *Config) GetDatabaseURL() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s connect_timeout=%d",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
		c.Database.SSLMode,
		int(c.Database.ConnectTimeout.Seconds()),
	)
}

// ToChatConfig converts to ports.ChatConfig
func (c *Config) ToChatConfig() ports.ChatConfig {
	return ports.ChatConfig{
		Provider:    c.AI.Provider,
		APIKey:      c.AI.APIKey,
		BaseURL:     c.AI.BaseURL,
		Model:       c.AI.Model,
		MaxTokens:   c.AI.MaxTokens,
		Temperature: c.AI.Temperature,
		TimeoutMs:   c.AI.TimeoutMs,
	}
}

func defaultFallbackPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return "devicehub-fallback.db"
	}
	return filepath.Join(base, "devicehub", "fallback.db")
}

// Helper functions for environment variables

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
