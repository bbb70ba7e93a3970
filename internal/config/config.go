package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents the application configuration
type Config struct {
	Server        ServerConfig        `json:"server"`
	Database      DatabaseConfig      `json:"database"`
	Security      SecurityConfig      `json:"security"`
	AWS           AWSConfig           `json:"aws"`
	Notifications NotificationsConfig `json:"notifications"`
	WebSocket     WebSocketConfig     `json:"websocket"`
	Logging       LoggingConfig       `json:"logging"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	Mode         string        `json:"mode"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	User           string        `json:"user"`
	Password       string        `json:"password"`
	DBName         string        `json:"db_name"`
	SSLMode        string        `json:"ssl_mode"`
	MaxConnections int           `json:"max_connections"`
	MaxIdleConns   int           `json:"max_idle_conns"`
	MaxLifetime    time.Duration `json:"max_lifetime"`
	MigrationsPath string        `json:"migrations_path"`
}

// SecurityConfig holds access token settings
type SecurityConfig struct {
	JWTSecret string        `json:"jwt_secret"`
	JWTIssuer string        `json:"jwt_issuer"`
	TokenTTL  time.Duration `json:"token_ttl"`
}

// AWSConfig configures the SES and SNS clients. AccessKeyID and
// SecretAccessKey are optional; without them the default credential chain
// is used. Endpoint points both clients at a local emulator.
type AWSConfig struct {
	Region          string `json:"region"`
	Endpoint        string `json:"endpoint"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
}

// NotificationsConfig configures delivery channels and retries
type NotificationsConfig struct {
	Channels         []string `json:"channels"`
	EmailFrom        string   `json:"email_from"`
	ConfigurationSet string   `json:"configuration_set"`
	SNSTopicARN      string   `json:"sns_topic_arn"`
	RetrySchedule    string   `json:"retry_schedule"`
	MaxRetries       int      `json:"max_retries"`
	RetryBatchSize   int      `json:"retry_batch_size"`
}

// WebSocketConfig configures the notification socket
type WebSocketConfig struct {
	AllowedOrigins []string `json:"allowed_origins"`
}

// LoggingConfig
type LoggingConfig struct {
	Level       string `json:"level"`
	Development bool   `json:"development"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	// Default config
	config := &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			Mode:         "release",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Host:           "localhost",
			Port:           5432,
			User:           os.Getenv("USER"),
			DBName:         "application_portal",
			SSLMode:        "disable",
			MaxConnections: 25,
			MaxIdleConns:   5,
			MaxLifetime:    5 * time.Minute,
			MigrationsPath: "migrations",
		},
		Security: SecurityConfig{
			JWTIssuer: "application-portal",
			TokenTTL:  24 * time.Hour,
		},
		AWS: AWSConfig{
			Region: "us-east-1",
		},
		Notifications: NotificationsConfig{
			Channels:       []string{"IN_APP", "WEBSOCKET"},
			RetrySchedule:  "0 */2 * * * *",
			MaxRetries:     5,
			RetryBatchSize: 100,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}

	// Load from file if exists
	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// Override with environment variables
	overrideWithEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func overrideWithEnv(config *Config) {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if mode := os.Getenv("GIN_MODE"); mode != "" {
		config.Server.Mode = mode
	}

	if dbHost := os.Getenv("DATABASE_HOST"); dbHost != "" {
		config.Database.Host = dbHost
	}
	if dbPort := os.Getenv("DATABASE_PORT"); dbPort != "" {
		if p, err := strconv.Atoi(dbPort); err == nil {
			config.Database.Port = p
		}
	}
	if dbUser := os.Getenv("DATABASE_USER"); dbUser != "" {
		config.Database.User = dbUser
	}
	if dbPass := os.Getenv("DATABASE_PASSWORD"); dbPass != "" {
		config.Database.Password = dbPass
	}
	if dbName := os.Getenv("DATABASE_DBNAME"); dbName != "" {
		config.Database.DBName = dbName
	}
	if sslMode := os.Getenv("DATABASE_SSLMODE"); sslMode != "" {
		config.Database.SSLMode = sslMode
	}

	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		config.Security.JWTSecret = secret
	}
	if issuer := os.Getenv("JWT_ISSUER"); issuer != "" {
		config.Security.JWTIssuer = issuer
	}
	if ttl := os.Getenv("JWT_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			config.Security.TokenTTL = d
		}
	}

	if region := os.Getenv("AWS_REGION"); region != "" {
		config.AWS.Region = region
	}
	if endpoint := os.Getenv("AWS_ENDPOINT_URL"); endpoint != "" {
		config.AWS.Endpoint = endpoint
	}
	if key := os.Getenv("AWS_ACCESS_KEY_ID"); key != "" {
		config.AWS.AccessKeyID = key
	}
	if secret := os.Getenv("AWS_SECRET_ACCESS_KEY"); secret != "" {
		config.AWS.SecretAccessKey = secret
	}

	if channels := os.Getenv("NOTIFY_CHANNELS"); channels != "" {
		config.Notifications.Channels = splitList(strings.ToUpper(channels))
	}
	if from := os.Getenv("NOTIFY_EMAIL_FROM"); from != "" {
		config.Notifications.EmailFrom = from
	}
	if set := os.Getenv("NOTIFY_SES_CONFIGURATION_SET"); set != "" {
		config.Notifications.ConfigurationSet = set
	}
	if topic := os.Getenv("NOTIFY_SNS_TOPIC_ARN"); topic != "" {
		config.Notifications.SNSTopicARN = topic
	}
	if schedule := os.Getenv("NOTIFY_RETRY_SCHEDULE"); schedule != "" {
		config.Notifications.RetrySchedule = schedule
	}
	if retries := os.Getenv("NOTIFY_MAX_RETRIES"); retries != "" {
		if n, err := strconv.Atoi(retries); err == nil {
			config.Notifications.MaxRetries = n
		}
	}

	if origins := os.Getenv("WS_ALLOWED_ORIGINS"); origins != "" {
		config.WebSocket.AllowedOrigins = splitList(origins)
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if os.Getenv("LOG_DEVELOPMENT") == "true" {
		config.Logging.Development = true
	}
}

// Validate checks settings the server cannot start without
func (c *Config) Validate() error {
	if c.Security.JWTSecret == "" {
		return fmt.Errorf("jwt secret is required (set JWT_SECRET)")
	}
	if c.Security.TokenTTL <= 0 {
		return fmt.Errorf("token ttl must be positive")
	}
	if c.Notifications.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative")
	}
	for _, channel := range c.Notifications.Channels {
		if channel == "EMAIL" && c.Notifications.EmailFrom == "" {
			return fmt.Errorf("email channel requires a sender address (set NOTIFY_EMAIL_FROM)")
		}
	}
	return nil
}

// HasChannel reports whether channel is enabled for delivery
func (c *NotificationsConfig) HasChannel(channel string) bool {
	for _, ch := range c.Channels {
		if ch == channel {
			return true
		}
	}
	return false
}

// GetDatabaseURL returns the database connection string
func (c *DatabaseConfig) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
