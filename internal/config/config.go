package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Supported values for DB_DRIVER.
const (
	DriverPostgres = "postgres" // lib/pq
	DriverPgx      = "pgx"      // jackc/pgx stdlib
	DriverSQLite   = "sqlite"   // modernc.org/sqlite
)

// Supported values for MAIL_TRANSPORT.
const (
	MailTransportSMTP = "smtp"
	MailTransportAMQP = "amqp"
	MailTransportLog  = "log"
)

// Upper bounds for numeric settings.
const (
	MaxArgon2MemoryKB    = 4 * 1024 * 1024 // 4 GiB
	MaxMailRetryAttempts = 10
)

// Supported values for TOKEN_FORMAT.
const (
	TokenFormatPaseto = "paseto"
	TokenFormatJWT    = "jwt"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Mail      MailConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port            string
	Env             string // dev or prod
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	TrustedOrigins  []string
}

type DatabaseConfig struct {
	Driver      string
	URL         string // full DSN, wins over the individual parts
	Host        string
	Port        string
	User        string
	Password    string
	DBName      string
	SSLMode     string
	AutoMigrate bool
}

type RedisConfig struct {
	Host     string // empty disables rate limiting
	Port     string
	Password string
	DB       int
}

type AuthConfig struct {
	// SecretKey signs or encrypts bearer tokens (32 bytes, hex encoded in env)
	SecretKey           []byte
	TokenFormat         string
	AccessTokenDuration time.Duration
	ResetCodeTTL        time.Duration
	Argon2MemoryKB      uint32
	Argon2Iterations    uint32
	Argon2Parallelism   uint8
}

type MailConfig struct {
	Transport     string
	Server        string
	Port          string
	UseTLS        bool // STARTTLS
	UseSSL        bool // implicit TLS
	Username      string
	Password      string
	From          string
	Timeout       time.Duration
	RetryAttempts uint64
	AMQPURL       string
	AMQPQueue     string
}

type RateLimitConfig struct {
	Requests           int
	Window             time.Duration
	ResetEmailCooldown time.Duration
}

// Load reads configuration from environment variables.
// A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	memoryKB, memErr := getUintEnv("ARGON2_MEMORY_KB", 64*1024, 32)
	iterations, iterErr := getUintEnv("ARGON2_ITERATIONS", 3, 32)
	parallelism, parErr := getUintEnv("ARGON2_PARALLELISM", 2, 8)
	mail, mailErr := loadMailConfig()
	if err := errors.Join(memErr, iterErr, parErr, mailErr); err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			Env:             getEnv("APP_ENV", "dev"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
			TrustedOrigins:  getSliceEnv("TRUSTED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Database: loadDatabaseConfig(),
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", ""),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			TokenFormat:         strings.ToLower(getEnv("TOKEN_FORMAT", TokenFormatPaseto)),
			AccessTokenDuration: getDurationEnv("ACCESS_TOKEN_DURATION", time.Hour),
			ResetCodeTTL:        getDurationEnv("RESET_CODE_TTL", 30*time.Minute),
			Argon2MemoryKB:      uint32(memoryKB),
			Argon2Iterations:    uint32(iterations),
			Argon2Parallelism:   uint8(parallelism),
		},
		Mail: mail,
		RateLimit: RateLimitConfig{
			Requests:           getIntEnv("RATE_LIMIT_REQUESTS", 10),
			Window:             getDurationEnv("RATE_LIMIT_WINDOW", 15*time.Minute),
			ResetEmailCooldown: getDurationEnv("RESET_EMAIL_COOLDOWN", 60*time.Second),
		},
	}

	key, err := parseSecretKey(os.Getenv("SECRET_KEY"))
	if err != nil {
		return nil, err
	}
	cfg.Auth.SecretKey = key

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadDatabase reads only the database settings. Tools that never serve
// requests use it so they do not need the auth and mail secrets.
func LoadDatabase() (DatabaseConfig, error) {
	_ = godotenv.Load()

	cfg := Config{Database: loadDatabaseConfig()}
	if err := cfg.validateDatabase(); err != nil {
		return DatabaseConfig{}, err
	}
	return cfg.Database, nil
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:      getEnv("DB_DRIVER", DriverPostgres),
		URL:         getEnv("DATABASE_URL", ""),
		Host:        getEnv("DB_HOST", "localhost"),
		Port:        getEnv("DB_PORT", "5432"),
		User:        getEnv("DB_USER", "postgres"),
		Password:    getEnv("DB_PASSWORD", ""),
		DBName:      getEnv("DB_NAME", "myfinance"),
		SSLMode:     getEnv("DB_SSLMODE", "disable"),
		AutoMigrate: getBoolEnv("DB_AUTO_MIGRATE", true),
	}
}

// MailerConfig holds what the queue consumer needs to deliver reset codes.
type MailerConfig struct {
	Env          string
	Mail         MailConfig
	ResetCodeTTL time.Duration
}

// LoadMailer reads the settings of the mail worker. It needs the SMTP relay
// and the AMQP broker but none of the API secrets.
func LoadMailer() (*MailerConfig, error) {
	_ = godotenv.Load()

	mail, err := loadMailConfig()
	if err != nil {
		return nil, err
	}

	cfg := &MailerConfig{
		Env:          getEnv("APP_ENV", "dev"),
		Mail:         mail,
		ResetCodeTTL: getDurationEnv("RESET_CODE_TTL", 30*time.Minute),
	}

	if err := mail.validateDelivery(); err != nil {
		return nil, err
	}
	if cfg.ResetCodeTTL <= 0 {
		return nil, errors.New("RESET_CODE_TTL must be positive")
	}

	switch {
	case cfg.Mail.AMQPURL == "":
		return nil, errors.New("AMQP_URL is required for the mailer")
	case cfg.Mail.Server == "":
		return nil, errors.New("MAIL_SERVER is required for the mailer")
	case cfg.Mail.From == "":
		return nil, errors.New("MAIL_FROM or MAIL_USERNAME is required for the mailer")
	}

	return cfg, nil
}

func loadMailConfig() (MailConfig, error) {
	retries, err := getUintEnv("MAIL_RETRY_ATTEMPTS", 2, 64)
	if err != nil {
		return MailConfig{}, err
	}

	cfg := MailConfig{
		Transport:     strings.ToLower(getEnv("MAIL_TRANSPORT", MailTransportSMTP)),
		Server:        getEnv("MAIL_SERVER", ""),
		Port:          getEnv("MAIL_PORT", "587"),
		UseTLS:        getBoolEnv("MAIL_USE_TLS", true),
		UseSSL:        getBoolEnv("MAIL_USE_SSL", false),
		Username:      getEnv("MAIL_USERNAME", ""),
		Password:      getEnv("MAIL_PASSWORD", ""),
		From:          getEnv("MAIL_FROM", ""),
		Timeout:       getDurationEnv("MAIL_TIMEOUT", 10*time.Second),
		RetryAttempts: retries,
		AMQPURL:       getEnv("AMQP_URL", ""),
		AMQPQueue:     getEnv("AMQP_MAIL_QUEUE", "mail.password_reset"),
	}

	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return cfg, nil
}

// Validate checks cross-field constraints that Load cannot express with defaults.
func (c *Config) Validate() error {
	if err := c.validateDatabase(); err != nil {
		return err
	}

	switch c.Auth.TokenFormat {
	case TokenFormatPaseto, TokenFormatJWT:
	default:
		return fmt.Errorf("unsupported TOKEN_FORMAT %q", c.Auth.TokenFormat)
	}

	switch {
	case c.Server.ReadTimeout <= 0, c.Server.WriteTimeout <= 0, c.Server.ShutdownTimeout <= 0:
		return errors.New("server timeouts must be positive")
	case c.Auth.AccessTokenDuration <= 0:
		return errors.New("ACCESS_TOKEN_DURATION must be positive")
	case c.Auth.ResetCodeTTL <= 0:
		return errors.New("RESET_CODE_TTL must be positive")
	case c.Auth.Argon2Iterations == 0 || c.Auth.Argon2Parallelism == 0:
		return errors.New("argon2 iterations and parallelism must be positive")
	case c.Auth.Argon2MemoryKB < 8*uint32(c.Auth.Argon2Parallelism) || c.Auth.Argon2MemoryKB > MaxArgon2MemoryKB:
		return fmt.Errorf("ARGON2_MEMORY_KB must be between 8 x parallelism and %d", MaxArgon2MemoryKB)
	case c.RateLimit.Requests <= 0:
		return errors.New("RATE_LIMIT_REQUESTS must be positive")
	case c.RateLimit.Window <= 0:
		return errors.New("RATE_LIMIT_WINDOW must be positive")
	case c.RateLimit.ResetEmailCooldown < 0:
		return errors.New("RESET_EMAIL_COOLDOWN must not be negative")
	}

	if err := c.Mail.validateDelivery(); err != nil {
		return err
	}

	switch c.Mail.Transport {
	case MailTransportSMTP:
		if c.Mail.Server == "" {
			return errors.New("MAIL_SERVER is required for smtp transport")
		}
		if c.Mail.From == "" {
			return errors.New("MAIL_FROM or MAIL_USERNAME is required for smtp transport")
		}
	case MailTransportAMQP:
		if c.Mail.AMQPURL == "" {
			return errors.New("AMQP_URL is required for amqp transport")
		}
	case MailTransportLog:
		if !c.Server.IsDevelopment() {
			return errors.New("MAIL_TRANSPORT=log is only allowed in dev")
		}
	default:
		return fmt.Errorf("unsupported MAIL_TRANSPORT %q", c.Mail.Transport)
	}

	return nil
}

// validateDelivery checks the settings shared by every mail transport.
func (c *MailConfig) validateDelivery() error {
	if c.Timeout < 0 {
		return errors.New("MAIL_TIMEOUT must not be negative")
	}
	if c.RetryAttempts > MaxMailRetryAttempts {
		return fmt.Errorf("MAIL_RETRY_ATTEMPTS must be at most %d", MaxMailRetryAttempts)
	}
	return nil
}

func (c *Config) validateDatabase() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverPgx:
		if c.Database.URL == "" && c.Database.Password == "" {
			return errors.New("DB_PASSWORD or DATABASE_URL is required for postgres")
		}
	case DriverSQLite:
		if c.Database.URL == "" {
			return errors.New("DATABASE_URL is required for sqlite")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	return nil
}

func parseSecretKey(value string) ([]byte, error) {
	if value == "" {
		return nil, errors.New("SECRET_KEY is required")
	}
	key, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("SECRET_KEY must be hex encoded: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("SECRET_KEY must decode to exactly 32 bytes, got %d", len(key))
	}
	return key, nil
}

// ConnectionString returns the DSN handed to the selected driver.
func (c *DatabaseConfig) ConnectionString() string {
	if c.URL != "" {
		return c.URL
	}

	return fmt.Sprintf(
		"postgres://%s@%s/%s?sslmode=%s",
		url.UserPassword(c.User, c.Password).String(),
		c.Host+":"+c.Port,
		c.DBName,
		url.QueryEscape(c.SSLMode),
	)
}

// Address returns Redis connection address (host:port)
func (c *RedisConfig) Address() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// Enabled reports whether a Redis server was configured.
func (c *RedisConfig) Enabled() bool {
	return c.Host != ""
}

// IsDevelopment returns true if the environment is set to dev
func (c *ServerConfig) IsDevelopment() bool {
	return c.Env == "dev"
}

// Address returns the SMTP server address (host:port)
func (c *MailConfig) Address() string {
	return fmt.Sprintf("%s:%s", c.Server, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intValue
}

// getUintEnv reads an unsigned integer that must fit in bitSize bits.
// Negative or oversized values are an error rather than a silent wrap.
func getUintEnv(key string, defaultValue uint64, bitSize int) (uint64, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}

	n, err := strconv.ParseUint(value, 10, bitSize)
	if err != nil {
		return 0, fmt.Errorf("%s must be a non-negative integer below 2^%d, got %q", key, bitSize, value)
	}

	return n, nil
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return boolValue
}

// getDurationEnv reads a whole number of seconds.
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	seconds, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return time.Duration(seconds) * time.Second
}

func getSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	if len(result) == 0 {
		return defaultValue
	}

	return result
}
