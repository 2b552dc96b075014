package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/samber/oops"
)

const (
	HashAlgorithmBcrypt   = "bcrypt"
	HashAlgorithmArgon2id = "argon2id"

	MailDriverLog   = "log"
	MailDriverSMTP  = "smtp"
	MailDriverKafka = "kafka"
)

type Config struct {
	Environment string
	Server      ServerConfig
	Logging     LoggingConfig
	Security    SecurityConfig
	Account     AccountConfig
	RateLimit   RateLimitConfig
	Redis       RedisConfig
	Mail        MailConfig
	Kafka       KafkaConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	AllowedOrigins []string
}

type LoggingConfig struct {
	Level  string
	Format string
}

// SecurityConfig holds the lockout policy and the credential/token parameters.
type SecurityConfig struct {
	JWTSecret          string
	TokenTTL           time.Duration
	MaxAttempts        int
	LockoutDuration    time.Duration
	HashAlgorithm      string
	BcryptCost         int
	Argon2MemoryCost   int
	Argon2TimeCost     int
	Argon2Parallelism  int
	TempPasswordLength int
	MinPasswordLength  int
}

// AccountConfig seeds the single managed account at startup.
type AccountConfig struct {
	Email      string
	Password   string
	BirthDate  string
	FatherName string
	MotherName string
}

type RateLimitConfig struct {
	Enabled        bool
	LoginLimit     int
	LoginWindow    time.Duration
	RecoveryLimit  int
	RecoveryWindow time.Duration
	APILimit       int
	APIWindow      time.Duration
}

// RedisConfig is optional; an empty URL keeps rate limiting in memory.
type RedisConfig struct {
	URL      string
	Password string
	DB       int
	PoolSize int
}

type MailConfig struct {
	Driver       string
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	From         string
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// LoadConfig reads .env (if present) and the process environment over defaults.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Environment: getEnv("APP_ENV", "development"),
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", ""),
			Port:           getEnvInt("SERVER_PORT", 3000),
			ReadTimeout:    getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "console"),
		},
		Security: SecurityConfig{
			JWTSecret:          getEnv("JWT_SECRET", "chave_secreta_padrao"),
			TokenTTL:           getEnvDuration("TOKEN_TTL", time.Hour),
			MaxAttempts:        getEnvInt("MAX_LOGIN_ATTEMPTS", 3),
			LockoutDuration:    getEnvDuration("LOCKOUT_DURATION", 15*time.Minute),
			HashAlgorithm:      getEnv("HASH_ALGORITHM", HashAlgorithmBcrypt),
			BcryptCost:         getEnvInt("BCRYPT_COST", 10),
			Argon2MemoryCost:   getEnvInt("ARGON2_MEMORY_COST", 64*1024),
			Argon2TimeCost:     getEnvInt("ARGON2_TIME_COST", 1),
			Argon2Parallelism:  getEnvInt("ARGON2_PARALLELISM", 4),
			TempPasswordLength: getEnvInt("TEMP_PASSWORD_LENGTH", 8),
			MinPasswordLength:  getEnvInt("MIN_PASSWORD_LENGTH", 8),
		},
		Account: AccountConfig{
			Email:      getEnv("ACCOUNT_EMAIL", "usuario@teste.com"),
			Password:   getEnv("ACCOUNT_PASSWORD", "Senha123!"),
			BirthDate:  getEnv("ACCOUNT_BIRTH_DATE", "1990-05-15"),
			FatherName: getEnv("ACCOUNT_FATHER_NAME", "João Silva"),
			MotherName: getEnv("ACCOUNT_MOTHER_NAME", "Maria Silva"),
		},
		RateLimit: RateLimitConfig{
			Enabled:        getEnvBool("RATE_LIMIT_ENABLED", true),
			LoginLimit:     getEnvInt("RATE_LIMIT_LOGIN", 5),
			LoginWindow:    getEnvDuration("RATE_LIMIT_LOGIN_WINDOW", 15*time.Minute),
			RecoveryLimit:  getEnvInt("RATE_LIMIT_RECOVERY", 3),
			RecoveryWindow: getEnvDuration("RATE_LIMIT_RECOVERY_WINDOW", time.Hour),
			APILimit:       getEnvInt("RATE_LIMIT_API", 100),
			APIWindow:      getEnvDuration("RATE_LIMIT_API_WINDOW", 15*time.Minute),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 20),
		},
		Mail: MailConfig{
			Driver:       getEnv("MAIL_DRIVER", MailDriverLog),
			SMTPHost:     getEnv("EMAIL_HOST", "smtp.gmail.com"),
			SMTPPort:     getEnvInt("EMAIL_PORT", 587),
			SMTPUser:     getEnv("EMAIL_USER", ""),
			SMTPPassword: getEnv("EMAIL_PASS", ""),
			From:         getEnv("EMAIL_FROM", ""),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:   getEnv("KAFKA_RESET_TOPIC", "password-reset-delivery"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the engines cannot run with.
func (c *Config) Validate() error {
	errb := oops.Code("CONFIG_INVALID")

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errb.With("port", c.Server.Port).Errorf("server port out of range")
	}
	if c.Security.JWTSecret == "" {
		return errb.Errorf("JWT_SECRET must not be empty")
	}
	if c.IsProduction() && c.Security.JWTSecret == "chave_secreta_padrao" {
		return errb.Errorf("JWT_SECRET must be overridden in production")
	}
	if c.Security.TokenTTL <= 0 {
		return errb.With("token_ttl", c.Security.TokenTTL).Errorf("token TTL must be positive")
	}
	if c.Security.MaxAttempts < 1 {
		return errb.With("max_attempts", c.Security.MaxAttempts).Errorf("max attempts must be at least 1")
	}
	if c.Security.LockoutDuration <= 0 {
		return errb.With("lockout_duration", c.Security.LockoutDuration).Errorf("lockout duration must be positive")
	}
	switch c.Security.HashAlgorithm {
	case HashAlgorithmBcrypt, HashAlgorithmArgon2id:
	default:
		return errb.With("algorithm", c.Security.HashAlgorithm).Errorf("unsupported hash algorithm")
	}
	if c.Security.TempPasswordLength < 4 {
		return errb.With("length", c.Security.TempPasswordLength).Errorf("temporary password length must be at least 4")
	}
	if c.Account.Email == "" || c.Account.Password == "" {
		return errb.Errorf("seed account email and password are required")
	}
	if _, err := time.Parse(time.DateOnly, c.Account.BirthDate); err != nil {
		return errb.With("birth_date", c.Account.BirthDate).Wrapf(err, "seed birth date must be YYYY-MM-DD")
	}
	switch c.Mail.Driver {
	case MailDriverLog, MailDriverSMTP, MailDriverKafka:
	default:
		return errb.With("driver", c.Mail.Driver).Errorf("unsupported mail driver")
	}
	if c.Mail.Driver == MailDriverKafka && len(c.Kafka.Brokers) == 0 {
		return errb.Errorf("KAFKA_BROKERS is required for the kafka mail driver")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
