package factory

import (
	"context"
	"crypto/rand"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"login-service/internal/account"
	"login-service/internal/client"
	"login-service/internal/clock"
	"login-service/internal/config"
	"login-service/internal/handler"
	"login-service/internal/hashing"
	"login-service/internal/metrics"
	"login-service/internal/notify"
	"login-service/internal/ratelimit"
	"login-service/internal/service"
	"login-service/internal/token"
	"login-service/internal/util"

	"github.com/samber/oops"
	"go.uber.org/zap"
)

// Factory manages the lifecycle of all application dependencies
type Factory struct {
	config *config.Config
	logger *zap.Logger
	clock  clock.Clock

	// Clients
	redisClient   *client.RedisClient
	kafkaProducer *client.KafkaProducer

	// Managers
	hasher   *hashing.CredentialHasher
	account  *account.Account
	tokens   *token.Manager
	notifier service.Notifier
	metrics  *metrics.Metrics
	limits   handler.Limits

	serviceFactory *service.ServiceFactory

	// mailOut receives simulated emails from the log mail driver.
	mailOut io.Writer

	closeOnce sync.Once
	closed    chan struct{}
}

// NewFactory loads configuration from the environment, initializes the global
// logger and builds every dependency.
func NewFactory() (*Factory, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	logger := util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)
	return NewFactoryWithConfig(cfg, logger, os.Stdout)
}

// NewFactoryWithConfig builds every dependency from cfg. mailOut is where the
// log mail driver writes simulated emails.
func NewFactoryWithConfig(cfg *config.Config, logger *zap.Logger, mailOut io.Writer) (*Factory, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	f := &Factory{
		config:  cfg,
		logger:  logger,
		clock:   clock.Real(),
		mailOut: mailOut,
		closed:  make(chan struct{}),
	}

	if err := f.initializeClients(); err != nil {
		f.Close()
		return nil, oops.Code("FACTORY_INIT_FAILED").Wrapf(err, "failed to initialize clients")
	}

	if err := f.initializeManagers(); err != nil {
		f.Close()
		return nil, oops.Code("FACTORY_INIT_FAILED").Wrapf(err, "failed to initialize managers")
	}

	logger.Info("Factory initialized successfully",
		util.String("environment", cfg.Environment),
		util.String("hash_algorithm", f.hasher.Algorithm()),
		util.String("mail_driver", cfg.Mail.Driver),
		util.Bool("redis_enabled", f.redisClient != nil),
		util.Bool("rate_limit_enabled", cfg.RateLimit.Enabled),
	)

	return f, nil
}

// initializeClients connects to Redis when configured and creates the Kafka
// producer when it carries reset emails.
func (f *Factory) initializeClients() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if f.config.Redis.URL != "" {
		redisClient, err := client.NewRedisClient(ctx, f.config, f.logger.Named("redis"))
		if err != nil {
			if f.config.IsProduction() {
				return err
			}
			f.logger.Warn("Redis unavailable - rate limiting falls back to memory", util.ErrorField(err))
		} else {
			f.redisClient = redisClient
		}
	}

	if f.config.Mail.Driver == config.MailDriverKafka {
		producer, err := client.NewKafkaProducer(f.config, f.logger.Named("kafka"))
		if err != nil {
			return err
		}
		f.kafkaProducer = producer
	}

	return nil
}

// initializeManagers builds the hasher, the seeded account, the token
// manager, the notifier, metrics and rate limiters.
func (f *Factory) initializeManagers() error {
	hasher, err := hashing.NewHasher(f.config)
	if err != nil {
		return err
	}
	f.hasher = hasher

	acct, err := f.seedAccount()
	if err != nil {
		return err
	}
	f.account = acct

	tokens, err := token.NewManager(f.config.Security.JWTSecret, f.clock)
	if err != nil {
		return err
	}
	f.tokens = tokens

	f.notifier = f.newNotifier()
	f.metrics = metrics.New()
	f.limits = f.newLimits()

	return nil
}

func (f *Factory) seedAccount() (*account.Account, error) {
	seed := f.config.Account

	digest, err := f.hasher.Hash(seed.Password)
	if err != nil {
		return nil, oops.Code("ACCOUNT_SEED_FAILED").Wrapf(err, "failed to hash seed password")
	}

	birthDate, err := time.Parse(time.DateOnly, seed.BirthDate)
	if err != nil {
		return nil, oops.Code("ACCOUNT_SEED_FAILED").With("birth_date", seed.BirthDate).Wrapf(err, "invalid seed birth date")
	}

	f.logger.Info("Account seeded", util.Email("email", seed.Email))

	return account.New(seed.Email, digest, account.RecoveryFacts{
		BirthDate:  birthDate,
		FatherName: seed.FatherName,
		MotherName: seed.MotherName,
	}, f.config.Security.MaxAttempts), nil
}

func (f *Factory) newNotifier() service.Notifier {
	logger := f.logger.Named("notify")

	switch f.config.Mail.Driver {
	case config.MailDriverSMTP:
		return notify.NewSMTPNotifier(f.config.Mail, logger)
	case config.MailDriverKafka:
		return notify.NewKafkaNotifier(f.kafkaProducer, f.config.Kafka.Topic, logger)
	default:
		return notify.NewLogNotifier(f.mailOut, logger)
	}
}

func (f *Factory) newLimits() handler.Limits {
	rl := f.config.RateLimit
	if !rl.Enabled {
		return handler.Limits{}
	}

	return handler.Limits{
		API:      f.newLimiter(ratelimit.Policy{Name: "api", Limit: rl.APILimit, Window: rl.APIWindow}),
		Login:    f.newLimiter(ratelimit.Policy{Name: "login", Limit: rl.LoginLimit, Window: rl.LoginWindow}),
		Recovery: f.newLimiter(ratelimit.Policy{Name: "recovery", Limit: rl.RecoveryLimit, Window: rl.RecoveryWindow}),
	}
}

func (f *Factory) newLimiter(policy ratelimit.Policy) ratelimit.Limiter {
	if f.redisClient != nil {
		return ratelimit.NewRedisLimiter(policy, f.redisClient, f.clock)
	}
	return ratelimit.NewMemoryLimiter(policy, f.clock)
}

// ==============================
// Service Factory
// ==============================

func (f *Factory) ServiceFactory() *service.ServiceFactory {
	if f.serviceFactory == nil {
		f.serviceFactory = service.NewServiceFactory(
			f.config,
			f.account,
			f.hasher,
			f.tokens,
			f.notifier,
			f.clock,
			rand.Reader,
			f.logger,
		)
	}
	return f.serviceFactory
}

// Router wires the services into the HTTP handler and middleware stack.
func (f *Factory) Router() (http.Handler, error) {
	services := f.ServiceFactory()

	authService, err := services.AuthService()
	if err != nil {
		return nil, err
	}

	authHandler := handler.NewAuthHandler(
		authService,
		services.RecoveryService(),
		f.metrics,
		f.clock,
		f.config.Security.MinPasswordLength,
		f.logger.Named("http"),
	)

	return handler.NewRouter(authHandler, handler.RouterOptions{
		AllowedOrigins: f.config.Server.AllowedOrigins,
		Limits:         f.limits,
		Metrics:        f.metrics,
		HealthChecks:   f.healthChecks(),
	}, f.logger), nil
}

// ==============================
// Health Checks
// ==============================

func (f *Factory) healthChecks() map[string]handler.HealthCheck {
	checks := make(map[string]handler.HealthCheck)
	if f.redisClient != nil {
		checks["redis"] = f.redisClient.HealthCheck
	}
	if f.kafkaProducer != nil {
		checks["kafka"] = f.kafkaProducer.HealthCheck
	}
	return checks
}

func (f *Factory) Close() error {
	f.closeOnce.Do(func() {
		close(f.closed)
		f.logger.Info("Shutting down factory...")

		if f.kafkaProducer != nil {
			if err := f.kafkaProducer.Close(); err != nil {
				f.logger.Error("Failed to close Kafka producer", util.ErrorField(err))
			} else {
				f.logger.Info("Kafka producer closed")
			}
		}

		if f.redisClient != nil {
			if err := f.redisClient.Close(); err != nil {
				f.logger.Error("Failed to close Redis client", util.ErrorField(err))
			} else {
				f.logger.Info("Redis client closed")
			}
		}

		f.logger.Info("Factory shutdown completed")
		_ = f.logger.Sync()
	})

	return nil
}

func (f *Factory) WaitForClose() {
	<-f.closed
}

func (f *Factory) Config() *config.Config {
	return f.config
}

func (f *Factory) Metrics() *metrics.Metrics {
	return f.metrics
}
