package service

import (
	"io"

	"login-service/internal/account"
	"login-service/internal/clock"
	"login-service/internal/config"
	"login-service/internal/hashing"

	"go.uber.org/zap"
)

// ServiceFactory creates and manages service instances
type ServiceFactory struct {
	cfg             *config.Config
	account         *account.Account
	hasher          hashing.Hasher
	tokens          TokenManager
	notifier        Notifier
	clock           clock.Clock
	random          io.Reader
	logger          *zap.Logger
	authService     *AuthService
	recoveryService *RecoveryService
}

// NewServiceFactory creates a new service factory
func NewServiceFactory(
	cfg *config.Config,
	acct *account.Account,
	hasher hashing.Hasher,
	tokens TokenManager,
	notifier Notifier,
	clk clock.Clock,
	random io.Reader,
	logger *zap.Logger,
) *ServiceFactory {
	return &ServiceFactory{
		cfg:      cfg,
		account:  acct,
		hasher:   hasher,
		tokens:   tokens,
		notifier: notifier,
		clock:    clk,
		random:   random,
		logger:   logger,
	}
}

// AuthService returns the authentication service instance (singleton)
func (f *ServiceFactory) AuthService() (*AuthService, error) {
	if f.authService == nil {
		svc, err := NewAuthService(
			f.account,
			f.hasher,
			f.tokens,
			f.clock,
			AuthPolicy{
				LockoutDuration: f.cfg.Security.LockoutDuration,
				TokenTTL:        f.cfg.Security.TokenTTL,
			},
			f.logger.Named("auth"),
		)
		if err != nil {
			return nil, err
		}
		f.authService = svc
	}
	return f.authService, nil
}

// RecoveryService returns the recovery service instance (singleton)
func (f *ServiceFactory) RecoveryService() *RecoveryService {
	if f.recoveryService == nil {
		f.recoveryService = NewRecoveryService(
			f.account,
			f.hasher,
			f.notifier,
			f.clock,
			f.random,
			f.cfg.Security.TempPasswordLength,
			f.logger.Named("recovery"),
		)
	}
	return f.recoveryService
}
