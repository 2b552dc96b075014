package service

import (
	"context"
	"time"

	"login-service/internal/account"
	"login-service/internal/clock"
	"login-service/internal/hashing"
	"login-service/internal/token"
	"login-service/internal/util"

	"github.com/google/uuid"
	"github.com/samber/oops"
	"go.uber.org/zap"
)

// TokenManager issues and verifies bearer tokens.
type TokenManager interface {
	Issue(identity string, issuedAt time.Time, ttl time.Duration) (string, error)
	Verify(tokenString string) (*token.Claims, bool)
}

// AuthPolicy holds the lockout and token lifetime settings.
type AuthPolicy struct {
	LockoutDuration time.Duration
	TokenTTL        time.Duration
}

// AuthService owns the login lockout state machine:
// OPEN -> (failures reach threshold) -> LOCKED -> (next attempt at or after lockedUntil) -> OPEN.
type AuthService struct {
	account     *account.Account
	hasher      hashing.Hasher
	tokens      TokenManager
	clock       clock.Clock
	policy      AuthPolicy
	dummyDigest string
	logger      *zap.Logger
}

func NewAuthService(
	acct *account.Account,
	hasher hashing.Hasher,
	tokens TokenManager,
	clk clock.Clock,
	policy AuthPolicy,
	logger *zap.Logger,
) (*AuthService, error) {
	// Unknown identities are verified against this digest so both rejection
	// paths cost one hash verification.
	dummy, err := hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, oops.Code("LOGIN_INTERNAL").Wrapf(err, "failed to prepare dummy digest")
	}

	return &AuthService{
		account:     acct,
		hasher:      hasher,
		tokens:      tokens,
		clock:       clk,
		policy:      policy,
		dummyDigest: dummy,
		logger:      logger,
	}, nil
}

// Login verifies secret for identity and applies the lockout policy. The lock
// check, verification and counter update run under the account lock.
func (s *AuthService) Login(ctx context.Context, identity, secret string) LoginResult {
	if !s.account.Matches(identity) {
		_, _ = s.hasher.Verify(secret, s.dummyDigest)
		s.logger.Info("Login rejected",
			util.Email("email", identity),
			util.String("outcome", OutcomeCredentialsInvalid.String()),
		)
		return LoginResult{Outcome: OutcomeCredentialsInvalid}
	}

	var result LoginResult
	s.account.Update(func(r *account.Record) {
		now := s.clock.Now()

		if r.IsLocked(now) {
			result = LoginResult{Outcome: OutcomeAccountLocked, LockedUntil: r.LockedUntil()}
			return
		}

		ok, err := s.hasher.Verify(secret, r.CredentialDigest())
		if err != nil {
			result = LoginResult{
				Outcome: OutcomeInternal,
				Err:     oops.Code("LOGIN_INTERNAL").Wrapf(err, "credential verification failed"),
			}
			return
		}

		if !ok {
			if r.LockExpired(now) {
				r.ClearLock()
			}
			attempts := r.RecordFailedAttempt(now)
			if attempts >= r.MaxAttempts() {
				r.ApplyLock(now.Add(s.policy.LockoutDuration))
				result = LoginResult{Outcome: OutcomeAccountLocked, LockedUntil: r.LockedUntil()}
				return
			}
			result = LoginResult{
				Outcome:           OutcomeCredentialsInvalid,
				AttemptsRemaining: r.MaxAttempts() - attempts,
			}
			return
		}

		signed, err := s.tokens.Issue(identity, now, s.policy.TokenTTL)
		if err != nil {
			result = LoginResult{
				Outcome: OutcomeInternal,
				Err:     oops.Code("LOGIN_INTERNAL").Wrapf(err, "token issuance failed"),
			}
			return
		}

		r.RecordSuccess(now)
		result = LoginResult{Outcome: OutcomeSuccess, Token: signed, LastLogin: now}
	})

	s.logLogin(identity, result)
	return result
}

func (s *AuthService) logLogin(identity string, result LoginResult) {
	fields := []zap.Field{
		util.Email("email", identity),
		util.String("outcome", result.Outcome.String()),
	}

	switch result.Outcome {
	case OutcomeSuccess:
		s.logger.Info("Login succeeded", fields...)
	case OutcomeAccountLocked:
		if result.LockedUntil != nil {
			fields = append(fields, util.Time("locked_until", *result.LockedUntil))
		}
		s.logger.Warn("Login rejected, account locked", fields...)
	case OutcomeInternal:
		s.logger.Error("Login failed", append(fields, util.ErrorField(result.Err))...)
	default:
		s.logger.Info("Login rejected",
			append(fields, util.Int("attempts_remaining", result.AttemptsRemaining))...)
	}
}

// Status reports the lockout state as Login would see it at the current
// instant. An expired lock reads as unlocked with no attempts; the stored
// record is left for the next Login to clear.
func (s *AuthService) Status(ctx context.Context, identity string) StatusResult {
	if !s.account.Matches(identity) {
		return StatusResult{Outcome: OutcomeNotFound}
	}

	var status AccountStatus
	s.account.Update(func(r *account.Record) {
		now := s.clock.Now()
		status = AccountStatus{
			Identity:      identity,
			Attempts:      r.FailedAttempts(),
			MaxAttempts:   r.MaxAttempts(),
			Locked:        r.IsLocked(now),
			LockedUntil:   r.LockedUntil(),
			LastAttemptAt: r.LastAttemptAt(),
		}
		if r.LockExpired(now) {
			status.Attempts = 0
			status.LockedUntil = nil
		}
	})

	return StatusResult{Outcome: OutcomeSuccess, Status: status}
}

// ResetAttempts clears the counter, the lock and the last attempt time.
func (s *AuthService) ResetAttempts(ctx context.Context, identity string) Outcome {
	if !s.account.Matches(identity) {
		return OutcomeNotFound
	}

	s.account.ResetAttempts()
	s.logger.Info("Login attempts reset", util.Email("email", identity))
	return OutcomeSuccess
}

// VerifyToken is fail-closed.
func (s *AuthService) VerifyToken(tokenString string) (*token.Claims, bool) {
	return s.tokens.Verify(tokenString)
}
