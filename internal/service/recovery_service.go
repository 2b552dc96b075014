package service

import (
	"context"
	"crypto/subtle"
	"io"
	"strings"
	"time"

	"login-service/internal/account"
	"login-service/internal/clock"
	"login-service/internal/hashing"
	"login-service/internal/util"

	"github.com/samber/oops"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// TempSecretAlphabet is the character set of generated temporary secrets.
const TempSecretAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789!@#$%^&*"

// Notifier delivers a temporary secret to the account holder.
type Notifier interface {
	Deliver(ctx context.Context, identity, secret string) error
}

// RecoveryService rotates the credential after a four-factor identity check.
type RecoveryService struct {
	account      *account.Account
	hasher       hashing.Hasher
	notifier     Notifier
	clock        clock.Clock
	random       io.Reader
	secretLength int
	logger       *zap.Logger
}

func NewRecoveryService(
	acct *account.Account,
	hasher hashing.Hasher,
	notifier Notifier,
	clk clock.Clock,
	random io.Reader,
	secretLength int,
	logger *zap.Logger,
) *RecoveryService {
	return &RecoveryService{
		account:      acct,
		hasher:       hasher,
		notifier:     notifier,
		clock:        clk,
		random:       random,
		secretLength: secretLength,
		logger:       logger,
	}
}

// Recover checks the identity facts and, when they all match, replaces the
// credential with a fresh temporary secret and hands it to the notifier.
//
// The digest is committed before delivery. A delivery failure reports
// OutcomeNotificationFailed and leaves the new digest in place. An active
// lockout is not cleared.
func (s *RecoveryService) Recover(ctx context.Context, req RecoveryRequest) RecoveryResult {
	if !s.account.Matches(req.Identity) {
		s.logger.Info("Recovery rejected",
			util.Email("email", req.Identity),
			util.String("outcome", OutcomeNotFound.String()),
		)
		return RecoveryResult{Outcome: OutcomeNotFound}
	}

	birthDate, ok := s.parseBirthDate(req.BirthDate)
	if !ok || strings.TrimSpace(req.FatherName) == "" || strings.TrimSpace(req.MotherName) == "" {
		return RecoveryResult{Outcome: OutcomeInvalidInput}
	}

	facts := s.account.Snapshot().Facts
	dateMatch := birthDate.Equal(facts.BirthDate)
	fatherMatch := namesEqual(req.FatherName, facts.FatherName)
	motherMatch := namesEqual(req.MotherName, facts.MotherName)
	if !(dateMatch && fatherMatch && motherMatch) {
		s.logger.Info("Recovery rejected",
			util.Email("email", req.Identity),
			util.String("outcome", OutcomeIdentityMismatch.String()),
		)
		return RecoveryResult{Outcome: OutcomeIdentityMismatch}
	}

	secret, err := GenerateSecret(s.random, s.secretLength)
	if err != nil {
		return s.internal(req.Identity, oops.Code("RECOVERY_INTERNAL").Wrapf(err, "temporary secret generation failed"))
	}

	digest, err := s.hasher.Hash(secret)
	if err != nil {
		return s.internal(req.Identity, oops.Code("RECOVERY_INTERNAL").Wrapf(err, "temporary secret hashing failed"))
	}

	s.account.ReplaceCredentialDigest(digest)

	if err := s.notifier.Deliver(ctx, req.Identity, secret); err != nil {
		err = oops.Code("NOTIFY_FAILED").With("email", util.MaskEmail(req.Identity)).Wrap(err)
		s.logger.Error("Temporary password delivery failed, credential already rotated",
			util.Email("email", req.Identity),
			util.ErrorField(err),
		)
		return RecoveryResult{Outcome: OutcomeNotificationFailed, Err: err}
	}

	s.logger.Info("Credential recovered", util.Email("email", req.Identity))
	return RecoveryResult{Outcome: OutcomeSuccess}
}

func (s *RecoveryService) internal(identity string, err error) RecoveryResult {
	s.logger.Error("Recovery failed", util.Email("email", identity), util.ErrorField(err))
	return RecoveryResult{Outcome: OutcomeInternal, Err: err}
}

// parseBirthDate accepts a YYYY-MM-DD date strictly before today's date.
func (s *RecoveryService) parseBirthDate(value string) (time.Time, bool) {
	d, err := time.Parse(time.DateOnly, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, false
	}
	now := s.clock.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return d, d.Before(today)
}

// namesEqual compares after NFC normalization and full case folding.
func namesEqual(a, b string) bool {
	fold := cases.Fold()
	fa := fold.String(norm.NFC.String(strings.TrimSpace(a)))
	fb := fold.String(norm.NFC.String(strings.TrimSpace(b)))
	return subtle.ConstantTimeCompare([]byte(fa), []byte(fb)) == 1
}

// GenerateSecret draws length characters from TempSecretAlphabet. Bytes at or
// above the largest multiple of the alphabet size are discarded so every
// character is equally likely.
func GenerateSecret(random io.Reader, length int) (string, error) {
	if length <= 0 {
		return "", oops.Code("RECOVERY_INTERNAL").With("length", length).Errorf("secret length must be positive")
	}

	n := len(TempSecretAlphabet)
	limit := 256 - 256%n

	out := make([]byte, 0, length)
	buf := make([]byte, length*2)
	for len(out) < length {
		if _, err := io.ReadFull(random, buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, TempSecretAlphabet[int(b)%n])
			if len(out) == length {
				break
			}
		}
	}
	return string(out), nil
}
