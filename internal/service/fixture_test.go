package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"login-service/internal/account"
	"login-service/internal/clock"
	"login-service/internal/hashing"
	"login-service/internal/token"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	seedEmail    = "usuario@teste.com"
	seedPassword = "Senha123!"
)

var (
	testEpoch      = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	errStubFailure = errors.New("stub failure")

	seedFacts = account.RecoveryFacts{
		BirthDate:  time.Date(1990, 5, 15, 0, 0, 0, 0, time.UTC),
		FatherName: "João Silva",
		MotherName: "Maria Silva",
	}
)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Deliver(ctx context.Context, identity, secret string) error {
	args := m.Called(ctx, identity, secret)
	return args.Error(0)
}

// sequenceReader yields 0, 1, 2, ... 255, 0, ... forever.
type sequenceReader struct {
	next byte
}

func (r *sequenceReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = r.next
		r.next++
	}
	return len(p), nil
}

// stubHasher delegates to a real hasher unless told to fail.
type stubHasher struct {
	hashing.Hasher
	hashErr   error
	verifyErr error
}

func (h *stubHasher) Hash(secret string) (string, error) {
	if h.hashErr != nil {
		return "", h.hashErr
	}
	return h.Hasher.Hash(secret)
}

func (h *stubHasher) Verify(secret, digest string) (bool, error) {
	if h.verifyErr != nil {
		return false, h.verifyErr
	}
	return h.Hasher.Verify(secret, digest)
}

type failingTokens struct {
	*token.Manager
}

func (failingTokens) Issue(string, time.Time, time.Duration) (string, error) {
	return "", errStubFailure
}

type fixture struct {
	clock    *clock.Fake
	account  *account.Account
	hasher   hashing.Hasher
	tokens   *token.Manager
	notifier *mockNotifier
	auth     *AuthService
	recovery *RecoveryService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clk := clock.NewFake(testEpoch)

	hasher, err := hashing.NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, err)

	digest, err := hasher.Hash(seedPassword)
	require.NoError(t, err)

	acct := account.New(seedEmail, digest, seedFacts, 3)

	tokens, err := token.NewManager("test-secret", clk)
	require.NoError(t, err)

	auth, err := NewAuthService(acct, hasher, tokens, clk, AuthPolicy{
		LockoutDuration: 15 * time.Minute,
		TokenTTL:        time.Hour,
	}, zap.NewNop())
	require.NoError(t, err)

	notifier := &mockNotifier{}
	recovery := NewRecoveryService(acct, hasher, notifier, clk, &sequenceReader{}, 8, zap.NewNop())

	return &fixture{
		clock:    clk,
		account:  acct,
		hasher:   hasher,
		tokens:   tokens,
		notifier: notifier,
		auth:     auth,
		recovery: recovery,
	}
}

func (f *fixture) lockAccount(t *testing.T) {
	t.Helper()
	for i := 0; i < 3; i++ {
		f.auth.Login(context.Background(), seedEmail, "wrong-password")
	}
	require.Equal(t, 3, f.account.Snapshot().FailedAttempts)
}

func (f *fixture) secretVerifies(t *testing.T, secret string) bool {
	t.Helper()
	ok, err := f.hasher.Verify(secret, f.account.Snapshot().CredentialDigest)
	require.NoError(t, err)
	return ok
}
