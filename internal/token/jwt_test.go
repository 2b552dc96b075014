package token

import (
	"strings"
	"testing"
	"time"

	"login-service/internal/clock"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newManager(t *testing.T, secret string, clk clock.Clock) *Manager {
	t.Helper()
	m, err := NewManager(secret, clk)
	require.NoError(t, err)
	return m
}

func TestManager_IssueAndVerify(t *testing.T) {
	clk := clock.NewFake(epoch)
	m := newManager(t, "test-secret", clk)

	signed, err := m.Issue("usuario@teste.com", clk.Now(), time.Hour)
	require.NoError(t, err)

	claims, ok := m.Verify(signed)
	require.True(t, ok)
	assert.Equal(t, "usuario@teste.com", claims.Email)
	assert.Equal(t, epoch, claims.IssuedAt.Time.UTC())
	assert.Equal(t, epoch.Add(time.Hour), claims.ExpiresAt.Time.UTC())
	assert.NotEmpty(t, claims.ID)
}

func TestManager_TokenIDsAreUnique(t *testing.T) {
	clk := clock.NewFake(epoch)
	m := newManager(t, "test-secret", clk)

	a, err := m.Issue("usuario@teste.com", clk.Now(), time.Hour)
	require.NoError(t, err)
	b, err := m.Issue("usuario@teste.com", clk.Now(), time.Hour)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestManager_RejectsOtherSigningKey(t *testing.T) {
	clk := clock.NewFake(epoch)
	issuer := newManager(t, "other-secret", clk)
	verifier := newManager(t, "test-secret", clk)

	signed, err := issuer.Issue("usuario@teste.com", clk.Now(), time.Hour)
	require.NoError(t, err)

	claims, ok := verifier.Verify(signed)
	assert.False(t, ok)
	assert.Nil(t, claims)
}

func TestManager_Expiry(t *testing.T) {
	clk := clock.NewFake(epoch)
	m := newManager(t, "test-secret", clk)

	signed, err := m.Issue("usuario@teste.com", clk.Now(), time.Hour)
	require.NoError(t, err)

	t.Run("valid just before expiry", func(t *testing.T) {
		clk.Set(epoch.Add(time.Hour - time.Second))
		_, ok := m.Verify(signed)
		assert.True(t, ok)
	})

	t.Run("invalid at expiry", func(t *testing.T) {
		clk.Set(epoch.Add(time.Hour))
		_, ok := m.Verify(signed)
		assert.False(t, ok)
	})

	t.Run("invalid after expiry", func(t *testing.T) {
		clk.Set(epoch.Add(2 * time.Hour))
		_, ok := m.Verify(signed)
		assert.False(t, ok)
	})
}

func TestManager_RejectsMalformed(t *testing.T) {
	m := newManager(t, "test-secret", clock.NewFake(epoch))

	for _, input := range []string{"", "not-a-token", "a.b.c", "Bearer x.y.z"} {
		t.Run(input, func(t *testing.T) {
			_, ok := m.Verify(input)
			assert.False(t, ok)
		})
	}
}

func TestManager_RejectsTamperedPayload(t *testing.T) {
	clk := clock.NewFake(epoch)
	m := newManager(t, "test-secret", clk)

	signed, err := m.Issue("usuario@teste.com", clk.Now(), time.Hour)
	require.NoError(t, err)

	other, err := m.Issue("intruso@teste.com", clk.Now(), time.Hour)
	require.NoError(t, err)

	parts := strings.Split(signed, ".")
	otherParts := strings.Split(other, ".")
	forged := parts[0] + "." + otherParts[1] + "." + parts[2]

	_, ok := m.Verify(forged)
	assert.False(t, ok)
}

func TestManager_RejectsOtherAlgorithms(t *testing.T) {
	clk := clock.NewFake(epoch)
	m := newManager(t, "test-secret", clk)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(epoch),
			ExpiresAt: jwt.NewNumericDate(epoch.Add(time.Hour)),
		},
		Email: "usuario@teste.com",
	}

	t.Run("HS512 with the same key", func(t *testing.T) {
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("test-secret"))
		require.NoError(t, err)
		_, ok := m.Verify(signed)
		assert.False(t, ok)
	})

	t.Run("none", func(t *testing.T) {
		signed, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, ok := m.Verify(signed)
		assert.False(t, ok)
	})
}

func TestManager_RejectsMissingClaims(t *testing.T) {
	m := newManager(t, "test-secret", clock.NewFake(epoch))

	tests := []struct {
		name   string
		claims Claims
	}{
		{"no email", Claims{RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(epoch),
			ExpiresAt: jwt.NewNumericDate(epoch.Add(time.Hour)),
		}}},
		{"no expiry", Claims{
			RegisteredClaims: jwt.RegisteredClaims{IssuedAt: jwt.NewNumericDate(epoch)},
			Email:            "usuario@teste.com",
		}},
		{"no issued at", Claims{
			RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(epoch.Add(time.Hour))},
			Email:            "usuario@teste.com",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, tt.claims).SignedString([]byte("test-secret"))
			require.NoError(t, err)
			_, ok := m.Verify(signed)
			assert.False(t, ok)
		})
	}
}

func TestNewManager_EmptySecret(t *testing.T) {
	_, err := NewManager("", clock.Real())
	require.Error(t, err)
}
