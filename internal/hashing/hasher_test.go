package hashing

import (
	"strings"
	"testing"

	"login-service/internal/config"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testConfig(algorithm string) *config.Config {
	return &config.Config{
		Security: config.SecurityConfig{
			HashAlgorithm:     algorithm,
			BcryptCost:        bcrypt.MinCost,
			Argon2MemoryCost:  1024,
			Argon2TimeCost:    1,
			Argon2Parallelism: 1,
		},
	}
}

func TestCredentialHasher_RoundTrip(t *testing.T) {
	for _, algorithm := range []string{config.HashAlgorithmBcrypt, config.HashAlgorithmArgon2id} {
		t.Run(algorithm, func(t *testing.T) {
			h, err := NewHasher(testConfig(algorithm))
			require.NoError(t, err)

			digest, err := h.Hash("Senha123!")
			require.NoError(t, err)
			assert.NotContains(t, digest, "Senha123!")

			ok, err := h.Verify("Senha123!", digest)
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = h.Verify("senha123!", digest)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestCredentialHasher_SaltsEachDigest(t *testing.T) {
	h, err := NewHasher(testConfig(config.HashAlgorithmArgon2id))
	require.NoError(t, err)

	d1, err := h.Hash("same-secret")
	require.NoError(t, err)
	d2, err := h.Hash("same-secret")
	require.NoError(t, err)

	assert.NotEqual(t, d1, d2)
}

func TestCredentialHasher_VerifiesAcrossAlgorithms(t *testing.T) {
	bh, err := NewHasher(testConfig(config.HashAlgorithmBcrypt))
	require.NoError(t, err)
	ah, err := NewHasher(testConfig(config.HashAlgorithmArgon2id))
	require.NoError(t, err)

	bcryptDigest, err := bh.Hash("Senha123!")
	require.NoError(t, err)
	argonDigest, err := ah.Hash("Senha123!")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(bcryptDigest, "$2"))
	assert.True(t, strings.HasPrefix(argonDigest, "$argon2id$v=19$m=1024,t=1,p=1$"))

	ok, err := ah.Verify("Senha123!", bcryptDigest)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = bh.Verify("Senha123!", argonDigest)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCredentialHasher_EmptySecret(t *testing.T) {
	for _, algorithm := range []string{config.HashAlgorithmBcrypt, config.HashAlgorithmArgon2id} {
		t.Run(algorithm, func(t *testing.T) {
			h, err := NewHasher(testConfig(algorithm))
			require.NoError(t, err)

			_, err = h.Hash("")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrEmptySecret)
		})
	}
}

func TestCredentialHasher_InvalidDigest(t *testing.T) {
	h, err := NewHasher(testConfig(config.HashAlgorithmBcrypt))
	require.NoError(t, err)

	tests := []struct {
		name   string
		digest string
	}{
		{"empty", ""},
		{"plaintext", "Senha123!"},
		{"unknown scheme", "$1$abc$def"},
		{"truncated argon2", "$argon2id$v=19$m=1024"},
		{"bad argon2 version", "$argon2id$v=1$m=1024,t=1,p=1$c2FsdA$a2V5"},
		{"bad argon2 salt", "$argon2id$v=19$m=1024,t=1,p=1$!!!$a2V5"},
		{"zero argon2 threads", "$argon2id$v=19$m=1024,t=1,p=0$c2FsdA$a2V5"},
		{"truncated bcrypt", "$2a$10$short"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := h.Verify("Senha123!", tt.digest)
			require.Error(t, err)
			assert.False(t, ok)

			oopsErr, isOops := oops.AsOops(err)
			require.True(t, isOops)
			assert.Equal(t, "HASH_INVALID_DIGEST", oopsErr.Code())
		})
	}
}

func TestNewHasher_RejectsBadParams(t *testing.T) {
	t.Run("bcrypt cost", func(t *testing.T) {
		cfg := testConfig(config.HashAlgorithmBcrypt)
		cfg.Security.BcryptCost = 2
		_, err := NewHasher(cfg)
		require.Error(t, err)
	})

	t.Run("argon2 parallelism", func(t *testing.T) {
		cfg := testConfig(config.HashAlgorithmArgon2id)
		cfg.Security.Argon2Parallelism = 0
		_, err := NewHasher(cfg)
		require.Error(t, err)
	})

	t.Run("algorithm", func(t *testing.T) {
		_, err := NewHasher(testConfig("md5"))
		require.Error(t, err)
	})
}
