package hashing

import (
	"strings"

	"login-service/internal/config"

	"github.com/samber/oops"
)

var (
	ErrEmptySecret   = oops.Code("HASH_EMPTY_SECRET").Errorf("secret cannot be empty")
	ErrInvalidDigest = oops.Code("HASH_INVALID_DIGEST").Errorf("invalid digest format")
)

// Hasher is a one-way, salted credential hash.
type Hasher interface {
	// Hash returns an encoded digest of secret.
	Hash(secret string) (string, error)

	// Verify reports whether secret matches digest. A mismatch is (false, nil);
	// an unparseable digest is an error.
	Verify(secret, digest string) (bool, error)
}

// CredentialHasher writes digests with the configured algorithm and verifies
// any digest it recognises, so a bcrypt seed keeps working when argon2id is
// selected (and vice versa).
type CredentialHasher struct {
	algorithm string
	bcrypt    *BcryptHasher
	argon2    *Argon2Hasher
}

func NewHasher(cfg *config.Config) (*CredentialHasher, error) {
	bh, err := NewBcryptHasher(cfg.Security.BcryptCost)
	if err != nil {
		return nil, err
	}

	params := Argon2Params{
		Memory:      uint32(cfg.Security.Argon2MemoryCost),
		Iterations:  uint32(cfg.Security.Argon2TimeCost),
		Parallelism: uint8(cfg.Security.Argon2Parallelism),
		SaltLength:  16,
		KeyLength:   32,
	}
	ah, err := NewArgon2Hasher(params)
	if err != nil {
		return nil, err
	}

	switch cfg.Security.HashAlgorithm {
	case config.HashAlgorithmBcrypt, config.HashAlgorithmArgon2id:
	default:
		return nil, oops.Code("HASH_UNSUPPORTED_ALGORITHM").
			With("algorithm", cfg.Security.HashAlgorithm).
			Errorf("unsupported hash algorithm")
	}

	return &CredentialHasher{
		algorithm: cfg.Security.HashAlgorithm,
		bcrypt:    bh,
		argon2:    ah,
	}, nil
}

func (h *CredentialHasher) Algorithm() string {
	return h.algorithm
}

func (h *CredentialHasher) Hash(secret string) (string, error) {
	if h.algorithm == config.HashAlgorithmArgon2id {
		return h.argon2.Hash(secret)
	}
	return h.bcrypt.Hash(secret)
}

func (h *CredentialHasher) Verify(secret, digest string) (bool, error) {
	switch {
	case strings.HasPrefix(digest, argon2Prefix):
		return h.argon2.Verify(secret, digest)
	case isBcryptDigest(digest):
		return h.bcrypt.Verify(secret, digest)
	default:
		return false, ErrInvalidDigest
	}
}
