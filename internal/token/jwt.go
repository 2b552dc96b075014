package token

import (
	"time"

	"login-service/internal/clock"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/samber/oops"
)

// Claims binds a token to the authenticated identity and the time it was issued.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// Manager signs and verifies HS256 bearer tokens with a server-held key.
type Manager struct {
	secret []byte
	clock  clock.Clock
}

func NewManager(secret string, clk clock.Clock) (*Manager, error) {
	if secret == "" {
		return nil, oops.Code("TOKEN_INVALID_KEY").Errorf("signing key cannot be empty")
	}
	return &Manager{secret: []byte(secret), clock: clk}, nil
}

// Issue signs a token for identity valid for ttl from issuedAt. Expiry is
// checked by Verify, not here.
func (m *Manager) Issue(identity string, issuedAt time.Time, ttl time.Duration) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   identity,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
		Email: identity,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", oops.Code("TOKEN_SIGN_FAILED").Wrap(err)
	}
	return signed, nil
}

// Verify never returns an error: any failure yields (nil, false).
func (m *Manager) Verify(tokenString string) (*Claims, bool) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			return m.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil, false
	}
	if claims.Email == "" || claims.IssuedAt == nil {
		return nil, false
	}

	return claims, true
}
