// Package token signs and verifies the JWTs this service issues. Every
// token carries a kind claim so an access token can never stand in for a
// refresh, verification, or reset token.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
	KindVerify  Kind = "verify"
	KindReset   Kind = "reset"
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("invalid token")
	ErrWrongKind    = errors.New("unexpected token kind")
)

// Claims are the registered JWT claims plus the token kind. Subject holds
// the user ID, ID the per-token JTI used for session tracking.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Kind  Kind   `json:"kind"`
}

// UserID parses the subject claim.
func (c *Claims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// Codec issues and verifies HS256-signed tokens with a single process-wide
// secret.
type Codec struct {
	secret []byte
}

func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret)}
}

// Issue mints a token of the given kind for the user, valid for ttl. The
// returned claims include the generated JTI.
func (c *Codec) Issue(userID uuid.UUID, email string, kind Kind, ttl time.Duration) (string, *Claims, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email: email,
		Kind:  kind,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, claims, nil
}

// Verify checks signature, expiry, and kind. Expired tokens yield
// ErrTokenExpired, everything else malformed yields ErrTokenInvalid, and a
// well-formed token of another kind yields ErrWrongKind.
func (c *Codec) Verify(tokenString string, want Kind) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Kind != want {
		return nil, ErrWrongKind
	}
	return claims, nil
}
