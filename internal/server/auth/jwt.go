// Package auth signs and verifies session tokens and hashes passwords.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/clusterdeck/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// SessionUser identifies the session owner inside the token.
type SessionUser struct {
	ID int64 `json:"id"`
}

// Payload is the verified content of a session token.
type Payload struct {
	User    SessionUser `json:"user"`
	Expires time.Time   `json:"expires"`
}

// Expired reports whether the session ran out before now.
func (p *Payload) Expired(now time.Time) bool {
	return p.Expires.Before(now)
}

// Claims: стандартные утверждения плюс пользователь и срок сессии.
type Claims struct {
	jwt.RegisteredClaims
	User    SessionUser `json:"user"`
	Expires time.Time   `json:"expires"`
}

func GenerateToken(userID int64, secretKey []byte, issuedAt, expires time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		User:    SessionUser{ID: userID},
		Expires: expires,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseToken checks the HS256 signature and the payload shape. Expiry is
// not checked here; see Payload.Expired.
func ParseToken(tokenString string, secretKey []byte) (*Payload, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	if !token.Valid || claims.User.ID <= 0 || claims.Expires.IsZero() {
		return nil, common.ErrInvalidToken
	}

	return &Payload{User: claims.User, Expires: claims.Expires}, nil
}

// KeySource supplies the HMAC key used for session tokens.
type KeySource interface {
	Key(ctx context.Context) ([]byte, error)
}

// StaticKey is a fixed KeySource.
type StaticKey []byte

func (k StaticKey) Key(context.Context) ([]byte, error) { return k, nil }

// Issued is a freshly signed session.
type Issued struct {
	Token   string
	Expires time.Time
}

// Codec issues and verifies session tokens with a key from a KeySource.
type Codec struct {
	keys KeySource
	ttl  time.Duration
	now  func() time.Time
}

func NewCodec(keys KeySource, ttl time.Duration) *Codec {
	return &Codec{keys: keys, ttl: ttl, now: time.Now}
}

// Issue signs a session for userID that expires after the configured TTL.
func (c *Codec) Issue(ctx context.Context, userID int64) (*Issued, error) {
	key, err := c.keys.Key(ctx)
	if err != nil {
		return nil, err
	}

	now := c.now()
	expires := now.Add(c.ttl)
	token, err := GenerateToken(userID, key, now, expires)
	if err != nil {
		return nil, fmt.Errorf("error signing session: %w", err)
	}
	return &Issued{Token: token, Expires: expires}, nil
}

// Verify returns the token payload or an error wrapping
// common.ErrInvalidToken. Key lookup failures are returned as is.
func (c *Codec) Verify(ctx context.Context, token string) (*Payload, error) {
	key, err := c.keys.Key(ctx)
	if err != nil {
		return nil, err
	}
	return ParseToken(token, key)
}
