// Package auth holds the server's credential primitives: signed access and
// refresh tokens and bcrypt password hashing.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/bookkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the identity carried by both token kinds.
type Claims struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// tokenClaims is the wire form: registered claims plus the user identity.
// RegisteredClaims.ID (jti) is random so that two tokens minted in the same
// second for the same user never collide.
type tokenClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"id"`
	Email  string `json:"email"`
}

// GenerateToken signs c with secretKey (HS256), valid for validity from issuedAt.
func GenerateToken(c Claims, secretKey []byte, issuedAt time.Time, validity time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(validity)),
		},
		UserID: c.ID,
		Email:  c.Email,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseToken verifies tokenString against secretKey at time now.
// Expired tokens yield common.ErrTokenExpired; anything else that fails
// (bad signature, wrong algorithm, garbage, missing subject) yields
// common.ErrInvalidToken.
func ParseToken(tokenString string, secretKey []byte, now time.Time) (Claims, error) {
	claims := &tokenClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, common.ErrTokenExpired
		}
		return Claims{}, common.ErrInvalidToken
	}

	if !token.Valid || claims.UserID == "" {
		return Claims{}, common.ErrInvalidToken
	}

	return Claims{ID: claims.UserID, Email: claims.Email}, nil
}

// Issuer mints and verifies the two token kinds. Access and refresh tokens
// are signed with different secrets, so one can never pass for the other.
type Issuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// IssuerOption customizes an Issuer.
type IssuerOption func(*Issuer)

// WithClock replaces time.Now, e.g. to simulate token expiry in tests.
func WithClock(now func() time.Time) IssuerOption {
	return func(i *Issuer) { i.now = now }
}

// NewIssuer constructs an Issuer from injected secrets and lifetimes.
func NewIssuer(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration, opts ...IssuerOption) *Issuer {
	i := &Issuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

func (i *Issuer) IssueAccessToken(c Claims) (string, error) {
	return GenerateToken(c, i.accessSecret, i.now(), i.accessTTL)
}

func (i *Issuer) IssueRefreshToken(c Claims) (string, error) {
	return GenerateToken(c, i.refreshSecret, i.now(), i.refreshTTL)
}

func (i *Issuer) VerifyAccessToken(token string) (Claims, error) {
	return ParseToken(token, i.accessSecret, i.now())
}

func (i *Issuer) VerifyRefreshToken(token string) (Claims, error) {
	return ParseToken(token, i.refreshSecret, i.now())
}

// RefreshTTL is how long a refresh token, and thus a session row, stays usable.
func (i *Issuer) RefreshTTL() time.Duration { return i.refreshTTL }

// Now is the issuer's clock.
func (i *Issuer) Now() time.Time { return i.now() }
