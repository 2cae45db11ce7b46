/*
Package auth issues and checks credentials: bcrypt password hashes and
HS256 JWTs carrying the username and role.

TOKEN FORMAT:
  sub  = username
  role = admin | company | employee
  iss  = "workforce-billing"
  iat, exp

SEE ALSO:
  - service.go: Register / Login / SeedAdmin / Profile
  - api/middleware.go: Bearer token extraction and role checks
*/
package auth

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/warp/workforce-billing/billing"
)

const issuer = "workforce-billing"

// DefaultTokenTTL matches the login session length.
const DefaultTokenTTL = time.Hour

// Claims is the JWT payload.
type Claims struct {
	jwt.RegisteredClaims
	Role billing.Role `json:"role"`
}

// Issuer signs and verifies tokens with one shared secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration

	Now func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, Now: time.Now}
}

// Issue returns a signed token for acct.
func (i *Issuer) Issue(acct billing.Account) (string, error) {
	now := i.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   acct.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
		Role: acct.Role,
	})
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return signed, nil
}

// Parse verifies token and returns the caller it names.
func (i *Issuer) Parse(token string) (billing.Viewer, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(i.Now),
	)
	if err != nil {
		return billing.Viewer{}, errors.Mark(errors.Wrap(err, "invalid token"), billing.ErrUnauthenticated)
	}
	if claims.Subject == "" || !claims.Role.Valid() {
		return billing.Viewer{}, billing.Messagef(billing.ErrUnauthenticated, "invalid token claims")
	}
	return billing.Viewer{Username: claims.Subject, Role: claims.Role}, nil
}

// =============================================================================
// PASSWORDS
// =============================================================================

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Wrap(err, "hash password")
	}
	return string(hash), nil
}

func ComparePassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
