package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"hcadmin/internal/config"
)

const RefreshTokenBytes = 48

var ErrInvalidAccessToken = errors.New("invalid access token")

type AccessClaims struct {
	UserID    string `json:"uid"`
	SessionID string `json:"sid"`
	Role      string `json:"role"`
	BranchID  string `json:"branch,omitempty"`
	jwt.RegisteredClaims
}

// AccessSubject is what an access token asserts about its bearer.
type AccessSubject struct {
	UserID    string
	SessionID string
	Role      string
	BranchID  string
}

// AccessTokenKeys signs and verifies HS512 access tokens. Tokens are short
// lived; revocation is enforced through the session they name.
type AccessTokenKeys struct {
	Secret string
	Issuer string
	TTL    time.Duration
}

func AccessTokenKeysFrom(cfg config.SecurityConfig) AccessTokenKeys {
	return AccessTokenKeys{
		Secret: cfg.JWTAccessSecret,
		Issuer: cfg.JWTIssuer,
		TTL:    cfg.JWTAccessTTL,
	}
}

// Sign returns the token and its expiry.
func (k AccessTokenKeys) Sign(sub AccessSubject, issuedAt time.Time) (string, time.Time, error) {
	expiresAt := issuedAt.Add(k.TTL)
	claims := AccessClaims{
		UserID:    sub.UserID,
		SessionID: sub.SessionID,
		Role:      sub.Role,
		BranchID:  sub.BranchID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    k.Issuer,
			Subject:   sub.UserID,
			ID:        sub.SessionID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(k.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign jwt: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse verifies signature, algorithm, issuer and expiry as of now.
func (k AccessTokenKeys) Parse(tokenStr string, now time.Time) (*AccessClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	}
	if k.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(k.Issuer))
	}

	var claims AccessClaims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(*jwt.Token) (interface{}, error) {
		return []byte(k.Secret), nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAccessToken, err)
	}
	if !token.Valid || claims.SessionID == "" || claims.UserID == "" {
		return nil, ErrInvalidAccessToken
	}
	return &claims, nil
}

// GenerateOpaqueToken returns a random base64url token and its SHA-256
// hash. Only the hash is ever stored.
func GenerateOpaqueToken(length int) (string, []byte, error) {
	if length <= 0 {
		length = RefreshTokenBytes
	}
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", nil, fmt.Errorf("generate token: %w", err)
	}

	token := base64.RawURLEncoding.EncodeToString(buf)
	return token, HashOpaqueToken(token), nil
}

func HashOpaqueToken(token string) []byte {
	sum := sha256.Sum256([]byte(token))
	return sum[:]
}
