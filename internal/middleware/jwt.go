package middleware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenIssuer is the iss claim of tokens minted by the sandbox.
const TokenIssuer = "dbadmin-sandbox"

// JWTClaims holds the parsed claims from a validated JWT.
type JWTClaims struct {
	Subject   string
	Issuer    string
	ExpiresAt time.Time
}

// JWTValidator validates a JWT token and returns the parsed claims.
type JWTValidator interface {
	Validate(ctx context.Context, tokenString string) (*JWTClaims, error)
}

// HS256Validator validates and issues JWTs signed with a shared HS256 secret.
type HS256Validator struct {
	secret []byte
	now    func() time.Time
}

// NewHS256Validator creates a validator for local/dev HS256 tokens.
func NewHS256Validator(secret string) (*HS256Validator, error) {
	if secret == "" {
		return nil, errors.New("JWT secret is required")
	}
	return &HS256Validator{secret: []byte(secret), now: time.Now}, nil
}

// Issue signs a token for subject that expires after ttl.
func (v *HS256Validator) Issue(subject string, ttl time.Duration) (string, time.Time, error) {
	now := v.now()
	exp := now.Add(ttl)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    TokenIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	signed, err := tok.SignedString(v.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Validate verifies a JWT signed with HS256 and extracts claims.
func (v *HS256Validator) Validate(_ context.Context, tokenString string) (*JWTClaims, error) {
	var rc jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(tokenString, &rc, func(*jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("token verification failed: %w", err)
	}
	if rc.Subject == "" {
		return nil, errors.New("token verification failed: missing subject")
	}

	claims := &JWTClaims{Subject: rc.Subject, Issuer: rc.Issuer}
	if rc.ExpiresAt != nil {
		claims.ExpiresAt = rc.ExpiresAt.Time
	}
	return claims, nil
}
