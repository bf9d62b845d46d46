package identity

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenIssuer mints and verifies HS256 access tokens. Claims are minimal:
// subject, expiry and a type marker so refresh material can never pass as an
// access token.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenIssuer creates an issuer. The secret must be non-empty.
func NewTokenIssuer(secret string, ttl time.Duration) (*TokenIssuer, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}, nil
}

// MintAccess signs an access token. The subject is the user's email.
func (ti *TokenIssuer) MintAccess(email string) (string, error) {
	now := time.Now().UTC()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  email,
		"exp":  now.Add(ti.ttl).Unix(),
		"iat":  now.Unix(),
		"type": "access",
	})
	return tok.SignedString(ti.secret)
}

// VerifyAccess validates signature, expiry and the type marker, returning the
// subject.
func (ti *TokenIssuer) VerifyAccess(tokenString string) (string, error) {
	tok, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return ti.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired())
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok || !tok.Valid {
		return "", fmt.Errorf("invalid claims")
	}
	if typ, _ := claims["type"].(string); typ != "access" {
		return "", fmt.Errorf("not an access token")
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", fmt.Errorf("missing subject")
	}
	return sub, nil
}

// NewRefreshToken returns 256 bits of randomness, URL-safe encoded. The value
// is opaque; validity lives in the database row.
func NewRefreshToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
