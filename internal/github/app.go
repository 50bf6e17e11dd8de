// Package github authenticates odin as a GitHub App. It signs App JWTs,
// exchanges them for installation tokens, and hands those tokens to the gh
// transport through a token source that refreshes them before they expire.
package github

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// MaxJWTLifetime is the longest JWT GitHub accepts for App authentication.
const MaxJWTLifetime = 10 * time.Minute

// clockSkew backdates iat so a slightly fast local clock is still accepted.
const clockSkew = 60 * time.Second

// AppSigner signs JWTs that authenticate as a GitHub App.
type AppSigner struct {
	appID string
	key   *rsa.PrivateKey
	now   func() time.Time
}

// NewAppSigner parses privateKeyPEM (PKCS#1 or PKCS#8) for the given App.
func NewAppSigner(appID string, privateKeyPEM []byte) (*AppSigner, error) {
	appID = strings.TrimSpace(appID)
	if appID == "" {
		return nil, fmt.Errorf("app ID cannot be empty")
	}
	if _, err := strconv.ParseInt(appID, 10, 64); err != nil {
		return nil, fmt.Errorf("app ID %q is not numeric", appID)
	}

	key, err := ParsePrivateKey(privateKeyPEM)
	if err != nil {
		return nil, err
	}

	return &AppSigner{appID: appID, key: key, now: time.Now}, nil
}

// Sign returns a JWT valid for ttl, which must not exceed MaxJWTLifetime.
func (s *AppSigner) Sign(ttl time.Duration) (string, error) {
	if ttl <= 0 || ttl > MaxJWTLifetime {
		return "", fmt.Errorf("JWT lifetime %v must be between 0 and %v", ttl, MaxJWTLifetime)
	}

	now := s.now()
	claims := jwt.RegisteredClaims{
		Issuer:    s.appID,
		IssuedAt:  jwt.NewNumericDate(now.Add(-clockSkew)),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign app JWT: %w", err)
	}
	return signed, nil
}

// ParsePrivateKey decodes a PEM-encoded RSA private key.
func ParsePrivateKey(pemData []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, fmt.Errorf("private key is not PEM encoded")
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse PKCS#1 key: %w", err)
		}
		return key, nil
	case "PRIVATE KEY":
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse PKCS#8 key: %w", err)
		}
		key, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("private key is %T, want RSA", parsed)
		}
		return key, nil
	default:
		return nil, fmt.Errorf("unsupported PEM block %q", block.Type)
	}
}
