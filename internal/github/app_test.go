package github

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// testKey generates an RSA key and its PKCS#1 PEM encoding.
func testKey(t *testing.T) (*rsa.PrivateKey, []byte) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate RSA key: %v", err)
	}
	pemData := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	return key, pemData
}

func TestParsePrivateKey(t *testing.T) {
	key, pkcs1 := testKey(t)

	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatal(err)
	}
	pkcs8 := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	ecKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	ecDER, err := x509.MarshalPKCS8PrivateKey(ecKey)
	if err != nil {
		t.Fatal(err)
	}
	ecPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: ecDER})

	tests := []struct {
		name       string
		data       []byte
		errContain string
	}{
		{name: "pkcs1", data: pkcs1},
		{name: "pkcs8", data: pkcs8},
		{name: "not pem", data: []byte("not a key"), errContain: "not PEM encoded"},
		{name: "empty", data: nil, errContain: "not PEM encoded"},
		{name: "ecdsa", data: ecPEM, errContain: "want RSA"},
		{name: "certificate block", data: pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: []byte{1}}), errContain: "unsupported PEM block"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePrivateKey(tt.data)
			if tt.errContain != "" {
				if err == nil || !strings.Contains(err.Error(), tt.errContain) {
					t.Errorf("expected error containing %q, got %v", tt.errContain, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(key) {
				t.Error("parsed key does not match")
			}
		})
	}
}

func TestNewAppSigner_Validation(t *testing.T) {
	_, pemData := testKey(t)

	tests := []struct {
		name  string
		appID string
		key   []byte
	}{
		{"empty app ID", "", pemData},
		{"non-numeric app ID", "odin-app", pemData},
		{"bad key", "12345", []byte("nope")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewAppSigner(tt.appID, tt.key); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestAppSigner_Sign(t *testing.T) {
	key, pemData := testKey(t)
	signer, err := NewAppSigner(" 12345 ", pemData)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fixed := time.Now().Truncate(time.Second)
	signer.now = func() time.Time { return fixed }

	signed, err := signer.Sign(5 * time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(signed, claims, func(token *jwt.Token) (interface{}, error) {
		return &key.PublicKey, nil
	})
	if err != nil || !parsed.Valid {
		t.Fatalf("token did not verify: %v", err)
	}
	if parsed.Method.Alg() != "RS256" {
		t.Errorf("alg = %s, want RS256", parsed.Method.Alg())
	}
	if claims.Issuer != "12345" {
		t.Errorf("issuer = %q, want 12345", claims.Issuer)
	}
	if !claims.IssuedAt.Time.Equal(fixed.Add(-clockSkew)) {
		t.Errorf("iat = %v, want %v", claims.IssuedAt.Time, fixed.Add(-clockSkew))
	}
	if !claims.ExpiresAt.Time.Equal(fixed.Add(5 * time.Minute)) {
		t.Errorf("exp = %v", claims.ExpiresAt.Time)
	}
}

func TestAppSigner_SignRejectsBadLifetime(t *testing.T) {
	_, pemData := testKey(t)
	signer, err := NewAppSigner("12345", pemData)
	if err != nil {
		t.Fatal(err)
	}

	for _, ttl := range []time.Duration{0, -time.Minute, MaxJWTLifetime + time.Second} {
		if _, err := signer.Sign(ttl); err == nil {
			t.Errorf("Sign(%v) expected error", ttl)
		}
	}
	if _, err := signer.Sign(MaxJWTLifetime); err != nil {
		t.Errorf("Sign(max) unexpected error: %v", err)
	}
}
