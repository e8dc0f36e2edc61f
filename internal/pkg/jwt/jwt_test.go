package jwt

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func TestAccessTokenRoundTrip(t *testing.T) {
	key := testKey(t)
	gen := NewGenerator(key, "leaven", "leaven-clients", "k1", time.Hour)
	ver := NewVerifier(&key.PublicKey, "leaven", "leaven-clients")

	token, jti, err := gen.GenerateAccessToken("user-42", []string{"admin"}, "browser")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if jti == "" {
		t.Fatal("expected a jti")
	}

	claims, err := ver.VerifyAccessToken(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID() != "user-42" || claims.ID != jti || !claims.IsAdmin() {
		t.Errorf("unexpected claims %+v", claims)
	}
}

func TestVerifyRejects(t *testing.T) {
	key := testKey(t)
	other := testKey(t)
	ver := NewVerifier(&key.PublicKey, "leaven", "leaven-clients")

	mint := func(priv *rsa.PrivateKey, issuer, audience, purpose string, ttl time.Duration) string {
		t.Helper()
		// ttl goes in as the generator default; a negative Generate ttl would be replaced by it
		tok, _, err := NewGenerator(priv, issuer, audience, "", ttl).Generate("u1", nil, "", purpose, 0)
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		return tok
	}

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"wrong key", mint(other, "leaven", "leaven-clients", PurposeAccess, time.Hour)},
		{"wrong issuer", mint(key, "someone-else", "leaven-clients", PurposeAccess, time.Hour)},
		{"wrong audience", mint(key, "leaven", "elsewhere", PurposeAccess, time.Hour)},
		{"wrong purpose", mint(key, "leaven", "leaven-clients", PurposeDevice, time.Hour)},
		{"expired", mint(key, "leaven", "leaven-clients", PurposeAccess, -time.Minute)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ver.VerifyAccessToken(tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestGenerateRequiresSubject(t *testing.T) {
	gen := NewGenerator(testKey(t), "leaven", "aud", "", time.Hour)
	if _, _, err := gen.GenerateAccessToken("", nil, ""); err == nil {
		t.Error("expected an error for an empty subject")
	}
}

func TestLoadAndBuild(t *testing.T) {
	key := testKey(t)
	dir := t.TempDir()

	privDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("marshal private: %v", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public: %v", err)
	}

	privPath := filepath.Join(dir, "private.pem")
	pubPath := filepath.Join(dir, "public.pem")
	if err := os.WriteFile(privPath, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER}), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(pubPath, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}), 0o600); err != nil {
		t.Fatal(err)
	}

	m, err := LoadAndBuild(Config{PrivPath: privPath, PubPath: pubPath, Issuer: "leaven", Audience: "aud", TTL: time.Minute})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	token, _, err := m.Generator.GenerateAccessToken("u1", nil, "")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := m.Verifier.VerifyAccessToken(token); err != nil {
		t.Errorf("verify: %v", err)
	}

	pkcs1 := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	if _, err := ParseRSAPrivateKey(pkcs1); err != nil {
		t.Errorf("pkcs1: %v", err)
	}
	if _, err := ParseRSAPublicKey([]byte("junk")); err == nil {
		t.Error("expected an error for junk input")
	}
}
