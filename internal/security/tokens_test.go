package security

import (
	"errors"
	"testing"
	"time"
)

func TestTokenProvider_IssueAndVerifyAccess(t *testing.T) {
	p := NewTestTokenProvider()

	token, exp, err := p.IssueAccess("u1", "user")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if token == "" {
		t.Fatal("access token empty")
	}
	if exp.Before(time.Now()) {
		t.Fatal("expires at in the past")
	}

	claims, err := p.VerifyAccess(token)
	if err != nil {
		t.Fatalf("VerifyAccess: %v", err)
	}
	if claims.Subject != "u1" || claims.Role != "user" {
		t.Errorf("claims: got sub=%q role=%q", claims.Subject, claims.Role)
	}
}

func TestTokenProvider_VerifyAccessExpired(t *testing.T) {
	p := NewTestTokenProvider()
	issued := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := issued
	p.WithClock(func() time.Time { return clock })

	token, exp, err := p.IssueAccess("u1", "admin")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if !exp.Equal(issued.Add(15 * time.Minute)) {
		t.Errorf("exp = %v, want issued+15m", exp)
	}

	// Any instant strictly before exp verifies.
	clock = exp.Add(-time.Second)
	if _, err := p.VerifyAccess(token); err != nil {
		t.Fatalf("VerifyAccess just before expiry: %v", err)
	}

	// At or after exp the token is rejected as expired.
	clock = exp
	if _, err := p.VerifyAccess(token); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("VerifyAccess at expiry: want ErrTokenExpired, got %v", err)
	}
	clock = exp.Add(time.Hour)
	if _, err := p.VerifyAccess(token); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("VerifyAccess after expiry: want ErrTokenExpired, got %v", err)
	}
}

func TestTokenProvider_VerifyAccessSignatureInvalid(t *testing.T) {
	p := NewTestTokenProvider()
	token, _, err := p.IssueAccess("u1", "user")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	// Flip a character in the signature segment.
	tampered := token[:len(token)-2]
	if token[len(token)-1] == 'A' {
		tampered += "BB"
	} else {
		tampered += "AA"
	}
	if _, err := p.VerifyAccess(tampered); !errors.Is(err, ErrTokenSignatureInvalid) {
		t.Errorf("tampered token: want ErrTokenSignatureInvalid, got %v", err)
	}
}

func TestTokenProvider_VerifyAccessMalformed(t *testing.T) {
	p := NewTestTokenProvider()
	for _, bad := range []string{"", "garbage", "a.b", "a.b.c"} {
		if _, err := p.VerifyAccess(bad); !errors.Is(err, ErrTokenMalformed) {
			t.Errorf("VerifyAccess(%q): want ErrTokenMalformed, got %v", bad, err)
		}
	}
}

func TestTokenProvider_VerifyAccessWrongIssuer(t *testing.T) {
	signer, err := ParsePrivateKey(testPrivateKeyPEM)
	if err != nil {
		t.Fatalf("ParsePrivateKey: %v", err)
	}
	pub, err := ParsePublicKey(testPublicKeyPEM)
	if err != nil {
		t.Fatalf("ParsePublicKey: %v", err)
	}
	other := NewTokenProvider(signer, pub, "other-issuer", "test-audience", 15*time.Minute)
	token, _, err := other.IssueAccess("u1", "user")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	p := NewTestTokenProvider()
	if _, err := p.VerifyAccess(token); !errors.Is(err, ErrTokenMalformed) {
		t.Errorf("wrong issuer: want ErrTokenMalformed, got %v", err)
	}
}
