package httpapi

import (
	"strings"
	"testing"
	"time"

	"barcaixa/internal/domain"
)

func TestTokenRoundTrip(t *testing.T) {
	auth := NewAuthManager("0123456789abcdef0123456789abcdef", time.Hour)
	user := domain.UserAccount{Username: "admin", Role: domain.RoleAdmin}

	token, expiresAt, err := auth.Sign(user)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Fatalf("expiry must be in the future")
	}

	actor, err := auth.ParseToken(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if actor.Username != "admin" || actor.Role != domain.RoleAdmin {
		t.Fatalf("actor = %+v", actor)
	}
}

func TestTamperedTokenRejected(t *testing.T) {
	auth := NewAuthManager("0123456789abcdef0123456789abcdef", time.Hour)
	token, _, err := auth.Sign(domain.UserAccount{Username: "admin", Role: domain.RoleAdmin})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	tampered := token[:len(token)-2] + "xx"
	if _, err := auth.ParseToken(tampered); err == nil {
		t.Fatalf("tampered token must not parse")
	}
}

func TestTokenFromOtherSecretRejected(t *testing.T) {
	signer := NewAuthManager("0123456789abcdef0123456789abcdef", time.Hour)
	verifier := NewAuthManager("another-secret-another-secret-xx", time.Hour)

	token, _, err := signer.Sign(domain.UserAccount{Username: "admin", Role: domain.RoleAdmin})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := verifier.ParseToken(token); err == nil {
		t.Fatalf("token signed with a different secret must not parse")
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	auth := NewAuthManager("0123456789abcdef0123456789abcdef", time.Hour)
	auth.tokenTTL = -time.Minute

	token, _, err := auth.Sign(domain.UserAccount{Username: "admin", Role: domain.RoleAdmin})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := auth.ParseToken(token); err == nil || !strings.Contains(err.Error(), "invalid or expired") {
		t.Fatalf("expired token must not parse, got %v", err)
	}
}
