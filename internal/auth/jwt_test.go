package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("s3cr3t-password")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if err := CheckPassword(hash, "s3cr3t-password"); err != nil {
		t.Fatalf("CheckPassword failed for the right password: %v", err)
	}
	if err := CheckPassword(hash, "wrong"); err == nil {
		t.Fatal("CheckPassword succeeded for a wrong password")
	}
}

func TestGenerateAndVerify(t *testing.T) {
	m, err := NewJWTManager("test-secret", 5*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	token, exp, err := m.GenerateToken("user-1", "User.Case@Example.COM")
	if err != nil {
		t.Fatal(err)
	}
	if time.Until(exp) <= 0 {
		t.Errorf("expiry %v is not in the future", exp)
	}

	claims, err := m.VerifyToken(token)
	if err != nil {
		t.Fatal(err)
	}
	if claims.UserID != "user-1" || claims.Email != "user.case@example.com" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestVerifyRejects(t *testing.T) {
	m, _ := NewJWTManager("secret-a", time.Minute)
	other, _ := NewJWTManager("secret-b", time.Minute)
	expired, _ := NewJWTManager("secret-a", -time.Minute)

	foreign, _, _ := other.GenerateToken("u", "u@x")
	stale, _, _ := expired.GenerateToken("u", "u@x")

	for name, tok := range map[string]string{
		"garbage":      "not-a-token",
		"wrong secret": foreign,
		"expired":      stale,
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := m.VerifyToken(tok); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("err = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestEmptySecret(t *testing.T) {
	if _, err := NewJWTManager("", time.Minute); err == nil {
		t.Error("expected error for empty secret")
	}
}

func TestClaimsContext(t *testing.T) {
	ctx := context.Background()
	if _, ok := ClaimsFromContext(ctx); ok {
		t.Error("empty context should have no claims")
	}
	ctx = WithClaims(ctx, &Claims{UserID: "u"})
	c, ok := ClaimsFromContext(ctx)
	if !ok || c.UserID != "u" {
		t.Errorf("claims = %+v, %v", c, ok)
	}
}
