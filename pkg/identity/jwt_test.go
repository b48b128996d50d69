package identity

import (
	"strings"
	"testing"
	"time"
)

func TestJWT_IssueAndValidate(t *testing.T) {
	v := NewJWTValidator("test-secret", "picturescaler")

	token, err := v.IssueToken(7, "user@example.com", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken() failed: %v", err)
	}

	claims, err := v.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() failed: %v", err)
	}
	if claims.Subject != "7" {
		t.Fatalf("subject = %q, want 7", claims.Subject)
	}
	if claims.Email != "user@example.com" {
		t.Fatalf("email = %q, want user@example.com", claims.Email)
	}
}

func TestJWT_WrongSecret(t *testing.T) {
	issuer := NewJWTValidator("secret-a", "picturescaler")
	validator := NewJWTValidator("secret-b", "picturescaler")

	token, err := issuer.IssueToken(7, "user@example.com", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken() failed: %v", err)
	}

	if _, err := validator.ValidateToken(token); err == nil {
		t.Fatal("token signed with a different secret validated")
	}
}

func TestJWT_WrongIssuer(t *testing.T) {
	issuer := NewJWTValidator("test-secret", "someone-else")
	validator := NewJWTValidator("test-secret", "picturescaler")

	token, err := issuer.IssueToken(7, "user@example.com", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken() failed: %v", err)
	}

	_, err = validator.ValidateToken(token)
	if err == nil {
		t.Fatal("token with a foreign issuer validated")
	}
	if !strings.Contains(err.Error(), "issuer") {
		t.Fatalf("expected issuer error, got %v", err)
	}
}

func TestJWT_Expired(t *testing.T) {
	v := NewJWTValidator("test-secret", "picturescaler")

	token, err := v.IssueToken(7, "user@example.com", -time.Minute)
	if err != nil {
		t.Fatalf("IssueToken() failed: %v", err)
	}

	if _, err := v.ValidateToken(token); err == nil {
		t.Fatal("expired token validated")
	}
}

func TestJWT_Garbage(t *testing.T) {
	v := NewJWTValidator("test-secret", "picturescaler")

	if _, err := v.ValidateToken("not-a-token"); err == nil {
		t.Fatal("garbage token validated")
	}
}
