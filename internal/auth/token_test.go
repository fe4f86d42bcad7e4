package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var secret = []byte("test-secret")

func TestIssueAndParse(t *testing.T) {
	now := time.Now()
	token, expiresAt, err := IssueToken(secret, "owner", time.Hour, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !expiresAt.Equal(now.Add(time.Hour)) {
		t.Errorf("expiresAt = %v, want %v", expiresAt, now.Add(time.Hour))
	}

	claims, err := ParseToken(secret, token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claims.Username != "owner" {
		t.Errorf("username = %q, want owner", claims.Username)
	}
}

func TestParseToken_Rejects(t *testing.T) {
	valid, _, _ := IssueToken(secret, "owner", time.Hour, time.Now())
	expired, _, _ := IssueToken(secret, "owner", time.Minute, time.Now().Add(-time.Hour))

	refresh := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		Username:         "owner",
		TokenType:        "refresh",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: issuer, ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	})
	refreshToken, _ := refresh.SignedString(secret)

	tests := []struct {
		name   string
		secret []byte
		token  string
	}{
		{"wrong secret", []byte("other"), valid},
		{"expired", secret, expired},
		{"garbage", secret, "not-a-jwt"},
		{"refresh token", secret, refreshToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseToken(tt.secret, tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}
