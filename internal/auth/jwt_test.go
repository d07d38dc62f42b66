package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/optik-pos/api/internal/auth"
)

func sign(t *testing.T, secret string, method jwt.SigningMethod, claims auth.Claims) string {
	t.Helper()
	key := interface{}([]byte(secret))
	if method == jwt.SigningMethodNone {
		key = jwt.UnsafeAllowNoneSignatureType
	}
	tok, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

func validClaims() auth.Claims {
	now := time.Now()
	return auth.Claims{
		StaffID: "staff-1",
		ShopID:  uuid.New(),
		Role:    "MANAGER",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    auth.Issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
}

func TestGenerateAndValidateToken(t *testing.T) {
	secret := "test-secret"
	shopID := uuid.New()
	role := "CASHIER"

	token, err := auth.GenerateToken(secret, "staff-12", shopID, role, time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	claims, err := auth.ValidateToken(secret, token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}

	if claims.StaffID != "staff-12" || claims.Subject != "staff-12" {
		t.Errorf("staff ID: got %v (sub %v), want staff-12", claims.StaffID, claims.Subject)
	}
	if claims.ShopID != shopID {
		t.Errorf("shop ID: got %v, want %v", claims.ShopID, shopID)
	}
	if claims.Role != role {
		t.Errorf("role: got %v, want %v", claims.Role, role)
	}
	if claims.Issuer != auth.Issuer {
		t.Errorf("issuer: got %v, want %v", claims.Issuer, auth.Issuer)
	}
}

func TestGenerateTokenDefaultTTL(t *testing.T) {
	token, err := auth.GenerateToken("secret", "staff-1", uuid.New(), "CASHIER", 0)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	claims, err := auth.ValidateToken("secret", token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	ttl := claims.ExpiresAt.Sub(claims.IssuedAt.Time)
	if ttl != auth.DefaultTTL {
		t.Errorf("ttl: got %v, want %v", ttl, auth.DefaultTTL)
	}
}

func TestValidateTokenRejects(t *testing.T) {
	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))

	foreign := validClaims()
	foreign.Issuer = "someone-else"

	noStaff := validClaims()
	noStaff.StaffID = ""

	badRole := validClaims()
	badRole.Role = "JANITOR"

	noExpiry := validClaims()
	noExpiry.ExpiresAt = nil

	tests := []struct {
		name  string
		token string
	}{
		{"wrong secret", sign(t, "secret-b", jwt.SigningMethodHS256, validClaims())},
		{"expired", sign(t, "secret", jwt.SigningMethodHS256, expired)},
		{"foreign issuer", sign(t, "secret", jwt.SigningMethodHS256, foreign)},
		{"missing staff", sign(t, "secret", jwt.SigningMethodHS256, noStaff)},
		{"unknown role", sign(t, "secret", jwt.SigningMethodHS256, badRole)},
		{"no expiry", sign(t, "secret", jwt.SigningMethodHS256, noExpiry)},
		{"alg none", sign(t, "secret", jwt.SigningMethodNone, validClaims())},
		{"other hmac", sign(t, "secret", jwt.SigningMethodHS512, validClaims())},
		{"garbage", "not-a-jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := auth.ValidateToken("secret", tt.token); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestValidateTokenAcceptsSignedClaims(t *testing.T) {
	tok := sign(t, "secret", jwt.SigningMethodHS256, validClaims())
	if _, err := auth.ValidateToken("secret", tok); err != nil {
		t.Fatalf("validate token: %v", err)
	}
}
