package utils

import (
	"strings"
	"testing"

	"hospital-booking-server/internal/config"
	"hospital-booking-server/internal/models"
)

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:            "test-secret",
		JWTExpirationMinutes: 60,
	}
}

func TestGenerateAndValidateToken(t *testing.T) {
	cfg := testConfig()
	user := &models.User{Role: models.RoleDoctor}
	user.ID = 42

	token, err := GenerateToken(user, cfg)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	claims, err := ValidateToken(token, cfg.JWTSecret)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if claims.UserID != 42 {
		t.Errorf("expected user id 42, got %d", claims.UserID)
	}
	if claims.Role != models.RoleDoctor {
		t.Errorf("expected role doctor, got %s", claims.Role)
	}
	if claims.Subject != "42" {
		t.Errorf("expected subject 42, got %q", claims.Subject)
	}
}

func TestValidateToken_WrongSecret(t *testing.T) {
	cfg := testConfig()
	user := &models.User{Role: models.RolePatient}
	user.ID = 1

	token, err := GenerateToken(user, cfg)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if _, err := ValidateToken(token, "other-secret"); err == nil {
		t.Error("expected validation to fail with wrong secret")
	}
}

func TestValidateToken_Expired(t *testing.T) {
	cfg := testConfig()
	cfg.JWTExpirationMinutes = -1
	user := &models.User{Role: models.RolePatient}
	user.ID = 1

	token, err := GenerateToken(user, cfg)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if _, err := ValidateToken(token, cfg.JWTSecret); err == nil {
		t.Error("expected validation to fail for expired token")
	}
}

func TestValidateToken_Garbage(t *testing.T) {
	if _, err := ValidateToken("not.a.token", "test-secret"); err == nil {
		t.Error("expected validation to fail for malformed token")
	}
	if _, err := ValidateToken("", "test-secret"); err == nil {
		t.Error("expected validation to fail for empty token")
	}
}

func TestFormatValidationError(t *testing.T) {
	type payload struct {
		Email string `validate:"required,email"`
	}

	err := Validate(payload{Email: "not-an-email"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := FormatValidationError(err)
	if !strings.Contains(msg, "Email") {
		t.Errorf("expected field name in message, got %q", msg)
	}
}
