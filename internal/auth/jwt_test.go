package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestJWTService_GenerateToken(t *testing.T) {
	service := NewJWTService("test-secret-key", 24)

	token, err := service.GenerateToken(uuid.New(), "test@example.com", "session-1")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if token == "" {
		t.Fatal("Expected token to be generated")
	}
}

func TestJWTService_ValidateToken(t *testing.T) {
	service := NewJWTService("test-secret-key", 24)

	userID := uuid.New()
	token, err := service.GenerateToken(userID, "test@example.com", "session-1")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	claims, err := service.ValidateToken(token)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if claims.UserID != userID {
		t.Errorf("Expected userID %s, got %s", userID.String(), claims.UserID.String())
	}
	if claims.SessionID != "session-1" {
		t.Errorf("Expected session-1, got %s", claims.SessionID)
	}
	if claims.Email != "test@example.com" {
		t.Errorf("Expected email to round-trip, got %s", claims.Email)
	}
}

func TestJWTService_ValidateToken_Invalid(t *testing.T) {
	service := NewJWTService("test-secret-key", 24)

	if _, err := service.ValidateToken("invalid.token.here"); err == nil {
		t.Fatal("Expected error for invalid token")
	}
}

func TestJWTService_ValidateToken_WrongSecret(t *testing.T) {
	token, err := NewJWTService("secret-a", 24).GenerateToken(uuid.New(), "a@example.com", "s")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	if _, err := NewJWTService("secret-b", 24).ValidateToken(token); err == nil {
		t.Fatal("Expected error for token signed with another secret")
	}
}

func TestJWTService_ValidateToken_MissingSession(t *testing.T) {
	service := NewJWTService("test-secret-key", 24)

	token, err := service.GenerateToken(uuid.New(), "test@example.com", "")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	if _, err := service.ValidateToken(token); err == nil {
		t.Fatal("Expected error for token without session id")
	}
}

func TestJWTService_ValidateToken_Expired(t *testing.T) {
	service := NewJWTService("test-secret-key", -1)

	token, err := service.GenerateToken(uuid.New(), "test@example.com", "session-1")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	time.Sleep(time.Millisecond * 100)

	if _, err := service.ValidateToken(token); err == nil {
		t.Fatal("Expected error for expired token")
	}
}
