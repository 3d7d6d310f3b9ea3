package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("STORAGE_DRIVER", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if cfg.YouTube.PollInterval != 30*time.Second {
		t.Errorf("Expected 30s poll interval, got %v", cfg.YouTube.PollInterval)
	}
	if cfg.Quiz.PayoutMultiplier != 2 {
		t.Errorf("Expected payout multiplier 2, got %d", cfg.Quiz.PayoutMultiplier)
	}
	if cfg.Storage.Driver != "postgres" {
		t.Errorf("Expected postgres driver, got %s", cfg.Storage.Driver)
	}
}

func TestLoad_ProductionRequiresSecret(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("JWT_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("Expected error when JWT_SECRET is unset in production")
	}
}

func TestLoad_UnknownStorageDriver(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("STORAGE_DRIVER", "firestore")

	if _, err := Load(); err == nil {
		t.Fatal("Expected error for unknown storage driver")
	}
}

func TestGetDSN(t *testing.T) {
	cfg := &Config{Database: DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "n", SSLMode: "disable"}}
	want := "host=db port=5432 user=u password=p dbname=n sslmode=disable"
	if got := cfg.GetDSN(); got != want {
		t.Errorf("GetDSN() = %q, want %q", got, want)
	}
}

func TestLoad_AdminEmails(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("ADMIN_EMAILS", "a@example.com, b@example.com,,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(cfg.Auth.AdminEmails) != 2 || cfg.Auth.AdminEmails[1] != "b@example.com" {
		t.Errorf("Unexpected admin emails %v", cfg.Auth.AdminEmails)
	}
}
