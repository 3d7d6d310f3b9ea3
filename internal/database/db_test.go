package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
)

func TestIsUniqueViolation(t *testing.T) {
	unique := &pq.Error{Code: "23505", Constraint: "users_username_key"}

	tests := []struct {
		name       string
		err        error
		constraint string
		want       bool
	}{
		{"any constraint", unique, "", true},
		{"matching constraint", unique, "users_username_key", true},
		{"other constraint", unique, "users_email_key", false},
		{"wrapped", fmt.Errorf("insert: %w", unique), "", true},
		{"foreign key", &pq.Error{Code: "23503"}, "", false},
		{"plain error", errors.New("boom"), "", false},
		{"nil", nil, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUniqueViolation(tt.err, tt.constraint); got != tt.want {
				t.Errorf("IsUniqueViolation() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMigrations_VersionsUnique(t *testing.T) {
	seen := map[int]bool{}
	for _, m := range Migrations {
		if seen[m.Version] {
			t.Fatalf("duplicate migration version %d", m.Version)
		}
		seen[m.Version] = true
		if m.Up == "" || m.Down == "" {
			t.Errorf("migration %d must have up and down scripts", m.Version)
		}
	}
}
