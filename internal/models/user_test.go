package models

import (
	"testing"
)

func TestUserProfile_Validate(t *testing.T) {
	tests := []struct {
		name    string
		user    UserProfile
		wantErr bool
	}{
		{
			name:    "Valid profile",
			user:    UserProfile{Email: "test@example.com", Username: "viewer1"},
			wantErr: false,
		},
		{
			name:    "Empty email",
			user:    UserProfile{Email: "", Username: "viewer1"},
			wantErr: true,
		},
		{
			name:    "Invalid email",
			user:    UserProfile{Email: "invalid-email", Username: "viewer1"},
			wantErr: true,
		},
		{
			name:    "Empty username",
			user:    UserProfile{Email: "test@example.com", Username: ""},
			wantErr: true,
		},
		{
			name:    "Blank username",
			user:    UserProfile{Email: "test@example.com", Username: "   "},
			wantErr: true,
		},
		{
			name:    "Username too short",
			user:    UserProfile{Email: "test@example.com", Username: "ab"},
			wantErr: true,
		},
		{
			name:    "Username too long",
			user:    UserProfile{Email: "test@example.com", Username: "this_username_is_way_too_long_for_chat"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.user.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("UserProfile.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidatePassword(t *testing.T) {
	if err := ValidatePassword("12345"); err == nil {
		t.Error("Expected error for 5 character password")
	}
	if err := ValidatePassword("123456"); err != nil {
		t.Errorf("Expected 6 character password to pass, got %v", err)
	}
}
