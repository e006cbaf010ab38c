package dto

import (
	"strings"
	"testing"
	"time"

	"github.com/yehezkieldio/virtualqueue/apps/api-service/internal/domain"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name        string
		password    string
		environment string
		wantIssues  []string
	}{
		{
			name:        "too short in any environment",
			password:    "Ab1!",
			environment: "development",
			wantIssues:  []string{"Password must be at least 8 characters long"},
		},
		{
			name:        "too long",
			password:    strings.Repeat("Ab1!", 19),
			environment: "production",
			wantIssues:  []string{"Password must not exceed 72 characters"},
		},
		{
			name:        "development accepts letters and digits",
			password:    "password1",
			environment: "development",
		},
		{
			name:        "development needs a digit",
			password:    "password",
			environment: "development",
			wantIssues:  []string{"Password must contain at least one number"},
		},
		{
			name:        "test needs mixed case",
			password:    "password1",
			environment: "test",
			wantIssues:  []string{"Password must contain at least one uppercase letter"},
		},
		{
			name:        "test skips special characters",
			password:    "Passw0rdx",
			environment: "test",
		},
		{
			name:        "production valid",
			password:    "Tr0ub4dor&X",
			environment: "production",
		},
		{
			name:        "production needs special character",
			password:    "Tr0ub4dorX",
			environment: "production",
			wantIssues:  []string{"Password must contain at least one special character"},
		},
		{
			name:        "production rejects common pattern",
			password:    "MyPassword1!",
			environment: "production",
			wantIssues:  []string{"Password contains a common pattern that is easily guessable"},
		},
		{
			name:        "production rejects digit sequence",
			password:    "Zx!34567q",
			environment: "production",
			wantIssues:  []string{"Password contains a sequential pattern"},
		},
		{
			name:        "production rejects letter sequence",
			password:    "1!Xbcdefg",
			environment: "production",
			wantIssues:  []string{"Password contains a sequential pattern"},
		},
		{
			name:        "production rejects repeats",
			password:    "Zx!9aaaQ",
			environment: "production",
			wantIssues:  []string{"Password contains repeating characters"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidatePassword(tt.password, tt.environment)
			want := strings.Join(tt.wantIssues, ", ")
			if got != want {
				t.Errorf("ValidatePassword(%q) = %q, want %q", tt.password, got, want)
			}
		})
	}
}

func TestPasswordIssues_JoinsAll(t *testing.T) {
	got := PasswordIssues("qwertyui", "production")
	if len(got) != 4 {
		t.Fatalf("expected 4 issues, got %d: %v", len(got), got)
	}
}

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		email string
		want  bool
	}{
		{"user@example.com", true},
		{"first.last+tag@sub.example.co", true},
		{"user@localhost", false},
		{"no-at-sign.com", false},
		{"user@exa mple.com", false},
	}

	for _, tt := range tests {
		got, _ := ValidateEmail(tt.email)
		if got != tt.want {
			t.Errorf("ValidateEmail(%q) = %v, want %v", tt.email, got, tt.want)
		}
	}
}

func TestListUsersQuery_ToFilter(t *testing.T) {
	f, err := (&ListUsersQuery{}).ToFilter()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Page != 1 || f.Limit != DefaultPageLimit || f.SortBy != domain.SortByCreatedAt || !f.SortDesc {
		t.Errorf("unexpected defaults: %+v", f)
	}

	f, err = (&ListUsersQuery{Page: 2, Limit: 50, Role: "admin", SortBy: "email", SortOrder: "ASC"}).ToFilter()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Role != domain.RoleAdmin || f.SortBy != domain.SortByEmail || f.SortDesc {
		t.Errorf("unexpected filter: %+v", f)
	}

	invalid := []ListUsersQuery{
		{Limit: 101},
		{Page: -1},
		{Role: "owner"},
		{SortBy: "password"},
		{SortOrder: "sideways"},
	}
	for _, q := range invalid {
		if _, err := q.ToFilter(); err == nil {
			t.Errorf("expected error for %+v", q)
		}
	}
}

func TestNewSessionResponses_FlagsCurrent(t *testing.T) {
	now := time.Now()
	sessions := []*domain.Session{
		{ID: "a", LastActiveAt: now},
		{ID: "b", LastActiveAt: now.Add(-time.Hour)},
	}

	out := NewSessionResponses(sessions, "b")
	if len(out) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(out))
	}
	if out[0].Current || !out[1].Current {
		t.Errorf("expected only b to be current: %+v", out)
	}
}
