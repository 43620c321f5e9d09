package services

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestAuthService_SignupAndLogin(t *testing.T) {
	ctx := context.Background()
	auth := NewAuthService(NewInMemoryUserRepository(), 0)

	user, err := auth.Signup(ctx, " Asha Rao ", "Asha@Example.com", "s3cret")
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if user.ID == "" || user.Name != "Asha Rao" || user.Email != "asha@example.com" {
		t.Errorf("user = %+v", user)
	}
	if user.PasswordHash == "" || user.PasswordHash == "s3cret" {
		t.Error("password must be stored hashed")
	}

	if _, err := auth.Signup(ctx, "Other", "asha@example.com", "x"); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("duplicate signup err = %v, want ErrEmailTaken", err)
	}

	got, err := auth.Login(ctx, "ASHA@example.com ", "s3cret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("login id = %s, want %s", got.ID, user.ID)
	}

	if _, err := auth.Login(ctx, "asha@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := auth.Login(ctx, "asha@example.com", "s3cret"); !errors.Is(err, ErrLoginThrottled) {
		t.Errorf("login during cooldown err = %v, want ErrLoginThrottled", err)
	}
}

func TestAuthService_LoginCreatesUnknownUser(t *testing.T) {
	ctx := context.Background()
	auth := NewAuthService(NewInMemoryUserRepository(), 0)

	user, err := auth.Login(ctx, "new.person@example.com", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if user.Name != "new.person" || user.ID == "" {
		t.Errorf("user = %+v", user)
	}
	again, err := auth.Login(ctx, "new.person@example.com", "pw")
	if err != nil || again.ID != user.ID {
		t.Errorf("second login = (%+v, %v), want same account", again, err)
	}
}

func TestAuthService_Validation(t *testing.T) {
	ctx := context.Background()
	auth := NewAuthService(NewInMemoryUserRepository(), 0)

	tests := []struct {
		name                  string
		fullName, email, pass string
		wantErr               error
	}{
		{"missing name", "", "a@b.co", "pw", ErrMissingFields},
		{"missing email", "A", " ", "pw", ErrMissingFields},
		{"missing password", "A", "a@b.co", "", ErrMissingFields},
	}
	for _, tt := range tests {
		if _, err := auth.Signup(ctx, tt.fullName, tt.email, tt.pass); !errors.Is(err, tt.wantErr) {
			t.Errorf("%s: err = %v, want %v", tt.name, err, tt.wantErr)
		}
	}
	if _, err := auth.Signup(ctx, "A", "not-an-email", "pw"); err == nil {
		t.Error("invalid email should be rejected")
	}
	if _, err := auth.Login(ctx, "not-an-email", "pw"); err == nil {
		t.Error("login with an invalid email should be rejected")
	}
	if _, err := auth.Login(ctx, "a@b.co", ""); !errors.Is(err, ErrMissingFields) {
		t.Errorf("login without password err = %v", err)
	}
}

func TestAuthService_LatencyHonoursContext(t *testing.T) {
	auth := NewAuthService(NewInMemoryUserRepository(), time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := auth.Login(ctx, "a@b.co", "pw"); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
