package services

import (
	"context"
	"errors"
	"testing"

	"github.com/huangang/taskforge/internal/authz"
	"github.com/huangang/taskforge/internal/config"
	"github.com/huangang/taskforge/internal/models"
	"github.com/huangang/taskforge/internal/utils"
)

func newAuthService(t *testing.T) *AuthService {
	t.Helper()
	db, err := models.Open(&config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:", LogLevel: "silent"})
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := models.Migrate(db); err != nil {
		t.Skipf("migrate: %v", err)
	}

	utils.SetJWTSecret("auth-test-secret")
	return NewAuthService(db, &config.JWTConfig{ExpireHour: 1, RefreshExpireHour: 24}, &config.LDAPConfig{})
}

func TestAuthService_Register(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, &RegisterRequest{Username: " alice ", Password: "s3cret-pass"})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if user.Username != "alice" || user.Password == "s3cret-pass" || user.AuthType != "local" {
		t.Errorf("user = %+v", user)
	}

	if _, err := svc.Register(ctx, &RegisterRequest{Username: "alice", Password: "another-pass"}); !errors.Is(err, ErrUsernameTaken) {
		t.Errorf("duplicate Register() error = %v, expected ErrUsernameTaken", err)
	}
	_, err = svc.Register(ctx, &RegisterRequest{Username: "bob", Password: "abc"})
	assertKind(t, err, authz.ErrBadRequest)
	_, err = svc.Register(ctx, &RegisterRequest{Username: "  ", Password: "abcdef"})
	assertKind(t, err, authz.ErrBadRequest)
}

func TestAuthService_Login(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, &RegisterRequest{Username: "alice", Password: "s3cret-pass"}); err != nil {
		t.Fatal(err)
	}

	res, err := svc.Login(ctx, &LoginRequest{Username: "alice", Password: "s3cret-pass"}, "127.0.0.1", "go-test")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	claims, err := utils.ParseToken(res.AccessToken)
	if err != nil || claims.Username != "alice" {
		t.Errorf("access token claims = %+v, %v", claims, err)
	}
	if res.RefreshToken == "" || res.User == nil || res.User.LastLogin == nil {
		t.Errorf("result = %+v", res)
	}

	tests := []struct {
		name    string
		req     LoginRequest
		wantErr error
	}{
		{"wrong password", LoginRequest{Username: "alice", Password: "nope-nope"}, authz.ErrUnauthorized},
		{"unknown user", LoginRequest{Username: "zed", Password: "s3cret-pass"}, authz.ErrUnauthorized},
		{"ldap disabled", LoginRequest{Username: "alice", Password: "s3cret-pass", AuthType: "ldap"}, authz.ErrBadRequest},
		{"unknown auth type", LoginRequest{Username: "alice", Password: "s3cret-pass", AuthType: "oauth"}, authz.ErrBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Login(ctx, &tt.req, "", "")
			assertKind(t, err, tt.wantErr)
		})
	}
}

func TestAuthService_RefreshRotates(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, &RegisterRequest{Username: "alice", Password: "s3cret-pass"}); err != nil {
		t.Fatal(err)
	}
	login, err := svc.Login(ctx, &LoginRequest{Username: "alice", Password: "s3cret-pass"}, "", "")
	if err != nil {
		t.Fatal(err)
	}

	next, err := svc.Refresh(ctx, login.RefreshToken, "", "")
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if next.RefreshToken == login.RefreshToken {
		t.Error("refresh token was not rotated")
	}

	_, err = svc.Refresh(ctx, login.RefreshToken, "", "")
	assertKind(t, err, authz.ErrUnauthorized)
	_, err = svc.Refresh(ctx, "not-a-token", "", "")
	assertKind(t, err, authz.ErrUnauthorized)

	if err := svc.RevokeRefreshToken(ctx, next.RefreshToken); err != nil {
		t.Fatalf("RevokeRefreshToken() error = %v", err)
	}
	_, err = svc.Refresh(ctx, next.RefreshToken, "", "")
	assertKind(t, err, authz.ErrUnauthorized)
}

func TestAuthService_GetUserByUsername(t *testing.T) {
	svc := newAuthService(t)
	_, err := svc.GetUserByUsername(context.Background(), "ghost")
	assertKind(t, err, authz.ErrNotFound)
}

func TestRefreshTokenHash(t *testing.T) {
	token, hash, err := generateRefreshToken()
	if err != nil {
		t.Fatal(err)
	}
	if len(token) != 64 || len(hash) != 64 || hash == token {
		t.Errorf("token=%q hash=%q", token, hash)
	}
	if hashRefreshToken(token) != hash {
		t.Error("hash is not deterministic")
	}
}
