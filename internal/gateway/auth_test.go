package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/attunelabs/attune/internal/storage"
)

func newTestAuth(t *testing.T) (*Authenticator, *storage.MemoryRepository) {
	t.Helper()
	repo := storage.NewMemoryRepository()
	auth, err := NewAuthenticator(AuthConfig{JWTSecret: "test-secret"}, repo)
	if err != nil {
		t.Fatalf("NewAuthenticator: %v", err)
	}
	return auth, repo
}

func TestIssueAndVerifyToken(t *testing.T) {
	ctx := context.Background()
	auth, _ := newTestAuth(t)

	token, principal, err := auth.IssueToken(ctx, "mira")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if principal.Username != "mira" || principal.ID == 0 {
		t.Errorf("principal = %+v", principal)
	}

	got, err := auth.Verify(ctx, token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got.ID != principal.ID || got.Username != "mira" {
		t.Errorf("verified principal = %+v", got)
	}
}

func TestIssueTokenCreatesUserOnce(t *testing.T) {
	ctx := context.Background()
	auth, repo := newTestAuth(t)

	_, first, err := auth.IssueToken(ctx, "mira")
	if err != nil {
		t.Fatalf("first IssueToken: %v", err)
	}
	_, second, err := auth.IssueToken(ctx, "mira")
	if err != nil {
		t.Fatalf("second IssueToken: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("user recreated: %d vs %d", first.ID, second.ID)
	}
	user, err := repo.GetUserByUsername(ctx, "mira")
	if err != nil || user == nil {
		t.Fatalf("user not persisted: %v", err)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	ctx := context.Background()
	auth, repo := newTestAuth(t)

	token, _, err := auth.IssueToken(ctx, "mira")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	other, err := NewAuthenticator(AuthConfig{JWTSecret: "different"}, repo)
	if err != nil {
		t.Fatalf("NewAuthenticator: %v", err)
	}
	if _, err := other.Verify(ctx, token); err == nil {
		t.Error("token verified with the wrong secret")
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	ctx := context.Background()
	repo := storage.NewMemoryRepository()
	auth, err := NewAuthenticator(AuthConfig{JWTSecret: "test-secret", TokenTTL: -time.Minute}, repo)
	if err != nil {
		t.Fatalf("NewAuthenticator: %v", err)
	}

	token, _, err := auth.IssueToken(ctx, "mira")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if _, err := auth.Verify(ctx, token); err == nil {
		t.Error("expired token accepted")
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	auth, _ := newTestAuth(t)
	if _, err := auth.Verify(context.Background(), "not-a-token"); err == nil {
		t.Error("garbage token accepted")
	}
}

func TestAuthenticatorRequiresSecret(t *testing.T) {
	if _, err := NewAuthenticator(AuthConfig{}, storage.NewMemoryRepository()); err == nil {
		t.Error("empty secret accepted")
	}
}
