package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/clinicblog/internal/db"
	"github.com/clinicblog/internal/logging"
	"github.com/clinicblog/internal/media"
)

func newAuthFixture(t *testing.T) (*AuthService, *media.MemoryStorage, db.User) {
	t.Helper()
	gdb := setupServiceTestDB(t)
	if _, err := db.EnsureUser(gdb, "dra@clinica.example", "segredo123"); err != nil {
		t.Fatalf("ensure user: %v", err)
	}
	var user db.User
	if err := gdb.Where("email = ?", "dra@clinica.example").First(&user).Error; err != nil {
		t.Fatalf("load user: %v", err)
	}
	storage := media.NewMemoryStorage()
	svc := NewAuthService(gdb, media.NewGateway(storage, logging.Discard()), logging.Discard())
	return svc, storage, user
}

func TestAuthService_SignIn(t *testing.T) {
	svc, _, user := newAuthFixture(t)
	ctx := context.Background()

	got, err := svc.SignIn(ctx, " DRA@clinica.example ", "segredo123")
	if err != nil || got.ID != user.ID {
		t.Fatalf("expected sign in, got %v %v", got, err)
	}
	for _, tc := range [][2]string{{"dra@clinica.example", "errada"}, {"ninguem@clinica.example", "segredo123"}, {"", ""}} {
		if _, err := svc.SignIn(ctx, tc[0], tc[1]); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials for %v, got %v", tc, err)
		}
	}
}

func TestAuthService_PasswordResetFlow(t *testing.T) {
	svc, _, user := newAuthFixture(t)
	ctx := context.Background()

	if err := svc.SendPasswordReset(ctx, "desconhecido@clinica.example"); err != nil {
		t.Fatalf("unknown email must not error: %v", err)
	}
	if err := svc.SendPasswordReset(ctx, "dra@clinica.example"); err != nil {
		t.Fatalf("send reset: %v", err)
	}

	var reset db.PasswordReset
	if err := svc.db.Where("user_id = ?", user.ID).First(&reset).Error; err != nil {
		t.Fatalf("load reset: %v", err)
	}

	if err := svc.ResetPassword(ctx, reset.Token, "123"); err == nil {
		t.Fatalf("expected short password to be rejected")
	}
	if err := svc.ResetPassword(ctx, reset.Token, "novasenha"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := svc.SignIn(ctx, "dra@clinica.example", "novasenha"); err != nil {
		t.Fatalf("expected new password to work: %v", err)
	}
	if err := svc.ResetPassword(ctx, reset.Token, "outrasenha"); !errors.Is(err, ErrInvalidResetToken) {
		t.Fatalf("expected token to be single use, got %v", err)
	}
}

func TestAuthService_ExpiredResetToken(t *testing.T) {
	svc, _, _ := newAuthFixture(t)
	ctx := context.Background()
	if err := svc.SendPasswordReset(ctx, "dra@clinica.example"); err != nil {
		t.Fatalf("send reset: %v", err)
	}
	var reset db.PasswordReset
	svc.db.First(&reset)

	svc.now = func() time.Time { return time.Now().Add(2 * ResetTokenTTL) }
	if err := svc.ResetPassword(ctx, reset.Token, "novasenha"); !errors.Is(err, ErrInvalidResetToken) {
		t.Fatalf("expected expired token, got %v", err)
	}
}

func TestAuthService_UploadAvatarReplacesPrevious(t *testing.T) {
	svc, storage, user := newAuthFixture(t)
	ctx := context.Background()

	first, err := svc.UploadAvatar(ctx, user.ID, media.NewFile("eu.png", "image/png", pngBytes(t, 300, 200)))
	if err != nil {
		t.Fatalf("upload avatar: %v", err)
	}
	if !strings.HasPrefix(first.PhotoURL, "https://storage.test/users/"+user.ID+"/avatar_") || !strings.HasSuffix(first.PhotoURL, ".jpg") {
		t.Fatalf("unexpected avatar url %s", first.PhotoURL)
	}

	svc.now = func() time.Time { return time.Now().Add(time.Second) }
	second, err := svc.UploadAvatar(ctx, user.ID, media.NewFile("eu2.png", "image/png", pngBytes(t, 120, 120)))
	if err != nil {
		t.Fatalf("second upload: %v", err)
	}
	if deletes := storage.Deletes(); len(deletes) != 1 || deletes[0] != first.PhotoURL {
		t.Fatalf("expected previous avatar deleted, got %v", deletes)
	}
	if keys := storage.Keys(); len(keys) != 1 {
		t.Fatalf("expected a single stored avatar, got %v", keys)
	}
	if second.PhotoURL == first.PhotoURL {
		t.Fatalf("expected new avatar url")
	}
}

func TestAuthService_UpdateProfile(t *testing.T) {
	svc, _, user := newAuthFixture(t)
	ctx := context.Background()

	got, err := svc.UpdateProfile(ctx, user.ID, ProfileInput{DisplayName: "  Dra. Ana ", PhotoURL: "https://cdn.example.com/ana.jpg"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.DisplayName != "Dra. Ana" {
		t.Fatalf("unexpected display name %q", got.DisplayName)
	}
	if _, err := svc.UpdateProfile(ctx, user.ID, ProfileInput{PhotoURL: "javascript:alert(1)"}); err == nil {
		t.Fatalf("expected invalid photo url to be rejected")
	}
	if _, err := svc.UpdateProfile(ctx, "missing", ProfileInput{}); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
