package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/clinicblog/internal/db"
	"github.com/clinicblog/internal/media"
)

// ResetTokenTTL is how long a password reset token stays valid.
const ResetTokenTTL = time.Hour

// MinPasswordLength applies to passwords set through a reset.
const MinPasswordLength = 6

// AuthService 管理后台账号：登录、密码重置与个人资料
type AuthService struct {
	db     *gorm.DB
	media  *media.Gateway
	logger *slog.Logger
	now    func() time.Time
}

// ProfileInput is the editable part of a user profile.
type ProfileInput struct {
	DisplayName string
	PhotoURL    string
}

func NewAuthService(gdb *gorm.DB, gateway *media.Gateway, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{db: gdb, media: gateway, logger: logger.With("component", "auth"), now: time.Now}
}

// SignIn checks the credentials. Every failure is reported as
// ErrInvalidCredentials.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (db.User, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" || password == "" {
		return db.User{}, ErrInvalidCredentials
	}

	var user db.User
	if err := s.db.WithContext(ctx).Where("email = ?", normalized).First(&user).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Error("sign in lookup failed", "error", err)
		}
		return db.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return db.User{}, ErrInvalidCredentials
	}
	return user, nil
}

func (s *AuthService) User(ctx context.Context, id string) (db.User, error) {
	var user db.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return db.User{}, ErrUserNotFound
		}
		return db.User{}, &PersistenceError{Op: "load user", Err: err}
	}
	return user, nil
}

// SendPasswordReset issues a one-time token for a known email. The token is
// logged since mail delivery lives outside this service. Unknown emails are
// not reported to the caller.
func (s *AuthService) SendPasswordReset(ctx context.Context, email string) error {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" {
		return invalid("email", "Informe o email.")
	}

	var user db.User
	if err := s.db.WithContext(ctx).Where("email = ?", normalized).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return &PersistenceError{Op: "load user", Err: err}
	}

	reset := db.PasswordReset{
		UserID:    user.ID,
		Token:     db.NewID(),
		ExpiresAt: s.now().Add(ResetTokenTTL),
	}
	if err := s.db.WithContext(ctx).Create(&reset).Error; err != nil {
		return &PersistenceError{Op: "create reset token", Err: err}
	}
	s.logger.Info("password reset requested", "user", user.ID, "token", reset.Token, "expires_at", reset.ExpiresAt)
	return nil
}

// ResetPassword consumes token and stores the new password hash.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	token = strings.TrimSpace(token)
	if len(strings.TrimSpace(newPassword)) < MinPasswordLength {
		return invalid("password", fmt.Sprintf("A senha precisa ter ao menos %d caracteres.", MinPasswordLength))
	}
	if token == "" {
		return ErrInvalidResetToken
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var reset db.PasswordReset
		if err := tx.Where("token = ?", token).First(&reset).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidResetToken
			}
			return &PersistenceError{Op: "load reset token", Err: err}
		}
		now := s.now()
		if reset.UsedAt != nil || now.After(reset.ExpiresAt) {
			return ErrInvalidResetToken
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		if err := tx.Model(&db.User{}).Where("id = ?", reset.UserID).Update("password_hash", string(hashed)).Error; err != nil {
			return &PersistenceError{Op: "update password", Err: err}
		}
		if err := tx.Model(&reset).Update("used_at", now).Error; err != nil {
			return &PersistenceError{Op: "consume reset token", Err: err}
		}
		return nil
	})
}

// UpdateProfile saves the display name and photo URL.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (db.User, error) {
	user, err := s.User(ctx, userID)
	if err != nil {
		return db.User{}, err
	}
	photo := strings.TrimSpace(in.PhotoURL)
	if photo != "" && !isHTTPURL(photo) {
		return db.User{}, invalid("photoURL", "A foto precisa ser uma URL http(s) válida.")
	}

	user.DisplayName = strings.TrimSpace(in.DisplayName)
	user.PhotoURL = photo
	if err := s.db.WithContext(ctx).Save(&user).Error; err != nil {
		return db.User{}, &PersistenceError{Op: "update profile", Err: err}
	}
	return user, nil
}

// UploadAvatar stores a 150x150 avatar and points the profile at it. The
// previous stored avatar is deleted on a best-effort basis.
func (s *AuthService) UploadAvatar(ctx context.Context, userID string, file media.File) (db.User, error) {
	user, err := s.User(ctx, userID)
	if err != nil {
		return db.User{}, err
	}

	dest := fmt.Sprintf("users/%s/avatar_%d.jpg", user.ID, s.now().UnixMilli())
	url, err := s.media.UploadOptimizedImage(ctx, file, dest, AvatarImageOptions)
	if err != nil {
		return db.User{}, mediaFailure("photo", err)
	}

	previous := user.PhotoURL
	user.PhotoURL = url
	if err := s.db.WithContext(ctx).Save(&user).Error; err != nil {
		return db.User{}, &PersistenceError{Op: "update avatar", Err: err}
	}
	if previous != "" && previous != url {
		s.media.DeleteBestEffort(ctx, previous)
	}
	return user, nil
}
