// Package services contains server-side business logic. This file implements
// UserService, which handles registration with email confirmation, login,
// refresh token rotation, and avatar updates.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"database/sql"

	"golang.org/x/crypto/bcrypt"

	"contactbook/internal/common"
	"contactbook/internal/dbx"
	"contactbook/internal/logging"
	"contactbook/internal/server/auth"
	"contactbook/internal/server/config"
	"contactbook/internal/server/models"
	"contactbook/internal/server/repositories/repomanager"
)

const bcryptCost = 14

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Mailer delivers the confirmation email. Implementations are best-effort;
// UserService never lets a delivery failure surface to the caller.
type Mailer interface {
	SendConfirmationEmail(ctx context.Context, toEmail, toName, token, baseURL string) error
}

// AvatarUploader stores an avatar image and returns its public URL.
type AvatarUploader interface {
	Upload(ctx context.Context, contentType string, body io.Reader) (string, error)
}

// UserService provides account operations:
//   - Register: create users and dispatch the confirmation email
//   - Login: verify credentials and mint tokens
//   - Refresh: rotate the stored refresh token and mint new access tokens
//   - ConfirmEmail / RequestConfirmation: email confirmation flow
//   - CurrentUser: resolve the account behind an access token
//   - UpdateAvatar: upload a new avatar and store its URL
type UserService struct {
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	mailer                       Mailer
	avatars                      AvatarUploader
	logger                       logging.Logger
	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
	emailTokenValidityDuration   time.Duration
	baseURL                      string
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, mailer Mailer, avatars AvatarUploader, logger logging.Logger, cfg *config.Config) *UserService {
	return &UserService{
		db:                           db,
		repomanager:                  m,
		mailer:                       mailer,
		avatars:                      avatars,
		logger:                       logger.With("module", "user_service"),
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
		emailTokenValidityDuration:   cfg.EmailTokenValidityDuration,
		baseURL:                      cfg.BaseURL,
	}
}

// Register creates a new unconfirmed user with a hashed password and a
// Gravatar default avatar, then dispatches the confirmation email in the
// background. A taken email yields common.ErrorAlreadyExists.
func (s *UserService) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	repo := s.repomanager.Users(s.db)

	if _, err := repo.GetByEmail(ctx, email); err == nil {
		return nil, common.ErrorAlreadyExists
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, common.ErrorInternal
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	user := &models.User{
		Username: username,
		Email:    email,
		Password: string(hash),
		Avatar:   GravatarURL(email),
	}

	user, err = repo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	s.DispatchConfirmationEmail(user)

	return user, nil
}

// DispatchConfirmationEmail sends the confirmation message in a background
// goroutine. The write that triggered it has already committed; a delivery
// failure is logged and never propagated.
func (s *UserService) DispatchConfirmationEmail(user *models.User) {
	token, err := auth.GenerateToken(user.ID, user.Email, auth.ScopeEmail, s.jwtSecret, s.emailTokenValidityDuration)
	if err != nil {
		s.logger.Error(context.Background(), "error generating email token", "error", err)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		if err := s.mailer.SendConfirmationEmail(ctx, user.Email, user.Username, token, s.baseURL); err != nil {
			s.logger.Warn(ctx, "error sending confirmation email", "email", user.Email, "error", err)
		}
	}()
}

// Login verifies the credentials and, on success, returns a new TokenPair.
// Unknown email, wrong password → common.ErrorUnauthorized; a known but
// unconfirmed account → common.ErrorEmailNotConfirmed.
func (s *UserService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}

	if !user.Confirmed {
		return nil, common.ErrorEmailNotConfirmed
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, common.ErrorUnauthorized
	}

	return s.generateTokenPair(ctx, user, s.db)
}

// Refresh validates the presented refresh token against the stored one and
// rotates it transactionally. A mismatch invalidates the stored token so a
// stolen old token cannot be retried.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := auth.ParseScopedToken(refreshToken, auth.ScopeRefresh, s.jwtSecret)
	if err != nil {
		return nil, common.ErrorUnauthorized
	}

	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByEmail(ctx, claims.Email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}

	if user.RefreshToken != refreshToken {
		if err := repo.UpdateRefreshToken(ctx, user.ID, ""); err != nil {
			s.logger.Error(ctx, "error clearing refresh token", "error", err)
		}
		return nil, common.ErrorUnauthorized
	}

	var pair *TokenPair
	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var genErr error
		pair, genErr = s.generateTokenPair(ctx, user, tx)
		return genErr
	}); err != nil {
		return nil, err
	}
	return pair, nil
}

// ConfirmEmail marks the account behind an email-scoped token as confirmed.
// The returned flag reports whether it was already confirmed.
func (s *UserService) ConfirmEmail(ctx context.Context, token string) (bool, error) {
	claims, err := auth.ParseScopedToken(token, auth.ScopeEmail, s.jwtSecret)
	if err != nil {
		return false, common.ErrInvalidToken
	}

	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByEmail(ctx, claims.Email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return false, common.ErrInvalidToken
		}
		return false, common.ErrorInternal
	}

	if user.Confirmed {
		return true, nil
	}

	if err := repo.ConfirmEmail(ctx, user.Email); err != nil {
		return false, common.ErrorInternal
	}
	return false, nil
}

// RequestConfirmation re-sends the confirmation email. It deliberately
// reveals nothing about account existence: an unknown email is not an
// error. The returned flag reports an already-confirmed account.
func (s *UserService) RequestConfirmation(ctx context.Context, email string) (bool, error) {
	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return false, nil
		}
		return false, common.ErrorInternal
	}

	if user.Confirmed {
		return true, nil
	}

	s.DispatchConfirmationEmail(user)
	return false, nil
}

// CurrentUser resolves an access token to the account it belongs to.
func (s *UserService) CurrentUser(ctx context.Context, accessToken string) (*models.User, error) {
	claims, err := auth.ParseScopedToken(accessToken, auth.ScopeAccess, s.jwtSecret)
	if err != nil {
		return nil, common.ErrorUnauthorized
	}

	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}
	return user, nil
}

// UpdateAvatar uploads the image to the object store and persists the new
// URL on the user row.
func (s *UserService) UpdateAvatar(ctx context.Context, userID int64, contentType string, body io.Reader) (*models.User, error) {
	url, err := s.avatars.Upload(ctx, contentType, body)
	if err != nil {
		s.logger.Error(ctx, "error uploading avatar", "error", err)
		return nil, common.ErrorUnavailable
	}

	repo := s.repomanager.Users(s.db)
	user, err := repo.UpdateAvatar(ctx, userID, url)
	if err != nil {
		return nil, fmt.Errorf("error updating avatar: %w", err)
	}
	return user, nil
}

// --- helpers below ---

func (s *UserService) generateTokenPair(ctx context.Context, user *models.User, db dbx.DBTX) (*TokenPair, error) {
	access, err := auth.GenerateToken(user.ID, user.Email, auth.ScopeAccess, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, common.ErrorInternal
	}
	refresh, err := auth.GenerateToken(user.ID, user.Email, auth.ScopeRefresh, s.jwtSecret, s.refreshTokenValidityDuration)
	if err != nil {
		return nil, common.ErrorInternal
	}

	repo := s.repomanager.Users(db)
	if err := repo.UpdateRefreshToken(ctx, user.ID, refresh); err != nil {
		return nil, common.ErrorInternal
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
