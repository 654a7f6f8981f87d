package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	autherrors "travelbook/internal/auth/errors"
	"travelbook/internal/auth/repository"
	"travelbook/internal/auth/validator"
	"travelbook/pkg/config"
	apperrors "travelbook/pkg/errors"
	"travelbook/pkg/model"
	"travelbook/pkg/sanitizer"
	"travelbook/pkg/token"

	"golang.org/x/crypto/bcrypt"
)

const resetTokenBytes = 32

// AuthResult is returned by signup and login.
type AuthResult struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      *model.User `json:"user"`
}

// ResetRequestResult never reveals whether the email exists. ResetToken is
// only filled when the deployment exposes tokens for development.
type ResetRequestResult struct {
	Message    string     `json:"message"`
	ResetToken string     `json:"reset_token,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

type AuthService interface {
	Signup(ctx context.Context, req *validator.SignupRequest) (*AuthResult, error)
	Login(ctx context.Context, req *validator.LoginRequest) (*AuthResult, error)
	Me(ctx context.Context, caller model.Caller) (*model.User, error)
	RequestPasswordReset(ctx context.Context, req *validator.ResetRequest) (*ResetRequestResult, error)
	ResetPassword(ctx context.Context, req *validator.ResetConfirmRequest) error
	PurgeResets(ctx context.Context) (int64, error)
}

type authService struct {
	users     repository.UserRepository
	resets    repository.ResetRepository
	issuer    *token.Issuer
	validator *validator.AuthValidator
	cfg       *config.Config
	now       func() time.Time
}

func NewAuthService(
	users repository.UserRepository,
	resets repository.ResetRepository,
	issuer *token.Issuer,
	validator *validator.AuthValidator,
	cfg *config.Config,
) AuthService {
	return &authService{
		users:     users,
		resets:    resets,
		issuer:    issuer,
		validator: validator,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

func (s *authService) Signup(ctx context.Context, req *validator.SignupRequest) (*AuthResult, error) {
	req.Name = sanitizer.NormalizeName(req.Name)
	req.Email = sanitizer.NormalizeEmail(req.Email)
	if err := s.validate(req); err != nil {
		return nil, err
	}

	phone := sanitizer.NormalizePhone(req.Phone)
	if phone == "" {
		return nil, apperrors.InvalidInput("phone must be a valid phone number")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cfg.BcryptCost)
	if err != nil {
		return nil, apperrors.Internal("Failed to hash password", err)
	}

	now := s.now()
	user := &model.User{
		Name:         req.Name,
		Email:        req.Email,
		Phone:        phone,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, autherrors.ErrEmailExists) {
			return nil, apperrors.Conflict("Email already registered")
		}
		s.cfg.Log.Error("Failed to create user", "error", err)
		return nil, apperrors.Internal("Failed to create user", err)
	}

	s.cfg.Log.Info("User signed up", "user_id", user.ID)
	return s.issue(user)
}

func (s *authService) Login(ctx context.Context, req *validator.LoginRequest) (*AuthResult, error) {
	req.Email = sanitizer.NormalizeEmail(req.Email)
	if err := s.validate(req); err != nil {
		return nil, err
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, autherrors.ErrUserNotFound) {
			return nil, apperrors.Unauthorized("Invalid email or password")
		}
		return nil, apperrors.Internal("Failed to look up user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.cfg.Log.Warn("Failed login attempt", "user_id", user.ID)
		return nil, apperrors.Unauthorized("Invalid email or password")
	}

	return s.issue(user)
}

func (s *authService) Me(ctx context.Context, caller model.Caller) (*model.User, error) {
	if !caller.Authenticated() {
		return nil, apperrors.Unauthorized("Authentication required")
	}

	user, err := s.users.FindByID(ctx, caller.UserID)
	if err != nil {
		if errors.Is(err, autherrors.ErrUserNotFound) {
			return nil, apperrors.NotFoundWithID("User", caller.UserID)
		}
		return nil, apperrors.Internal("Failed to get user", err)
	}
	return user, nil
}

func (s *authService) RequestPasswordReset(ctx context.Context, req *validator.ResetRequest) (*ResetRequestResult, error) {
	req.Email = sanitizer.NormalizeEmail(req.Email)
	if err := s.validate(req); err != nil {
		return nil, err
	}

	result := &ResetRequestResult{Message: "If the email is registered, a reset link has been sent"}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, autherrors.ErrUserNotFound) {
			return result, nil
		}
		return nil, apperrors.Internal("Failed to look up user", err)
	}

	raw, err := newResetToken()
	if err != nil {
		return nil, apperrors.Internal("Failed to generate reset token", err)
	}

	now := s.now()
	reset := &model.PasswordReset{
		UserID:    user.ID,
		TokenHash: hashToken(raw),
		ExpiresAt: now.Add(s.cfg.PasswordResetTTL),
		CreatedAt: now,
	}
	if err := s.resets.Create(ctx, reset); err != nil {
		s.cfg.Log.Error("Failed to store password reset", "user_id", user.ID, "error", err)
		return nil, apperrors.Internal("Failed to create password reset", err)
	}

	s.cfg.Log.Debug("Password reset token issued", "user_id", user.ID, "token", raw, "expires_at", reset.ExpiresAt)

	if s.cfg.ExposeResetToken {
		result.ResetToken = raw
		result.ExpiresAt = &reset.ExpiresAt
	}
	return result, nil
}

func (s *authService) ResetPassword(ctx context.Context, req *validator.ResetConfirmRequest) error {
	if err := s.validate(req); err != nil {
		return err
	}

	invalid := apperrors.InvalidInput("Invalid or expired reset token")

	reset, err := s.resets.FindByTokenHash(ctx, hashToken(req.Token))
	if err != nil {
		if errors.Is(err, autherrors.ErrResetNotFound) {
			return invalid
		}
		return apperrors.Internal("Failed to look up reset token", err)
	}

	now := s.now()
	if !reset.Usable(now) {
		return invalid
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cfg.BcryptCost)
	if err != nil {
		return apperrors.Internal("Failed to hash password", err)
	}

	if err := s.resets.MarkUsed(ctx, reset.ID, now); err != nil {
		if errors.Is(err, autherrors.ErrResetNotFound) {
			return invalid
		}
		return apperrors.Internal("Failed to consume reset token", err)
	}

	if err := s.users.UpdatePassword(ctx, reset.UserID, string(hash), now); err != nil {
		if errors.Is(err, autherrors.ErrUserNotFound) {
			return invalid
		}
		return apperrors.Internal("Failed to update password", err)
	}

	s.cfg.Log.Info("Password reset completed", "user_id", reset.UserID)
	return nil
}

func (s *authService) PurgeResets(ctx context.Context) (int64, error) {
	deleted, err := s.resets.DeleteStale(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to purge password resets: %w", err)
	}
	return deleted, nil
}

func (s *authService) issue(user *model.User) (*AuthResult, error) {
	access, err := s.issuer.Issue(user.ID)
	if err != nil {
		return nil, apperrors.Internal("Failed to issue access token", err)
	}
	return &AuthResult{Token: access.Token, ExpiresAt: access.ExpiresAt, User: user}, nil
}

func (s *authService) validate(req any) error {
	if err := s.validator.Validate(req); err != nil {
		s.cfg.Log.Warn("Auth request validation failed", "error", err)
		return apperrors.InvalidInput(err.Error()).WithDetails(map[string]any{"errors": err})
	}
	return nil
}

func newResetToken() (string, error) {
	b := make([]byte, resetTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// hashToken is what the store keeps; the raw token only leaves the process
// once.
func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
