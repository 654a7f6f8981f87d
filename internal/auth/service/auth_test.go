package service

import (
	"context"
	"testing"
	"time"

	"travelbook/internal/auth/repository"
	"travelbook/internal/auth/validator"
	"travelbook/pkg/config"
	apperrors "travelbook/pkg/errors"
	"travelbook/pkg/logger"
	"travelbook/pkg/model"
	"travelbook/pkg/token"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fixture struct {
	svc    *authService
	users  repository.UserRepository
	resets repository.ResetRepository
	issuer *token.Issuer
	cfg    *config.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := &config.Config{
		BcryptCost:       bcrypt.MinCost,
		PasswordResetTTL: time.Hour,
		ExposeResetToken: true,
		Log: logger.New(logger.Config{
			Level:     "info",
			Format:    logger.JSON,
			AddSource: false,
			Service:   "test",
		}),
	}
	f := &fixture{
		users:  repository.NewMemoryUserRepository(),
		resets: repository.NewMemoryResetRepository(),
		issuer: token.NewIssuer("test-secret-0123456789", "travelbook-test", time.Hour),
		cfg:    cfg,
	}
	f.svc = NewAuthService(f.users, f.resets, f.issuer, validator.NewAuthValidator(cfg.Log), cfg).(*authService)
	return f
}

func signupRequest() *validator.SignupRequest {
	return &validator.SignupRequest{
		Name:            "  Ada   Lovelace ",
		Phone:           "(650) 253-0000",
		Email:           "Ada@Example.com",
		Password:        "correct-horse",
		ConfirmPassword: "correct-horse",
	}
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	appErr := apperrors.AsAppError(err)
	require.NotNil(t, appErr, "expected AppError, got %v", err)
	assert.Equal(t, code, appErr.Code)
}

func TestSignup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.svc.Signup(ctx, signupRequest())
	require.NoError(t, err)

	assert.NotEmpty(t, result.Token)
	assert.Equal(t, "ada@example.com", result.User.Email)
	assert.Equal(t, "+16502530000", result.User.Phone)
	assert.NotEqual(t, "correct-horse", result.User.PasswordHash)

	sub, err := f.issuer.Verify(result.Token)
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, sub)
}

func TestSignup_DuplicateEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Signup(ctx, signupRequest())
	require.NoError(t, err)

	req := signupRequest()
	req.Email = "ADA@example.com "
	_, err = f.svc.Signup(ctx, req)
	requireCode(t, err, apperrors.CodeConflict)
}

func TestSignup_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *validator.SignupRequest)
	}{
		{"missing name", func(r *validator.SignupRequest) { r.Name = "" }},
		{"bad email", func(r *validator.SignupRequest) { r.Email = "not-an-email" }},
		{"short password", func(r *validator.SignupRequest) { r.Password, r.ConfirmPassword = "short", "short" }},
		{"password mismatch", func(r *validator.SignupRequest) { r.ConfirmPassword = "different-one" }},
		{"invalid phone", func(r *validator.SignupRequest) { r.Phone = "12345" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := signupRequest()
			tt.mutate(req)

			_, err := f.svc.Signup(context.Background(), req)
			requireCode(t, err, apperrors.CodeInvalidInput)
		})
	}
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	signed, err := f.svc.Signup(ctx, signupRequest())
	require.NoError(t, err)

	t.Run("success", func(t *testing.T) {
		result, err := f.svc.Login(ctx, &validator.LoginRequest{Email: " ADA@example.com", Password: "correct-horse"})
		require.NoError(t, err)
		assert.Equal(t, signed.User.ID, result.User.ID)
		assert.NotEmpty(t, result.Token)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := f.svc.Login(ctx, &validator.LoginRequest{Email: "ada@example.com", Password: "wrong-horse"})
		requireCode(t, err, apperrors.CodeUnauthorized)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := f.svc.Login(ctx, &validator.LoginRequest{Email: "nobody@example.com", Password: "correct-horse"})
		requireCode(t, err, apperrors.CodeUnauthorized)
	})

	t.Run("missing fields", func(t *testing.T) {
		_, err := f.svc.Login(ctx, &validator.LoginRequest{})
		requireCode(t, err, apperrors.CodeInvalidInput)
	})
}

func TestMe(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	signed, err := f.svc.Signup(ctx, signupRequest())
	require.NoError(t, err)

	user, err := f.svc.Me(ctx, model.Caller{UserID: signed.User.ID})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)

	_, err = f.svc.Me(ctx, model.Anonymous())
	requireCode(t, err, apperrors.CodeUnauthorized)

	_, err = f.svc.Me(ctx, model.Caller{UserID: "ghost"})
	requireCode(t, err, apperrors.CodeNotFound)
}

func TestPasswordReset_Flow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Signup(ctx, signupRequest())
	require.NoError(t, err)

	requested, err := f.svc.RequestPasswordReset(ctx, &validator.ResetRequest{Email: "ada@example.com"})
	require.NoError(t, err)
	require.NotEmpty(t, requested.ResetToken)
	require.NotNil(t, requested.ExpiresAt)

	err = f.svc.ResetPassword(ctx, &validator.ResetConfirmRequest{
		Token:           requested.ResetToken,
		Password:        "new-password-1",
		ConfirmPassword: "new-password-1",
	})
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, &validator.LoginRequest{Email: "ada@example.com", Password: "correct-horse"})
	requireCode(t, err, apperrors.CodeUnauthorized)

	_, err = f.svc.Login(ctx, &validator.LoginRequest{Email: "ada@example.com", Password: "new-password-1"})
	require.NoError(t, err)

	// Tokens are single use.
	err = f.svc.ResetPassword(ctx, &validator.ResetConfirmRequest{
		Token:           requested.ResetToken,
		Password:        "another-pass-2",
		ConfirmPassword: "another-pass-2",
	})
	requireCode(t, err, apperrors.CodeInvalidInput)
}

func TestRequestPasswordReset_UnknownEmailLooksTheSame(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.RequestPasswordReset(context.Background(), &validator.ResetRequest{Email: "nobody@example.com"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Message)
	assert.Empty(t, result.ResetToken)
}

func TestRequestPasswordReset_TokenHiddenByDefault(t *testing.T) {
	f := newFixture(t)
	f.cfg.ExposeResetToken = false
	ctx := context.Background()

	_, err := f.svc.Signup(ctx, signupRequest())
	require.NoError(t, err)

	result, err := f.svc.RequestPasswordReset(ctx, &validator.ResetRequest{Email: "ada@example.com"})
	require.NoError(t, err)
	assert.Empty(t, result.ResetToken)
	assert.Nil(t, result.ExpiresAt)
}

func TestResetPassword_Expired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Signup(ctx, signupRequest())
	require.NoError(t, err)

	requested, err := f.svc.RequestPasswordReset(ctx, &validator.ResetRequest{Email: "ada@example.com"})
	require.NoError(t, err)

	later := time.Now().Add(2 * time.Hour)
	f.svc.now = func() time.Time { return later }

	err = f.svc.ResetPassword(ctx, &validator.ResetConfirmRequest{
		Token:           requested.ResetToken,
		Password:        "new-password-1",
		ConfirmPassword: "new-password-1",
	})
	requireCode(t, err, apperrors.CodeInvalidInput)
}

func TestResetPassword_UnknownToken(t *testing.T) {
	f := newFixture(t)

	err := f.svc.ResetPassword(context.Background(), &validator.ResetConfirmRequest{
		Token:           "does-not-exist",
		Password:        "new-password-1",
		ConfirmPassword: "new-password-1",
	})
	requireCode(t, err, apperrors.CodeInvalidInput)
}

func TestPurgeResets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Signup(ctx, signupRequest())
	require.NoError(t, err)

	_, err = f.svc.RequestPasswordReset(ctx, &validator.ResetRequest{Email: "ada@example.com"})
	require.NoError(t, err)

	deleted, err := f.svc.PurgeResets(ctx)
	require.NoError(t, err)
	assert.Zero(t, deleted)

	later := time.Now().Add(2 * time.Hour)
	f.svc.now = func() time.Time { return later }

	deleted, err = f.svc.PurgeResets(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestHashToken(t *testing.T) {
	assert.Equal(t, hashToken("abc"), hashToken("abc"))
	assert.NotEqual(t, hashToken("abc"), hashToken("abd"))
	assert.Len(t, hashToken("abc"), 64)
}
