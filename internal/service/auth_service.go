package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/heartlog/rehab-api/internal/auth"
	"github.com/heartlog/rehab-api/internal/config"
	"github.com/heartlog/rehab-api/internal/domain"
	"github.com/heartlog/rehab-api/internal/repository"
	apperrors "github.com/heartlog/rehab-api/pkg/util/errorutil"
)

const (
	passwordRule     = "must be between 8 and 72 bytes"
	msgPasswordReset = "A password reset was requested for your HeartLog account. Your reset code is %s and it expires in %d minutes. Ignore this message if it was not you."
)

// AuthService coordinates registration, login and password reset.
type AuthService struct {
	users        repository.UserRepository
	resets       repository.PasswordResetRepository
	messenger    Messenger
	tokenMgr     *auth.TokenManager
	bcryptCost   int
	hashPassword func(password string, cost int) (string, error)
	resetTTL     time.Duration
	logger       *zap.Logger
	now          Clock
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	UserRepo          repository.UserRepository
	PasswordResetRepo repository.PasswordResetRepository
	// Messenger delivers reset codes to accounts with a linked LINE user. Optional.
	Messenger Messenger
}

// SignupInput is the account registration payload.
type SignupInput struct {
	Email       string
	Password    string
	DisplayName string
	Role        domain.Role
}

// Session is an issued token with its expiry.
type Session struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// NewAuthService builds the service. tokens is the issuing side of the session codec.
func NewAuthService(cfg config.Config, tokens *auth.TokenManager, deps AuthDependencies, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:        deps.UserRepo,
		resets:       deps.PasswordResetRepo,
		messenger:    deps.Messenger,
		tokenMgr:     tokens,
		bcryptCost:   cfg.Auth.BcryptCost,
		hashPassword: auth.HashPassword,
		resetTTL:     time.Duration(cfg.Auth.PasswordResetTTLMinutes) * time.Minute,
		logger:       logger,
		now:          time.Now,
	}
}

// Signup creates an account and opens a session for it.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*Session, error) {
	email := normalizeEmail(in.Email)
	name := sanitizeText(in.DisplayName)
	role := in.Role
	if role == "" {
		role = domain.RolePatient
	}

	fields := map[string]any{}
	if !validEmail(email) {
		fields["email"] = "must be a valid email address"
	}
	if !auth.ValidPasswordLength(in.Password) {
		fields["password"] = passwordRule
	}
	if name == "" || tooLong(name, 100) {
		fields["display_name"] = "is required and must be at most 100 characters"
	}
	if !role.Valid() {
		fields["role"] = "must be patient or medical"
	}
	if len(fields) > 0 {
		return nil, apperrors.NewValidationError("invalid signup request", fields)
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewConflict("email already registered", nil)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	hash, err := s.hashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		DisplayName:  name,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if apperrors.IsUniqueViolation(err) {
			return nil, apperrors.NewConflict("email already registered", nil)
		}
		return nil, err
	}

	return s.issue(user)
}

// Login verifies credentials. Unknown emails and wrong passwords are indistinguishable.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, pgx.ErrNoRows) {
		auth.BurnPasswordCheck(password)
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	if err != nil {
		return nil, err
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	return s.issue(user)
}

// Me loads the caller's account.
func (s *AuthService) Me(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewNotFound("user", nil)
	}
	return user, err
}

// RequestPasswordReset stores a reset token when email belongs to an account.
// It returns nil, nil for unknown emails so callers answer the same either way.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (*domain.PasswordResetToken, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	token := &domain.PasswordResetToken{
		UserID:    user.ID,
		Token:     uuid.NewString(),
		ExpiresAt: s.now().Add(s.resetTTL),
	}
	if err := s.resets.Create(ctx, token); err != nil {
		return nil, err
	}
	s.logger.Info("password reset requested", zap.String("user_id", user.ID))
	s.deliverReset(ctx, user, token)
	return token, nil
}

// ConfirmPasswordReset validates the reset token and updates the password.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, tokenStr, newPassword string) error {
	if !auth.ValidPasswordLength(newPassword) {
		return apperrors.NewValidationError("invalid password", map[string]any{"password": passwordRule})
	}

	token, err := s.resets.GetByToken(ctx, strings.TrimSpace(tokenStr))
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewValidationError("reset token is invalid or expired", nil)
	}
	if err != nil {
		return err
	}
	now := s.now()
	if token.UsedAt != nil || !now.Before(token.ExpiresAt) {
		return apperrors.NewValidationError("reset token is invalid or expired", nil)
	}

	// Hash before burning the token so a hashing failure leaves it usable.
	hash, err := s.hashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return err
	}

	applied, err := s.resets.MarkUsed(ctx, token.ID, now)
	if err != nil {
		return err
	}
	if !applied {
		return apperrors.NewValidationError("reset token is invalid or expired", nil)
	}
	return s.users.UpdatePassword(ctx, token.UserID, hash)
}

// deliverReset pushes the reset code over LINE. Accounts without a linked LINE user
// get nothing; failures are logged without the code.
func (s *AuthService) deliverReset(ctx context.Context, user *domain.User, token *domain.PasswordResetToken) {
	if s.messenger == nil || user.LineUserID == nil || *user.LineUserID == "" {
		return
	}
	text := fmt.Sprintf(msgPasswordReset, token.Token, int(s.resetTTL.Minutes()))
	if err := s.messenger.Push(ctx, *user.LineUserID, text); err != nil {
		s.logger.Warn("password reset delivery failed", zap.String("user_id", user.ID), zap.Error(err))
	}
}

// TokenManager exposes the underlying token manager.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) issue(user *domain.User) (*Session, error) {
	token, exp, err := s.tokenMgr.Issue(user.ID, user.Role)
	if errors.Is(err, auth.ErrMissingSecret) {
		return nil, apperrors.NewConfigurationError("AUTH_JWT_SECRET is not configured")
	}
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Token: token, ExpiresAt: exp}, nil
}
