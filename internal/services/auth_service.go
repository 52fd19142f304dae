package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/you/mcmarket/domain"
	"github.com/you/mcmarket/internal/infrastructure/notifications"
)

const minPasswordLength = 8

// AuthOptions carries the auth settings taken from config
type AuthOptions struct {
	FrontendURL      string
	EmailVerifyTTL   time.Duration
	PasswordResetTTL time.Duration
}

// AuthServiceImpl implements domain.AuthService
type AuthServiceImpl struct {
	userRepo    domain.UserRepository
	tokenRepo   domain.TokenRepository
	sessionRepo domain.SessionRepository
	passwordSvc domain.PasswordService
	tokenSvc    domain.TokenService
	mailer      domain.Mailer
	credits     *CreditService
	settings    *SettingsService
	tx          domain.TxManager
	opts        AuthOptions
	now         func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(
	userRepo domain.UserRepository,
	tokenRepo domain.TokenRepository,
	sessionRepo domain.SessionRepository,
	passwordSvc domain.PasswordService,
	tokenSvc domain.TokenService,
	mailer domain.Mailer,
	credits *CreditService,
	settings *SettingsService,
	tx domain.TxManager,
	opts AuthOptions,
) *AuthServiceImpl {
	if opts.EmailVerifyTTL == 0 {
		opts.EmailVerifyTTL = 24 * time.Hour
	}
	if opts.PasswordResetTTL == 0 {
		opts.PasswordResetTTL = time.Hour
	}
	opts.FrontendURL = strings.TrimSuffix(opts.FrontendURL, "/")
	return &AuthServiceImpl{
		userRepo:    userRepo,
		tokenRepo:   tokenRepo,
		sessionRepo: sessionRepo,
		passwordSvc: passwordSvc,
		tokenSvc:    tokenSvc,
		mailer:      mailer,
		credits:     credits,
		settings:    settings,
		tx:          tx,
		opts:        opts,
		now:         time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return domain.NewValidation(fmt.Sprintf("Password must be at least %d characters", minPasswordLength))
	}
	return nil
}

// Register implements domain.AuthService
func (s *AuthServiceImpl) Register(ctx context.Context, input domain.RegisterInput) (*domain.User, error) {
	email := normalizeEmail(input.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, domain.NewValidation("Invalid email address")
	}
	if input.Role != domain.RoleBuyer && input.Role != domain.RoleSeller {
		return nil, domain.ErrInvalidRole
	}
	if err := validatePassword(input.Password); err != nil {
		return nil, err
	}

	// Check if user already exists
	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err == nil && existing != nil {
		return nil, domain.ErrEmailTaken
	}
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	hashedPassword, err := s.passwordSvc.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		Email:        email,
		PasswordHash: hashedPassword,
		Name:         strings.TrimSpace(input.Name),
		Phone:        strings.TrimSpace(input.Phone),
		Company:      strings.TrimSpace(input.Company),
		Role:         input.Role,
		Status:       domain.UserStatusActive,
	}

	var verifyToken string
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.userRepo.Create(ctx, user); err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}

		verifyToken = newOpaqueToken()
		if err := s.tokenRepo.CreateEmailVerification(ctx, &domain.EmailVerificationToken{
			UserID:    user.ID,
			TokenHash: hashToken(verifyToken),
			ExpiresAt: s.now().Add(s.opts.EmailVerifyTTL),
		}); err != nil {
			return fmt.Errorf("failed to create verification token: %w", err)
		}

		if bonus := s.settings.Int(ctx, SettingSignupBonusCredits); bonus > 0 && user.Role == domain.RoleBuyer {
			if _, err := s.credits.AddCredits(ctx, user.ID, bonus, domain.CreditBonus, "Welcome bonus", Ref{}); err != nil {
				return err
			}
			user.TotalCredits += bonus
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.sendVerification(ctx, user.Email, verifyToken)
	slog.InfoContext(ctx, "user registered", "user_id", user.ID, "role", user.Role)
	return user, nil
}

func (s *AuthServiceImpl) sendVerification(ctx context.Context, email, token string) {
	link := s.opts.FrontendURL + "/verify-email?token=" + url.QueryEscape(token)
	html, err := notifications.Render(notifications.VerificationEmail(link))
	if err == nil {
		err = s.mailer.SendEmail(ctx, email, "Confirm your email", html)
	}
	if err != nil {
		slog.WarnContext(ctx, "verification email failed", "email", email, "error", err)
	}
}

// Login implements domain.AuthService
func (s *AuthServiceImpl) Login(ctx context.Context, email, password string) (*domain.AuthResult, error) {
	user, err := s.userRepo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if !s.passwordSvc.Verify(user.PasswordHash, password) {
		slog.InfoContext(ctx, "login failed", "user_id", user.ID)
		return nil, domain.ErrInvalidCredentials
	}

	if user.Status == domain.UserStatusSuspended {
		return nil, domain.ErrUserSuspended
	}

	now := s.now()
	session := &domain.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Role:      user.Role,
		ExpiresAt: now.Add(s.tokenSvc.RefreshTTL()),
		CreatedAt: now,
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	result, err := s.issueTokens(ctx, user, session.ID)
	if err != nil {
		return nil, err
	}

	user.LastLoginAt = &now
	if err := s.userRepo.Update(ctx, user); err != nil {
		slog.WarnContext(ctx, "last login not recorded", "user_id", user.ID, "error", err)
	}

	slog.InfoContext(ctx, "user logged in", "user_id", user.ID, "session_id", session.ID)
	return result, nil
}

// issueTokens signs a new access/refresh pair and persists the refresh token hash
func (s *AuthServiceImpl) issueTokens(ctx context.Context, user *domain.User, sessionID string) (*domain.AuthResult, error) {
	accessToken, err := s.tokenSvc.GenerateAccessToken(user.ID, user.Role, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, claims, err := s.tokenSvc.GenerateRefreshToken(user.ID, user.Role, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	if err := s.tokenRepo.CreateRefreshToken(ctx, &domain.RefreshToken{
		UserID:    user.ID,
		SessionID: sessionID,
		TokenHash: hashToken(claims.TokenID),
		ExpiresAt: time.Unix(claims.ExpiresAt, 0),
	}); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &domain.AuthResult{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		SessionID:    sessionID,
		ExpiresIn:    int64(s.tokenSvc.AccessTTL().Seconds()),
	}, nil
}

// RefreshToken implements domain.AuthService. The presented token is revoked
// and replaced; presenting an already revoked token revokes every token of the user.
func (s *AuthServiceImpl) RefreshToken(ctx context.Context, refreshToken string) (*domain.AuthResult, error) {
	claims, err := s.tokenSvc.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}

	stored, err := s.tokenRepo.FindRefreshTokenByHash(ctx, hashToken(claims.TokenID))
	if err != nil {
		return nil, err
	}
	if stored.RevokedAt != nil {
		slog.WarnContext(ctx, "refresh token reuse detected", "user_id", stored.UserID, "session_id", stored.SessionID)
		s.revokeEverything(ctx, stored.UserID)
		return nil, domain.ErrTokenRevoked
	}
	if !stored.Active(s.now()) {
		return nil, domain.ErrTokenExpired
	}

	session, err := s.sessionRepo.FindByID(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	if session.ExpiresAt.Before(s.now()) {
		return nil, domain.ErrSessionExpired
	}

	user, err := s.userRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if user.Status == domain.UserStatusSuspended {
		return nil, domain.ErrUserSuspended
	}

	if err := s.tokenRepo.RevokeRefreshToken(ctx, stored.ID); err != nil {
		return nil, fmt.Errorf("failed to revoke refresh token: %w", err)
	}

	session.Role = user.Role
	session.ExpiresAt = s.now().Add(s.tokenSvc.RefreshTTL())
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to extend session: %w", err)
	}

	return s.issueTokens(ctx, user, session.ID)
}

func (s *AuthServiceImpl) revokeEverything(ctx context.Context, userID uint) {
	if err := s.tokenRepo.RevokeAllRefreshTokens(ctx, userID); err != nil {
		slog.ErrorContext(ctx, "failed to revoke refresh tokens", "user_id", userID, "error", err)
	}
	if err := s.sessionRepo.DeleteByUser(ctx, userID); err != nil {
		slog.ErrorContext(ctx, "failed to delete sessions", "user_id", userID, "error", err)
	}
}

// Logout implements domain.AuthService
func (s *AuthServiceImpl) Logout(ctx context.Context, sessionID string) error {
	if err := s.tokenRepo.RevokeSession(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to revoke session tokens: %w", err)
	}
	return s.sessionRepo.Delete(ctx, sessionID)
}

// VerifyEmail implements domain.AuthService
func (s *AuthServiceImpl) VerifyEmail(ctx context.Context, token string) error {
	return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		t, err := s.tokenRepo.FindEmailVerificationByHash(ctx, hashToken(token))
		if err != nil {
			return err
		}
		if t.UsedAt != nil || !t.ExpiresAt.After(s.now()) {
			return domain.ErrInvalidVerifyToken
		}
		user, err := s.userRepo.FindByID(ctx, t.UserID)
		if err != nil {
			return err
		}
		if err := s.tokenRepo.MarkEmailVerificationUsed(ctx, t.ID); err != nil {
			return err
		}
		user.EmailVerified = true
		return s.userRepo.Update(ctx, user)
	})
}

// ResendVerification implements domain.AuthService. Unknown and already
// verified addresses succeed silently without sending mail.
func (s *AuthServiceImpl) ResendVerification(ctx context.Context, email string) error {
	user, err := s.userRepo.FindByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if user.EmailVerified {
		return nil
	}

	token := newOpaqueToken()
	if err := s.tokenRepo.CreateEmailVerification(ctx, &domain.EmailVerificationToken{
		UserID:    user.ID,
		TokenHash: hashToken(token),
		ExpiresAt: s.now().Add(s.opts.EmailVerifyTTL),
	}); err != nil {
		return fmt.Errorf("failed to create verification token: %w", err)
	}
	s.sendVerification(ctx, user.Email, token)
	return nil
}

// ForgotPassword implements domain.AuthService. It succeeds whether or not the
// address is registered.
func (s *AuthServiceImpl) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.userRepo.FindByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	token := newOpaqueToken()
	if err := s.tokenRepo.CreatePasswordReset(ctx, &domain.PasswordResetToken{
		UserID:    user.ID,
		TokenHash: hashToken(token),
		ExpiresAt: s.now().Add(s.opts.PasswordResetTTL),
	}); err != nil {
		return fmt.Errorf("failed to create reset token: %w", err)
	}

	link := s.opts.FrontendURL + "/reset-password?token=" + url.QueryEscape(token)
	html, err := notifications.Render(notifications.PasswordResetEmail(link))
	if err == nil {
		err = s.mailer.SendEmail(ctx, user.Email, "Reset your password", html)
	}
	if err != nil {
		slog.WarnContext(ctx, "password reset email failed", "user_id", user.ID, "error", err)
	}
	return nil
}

// ResetPassword implements domain.AuthService
func (s *AuthServiceImpl) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	var userID uint
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		t, err := s.tokenRepo.FindPasswordResetByHash(ctx, hashToken(token))
		if err != nil {
			return err
		}
		if t.UsedAt != nil || !t.ExpiresAt.After(s.now()) {
			return domain.ErrInvalidResetToken
		}
		user, err := s.userRepo.FindByID(ctx, t.UserID)
		if err != nil {
			return err
		}
		hashed, err := s.passwordSvc.Hash(newPassword)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
		user.PasswordHash = hashed
		if err := s.userRepo.Update(ctx, user); err != nil {
			return err
		}
		if err := s.tokenRepo.MarkPasswordResetUsed(ctx, t.ID); err != nil {
			return err
		}
		userID = user.ID
		return s.tokenRepo.RevokeAllRefreshTokens(ctx, user.ID)
	})
	if err != nil {
		return err
	}
	if err := s.sessionRepo.DeleteByUser(ctx, userID); err != nil {
		slog.WarnContext(ctx, "sessions not cleared after reset", "user_id", userID, "error", err)
	}
	return nil
}

// ChangePassword implements domain.AuthService
func (s *AuthServiceImpl) ChangePassword(ctx context.Context, userID uint, current, next string) error {
	if err := validatePassword(next); err != nil {
		return err
	}
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if !s.passwordSvc.Verify(user.PasswordHash, current) {
		return domain.ErrWrongPassword
	}
	hashed, err := s.passwordSvc.Hash(next)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.PasswordHash = hashed
	return s.userRepo.Update(ctx, user)
}

// GetUserProfile implements domain.AuthService
func (s *AuthServiceImpl) GetUserProfile(ctx context.Context, userID uint) (*domain.User, error) {
	return s.userRepo.FindByID(ctx, userID)
}

// UpdateProfile implements domain.AuthService
func (s *AuthServiceImpl) UpdateProfile(ctx context.Context, userID uint, input domain.ProfileInput) (*domain.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if input.Name != nil {
		user.Name = strings.TrimSpace(*input.Name)
	}
	if input.Phone != nil {
		user.Phone = strings.TrimSpace(*input.Phone)
	}
	if input.Company != nil {
		user.Company = strings.TrimSpace(*input.Company)
	}
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return user, nil
}
