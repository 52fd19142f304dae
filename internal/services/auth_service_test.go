package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/you/mcmarket/domain"
	"github.com/you/mcmarket/internal/infrastructure/cache"
	"github.com/you/mcmarket/internal/mocks"
)

type authMocks struct {
	users    *mocks.MockUserRepository
	tokens   *mocks.MockTokenRepository
	sessions *mocks.MockSessionRepository
	password *mocks.MockPasswordService
	tokenSvc *mocks.MockTokenService
	mailer   *mocks.MockMailer
	tx       *mocks.MockTxManager
}

func createAuthServiceForTest(t *testing.T) (*AuthServiceImpl, *authMocks) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	m := &authMocks{
		users:    mocks.NewMockUserRepository(),
		tokens:   mocks.NewMockTokenRepository(),
		sessions: mocks.NewMockSessionRepository(),
		password: mocks.NewMockPasswordService(),
		tokenSvc: mocks.NewMockTokenService(),
		mailer:   mocks.NewMockMailer(),
		tx:       mocks.NewMockTxManager(),
	}
	settings := NewSettingsService(mocks.NewMockSettingRepository(nil), cache.New(client, "test:"))
	svc := NewAuthService(m.users, m.tokens, m.sessions, m.password, m.tokenSvc, m.mailer, nil, settings, m.tx,
		AuthOptions{FrontendURL: "https://app.test/"})
	return svc, m
}

func createValidUser(t *testing.T) *domain.User {
	t.Helper()
	return &domain.User{
		ID:            1,
		Email:         "buyer@example.com",
		PasswordHash:  "hashed_password123",
		Name:          "Bea Buyer",
		Role:          domain.RoleBuyer,
		Status:        domain.UserStatusActive,
		EmailVerified: true,
	}
}

func TestAuthServiceImpl_Register(t *testing.T) {
	tests := []struct {
		name          string
		input         domain.RegisterInput
		setupMocks    func(*authMocks)
		expectedError error
		expectedKind  domain.ErrorKind
	}{
		{
			name:  "successful registration",
			input: domain.RegisterInput{Email: " NewUser@Example.com ", Password: "securepassword", Name: " Nia ", Role: domain.RoleSeller},
		},
		{
			name:  "email already registered",
			input: domain.RegisterInput{Email: "buyer@example.com", Password: "securepassword", Role: domain.RoleBuyer},
			setupMocks: func(m *authMocks) {
				m.users.FindByEmailFunc = func(ctx context.Context, email string) (*domain.User, error) {
					return createValidUser(t), nil
				}
			},
			expectedError: domain.ErrEmailTaken,
		},
		{
			name:          "admin role cannot self register",
			input:         domain.RegisterInput{Email: "boss@example.com", Password: "securepassword", Role: domain.RoleAdmin},
			expectedError: domain.ErrInvalidRole,
		},
		{
			name:         "short password",
			input:        domain.RegisterInput{Email: "new@example.com", Password: "short", Role: domain.RoleBuyer},
			expectedKind: domain.KindValidation,
		},
		{
			name:         "malformed email",
			input:        domain.RegisterInput{Email: "not-an-email", Password: "securepassword", Role: domain.RoleBuyer},
			expectedKind: domain.KindValidation,
		},
		{
			name:  "password hashing fails",
			input: domain.RegisterInput{Email: "new@example.com", Password: "securepassword", Role: domain.RoleBuyer},
			setupMocks: func(m *authMocks) {
				m.password.HashFunc = func(password string) (string, error) {
					return "", errors.New("hashing failed")
				}
			},
			expectedKind: "other",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := createAuthServiceForTest(t)
			var created *domain.User
			m.users.CreateFunc = func(ctx context.Context, user *domain.User) error {
				user.ID = 42
				created = user
				return nil
			}
			var verification *domain.EmailVerificationToken
			m.tokens.CreateEmailVerificationFunc = func(ctx context.Context, token *domain.EmailVerificationToken) error {
				verification = token
				return nil
			}
			if tt.setupMocks != nil {
				tt.setupMocks(m)
			}

			user, err := svc.Register(context.Background(), tt.input)

			switch {
			case tt.expectedError != nil:
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, user)
				assert.Nil(t, created)
				return
			case tt.expectedKind == "other":
				assert.Error(t, err)
				assert.Nil(t, created)
				return
			case tt.expectedKind != "":
				appErr, ok := domain.AsAppError(err)
				require.True(t, ok, "expected AppError, got %v", err)
				assert.Equal(t, tt.expectedKind, appErr.Kind)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, "newuser@example.com", user.Email)
			assert.Equal(t, "Nia", user.Name)
			assert.Equal(t, domain.RoleSeller, user.Role)
			assert.Equal(t, domain.UserStatusActive, user.Status)
			assert.Equal(t, "hashed_securepassword", user.PasswordHash)
			assert.False(t, user.EmailVerified)
			assert.Equal(t, 1, m.tx.Calls)

			require.NotNil(t, verification)
			assert.Equal(t, uint(42), verification.UserID)
			assert.Len(t, verification.TokenHash, 64)
			assert.WithinDuration(t, time.Now().Add(24*time.Hour), verification.ExpiresAt, time.Minute)

			mail, ok := m.mailer.Last()
			require.True(t, ok, "verification email should be sent")
			assert.Equal(t, "newuser@example.com", mail.To)
			assert.Contains(t, mail.Body, "https://app.test/verify-email?token=")
		})
	}
}

func TestAuthServiceImpl_RegisterSignupBonus(t *testing.T) {
	e := newTestEnv(t)
	svc := NewAuthService(e.users, e.tokens, e.sessions, mocks.NewMockPasswordService(), mocks.NewMockTokenService(),
		e.mailer, e.credits, e.settings, e.txm, AuthOptions{FrontendURL: "https://app.test"})
	e.setSetting(t, SettingSignupBonusCredits, "3")
	ctx := context.Background()

	buyer, err := svc.Register(ctx, domain.RegisterInput{Email: "b@example.com", Password: "password123", Role: domain.RoleBuyer})
	require.NoError(t, err)
	assert.Equal(t, 3, buyer.TotalCredits)

	var stored domain.User
	e.reload(t, &stored, buyer.ID)
	assert.Equal(t, 3, stored.AvailableCredits())
	entries, total, err := e.credits.History(ctx, buyer.ID, domain.Page{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, domain.CreditBonus, entries[0].Type)

	seller, err := svc.Register(ctx, domain.RegisterInput{Email: "s@example.com", Password: "password123", Role: domain.RoleSeller})
	require.NoError(t, err)
	assert.Zero(t, seller.TotalCredits, "sellers get no signup bonus")
}

func TestAuthServiceImpl_Login(t *testing.T) {
	tests := []struct {
		name          string
		email         string
		password      string
		setupMocks    func(*authMocks)
		expectedError error
	}{
		{
			name:     "successful login",
			email:    "Buyer@Example.com",
			password: "password123",
			setupMocks: func(m *authMocks) {
				m.users.FindByEmailFunc = func(ctx context.Context, email string) (*domain.User, error) {
					if email != "buyer@example.com" {
						return nil, domain.ErrUserNotFound
					}
					return createValidUser(t), nil
				}
			},
		},
		{
			name:          "unknown email",
			email:         "ghost@example.com",
			password:      "password123",
			expectedError: domain.ErrInvalidCredentials,
		},
		{
			name:     "wrong password",
			email:    "buyer@example.com",
			password: "wrongpassword",
			setupMocks: func(m *authMocks) {
				m.users.FindByEmailFunc = func(ctx context.Context, email string) (*domain.User, error) {
					return createValidUser(t), nil
				}
			},
			expectedError: domain.ErrInvalidCredentials,
		},
		{
			name:     "suspended account",
			email:    "buyer@example.com",
			password: "password123",
			setupMocks: func(m *authMocks) {
				m.users.FindByEmailFunc = func(ctx context.Context, email string) (*domain.User, error) {
					u := createValidUser(t)
					u.Status = domain.UserStatusSuspended
					return u, nil
				}
			},
			expectedError: domain.ErrUserSuspended,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := createAuthServiceForTest(t)
			var session *domain.Session
			m.sessions.CreateFunc = func(ctx context.Context, s *domain.Session) error {
				session = s
				return nil
			}
			var stored *domain.RefreshToken
			m.tokens.CreateRefreshTokenFunc = func(ctx context.Context, token *domain.RefreshToken) error {
				stored = token
				return nil
			}
			var updated *domain.User
			m.users.UpdateFunc = func(ctx context.Context, user *domain.User) error {
				updated = user
				return nil
			}
			if tt.setupMocks != nil {
				tt.setupMocks(m)
			}

			result, err := svc.Login(context.Background(), tt.email, tt.password)

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, result)
				assert.Nil(t, session, "no session for a failed login")
				return
			}

			require.NoError(t, err)
			require.NotNil(t, session)
			assert.Equal(t, uint(1), session.UserID)
			assert.Equal(t, domain.RoleBuyer, session.Role)
			assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), session.ExpiresAt, time.Minute)

			assert.Equal(t, session.ID, result.SessionID)
			assert.NotEmpty(t, result.AccessToken)
			assert.NotEmpty(t, result.RefreshToken)
			assert.Equal(t, int64(900), result.ExpiresIn)

			require.NotNil(t, stored)
			assert.Equal(t, hashToken("jti_"+session.ID), stored.TokenHash)
			assert.Equal(t, session.ID, stored.SessionID)

			require.NotNil(t, updated)
			assert.NotNil(t, updated.LastLoginAt)
		})
	}
}

func TestAuthServiceImpl_RefreshToken(t *testing.T) {
	activeToken := func() *domain.RefreshToken {
		return &domain.RefreshToken{
			ID:        9,
			UserID:    1,
			SessionID: "mock_session_id",
			TokenHash: hashToken("jti_mock_session_id"),
			ExpiresAt: time.Now().Add(time.Hour),
		}
	}
	liveSession := func(ctx context.Context, id string) (*domain.Session, error) {
		return &domain.Session{ID: id, UserID: 1, Role: domain.RoleBuyer, ExpiresAt: time.Now().Add(time.Hour)}, nil
	}
	activeUser := func(ctx context.Context, id uint) (*domain.User, error) {
		return createValidUser(t), nil
	}

	tests := []struct {
		name          string
		setupMocks    func(*authMocks)
		expectedError error
		validate      func(t *testing.T, m *authMocks, revoked []uint, revokedAll bool)
	}{
		{
			name: "rotates the refresh token",
			setupMocks: func(m *authMocks) {
				m.tokens.FindRefreshTokenByHashFunc = func(ctx context.Context, hash string) (*domain.RefreshToken, error) {
					return activeToken(), nil
				}
				m.sessions.FindByIDFunc = liveSession
				m.users.FindByIDFunc = activeUser
			},
			validate: func(t *testing.T, m *authMocks, revoked []uint, revokedAll bool) {
				assert.Equal(t, []uint{9}, revoked)
				assert.False(t, revokedAll)
			},
		},
		{
			name: "reused token revokes everything",
			setupMocks: func(m *authMocks) {
				m.tokens.FindRefreshTokenByHashFunc = func(ctx context.Context, hash string) (*domain.RefreshToken, error) {
					tok := activeToken()
					at := time.Now().Add(-time.Minute)
					tok.RevokedAt = &at
					return tok, nil
				}
			},
			expectedError: domain.ErrTokenRevoked,
			validate: func(t *testing.T, m *authMocks, revoked []uint, revokedAll bool) {
				assert.True(t, revokedAll)
			},
		},
		{
			name: "expired token",
			setupMocks: func(m *authMocks) {
				m.tokens.FindRefreshTokenByHashFunc = func(ctx context.Context, hash string) (*domain.RefreshToken, error) {
					tok := activeToken()
					tok.ExpiresAt = time.Now().Add(-time.Minute)
					return tok, nil
				}
			},
			expectedError: domain.ErrTokenExpired,
		},
		{
			name: "session gone",
			setupMocks: func(m *authMocks) {
				m.tokens.FindRefreshTokenByHashFunc = func(ctx context.Context, hash string) (*domain.RefreshToken, error) {
					return activeToken(), nil
				}
			},
			expectedError: domain.ErrSessionNotFound,
		},
		{
			name: "suspended user",
			setupMocks: func(m *authMocks) {
				m.tokens.FindRefreshTokenByHashFunc = func(ctx context.Context, hash string) (*domain.RefreshToken, error) {
					return activeToken(), nil
				}
				m.sessions.FindByIDFunc = liveSession
				m.users.FindByIDFunc = func(ctx context.Context, id uint) (*domain.User, error) {
					u := createValidUser(t)
					u.Status = domain.UserStatusSuspended
					return u, nil
				}
			},
			expectedError: domain.ErrUserSuspended,
		},
		{
			name: "invalid token string",
			setupMocks: func(m *authMocks) {
				m.tokenSvc.ValidateRefreshTokenFunc = func(token string) (*domain.TokenClaims, error) {
					return nil, domain.ErrTokenInvalid
				}
			},
			expectedError: domain.ErrTokenInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := createAuthServiceForTest(t)
			var revoked []uint
			m.tokens.RevokeRefreshTokenFunc = func(ctx context.Context, id uint) error {
				revoked = append(revoked, id)
				return nil
			}
			revokedAll := false
			m.tokens.RevokeAllRefreshTokensFunc = func(ctx context.Context, userID uint) error {
				revokedAll = true
				return nil
			}
			tt.setupMocks(m)

			result, err := svc.RefreshToken(context.Background(), "refresh_token")

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, result)
			} else {
				require.NoError(t, err)
				assert.Equal(t, "mock_session_id", result.SessionID)
				assert.NotEmpty(t, result.RefreshToken)
			}
			if tt.validate != nil {
				tt.validate(t, m, revoked, revokedAll)
			}
		})
	}
}

func TestAuthServiceImpl_Logout(t *testing.T) {
	svc, m := createAuthServiceForTest(t)
	var calls []string
	m.tokens.RevokeSessionFunc = func(ctx context.Context, sessionID string) error {
		calls = append(calls, "revoke:"+sessionID)
		return nil
	}
	m.sessions.DeleteFunc = func(ctx context.Context, sessionID string) error {
		calls = append(calls, "delete:"+sessionID)
		return nil
	}

	require.NoError(t, svc.Logout(context.Background(), "sess-1"))
	assert.Equal(t, []string{"revoke:sess-1", "delete:sess-1"}, calls)

	m.tokens.RevokeSessionFunc = func(ctx context.Context, sessionID string) error {
		return errors.New("db down")
	}
	assert.Error(t, svc.Logout(context.Background(), "sess-2"))
}

func TestAuthServiceImpl_VerifyEmail(t *testing.T) {
	used := time.Now().Add(-time.Hour)
	tests := []struct {
		name          string
		token         *domain.EmailVerificationToken
		expectedError error
	}{
		{"valid token", &domain.EmailVerificationToken{ID: 3, UserID: 1, ExpiresAt: time.Now().Add(time.Hour)}, nil},
		{"already used", &domain.EmailVerificationToken{ID: 3, UserID: 1, ExpiresAt: time.Now().Add(time.Hour), UsedAt: &used}, domain.ErrInvalidVerifyToken},
		{"expired", &domain.EmailVerificationToken{ID: 3, UserID: 1, ExpiresAt: time.Now().Add(-time.Second)}, domain.ErrInvalidVerifyToken},
		{"unknown", nil, domain.ErrInvalidVerifyToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := createAuthServiceForTest(t)
			if tt.token != nil {
				m.tokens.FindEmailVerificationByHashFunc = func(ctx context.Context, hash string) (*domain.EmailVerificationToken, error) {
					assert.Equal(t, hashToken("plain-token"), hash)
					return tt.token, nil
				}
			}
			user := createValidUser(t)
			user.EmailVerified = false
			m.users.FindByIDFunc = func(ctx context.Context, id uint) (*domain.User, error) { return user, nil }
			var marked uint
			m.tokens.MarkEmailVerificationUsedFunc = func(ctx context.Context, id uint) error {
				marked = id
				return nil
			}

			err := svc.VerifyEmail(context.Background(), "plain-token")

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.False(t, user.EmailVerified)
				return
			}
			require.NoError(t, err)
			assert.True(t, user.EmailVerified)
			assert.Equal(t, uint(3), marked)
		})
	}
}

func TestAuthServiceImpl_ResendVerification(t *testing.T) {
	svc, m := createAuthServiceForTest(t)
	ctx := context.Background()

	assert.NoError(t, svc.ResendVerification(ctx, "ghost@example.com"), "unknown addresses succeed silently")
	assert.Empty(t, m.mailer.Sent)

	m.users.FindByEmailFunc = func(ctx context.Context, email string) (*domain.User, error) {
		return createValidUser(t), nil
	}
	assert.NoError(t, svc.ResendVerification(ctx, "buyer@example.com"), "verified accounts are indistinguishable from unknown ones")
	assert.Empty(t, m.mailer.Sent, "no mail for a verified account")

	m.users.FindByEmailFunc = func(ctx context.Context, email string) (*domain.User, error) {
		u := createValidUser(t)
		u.EmailVerified = false
		return u, nil
	}
	require.NoError(t, svc.ResendVerification(ctx, "buyer@example.com"))
	mail, ok := m.mailer.Last()
	require.True(t, ok)
	assert.Equal(t, "buyer@example.com", mail.To)
}

func TestAuthServiceImpl_ForgotAndResetPassword(t *testing.T) {
	svc, m := createAuthServiceForTest(t)
	ctx := context.Background()

	require.NoError(t, svc.ForgotPassword(ctx, "ghost@example.com"))
	assert.Empty(t, m.mailer.Sent, "no email for unknown addresses")

	user := createValidUser(t)
	m.users.FindByEmailFunc = func(ctx context.Context, email string) (*domain.User, error) { return user, nil }
	m.users.FindByIDFunc = func(ctx context.Context, id uint) (*domain.User, error) { return user, nil }
	var reset *domain.PasswordResetToken
	m.tokens.CreatePasswordResetFunc = func(ctx context.Context, token *domain.PasswordResetToken) error {
		token.ID = 5
		reset = token
		return nil
	}

	require.NoError(t, svc.ForgotPassword(ctx, "buyer@example.com"))
	require.NotNil(t, reset)
	assert.WithinDuration(t, time.Now().Add(time.Hour), reset.ExpiresAt, time.Minute)
	mail, ok := m.mailer.Last()
	require.True(t, ok)
	idx := strings.Index(mail.Body, "reset-password?token=")
	require.GreaterOrEqual(t, idx, 0, "email carries the reset link")
	plain := mail.Body[idx+len("reset-password?token="):]
	plain = plain[:64]
	assert.Equal(t, reset.TokenHash, hashToken(plain))

	m.tokens.FindPasswordResetByHashFunc = func(ctx context.Context, hash string) (*domain.PasswordResetToken, error) {
		if hash != reset.TokenHash {
			return nil, domain.ErrInvalidResetToken
		}
		return reset, nil
	}
	var markedUsed uint
	m.tokens.MarkPasswordResetUsedFunc = func(ctx context.Context, id uint) error {
		markedUsed = id
		return nil
	}
	revokedAll := false
	m.tokens.RevokeAllRefreshTokensFunc = func(ctx context.Context, userID uint) error {
		revokedAll = true
		return nil
	}
	sessionsCleared := false
	m.sessions.DeleteByUserFunc = func(ctx context.Context, userID uint) error {
		sessionsCleared = true
		return nil
	}

	assert.Equal(t, domain.KindValidation, mustKind(t, svc.ResetPassword(ctx, plain, "short")))
	assert.ErrorIs(t, svc.ResetPassword(ctx, "wrong-token", "newpassword1"), domain.ErrInvalidResetToken)

	require.NoError(t, svc.ResetPassword(ctx, plain, "newpassword1"))
	assert.Equal(t, "hashed_newpassword1", user.PasswordHash)
	assert.Equal(t, uint(5), markedUsed)
	assert.True(t, revokedAll)
	assert.True(t, sessionsCleared)
}

func mustKind(t *testing.T, err error) domain.ErrorKind {
	t.Helper()
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	return appErr.Kind
}

func TestAuthServiceImpl_ChangePassword(t *testing.T) {
	tests := []struct {
		name          string
		current       string
		next          string
		expectedError error
		expectedHash  string
	}{
		{"changes password", "password123", "newpassword1", nil, "hashed_newpassword1"},
		{"wrong current password", "nope", "newpassword1", domain.ErrWrongPassword, "hashed_password123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := createAuthServiceForTest(t)
			user := createValidUser(t)
			m.users.FindByIDFunc = func(ctx context.Context, id uint) (*domain.User, error) { return user, nil }

			err := svc.ChangePassword(context.Background(), 1, tt.current, tt.next)

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.expectedHash, user.PasswordHash)
		})
	}
}

func TestAuthServiceImpl_UpdateProfile(t *testing.T) {
	svc, m := createAuthServiceForTest(t)
	user := createValidUser(t)
	user.Phone = "+15550100"
	m.users.FindByIDFunc = func(ctx context.Context, id uint) (*domain.User, error) { return user, nil }

	name := "  Bea B. "
	company := "Acme Logistics"
	got, err := svc.UpdateProfile(context.Background(), 1, domain.ProfileInput{Name: &name, Company: &company})
	require.NoError(t, err)
	assert.Equal(t, "Bea B.", got.Name)
	assert.Equal(t, "Acme Logistics", got.Company)
	assert.Equal(t, "+15550100", got.Phone, "nil fields stay unchanged")

	_, err = svc.GetUserProfile(context.Background(), 1)
	assert.NoError(t, err)
}
