package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/you/mcmarket/domain"
)

// Token types carried in the typ claim
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// JWTServiceImpl implements domain.TokenService
type JWTServiceImpl struct {
	secretKey       []byte
	issuer          string
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
}

// NewJWTService creates a new JWT service
func NewJWTService(secretKey string, issuer string, accessTTL, refreshTTL time.Duration) domain.TokenService {
	return &JWTServiceImpl{
		secretKey:       []byte(secretKey),
		issuer:          issuer,
		accessTokenTTL:  accessTTL,
		refreshTokenTTL: refreshTTL,
	}
}

func (j *JWTServiceImpl) AccessTTL() time.Duration  { return j.accessTokenTTL }
func (j *JWTServiceImpl) RefreshTTL() time.Duration { return j.refreshTokenTTL }

func (j *JWTServiceImpl) sign(userID uint, role, sessionID, typ string, ttl time.Duration) (string, *domain.TokenClaims, error) {
	now := time.Now()
	tc := &domain.TokenClaims{
		UserID:    userID,
		Role:      role,
		SessionID: sessionID,
		TokenID:   uuid.NewString(),
		Type:      typ,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
	}
	claims := jwt.MapClaims{
		"user_id":    tc.UserID,
		"role":       tc.Role,
		"session_id": tc.SessionID,
		"typ":        tc.Type,
		"iss":        j.issuer,
		"iat":        tc.IssuedAt,
		"exp":        tc.ExpiresAt,
		"jti":        tc.TokenID,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secretKey)
	if err != nil {
		return "", nil, err
	}
	return signed, tc, nil
}

// GenerateAccessToken implements domain.TokenService
func (j *JWTServiceImpl) GenerateAccessToken(userID uint, role string, sessionID string) (string, error) {
	token, _, err := j.sign(userID, role, sessionID, TokenTypeAccess, j.accessTokenTTL)
	return token, err
}

// GenerateRefreshToken implements domain.TokenService
func (j *JWTServiceImpl) GenerateRefreshToken(userID uint, role string, sessionID string) (string, *domain.TokenClaims, error) {
	return j.sign(userID, role, sessionID, TokenTypeRefresh, j.refreshTokenTTL)
}

// ValidateAccessToken implements domain.TokenService
func (j *JWTServiceImpl) ValidateAccessToken(tokenString string) (*domain.TokenClaims, error) {
	return j.validateToken(tokenString, TokenTypeAccess)
}

// ValidateRefreshToken implements domain.TokenService
func (j *JWTServiceImpl) ValidateRefreshToken(tokenString string) (*domain.TokenClaims, error) {
	return j.validateToken(tokenString, TokenTypeRefresh)
}

// validateToken validates a JWT token of the expected type and returns claims
func (j *JWTServiceImpl) validateToken(tokenString, expectedType string) (*domain.TokenClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrTokenMalformed
		}
		return j.secretKey, nil
	}, jwt.WithIssuer(j.issuer), jwt.WithIssuedAt())

	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, domain.ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		return nil, domain.ErrTokenMalformed
	case err != nil, !token.Valid:
		return nil, domain.ErrTokenInvalid
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, domain.ErrTokenMalformed
	}

	userID, ok := claims["user_id"].(float64)
	if !ok {
		return nil, domain.ErrTokenMalformed
	}
	role, ok := claims["role"].(string)
	if !ok {
		return nil, domain.ErrTokenMalformed
	}
	typ, _ := claims["typ"].(string)
	if typ != expectedType {
		return nil, domain.ErrTokenInvalid
	}
	iat, _ := claims["iat"].(float64)
	exp, _ := claims["exp"].(float64)

	tokenClaims := &domain.TokenClaims{
		UserID:    uint(userID),
		Role:      role,
		Type:      typ,
		IssuedAt:  int64(iat),
		ExpiresAt: int64(exp),
	}
	if sessionID, ok := claims["session_id"].(string); ok {
		tokenClaims.SessionID = sessionID
	}
	if jti, ok := claims["jti"].(string); ok {
		tokenClaims.TokenID = jti
	}

	return tokenClaims, nil
}
