package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/you/mcmarket/domain"
	"github.com/you/mcmarket/internal/http/middleware"
	"github.com/you/mcmarket/internal/http/response"
)

// AuthHandlers handles authentication HTTP requests
type AuthHandlers struct {
	authSvc domain.AuthService
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authSvc domain.AuthService) *AuthHandlers {
	return &AuthHandlers{authSvc: authSvc}
}

// RegisterRequest represents registration request
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name" binding:"required,max=255"`
	Phone    string `json:"phone" binding:"omitempty,max=32"`
	Company  string `json:"company" binding:"omitempty,max=255"`
	Role     string `json:"role" binding:"required,oneof=buyer seller"`
}

// LoginRequest represents login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest represents token refresh request
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type TokenRequest struct {
	Token string `json:"token" binding:"required"`
}

type EmailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=8"`
}

type UpdateProfileRequest struct {
	Name    *string `json:"name" binding:"omitempty,min=1,max=255"`
	Phone   *string `json:"phone" binding:"omitempty,max=32"`
	Company *string `json:"company" binding:"omitempty,max=255"`
}

// AuthResponse is returned by login and refresh
type AuthResponse struct {
	User         *domain.User `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	TokenType    string       `json:"tokenType"`
	ExpiresIn    int64        `json:"expiresIn"`
}

func authResponse(r *domain.AuthResult) AuthResponse {
	return AuthResponse{
		User:         r.User,
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    r.ExpiresIn,
	}
}

// Register handles user registration
func (h *AuthHandlers) Register(c *gin.Context) {
	var req RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.authSvc.Register(c.Request.Context(), domain.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Phone:    req.Phone,
		Company:  req.Company,
		Role:     req.Role,
	})
	if err != nil {
		c.Error(err)
		return
	}
	response.Created(c, gin.H{
		"user":    user,
		"message": "Registration successful. Check your email to verify your address.",
	})
}

// Login handles user login
func (h *AuthHandlers) Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.authSvc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		c.Error(err)
		return
	}
	response.OK(c, authResponse(result))
}

// Refresh exchanges a refresh token for a new token pair
func (h *AuthHandlers) Refresh(c *gin.Context) {
	var req RefreshRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.authSvc.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		c.Error(err)
		return
	}
	response.OK(c, authResponse(result))
}

// Logout ends the current session
func (h *AuthHandlers) Logout(c *gin.Context) {
	sessionID := middleware.SessionID(c)
	if sessionID == "" {
		c.Error(domain.ErrUnauthorized)
		return
	}
	if err := h.authSvc.Logout(c.Request.Context(), sessionID); err != nil {
		c.Error(err)
		return
	}
	response.Message(c, "Logged out successfully")
}

func (h *AuthHandlers) VerifyEmail(c *gin.Context) {
	var req TokenRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.authSvc.VerifyEmail(c.Request.Context(), req.Token); err != nil {
		c.Error(err)
		return
	}
	response.Message(c, "Email verified")
}

func (h *AuthHandlers) ResendVerification(c *gin.Context) {
	var req EmailRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.authSvc.ResendVerification(c.Request.Context(), req.Email); err != nil {
		c.Error(err)
		return
	}
	response.Message(c, "If the account exists, a verification email has been sent")
}

// ForgotPassword answers the same way whether or not the email is registered
func (h *AuthHandlers) ForgotPassword(c *gin.Context) {
	var req EmailRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.authSvc.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		c.Error(err)
		return
	}
	response.Message(c, "If the account exists, a password reset email has been sent")
}

func (h *AuthHandlers) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.authSvc.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		c.Error(err)
		return
	}
	response.Message(c, "Password has been reset, please log in again")
}

// Me returns current user information
func (h *AuthHandlers) Me(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	user, err := h.authSvc.GetUserProfile(c.Request.Context(), a.ID)
	if err != nil {
		c.Error(err)
		return
	}
	response.OK(c, user)
}

func (h *AuthHandlers) UpdateMe(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var req UpdateProfileRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.authSvc.UpdateProfile(c.Request.Context(), a.ID, domain.ProfileInput{
		Name:    req.Name,
		Phone:   req.Phone,
		Company: req.Company,
	})
	if err != nil {
		c.Error(err)
		return
	}
	response.OK(c, user)
}

func (h *AuthHandlers) ChangePassword(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var req ChangePasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.authSvc.ChangePassword(c.Request.Context(), a.ID, req.CurrentPassword, req.NewPassword); err != nil {
		c.Error(err)
		return
	}
	response.Message(c, "Password changed")
}
