package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"user-accounts/internal/service"
)

// UserHandler mantiene dependencias para endpoints de cuentas.
type UserHandler struct {
	logger   *zap.Logger
	userServ *service.UserService
}

// NewUserHandler crea una instancia de UserHandler con dependencias necesarias.
func NewUserHandler(logger *zap.Logger, userServ *service.UserService) *UserHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserHandler{
		logger:   logger,
		userServ: userServ,
	}
}

// Register maneja POST /auth/register.
func (h *UserHandler) Register(c *gin.Context) {
	var req struct {
		Firstname  string `json:"firstname" binding:"required,max=50"`
		Middlename string `json:"middlename" binding:"max=50"`
		Lastname   string `json:"lastname" binding:"required,max=50"`
		Username   string `json:"username" binding:"max=50"`
		Email      string `json:"email" binding:"required,email,max=254"`
		Password   string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid register request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	user, err := h.userServ.Register(c.Request.Context(), service.RegisterInput{
		Firstname:  req.Firstname,
		Middlename: req.Middlename,
		Lastname:   req.Lastname,
		Username:   req.Username,
		Email:      req.Email,
		Password:   req.Password,
	})
	if err != nil {
		var dup *service.DuplicateAccountError
		switch {
		case errors.As(err, &dup):
			c.JSON(http.StatusConflict, gin.H{"error": dup.Error()})
		case errors.Is(err, service.ErrInvalidInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		default:
			h.writeUnavailable(c, "register failed", err)
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": user})
}

// Login maneja POST /auth/login.
func (h *UserHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
		Remember bool   `json:"remember"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid login request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	res, err := h.userServ.Login(c.Request.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		Remember: req.Remember,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		h.writeUnavailable(c, "login failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": res.User, "session": res.Session})
}

// LoginWithRememberToken maneja POST /auth/remember.
func (h *UserHandler) LoginWithRememberToken(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	res, err := h.userServ.LoginWithRememberToken(c.Request.Context(), req.Token)
	if err != nil {
		if errors.Is(err, service.ErrTokenInvalid) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		h.writeUnavailable(c, "remember login failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": res.User, "session": res.Session})
}

// Logout maneja POST /auth/logout. El cuerpo es opcional: {"remember_token": "..."}.
func (h *UserHandler) Logout(c *gin.Context) {
	var req struct {
		RememberToken string `json:"remember_token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := h.userServ.Logout(c.Request.Context(), getSessionToken(c), req.RememberToken); err != nil {
		if errors.Is(err, service.ErrSessionInvalid) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid session"})
			return
		}
		h.writeUnavailable(c, "logout failed", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Me maneja GET /auth/me.
func (h *UserHandler) Me(c *gin.Context) {
	user, err := h.userServ.CurrentUser(c.Request.Context(), getSessionToken(c))
	if err != nil {
		if errors.Is(err, service.ErrSessionInvalid) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid session"})
			return
		}
		h.writeUnavailable(c, "current user failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// RequestVerification maneja POST /auth/verify/request.
func (h *UserHandler) RequestVerification(c *gin.Context) {
	userID, ok := GetSessionUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid session"})
		return
	}

	expiresAt, err := h.userServ.RequestVerification(c.Request.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAlreadyVerified):
			c.JSON(http.StatusConflict, gin.H{"error": "account already verified"})
		case errors.Is(err, service.ErrRateLimited):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
		case errors.Is(err, service.ErrUserNotFound):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid session"})
		case errors.Is(err, service.ErrEmailSendFailure):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "email delivery unavailable"})
		default:
			h.writeUnavailable(c, "request verification failed", err)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "verification_sent", "expires_at": expiresAt})
}

// Verify maneja POST /auth/verify.
func (h *UserHandler) Verify(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or expired token"})
		return
	}
	h.verify(c, req.Token)
}

// VerifyLink maneja GET /auth/verify?token=..., el enlace que llega por correo.
func (h *UserHandler) VerifyLink(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or expired token"})
		return
	}
	h.verify(c, token)
}

func (h *UserHandler) verify(c *gin.Context, token string) {
	user, err := h.userServ.Verify(c.Request.Context(), token)
	if err != nil {
		if errors.Is(err, service.ErrTokenInvalid) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or expired token"})
			return
		}
		h.writeUnavailable(c, "verify failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *UserHandler) writeUnavailable(c *gin.Context, msg string, err error) {
	h.logger.Error(msg, zap.Error(err))
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service unavailable"})
}
