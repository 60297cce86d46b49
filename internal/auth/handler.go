package auth

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/voicehub/backend/config"
	"github.com/voicehub/backend/pkg/response"
)

// Handler serves operator login.
type Handler struct {
	cfg    config.AdminConfig
	jwt    *JWTService
	logger *zap.Logger
}

// NewHandler creates the auth handler.
func NewHandler(cfg config.AdminConfig, jwt *JWTService, logger *zap.Logger) *Handler {
	return &Handler{cfg: cfg, jwt: jwt, logger: logger}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login checks the configured operator credential and issues a JWT.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "username and password required")
		return
	}
	if h.cfg.PasswordHash == "" {
		response.Unauthorized(c, "operator login is not configured")
		return
	}
	if req.Username != h.cfg.Username ||
		bcrypt.CompareHashAndPassword([]byte(h.cfg.PasswordHash), []byte(req.Password)) != nil {
		response.Unauthorized(c, "invalid credentials")
		return
	}

	token, err := h.jwt.Generate(req.Username, "admin")
	if err != nil {
		h.logger.Error("token generation failed", zap.Error(err))
		response.Internal(c, "could not issue token")
		return
	}
	response.OK(c, gin.H{"token": token})
}
