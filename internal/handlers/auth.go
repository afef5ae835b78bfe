package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"sacs-telemedicina-hub/internal/config"
	"sacs-telemedicina-hub/internal/identity"
	"sacs-telemedicina-hub/internal/metrics"
	"sacs-telemedicina-hub/internal/middleware"
	"sacs-telemedicina-hub/internal/models"
	"sacs-telemedicina-hub/internal/utils"
)

const refreshCookie = "refresh_token"

// AuthHandler handles authentication-related requests.
type AuthHandler struct {
	Directory *identity.Directory
	Profiles  *identity.Profiles
	Cfg       *config.Config
	Metrics   *metrics.Collector
}

// NewAuthHandler creates a new AuthHandler. collector may be nil.
func NewAuthHandler(dir *identity.Directory, profiles *identity.Profiles, cfg *config.Config, collector *metrics.Collector) *AuthHandler {
	return &AuthHandler{Directory: dir, Profiles: profiles, Cfg: cfg, Metrics: collector}
}

// LoginRequest represents the request body for user login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents the response body for successful login.
type LoginResponse struct {
	AccessToken  string               `json:"accessToken"`
	RefreshToken string               `json:"refreshToken"`
	User         models.UserSanitized `json:"user"`
}

// Login handles user login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !utils.BindAndValidate(c, &req) {
		h.countLogin("invalid_request")
		return
	}

	user, err := h.Directory.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			h.countLogin("rejected")
			utils.Unauthorized(c, "Invalid email or password")
			return
		}
		h.countLogin("error")
		utils.RespondError(c, err)
		return
	}

	accessToken, refreshToken, err := utils.GenerateTokens(&user, h.Cfg)
	if err != nil {
		h.countLogin("error")
		utils.InternalServerError(c, "Failed to generate tokens: "+err.Error())
		return
	}
	h.countLogin("success")
	h.setRefreshCookie(c, refreshToken, h.Cfg.JWTRefreshExpirationHours*60*60)

	utils.Success(c, "Login successful", LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user.Sanitize(),
	})
}

// RefreshTokenRequest represents the request body for token refresh.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// RefreshTokenResponse represents the response body for successful token refresh.
type RefreshTokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// RefreshToken exchanges a valid refresh token for a new pair. Tokens are
// stateless, so the account is reloaded to pick up role or center changes.
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	token, err := c.Cookie(refreshCookie)
	if err != nil || token == "" {
		var req RefreshTokenRequest
		if !utils.BindAndValidate(c, &req) {
			return
		}
		token = req.RefreshToken
	}

	claims, err := utils.ValidateToken(token, h.Cfg.JWTRefreshSecret)
	if err != nil {
		utils.Unauthorized(c, "Invalid refresh token: "+err.Error())
		return
	}

	user, err := h.Directory.FindByID(c.Request.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			utils.Unauthorized(c, "Account no longer exists")
			return
		}
		utils.RespondError(c, err)
		return
	}

	accessToken, refreshToken, err := utils.GenerateTokens(&user, h.Cfg)
	if err != nil {
		utils.InternalServerError(c, "Failed to generate new tokens: "+err.Error())
		return
	}
	h.setRefreshCookie(c, refreshToken, h.Cfg.JWTRefreshExpirationHours*60*60)

	utils.Success(c, "Access token refreshed successfully", RefreshTokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	})
}

// Logout clears the refresh cookie.
func (h *AuthHandler) Logout(c *gin.Context) {
	h.setRefreshCookie(c, "", -1)
	utils.Success(c, "Logout successful", nil)
}

// GetProfile returns the caller's profile with its medical center.
func (h *AuthHandler) GetProfile(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	profile, err := h.Profiles.Profile(c.Request.Context(), userID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Profile fetched successfully", profile)
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, value string, maxAge int) {
	c.SetCookie(refreshCookie, value, maxAge, "/", "", !h.Cfg.IsDevelopment(), true)
}

func (h *AuthHandler) countLogin(outcome string) {
	if h.Metrics != nil {
		h.Metrics.LoginAttemptsTotal.WithLabelValues(outcome).Inc()
	}
}
