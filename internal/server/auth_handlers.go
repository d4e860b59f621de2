package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"github.com/thrivebase/thrivebase/internal/auth"
	"github.com/thrivebase/thrivebase/internal/models"
)

// Session cookie names and paths read by the clients
const (
	accessCookie  = "sAccessToken"
	refreshCookie = "sRefreshToken"
	refreshPath   = "/api/v1/auth/refresh"
)

// CredentialsRequest represents a sign in or sign up request
type CredentialsRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// SignUpRequest represents a sign up request
type SignUpRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// UserDetail represents user information returned in responses
type UserDetail struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	TimeJoined int64  `json:"time_joined"` // unix milliseconds
}

func newUserDetail(u *models.User) UserDetail {
	return UserDetail{ID: u.ID, Email: u.Email, TimeJoined: u.CreatedAt.UnixMilli()}
}

// bindingMessage turns a binding error into a short message for the client
func bindingMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid request body"
	}

	fe := verrs[0]
	switch {
	case fe.Field() == "Email" && fe.Tag() == "required":
		return "Email is required"
	case fe.Field() == "Email":
		return "Invalid email address"
	case fe.Field() == "Password" && fe.Tag() == "min":
		return "Password must be at least 8 characters"
	case fe.Field() == "Password":
		return "Password is required"
	default:
		return "Invalid " + strings.ToLower(fe.Field())
	}
}

// @Summary Sign up
// @Description Creates an account and starts a session
// @Tags auth
// @Accept json
// @Produce json
// @Param request body SignUpRequest true "Sign up request"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/v1/auth/signup [post]
func (s *Server) signUp(c *gin.Context) {
	var req SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": bindingMessage(err)})
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	var count int64
	if err := s.db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to count users")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
		return
	}
	if count > 0 {
		c.JSON(http.StatusConflict, gin.H{"message": "Email already exists"})
		return
	}

	// Hash password
	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to hash password")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to create user"})
		return
	}

	user := &models.User{
		Email:        email,
		PasswordHash: passwordHash,
	}
	if err := s.db.Create(user).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to create user")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to create user"})
		return
	}

	if err := s.issueSession(c, user); err != nil {
		s.logger.Error().Err(err).Msg("Failed to create session")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to create session"})
		return
	}

	s.logger.Info().Str("user_id", user.ID).Str("email", user.Email).Msg("User signed up")

	c.JSON(http.StatusOK, gin.H{"status": "OK", "user": newUserDetail(user)})
}

// @Summary Sign in
// @Description Authenticate with email and password; sets session cookies
// @Tags auth
// @Accept json
// @Produce json
// @Param request body CredentialsRequest true "Sign in request"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Router /api/v1/auth/signin [post]
func (s *Server) signIn(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": bindingMessage(err)})
		return
	}

	// Find user by email
	var user models.User
	if err := s.db.Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid email or password"})
			return
		}
		s.logger.Error().Err(err).Msg("Failed to find user")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
		return
	}

	// Verify password; Google-only accounts have none
	if !user.HasPassword() || auth.VerifyPassword(req.Password, user.PasswordHash) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid email or password"})
		return
	}

	if err := s.issueSession(c, &user); err != nil {
		s.logger.Error().Err(err).Msg("Failed to create session")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to create session"})
		return
	}

	s.logger.Info().Str("user_id", user.ID).Str("email", user.Email).Msg("User signed in")

	c.JSON(http.StatusOK, gin.H{"status": "OK", "user": newUserDetail(&user)})
}

// @Summary Refresh session
// @Description Rotates the refresh token and issues a new access token
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Router /api/v1/auth/refresh [post]
func (s *Server) refreshSession(c *gin.Context) {
	token, err := c.Cookie(refreshCookie)
	if err != nil || token == "" {
		s.clearSessionCookies(c)
		c.JSON(http.StatusUnauthorized, gin.H{"message": "unauthorised"})
		return
	}

	var session models.RefreshSession
	if err := s.db.Preload("User").Where("token_hash = ?", auth.HashToken(token)).First(&session).Error; err != nil || !session.Active(time.Now()) {
		s.clearSessionCookies(c)
		c.JSON(http.StatusUnauthorized, gin.H{"message": "unauthorised"})
		return
	}

	now := time.Now()
	if err := s.db.Model(&session).Update("revoked_at", &now).Error; err != nil {
		s.logger.Error().Err(err).Str("session_id", session.ID).Msg("Failed to revoke refreshed session")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
		return
	}

	if err := s.issueSession(c, &session.User); err != nil {
		s.logger.Error().Err(err).Msg("Failed to create session")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to create session"})
		return
	}

	s.logger.Debug().Str("user_id", session.UserID).Msg("Session refreshed")
	c.JSON(http.StatusOK, gin.H{"status": "OK"})
}

// @Summary Sign out
// @Description Revokes the session and clears the session cookies
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/auth/signout [post]
func (s *Server) signOut(c *gin.Context) {
	now := time.Now()

	// An expired access token still names the session to revoke
	if token, _, err := extractAccessToken(c); err == nil {
		if claims, err := auth.ValidateTokenIgnoringExpiry(token); err == nil {
			s.db.Model(&models.RefreshSession{}).
				Where("id = ? AND revoked_at IS NULL", claims.SessionID).
				Update("revoked_at", &now)
		}
	}
	if token, err := c.Cookie(refreshCookie); err == nil && token != "" {
		s.db.Model(&models.RefreshSession{}).
			Where("token_hash = ? AND revoked_at IS NULL", auth.HashToken(token)).
			Update("revoked_at", &now)
	}

	s.clearSessionCookies(c)
	c.JSON(http.StatusOK, gin.H{"status": "OK"})
}

// issueSession creates a refresh session and sets both session cookies
func (s *Server) issueSession(c *gin.Context, user *models.User) error {
	refreshToken, err := auth.NewOpaqueToken()
	if err != nil {
		return err
	}

	session := &models.RefreshSession{
		UserID:    user.ID,
		TokenHash: auth.HashToken(refreshToken),
		ExpiresAt: time.Now().Add(s.config.Auth.RefreshTTL),
	}
	if err := s.db.Create(session).Error; err != nil {
		return err
	}

	accessToken, err := auth.GenerateToken(user.ID, user.Email, session.ID, s.config.Auth.AccessTTL)
	if err != nil {
		return err
	}

	// The access cookie outlives its token so clients can tell an expired
	// session from a missing one
	maxAge := int(s.config.Auth.RefreshTTL.Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(accessCookie, accessToken, maxAge, "/", "", s.config.Server.CookieSecure, true)
	c.SetCookie(refreshCookie, refreshToken, maxAge, refreshPath, "", s.config.Server.CookieSecure, true)
	return nil
}

func (s *Server) clearSessionCookies(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(accessCookie, "", -1, "/", "", s.config.Server.CookieSecure, true)
	c.SetCookie(refreshCookie, "", -1, refreshPath, "", s.config.Server.CookieSecure, true)
}
