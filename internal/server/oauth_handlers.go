package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/thrivebase/thrivebase/internal/models"
)

// googleUser is the subset of Google's user info response we use
type googleUser struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
}

// @Summary Google sign in URL
// @Description Returns the Google authorization URL to open in a browser
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /api/v1/auth/oauth/google/url [get]
func (s *Server) googleAuthURL(c *gin.Context) {
	if s.oauth == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "Google sign in is not configured"})
		return
	}

	state := uuid.NewString()
	s.oauthStates.SetDefault(state, struct{}{})

	c.JSON(http.StatusOK, gin.H{"url": s.oauth.AuthCodeURL(state)})
}

// @Summary Google sign in callback
// @Description Completes Google sign in and redirects to the website
// @Tags auth
// @Param state query string true "OAuth state"
// @Param code query string true "Authorization code"
// @Success 302
// @Router /api/v1/auth/oauth/google/callback [get]
func (s *Server) googleCallback(c *gin.Context) {
	if s.oauth == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "Google sign in is not configured"})
		return
	}

	state := c.Query("state")
	if _, ok := s.oauthStates.Get(state); !ok || state == "" {
		s.logger.Warn().Msg("Google callback with unknown state")
		s.redirectToSignIn(c, "oauth_state")
		return
	}
	s.oauthStates.Delete(state)

	if errParam := c.Query("error"); errParam != "" {
		s.redirectToSignIn(c, errParam)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	profile, err := s.fetchGoogleUser(ctx, c.Query("code"))
	if err != nil {
		s.logger.Error().Err(err).Msg("Google sign in failed")
		s.redirectToSignIn(c, "oauth_failed")
		return
	}

	user, err := s.findOrCreateGoogleUser(profile)
	if err != nil {
		s.logger.Error().Err(err).Str("email", profile.Email).Msg("Failed to load Google user")
		s.redirectToSignIn(c, "oauth_failed")
		return
	}

	if err := s.issueSession(c, user); err != nil {
		s.logger.Error().Err(err).Msg("Failed to create session")
		s.redirectToSignIn(c, "oauth_failed")
		return
	}

	s.logger.Info().Str("user_id", user.ID).Str("email", user.Email).Msg("User signed in with Google")
	c.Redirect(http.StatusFound, s.config.Server.WebsiteURL+"/dashboard")
}

func (s *Server) fetchGoogleUser(ctx context.Context, code string) (*googleUser, error) {
	if code == "" {
		return nil, errors.New("missing authorization code")
	}

	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := s.oauth.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user info returned status %d", resp.StatusCode)
	}

	var profile googleUser
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("failed to parse user info: %w", err)
	}
	if profile.Email == "" || !profile.VerifiedEmail {
		return nil, errors.New("google account has no verified email")
	}
	profile.Email = strings.ToLower(profile.Email)
	return &profile, nil
}

// findOrCreateGoogleUser links a Google account to the user with the same
// email, creating one when none exists
func (s *Server) findOrCreateGoogleUser(profile *googleUser) (*models.User, error) {
	var user models.User
	err := s.db.Where("google_id = ? OR email = ?", profile.ID, profile.Email).First(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = models.User{Email: profile.Email, GoogleID: profile.ID}
		if err := s.db.Create(&user).Error; err != nil {
			return nil, err
		}
		return &user, nil
	case err != nil:
		return nil, err
	}

	if user.GoogleID == "" {
		if err := s.db.Model(&user).Update("google_id", profile.ID).Error; err != nil {
			return nil, err
		}
	}
	return &user, nil
}

func (s *Server) redirectToSignIn(c *gin.Context, reason string) {
	c.Redirect(http.StatusFound, s.config.Server.WebsiteURL+"/signin?error="+url.QueryEscape(reason))
}
