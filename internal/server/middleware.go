package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/thrivebase/thrivebase/internal/auth"
	"github.com/thrivebase/thrivebase/internal/models"
)

const (
	bearerPrefix = "Bearer "
)

var (
	ErrMissingToken      = errors.New("missing access token")
	ErrInvalidAuthFormat = errors.New("invalid authorization header format")
	ErrEmptyToken        = errors.New("empty token")
	ErrInvalidToken      = errors.New("invalid token")
	ErrSessionRevoked    = errors.New("session revoked")
	ErrUserNotFound      = errors.New("user not found")
)

func setSession(c *gin.Context, sessionData *auth.SessionData) {
	c.Set("session", sessionData)
}

func GetSessionData(c *gin.Context) (*auth.SessionData, bool) {
	session, exists := c.Get("session")
	if !exists {
		return nil, false
	}

	sessionData, ok := session.(*auth.SessionData)
	return sessionData, ok
}

func extractBearerToken(authHeader string) (string, error) {
	if authHeader == "" {
		return "", ErrMissingToken
	}

	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return "", ErrInvalidAuthFormat
	}

	token := strings.TrimPrefix(authHeader, bearerPrefix)
	if token == "" {
		return "", ErrEmptyToken
	}

	return token, nil
}

// extractAccessToken prefers the session cookie and falls back to a bearer token
func extractAccessToken(c *gin.Context) (token, method string, err error) {
	if cookie, err := c.Cookie(accessCookie); err == nil && cookie != "" {
		return cookie, "cookie", nil
	}
	token, err = extractBearerToken(c.GetHeader("Authorization"))
	return token, "bearer", err
}

// respondWithError answers auth failures with {"message": ...}
func respondWithError(c *gin.Context, log zerolog.Logger, statusCode int, err error, message string) {
	log.Warn().Err(err).Msg(message)
	c.JSON(statusCode, gin.H{"message": message})
	c.Abort()
}

// respondWithDetail answers resource failures with {"detail": ...}
func respondWithDetail(c *gin.Context, log zerolog.Logger, statusCode int, err error, detail string) {
	if statusCode >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg(detail)
	} else {
		log.Debug().Err(err).Str("path", c.FullPath()).Msg(detail)
	}
	c.JSON(statusCode, gin.H{"detail": detail})
	c.Abort()
}

// SessionMiddleware validates the access token from the session cookie or
// the Authorization header and loads the session
func SessionMiddleware(db *gorm.DB, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, method, err := extractAccessToken(c)
		if err != nil {
			respondWithError(c, log, http.StatusUnauthorized, err, "unauthorised")
			return
		}

		// Validate JWT token
		claims, err := auth.ValidateToken(token)
		if err != nil {
			log.Debug().Err(err).Msg("Failed to validate JWT token")
			respondWithError(c, log, http.StatusUnauthorized, ErrInvalidToken, "try refresh token")
			return
		}

		// Signed out sessions stop working before their tokens expire
		var session models.RefreshSession
		if err := db.Where("id = ?", claims.SessionID).First(&session).Error; err != nil || session.RevokedAt != nil || time.Now().After(session.ExpiresAt) {
			respondWithError(c, log, http.StatusUnauthorized, ErrSessionRevoked, "unauthorised")
			return
		}

		// Verify user exists in database
		var user models.User
		if err := db.Where("id = ?", claims.UserID).First(&user).Error; err != nil {
			log.Error().Err(err).Str("user_id", claims.UserID).Msg("User not found")
			respondWithError(c, log, http.StatusUnauthorized, ErrUserNotFound, "unauthorised")
			return
		}

		// Set session data
		setSession(c, &auth.SessionData{
			UserID:     user.ID,
			Email:      user.Email,
			SessionID:  session.ID,
			AuthMethod: method,
		})

		c.Next()
	}
}
