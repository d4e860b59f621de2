package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/thrivebase/thrivebase/internal/auth"
	"github.com/thrivebase/thrivebase/internal/models"
)

// UpdateProfileRequest changes the email and/or password
type UpdateProfileRequest struct {
	Email           string `json:"email" validate:"omitempty,email"`
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password" validate:"omitempty,min=8"`
}

// NewsletterRequest is the JSON form of a newsletter signup
type NewsletterRequest struct {
	Email string `json:"email"`
}

// @Summary Get current user
// @Description Get information about the currently signed in user
// @Tags users
// @Produce json
// @Success 200 {object} UserDetail
// @Failure 401 {object} map[string]interface{}
// @Router /api/v1/users/me [get]
func (s *Server) getCurrentUser(c *gin.Context) {
	sessionData, _ := GetSessionData(c)

	var user models.User
	if err := models.FindByID(s.db, sessionData.UserID, &user); err != nil {
		respondWithDetail(c, s.logger, http.StatusNotFound, err, "User not found")
		return
	}

	c.JSON(http.StatusOK, newUserDetail(&user))
}

// @Summary Update profile
// @Description Update email and/or password. A password change needs the current password.
// @Tags users
// @Accept json
// @Produce json
// @Param request body UpdateProfileRequest true "Profile update"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/v1/users/profile [put]
func (s *Server) updateProfile(c *gin.Context) {
	sessionData, _ := GetSessionData(c)

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithDetail(c, s.logger, http.StatusBadRequest, err, "Invalid request body")
		return
	}
	if err := s.validator.Struct(req); err != nil {
		detail := "Invalid email address"
		if strings.Contains(err.Error(), "NewPassword") {
			detail = "New password must be at least 8 characters"
		}
		respondWithDetail(c, s.logger, http.StatusBadRequest, err, detail)
		return
	}

	var user models.User
	if err := models.FindByID(s.db, sessionData.UserID, &user); err != nil {
		respondWithDetail(c, s.logger, http.StatusNotFound, err, "User not found")
		return
	}

	updates := map[string]any{}

	if email := strings.ToLower(strings.TrimSpace(req.Email)); email != "" && email != user.Email {
		var count int64
		if err := s.db.Model(&models.User{}).Where("email = ? AND id <> ?", email, user.ID).Count(&count).Error; err != nil {
			respondWithDetail(c, s.logger, http.StatusInternalServerError, err, "Failed to update profile")
			return
		}
		if count > 0 {
			respondWithDetail(c, s.logger, http.StatusConflict, nil, "Email already exists")
			return
		}
		updates["email"] = email
	}

	if req.NewPassword != "" {
		// Accounts created with Google have no password to confirm
		if user.HasPassword() && (req.CurrentPassword == "" || auth.VerifyPassword(req.CurrentPassword, user.PasswordHash) != nil) {
			respondWithDetail(c, s.logger, http.StatusBadRequest, nil, "Current password is incorrect")
			return
		}
		hash, err := auth.HashPassword(req.NewPassword)
		if err != nil {
			respondWithDetail(c, s.logger, http.StatusInternalServerError, err, "Failed to update profile")
			return
		}
		updates["password_hash"] = hash
	}

	if len(updates) > 0 {
		if err := s.db.Model(&user).Updates(updates).Error; err != nil {
			respondWithDetail(c, s.logger, http.StatusInternalServerError, err, "Failed to update profile")
			return
		}
		s.logger.Info().Str("user_id", user.ID).Int("fields", len(updates)).Msg("Profile updated")
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Profile updated successfully"})
}

// @Summary Connected accounts
// @Description Lists the user's connected institutions
// @Tags users
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/users/connected-accounts [get]
func (s *Server) getConnectedAccounts(c *gin.Context) {
	sessionData, _ := GetSessionData(c)

	institutions, err := s.banking.Institutions(c.Request.Context(), sessionData.UserID)
	if err != nil {
		respondWithDetail(c, s.logger, http.StatusInternalServerError, err, "Failed to fetch connected accounts")
		return
	}

	c.JSON(http.StatusOK, gin.H{"accounts": institutions})
}

// newsletterSignup accepts the email as a query parameter or JSON body and
// answers with message on success
func (s *Server) newsletterSignup(message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		email := c.Query("email")
		if email == "" {
			var req NewsletterRequest
			if err := c.ShouldBindJSON(&req); err == nil {
				email = req.Email
			}
		}

		if err := s.validator.Var(email, "required,email"); err != nil {
			respondWithDetail(c, s.logger, http.StatusBadRequest, err, "Invalid email address")
			return
		}

		if err := s.banking.SignupNewsletter(c.Request.Context(), email); err != nil {
			respondWithDetail(c, s.logger, http.StatusInternalServerError, err, "Failed to store newsletter signup")
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "success", "message": message})
	}
}
