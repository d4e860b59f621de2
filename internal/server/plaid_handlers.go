package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thrivebase/thrivebase/internal/banking"
	"github.com/thrivebase/thrivebase/internal/models"
)

// ExchangeRequest is the Plaid Link success payload forwarded by clients
type ExchangeRequest struct {
	PublicToken     string `json:"public_token"`
	InstitutionID   string `json:"institution_id"`
	InstitutionName string `json:"institution_name"`
}

// @Summary Create link token
// @Description Creates a one-time Plaid Link token for the signed in user
// @Tags plaid
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/plaid/create_link_token [post]
func (s *Server) createLinkToken(c *gin.Context) {
	sessionData, _ := GetSessionData(c)

	token, err := s.banking.CreateLinkToken(c.Request.Context(), sessionData.UserID)
	if err != nil {
		respondWithDetail(c, s.logger, http.StatusInternalServerError, err, "Failed to create link token")
		return
	}

	c.JSON(http.StatusOK, gin.H{"link_token": token})
}

// @Summary Exchange public token
// @Description Exchanges a Link public token, stores the access token and the item's accounts
// @Tags plaid
// @Accept json
// @Produce json
// @Param request body ExchangeRequest true "Link success payload"
// @Success 200 {object} banking.ExchangeResult
// @Failure 400 {object} map[string]interface{}
// @Router /api/v1/plaid/exchange_public_token [post]
func (s *Server) exchangePublicToken(c *gin.Context) {
	sessionData, _ := GetSessionData(c)

	var req ExchangeRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithDetail(c, s.logger, http.StatusBadRequest, err, "Invalid request body")
			return
		}
	}
	if req.PublicToken == "" {
		req.PublicToken = c.Query("public_token")
	}

	result, err := s.banking.Exchange(c.Request.Context(), sessionData.UserID, banking.ExchangeParams{
		PublicToken:     req.PublicToken,
		InstitutionID:   req.InstitutionID,
		InstitutionName: req.InstitutionName,
	})
	if errors.Is(err, banking.ErrInvalidPublicToken) {
		respondWithDetail(c, s.logger, http.StatusBadRequest, err, err.Error())
		return
	}
	if err != nil {
		respondWithDetail(c, s.logger, http.StatusInternalServerError, err, "Failed to exchange public token")
		return
	}

	c.JSON(http.StatusOK, result)
}

// @Summary List accounts
// @Tags plaid
// @Produce json
// @Success 200 {array} models.Account
// @Router /api/v1/plaid/accounts [get]
func (s *Server) listAccounts(c *gin.Context) {
	sessionData, _ := GetSessionData(c)

	accounts, err := s.banking.Accounts(c.Request.Context(), sessionData.UserID)
	if err != nil {
		respondWithDetail(c, s.logger, http.StatusInternalServerError, err, "Failed to fetch accounts")
		return
	}

	c.JSON(http.StatusOK, accounts)
}

// @Summary Update account balances
// @Description Fetches fresh balances from Plaid for one item
// @Tags plaid
// @Produce json
// @Param item_id path string true "Plaid item ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/plaid/accounts/update/{item_id} [put]
func (s *Server) updateAccounts(c *gin.Context) {
	sessionData, _ := GetSessionData(c)

	accounts, err := s.banking.UpdateBalances(c.Request.Context(), sessionData.UserID, c.Param("item_id"))
	if errors.Is(err, banking.ErrItemNotFound) {
		respondWithDetail(c, s.logger, http.StatusNotFound, err, err.Error())
		return
	}
	if err != nil {
		respondWithDetail(c, s.logger, http.StatusInternalServerError, err, "Failed to update account balances")
		return
	}
	if accounts == nil {
		accounts = []models.Account{}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "success",
		"message":  "Accounts updated successfully",
		"accounts": accounts,
	})
}

// @Summary Disconnect institution
// @Description Removes the item at Plaid and deletes its accounts
// @Tags plaid
// @Produce json
// @Param item_id path string true "Plaid item ID"
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/plaid/disconnect/{item_id} [delete]
func (s *Server) disconnect(c *gin.Context) {
	sessionData, _ := GetSessionData(c)

	if err := s.banking.Disconnect(c.Request.Context(), sessionData.UserID, c.Param("item_id")); err != nil {
		respondWithDetail(c, s.logger, http.StatusInternalServerError, err, "Failed to disconnect bank account")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Account disconnected successfully"})
}

// @Summary Connected institutions
// @Tags plaid
// @Produce json
// @Success 200 {array} banking.Institution
// @Router /api/v1/plaid/connected-institutions [get]
func (s *Server) listInstitutions(c *gin.Context) {
	sessionData, _ := GetSessionData(c)

	institutions, err := s.banking.Institutions(c.Request.Context(), sessionData.UserID)
	if err != nil {
		respondWithDetail(c, s.logger, http.StatusInternalServerError, err, "Failed to fetch connected institutions")
		return
	}

	c.JSON(http.StatusOK, institutions)
}
