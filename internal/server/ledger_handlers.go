package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thrivebase/thrivebase/internal/banking"
)

// @Summary Account summary
// @Description Every account with current and available totals
// @Tags ledger
// @Produce json
// @Success 200 {object} banking.AccountSummary
// @Router /api/v1/baserow/account-summary [get]
func (s *Server) accountSummary(c *gin.Context) {
	sessionData, _ := GetSessionData(c)

	summary, err := s.banking.Summary(c.Request.Context(), sessionData.UserID)
	if err != nil {
		respondWithDetail(c, s.logger, http.StatusInternalServerError, err, "Failed to fetch account summary")
		return
	}

	c.JSON(http.StatusOK, summary)
}

// @Summary User transactions
// @Tags ledger
// @Produce json
// @Param account_id query string false "Only this account"
// @Success 200 {array} models.Transaction
// @Router /api/v1/baserow/user-transactions [get]
func (s *Server) userTransactions(c *gin.Context) {
	sessionData, _ := GetSessionData(c)

	transactions, err := s.banking.Transactions(c.Request.Context(), sessionData.UserID, c.Query("account_id"))
	if err != nil {
		respondWithDetail(c, s.logger, http.StatusInternalServerError, err, "Failed to fetch transactions")
		return
	}

	c.JSON(http.StatusOK, transactions)
}

// @Summary Store transactions
// @Tags ledger
// @Accept json
// @Produce json
// @Param request body []banking.NewTransaction true "Transactions"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /api/v1/baserow/store-transactions [post]
func (s *Server) storeTransactions(c *gin.Context) {
	sessionData, _ := GetSessionData(c)

	var batch []banking.NewTransaction
	if err := c.ShouldBindJSON(&batch); err != nil {
		respondWithDetail(c, s.logger, http.StatusBadRequest, err, "Invalid transactions")
		return
	}

	n, err := s.banking.StoreTransactions(c.Request.Context(), sessionData.UserID, batch)
	if errors.Is(err, banking.ErrInvalidTransaction) {
		respondWithDetail(c, s.logger, http.StatusBadRequest, err, "Invalid transactions")
		return
	}
	if err != nil {
		respondWithDetail(c, s.logger, http.StatusInternalServerError, err, "Failed to store transactions")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "message": fmt.Sprintf("Stored %d transactions", n)})
}

// @Summary Delete user data
// @Description Deletes the signed in user's stored transactions
// @Tags ledger
// @Produce json
// @Param user_id path string true "User ID (must be the signed in user)"
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Router /api/v1/baserow/user-data/{user_id} [delete]
func (s *Server) deleteUserData(c *gin.Context) {
	sessionData, _ := GetSessionData(c)

	if c.Param("user_id") != sessionData.UserID {
		respondWithDetail(c, s.logger, http.StatusForbidden, nil, "Unauthorized")
		return
	}

	if err := s.banking.DeleteUserData(c.Request.Context(), sessionData.UserID); err != nil {
		respondWithDetail(c, s.logger, http.StatusInternalServerError, err, "Failed to delete user data")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "User data deleted successfully"})
}
