package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	ledgerdomain "github.com/smallbiznis/tapcoin/internal/ledger/domain"
)

type tapRequest struct {
	UserID int64 `json:"user_id"`
}

// GetUser creates the ledger on first contact, so the welcome bonus is
// visible from the very first screen.
func (s *Server) GetUser(c *gin.Context) {
	userID, err := parsePositiveInt64(c.Param("user_id"))
	if err != nil {
		AbortWithError(c, ledgerdomain.ErrInvalidUser)
		return
	}
	c.Set(contextUserIDKey, strconv.FormatInt(userID, 10))

	snapshot, err := s.ledgerSvc.Ensure(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": snapshot})
}

func (s *Server) Tap(c *gin.Context) {
	userID := c.GetInt64(contextTapUserKey)

	result, err := s.ledgerSvc.Tap(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}
