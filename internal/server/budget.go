package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	budgetdomain "github.com/sitewise/rabill/internal/budget/domain"
)

// CheckMilestoneBudget grades a proposed amount against the milestone's
// allocated budget without persisting anything.
func (s *Server) CheckMilestoneBudget(c *gin.Context) {
	milestoneID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, budgetdomain.ErrInvalidMilestoneID)
		return
	}

	rawAmount := strings.TrimSpace(c.Query("amount"))
	if rawAmount == "" {
		AbortWithError(c, newValidationError("amount", "required", "amount is required"))
		return
	}
	amount, err := decimal.NewFromString(rawAmount)
	if err != nil {
		AbortWithError(c, newValidationError("amount", "invalid_amount", "invalid amount"))
		return
	}

	classification, err := s.budgetSvc.Classify(c.Request.Context(), milestoneID, amount)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": classification})
}

func (s *Server) GetMilestoneBudget(c *gin.Context) {
	milestoneID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, budgetdomain.ErrInvalidMilestoneID)
		return
	}

	snapshot, err := s.budgetSvc.GetSnapshot(c.Request.Context(), milestoneID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if snapshot == nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": snapshot})
}
