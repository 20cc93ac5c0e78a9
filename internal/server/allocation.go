package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	allocationdomain "github.com/sitewise/rabill/internal/allocation/domain"
)

type createCostItemRequest struct {
	Code        string          `json:"code"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

type addAllocationRequest struct {
	MilestoneID string          `json:"milestone_id"`
	Percentage  decimal.Decimal `json:"percentage"`
}

func (s *Server) CreateCostItem(c *gin.Context) {
	var req createCostItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		AbortWithError(c, newValidationError("code", "required", "code is required"))
		return
	}

	item, err := s.allocationSvc.CreateCostItem(c.Request.Context(), allocationdomain.CreateCostItemRequest{
		Code:        strings.TrimSpace(req.Code),
		Description: strings.TrimSpace(req.Description),
		Amount:      req.Amount,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": item})
}

func (s *Server) GetCostItem(c *gin.Context) {
	item, err := s.allocationSvc.GetCostItem(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) AddAllocation(c *gin.Context) {
	var req addAllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	mapping, err := s.allocationSvc.AddMapping(c.Request.Context(), allocationdomain.AddMappingRequest{
		CostItemID:  c.Param("id"),
		MilestoneID: strings.TrimSpace(req.MilestoneID),
		Percentage:  req.Percentage,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": mapping})
}

func (s *Server) ListAllocations(c *gin.Context) {
	costItemID := c.Param("id")

	mappings, err := s.allocationSvc.ListMappings(c.Request.Context(), costItemID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	remaining, err := s.allocationSvc.RemainingPercentage(c.Request.Context(), costItemID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"mappings":             mappings,
		"remaining_percentage": remaining,
	}})
}

func (s *Server) RemoveAllocation(c *gin.Context) {
	if err := s.allocationSvc.RemoveMapping(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
