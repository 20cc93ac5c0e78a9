package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	billdomain "github.com/sitewise/rabill/internal/bill/domain"
	"github.com/sitewise/rabill/internal/recompute"
)

type billDeductionsRequest struct {
	MobilizationRecovery decimal.Decimal `json:"mobilization_recovery"`
	MaterialRecovery     decimal.Decimal `json:"material_recovery"`
	Penalty              decimal.Decimal `json:"penalty"`
	PriceAdjustment      decimal.Decimal `json:"price_adjustment"`
	InsuranceRecovery    decimal.Decimal `json:"insurance_recovery"`
	Other                decimal.Decimal `json:"other"`
}

type billInputRequest struct {
	GrossAmount   decimal.Decimal       `json:"gross_amount"`
	GSTRate       decimal.Decimal       `json:"gst_rate"`
	RetentionRate decimal.Decimal       `json:"retention_rate"`
	Deductions    billDeductionsRequest `json:"deductions"`
	MilestoneID   string                `json:"milestone_id,omitempty"`
}

func (r billInputRequest) toDomain() (billdomain.BillInput, error) {
	input := billdomain.BillInput{
		GrossAmount:   r.GrossAmount,
		GSTRate:       r.GSTRate,
		RetentionRate: r.RetentionRate,
		Deductions: billdomain.ManualDeductions{
			MobilizationRecovery: r.Deductions.MobilizationRecovery,
			MaterialRecovery:     r.Deductions.MaterialRecovery,
			Penalty:              r.Deductions.Penalty,
			PriceAdjustment:      r.Deductions.PriceAdjustment,
			InsuranceRecovery:    r.Deductions.InsuranceRecovery,
			Other:                r.Deductions.Other,
		},
	}

	if milestoneID := strings.TrimSpace(r.MilestoneID); milestoneID != "" {
		id, err := snowflake.ParseString(milestoneID)
		if err != nil {
			return billdomain.BillInput{}, newValidationError("milestone_id", "invalid_milestone_id", "invalid milestone_id")
		}
		input.MilestoneID = &id
	}
	return input, nil
}

func (s *Server) PreviewBill(c *gin.Context) {
	var req billInputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	input, err := req.toDomain()
	if err != nil {
		AbortWithError(c, err)
		return
	}

	breakdown := s.billSvc.Preview(c.Request.Context(), input)
	c.JSON(http.StatusOK, gin.H{"data": breakdown})
}

func (s *Server) SubmitBill(c *gin.Context) {
	var req billInputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	input, err := req.toDomain()
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.billSvc.Submit(c.Request.Context(), billdomain.SubmitRequest{Input: input})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": gin.H{
		"bill":      resp.Bill,
		"breakdown": resp.Breakdown,
		"budget":    resp.Budget,
	}})
}

func (s *Server) GetBill(c *gin.Context) {
	bill, err := s.billSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": bill})
}

func (s *Server) ListBills(c *gin.Context) {
	var query struct {
		MilestoneID string `form:"milestone_id"`
		Limit       int    `form:"limit"`
		Offset      int    `form:"offset"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	bills, err := s.billSvc.List(c.Request.Context(), billdomain.ListRequest{
		MilestoneID: strings.TrimSpace(query.MilestoneID),
		Limit:       query.Limit,
		Offset:      query.Offset,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": bills})
}

type openBillSessionRequest struct {
	SessionID string `json:"session_id"`
}

func (s *Server) OpenBillSession(c *gin.Context) {
	var req openBillSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	sessionID := s.debouncer.Open(strings.TrimSpace(req.SessionID), nil)
	c.JSON(http.StatusCreated, gin.H{"data": gin.H{"session_id": sessionID}})
}

// SubmitBillSessionInput records an edit; the recomputation runs only after
// the input stops changing for a full settle window, so the response is an
// acknowledgement, not a result.
func (s *Server) SubmitBillSessionInput(c *gin.Context) {
	var req billInputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	input, err := req.toDomain()
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.debouncer.Submit(c.Param("id"), input); err != nil {
		if err == recompute.ErrSessionNotFound {
			AbortWithError(c, ErrNotFound)
			return
		}
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"data": gin.H{"status": "scheduled"}})
}

func (s *Server) LatestBillSessionResult(c *gin.Context) {
	seq, breakdown, err := s.debouncer.Latest(c.Param("id"))
	if err != nil {
		if err == recompute.ErrSessionNotFound {
			AbortWithError(c, ErrNotFound)
			return
		}
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"seq":       seq,
		"breakdown": breakdown,
	}})
}

func (s *Server) CloseBillSession(c *gin.Context) {
	s.debouncer.Close(c.Param("id"))
	c.Status(http.StatusNoContent)
}
