package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	allocationdomain "github.com/sitewise/rabill/internal/allocation/domain"
	billdomain "github.com/sitewise/rabill/internal/bill/domain"
	budgetdomain "github.com/sitewise/rabill/internal/budget/domain"
	statutorydomain "github.com/sitewise/rabill/internal/statutory/domain"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type      string            `json:"type"`
	Message   string            `json:"message"`
	Remaining string            `json:"remaining_percentage,omitempty"`
	Errors    []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrInternal       = errors.New("internal_error")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	var validationErrs *ValidationErrors
	if errors.As(err, &validationErrs) {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  validationErrs.Errors,
		}
	}

	var exceeds *allocationdomain.ExceedsRemainingError
	if errors.As(err, &exceeds) {
		return http.StatusUnprocessableEntity, errorPayload{
			Type:      "allocation_error",
			Message:   exceeds.Error(),
			Remaining: exceeds.Remaining.String(),
		}
	}

	switch {
	case errors.Is(err, allocationdomain.ErrDuplicateMilestone):
		return http.StatusConflict, errorPayload{Type: "allocation_error", Message: err.Error()}
	case errors.Is(err, allocationdomain.ErrInvalidPercentage):
		return http.StatusBadRequest, errorPayload{Type: "allocation_error", Message: err.Error()}
	case errors.Is(err, allocationdomain.ErrMappingNotFound),
		errors.Is(err, allocationdomain.ErrCostItemNotFound),
		errors.Is(err, billdomain.ErrBillNotFound),
		errors.Is(err, ErrNotFound):
		return http.StatusNotFound, errorPayload{Type: "not_found", Message: err.Error()}
	case errors.Is(err, allocationdomain.ErrInvalidID),
		errors.Is(err, billdomain.ErrInvalidBillID),
		errors.Is(err, billdomain.ErrInvalidGrossAmount),
		errors.Is(err, budgetdomain.ErrInvalidMilestoneID),
		errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, errorPayload{Type: "invalid_request", Message: err.Error()}
	case errors.Is(err, statutorydomain.ErrRuleServiceUnavailable):
		// Fallback handles this inside the calculator; reaching here means
		// a caller surfaced it directly.
		return http.StatusServiceUnavailable, errorPayload{Type: "rule_service", Message: err.Error()}
	}

	return http.StatusInternalServerError, errorPayload{Type: "internal_error", Message: "internal error"}
}
