package domain

import (
	"context"

	budgetdomain "github.com/sitewise/rabill/internal/budget/domain"
)

// Calculator maps a bill input to its complete financial breakdown.
// The result is structurally complete on every path, fallback included.
type Calculator interface {
	Compute(ctx context.Context, input BillInput) BillBreakdown
}

type Service interface {
	// Preview computes a breakdown without persisting anything.
	Preview(ctx context.Context, input BillInput) BillBreakdown

	// Submit commits the input as an immutable Bill record, classifying it
	// against the selected milestone's budget when one is set.
	Submit(ctx context.Context, req SubmitRequest) (*SubmitResponse, error)

	GetByID(ctx context.Context, id string) (*Bill, error)
	List(ctx context.Context, req ListRequest) ([]Bill, error)
}

type SubmitRequest struct {
	Input BillInput
}

type SubmitResponse struct {
	Bill      *Bill
	Breakdown BillBreakdown

	// Budget is set when the input referenced a milestone.
	Budget *budgetdomain.Classification
}

type ListRequest struct {
	MilestoneID string
	Limit       int
	Offset      int
}
