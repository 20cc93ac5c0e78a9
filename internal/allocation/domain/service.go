package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

type Service interface {
	// AddMapping allocates percentage of a cost item to a milestone after
	// validating the (0,100] range, pair uniqueness and remaining headroom.
	// The remaining-headroom check is serialized per item.
	AddMapping(ctx context.Context, req AddMappingRequest) (*Mapping, error)

	// RemoveMapping deletes one mapping. Mappings are never auto-merged;
	// this is the only way to free headroom.
	RemoveMapping(ctx context.Context, mappingID string) error

	// RemainingPercentage returns 100 minus the item's allocated sum,
	// floored at zero.
	RemainingPercentage(ctx context.Context, costItemID string) (decimal.Decimal, error)

	ListMappings(ctx context.Context, costItemID string) ([]Mapping, error)

	CreateCostItem(ctx context.Context, req CreateCostItemRequest) (*CostItem, error)
	GetCostItem(ctx context.Context, costItemID string) (*CostItem, error)
}

type AddMappingRequest struct {
	CostItemID  string
	MilestoneID string
	Percentage  decimal.Decimal
}

type CreateCostItemRequest struct {
	Code        string
	Description string
	Amount      decimal.Decimal
}
