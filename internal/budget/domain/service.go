package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Service interface {
	// Classify grades a proposed bill amount against the milestone's
	// allocated budget. A milestone with no allocation is unconstrained
	// and always grades normal.
	Classify(ctx context.Context, milestoneID snowflake.ID, proposedAmount decimal.Decimal) (Classification, error)

	// RecalculateMilestone rebuilds the milestone's budget snapshot from
	// the current allocation mappings.
	RecalculateMilestone(ctx context.Context, milestoneID snowflake.ID) error

	GetSnapshot(ctx context.Context, milestoneID snowflake.ID) (*MilestoneBudgetSnapshot, error)
}

var (
	ErrInvalidMilestoneID = errors.New("invalid_milestone_id")
)
