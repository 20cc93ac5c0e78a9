package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// BudgetStatus classifies a proposed bill amount against a milestone budget.
type BudgetStatus string

const (
	BudgetStatusNormal   BudgetStatus = "normal"
	BudgetStatusCaution  BudgetStatus = "caution"
	BudgetStatusExceeded BudgetStatus = "exceeded"
)

// Classification is the guard's verdict. Advisory only, it never blocks a
// submission by itself.
type Classification struct {
	Status          BudgetStatus    `json:"status"`
	Message         string          `json:"message"`
	AllocatedBudget decimal.Decimal `json:"allocated_budget"`
	ProposedAmount  decimal.Decimal `json:"proposed_amount"`
}

// MilestoneBudgetSnapshot is the derived allocated budget of a milestone:
// the sum of cost item amounts weighted by their allocation percentages.
// Recomputed whenever a mapping for the milestone changes.
type MilestoneBudgetSnapshot struct {
	MilestoneID     snowflake.ID    `gorm:"primaryKey"`
	AllocatedBudget decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	UpdatedAt       time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (MilestoneBudgetSnapshot) TableName() string { return "milestone_budget_snapshots" }
