package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// CostItem is a BOQ (bill of quantities) line whose value gets fractionally
// allocated across schedule milestones.
type CostItem struct {
	ID          snowflake.ID    `gorm:"primaryKey"`
	Code        string          `gorm:"type:text;not null"`
	Description string          `gorm:"type:text"`
	Amount      decimal.Decimal `gorm:"type:numeric(18,2);not null"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (CostItem) TableName() string { return "cost_items" }

// Mapping allocates a percentage of one cost item to one milestone.
// At most one mapping per item-milestone pair; re-allocating requires
// delete-then-add. For a fixed item the percentages never sum past 100.
type Mapping struct {
	ID          snowflake.ID    `gorm:"primaryKey"`
	CostItemID  snowflake.ID    `gorm:"column:cost_item_id;not null;uniqueIndex:idx_item_milestone"`
	MilestoneID snowflake.ID    `gorm:"column:milestone_id;not null;uniqueIndex:idx_item_milestone;index"`
	Percentage  decimal.Decimal `gorm:"type:numeric(7,4);not null"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Mapping) TableName() string { return "milestone_allocations" }
