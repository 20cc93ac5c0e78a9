package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	statutorydomain "github.com/sitewise/rabill/internal/statutory/domain"
	"gorm.io/datatypes"
)

// BillStatus tracks the lifecycle of a persisted running-account bill.
// Submitted bills are immutable.
type BillStatus string

const (
	BillStatusSubmitted BillStatus = "submitted"
)

// ManualDeductions are the user-entered deduction fields of a submission.
// Values are coerced to non-negative at the boundary; a malformed field
// never aborts a computation, it contributes zero.
type ManualDeductions struct {
	MobilizationRecovery decimal.Decimal `json:"mobilization_recovery"`
	MaterialRecovery     decimal.Decimal `json:"material_recovery"`
	Penalty              decimal.Decimal `json:"penalty"`
	PriceAdjustment      decimal.Decimal `json:"price_adjustment"`
	InsuranceRecovery    decimal.Decimal `json:"insurance_recovery"`
	Other                decimal.Decimal `json:"other"`
}

// Coerced returns a copy with every negative field floored to zero.
func (m ManualDeductions) Coerced() ManualDeductions {
	return ManualDeductions{
		MobilizationRecovery: nonNegative(m.MobilizationRecovery),
		MaterialRecovery:     nonNegative(m.MaterialRecovery),
		Penalty:              nonNegative(m.Penalty),
		PriceAdjustment:      nonNegative(m.PriceAdjustment),
		InsuranceRecovery:    nonNegative(m.InsuranceRecovery),
		Other:                nonNegative(m.Other),
	}
}

// Total sums the coerced fields.
func (m ManualDeductions) Total() decimal.Decimal {
	c := m.Coerced()
	return c.MobilizationRecovery.
		Add(c.MaterialRecovery).
		Add(c.Penalty).
		Add(c.PriceAdjustment).
		Add(c.InsuranceRecovery).
		Add(c.Other)
}

// AdvancesRecovery is the mobilization+material subtotal the rule service
// prices advances against.
func (m ManualDeductions) AdvancesRecovery() decimal.Decimal {
	c := m.Coerced()
	return c.MobilizationRecovery.Add(c.MaterialRecovery)
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// BillInput is one bill-edit's financially relevant fields. It is mutated
// only by the submitting user before commit.
type BillInput struct {
	GrossAmount   decimal.Decimal `json:"gross_amount"`
	GSTRate       decimal.Decimal `json:"gst_rate"`
	RetentionRate decimal.Decimal `json:"retention_rate"`

	Deductions ManualDeductions `json:"deductions"`

	MilestoneID *snowflake.ID `json:"milestone_id,omitempty"`
}

// Warning codes surfaced on a breakdown. Non-fatal by definition.
const (
	WarningStatutoryRulesUnavailable = "statutory_rules_unavailable"
	WarningStatutoryRulesFromCache   = "statutory_rules_from_cache"
	WarningNegativeNetPayable        = "negative_net_payable"
)

// BillBreakdown is the complete derived financial picture of a BillInput.
// It is never stored apart from the input it was computed from.
//
// Invariants:
//
//	NetPayable      = TotalBeforeDeductions - TotalDeductions
//	TotalDeductions = TotalStatutoryDeductions + RetentionAmount + TotalManualDeductions
type BillBreakdown struct {
	GSTAmount                decimal.Decimal          `json:"gst_amount"`
	TotalBeforeDeductions    decimal.Decimal          `json:"total_before_deductions"`
	StatutoryCharges         []statutorydomain.Charge `json:"statutory_charges"`
	TotalStatutoryDeductions decimal.Decimal          `json:"total_statutory_deductions"`
	RetentionAmount          decimal.Decimal          `json:"retention_amount"`
	TotalManualDeductions    decimal.Decimal          `json:"total_manual_deductions"`
	TotalDeductions          decimal.Decimal          `json:"total_deductions"`
	NetPayable               decimal.Decimal          `json:"net_payable"`

	UsedFallback bool     `json:"used_fallback"`
	Warnings     []string `json:"warnings,omitempty"`
}

// ZeroBreakdown is the structurally complete all-zero result for gross <= 0.
func ZeroBreakdown() BillBreakdown {
	return BillBreakdown{
		GSTAmount:                decimal.Zero,
		TotalBeforeDeductions:    decimal.Zero,
		StatutoryCharges:         []statutorydomain.Charge{},
		TotalStatutoryDeductions: decimal.Zero,
		RetentionAmount:          decimal.Zero,
		TotalManualDeductions:    decimal.Zero,
		TotalDeductions:          decimal.Zero,
		NetPayable:               decimal.Zero,
	}
}

// Bill is a committed submission: the input plus the breakdown it was
// accepted with, frozen at submit time.
type Bill struct {
	ID          snowflake.ID  `gorm:"primaryKey"`
	MilestoneID *snowflake.ID `gorm:"index"`

	GrossAmount   decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	GSTRate       decimal.Decimal `gorm:"type:numeric(7,4);not null"`
	RetentionRate decimal.Decimal `gorm:"type:numeric(7,4);not null"`

	MobilizationRecovery decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	MaterialRecovery     decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	Penalty              decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	PriceAdjustment      decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	InsuranceRecovery    decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	OtherDeduction       decimal.Decimal `gorm:"column:other_deduction;type:numeric(18,2);not null"`

	GSTAmount                decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	TotalBeforeDeductions    decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	StatutoryCharges         datatypes.JSON  `gorm:"column:statutory_charges"`
	TotalStatutoryDeductions decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	RetentionAmount          decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	TotalManualDeductions    decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	TotalDeductions          decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	NetPayable               decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	UsedFallback             bool            `gorm:"not null;default:false"`

	Status BillStatus `gorm:"type:text;not null"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Bill) TableName() string { return "ra_bills" }
