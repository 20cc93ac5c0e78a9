// Package domain describes the statutory charge schedule consumed during
// bill computation. Schedules are sourced from the rule service per
// computation and never persisted here.
package domain

import "github.com/shopspring/decimal"

// ChargeCategory tells which group of the schedule a charge belongs to.
type ChargeCategory string

const (
	ChargeCategoryDeduction ChargeCategory = "deduction"
	ChargeCategoryLevy      ChargeCategory = "levy"
	ChargeCategoryRecovery  ChargeCategory = "recovery"
)

// Charge is a single named statutory line (withholding tax, welfare cess, ...).
type Charge struct {
	Code             string          `json:"code"`
	Name             string          `json:"name"`
	RatePercentage   decimal.Decimal `json:"rate_percentage"`
	Basis            string          `json:"basis"`
	CalculatedAmount decimal.Decimal `json:"calculated_amount"`
	Category         ChargeCategory  `json:"category"`
}

// ResolveRequest carries the financial inputs the rule service prices against.
type ResolveRequest struct {
	GrossAmount         decimal.Decimal
	GSTPercentage       decimal.Decimal
	RetentionPercentage decimal.Decimal
	OtherDeductions     decimal.Decimal
	AdvancesRecovery    decimal.Decimal
}

// Result is the rule service's complete answer for one computation.
type Result struct {
	GSTAmount                decimal.Decimal
	TotalBeforeDeductions    decimal.Decimal
	Deductions               []Charge
	Levies                   []Charge
	Recoveries               []Charge
	TotalStatutoryDeductions decimal.Decimal
	RetentionAmount          decimal.Decimal
	TotalDeductions          decimal.Decimal
	NetPayable               decimal.Decimal

	// FromCache marks a result served from the last-good schedule cache
	// after a transport failure.
	FromCache bool
}

// FlattenedCharges returns deductions, levies and recoveries concatenated in
// the order the rule service returned them.
func (r *Result) FlattenedCharges() []Charge {
	out := make([]Charge, 0, len(r.Deductions)+len(r.Levies)+len(r.Recoveries))
	out = append(out, r.Deductions...)
	out = append(out, r.Levies...)
	out = append(out, r.Recoveries...)
	return out
}

// CacheKey identifies a schedule by its full rate tuple, so a cached result
// is only ever replayed for identical inputs.
func (req ResolveRequest) CacheKey() string {
	return req.GrossAmount.String() + "|" +
		req.GSTPercentage.String() + "|" +
		req.RetentionPercentage.String() + "|" +
		req.OtherDeductions.String() + "|" +
		req.AdvancesRecovery.String()
}
