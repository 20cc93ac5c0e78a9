package service

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/sitewise/rabill/internal/bill/domain"
	obsmetrics "github.com/sitewise/rabill/internal/observability/metrics"
	statutorydomain "github.com/sitewise/rabill/internal/statutory/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var hundred = decimal.NewFromInt(100)

// Calculator derives the complete financial breakdown of a bill input.
// When the rule service cannot be reached it falls back to the local
// formula, so a computation never fails outright.
type Calculator struct {
	log      *zap.Logger
	resolver statutorydomain.Resolver
}

type CalculatorParams struct {
	fx.In

	Log      *zap.Logger
	Resolver statutorydomain.Resolver
}

func NewCalculator(p CalculatorParams) domain.Calculator {
	return &Calculator{
		log:      p.Log.Named("bill.calculator"),
		resolver: p.Resolver,
	}
}

func (c *Calculator) Compute(ctx context.Context, input domain.BillInput) domain.BillBreakdown {
	if !input.GrossAmount.IsPositive() {
		return domain.ZeroBreakdown()
	}

	deductions := input.Deductions.Coerced()
	manualTotal := deductions.Total()

	result, err := c.resolver.Resolve(ctx, statutorydomain.ResolveRequest{
		GrossAmount:         input.GrossAmount,
		GSTPercentage:       input.GSTRate,
		RetentionPercentage: input.RetentionRate,
		OtherDeductions:     manualTotal,
		AdvancesRecovery:    deductions.AdvancesRecovery(),
	})
	if err != nil {
		c.log.Warn("statutory resolution failed, using fallback formula", zap.Error(err))
		obsmetrics.Billing().IncFallbackComputation()
		return c.fallback(input, manualTotal)
	}

	breakdown := domain.BillBreakdown{
		GSTAmount:                result.GSTAmount,
		TotalBeforeDeductions:    result.TotalBeforeDeductions,
		StatutoryCharges:         result.FlattenedCharges(),
		TotalStatutoryDeductions: result.TotalStatutoryDeductions,
		RetentionAmount:          result.RetentionAmount,
		TotalManualDeductions:    manualTotal,
		TotalDeductions:          result.TotalDeductions,
		NetPayable:               result.NetPayable,
	}
	if result.FromCache {
		breakdown.Warnings = append(breakdown.Warnings, domain.WarningStatutoryRulesFromCache)
	}
	return flagNegative(breakdown)
}

// fallback applies the local statutory-free formula:
//
//	gst       = gross * gstRate/100
//	total     = gross + gst
//	retention = gross * retentionRate/100
//	net       = total - (retention + manual)
func (c *Calculator) fallback(input domain.BillInput, manualTotal decimal.Decimal) domain.BillBreakdown {
	gst := input.GrossAmount.Mul(input.GSTRate).Div(hundred)
	total := input.GrossAmount.Add(gst)
	retention := input.GrossAmount.Mul(input.RetentionRate).Div(hundred)
	totalDeductions := retention.Add(manualTotal)

	breakdown := domain.BillBreakdown{
		GSTAmount:                gst,
		TotalBeforeDeductions:    total,
		StatutoryCharges:         []statutorydomain.Charge{},
		TotalStatutoryDeductions: decimal.Zero,
		RetentionAmount:          retention,
		TotalManualDeductions:    manualTotal,
		TotalDeductions:          totalDeductions,
		NetPayable:               total.Sub(totalDeductions),
		UsedFallback:             true,
		Warnings:                 []string{domain.WarningStatutoryRulesUnavailable},
	}
	return flagNegative(breakdown)
}

// flagNegative surfaces a negative net payable instead of clamping it: the
// figure stays truthful and the caller decides how to present it.
func flagNegative(b domain.BillBreakdown) domain.BillBreakdown {
	if b.NetPayable.IsNegative() {
		b.Warnings = append(b.Warnings, domain.WarningNegativeNetPayable)
	}
	return b
}
