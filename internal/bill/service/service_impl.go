package service

import (
	"context"
	"encoding/json"

	"github.com/bwmarrin/snowflake"
	"github.com/sitewise/rabill/internal/bill/domain"
	budgetdomain "github.com/sitewise/rabill/internal/budget/domain"
	"github.com/sitewise/rabill/internal/clock"
	"github.com/sitewise/rabill/pkg/db/option"
	"github.com/sitewise/rabill/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	log       *zap.Logger
	calc      domain.Calculator
	budgetSvc budgetdomain.Service
	billRepo  repository.Repository[domain.Bill]
	genID     *snowflake.Node
	clock     clock.Clock
}

type ServiceParams struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Calc      domain.Calculator
	BudgetSvc budgetdomain.Service
	GenID     *snowflake.Node
	Clock     clock.Clock
}

func NewService(p ServiceParams) domain.Service {
	return &Service{
		log:       p.Log.Named("bill.service"),
		calc:      p.Calc,
		budgetSvc: p.BudgetSvc,
		billRepo:  repository.ProvideStore[domain.Bill](p.DB),
		genID:     p.GenID,
		clock:     p.Clock,
	}
}

func (s *Service) Preview(ctx context.Context, input domain.BillInput) domain.BillBreakdown {
	return s.calc.Compute(ctx, input)
}

func (s *Service) Submit(ctx context.Context, req domain.SubmitRequest) (*domain.SubmitResponse, error) {
	input := req.Input
	// Previews tolerate any gross and short-circuit to the zero breakdown;
	// a committed bill must carry real work done.
	if !input.GrossAmount.IsPositive() {
		return nil, domain.ErrInvalidGrossAmount
	}
	input.Deductions = input.Deductions.Coerced()

	breakdown := s.calc.Compute(ctx, input)

	var classification *budgetdomain.Classification
	if input.MilestoneID != nil && *input.MilestoneID != 0 {
		result, err := s.budgetSvc.Classify(ctx, *input.MilestoneID, input.GrossAmount)
		if err != nil {
			return nil, err
		}
		classification = &result
	}

	chargesJSON, err := json.Marshal(breakdown.StatutoryCharges)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	bill := &domain.Bill{
		ID:          s.genID.Generate(),
		MilestoneID: input.MilestoneID,

		GrossAmount:   input.GrossAmount,
		GSTRate:       input.GSTRate,
		RetentionRate: input.RetentionRate,

		MobilizationRecovery: input.Deductions.MobilizationRecovery,
		MaterialRecovery:     input.Deductions.MaterialRecovery,
		Penalty:              input.Deductions.Penalty,
		PriceAdjustment:      input.Deductions.PriceAdjustment,
		InsuranceRecovery:    input.Deductions.InsuranceRecovery,
		OtherDeduction:       input.Deductions.Other,

		GSTAmount:                breakdown.GSTAmount,
		TotalBeforeDeductions:    breakdown.TotalBeforeDeductions,
		StatutoryCharges:         chargesJSON,
		TotalStatutoryDeductions: breakdown.TotalStatutoryDeductions,
		RetentionAmount:          breakdown.RetentionAmount,
		TotalManualDeductions:    breakdown.TotalManualDeductions,
		TotalDeductions:          breakdown.TotalDeductions,
		NetPayable:               breakdown.NetPayable,
		UsedFallback:             breakdown.UsedFallback,

		Status:    domain.BillStatusSubmitted,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.billRepo.Create(ctx, bill); err != nil {
		return nil, err
	}

	s.log.Info("bill submitted",
		zap.String("bill_id", bill.ID.String()),
		zap.String("net_payable", breakdown.NetPayable.String()),
		zap.Bool("used_fallback", breakdown.UsedFallback),
	)

	return &domain.SubmitResponse{
		Bill:      bill,
		Breakdown: breakdown,
		Budget:    classification,
	}, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*domain.Bill, error) {
	billID, err := snowflake.ParseString(id)
	if err != nil {
		return nil, domain.ErrInvalidBillID
	}

	bill, err := s.billRepo.FindOne(ctx, &domain.Bill{ID: billID})
	if err != nil {
		return nil, err
	}
	if bill == nil {
		return nil, domain.ErrBillNotFound
	}
	return bill, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]domain.Bill, error) {
	filter := &domain.Bill{}
	if req.MilestoneID != "" {
		milestoneID, err := snowflake.ParseString(req.MilestoneID)
		if err != nil {
			return nil, domain.ErrInvalidBillID
		}
		filter.MilestoneID = &milestoneID
	}

	limit := req.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := s.billRepo.Find(ctx, filter,
		option.WithOrder("created_at DESC, id DESC"),
		option.WithLimit(limit),
		option.WithOffset(req.Offset),
	)
	if err != nil {
		return nil, err
	}

	bills := make([]domain.Bill, 0, len(rows))
	for _, row := range rows {
		bills = append(bills, *row)
	}
	return bills, nil
}
