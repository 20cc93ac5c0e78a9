package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/sitewise/rabill/internal/budget/domain"
	"github.com/sitewise/rabill/internal/clock"
	"github.com/sitewise/rabill/internal/config"
	obsmetrics "github.com/sitewise/rabill/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	ratesCfg *config.RatesConfigHolder
}

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	RatesCfg *config.RatesConfigHolder
}

func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("budget.service"),
		clock:    p.Clock,
		ratesCfg: p.RatesCfg,
	}
}

func (s *Service) Classify(ctx context.Context, milestoneID snowflake.ID, proposedAmount decimal.Decimal) (domain.Classification, error) {
	if milestoneID == 0 {
		return domain.Classification{}, domain.ErrInvalidMilestoneID
	}

	snapshot, err := s.GetSnapshot(ctx, milestoneID)
	if err != nil {
		return domain.Classification{}, err
	}

	budget := decimal.Zero
	if snapshot != nil {
		budget = snapshot.AllocatedBudget
	}

	classification := s.classify(budget, proposedAmount)
	obsmetrics.Billing().IncBudgetClassification(string(classification.Status))
	return classification, nil
}

// classify grades amount against budget. An unallocated milestone imposes no
// constraint, so zero budget always grades normal.
func (s *Service) classify(budget, amount decimal.Decimal) domain.Classification {
	out := domain.Classification{
		AllocatedBudget: budget,
		ProposedAmount:  amount,
	}

	if budget.IsPositive() && amount.GreaterThan(budget) {
		out.Status = domain.BudgetStatusExceeded
		out.Message = fmt.Sprintf("proposed amount %s exceeds the milestone budget %s",
			amount.StringFixed(2), budget.StringFixed(2))
		return out
	}

	threshold := decimal.NewFromFloat(s.ratesCfg.Current().CautionThreshold)
	if budget.IsPositive() && amount.GreaterThan(budget.Mul(threshold)) {
		out.Status = domain.BudgetStatusCaution
		out.Message = fmt.Sprintf("proposed amount %s is above %s%% of the milestone budget %s",
			amount.StringFixed(2), threshold.Mul(hundred).StringFixed(0), budget.StringFixed(2))
		return out
	}

	out.Status = domain.BudgetStatusNormal
	out.Message = "within budget"
	return out
}

func (s *Service) RecalculateMilestone(ctx context.Context, milestoneID snowflake.ID) error {
	if milestoneID == 0 {
		return domain.ErrInvalidMilestoneID
	}

	var allocated decimal.Decimal
	err := s.db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(ci.amount * ma.percentage / 100.0), 0)
		 FROM milestone_allocations ma
		 JOIN cost_items ci ON ci.id = ma.cost_item_id
		 WHERE ma.milestone_id = ?`,
		milestoneID,
	).Scan(&allocated).Error
	if err != nil {
		return err
	}

	snapshot := domain.MilestoneBudgetSnapshot{
		MilestoneID:     milestoneID,
		AllocatedBudget: allocated,
		UpdatedAt:       s.clock.Now(),
	}
	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "milestone_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"allocated_budget", "updated_at"}),
		}).
		Create(&snapshot).Error; err != nil {
		return err
	}

	s.log.Debug("milestone budget snapshot recalculated",
		zap.String("milestone_id", milestoneID.String()),
		zap.String("allocated_budget", allocated.String()),
	)
	return nil
}

func (s *Service) GetSnapshot(ctx context.Context, milestoneID snowflake.ID) (*domain.MilestoneBudgetSnapshot, error) {
	var snapshot domain.MilestoneBudgetSnapshot
	err := s.db.WithContext(ctx).
		Where("milestone_id = ?", milestoneID).
		First(&snapshot).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &snapshot, nil
}

var hundred = decimal.NewFromInt(100)
