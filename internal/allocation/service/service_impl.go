package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sitewise/rabill/internal/allocation/domain"
	"github.com/sitewise/rabill/internal/allocation/repository"
	"github.com/sitewise/rabill/internal/clock"
	"github.com/sitewise/rabill/internal/events"
	obsmetrics "github.com/sitewise/rabill/internal/observability/metrics"
	"github.com/sitewise/rabill/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var hundred = decimal.NewFromInt(100)

type Service struct {
	log    *zap.Logger
	repo   *repository.Repository
	genID  *snowflake.Node
	clock  clock.Clock
	locker itemLocker
	bus    events.Publisher
}

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Bus   events.Publisher
	Redis *redis.Client `optional:"true"`
}

func NewService(p Params) domain.Service {
	var locker itemLocker
	if l := newRedisItemLocker(p.Redis); l != nil {
		locker = l
	} else {
		locker = newMemoryItemLocker()
	}

	return &Service{
		log:    p.Log.Named("allocation.service"),
		repo:   repository.NewRepository(p.DB),
		genID:  p.GenID,
		clock:  p.Clock,
		locker: locker,
		bus:    p.Bus,
	}
}

func (s *Service) AddMapping(ctx context.Context, req domain.AddMappingRequest) (*domain.Mapping, error) {
	billingMetrics := obsmetrics.Billing()

	itemID, err := parseID(req.CostItemID)
	if err != nil {
		return nil, domain.ErrInvalidID
	}
	milestoneID, err := parseID(req.MilestoneID)
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	if !req.Percentage.IsPositive() || req.Percentage.GreaterThan(hundred) {
		billingMetrics.IncAllocationRejected(obsmetrics.AllocationRejectReasonInvalidPercentage)
		return nil, domain.ErrInvalidPercentage
	}

	item, err := s.repo.FindCostItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrCostItemNotFound
	}

	release, err := s.locker.Lock(ctx, itemLockKey(itemID))
	if err != nil {
		return nil, err
	}
	defer release()

	existing, err := s.repo.FindPair(ctx, itemID, milestoneID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		billingMetrics.IncAllocationRejected(obsmetrics.AllocationRejectReasonDuplicate)
		return nil, domain.ErrDuplicateMilestone
	}

	allocated, err := s.repo.SumPercentageByItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	remaining := hundred.Sub(allocated)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	if req.Percentage.GreaterThan(remaining) {
		billingMetrics.IncAllocationRejected(obsmetrics.AllocationRejectReasonExceedsRemaining)
		return nil, &domain.ExceedsRemainingError{
			Requested: req.Percentage,
			Remaining: remaining,
		}
	}

	now := s.clock.Now()
	mapping := &domain.Mapping{
		ID:          s.genID.Generate(),
		CostItemID:  itemID,
		MilestoneID: milestoneID,
		Percentage:  req.Percentage,
		CreatedAt:   now,
	}
	if err := s.repo.CreateMapping(ctx, mapping); err != nil {
		// The unique index is the backstop when another replica won the
		// same pair between our existence check and the insert.
		if db.IsDuplicateKeyErr(err) {
			billingMetrics.IncAllocationRejected(obsmetrics.AllocationRejectReasonDuplicate)
			return nil, domain.ErrDuplicateMilestone
		}
		return nil, err
	}

	s.log.Info("allocation mapping added",
		zap.String("cost_item_id", itemID.String()),
		zap.String("milestone_id", milestoneID.String()),
		zap.String("percentage", req.Percentage.String()),
	)
	s.bus.PublishMilestoneBudgetDirty(ctx, milestoneID)

	return mapping, nil
}

func (s *Service) RemoveMapping(ctx context.Context, mappingID string) error {
	id, err := parseID(mappingID)
	if err != nil {
		return domain.ErrInvalidID
	}

	mapping, err := s.repo.FindMapping(ctx, id)
	if err != nil {
		return err
	}
	if mapping == nil {
		return domain.ErrMappingNotFound
	}

	release, err := s.locker.Lock(ctx, itemLockKey(mapping.CostItemID))
	if err != nil {
		return err
	}
	defer release()

	if err := s.repo.DeleteMapping(ctx, id); err != nil {
		return err
	}

	s.log.Info("allocation mapping removed",
		zap.String("mapping_id", id.String()),
		zap.String("milestone_id", mapping.MilestoneID.String()),
	)
	s.bus.PublishMilestoneBudgetDirty(ctx, mapping.MilestoneID)

	return nil
}

func (s *Service) RemainingPercentage(ctx context.Context, costItemID string) (decimal.Decimal, error) {
	itemID, err := parseID(costItemID)
	if err != nil {
		return decimal.Zero, domain.ErrInvalidID
	}

	allocated, err := s.repo.SumPercentageByItem(ctx, itemID)
	if err != nil {
		return decimal.Zero, err
	}
	remaining := hundred.Sub(allocated)
	if remaining.IsNegative() {
		return decimal.Zero, nil
	}
	return remaining, nil
}

func (s *Service) ListMappings(ctx context.Context, costItemID string) ([]domain.Mapping, error) {
	itemID, err := parseID(costItemID)
	if err != nil {
		return nil, domain.ErrInvalidID
	}
	return s.repo.ListByItem(ctx, itemID)
}

func (s *Service) CreateCostItem(ctx context.Context, req domain.CreateCostItemRequest) (*domain.CostItem, error) {
	if req.Code == "" {
		return nil, domain.ErrInvalidID
	}
	amount := req.Amount
	if amount.IsNegative() {
		amount = decimal.Zero
	}

	now := s.clock.Now()
	item := &domain.CostItem{
		ID:          s.genID.Generate(),
		Code:        req.Code,
		Description: req.Description,
		Amount:      amount,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.CreateCostItem(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *Service) GetCostItem(ctx context.Context, costItemID string) (*domain.CostItem, error) {
	itemID, err := parseID(costItemID)
	if err != nil {
		return nil, domain.ErrInvalidID
	}
	item, err := s.repo.FindCostItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrCostItemNotFound
	}
	return item, nil
}

func itemLockKey(itemID snowflake.ID) string {
	return "rabill:allocation:item:" + itemID.String()
}

func parseID(raw string) (snowflake.ID, error) {
	return snowflake.ParseString(raw)
}
