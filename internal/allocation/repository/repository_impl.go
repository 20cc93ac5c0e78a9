package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/sitewise/rabill/internal/allocation/domain"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTrx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func (r *Repository) CreateMapping(ctx context.Context, mapping *domain.Mapping) error {
	return r.db.WithContext(ctx).Create(mapping).Error
}

func (r *Repository) DeleteMapping(ctx context.Context, id snowflake.ID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Mapping{}).Error
}

func (r *Repository) FindMapping(ctx context.Context, id snowflake.ID) (*domain.Mapping, error) {
	var mapping domain.Mapping
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&mapping).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &mapping, nil
}

func (r *Repository) FindPair(ctx context.Context, costItemID, milestoneID snowflake.ID) (*domain.Mapping, error) {
	var mapping domain.Mapping
	err := r.db.WithContext(ctx).
		Where("cost_item_id = ? AND milestone_id = ?", costItemID, milestoneID).
		First(&mapping).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &mapping, nil
}

func (r *Repository) ListByItem(ctx context.Context, costItemID snowflake.ID) ([]domain.Mapping, error) {
	var mappings []domain.Mapping
	err := r.db.WithContext(ctx).
		Where("cost_item_id = ?", costItemID).
		Order("created_at ASC, id ASC").
		Find(&mappings).Error
	return mappings, err
}

// SumPercentageByItem returns the item's allocated percentage total.
func (r *Repository) SumPercentageByItem(ctx context.Context, costItemID snowflake.ID) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(percentage), 0)
		 FROM milestone_allocations
		 WHERE cost_item_id = ?`,
		costItemID,
	).Scan(&sum).Error
	if err != nil {
		return decimal.Zero, err
	}
	return sum, nil
}

func (r *Repository) CreateCostItem(ctx context.Context, item *domain.CostItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *Repository) FindCostItem(ctx context.Context, id snowflake.ID) (*domain.CostItem, error) {
	var item domain.CostItem
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}
