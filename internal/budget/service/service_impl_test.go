package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	allocationdomain "github.com/sitewise/rabill/internal/allocation/domain"
	"github.com/sitewise/rabill/internal/budget/domain"
	"github.com/sitewise/rabill/internal/clock"
	"github.com/sitewise/rabill/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var budgetTestTime = time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC)

func setupBudgetService(t *testing.T, dsn string) (domain.Service, *gorm.DB, *snowflake.Node) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&allocationdomain.CostItem{},
		&allocationdomain.Mapping{},
		&domain.MilestoneBudgetSnapshot{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := NewService(Params{
		DB:       db,
		Log:      zap.NewNop(),
		Clock:    clock.NewFakeClock(budgetTestTime),
		RatesCfg: &config.RatesConfigHolder{},
	})
	return svc, db, node
}

func seedSnapshot(t *testing.T, db *gorm.DB, milestoneID snowflake.ID, budget string) {
	t.Helper()
	require.NoError(t, db.Create(&domain.MilestoneBudgetSnapshot{
		MilestoneID:     milestoneID,
		AllocatedBudget: decimal.RequireFromString(budget),
	}).Error)
}

func TestClassifyAgainstAllocatedBudget(t *testing.T) {
	svc, db, node := setupBudgetService(t, "file:budget_classify?mode=memory&cache=shared")
	ctx := context.Background()

	milestone := node.Generate()
	seedSnapshot(t, db, milestone, "100000")

	cases := []struct {
		amount string
		status domain.BudgetStatus
	}{
		{"50000", domain.BudgetStatusNormal},
		{"80000", domain.BudgetStatusNormal}, // exactly at the caution threshold
		{"85000", domain.BudgetStatusCaution},
		{"100000", domain.BudgetStatusCaution}, // exactly at budget
		{"120000", domain.BudgetStatusExceeded},
	}
	for _, tc := range cases {
		got, err := svc.Classify(ctx, milestone, decimal.RequireFromString(tc.amount))
		require.NoError(t, err)
		assert.Equal(t, tc.status, got.Status, "amount %s", tc.amount)
		assert.True(t, decimal.RequireFromString("100000").Equal(got.AllocatedBudget))
		assert.NotEmpty(t, got.Message)
	}
}

func TestClassifyZeroBudgetIsUnconstrained(t *testing.T) {
	svc, db, node := setupBudgetService(t, "file:budget_zero?mode=memory&cache=shared")
	ctx := context.Background()

	// no snapshot at all
	got, err := svc.Classify(ctx, node.Generate(), decimal.RequireFromString("999999"))
	require.NoError(t, err)
	assert.Equal(t, domain.BudgetStatusNormal, got.Status)
	assert.True(t, got.AllocatedBudget.IsZero())

	// explicit zero snapshot behaves the same
	milestone := node.Generate()
	seedSnapshot(t, db, milestone, "0")
	got, err = svc.Classify(ctx, milestone, decimal.RequireFromString("999999"))
	require.NoError(t, err)
	assert.Equal(t, domain.BudgetStatusNormal, got.Status)
}

func TestClassifyInvalidMilestone(t *testing.T) {
	svc, _, _ := setupBudgetService(t, "file:budget_invalid?mode=memory&cache=shared")

	_, err := svc.Classify(context.Background(), 0, decimal.RequireFromString("100"))
	assert.ErrorIs(t, err, domain.ErrInvalidMilestoneID)
}

func TestRecalculateMilestoneSumsWeightedAmounts(t *testing.T) {
	svc, db, node := setupBudgetService(t, "file:budget_recalc?mode=memory&cache=shared")
	ctx := context.Background()

	milestone := node.Generate()
	other := node.Generate()

	itemA := node.Generate()
	itemB := node.Generate()
	require.NoError(t, db.Create(&allocationdomain.CostItem{
		ID: itemA, Code: "CIV-001", Amount: decimal.RequireFromString("100000"),
	}).Error)
	require.NoError(t, db.Create(&allocationdomain.CostItem{
		ID: itemB, Code: "ELE-002", Amount: decimal.RequireFromString("40000"),
	}).Error)

	// 30% of 100000 + 50% of 40000 = 50000 for the milestone
	require.NoError(t, db.Create(&allocationdomain.Mapping{
		ID: node.Generate(), CostItemID: itemA, MilestoneID: milestone,
		Percentage: decimal.RequireFromString("30"),
	}).Error)
	require.NoError(t, db.Create(&allocationdomain.Mapping{
		ID: node.Generate(), CostItemID: itemB, MilestoneID: milestone,
		Percentage: decimal.RequireFromString("50"),
	}).Error)
	require.NoError(t, db.Create(&allocationdomain.Mapping{
		ID: node.Generate(), CostItemID: itemA, MilestoneID: other,
		Percentage: decimal.RequireFromString("70"),
	}).Error)

	require.NoError(t, svc.RecalculateMilestone(ctx, milestone))

	snapshot, err := svc.GetSnapshot(ctx, milestone)
	require.NoError(t, err)
	require.NotNil(t, snapshot)
	assert.True(t, decimal.RequireFromString("50000").Equal(snapshot.AllocatedBudget),
		"got %s", snapshot.AllocatedBudget)
	assert.True(t, snapshot.UpdatedAt.Equal(budgetTestTime), "got %s", snapshot.UpdatedAt)

	// recalculating after a mapping change upserts, not duplicates
	require.NoError(t, db.Where("cost_item_id = ? AND milestone_id = ?", itemB, milestone).
		Delete(&allocationdomain.Mapping{}).Error)
	require.NoError(t, svc.RecalculateMilestone(ctx, milestone))

	snapshot, err = svc.GetSnapshot(ctx, milestone)
	require.NoError(t, err)
	require.NotNil(t, snapshot)
	assert.True(t, decimal.RequireFromString("30000").Equal(snapshot.AllocatedBudget),
		"got %s", snapshot.AllocatedBudget)

	var count int64
	require.NoError(t, db.Model(&domain.MilestoneBudgetSnapshot{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRecalculateMilestoneWithoutMappings(t *testing.T) {
	svc, _, node := setupBudgetService(t, "file:budget_empty?mode=memory&cache=shared")
	ctx := context.Background()

	milestone := node.Generate()
	require.NoError(t, svc.RecalculateMilestone(ctx, milestone))

	snapshot, err := svc.GetSnapshot(ctx, milestone)
	require.NoError(t, err)
	require.NotNil(t, snapshot)
	assert.True(t, snapshot.AllocatedBudget.IsZero())
}
