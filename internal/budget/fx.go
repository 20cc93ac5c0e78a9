package budget

import (
	"context"

	"github.com/sitewise/rabill/internal/budget/domain"
	"github.com/sitewise/rabill/internal/budget/service"
	"github.com/sitewise/rabill/internal/events"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("budget.service",
	fx.Provide(service.NewService),
	fx.Invoke(subscribeAllocationChanges),
)

// subscribeAllocationChanges keeps milestone budget snapshots current:
// every allocation mutation marks its milestone dirty.
func subscribeAllocationChanges(bus *events.Bus, svc domain.Service, log *zap.Logger) {
	log = log.Named("budget.subscriber")
	bus.SubscribeMilestoneBudgetDirty(func(ctx context.Context, event events.MilestoneBudgetDirty) {
		if err := svc.RecalculateMilestone(ctx, event.MilestoneID); err != nil {
			log.Error("milestone budget recalculation failed",
				zap.String("milestone_id", event.MilestoneID.String()),
				zap.Error(err),
			)
		}
	})
}
