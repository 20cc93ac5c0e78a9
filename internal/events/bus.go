package events

import (
	"context"
	"sync"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// MilestoneBudgetDirty signals that the allocated budget of a milestone must
// be recomputed because its allocation mappings changed.
type MilestoneBudgetDirty struct {
	MilestoneID snowflake.ID
}

// Publisher is the side of the bus the allocation ledger writes to.
type Publisher interface {
	PublishMilestoneBudgetDirty(ctx context.Context, milestoneID snowflake.ID)
}

type MilestoneBudgetDirtyHandler func(ctx context.Context, event MilestoneBudgetDirty)

// Bus is a small in-process pub/sub. Dispatch is synchronous so a mutation's
// derived snapshot is current by the time the call returns.
type Bus struct {
	mu       sync.RWMutex
	log      *zap.Logger
	handlers []MilestoneBudgetDirtyHandler
}

func NewBus(log *zap.Logger) *Bus {
	return &Bus{log: log.Named("events")}
}

func (b *Bus) SubscribeMilestoneBudgetDirty(handler MilestoneBudgetDirtyHandler) {
	if handler == nil {
		return
	}
	b.mu.Lock()
	b.handlers = append(b.handlers, handler)
	b.mu.Unlock()
}

func (b *Bus) PublishMilestoneBudgetDirty(ctx context.Context, milestoneID snowflake.ID) {
	b.mu.RLock()
	handlers := make([]MilestoneBudgetDirtyHandler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	event := MilestoneBudgetDirty{MilestoneID: milestoneID}
	for _, handler := range handlers {
		handler(ctx, event)
	}
}

var Module = fx.Module("events",
	fx.Provide(NewBus),
	fx.Provide(func(b *Bus) Publisher { return b }),
)
