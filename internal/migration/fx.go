package migration

import (
	allocationdomain "github.com/sitewise/rabill/internal/allocation/domain"
	billdomain "github.com/sitewise/rabill/internal/bill/domain"
	budgetdomain "github.com/sitewise/rabill/internal/budget/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// Module creates the core tables on startup so the service is usable out
// of the box for local and self-hosted environments.
var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB) error {
		return conn.AutoMigrate(
			&billdomain.Bill{},
			&allocationdomain.CostItem{},
			&allocationdomain.Mapping{},
			&budgetdomain.MilestoneBudgetSnapshot{},
		)
	}),
)
