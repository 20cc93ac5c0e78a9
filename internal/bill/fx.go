package bill

import (
	"github.com/sitewise/rabill/internal/bill/service"
	"go.uber.org/fx"
)

var Module = fx.Module("bill.service",
	fx.Provide(service.NewCalculator),
	fx.Provide(service.NewService),
)
