package recompute

import (
	billdomain "github.com/sitewise/rabill/internal/bill/domain"
	"github.com/sitewise/rabill/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Calc   billdomain.Calculator
	Config config.Config
	Log    *zap.Logger
}

func NewFromConfig(p Params) *Debouncer {
	return New(p.Calc, Config{SettleDelay: p.Config.RecomputeSettleDelay}, p.Log)
}

var Module = fx.Module("recompute",
	fx.Provide(NewFromConfig),
)
