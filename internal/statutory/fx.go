package statutory

import (
	"github.com/sitewise/rabill/internal/statutory/service"
	"go.uber.org/fx"
)

var Module = fx.Module("statutory.resolver",
	fx.Provide(service.NewResolver),
)
