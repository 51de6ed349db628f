package bill

import (
	"github.com/praxisware/praxis/internal/bill/service"
	"go.uber.org/fx"
)

var Module = fx.Module("bill.service",
	fx.Provide(service.NewService),
)
