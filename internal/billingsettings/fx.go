package billingsettings

import (
	"github.com/praxisware/praxis/internal/billingsettings/service"
	"go.uber.org/fx"
)

var Module = fx.Module("billingsettings.service",
	fx.Provide(service.NewService),
)
