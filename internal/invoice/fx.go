package invoice

import (
	"github.com/praxisware/praxis/internal/invoice/render"
	"github.com/praxisware/praxis/internal/invoice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice.service",
	fx.Provide(render.NewRenderer),
	fx.Provide(render.NewLogStore),
	fx.Provide(service.NewService),
)
