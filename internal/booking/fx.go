package booking

import (
	"github.com/praxisware/praxis/internal/booking/service"
	"go.uber.org/fx"
)

var Module = fx.Module("booking.service",
	fx.Provide(service.NewService),
)
