package calendar

import (
	"github.com/praxisware/praxis/internal/calendar/external"
	"github.com/praxisware/praxis/internal/calendar/service"
	"go.uber.org/fx"
)

var Module = fx.Module("calendar.service",
	fx.Provide(external.NewLogCalendar),
	fx.Provide(service.NewService),
)
