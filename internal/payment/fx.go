package payment

import (
	"github.com/praxisware/praxis/internal/payment/domain"
	"github.com/praxisware/praxis/internal/payment/service"
	"github.com/praxisware/praxis/internal/payment/stripe"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(
		fx.Annotate(stripe.NewProcessor, fx.As(new(domain.Processor))),
	),
	fx.Provide(service.NewService),
)
