package notification

import (
	"context"

	"github.com/praxisware/praxis/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("notification",
	fx.Provide(NewNotifier),
)

// NewNotifier wires the AMQP notifier when a broker is configured and a
// log-only notifier otherwise, so development installs work without
// RabbitMQ.
func NewNotifier(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (Notifier, error) {
	if cfg.AMQPURL == "" {
		log.Warn("no AMQP broker configured, notifications are log-only")
		return &LogNotifier{log: log.Named("notification.log")}, nil
	}

	notifier, err := NewAMQPNotifier(cfg.AMQPURL, cfg.AMQPExchange, log)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return notifier.Close()
		},
	})
	return notifier, nil
}

// LogNotifier records sends without delivering anything.
type LogNotifier struct {
	log *zap.Logger
}

func (n *LogNotifier) Send(ctx context.Context, msg Message) error {
	n.log.Info("notification",
		zap.String("kind", string(msg.Kind)),
		zap.String("recipient", msg.Recipient),
	)
	return nil
}
