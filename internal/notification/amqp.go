package notification

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// AMQPNotifier publishes notification jobs onto a topic exchange; a
// separate mailer consumes and renders them. Routing key is
// "notification.<kind>".
type AMQPNotifier struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	log      *zap.Logger
}

func NewAMQPNotifier(url, exchange string, log *zap.Logger) (*AMQPNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQPNotifier{conn: conn, ch: ch, exchange: exchange, log: log.Named("notification.amqp")}, nil
}

func (n *AMQPNotifier) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(map[string]any{
		"kind":      msg.Kind,
		"recipient": msg.Recipient,
		"data":      msg.Data,
	})
	if err != nil {
		return err
	}
	return n.ch.PublishWithContext(ctx, n.exchange, "notification."+string(msg.Kind), false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
}

func (n *AMQPNotifier) Close() error {
	if n.ch != nil {
		_ = n.ch.Close()
	}
	if n.conn != nil {
		return n.conn.Close()
	}
	return nil
}
