package outbox

import (
	"context"
	"errors"
	"log/slog"

	"github.com/segmentio/kafka-go"
)

// Consumer feeds one handler from the event topic. Each handler gets its own
// consumer group so a slow or failing handler does not hold back the others.
type Consumer struct {
	reader  *kafka.Reader
	handler Handler
	log     *slog.Logger
}

func NewConsumer(topic string, handler Handler, log *slog.Logger, brokers ...string) *Consumer {
	if topic == "" {
		topic = DefaultTopic
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     "storefront-" + handler.Name(),
		StartOffset: kafka.FirstOffset,
		MaxBytes:    10e6, // 10MB
	})
	return &Consumer{reader: reader, handler: handler, log: log.With("component", "outbox-consumer", "handler", handler.Name())}
}

func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.consume(ctx)
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

func (c *Consumer) consume(ctx context.Context) {
	m, err := c.reader.FetchMessage(ctx)
	if err != nil {
		if ctx.Err() == nil {
			c.log.ErrorContext(ctx, "error reading message", "error", err)
		}
		return
	}

	var eventType string
	for _, h := range m.Headers {
		if h.Key == "event_type" {
			eventType = string(h.Value)
		}
	}
	evt, err := decode(eventType, m.Value)
	switch {
	case errors.Is(err, ErrUnknownEventType):
	case err != nil:
		c.log.ErrorContext(ctx, "dropping malformed event", "offset", m.Offset, "error", err)
	default:
		if err := c.handler.Handle(ctx, evt); err != nil {
			c.log.WarnContext(ctx, "handler failed", "event_id", evt.EventID, "order_id", evt.OrderID, "error", err)
		}
	}

	if err := c.reader.CommitMessages(ctx, m); err != nil {
		c.log.WarnContext(ctx, "failed to commit offset", "offset", m.Offset, "error", err)
	}
}
