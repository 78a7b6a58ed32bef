package outbox

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/repository"
	"github.com/segmentio/kafka-go"
)

const DefaultTopic = "order-events"

type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(topic string, brokers ...string) *KafkaPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event *repository.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(event.AggregateId), // order id keeps one order on one partition
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "event_id", Value: []byte(event.ID)},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// DirectPublisher runs the handlers in-process. Used when no broker is
// configured.
type DirectPublisher struct {
	handlers []Handler

	m sync.Mutex
	// delivered records handlers that succeeded for events still awaiting a
	// retry, keyed by outbox event id.
	delivered map[string]map[string]bool
}

func NewDirectPublisher(handlers ...Handler) *DirectPublisher {
	return &DirectPublisher{handlers: handlers, delivered: make(map[string]map[string]bool)}
}

// Publish fails if any handler failed, leaving the event for a retry. A retry
// only runs the handlers that have not yet succeeded for that event.
func (p *DirectPublisher) Publish(ctx context.Context, event *repository.OutboxEvent) error {
	evt, err := decode(event.EventType, event.Payload)
	if errors.Is(err, ErrUnknownEventType) {
		return nil
	}
	if err != nil {
		return err
	}

	done := make(map[string]bool, len(p.handlers))
	p.m.Lock()
	for name := range p.delivered[event.ID] {
		done[name] = true
	}
	p.m.Unlock()

	var errs []error
	for _, h := range p.handlers {
		if done[h.Name()] {
			continue
		}
		if err := h.Handle(ctx, evt); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", h.Name(), err))
			continue
		}
		done[h.Name()] = true
	}

	p.m.Lock()
	defer p.m.Unlock()
	if len(errs) == 0 {
		delete(p.delivered, event.ID)
		return nil
	}
	p.delivered[event.ID] = done
	return errors.Join(errs...)
}

func (p *DirectPublisher) Close() error { return nil }
