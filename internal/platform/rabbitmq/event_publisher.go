package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"issuecompass/internal/model"
)

// EventPublisher sends workspace history and activity events to their
// persistence queues. One channel is shared and guarded by a mutex.
type EventPublisher struct {
	conn          *amqp.Connection
	historyQueue  string
	activityQueue string

	mu sync.Mutex
	ch *amqp.Channel
}

func NewEventPublisher(conn *amqp.Connection, historyQueue, activityQueue string) *EventPublisher {
	return &EventPublisher{
		conn:          conn,
		historyQueue:  historyQueue,
		activityQueue: activityQueue,
	}
}

func (p *EventPublisher) PublishHistory(ctx context.Context, event model.HistoryEvent) error {
	return p.publish(ctx, p.historyQueue, event)
}

func (p *EventPublisher) PublishActivity(ctx context.Context, event model.ActivityEvent) error {
	return p.publish(ctx, p.activityQueue, event)
}

func (p *EventPublisher) publish(ctx context.Context, queue string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal event payload failed: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channelLocked()
	if err != nil {
		return err
	}
	err = ch.PublishWithContext(
		ctx,
		"",
		queue,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         payload,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		_ = ch.Close()
		p.ch = nil
		return fmt.Errorf("publish to %s failed: %w", queue, err)
	}
	return nil
}

func (p *EventPublisher) channelLocked() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	p.ch = ch
	return ch, nil
}

func (p *EventPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil {
		return nil
	}
	err := p.ch.Close()
	p.ch = nil
	return err
}
