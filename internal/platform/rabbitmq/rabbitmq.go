package rabbitmq

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// New dials the broker and declares every durable queue in queues, so
// publishers and consumers can start in any order.
func New(ctx context.Context, url string, queues ...string) (*amqp.Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq failed: %w", err)
	}

	declareCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- DeclareQueues(conn, queues...)
	}()

	select {
	case <-declareCtx.Done():
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq setup timeout: %w", declareCtx.Err())
	case err := <-done:
		if err != nil {
			_ = conn.Close()
			return nil, err
		}
		return conn, nil
	}
}

func DeclareQueues(conn *amqp.Connection, queues ...string) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	for _, name := range queues {
		if name == "" {
			continue
		}
		if _, err := declareQueue(ch, name); err != nil {
			return err
		}
	}
	return nil
}

func declareQueue(ch *amqp.Channel, name string) (amqp.Queue, error) {
	q, err := ch.QueueDeclare(
		name,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return amqp.Queue{}, fmt.Errorf("declare queue %s failed: %w", name, err)
	}
	return q, nil
}
