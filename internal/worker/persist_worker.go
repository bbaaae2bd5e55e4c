package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"issuecompass/internal/model"
)

type HistoryWriter interface {
	Upsert(record *model.HistoryRecord) error
}

type ActivityWriter interface {
	Create(record *model.ActivityRecord) error
}

// PersistWorker consumes history and activity events and writes them to
// MySQL. Each queue has its own channel and goroutine.
type PersistWorker struct {
	conn          *amqp.Connection
	history       HistoryWriter
	activity      ActivityWriter
	historyQueue  string
	activityQueue string
	logger        *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPersistWorker(conn *amqp.Connection, history HistoryWriter, activity ActivityWriter, historyQueue, activityQueue string, logger *slog.Logger) *PersistWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &PersistWorker{
		conn:          conn,
		history:       history,
		activity:      activity,
		historyQueue:  historyQueue,
		activityQueue: activityQueue,
		logger:        logger.With("component", "persist_worker"),
	}
}

func (w *PersistWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	if err := w.consume(workerCtx, w.historyQueue, w.HandleHistory); err != nil {
		cancel()
		return err
	}
	if err := w.consume(workerCtx, w.activityQueue, w.HandleActivity); err != nil {
		cancel()
		return err
	}
	return nil
}

func (w *PersistWorker) consume(ctx context.Context, queue string, handle func([]byte) error) error {
	ch, err := w.conn.Channel()
	if err != nil {
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	_, err = ch.QueueDeclare(
		queue,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		return fmt.Errorf("declare worker queue %s failed: %w", queue, err)
	}

	deliveries, err := ch.Consume(
		queue,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		return fmt.Errorf("consume queue %s failed: %w", queue, err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				if err := handle(d.Body); err != nil {
					w.logger.Error("persist event failed", "queue", queue, "error", err)
					_ = d.Nack(false, false)
					continue
				}
				_ = d.Ack(false)
			}
		}
	}()
	return nil
}

// HandleHistory decodes one history event and upserts its snapshot.
func (w *PersistWorker) HandleHistory(body []byte) error {
	var event model.HistoryEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("decode history event failed: %w", err)
	}
	if event.UserID == 0 || event.Document.ID == "" {
		return fmt.Errorf("history event missing user or document id")
	}
	record, err := model.NewHistoryRecord(event.UserID, event.Document)
	if err != nil {
		return err
	}
	return w.history.Upsert(&record)
}

func (w *PersistWorker) HandleActivity(body []byte) error {
	var event model.ActivityEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("decode activity event failed: %w", err)
	}
	if event.UserID == 0 || event.Entry.ID == "" {
		return fmt.Errorf("activity event missing user or entry id")
	}
	record := model.NewActivityRecord(event.UserID, event.Entry)
	return w.activity.Create(&record)
}

func (w *PersistWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
