package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"careerhub/internal/model"
	"careerhub/internal/platform/rabbitmq"
)

type AuditEventStore interface {
	Create(ctx context.Context, event *model.AuditEvent) error
}

// AuditEventWorker consumes audit events from a durable queue and persists them.
type AuditEventWorker struct {
	conn      *amqp.Connection
	store     AuditEventStore
	queueName string
	logger    logrus.FieldLogger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewAuditEventWorker(conn *amqp.Connection, store AuditEventStore, queueName string, logger logrus.FieldLogger) *AuditEventWorker {
	return &AuditEventWorker{
		conn:      conn,
		store:     store,
		queueName: queueName,
		logger:    logger.WithField("worker", "audit_event"),
	}
}

func (w *AuditEventWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	if _, err := rabbitmq.DeclareQueue(ch, w.queueName); err != nil {
		_ = ch.Close()
		cancel()
		return err
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()
		w.run(workerCtx, deliveries)
	}()

	w.logger.WithField("queue", w.queueName).Info("audit event worker started")
	return nil
}

func (w *AuditEventWorker) run(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			if err := w.handle(ctx, d.Body); err != nil {
				w.logger.WithError(err).Warn("drop audit event")
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (w *AuditEventWorker) handle(ctx context.Context, body []byte) error {
	var event model.AuditEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("decode audit event failed: %w", err)
	}
	if event.UserID == 0 || event.Action == "" {
		return fmt.Errorf("audit event missing user id or action")
	}
	// ids are assigned by the store
	event.ID = 0
	if err := w.store.Create(ctx, &event); err != nil {
		return fmt.Errorf("persist audit event failed: %w", err)
	}
	return nil
}

func (w *AuditEventWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
