package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bernardodieta/bookingApp-sub001/internal/logging"
	"github.com/bernardodieta/bookingApp-sub001/internal/queue"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Syncer reconciles calendar accounts. Satisfied by app.SyncService.
type Syncer interface {
	SyncAccount(ctx context.Context, accountID string) error
	SyncAll(ctx context.Context) error
}

// DeliverySource yields queued sync tasks. Satisfied by queue.Consumer.
type DeliverySource interface {
	Deliveries(ctx context.Context) (<-chan amqp.Delivery, error)
}

// SyncWorker drains the sync queue. Each delivery names one account, or all
// accounts when the id is empty.
type SyncWorker struct {
	source DeliverySource
	syncer Syncer
	logger *zap.Logger
}

func NewSyncWorker(source DeliverySource, syncer Syncer, logger *zap.Logger) *SyncWorker {
	return &SyncWorker{source: source, syncer: syncer, logger: logger}
}

// Run consumes until the context is cancelled or the channel closes.
func (w *SyncWorker) Run(ctx context.Context) error {
	deliveries, err := w.source.Deliveries(ctx)
	if err != nil {
		return err
	}

	ctx = logging.WithContext(ctx, w.logger)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			w.handle(ctx, d)
		}
	}
}

func (w *SyncWorker) handle(ctx context.Context, d amqp.Delivery) {
	var task queue.SyncTask
	if err := json.Unmarshal(d.Body, &task); err != nil {
		w.logger.Error("malformed sync task", zap.Error(err))
		_ = d.Nack(false, false)
		return
	}

	var err error
	if task.AccountID == "" {
		err = w.syncer.SyncAll(ctx)
	} else {
		err = w.syncer.SyncAccount(ctx, task.AccountID)
	}
	if err != nil {
		w.logger.Error("sync task failed",
			zap.String("account_id", task.AccountID), zap.Error(err))
		// Requeue once; a redelivered failure is dropped so a poisoned
		// account cannot wedge the queue.
		_ = d.Nack(false, !d.Redelivered)
		return
	}
	_ = d.Ack(false)
}

// Poller periodically reconciles every account, independent of push
// notifications, so missed webhooks self-heal.
type Poller struct {
	syncer   Syncer
	interval time.Duration
	logger   *zap.Logger
}

func NewPoller(syncer Syncer, interval time.Duration, logger *zap.Logger) *Poller {
	return &Poller{syncer: syncer, interval: interval, logger: logger}
}

func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	ctx = logging.WithContext(ctx, p.logger)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.syncer.SyncAll(ctx); err != nil {
				p.logger.Error("poll sync failed", zap.Error(err))
			}
		}
	}
}
