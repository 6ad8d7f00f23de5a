package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/user-directory/internal/events"
	"github.com/spec-kit/user-directory/internal/observability"
)

// AuditWorker records account events in the log and in metrics.
type AuditWorker struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewAuditWorker creates the worker.
func NewAuditWorker(dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics) *AuditWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditWorker{dispatcher: dispatcher, logger: logger.Named("audit"), metrics: metrics}
}

// Start subscribes to every account event type.
func (w *AuditWorker) Start() {
	if w == nil || w.dispatcher == nil {
		return
	}
	for _, eventType := range events.AllEventTypes {
		w.dispatcher.Subscribe(eventType, w.handle)
	}
}

func (w *AuditWorker) handle(_ context.Context, event events.Event) error {
	w.metrics.RecordAuditEvent(string(event.Type))
	w.logger.Info(string(event.Type),
		zap.String("event_id", event.ID),
		zap.Int64("account_id", event.AccountID),
		zap.Time("at", event.Timestamp),
		zap.Any("payload", event.Payload),
	)
	return nil
}
