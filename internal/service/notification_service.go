package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/orbitalworks/imagery-api/internal/models"
	"github.com/orbitalworks/imagery-api/pkg/jobs"
)

// StatusChangedEvent is emitted after a status transition commits. It carries
// everything the gateway needs so delivery never reads back from the store.
type StatusChangedEvent struct {
	RequestID string                `json:"request_id"`
	Recipient string                `json:"recipient"`
	OldStatus models.RequestStatus  `json:"old_status"`
	NewStatus models.RequestStatus  `json:"new_status"`
	Snapshot  models.ImageryRequest `json:"snapshot"`
}

// NotificationGateway delivers a status-change notification. Implementations
// are expected to be slow and unreliable; callers must never block on them.
type NotificationGateway interface {
	SendStatusChange(ctx context.Context, event StatusChangedEvent) error
}

// LogNotificationGateway is the default gateway: it records the delivery in
// the application log. SMTP or webhook delivery slots in behind the same
// interface at deploy time.
type LogNotificationGateway struct {
	FromEmail string
	Logger    *zap.Logger
}

// SendStatusChange logs the would-be delivery.
func (g *LogNotificationGateway) SendStatusChange(_ context.Context, event StatusChangedEvent) error {
	logger := g.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("status change notification",
		zap.String("from", g.FromEmail),
		zap.String("to", event.Recipient),
		zap.String("request_id", event.RequestID),
		zap.String("old_status", string(event.OldStatus)),
		zap.String("new_status", string(event.NewStatus)),
	)
	return nil
}

// NotificationServiceConfig tunes the dispatch queue.
type NotificationServiceConfig struct {
	Enabled    bool
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

// NotificationService dispatches status-change events asynchronously.
// Enqueueing is fire-and-forget: delivery failures are retried by the queue
// and logged, never surfaced to the caller that performed the transition.
type NotificationService struct {
	queue   *jobs.Queue
	gateway NotificationGateway
	metrics *MetricsService
	logger  *zap.Logger
	enabled bool
}

// NewNotificationService wires the gateway behind a worker queue.
func NewNotificationService(gateway NotificationGateway, metrics *MetricsService, logger *zap.Logger, cfg NotificationServiceConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{
		gateway: gateway,
		metrics: metrics,
		logger:  logger,
		enabled: cfg.Enabled && gateway != nil,
	}
	s.queue = jobs.NewQueue("notifications", s.process, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return s
}

// Start launches the dispatch workers.
func (s *NotificationService) Start(ctx context.Context) {
	if !s.enabled {
		return
	}
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *NotificationService) Stop() {
	if !s.enabled {
		return
	}
	s.queue.Stop()
}

// NotifyStatusChange enqueues a delivery. Never returns an error to the
// transition path; a full or stopped queue is logged and dropped.
func (s *NotificationService) NotifyStatusChange(event StatusChangedEvent) {
	if !s.enabled {
		return
	}
	job := jobs.Job{
		ID:      uuid.NewString(),
		Type:    "status_change",
		Payload: event,
	}
	if err := s.queue.Enqueue(job); err != nil {
		if s.metrics != nil {
			s.metrics.RecordNotification("dropped")
		}
		s.logger.Warn("failed to enqueue status change notification",
			zap.String("request_id", event.RequestID), zap.Error(err))
	}
}

func (s *NotificationService) process(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(StatusChangedEvent)
	if !ok {
		if s.metrics != nil {
			s.metrics.RecordNotification("invalid")
		}
		return fmt.Errorf("unexpected payload type %T", job.Payload)
	}
	if err := s.gateway.SendStatusChange(ctx, event); err != nil {
		if s.metrics != nil {
			s.metrics.RecordNotification("failed")
		}
		return fmt.Errorf("deliver status change for %s: %w", event.RequestID, err)
	}
	if s.metrics != nil {
		s.metrics.RecordNotification("delivered")
	}
	return nil
}
