package service

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/civicstack/form-engine/internal/config"
	"github.com/civicstack/form-engine/internal/events"
)

// Sender delivers one notification to the outside world. Fire-and-forget
// from this core's point of view: delivery failures are retried here and
// then logged, never propagated back into the lifecycle.
type Sender interface {
	Send(ctx context.Context, submissionID string, event string) error
}

// NotificationService bridges domain events to the Sender collaborator.
type NotificationService struct {
	dispatcher events.Dispatcher
	sender     Sender
	logger     *zap.Logger
	maxRetries uint64
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, sender Sender, logger *zap.Logger, maxRetries int) *NotificationService {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &NotificationService{
		dispatcher: dispatcher,
		sender:     sender,
		logger:     logger,
		maxRetries: uint64(maxRetries),
	}
}

// RegisterHandlers subscribes to the events that produce notifications.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventSubmissionEscalated, n.forward("escalated"))
	n.dispatcher.Subscribe(events.EventSubmissionResolved, n.forward("resolved"))
	n.dispatcher.Subscribe(events.EventSubmissionAssigned, n.forward("assigned"))
}

func (n *NotificationService) forward(kind string) events.EventHandler {
	return func(ctx context.Context, event events.Event) error {
		operation := func() error {
			return n.sender.Send(ctx, event.SubmissionID, kind)
		}
		policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), n.maxRetries)
		if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
			n.logger.Error("notification delivery failed",
				zap.String("submission_id", event.SubmissionID),
				zap.String("event", kind),
				zap.Error(err))
		}
		return nil
	}
}

// LogSender is the default Sender: it records the would-be delivery. Real
// channels (email/SMS/push) live outside this subsystem.
type LogSender struct {
	logger *zap.Logger
	cfg    config.NotificationConfig
}

// NewLogSender creates a logging sender.
func NewLogSender(logger *zap.Logger, cfg config.NotificationConfig) *LogSender {
	return &LogSender{logger: logger, cfg: cfg}
}

// Send logs the notification request.
func (l *LogSender) Send(_ context.Context, submissionID string, event string) error {
	l.logger.Info("notification requested",
		zap.String("submission_id", submissionID),
		zap.String("event", event),
		zap.String("email_from", l.cfg.EmailFrom),
		zap.String("webhook_url", l.cfg.WebhookURL),
		zap.Time("at", time.Now().UTC()))
	return nil
}
