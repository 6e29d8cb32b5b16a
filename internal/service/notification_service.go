package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/unireg-api/internal/models"
	appErrors "github.com/noah-isme/unireg-api/pkg/errors"
	"github.com/noah-isme/unireg-api/pkg/jobs"
)

// NotificationJobType tags queue jobs carrying a notification.
const NotificationJobType = "notification.deliver"

type notificationStore interface {
	Create(ctx context.Context, notification *models.Notification) error
	ListByUser(ctx context.Context, userID string, limit int) ([]models.Notification, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
	Stopped() bool
}

// NotificationService hands workflow outcomes to the notifications table through the job queue.
type NotificationService struct {
	repo   notificationStore
	queue  jobDispatcher
	logger *zap.Logger
}

// NewNotificationService constructs the dispatcher. Without a queue, Dispatch writes synchronously.
func NewNotificationService(repo notificationStore, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{repo: repo, logger: logger}
}

// UseQueue routes Dispatch through the given queue. The queue's handler should be Handle.
func (s *NotificationService) UseQueue(queue jobDispatcher) {
	s.queue = queue
}

// Dispatch schedules delivery of a notification.
func (s *NotificationService) Dispatch(ctx context.Context, notification models.Notification) error {
	if strings.TrimSpace(notification.UserID) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "notification recipient is required")
	}
	switch notification.Type {
	case models.NotificationSuccess, models.NotificationError:
	default:
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported notification type %q", notification.Type))
	}
	if notification.ID == "" {
		notification.ID = uuid.NewString()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}

	if s.queue == nil || s.queue.Stopped() {
		return s.persist(ctx, notification)
	}
	if err := s.queue.Enqueue(jobs.Job{ID: notification.ID, Type: NotificationJobType, Payload: notification}); err != nil {
		s.logger.Sugar().Warnw("notification queue unavailable, writing inline", "notification_id", notification.ID, "error", err)
		return s.persist(ctx, notification)
	}
	return nil
}

// Handle processes a queued notification job. Failures are retried by the queue.
func (s *NotificationService) Handle(ctx context.Context, job jobs.Job) error {
	notification, ok := job.Payload.(models.Notification)
	if !ok {
		s.logger.Sugar().Errorw("dropping malformed notification job", "job_id", job.ID, "type", job.Type)
		return nil
	}
	return s.persist(ctx, notification)
}

// ListForUser returns the actor's most recent notifications.
func (s *NotificationService) ListForUser(ctx context.Context, actor models.Actor, limit int) ([]models.Notification, error) {
	if actor.IsZero() {
		return nil, appErrors.ErrUnauthorized
	}
	list, err := s.repo.ListByUser(ctx, actor.UserID, limit)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list notifications")
	}
	return list, nil
}

func (s *NotificationService) persist(ctx context.Context, notification models.Notification) error {
	if err := s.repo.Create(ctx, &notification); err != nil {
		return fmt.Errorf("persist notification %s: %w", notification.ID, err)
	}
	s.logger.Debug("notification stored", zap.String("notification_id", notification.ID), zap.String("user_id", notification.UserID))
	return nil
}
