package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/leave-approval/internal/application/dispatcher"
	"github.com/garyjia/leave-approval/internal/application/port"
	"github.com/garyjia/leave-approval/internal/domain/entity"
	"github.com/garyjia/leave-approval/internal/domain/event"
)

// NotificationService executes notification intents produced by the workflow engine
type NotificationService interface {
	// Deliver renders and sends one intent and records the attempt.
	// Failures come back as *entity.DeliveryError.
	Deliver(ctx context.Context, intent entity.NotificationIntent) (*entity.DeliveryResult, error)

	// HandleNotificationRequested is the dispatcher handler for async delivery
	HandleNotificationRequested(ctx context.Context, evt *event.Event) error

	// RetryFailed re-sends failed records below the attempt limit and
	// returns how many succeeded
	RetryFailed(ctx context.Context) (int, error)

	// ListByRequest returns the notification log of a request
	ListByRequest(ctx context.Context, requestID string) ([]*entity.NotificationRecord, error)
}

type notificationServiceImpl struct {
	renderer         port.MessageRenderer
	sender           port.NotificationSender
	notificationRepo port.NotificationRepository
	dispatcher       dispatcher.Dispatcher
	logger           Logger

	sendTimeout time.Duration
	maxAttempts int
	retryBatch  int
	clock       func() time.Time
}

// NotificationOption configures the notification service
type NotificationOption func(*notificationServiceImpl)

// WithEventDispatcher publishes delivered/failed events
func WithEventDispatcher(d dispatcher.Dispatcher) NotificationOption {
	return func(s *notificationServiceImpl) {
		s.dispatcher = d
	}
}

// WithSendTimeout bounds a single transport call
func WithSendTimeout(d time.Duration) NotificationOption {
	return func(s *notificationServiceImpl) {
		if d > 0 {
			s.sendTimeout = d
		}
	}
}

// WithRetryPolicy sets the attempt limit and how many records one retry pass handles
func WithRetryPolicy(maxAttempts, batch int) NotificationOption {
	return func(s *notificationServiceImpl) {
		if maxAttempts > 0 {
			s.maxAttempts = maxAttempts
		}
		if batch > 0 {
			s.retryBatch = batch
		}
	}
}

// WithNotificationClock overrides time.Now
func WithNotificationClock(clock func() time.Time) NotificationOption {
	return func(s *notificationServiceImpl) {
		s.clock = clock
	}
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(
	renderer port.MessageRenderer,
	sender port.NotificationSender,
	notificationRepo port.NotificationRepository,
	logger Logger,
	opts ...NotificationOption,
) NotificationService {
	s := &notificationServiceImpl{
		renderer:         renderer,
		sender:           sender,
		notificationRepo: notificationRepo,
		logger:           logger,
		sendTimeout:      30 * time.Second,
		maxAttempts:      3,
		retryBatch:       20,
		clock:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Deliver renders, sends and records one notification
func (s *notificationServiceImpl) Deliver(ctx context.Context, intent entity.NotificationIntent) (*entity.DeliveryResult, error) {
	now := s.clock().UTC()
	record := &entity.NotificationRecord{
		ID:        uuid.NewString(),
		RequestID: intent.RequestID,
		Kind:      intent.Kind,
		Recipient: intent.RecipientEmail,
		Channel:   s.sender.Channel(),
		Attempts:  1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if raw, err := json.Marshal(intent); err == nil {
		record.Intent = string(raw)
	}

	result, sendErr := s.attempt(ctx, intent)
	s.applyOutcome(record, result, sendErr)

	if err := s.notificationRepo.Create(ctx, record); err != nil {
		s.logger.Error("Failed to record notification", "error", err, "request_id", intent.RequestID, "kind", intent.Kind)
	}

	s.publish(ctx, record, sendErr)

	if sendErr != nil {
		s.logger.Error("Notification delivery failed",
			"request_id", intent.RequestID,
			"kind", intent.Kind,
			"recipient", intent.RecipientEmail,
			"channel", record.Channel,
			"error", sendErr,
		)
		return nil, sendErr
	}

	s.logger.Info("Notification delivered",
		"request_id", intent.RequestID,
		"kind", intent.Kind,
		"recipient", intent.RecipientEmail,
		"channel", record.Channel,
		"message_id", result.MessageID,
	)
	return result, nil
}

// HandleNotificationRequested delivers the intent carried by a notification.requested event.
// Delivery failures are recorded and not returned so other handlers keep running.
func (s *notificationServiceImpl) HandleNotificationRequested(ctx context.Context, evt *event.Event) error {
	intent, ok := evt.Intent()
	if !ok {
		return fmt.Errorf("event %s carries no notification intent", evt.ID)
	}
	_, _ = s.Deliver(ctx, intent)
	return nil
}

// RetryFailed re-sends failed notifications
func (s *notificationServiceImpl) RetryFailed(ctx context.Context) (int, error) {
	records, err := s.notificationRepo.ListFailed(ctx, s.maxAttempts, s.retryBatch)
	if err != nil {
		return 0, fmt.Errorf("list failed notifications: %w", err)
	}

	delivered := 0
	for _, record := range records {
		if ctx.Err() != nil {
			return delivered, ctx.Err()
		}

		var intent entity.NotificationIntent
		if err := json.Unmarshal([]byte(record.Intent), &intent); err != nil {
			s.logger.Error("Skipping notification with unreadable intent", "id", record.ID, "error", err)
			continue
		}

		result, sendErr := s.attempt(ctx, intent)
		record.Attempts++
		s.applyOutcome(record, result, sendErr)

		if err := s.notificationRepo.UpdateResult(ctx, record); err != nil {
			s.logger.Error("Failed to update notification", "id", record.ID, "error", err)
		}
		s.publish(ctx, record, sendErr)

		if sendErr == nil {
			delivered++
			s.logger.Info("Notification retry delivered", "id", record.ID, "attempts", record.Attempts)
		} else {
			s.logger.Error("Notification retry failed", "id", record.ID, "attempts", record.Attempts, "error", sendErr)
		}
	}

	return delivered, nil
}

// ListByRequest returns the notification log of a request
func (s *notificationServiceImpl) ListByRequest(ctx context.Context, requestID string) ([]*entity.NotificationRecord, error) {
	records, err := s.notificationRepo.ListByRequestID(ctx, requestID)
	if err != nil {
		s.logger.Error("Failed to list notifications", "error", err, "request_id", requestID)
		return nil, err
	}
	return records, nil
}

// attempt renders and sends once. Errors are always *entity.DeliveryError.
func (s *notificationServiceImpl) attempt(ctx context.Context, intent entity.NotificationIntent) (*entity.DeliveryResult, error) {
	fail := func(err error) error {
		return &entity.DeliveryError{
			Recipient: intent.RecipientEmail,
			Kind:      intent.Kind,
			Channel:   s.sender.Channel(),
			Err:       err,
		}
	}

	msg, err := s.renderer.Render(intent)
	if err != nil {
		return nil, fail(fmt.Errorf("render: %w", err))
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()

	result, err := s.sender.Deliver(sendCtx, msg)
	if err != nil {
		return nil, fail(err)
	}
	if result == nil || !result.Success {
		return nil, fail(fmt.Errorf("sender reported failure"))
	}
	if result.Channel == "" {
		result.Channel = s.sender.Channel()
	}
	return result, nil
}

func (s *notificationServiceImpl) applyOutcome(record *entity.NotificationRecord, result *entity.DeliveryResult, sendErr error) {
	record.UpdatedAt = s.clock().UTC()
	if sendErr != nil {
		record.Status = entity.NotificationStatusFailed
		record.ErrorMessage = sendErr.Error()
		return
	}
	record.Status = entity.NotificationStatusSent
	record.MessageID = result.MessageID
	record.ErrorMessage = ""
}

func (s *notificationServiceImpl) publish(ctx context.Context, record *entity.NotificationRecord, sendErr error) {
	if s.dispatcher == nil {
		return
	}

	payload := map[string]interface{}{
		"notification_id": record.ID,
		"kind":            record.Kind,
		"recipient":       record.Recipient,
	}
	eventType := event.TypeNotificationDelivered
	if sendErr != nil {
		eventType = event.TypeNotificationFailed
		payload[event.KeyError] = sendErr.Error()
	} else {
		payload[event.KeyMessageID] = record.MessageID
	}

	s.dispatcher.DispatchAsync(context.WithoutCancel(ctx), event.NewEvent(eventType, record.RequestID, payload))
}
