package email

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/leave-approval/internal/application/port"
	"github.com/garyjia/leave-approval/internal/domain/entity"
)

// LogSender is the demo channel: it logs the message instead of sending it
type LogSender struct {
	logger *zap.Logger
	clock  func() time.Time
}

// NewLogSender creates a sender that only logs
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger, clock: time.Now}
}

// Channel implements port.NotificationSender
func (s *LogSender) Channel() string {
	return "log"
}

// Deliver logs the message and reports success with a demo message id
func (s *LogSender) Deliver(ctx context.Context, msg *port.Message) (*entity.DeliveryResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	messageID := fmt.Sprintf("demo-%d", s.clock().UnixMilli())
	s.logger.Info("Demo email",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("kind", msg.Kind.String()),
		zap.String("request_id", msg.RequestID),
		zap.String("message_id", messageID))

	return &entity.DeliveryResult{
		Success:   true,
		Recipient: msg.To,
		MessageID: messageID,
		Channel:   s.Channel(),
	}, nil
}

var _ port.NotificationSender = (*LogSender)(nil)
