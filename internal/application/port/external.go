package port

import (
	"context"

	"github.com/garyjia/leave-approval/internal/domain/entity"
)

// Message is a rendered notification ready for a transport
type Message struct {
	RequestID string
	Kind      entity.NotificationKind
	To        string
	Subject   string
	HTML      string
	Text      string
}

// MessageRenderer turns an intent into a Message
type MessageRenderer interface {
	Render(intent entity.NotificationIntent) (*Message, error)
}

// NotificationSender delivers rendered messages over one channel (log, smtp, lark)
type NotificationSender interface {
	Deliver(ctx context.Context, msg *Message) (*entity.DeliveryResult, error)
	Channel() string
}
