package lark

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"

	"github.com/garyjia/leave-approval/internal/application/port"
	"github.com/garyjia/leave-approval/internal/domain/entity"
)

// ErrLarkNotConfigured is returned when the app credentials are missing
var ErrLarkNotConfigured = errors.New("lark messenger is not configured")

// Config holds Lark app credentials
type Config struct {
	AppID     string
	AppSecret string
}

// messageCreator is the part of the IM API the messenger needs
type messageCreator interface {
	Create(ctx context.Context, req *larkim.CreateMessageReq, options ...larkcore.RequestOptionFunc) (*larkim.CreateMessageResp, error)
}

// Messenger delivers notifications as Lark IM post messages addressed by email
type Messenger struct {
	messages   messageCreator
	configured bool
	logger     *zap.Logger
}

// NewMessenger creates a Lark messenger backed by the SDK client
func NewMessenger(cfg Config, logger *zap.Logger) *Messenger {
	configured := cfg.AppID != "" && cfg.AppSecret != ""
	m := &Messenger{configured: configured, logger: logger}
	if configured {
		client := lark.NewClient(cfg.AppID, cfg.AppSecret,
			lark.WithLogLevel(larkcore.LogLevelInfo),
			lark.WithEnableTokenCache(true),
		)
		m.messages = client.Im.Message
	}
	return m
}

// Channel implements port.NotificationSender
func (m *Messenger) Channel() string {
	return "lark"
}

// Deliver implements port.NotificationSender
func (m *Messenger) Deliver(ctx context.Context, msg *port.Message) (*entity.DeliveryResult, error) {
	if !m.configured {
		m.logger.Warn("Lark message not sent, app credentials are not configured",
			zap.String("to", msg.To),
			zap.String("kind", msg.Kind.String()))
		return nil, ErrLarkNotConfigured
	}

	content, err := postContent(msg)
	if err != nil {
		return nil, fmt.Errorf("build post content: %w", err)
	}

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType("email").
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(msg.To).
			MsgType("post").
			Content(content).
			Build()).
		Build()

	resp, err := m.messages.Create(ctx, req)
	if err != nil {
		m.logger.Error("Failed to send message",
			zap.String("to", msg.To),
			zap.Error(err))
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	if !resp.Success() {
		m.logger.Error("API returned failure",
			zap.String("to", msg.To),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return nil, fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}

	m.logger.Info("Message sent successfully",
		zap.String("message_id", messageID),
		zap.String("to", msg.To),
		zap.String("kind", msg.Kind.String()))

	return &entity.DeliveryResult{
		Success:   true,
		Recipient: msg.To,
		MessageID: messageID,
		Channel:   m.Channel(),
	}, nil
}

type postElement struct {
	Tag  string `json:"tag"`
	Text string `json:"text"`
}

type postBody struct {
	Title   string          `json:"title"`
	Content [][]postElement `json:"content"`
}

// postContent renders the plain-text body as one paragraph per line
func postContent(msg *port.Message) (string, error) {
	var paragraphs [][]postElement
	for _, line := range strings.Split(strings.TrimSpace(msg.Text), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		paragraphs = append(paragraphs, []postElement{{Tag: "text", Text: line}})
	}

	raw, err := json.Marshal(map[string]postBody{
		"en_us": {Title: msg.Subject, Content: paragraphs},
	})
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

var _ port.NotificationSender = (*Messenger)(nil)
