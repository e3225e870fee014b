package email

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"github.com/garyjia/leave-approval/internal/application/port"
	"github.com/garyjia/leave-approval/internal/domain/entity"
)

type templateSet struct {
	subject string
	heading string
	color   string
	lead    string
	action  string
}

var templates = map[entity.NotificationKind]templateSet{
	entity.KindInitialRequest: {
		subject: "Leave approval request - %s",
		heading: "Leave approval request",
		color:   "#667eea",
		lead:    "A new leave request is waiting for your decision.",
		action:  "Please sign in to approve or reject this request.",
	},
	entity.KindApprovalForwarded: {
		subject: "Leave approval request (senior approval) - %s",
		heading: "Leave approval request",
		color:   "#667eea",
		lead:    "The manager approved this leave request. It now needs your senior approval.",
		action:  "Please sign in to approve or reject this request.",
	},
	entity.KindReturnedToManager: {
		subject: "Leave request returned - %s",
		heading: "Returned by senior manager",
		color:   "#ffc107",
		lead:    "The senior manager returned this leave request to you.",
		action:  "Please review the request again and approve or reject it.",
	},
	entity.KindFinalApproved: {
		subject: "Your leave request was approved - %s",
		heading: "Your leave request was approved",
		color:   "#28a745",
		lead:    "Good news! Your leave request has been approved.",
		action:  "Enjoy your time off.",
	},
	entity.KindFinalRejected: {
		subject: "About your leave request - %s",
		heading: "Leave request status",
		color:   "#dc3545",
		lead:    "Unfortunately your leave request was not approved.",
		action:  "Please talk to your manager for details.",
	},
}

type view struct {
	Heading      string
	Color        string
	Lead         string
	Action       string
	EmployeeName string
	StartDate    string
	EndDate      string
	Reason       string
	Status       string
}

const footer = "This email was sent automatically. Please do not reply."

var htmlBody = htmltemplate.Must(htmltemplate.New("html").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2 style="color: {{.Color}}; text-align: center;">{{.Heading}}</h2>
  <div style="background: #f8f9fa; padding: 20px; border-radius: 8px;">
    <p>{{.Lead}}</p>
    <p><strong>Employee:</strong> {{.EmployeeName}}</p>
    <p><strong>Dates:</strong> {{.StartDate}} - {{.EndDate}}</p>
    {{- if .Reason}}
    <p><strong>Reason:</strong> {{.Reason}}</p>
    {{- end}}
    <p><strong>Status:</strong> {{.Status}}</p>
  </div>
  <p style="font-size: 16px; color: #555;">{{.Action}}</p>
  <p style="color: #999; font-size: 12px;">` + footer + `</p>
</div>`))

var textBody = texttemplate.Must(texttemplate.New("text").Parse(`{{.Heading}}

{{.Lead}}

Employee: {{.EmployeeName}}
Dates: {{.StartDate}} - {{.EndDate}}
{{- if .Reason}}
Reason: {{.Reason}}
{{- end}}
Status: {{.Status}}

{{.Action}}

` + footer + `
`))

// Renderer turns notification intents into email messages
type Renderer struct{}

// NewRenderer creates a renderer with the built-in templates
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Render implements port.MessageRenderer
func (r *Renderer) Render(intent entity.NotificationIntent) (*port.Message, error) {
	set, ok := templates[intent.Kind]
	if !ok {
		return nil, fmt.Errorf("no template for notification kind %q", intent.Kind)
	}
	if intent.RecipientEmail == "" {
		return nil, fmt.Errorf("notification %s for request %s has no recipient", intent.Kind, intent.RequestID)
	}

	p := intent.Payload
	v := view{
		Heading:      set.heading,
		Color:        set.color,
		Lead:         set.lead,
		Action:       set.action,
		EmployeeName: p.EmployeeName,
		StartDate:    p.StartDate.String(),
		EndDate:      p.EndDate.String(),
		Reason:       p.Reason,
		Status:       statusLabel(p),
	}

	var html, text bytes.Buffer
	if err := htmlBody.Execute(&html, v); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	if err := textBody.Execute(&text, v); err != nil {
		return nil, fmt.Errorf("render text: %w", err)
	}

	return &port.Message{
		RequestID: intent.RequestID,
		Kind:      intent.Kind,
		To:        intent.RecipientEmail,
		Subject:   fmt.Sprintf(set.subject, p.EmployeeName),
		HTML:      html.String(),
		Text:      text.String(),
	}, nil
}

func statusLabel(p entity.NotificationPayload) string {
	switch {
	case p.Status == entity.StatusApproved:
		return "Approved"
	case p.Status == entity.StatusRejected:
		return "Rejected"
	case p.Stage.IsActor():
		return "Awaiting " + strings.ToLower(p.Stage.Label())
	default:
		return string(p.Status)
	}
}

var _ port.MessageRenderer = (*Renderer)(nil)
