package entity

import (
	"fmt"
	"time"
)

// NotificationPayload is the transport-neutral data handed to a sender
type NotificationPayload struct {
	Kind           NotificationKind `json:"kind"`
	RecipientEmail string           `json:"recipient_email"`
	EmployeeName   string           `json:"employee_name"`
	StartDate      Date             `json:"start_date"`
	EndDate        Date             `json:"end_date"`
	Reason         string           `json:"reason,omitempty"`
	Stage          Stage            `json:"stage"`
	Status         Status           `json:"status"`
}

// NotificationIntent describes who should be told what after a transition.
// The engine produces it; a notification collaborator executes it.
type NotificationIntent struct {
	RequestID      string              `json:"request_id"`
	Kind           NotificationKind    `json:"kind"`
	RecipientRole  Role                `json:"recipient_role"`
	RecipientEmail string              `json:"recipient_email"`
	Payload        NotificationPayload `json:"payload"`
}

// NewIntent builds an intent for role from the request snapshot
func NewIntent(req *LeaveRequest, role Role, kind NotificationKind) NotificationIntent {
	recipient := req.EmailFor(role)
	payload := NotificationPayload{
		Kind:           kind,
		RecipientEmail: recipient,
		EmployeeName:   req.EmployeeName,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		Stage:          req.CurrentStage,
		Status:         req.Status,
	}
	// final decisions to the employee omit the reason they wrote themselves
	if kind != KindFinalApproved && kind != KindFinalRejected {
		payload.Reason = req.Reason
	}
	return NotificationIntent{
		RequestID:      req.ID,
		Kind:           kind,
		RecipientRole:  role,
		RecipientEmail: recipient,
		Payload:        payload,
	}
}

// DeliveryResult reports what a sender did with a message
type DeliveryResult struct {
	Success   bool   `json:"success"`
	Recipient string `json:"recipient"`
	MessageID string `json:"message_id,omitempty"`
	Channel   string `json:"channel,omitempty"`
}

// NotificationRecord is the persisted log of a delivery attempt
type NotificationRecord struct {
	ID           string           `json:"id"`
	RequestID    string           `json:"request_id"`
	Kind         NotificationKind `json:"kind"`
	Recipient    string           `json:"recipient"`
	Channel      string           `json:"channel"`
	Status       string           `json:"status"`
	MessageID    string           `json:"message_id,omitempty"`
	ErrorMessage string           `json:"error_message,omitempty"`
	Attempts     int              `json:"attempts"`
	Intent       string           `json:"-"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// DeliveryError reports a failed notification. It never undoes a transition.
type DeliveryError struct {
	Recipient string
	Kind      NotificationKind
	Channel   string
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery of %s to %s via %s failed: %v", e.Kind, e.Recipient, e.Channel, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
