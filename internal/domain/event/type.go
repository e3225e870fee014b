package event

// Type identifies the type of domain event
type Type string

const (
	TypeLeaveSubmitted        Type = "leave.submitted"
	TypeLeaveTransitioned     Type = "leave.transitioned"
	TypeNotificationRequested Type = "notification.requested"
	TypeNotificationDelivered Type = "notification.delivered"
	TypeNotificationFailed    Type = "notification.failed"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeLeaveSubmitted,
		TypeLeaveTransitioned,
		TypeNotificationRequested,
		TypeNotificationDelivered,
		TypeNotificationFailed:
		return true
	default:
		return false
	}
}
