package entity

// Status is the global outcome of a leave request
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

var validStatuses = map[Status]bool{
	StatusPending:  true,
	StatusApproved: true,
	StatusRejected: true,
}

// IsValid returns true if the status is a known value
func (s Status) IsValid() bool {
	return validStatuses[s]
}

func (s Status) String() string {
	return string(s)
}

// Stage identifies whose decision a request awaits, or its terminal outcome.
// StageSubmitted only ever appears in history entries.
type Stage string

const (
	StageSubmitted Stage = "submitted"
	StageManager   Stage = "manager"
	StageDirector  Stage = "director"
	StageCompleted Stage = "completed"
	StageRejected  Stage = "rejected"
)

var requestStages = map[Stage]bool{
	StageManager:   true,
	StageDirector:  true,
	StageCompleted: true,
	StageRejected:  true,
}

var actorStages = map[Stage]bool{
	StageManager:  true,
	StageDirector: true,
}

// IsValid returns true if the stage can be held by a request
func (s Stage) IsValid() bool {
	return requestStages[s]
}

// IsActor returns true if an approver acts at this stage
func (s Stage) IsActor() bool {
	return actorStages[s]
}

func (s Stage) String() string {
	return string(s)
}

// Label returns the human-readable approver title for an actor stage
func (s Stage) Label() string {
	switch s {
	case StageManager:
		return "Manager"
	case StageDirector:
		return "Senior manager"
	default:
		return string(s)
	}
}

// Action is a decision an approver can take
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// Actions lists every action in a stable order
var Actions = []Action{ActionApprove, ActionReject}

// IsValid returns true if the action is known
func (a Action) IsValid() bool {
	return a == ActionApprove || a == ActionReject
}

func (a Action) String() string {
	return string(a)
}

// Outcome returns the history outcome recorded for the action
func (a Action) Outcome() Outcome {
	if a == ActionApprove {
		return OutcomeApproved
	}
	return OutcomeRejected
}

// Outcome is the result recorded in a history entry
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeApproved  Outcome = "approved"
	OutcomeRejected  Outcome = "rejected"
)

// Role names a participant of a request
type Role string

const (
	RoleEmployee Role = "employee"
	RoleManager  Role = "manager"
	RoleDirector Role = "director"
)

// NotificationKind identifies which message a participant receives
type NotificationKind string

const (
	KindInitialRequest    NotificationKind = "initial-request"
	KindApprovalForwarded NotificationKind = "approval-forwarded"
	KindReturnedToManager NotificationKind = "returned-to-manager"
	KindFinalApproved     NotificationKind = "final-approved"
	KindFinalRejected     NotificationKind = "final-rejected"
)

// IsValid returns true if the kind is known
func (k NotificationKind) IsValid() bool {
	switch k {
	case KindInitialRequest,
		KindApprovalForwarded,
		KindReturnedToManager,
		KindFinalApproved,
		KindFinalRejected:
		return true
	default:
		return false
	}
}

func (k NotificationKind) String() string {
	return string(k)
}

// Notification log status constants
const (
	NotificationStatusSent   = "SENT"
	NotificationStatusFailed = "FAILED"
)
