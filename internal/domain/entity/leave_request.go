package entity

import (
	"strings"
	"time"

	"github.com/garyjia/leave-approval/pkg/utils"
)

// LeaveRequest is a leave application moving through the two approval stages
type LeaveRequest struct {
	ID            string         `json:"id"`
	EmployeeName  string         `json:"employee_name"`
	EmployeeEmail string         `json:"employee_email"`
	ManagerEmail  string         `json:"manager_email"`
	DirectorEmail string         `json:"director_email"`
	StartDate     Date           `json:"start_date"`
	EndDate       Date           `json:"end_date"`
	Reason        string         `json:"reason"`
	Status        Status         `json:"status"`
	CurrentStage  Stage          `json:"current_stage"`
	SubmittedAt   time.Time      `json:"submitted_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	Version       int            `json:"version"`
	History       []HistoryEntry `json:"history"`
}

// LeaveDraft carries the caller-supplied fields of a new request
type LeaveDraft struct {
	EmployeeName  string
	EmployeeEmail string
	ManagerEmail  string
	DirectorEmail string
	StartDate     Date
	EndDate       Date
	Reason        string
}

// Normalize trims whitespace from all text fields
func (d LeaveDraft) Normalize() LeaveDraft {
	d.EmployeeName = strings.TrimSpace(utils.SanitizeString(d.EmployeeName))
	d.EmployeeEmail = utils.NormalizeEmail(d.EmployeeEmail)
	d.ManagerEmail = utils.NormalizeEmail(d.ManagerEmail)
	d.DirectorEmail = utils.NormalizeEmail(d.DirectorEmail)
	d.Reason = strings.TrimSpace(utils.SanitizeString(d.Reason))
	return d
}

// Validate checks required fields, address formats and date ordering.
// It returns a *ValidationError listing every failing field, or nil.
func (d LeaveDraft) Validate() error {
	d = d.Normalize()
	verr := &ValidationError{}

	if d.EmployeeName == "" {
		verr.Add("employee_name", "is required")
	}
	checkEmail(verr, "employee_email", d.EmployeeEmail)
	checkEmail(verr, "manager_email", d.ManagerEmail)
	checkEmail(verr, "director_email", d.DirectorEmail)

	if d.StartDate.IsZero() {
		verr.Add("start_date", "is required")
	}
	if d.EndDate.IsZero() {
		verr.Add("end_date", "is required")
	}
	if !d.StartDate.IsZero() && !d.EndDate.IsZero() && d.StartDate.After(d.EndDate) {
		verr.Add("end_date", "must not be before start_date")
	}
	if d.Reason == "" {
		verr.Add("reason", "is required")
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}

func checkEmail(verr *ValidationError, field, value string) {
	if value == "" {
		verr.Add(field, "is required")
		return
	}
	if err := utils.ValidateEmail(value); err != nil {
		verr.Add(field, "must be a valid email address")
	}
}

// State returns the (status, stage) pair of the request
func (r *LeaveRequest) State() (Status, Stage) {
	return r.Status, r.CurrentStage
}

// IsTerminal reports whether the request accepts no further actions
func (r *LeaveRequest) IsTerminal() bool {
	return r.Status != StatusPending
}

// EmailFor resolves the address of a participant
func (r *LeaveRequest) EmailFor(role Role) string {
	switch role {
	case RoleEmployee:
		return r.EmployeeEmail
	case RoleManager:
		return r.ManagerEmail
	case RoleDirector:
		return r.DirectorEmail
	default:
		return ""
	}
}

// Clone returns a deep copy so callers can hand out snapshots safely
func (r *LeaveRequest) Clone() *LeaveRequest {
	if r == nil {
		return nil
	}
	c := *r
	c.History = make([]HistoryEntry, len(r.History))
	copy(c.History, r.History)
	return &c
}

// ListFilter narrows a request listing
type ListFilter struct {
	Status Status
	Stage  Stage
	Limit  int
	Offset int
}
