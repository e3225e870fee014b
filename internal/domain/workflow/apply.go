package workflow

import (
	"time"

	"github.com/garyjia/leave-approval/internal/domain/entity"
)

// Submit creates a request from a draft in the machine's initial state and
// returns it with the intent for the first approver. It does no I/O.
func Submit(m StateMachine, draft entity.LeaveDraft, id string, now time.Time) (*entity.LeaveRequest, entity.NotificationIntent, error) {
	if err := draft.Validate(); err != nil {
		return nil, entity.NotificationIntent{}, err
	}
	draft = draft.Normalize()

	initial, effect := m.Initial()
	req := &entity.LeaveRequest{
		ID:            id,
		EmployeeName:  draft.EmployeeName,
		EmployeeEmail: draft.EmployeeEmail,
		ManagerEmail:  draft.ManagerEmail,
		DirectorEmail: draft.DirectorEmail,
		StartDate:     draft.StartDate,
		EndDate:       draft.EndDate,
		Reason:        draft.Reason,
		Status:        initial.Status,
		CurrentStage:  initial.Stage,
		SubmittedAt:   now,
		UpdatedAt:     now,
		Version:       1,
		History: []entity.HistoryEntry{{
			Sequence:  0,
			Stage:     entity.StageSubmitted,
			Outcome:   entity.OutcomeCompleted,
			Note:      effect.Note,
			Timestamp: now,
		}},
	}

	return req, entity.NewIntent(req, effect.Notify, effect.Kind), nil
}

// Apply computes the result of the approver at stage taking action on req.
// req is left untouched; the returned snapshot has exactly one more history
// entry and a bumped version. The intent is built from the new snapshot.
func Apply(m StateMachine, req *entity.LeaveRequest, stage entity.Stage, action entity.Action, now time.Time) (*entity.LeaveRequest, entity.NotificationIntent, error) {
	current := StateOf(req)
	invalid := &InvalidTransitionError{
		RequestID:    req.ID,
		Stage:        stage,
		Action:       action,
		CurrentState: current,
	}

	if !stage.IsActor() || !action.IsValid() || stage != req.CurrentStage {
		return nil, entity.NotificationIntent{}, invalid
	}

	t, err := m.Next(current, action)
	if err != nil {
		return nil, entity.NotificationIntent{}, invalid
	}

	next := req.Clone()
	next.Status = t.To.Status
	next.CurrentStage = t.To.Stage
	next.UpdatedAt = now
	next.Version = req.Version + 1
	next.History = append(next.History, entity.HistoryEntry{
		Sequence:  len(req.History),
		Stage:     stage,
		Outcome:   action.Outcome(),
		Note:      t.Effect.Note,
		Timestamp: now,
	})

	return next, entity.NewIntent(next, t.Effect.Notify, t.Effect.Kind), nil
}
