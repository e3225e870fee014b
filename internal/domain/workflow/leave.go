package workflow

import "github.com/garyjia/leave-approval/internal/domain/entity"

// BuildLeaveStateMachine configures the two-stage leave approval table:
// manager approval forwards to the director, director rejection bounces back
// to the manager, manager rejection and director approval are final.
func BuildLeaveStateMachine() (StateMachine, error) {
	builder := NewBuilder().
		Start(StatePendingManager, Effect{
			Notify: entity.RoleManager,
			Kind:   entity.KindInitialRequest,
			Note:   entity.SubmissionNote,
		})

	builder.Configure(StatePendingManager).
		Permit(entity.ActionApprove, StatePendingDirector, Effect{
			Notify: entity.RoleDirector,
			Kind:   entity.KindApprovalForwarded,
			Note:   "Manager approved",
		}).
		Permit(entity.ActionReject, StateRejected, Effect{
			Notify: entity.RoleEmployee,
			Kind:   entity.KindFinalRejected,
			Note:   "Manager rejected",
		})

	builder.Configure(StatePendingDirector).
		Permit(entity.ActionApprove, StateApproved, Effect{
			Notify: entity.RoleEmployee,
			Kind:   entity.KindFinalApproved,
			Note:   "Senior manager approved",
		}).
		Permit(entity.ActionReject, StatePendingManager, Effect{
			Notify: entity.RoleManager,
			Kind:   entity.KindReturnedToManager,
			Note:   "Senior manager rejected, returned to manager",
		})

	// approved/completed and rejected/rejected are terminal - no outgoing transitions

	return builder.Build()
}

var leaveMachine = func() StateMachine {
	m, err := BuildLeaveStateMachine()
	if err != nil {
		panic(err)
	}
	return m
}()

// LeaveStateMachine returns the shared leave approval table
func LeaveStateMachine() StateMachine {
	return leaveMachine
}
