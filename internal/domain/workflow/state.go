package workflow

import "github.com/garyjia/leave-approval/internal/domain/entity"

// State is a reachable (status, stage) pair of a leave request
type State struct {
	Status entity.Status
	Stage  entity.Stage
}

var (
	StatePendingManager  = State{Status: entity.StatusPending, Stage: entity.StageManager}
	StatePendingDirector = State{Status: entity.StatusPending, Stage: entity.StageDirector}
	StateApproved        = State{Status: entity.StatusApproved, Stage: entity.StageCompleted}
	StateRejected        = State{Status: entity.StatusRejected, Stage: entity.StageRejected}
)

var validStates = map[State]bool{
	StatePendingManager:  true,
	StatePendingDirector: true,
	StateApproved:        true,
	StateRejected:        true,
}

var terminalStates = map[State]bool{
	StateApproved: true,
	StateRejected: true,
}

// StateOf returns the state a request is currently in
func StateOf(req *entity.LeaveRequest) State {
	return State{Status: req.Status, Stage: req.CurrentStage}
}

// IsTerminal returns true if the state is a terminal state (no further transitions allowed)
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// IsValid returns true if the pair is one of the four workflow states
func (s State) IsValid() bool {
	return validStates[s]
}

// String renders the state as "status/stage"
func (s State) String() string {
	return string(s.Status) + "/" + string(s.Stage)
}
