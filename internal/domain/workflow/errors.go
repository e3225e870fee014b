package workflow

import (
	"errors"
	"fmt"

	"github.com/garyjia/leave-approval/internal/domain/entity"
)

var (
	// ErrInvalidTransition is returned when a state transition is not allowed
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidState is returned when a state is not valid
	ErrInvalidState = errors.New("invalid state")

	// ErrIncompleteTable is returned by Build when the transition table is not total
	ErrIncompleteTable = errors.New("incomplete transition table")
)

// InvalidTransitionError describes an action that does not fit the request's current stage
type InvalidTransitionError struct {
	RequestID    string
	Stage        entity.Stage
	Action       entity.Action
	CurrentState State
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s: cannot %s at stage %s, request %s is %s",
		ErrInvalidTransition, e.Action, e.Stage, e.RequestID, e.CurrentState)
}

func (e *InvalidTransitionError) Unwrap() error {
	return ErrInvalidTransition
}
