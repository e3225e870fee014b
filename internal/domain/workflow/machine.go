package workflow

import (
	"fmt"
	"sort"

	"github.com/garyjia/leave-approval/internal/domain/entity"
)

// Transition is one row of the transition table
type Transition struct {
	From   State
	Action entity.Action
	To     State
	Effect Effect
}

// StateMachine is an immutable, total transition table
type StateMachine interface {
	// Initial returns the state and effect of a new request
	Initial() (State, Effect)

	// Next returns the transition for action taken in state from
	Next(from State, action entity.Action) (Transition, error)

	// PermittedActions returns the actions allowed in a state
	PermittedActions(from State) []entity.Action

	// Transitions returns every row of the table in a stable order
	Transitions() []Transition
}

type stateMachine struct {
	initial       State
	initialEffect Effect
	table         map[State]map[entity.Action]Transition
}

func (m *stateMachine) Initial() (State, Effect) {
	return m.initial, m.initialEffect
}

func (m *stateMachine) Next(from State, action entity.Action) (Transition, error) {
	if !from.IsValid() {
		return Transition{}, fmt.Errorf("%w: %s", ErrInvalidState, from)
	}

	row, exists := m.table[from]
	if !exists {
		return Transition{}, fmt.Errorf("%w: cannot %s from state %s", ErrInvalidTransition, action, from)
	}

	t, exists := row[action]
	if !exists {
		return Transition{}, fmt.Errorf("%w: cannot %s from state %s", ErrInvalidTransition, action, from)
	}

	return t, nil
}

func (m *stateMachine) PermittedActions(from State) []entity.Action {
	row := m.table[from]
	actions := make([]entity.Action, 0, len(row))
	for _, a := range entity.Actions {
		if _, ok := row[a]; ok {
			actions = append(actions, a)
		}
	}
	return actions
}

func (m *stateMachine) Transitions() []Transition {
	var all []Transition
	for _, row := range m.table {
		for _, t := range row {
			all = append(all, t)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].From != all[j].From {
			return all[i].From.String() < all[j].From.String()
		}
		return all[i].Action < all[j].Action
	})
	return all
}
