package workflow

import (
	"fmt"

	"github.com/garyjia/leave-approval/internal/domain/entity"
)

// Effect is what a transition announces: who is notified, with which kind, and
// the note written to history
type Effect struct {
	Notify entity.Role
	Kind   entity.NotificationKind
	Note   string
}

// StateMachineBuilder builds a configured state machine
type StateMachineBuilder interface {
	// Start sets the state and effect of a freshly submitted request
	Start(state State, effect Effect) StateMachineBuilder

	// Configure returns a state configuration for the given state
	Configure(state State) StateConfiguration

	// Build validates that the table is total and returns the machine
	Build() (StateMachine, error)
}

// StateConfiguration configures transitions for a specific state
type StateConfiguration interface {
	// Permit allows an action to move the request to the target state
	Permit(action entity.Action, toState State, effect Effect) StateConfiguration
}

type stateConfig struct {
	fromState   State
	transitions map[entity.Action]Transition
	duplicates  []entity.Action
}

type stateMachineBuilder struct {
	initial        State
	initialEffect  Effect
	hasInitial     bool
	configurations map[State]*stateConfig
}

// NewBuilder creates a new state machine builder
func NewBuilder() StateMachineBuilder {
	return &stateMachineBuilder{
		configurations: make(map[State]*stateConfig),
	}
}

func (b *stateMachineBuilder) Start(state State, effect Effect) StateMachineBuilder {
	if !state.IsValid() {
		panic(fmt.Sprintf("invalid initial state: %s", state))
	}
	b.initial = state
	b.initialEffect = effect
	b.hasInitial = true
	return b
}

// Configure returns a state configuration for the given state
func (b *stateMachineBuilder) Configure(state State) StateConfiguration {
	if !state.IsValid() {
		panic(fmt.Sprintf("invalid state: %s", state))
	}

	config, exists := b.configurations[state]
	if !exists {
		config = &stateConfig{
			fromState:   state,
			transitions: make(map[entity.Action]Transition),
		}
		b.configurations[state] = config
	}

	return config
}

// Permit allows an action to move the request to the target state
func (c *stateConfig) Permit(action entity.Action, toState State, effect Effect) StateConfiguration {
	if !action.IsValid() {
		panic(fmt.Sprintf("invalid action: %s", action))
	}
	if !toState.IsValid() {
		panic(fmt.Sprintf("invalid target state: %s", toState))
	}

	if _, exists := c.transitions[action]; exists {
		c.duplicates = append(c.duplicates, action)
	}
	c.transitions[action] = Transition{
		From:   c.fromState,
		Action: action,
		To:     toState,
		Effect: effect,
	}

	return c
}

// Build checks that every non-terminal state handles every action exactly
// once and that terminal states have no outgoing transitions
func (b *stateMachineBuilder) Build() (StateMachine, error) {
	if !b.hasInitial {
		return nil, fmt.Errorf("%w: no initial state", ErrIncompleteTable)
	}
	if b.initial.IsTerminal() {
		return nil, fmt.Errorf("%w: initial state %s is terminal", ErrInvalidState, b.initial)
	}

	table := make(map[State]map[entity.Action]Transition, len(validStates))
	for state := range validStates {
		config := b.configurations[state]

		if state.IsTerminal() {
			if config != nil && len(config.transitions) > 0 {
				return nil, fmt.Errorf("%w: terminal state %s has outgoing transitions", ErrInvalidState, state)
			}
			continue
		}

		if config == nil {
			return nil, fmt.Errorf("%w: state %s is not configured", ErrIncompleteTable, state)
		}
		if len(config.duplicates) > 0 {
			return nil, fmt.Errorf("%w: state %s permits %s more than once", ErrInvalidState, state, config.duplicates[0])
		}

		row := make(map[entity.Action]Transition, len(entity.Actions))
		for _, action := range entity.Actions {
			t, ok := config.transitions[action]
			if !ok {
				return nil, fmt.Errorf("%w: state %s does not handle %s", ErrIncompleteTable, state, action)
			}
			row[action] = t
		}
		table[state] = row
	}

	return &stateMachine{
		initial:       b.initial,
		initialEffect: b.initialEffect,
		table:         table,
	}, nil
}

// MustBuild is Build for package-level tables; it panics on an invalid table
func MustBuild(b StateMachineBuilder) StateMachine {
	m, err := b.Build()
	if err != nil {
		panic(err)
	}
	return m
}
