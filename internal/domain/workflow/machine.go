package workflow

import (
	"context"
	"fmt"
	"sort"
)

// StateMachine tracks the current state of one invoice and validates transitions
type StateMachine interface {
	State() State

	// CanFire returns true if the current state has at least one edge for the trigger.
	// Guards are not evaluated.
	CanFire(trigger Trigger) bool

	// Fire takes the first edge whose guard passes
	Fire(ctx context.Context, trigger Trigger) error

	PermittedTriggers() []Trigger
}

type stateMachine struct {
	current State
	table   transitionTable
}

func (m *stateMachine) State() State { return m.current }

func (m *stateMachine) CanFire(trigger Trigger) bool {
	return len(m.table[m.current][trigger]) > 0
}

func (m *stateMachine) Fire(ctx context.Context, trigger Trigger) error {
	edges := m.table[m.current][trigger]
	if len(edges) == 0 {
		return fmt.Errorf("%w: cannot fire %s from %s", ErrInvalidTransition, trigger, m.current)
	}

	var refusal error
	for _, e := range edges {
		if e.guard != nil {
			if refusal = e.guard(ctx); refusal != nil {
				continue
			}
		}
		m.current = e.to
		return nil
	}
	return fmt.Errorf("%w: %w", ErrGuardFailed, refusal)
}

// PermittedTriggers lists the triggers with at least one edge, sorted by name
func (m *stateMachine) PermittedTriggers() []Trigger {
	out := make([]Trigger, 0, len(m.table[m.current]))
	for trig, edges := range m.table[m.current] {
		if len(edges) > 0 {
			out = append(out, trig)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
