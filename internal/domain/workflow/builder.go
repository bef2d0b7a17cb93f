package workflow

import (
	"context"
	"fmt"
)

// GuardFunc decides whether an edge may be taken. A non-nil error refuses it and
// explains why; Fire reports the refusal wrapped in ErrGuardFailed.
type GuardFunc func(ctx context.Context) error

// StateMachineBuilder collects edges and produces machines positioned at a state
type StateMachineBuilder interface {
	Configure(state State) StateConfiguration
	Build(initialState State) StateMachine
}

// StateConfiguration adds outgoing edges to one state
type StateConfiguration interface {
	Permit(trigger Trigger, toState State) StateConfiguration
	PermitIf(trigger Trigger, toState State, guard GuardFunc) StateConfiguration
}

type edge struct {
	to    State
	guard GuardFunc
}

// transitionTable maps a state and trigger to candidate edges, tried in order
type transitionTable map[State]map[Trigger][]edge

func (t transitionTable) clone() transitionTable {
	out := make(transitionTable, len(t))
	for from, byTrigger := range t {
		cp := make(map[Trigger][]edge, len(byTrigger))
		for trig, edges := range byTrigger {
			cp[trig] = append([]edge(nil), edges...)
		}
		out[from] = cp
	}
	return out
}

type builder struct {
	table   transitionTable
	configs map[State]*stateConfig
}

type stateConfig struct {
	from  State
	table transitionTable
}

// NewBuilder returns an empty builder
func NewBuilder() StateMachineBuilder {
	return &builder{
		table:   make(transitionTable),
		configs: make(map[State]*stateConfig),
	}
}

// Configure returns the same configuration for repeated calls with one state
func (b *builder) Configure(state State) StateConfiguration {
	mustBeValid("state", state)
	if cfg, ok := b.configs[state]; ok {
		return cfg
	}
	cfg := &stateConfig{from: state, table: b.table}
	b.configs[state] = cfg
	return cfg
}

// Build creates a machine positioned at initialState. Later changes to the builder
// do not affect machines already built.
func (b *builder) Build(initialState State) StateMachine {
	mustBeValid("initial state", initialState)
	return &stateMachine{current: initialState, table: b.table.clone()}
}

func (c *stateConfig) Permit(trigger Trigger, toState State) StateConfiguration {
	return c.PermitIf(trigger, toState, nil)
}

func (c *stateConfig) PermitIf(trigger Trigger, toState State, guard GuardFunc) StateConfiguration {
	mustBeValid("target state", toState)
	if c.table[c.from] == nil {
		c.table[c.from] = make(map[Trigger][]edge)
	}
	c.table[c.from][trigger] = append(c.table[c.from][trigger], edge{to: toState, guard: guard})
	return c
}

func mustBeValid(what string, s State) {
	if !s.IsValid() {
		panic(fmt.Sprintf("invalid %s: %s", what, s))
	}
}
