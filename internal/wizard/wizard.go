// Package wizard implements the ordered step machine behind the booking,
// chat and corporate-inquiry flows.
package wizard

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoSteps is returned when a machine is built without steps.
	ErrNoSteps = errors.New("wizard: at least one step is required")

	// ErrDuplicateStep is returned when two steps share a name.
	ErrDuplicateStep = errors.New("wizard: duplicate step name")

	// ErrUnknownStep is returned for a step name or index the flow does not have.
	ErrUnknownStep = errors.New("wizard: unknown step")

	// ErrStepNotReached is returned when jumping past the furthest step reached.
	ErrStepNotReached = errors.New("wizard: step not reached yet")
)

// Indicator is the step-indicator flag rendered next to each step.
type Indicator string

const (
	IndicatorNone      Indicator = ""
	IndicatorActive    Indicator = "active"
	IndicatorCompleted Indicator = "completed"
)

// StepView is the render state of one step.
type StepView struct {
	Index     int       `json:"index"`
	Name      string    `json:"name"`
	Visible   bool      `json:"visible"`
	Indicator Indicator `json:"indicator,omitempty"`
}

// Snapshot is the observable state after a transition.
type Snapshot struct {
	Current     int        `json:"current"`
	CurrentName string     `json:"current_name"`
	Highest     int        `json:"highest"`
	Terminal    bool       `json:"terminal"`
	Steps       []StepView `json:"steps"`
}

// Guard is consulted before leaving its step forward. A non-nil error
// rejects the transition and is returned to the caller unchanged.
type Guard func() error

// Observer receives a snapshot after every transition.
type Observer func(Snapshot)

// Machine walks an ordered, fixed list of named steps. It is not safe for
// concurrent use; the owning controller serialises access.
type Machine struct {
	steps     []string
	index     map[string]int
	current   int
	highest   int
	guards    map[int]Guard
	observers []Observer
}

// New builds a machine positioned at step 0.
func New(steps ...string) (*Machine, error) {
	if len(steps) == 0 {
		return nil, ErrNoSteps
	}
	names := make([]string, len(steps))
	index := make(map[string]int, len(steps))
	for i, name := range steps {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("%w: empty name at %d", ErrUnknownStep, i)
		}
		if _, dup := index[name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateStep, name)
		}
		names[i] = name
		index[name] = i
	}
	return &Machine{
		steps:  names,
		index:  index,
		guards: make(map[int]Guard),
	}, nil
}

// MustNew is New for fixed flow definitions.
func MustNew(steps ...string) *Machine {
	m, err := New(steps...)
	if err != nil {
		panic(err)
	}
	return m
}

// Guard attaches a precondition for leaving the named step forward.
func (m *Machine) Guard(step string, g Guard) error {
	i, ok := m.index[step]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStep, step)
	}
	m.guards[i] = g
	return nil
}

// Observe registers a render hook called after every transition.
func (m *Machine) Observe(o Observer) {
	if o != nil {
		m.observers = append(m.observers, o)
	}
}

// Advance moves to the next step. At the last step it does nothing. A
// failing guard leaves the position untouched and returns the guard's error.
func (m *Machine) Advance() error {
	if m.current >= len(m.steps)-1 {
		return nil
	}
	if err := m.check(m.current); err != nil {
		return err
	}
	m.move(m.current + 1)
	return nil
}

// Retreat moves to the previous step, reporting whether it moved.
func (m *Machine) Retreat() bool {
	if m.current == 0 {
		return false
	}
	m.move(m.current - 1)
	return true
}

// GoTo jumps directly to step i. Only steps up to the furthest one reached
// are allowed; moving forward still passes every guard on the way.
func (m *Machine) GoTo(i int) error {
	if i < 0 || i >= len(m.steps) {
		return fmt.Errorf("%w: index %d", ErrUnknownStep, i)
	}
	if i > m.highest {
		return fmt.Errorf("%w: %s", ErrStepNotReached, m.steps[i])
	}
	for s := m.current; s < i; s++ {
		if err := m.check(s); err != nil {
			return err
		}
	}
	m.move(i)
	return nil
}

// GoToName is GoTo by step name.
func (m *Machine) GoToName(name string) error {
	i, ok := m.index[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStep, name)
	}
	return m.GoTo(i)
}

// Reset returns to step 0 and forgets progress.
func (m *Machine) Reset() {
	m.highest = 0
	m.move(0)
}

// Current returns the active step index.
func (m *Machine) Current() int { return m.current }

// CurrentName returns the active step name.
func (m *Machine) CurrentName() string { return m.steps[m.current] }

// Highest returns the furthest step index reached.
func (m *Machine) Highest() int { return m.highest }

// Len returns the number of steps.
func (m *Machine) Len() int { return len(m.steps) }

// AtEnd reports whether the terminal step is active.
func (m *Machine) AtEnd() bool { return m.current == len(m.steps)-1 }

// Snapshot renders the current state.
func (m *Machine) Snapshot() Snapshot {
	views := make([]StepView, len(m.steps))
	for i, name := range m.steps {
		v := StepView{Index: i, Name: name, Visible: i == m.current}
		switch {
		case i < m.current:
			v.Indicator = IndicatorCompleted
		case i == m.current:
			v.Indicator = IndicatorActive
		}
		views[i] = v
	}
	return Snapshot{
		Current:     m.current,
		CurrentName: m.steps[m.current],
		Highest:     m.highest,
		Terminal:    m.AtEnd(),
		Steps:       views,
	}
}

func (m *Machine) check(step int) error {
	if g := m.guards[step]; g != nil {
		return g()
	}
	return nil
}

func (m *Machine) move(to int) {
	m.current = to
	if to > m.highest {
		m.highest = to
	}
	if len(m.observers) == 0 {
		return
	}
	snap := m.Snapshot()
	for _, o := range m.observers {
		o(snap)
	}
}
