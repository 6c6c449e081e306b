package blackjack

import (
	"errors"
	"fmt"

	"github.com/qmuntal/stateless"
)

// Progress is the coarse stage of a match. Stages only move forward.
type Progress int

const (
	NotAvailable Progress = iota
	Starting
	Progressing
	Gambling
	Ending
	Closed
)

var progressOrder = []Progress{NotAvailable, Starting, Progressing, Gambling, Ending, Closed}

var progressString = map[Progress]string{
	NotAvailable: "NotAvailable",
	Starting:     "Starting",
	Progressing:  "Progressing",
	Gambling:     "Gambling",
	Ending:       "Ending",
	Closed:       "Closed",
}

func (p Progress) String() string {
	if name, ok := progressString[p]; ok {
		return name
	}
	return fmt.Sprintf("Progress(%d)", int(p))
}

func ParseProgress(s string) (Progress, error) {
	for p, name := range progressString {
		if name == s {
			return p, nil
		}
	}
	return NotAvailable, fmt.Errorf("unknown progress %q", s)
}

func (p Progress) MarshalText() ([]byte, error) {
	if _, ok := progressString[p]; !ok {
		return nil, fmt.Errorf("unknown progress %d", int(p))
	}
	return []byte(p.String()), nil
}

func (p *Progress) UnmarshalText(text []byte) error {
	parsed, err := ParseProgress(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// HasTurns reports whether players act in turn during the stage.
func (p Progress) HasTurns() bool {
	return p == Progressing || p == Gambling
}

var ErrProgressRegression = errors.New("PROGRESS_REGRESSION: progress cannot move backwards")

// advance is the trigger that moves the machine to the wrapped stage.
type advance Progress

// ProgressMachine enforces forward-only movement through the stages.
// Closed is the last stage, so it is reachable from every other one.
type ProgressMachine struct {
	sm *stateless.StateMachine
}

func NewProgressMachine() *ProgressMachine {
	sm := stateless.NewStateMachine(NotAvailable)
	for i, from := range progressOrder {
		cfg := sm.Configure(from)
		for _, to := range progressOrder[i+1:] {
			cfg.Permit(advance(to), to)
		}
	}
	return &ProgressMachine{sm: sm}
}

func (m *ProgressMachine) Current() Progress {
	return m.sm.MustState().(Progress)
}

// Advance moves to the given stage. Moving to the current stage is a no-op.
func (m *ProgressMachine) Advance(to Progress) error {
	if to == m.Current() {
		return nil
	}
	if err := m.sm.Fire(advance(to)); err != nil {
		return fmt.Errorf("%w: %s -> %s", ErrProgressRegression, m.Current(), to)
	}
	return nil
}
