package survey

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/looplab/fsm"
)

// ErrIllegalTransition is returned when an event does not apply to the
// current wizard state.
var ErrIllegalTransition = errors.New("survey: illegal transition")

// Phase is the coarse position in the wizard.
type Phase int

const (
	PhaseRating Phase = iota
	PhaseClosing
	PhaseSubmitting
	PhaseDone
	PhaseFailed
)

// String returns the phase name.
func (p Phase) String() string {
	names := [...]string{"rating", "closing", "submitting", "done", "failed"}
	if int(p) < len(names) {
		return names[p]
	}
	return "unknown"
}

// State is a wizard state. Only rating states carry a page index, and the
// index can only be set through ratingState, so a rating page outside 0..3
// does not exist.
type State struct {
	phase Phase
	step  int
}

// ratingState returns the state for rating page step (0..RatingSteps-1).
func ratingState(step int) (State, error) {
	if step < 0 || step >= RatingSteps {
		return State{}, fmt.Errorf("survey: rating step %d out of range [0,%d]", step, RatingSteps-1)
	}
	return State{phase: PhaseRating, step: step}, nil
}

// The non-rating states.
func closingState() State    { return State{phase: PhaseClosing} }
func submittingState() State { return State{phase: PhaseSubmitting} }
func doneState() State       { return State{phase: PhaseDone} }
func failedState() State     { return State{phase: PhaseFailed} }

// StateForStep maps a persisted step counter to a wizard state. Values below
// zero clamp to the first page and values from ClosingStep up map to the
// closing page.
func StateForStep(step int) State {
	if step >= ClosingStep {
		return closingState()
	}
	return State{phase: PhaseRating, step: max(step, 0)}
}

// Phase returns the state's phase.
func (s State) Phase() Phase { return s.phase }

// Step returns the page index shown in this state: the rating page for
// rating states and ClosingStep for everything after the ratings.
func (s State) Step() int {
	if s.phase == PhaseRating {
		return s.step
	}
	return ClosingStep
}

// String returns the machine name of the state, e.g. "rating-2".
func (s State) String() string {
	if s.phase == PhaseRating {
		return "rating-" + strconv.Itoa(s.step)
	}
	return s.phase.String()
}

func parseState(name string) State {
	if rest, ok := strings.CutPrefix(name, "rating-"); ok {
		n, _ := strconv.Atoi(rest)
		return StateForStep(n)
	}
	for p := PhaseClosing; p <= PhaseFailed; p++ {
		if p.String() == name {
			return State{phase: p}
		}
	}
	return StateForStep(0)
}

// Event drives a wizard transition.
type Event string

const (
	EventNext    Event = "next"
	EventBack    Event = "back"
	EventSubmit  Event = "submit"
	EventSucceed Event = "succeed"
	EventFail    Event = "fail"
)

func wizardEvents() fsm.Events {
	var events fsm.Events
	for i := 0; i < RatingSteps; i++ {
		from := StateForStep(i).String()
		to := StateForStep(i + 1).String()
		events = append(events,
			fsm.EventDesc{Name: string(EventNext), Src: []string{from}, Dst: to},
			fsm.EventDesc{Name: string(EventBack), Src: []string{to}, Dst: from},
		)
	}
	return append(events,
		fsm.EventDesc{Name: string(EventBack), Src: []string{failedState().String()}, Dst: closingState().String()},
		fsm.EventDesc{Name: string(EventSubmit), Src: []string{closingState().String(), failedState().String()}, Dst: submittingState().String()},
		fsm.EventDesc{Name: string(EventSucceed), Src: []string{submittingState().String()}, Dst: doneState().String()},
		fsm.EventDesc{Name: string(EventFail), Src: []string{submittingState().String()}, Dst: failedState().String()},
	)
}

// Wizard is the explicit survey state machine:
//
//	rating-0 -> rating-1 -> rating-2 -> rating-3 -> closing -> submitting -> done
//	                                                   ^            |
//	                                                   +-- failed <-+
//
// "next" and "back" move one page; "back" from failed returns to the closing
// page for a retry, and "submit" is accepted from closing or failed.
type Wizard struct {
	machine *fsm.FSM
}

// NewWizard returns a wizard positioned at s.
func NewWizard(s State) *Wizard {
	return &Wizard{machine: fsm.NewFSM(s.String(), wizardEvents(), fsm.Callbacks{})}
}

// State returns the current state.
func (w *Wizard) State() State {
	return parseState(w.machine.Current())
}

// Can reports whether ev applies to the current state.
func (w *Wizard) Can(ev Event) bool {
	return w.machine.Can(string(ev))
}

// Fire applies ev and returns the new state.
func (w *Wizard) Fire(ctx context.Context, ev Event) (State, error) {
	from := w.State()
	if err := w.machine.Event(ctx, string(ev)); err != nil {
		return from, fmt.Errorf("%w: %s from %s: %v", ErrIllegalTransition, ev, from, err)
	}
	return w.State(), nil
}

// Reset repositions the wizard without a transition.
func (w *Wizard) Reset(s State) {
	w.machine.SetState(s.String())
}

// transition is the pure form of the machine: the state reached by applying
// ev to s.
func transition(s State, ev Event) (State, error) {
	return NewWizard(s).Fire(context.Background(), ev)
}
