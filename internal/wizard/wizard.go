// Package wizard implements the two-step intake flow that collects a race goal
// and optional running history and turns them into an immutable plan request.
//
// A Wizard is owned by exactly one session; it is not safe for concurrent use.
package wizard

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/runcoach/runcoach/internal/plan"
)

// Step is a state of the intake flow.
type Step int

const (
	StepRaceGoal Step = iota
	StepHistoryDecision
	StepHistoryEntry
	StepSubmitted
)

func (s Step) String() string {
	switch s {
	case StepRaceGoal:
		return "race_goal"
	case StepHistoryDecision:
		return "history_decision"
	case StepHistoryEntry:
		return "history_entry"
	case StepSubmitted:
		return "submitted"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

// Errors returned by wizard transitions.
var (
	ErrInvalidTransition = errors.New("transition not allowed from current step")
	ErrGoalLocked        = errors.New("race goal is confirmed and cannot be edited")
	ErrHistoryFull       = errors.New("running history already has the maximum number of records")
	ErrNoRecords         = errors.New("at least one running record is required")
	ErrRecordIndex       = errors.New("running record index out of range")
)

// Config holds configuration for a Wizard.
type Config struct {
	// Now returns the current time used for date rules.
	// Default: time.Now
	Now func() time.Time

	// Logger receives one debug entry per state change.
	Logger zerolog.Logger
}

// Wizard holds partially entered intake data and enforces the step rules.
type Wizard struct {
	now    func() time.Time
	logger zerolog.Logger

	step    Step
	goal    plan.RaceGoal
	draft   plan.HistoryRecord
	records []plan.HistoryRecord
	request *plan.PlanRequest
}

// New creates a Wizard positioned on the race goal step.
func New(cfg Config) *Wizard {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Wizard{
		now:    now,
		logger: cfg.Logger,
		step:   StepRaceGoal,
	}
}

// Step returns the current state.
func (w *Wizard) Step() Step {
	return w.step
}

// LogicalStep returns the caller-facing step number: 1 for the race goal,
// 2 for the history decision and entry, 0 once submitted.
func (w *Wizard) LogicalStep() int {
	switch w.step {
	case StepRaceGoal:
		return 1
	case StepHistoryDecision, StepHistoryEntry:
		return 2
	default:
		return 0
	}
}

// Goal returns the race goal as entered so far.
func (w *Wizard) Goal() plan.RaceGoal {
	return w.goal
}

// Draft returns the history record currently being entered.
func (w *Wizard) Draft() plan.HistoryRecord {
	return w.draft
}

// Records returns a copy of the committed history records.
func (w *Wizard) Records() []plan.HistoryRecord {
	out := make([]plan.HistoryRecord, len(w.records))
	copy(out, w.records)
	return out
}

// Request returns the submitted request, if the wizard has reached StepSubmitted.
func (w *Wizard) Request() (*plan.PlanRequest, bool) {
	return w.request, w.request != nil
}

// UpdateGoal applies edit to the race goal and returns the live validation
// result for the edited goal. Editing is only possible on the race goal step.
func (w *Wizard) UpdateGoal(edit func(*plan.RaceGoal)) error {
	if w.step != StepRaceGoal {
		return ErrGoalLocked
	}
	edit(&w.goal)
	return plan.ValidateRaceGoal(w.goal, w.now())
}

// GoalErrors returns the live validation result without changing state.
func (w *Wizard) GoalErrors() error {
	return plan.ValidateRaceGoal(w.goal, w.now())
}

// ConfirmGoal validates the goal authoritatively and advances to the history decision.
func (w *Wizard) ConfirmGoal() error {
	if w.step != StepRaceGoal {
		return w.invalid("confirm_goal")
	}
	if err := plan.ValidateRaceGoal(w.goal, w.now()); err != nil {
		w.logger.Debug().Err(err).Msg("race goal rejected")
		return err
	}
	w.goal = w.goal.Normalized()
	w.transition(StepHistoryDecision, "confirm_goal")
	return nil
}

// DeclareNoHistory submits the request with an empty history.
func (w *Wizard) DeclareNoHistory() (*plan.PlanRequest, error) {
	if w.step != StepHistoryDecision {
		return nil, w.invalid("declare_no_history")
	}
	w.records = nil
	w.draft = plan.HistoryRecord{}
	return w.submit(false), nil
}

// DeclareHistory moves to record entry.
func (w *Wizard) DeclareHistory() error {
	if w.step != StepHistoryDecision {
		return w.invalid("declare_history")
	}
	w.transition(StepHistoryEntry, "declare_history")
	return nil
}

// UpdateDraft applies edit to the in-progress record and returns its live validation result.
func (w *Wizard) UpdateDraft(edit func(*plan.HistoryRecord)) error {
	if w.step != StepHistoryEntry {
		return w.invalid("update_draft")
	}
	edit(&w.draft)
	return plan.ValidateHistoryRecord(w.draft, w.now())
}

// CanAddRecord reports whether the draft is valid and there is room for it.
func (w *Wizard) CanAddRecord() bool {
	return w.step == StepHistoryEntry &&
		len(w.records) < plan.MaxHistoryRecords &&
		plan.ValidateHistoryRecord(w.draft, w.now()) == nil
}

// AddRecord commits the draft record and starts a new empty draft.
func (w *Wizard) AddRecord() error {
	if w.step != StepHistoryEntry {
		return w.invalid("add_record")
	}
	if len(w.records) >= plan.MaxHistoryRecords {
		return ErrHistoryFull
	}
	if err := plan.ValidateHistoryRecord(w.draft, w.now()); err != nil {
		return err
	}
	w.records = append(w.records, w.draft)
	w.draft = plan.HistoryRecord{}
	w.logger.Debug().Int("records", len(w.records)).Msg("running record added")
	return nil
}

// RemoveRecord deletes the committed record at index i.
func (w *Wizard) RemoveRecord(i int) error {
	if w.step != StepHistoryEntry {
		return w.invalid("remove_record")
	}
	if i < 0 || i >= len(w.records) {
		return ErrRecordIndex
	}
	w.records = append(w.records[:i], w.records[i+1:]...)
	w.logger.Debug().Int("records", len(w.records)).Msg("running record removed")
	return nil
}

// CanSubmit reports whether Submit would succeed.
func (w *Wizard) CanSubmit() bool {
	return w.step == StepHistoryEntry && len(w.records) > 0
}

// Submit finalizes the request with the committed history records.
func (w *Wizard) Submit() (*plan.PlanRequest, error) {
	if w.step != StepHistoryEntry {
		return nil, w.invalid("submit")
	}
	if len(w.records) == 0 {
		return nil, ErrNoRecords
	}
	return w.submit(true), nil
}

// Back returns from step 2 to the race goal, keeping the goal for further editing.
func (w *Wizard) Back() error {
	if w.step != StepHistoryDecision && w.step != StepHistoryEntry {
		return w.invalid("back")
	}
	w.transition(StepRaceGoal, "back")
	return nil
}

// Reset discards all entered data.
func (w *Wizard) Reset() {
	w.goal = plan.RaceGoal{}
	w.draft = plan.HistoryRecord{}
	w.records = nil
	w.request = nil
	w.transition(StepRaceGoal, "reset")
}

func (w *Wizard) submit(withHistory bool) *plan.PlanRequest {
	w.request = plan.NewPlanRequest(w.goal, w.records, withHistory)
	w.transition(StepSubmitted, "submit")
	return w.request
}

func (w *Wizard) transition(to Step, action string) {
	w.logger.Debug().
		Str("action", action).
		Stringer("from", w.step).
		Stringer("to", to).
		Msg("wizard transition")
	w.step = to
}

func (w *Wizard) invalid(action string) error {
	return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, action, w.step)
}
