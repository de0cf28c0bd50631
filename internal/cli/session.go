// Package cli implements the interactive terminal front end: it walks a
// runner through the intake wizard, submits the request to the plan
// service and renders the result.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	"github.com/rs/zerolog"

	"github.com/runcoach/runcoach/internal/plan"
	"github.com/runcoach/runcoach/internal/planclient"
	"github.com/runcoach/runcoach/internal/wizard"
)

// ErrAborted is returned when the runner ends input (Ctrl+C or Ctrl+D).
var ErrAborted = errors.New("input aborted")

// Prompter reads one line of input. *liner.State satisfies it.
type Prompter interface {
	Prompt(prompt string) (string, error)
}

// PlanSubmitter sends a finished request to the plan service.
type PlanSubmitter interface {
	Submit(ctx context.Context, req *plan.PlanRequest, onRetry func(attempt int, err error)) (*plan.TrainingPlan, error)
}

// Config holds the collaborators of a Session.
type Config struct {
	Prompter  Prompter
	Out       io.Writer
	Wizard    *wizard.Wizard
	Submitter PlanSubmitter
	Logger    zerolog.Logger
}

// Session is one interactive run of the intake flow.
type Session struct {
	in     Prompter
	out    io.Writer
	wiz    *wizard.Wizard
	client PlanSubmitter
	logger zerolog.Logger
}

// NewSession creates a session.
func NewSession(cfg Config) *Session {
	return &Session{
		in:     cfg.Prompter,
		out:    cfg.Out,
		wiz:    cfg.Wizard,
		client: cfg.Submitter,
		logger: cfg.Logger,
	}
}

// Run drives the wizard until a plan is generated and the runner declines to
// start over. It returns ErrAborted if input ends early.
func (s *Session) Run(ctx context.Context) error {
	s.println(titleStyle.Render("Marathon training plan"))

	for {
		req, err := s.collect()
		if err != nil {
			return err
		}

		if err := s.generate(ctx, req); err != nil {
			return err
		}

		again, err := s.confirm("Start a new plan? [y/N] ", false)
		if err != nil || !again {
			return err
		}
		s.wiz.Reset()
	}
}

// collect runs the wizard from its current step until it is submitted.
func (s *Session) collect() (*plan.PlanRequest, error) {
	for {
		switch s.wiz.Step() {
		case wizard.StepRaceGoal:
			if err := s.goalStep(); err != nil {
				return nil, err
			}
		case wizard.StepHistoryDecision:
			if err := s.decisionStep(); err != nil {
				return nil, err
			}
		case wizard.StepHistoryEntry:
			if err := s.entryStep(); err != nil {
				return nil, err
			}
		case wizard.StepSubmitted:
			req, _ := s.wiz.Request()
			return req, nil
		}
	}
}

func (s *Session) goalStep() error {
	s.println(stepStyle.Render(fmt.Sprintf("Step %d of 2: your race", s.wiz.LogicalStep())))

	goal := s.wiz.Goal()
	fields := []field{
		{"raceName", "Race name", goal.RaceName, func(v string) error {
			return s.wiz.UpdateGoal(func(g *plan.RaceGoal) { g.RaceName = v })
		}},
		{"raceDate", "Race date (YYYY-MM-DD)", dateText(goal.RaceDate), func(v string) error {
			d, err := plan.ParseDate(v)
			if err != nil {
				return err
			}
			return s.wiz.UpdateGoal(func(g *plan.RaceGoal) { g.RaceDate = d })
		}},
		{"distance", "Distance (5km, 10km, half, full)", string(goal.Distance), func(v string) error {
			d, err := plan.ParseDistanceClass(v)
			if err != nil {
				return err
			}
			return s.wiz.UpdateGoal(func(g *plan.RaceGoal) { g.Distance = d })
		}},
		{"targetTime", "Target time (H:MM:SS)", durationText(goal.TargetTime), func(v string) error {
			d, err := plan.ParseDuration(v)
			if err != nil {
				return err
			}
			return s.wiz.UpdateGoal(func(g *plan.RaceGoal) { g.TargetTime = d })
		}},
	}

	if err := s.askAll(fields); err != nil {
		return err
	}

	if err := s.wiz.ConfirmGoal(); err != nil {
		s.showErrors(err)
	}
	return nil
}

func (s *Session) decisionStep() error {
	s.println(stepStyle.Render(fmt.Sprintf("Step %d of 2: recent running", s.wiz.LogicalStep())))

	for {
		answer, err := s.prompt("Have you run in the last 6 months? [y/n/back] ")
		if err != nil {
			return err
		}
		switch strings.ToLower(answer) {
		case "y", "yes":
			return s.wiz.DeclareHistory()
		case "n", "no":
			_, err := s.wiz.DeclareNoHistory()
			return err
		case "b", "back":
			return s.wiz.Back()
		}
	}
}

func (s *Session) entryStep() error {
	s.renderRecords()

	answer, err := s.prompt("[a]dd record, [r]emove N, [s]ubmit, [b]ack: ")
	if err != nil {
		return err
	}

	cmd, arg, _ := strings.Cut(strings.ToLower(answer), " ")
	switch cmd {
	case "a", "add":
		if !s.canAddMore() {
			s.println(warnStyle.Render(wizard.ErrHistoryFull.Error()))
			return nil
		}
		return s.addRecord()
	case "r", "remove":
		n, err := strconv.Atoi(strings.TrimSpace(arg))
		if err != nil {
			s.println(warnStyle.Render("usage: remove N"))
			return nil
		}
		if err := s.wiz.RemoveRecord(n - 1); err != nil {
			s.println(warnStyle.Render(err.Error()))
		}
	case "s", "submit":
		if _, err := s.wiz.Submit(); err != nil {
			s.println(warnStyle.Render(err.Error()))
		}
	case "b", "back":
		return s.wiz.Back()
	}
	return nil
}

func (s *Session) addRecord() error {
	draft := s.wiz.Draft()
	fields := []field{
		{"recordDate", "Run date (YYYY-MM-DD)", dateText(draft.RecordDate), func(v string) error {
			d, err := plan.ParseDate(v)
			if err != nil {
				return err
			}
			return s.wiz.UpdateDraft(func(r *plan.HistoryRecord) { r.RecordDate = d })
		}},
		{"distance", "Distance (km)", floatText(draft.DistanceKm), func(v string) error {
			km, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid distance %q", v)
			}
			return s.wiz.UpdateDraft(func(r *plan.HistoryRecord) { r.DistanceKm = km })
		}},
		{"time", "Time (H:MM:SS)", durationText(draft.Time), func(v string) error {
			d, err := plan.ParseDuration(v)
			if err != nil {
				return err
			}
			return s.wiz.UpdateDraft(func(r *plan.HistoryRecord) { r.Time = d })
		}},
	}

	if err := s.askAll(fields); err != nil {
		return err
	}

	if err := s.wiz.AddRecord(); err != nil {
		s.showErrors(err)
	}
	return nil
}

// generate submits req and renders the plan, offering a retry on failure.
func (s *Session) generate(ctx context.Context, req *plan.PlanRequest) error {
	for {
		s.println(mutedStyle.Render("Generating your plan..."))

		p, err := s.client.Submit(ctx, req, func(attempt int, err error) {
			s.println(mutedStyle.Render(fmt.Sprintf("Attempt %d failed, retrying...", attempt)))
			s.logger.Debug().Err(err).Int("attempt", attempt).Msg("plan request retry")
		})
		if err == nil {
			s.println(RenderPlan(p))
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		s.println(bannerStyle.Render(bannerText(err)))

		retry, perr := s.confirm("Try again? [Y/n] ", true)
		if perr != nil {
			return perr
		}
		if !retry {
			return nil
		}
	}
}

// field is one prompted input. apply parses the answer and stores it,
// returning the live validation result.
type field struct {
	name    string
	label   string
	current string
	apply   func(string) error
}

func (s *Session) askAll(fields []field) error {
	for _, f := range fields {
		if err := s.ask(f); err != nil {
			return err
		}
	}
	return nil
}

// ask prompts for one field until the value parses and the field passes live
// validation. An empty answer keeps the current value.
func (s *Session) ask(f field) error {
	for {
		prompt := f.label + ": "
		if f.current != "" {
			prompt = fmt.Sprintf("%s [%s]: ", f.label, f.current)
		}
		answer, err := s.prompt(prompt)
		if err != nil {
			return err
		}
		if answer == "" && f.current != "" {
			return nil
		}

		err = f.apply(answer)
		var verr *plan.ValidationError
		switch {
		case err == nil:
			return nil
		case errors.As(err, &verr):
			msg := verr.Message(f.name)
			if msg == "" {
				return nil
			}
			s.println(warnStyle.Render("  " + msg))
			// Cross-field rules are settled when the step is confirmed.
			if msg == plan.MsgTargetUnrealistic || msg == plan.MsgRecordUnrealistic {
				return nil
			}
		default:
			s.println(warnStyle.Render("  " + err.Error()))
		}
	}
}

func (s *Session) canAddMore() bool {
	return len(s.wiz.Records()) < plan.MaxHistoryRecords
}

func (s *Session) renderRecords() {
	records := s.wiz.Records()
	s.println(stepStyle.Render(fmt.Sprintf("Recent runs (%d of %d)", len(records), plan.MaxHistoryRecords)))
	for i, r := range records {
		s.println(fmt.Sprintf("  %d. %s  %gkm in %s  (%.1f min/km)", i+1, r.RecordDate, r.DistanceKm, r.Time, r.Pace()))
	}
}

func (s *Session) showErrors(err error) {
	var verr *plan.ValidationError
	if !errors.As(err, &verr) {
		s.println(warnStyle.Render(err.Error()))
		return
	}
	for _, fe := range verr.Errors {
		s.println(warnStyle.Render(fmt.Sprintf("  %s: %s", fe.Field, fe.Message)))
	}
}

// confirm asks a yes/no question; an empty or unrecognised answer gives def.
func (s *Session) confirm(prompt string, def bool) (bool, error) {
	answer, err := s.prompt(prompt)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	case "n", "no":
		return false, nil
	default:
		return def, nil
	}
}

func (s *Session) prompt(p string) (string, error) {
	answer, err := s.in.Prompt(p)
	if err != nil {
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			return "", ErrAborted
		}
		return "", err
	}
	return strings.TrimSpace(answer), nil
}

func (s *Session) println(line string) {
	fmt.Fprintln(s.out, line)
}

// bannerText is the message shown when plan generation fails.
func bannerText(err error) string {
	if f, ok := planclient.AsFailure(err); ok {
		return f.UserMessage()
	}
	return "Something went wrong while generating your plan. Please try again."
}

func dateText(d plan.Date) string {
	if d.IsZero() {
		return ""
	}
	return d.String()
}

func durationText(d plan.Duration) string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%d:%02d:%02d", d.Hours, d.Minutes, d.Seconds)
}

func floatText(f float64) string {
	if f == 0 {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
