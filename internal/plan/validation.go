package plan

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Validation limits.
const (
	MaxRaceNameLength   = 100
	HistoryWindowMonths = 6
	MinRecordDistanceKm = 0.1
	MaxRecordDistanceKm = 50.0
	MinPace             = 2.0  // minutes per km
	MaxPace             = 20.0 // minutes per km
)

// FieldError is a validation failure on a single field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every field that failed validation.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Fields maps each failing field to its first message.
func (e *ValidationError) Fields() map[string]string {
	m := make(map[string]string, len(e.Errors))
	for _, fe := range e.Errors {
		if _, ok := m[fe.Field]; !ok {
			m[fe.Field] = fe.Message
		}
	}
	return m
}

// Message returns the first message for field, or "" if the field is valid.
func (e *ValidationError) Message(field string) string {
	for _, fe := range e.Errors {
		if fe.Field == field {
			return fe.Message
		}
	}
	return ""
}

// Has reports whether field failed validation.
func (e *ValidationError) Has(field string) bool {
	return e.Message(field) != ""
}

type collector struct {
	prefix string
	errs   []FieldError
}

func (c *collector) add(field, msg string) {
	c.errs = append(c.errs, FieldError{Field: c.prefix + field, Message: msg})
}

func (c *collector) err() error {
	if len(c.errs) == 0 {
		return nil
	}
	return &ValidationError{Errors: c.errs}
}

// Today returns the calendar date of now in now's location.
func Today(now time.Time) Date {
	return DateOf(now)
}

// IsFutureRaceDate reports whether d is strictly after today.
func IsFutureRaceDate(d Date, now time.Time) bool {
	return d.After(Today(now))
}

// IsWithinHistoryWindow reports whether today - 6 months <= d <= today.
func IsWithinHistoryWindow(d Date, now time.Time) bool {
	today := Today(now)
	earliest := DateOf(now.AddDate(0, -HistoryWindowMonths, 0))
	return !d.Before(earliest) && !d.After(today)
}

// Pace returns minutes per kilometer, or 0 when distanceKm is not positive.
func Pace(distanceKm float64, d Duration) float64 {
	if distanceKm <= 0 {
		return 0
	}
	return d.TotalMinutes() / distanceKm
}

// IsRealisticPace reports whether the pace lies within [2, 20] minutes per km.
func IsRealisticPace(distanceKm float64, d Duration) bool {
	if distanceKm <= 0 {
		return false
	}
	p := Pace(distanceKm, d)
	return p >= MinPace && p <= MaxPace
}

// WeeksUntil returns the whole weeks (rounded up) from today to the race, minimum 1.
func WeeksUntil(raceDate Date, now time.Time) int {
	days := raceDate.DaysSince(Today(now).Date)
	weeks := (days + 6) / 7
	if weeks < 1 {
		return 1
	}
	return weeks
}

// checkDuration validates the component ranges and reports whether they are in range.
func checkDuration(c *collector, field string, d Duration) bool {
	ok := true
	if d.Hours < 0 || d.Hours > 23 {
		c.add(field, MsgHoursRange)
		ok = false
	}
	if d.Minutes < 0 || d.Minutes > 59 {
		c.add(field, MsgMinutesRange)
		ok = false
	}
	if d.Seconds < 0 || d.Seconds > 59 {
		c.add(field, MsgSecondsRange)
		ok = false
	}
	return ok
}

// ValidateRaceGoal checks every race goal invariant and reports all failures together.
func ValidateRaceGoal(goal RaceGoal, now time.Time) error {
	c := &collector{}
	validateRaceGoal(c, goal, now)
	return c.err()
}

func validateRaceGoal(c *collector, goal RaceGoal, now time.Time) {
	name := strings.TrimSpace(goal.RaceName)
	switch {
	case name == "":
		c.add("raceName", MsgRaceNameRequired)
	case utf8.RuneCountInString(name) > MaxRaceNameLength:
		c.add("raceName", MsgRaceNameTooLong)
	}

	switch {
	case goal.RaceDate.IsZero():
		c.add("raceDate", MsgRaceDateRequired)
	case !IsFutureRaceDate(goal.RaceDate, now):
		c.add("raceDate", MsgRaceDateFuture)
	}

	if !goal.Distance.IsValid() {
		c.add("distance", MsgDistanceRequired)
	}

	inRange := checkDuration(c, "targetTime", goal.TargetTime)
	if !inRange {
		return
	}
	if goal.TargetTime.IsZero() {
		c.add("targetTime", MsgTargetRequired)
		return
	}

	if lo, hi, ok := goal.Distance.TargetRange(); ok {
		total := goal.TargetTime.TotalMinutes()
		if total < lo || total > hi {
			c.add("targetTime", MsgTargetUnrealistic)
		}
	}
}

// ValidateHistoryRecord checks every history record invariant, including the
// cross-field pace bound, and reports all failures together.
func ValidateHistoryRecord(rec HistoryRecord, now time.Time) error {
	c := &collector{}
	validateHistoryRecord(c, rec, now)
	return c.err()
}

func validateHistoryRecord(c *collector, rec HistoryRecord, now time.Time) {
	switch {
	case rec.RecordDate.IsZero():
		c.add("recordDate", MsgRecordDateRequired)
	case !IsWithinHistoryWindow(rec.RecordDate, now):
		c.add("recordDate", MsgRecordDateWindow)
	}

	distanceOK := false
	switch {
	case rec.DistanceKm <= 0:
		c.add("distance", MsgRecordDistancePositive)
	case rec.DistanceKm < MinRecordDistanceKm:
		c.add("distance", MsgRecordDistanceMin)
	case rec.DistanceKm > MaxRecordDistanceKm:
		c.add("distance", MsgRecordDistanceMax)
	default:
		distanceOK = true
	}

	timeOK := checkDuration(c, "time", rec.Time)
	if timeOK && rec.Time.IsZero() {
		c.add("time", MsgRecordTimeRequired)
		timeOK = false
	}

	if distanceOK && timeOK && !IsRealisticPace(rec.DistanceKm, rec.Time) {
		c.add("time", MsgRecordUnrealistic)
	}
}

// ValidateRequest validates a complete plan request.
func ValidateRequest(req *PlanRequest, now time.Time) error {
	c := &collector{prefix: "marathonInfo."}
	validateRaceGoal(c, req.MarathonInfo, now)

	c.prefix = ""
	if len(req.RunningHistory) > MaxHistoryRecords {
		c.add("runningHistory", MsgHistoryTooMany)
	}
	if req.HasRunningHistory && len(req.RunningHistory) == 0 {
		c.add("runningHistory", MsgHistoryMissing)
	}
	for i, rec := range req.RunningHistory {
		c.prefix = fmt.Sprintf("runningHistory[%d].", i)
		validateHistoryRecord(c, rec, now)
	}
	c.prefix = ""

	return c.err()
}
