// Package plan provides the domain model for race goals, running history and
// generated training plans, together with the validation rules shared by the
// intake wizard, the plan client and the plan-generation service.
package plan

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// DistanceClass identifies the race distance of a goal.
type DistanceClass string

const (
	Distance5K   DistanceClass = "5km"
	Distance10K  DistanceClass = "10km"
	DistanceHalf DistanceClass = "Half"
	DistanceFull DistanceClass = "Full"
)

// DistanceClasses lists every supported distance class in display order.
var DistanceClasses = []DistanceClass{Distance5K, Distance10K, DistanceHalf, DistanceFull}

// targetBand is the realistic [min, max] finish time in minutes for a distance.
type targetBand struct {
	min float64
	max float64
}

var targetBands = map[DistanceClass]targetBand{
	Distance5K:   {min: 10, max: 120},
	Distance10K:  {min: 20, max: 240},
	DistanceHalf: {min: 60, max: 480},
	DistanceFull: {min: 120, max: 720},
}

var distanceKm = map[DistanceClass]float64{
	Distance5K:   5,
	Distance10K:  10,
	DistanceHalf: 21.1,
	DistanceFull: 42.2,
}

// IsValid returns true if d is one of the supported distance classes.
func (d DistanceClass) IsValid() bool {
	_, ok := targetBands[d]
	return ok
}

// Kilometers returns the race length in kilometers, or 0 for an unknown class.
func (d DistanceClass) Kilometers() float64 {
	return distanceKm[d]
}

// TargetRange returns the realistic finish-time band for the distance.
func (d DistanceClass) TargetRange() (minMinutes, maxMinutes float64, ok bool) {
	band, ok := targetBands[d]
	return band.min, band.max, ok
}

// Label returns a human-readable name for the distance.
func (d DistanceClass) Label() string {
	switch d {
	case Distance5K:
		return "5km"
	case Distance10K:
		return "10km"
	case DistanceHalf:
		return "Half marathon (21.1km)"
	case DistanceFull:
		return "Full marathon (42.2km)"
	default:
		return string(d)
	}
}

// ParseDistanceClass parses a user- or wire-supplied distance name.
func ParseDistanceClass(s string) (DistanceClass, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "5km", "5k", "5":
		return Distance5K, nil
	case "10km", "10k", "10":
		return Distance10K, nil
	case "half", "21.1", "half marathon":
		return DistanceHalf, nil
	case "full", "42.2", "marathon", "full marathon":
		return DistanceFull, nil
	default:
		return "", fmt.Errorf("unknown distance %q", s)
	}
}

// Duration is an hours/minutes/seconds triple as entered by a runner.
type Duration struct {
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
	Seconds int `json:"seconds"`
}

// TotalMinutes returns the duration in (fractional) minutes.
func (d Duration) TotalMinutes() float64 {
	return float64(d.Hours*60+d.Minutes) + float64(d.Seconds)/60
}

// IsZero returns true if no time has been entered.
func (d Duration) IsZero() bool {
	return d.Hours == 0 && d.Minutes == 0 && d.Seconds == 0
}

// Std converts the duration to a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d.Hours)*time.Hour +
		time.Duration(d.Minutes)*time.Minute +
		time.Duration(d.Seconds)*time.Second
}

// String formats the duration as HH:MM:SS.
func (d Duration) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", d.Hours, d.Minutes, d.Seconds)
}

// ParseDuration parses "H:MM:SS", "MM:SS" or "M" into a Duration.
// Range checks are left to validation.
func ParseDuration(s string) (Duration, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) == 0 || len(parts) > 3 {
		return Duration{}, fmt.Errorf("invalid time %q", s)
	}

	nums := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Duration{}, fmt.Errorf("invalid time %q", s)
		}
		nums[i] = n
	}

	switch len(nums) {
	case 3:
		return Duration{Hours: nums[0], Minutes: nums[1], Seconds: nums[2]}, nil
	case 2:
		return Duration{Minutes: nums[0], Seconds: nums[1]}, nil
	default:
		return Duration{Minutes: nums[0]}, nil
	}
}

// Date is a calendar date without a time of day.
type Date struct {
	civil.Date
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	return Date{civil.DateOf(t)}
}

// NewDate returns the date for the given year, month and day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{civil.Date{Year: year, Month: month, Day: day}}
}

// ParseDate parses "YYYY-MM-DD" or an RFC 3339 timestamp.
// For timestamps the date is taken in the timestamp's own offset.
func ParseDate(s string) (Date, error) {
	if d, err := civil.ParseDate(s); err == nil {
		return Date{d}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q", s)
	}
	return DateOf(t), nil
}

// AddDays returns the date n days after d.
func (d Date) AddDays(n int) Date {
	return Date{d.Date.AddDays(n)}
}

// After reports whether d is after other.
func (d Date) After(other Date) bool {
	return d.Date.After(other.Date)
}

// Before reports whether d is before other.
func (d Date) Before(other Date) bool {
	return d.Date.Before(other.Date)
}

// MarshalJSON encodes the date as "YYYY-MM-DD", or null when unset.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts "YYYY-MM-DD", an RFC 3339 timestamp, or null.
func (d *Date) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// RaceGoal is the runner's target event.
type RaceGoal struct {
	RaceName   string        `json:"raceName"`
	RaceDate   Date          `json:"raceDate"`
	Distance   DistanceClass `json:"distance"`
	TargetTime Duration      `json:"targetTime"`
}

// Normalized returns a copy with the race name trimmed.
func (g RaceGoal) Normalized() RaceGoal {
	g.RaceName = strings.TrimSpace(g.RaceName)
	return g
}

// HistoryRecord is a recent run used as evidence of current fitness.
type HistoryRecord struct {
	RecordDate Date     `json:"recordDate"`
	DistanceKm float64  `json:"distance"`
	Time       Duration `json:"time"`
}

// Pace returns the record's pace in minutes per kilometer.
func (r HistoryRecord) Pace() float64 {
	return Pace(r.DistanceKm, r.Time)
}

// MaxHistoryRecords is the maximum number of history records in a request.
const MaxHistoryRecords = 3

// PlanRequest is the validated payload sent to the plan-generation endpoint.
type PlanRequest struct {
	MarathonInfo      RaceGoal        `json:"marathonInfo"`
	RunningHistory    []HistoryRecord `json:"runningHistory"`
	HasRunningHistory bool            `json:"hasRunningHistory"`
}

// NewPlanRequest builds a request from a goal and history.
// HasRunningHistory is set only when history was chosen and is non-empty.
func NewPlanRequest(goal RaceGoal, history []HistoryRecord, chosen bool) *PlanRequest {
	records := make([]HistoryRecord, len(history))
	copy(records, history)
	return &PlanRequest{
		MarathonInfo:      goal.Normalized(),
		RunningHistory:    records,
		HasRunningHistory: chosen && len(records) > 0,
	}
}

// TrainingWeek is one week of a generated plan.
type TrainingWeek struct {
	Week                int     `json:"week"`
	TotalDistance       float64 `json:"totalDistance"`
	TrainingComposition string  `json:"trainingComposition"`
	Objectives          string  `json:"objectives"`
}

// TrainingPlan is the structured plan returned by the generation endpoint.
type TrainingPlan struct {
	Weeks                 []TrainingWeek `json:"weeks"`
	TotalWeeks            int            `json:"totalWeeks"`
	TotalDistance         float64        `json:"totalDistance"`
	AverageWeeklyDistance float64        `json:"averageWeeklyDistance"`
	ProgressData          []float64      `json:"progressData"`
	AIFeedback            string         `json:"aiFeedback"`
}
