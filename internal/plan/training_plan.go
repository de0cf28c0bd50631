package plan

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrMalformedPlan is returned when a training plan fails structural validation.
var ErrMalformedPlan = errors.New("malformed training plan")

// ErrNoJSONObject is returned when model output contains no {...} span.
var ErrNoJSONObject = errors.New("no JSON object found in response")

// rawPlan mirrors TrainingPlan with pointers so missing fields can be detected.
type rawPlan struct {
	Weeks                 *[]rawWeek `json:"weeks"`
	TotalWeeks            *float64   `json:"totalWeeks"`
	TotalDistance         *float64   `json:"totalDistance"`
	AverageWeeklyDistance *float64   `json:"averageWeeklyDistance"`
	ProgressData          *[]float64 `json:"progressData"`
	AIFeedback            *string    `json:"aiFeedback"`
}

type rawWeek struct {
	Week                *float64 `json:"week"`
	TotalDistance       *float64 `json:"totalDistance"`
	TrainingComposition *string  `json:"trainingComposition"`
	Objectives          *string  `json:"objectives"`
}

// ParseTrainingPlan decodes data and enforces the structural plan invariants.
// Nothing is repaired: any violation is reported as ErrMalformedPlan.
func ParseTrainingPlan(data []byte) (*TrainingPlan, error) {
	var raw rawPlan
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPlan, err)
	}

	if raw.Weeks == nil {
		return nil, fmt.Errorf("%w: missing weeks", ErrMalformedPlan)
	}
	if raw.TotalWeeks == nil || raw.TotalDistance == nil || raw.AverageWeeklyDistance == nil {
		return nil, fmt.Errorf("%w: missing summary data", ErrMalformedPlan)
	}
	if raw.ProgressData == nil {
		return nil, fmt.Errorf("%w: missing progress data", ErrMalformedPlan)
	}
	if raw.AIFeedback == nil {
		return nil, fmt.Errorf("%w: missing feedback", ErrMalformedPlan)
	}

	totalWeeks, ok := wholeNumber(*raw.TotalWeeks, 0)
	if !ok {
		return nil, fmt.Errorf("%w: invalid total weeks %v", ErrMalformedPlan, *raw.TotalWeeks)
	}

	out := &TrainingPlan{
		Weeks:                 make([]TrainingWeek, 0, len(*raw.Weeks)),
		TotalWeeks:            totalWeeks,
		TotalDistance:         *raw.TotalDistance,
		AverageWeeklyDistance: *raw.AverageWeeklyDistance,
		ProgressData:          *raw.ProgressData,
		AIFeedback:            *raw.AIFeedback,
	}

	for i, w := range *raw.Weeks {
		if w.Week == nil || w.TotalDistance == nil || w.TrainingComposition == nil || w.Objectives == nil {
			return nil, fmt.Errorf("%w: week %d is incomplete", ErrMalformedPlan, i+1)
		}
		index, ok := wholeNumber(*w.Week, 1)
		if !ok {
			return nil, fmt.Errorf("%w: week %d has invalid index %v", ErrMalformedPlan, i+1, *w.Week)
		}
		out.Weeks = append(out.Weeks, TrainingWeek{
			Week:                index,
			TotalDistance:       *w.TotalDistance,
			TrainingComposition: *w.TrainingComposition,
			Objectives:          *w.Objectives,
		})
	}

	return out, nil
}

// wholeNumber converts v to an int when it is integral and within
// [minimum, math.MaxInt32].
func wholeNumber(v float64, minimum int) (int, bool) {
	if v != math.Trunc(v) || v < float64(minimum) || v > math.MaxInt32 {
		return 0, false
	}
	return int(v), true
}

// ExtractJSONObject returns the outermost {...} span of model output,
// dropping any surrounding prose or markdown fences.
func ExtractJSONObject(text string) (string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return "", ErrNoJSONObject
	}
	return text[start : end+1], nil
}
