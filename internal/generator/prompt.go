package generator

import (
	"fmt"
	"strings"
	"time"

	"github.com/runcoach/runcoach/internal/plan"
)

// responseExample shows the model the exact JSON shape expected back.
const responseExample = `{
  "weeks": [
    {
      "week": 1,
      "totalDistance": 15,
      "trainingComposition": "Easy run x3 (3-4km each), LSD x1 (6km)",
      "objectives": "Build base fitness and a running habit"
    }
  ],
  "totalWeeks": %d,
  "totalDistance": 200,
  "averageWeeklyDistance": 15,
  "progressData": [10, 12, 15, 18, 20],
  "aiFeedback": "Training cautions and tips"
}`

var requirements = []string{
	"Give a concrete training composition for every week.",
	"Increase weekly distance progressively.",
	"Mix easy runs, LSD (long slow distance), tempo runs and intervals.",
	"Make the plan realistic for reaching the target time.",
	"Include rest days to prevent injury.",
	"progressData must be the array of weekly total distances.",
	"aiFeedback must cover training cautions, pacing and injury prevention.",
}

// BuildPrompt renders the coaching prompt for req as of now.
func BuildPrompt(req *plan.PlanRequest, now time.Time) string {
	goal := req.MarathonInfo
	weeks := plan.WeeksUntil(goal.RaceDate, now)

	var b strings.Builder
	b.WriteString("You are an expert marathon coach. Write a personalised training plan from the information below.\n\n")

	b.WriteString("Target race:\n")
	fmt.Fprintf(&b, "- Name: %s\n", goal.RaceName)
	fmt.Fprintf(&b, "- Date: %s\n", goal.RaceDate)
	fmt.Fprintf(&b, "- Distance: %s\n", goal.Distance.Label())
	fmt.Fprintf(&b, "- Target time: %s\n", formatDuration(goal.TargetTime))
	fmt.Fprintf(&b, "- Weeks available: %d\n\n", weeks)

	if req.HasRunningHistory && len(req.RunningHistory) > 0 {
		b.WriteString("Recent runs:\n")
		for i, rec := range req.RunningHistory {
			fmt.Fprintf(&b, "%d. %s: %gkm in %s (%.1f min/km)\n",
				i+1, rec.RecordDate, rec.DistanceKm, formatDuration(rec.Time), rec.Pace())
		}
	} else {
		b.WriteString("Recent runs: none in the last 6 months (treat as a beginner)\n")
	}

	b.WriteString("\nReply with exactly this JSON format:\n\n")
	fmt.Fprintf(&b, responseExample, weeks)
	b.WriteString("\n\nRequirements:\n")
	for i, r := range requirements {
		fmt.Fprintf(&b, "%d. %s\n", i+1, r)
	}
	b.WriteString("\nReply with JSON only and no other text.")

	return b.String()
}

func formatDuration(d plan.Duration) string {
	return fmt.Sprintf("%dh %dm %ds", d.Hours, d.Minutes, d.Seconds)
}
