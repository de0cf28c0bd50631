package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/runcoach/runcoach/internal/plan"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A78BFA")).
			Bold(true)

	stepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#22D3EE")).
			Bold(true).
			MarginTop(1)

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#9CA3AF"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B"))

	bannerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FDA4AF")).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#F43F5E")).
			Padding(0, 1)

	weekStyle = lipgloss.NewStyle().
			Bold(true).
			Width(9)

	barStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#34D399"))

	feedbackStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#A78BFA")).
			Padding(0, 1).
			Width(72)
)

// maxBarWidth is the width of the longest bar in the weekly distance chart.
const maxBarWidth = 30

// RenderPlan formats a training plan for the terminal.
func RenderPlan(p *plan.TrainingPlan) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("Your %d-week plan", p.TotalWeeks)))
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render(fmt.Sprintf("Total %.1fkm, average %.1fkm per week", p.TotalDistance, p.AverageWeeklyDistance)))
	b.WriteString("\n\n")

	for _, w := range p.Weeks {
		b.WriteString(weekStyle.Render(fmt.Sprintf("Week %d", w.Week)))
		b.WriteString(fmt.Sprintf("%5.1fkm  %s\n", w.TotalDistance, w.Objectives))
		b.WriteString(mutedStyle.Render("         " + w.TrainingComposition))
		b.WriteString("\n")
	}

	if chart := progressChart(p.ProgressData); chart != "" {
		b.WriteString("\n")
		b.WriteString(stepStyle.Render("Weekly distance"))
		b.WriteString("\n")
		b.WriteString(chart)
	}

	if p.AIFeedback != "" {
		b.WriteString("\n")
		b.WriteString(feedbackStyle.Render(p.AIFeedback))
	}

	return b.String()
}

// progressChart draws one horizontal bar per week, scaled to the largest week.
func progressChart(data []float64) string {
	var peak float64
	for _, v := range data {
		peak = max(peak, v)
	}
	if peak <= 0 {
		return ""
	}

	lines := make([]string, 0, len(data))
	for i, v := range data {
		width := int(v / peak * maxBarWidth)
		if v > 0 && width == 0 {
			width = 1
		}
		lines = append(lines, fmt.Sprintf("%3d %s %.1f", i+1, barStyle.Render(strings.Repeat("█", width)), v))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
