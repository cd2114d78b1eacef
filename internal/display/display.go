package display

import (
	"fmt"
	"strings"

	"taskpilot/internal/plan"
	"taskpilot/internal/supervisor"
)

const maxDescriptionLength = 100

func FormatPlansCatalog(file string, plans []plan.NamedPlan) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d mission(s) in %s:\n", len(plans), file))
	for i, p := range plans {
		toolSteps, codeSteps := p.Plan.CountKinds()
		risky := supervisor.IsPlanRisky(p.Plan)
		sb.WriteString(fmt.Sprintf("  %2d. %s  (steps=%d, tool=%d, code=%d, risky=%v)\n",
			i+1, p.Name, len(p.Plan.Steps), toolSteps, codeSteps, risky))
	}
	return sb.String()
}

// stdout plan (truncated)
func FormatPlan(p *plan.Plan) string {
	return formatPlanInternal(p, maxDescriptionLength)
}

// full plan, used for logs
func FormatPlanFull(p *plan.Plan) string {
	return formatPlanInternal(p, -1)
}

func formatPlanInternal(p *plan.Plan, limit int) string {
	var sb strings.Builder
	sb.WriteString("Proposed plan:\n")
	sb.WriteString("--------------------------------------------------\n")
	if p == nil {
		sb.WriteString("  (no plan)\n")
	} else {
		if p.GoalAnalysis != "" {
			sb.WriteString(fmt.Sprintf("Goal: %s\n", formatValueForDisplay(p.GoalAnalysis, limit)))
		}
		for _, s := range p.Steps {
			route := "code"
			if s.IsToolStep() {
				route = "tool: " + s.Tool()
			}
			sb.WriteString(fmt.Sprintf("  Step %d [%s]: %s\n", s.ID, route, formatValueForDisplay(s.Description, limit)))
		}
	}
	sb.WriteString("--------------------------------------------------")
	return sb.String()
}

// limit < 0 means no limit
func formatValueForDisplay(value string, limit int) string {
	s := strings.ReplaceAll(value, "\n", "\\n")
	if limit >= 0 && len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
