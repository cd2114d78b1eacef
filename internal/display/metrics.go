package display

import (
	"fmt"
	"strings"

	"taskpilot/internal/metrics"
)

func FormatMissionMetrics(mm *metrics.MissionMetrics) string {
	if mm == nil {
		return "No metrics available."
	}
	var sb strings.Builder
	sb.WriteString("Execution metrics:\n")
	sb.WriteString(fmt.Sprintf("- Total: %d ms  (success=%v, planning=%d ms, attempts=%d)\n",
		mm.DurationMs, mm.Succeeded, mm.PlanningMs, mm.TotalAttempts()))
	for _, s := range mm.Steps {
		label := s.Kind
		if s.Tool != "" {
			label += ":" + s.Tool
		}
		sb.WriteString(fmt.Sprintf("  Step %d %-22s %5d ms  [%s]\n",
			s.StepID, "("+label+")", s.DurationMs, okOrErr(s.Success)))
		for _, a := range s.Attempts {
			sb.WriteString(fmt.Sprintf("    * attempt %d %-18s %5d ms  [%s]\n",
				a.Attempt, a.Filename, a.DurationMs, okOrErr(a.Passed)))
		}
	}
	if len(mm.Dependencies) > 0 {
		sb.WriteString(fmt.Sprintf("- Installed: %s\n", strings.Join(mm.Dependencies, ", ")))
	}
	return sb.String()
}

func okOrErr(ok bool) string {
	if ok {
		return "ok"
	}
	return "err"
}
